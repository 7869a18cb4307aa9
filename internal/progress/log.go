package progress

import "github.com/Korkidis/ai-risk-shield-sub000/internal/shield"

// LogBroadcaster writes progress events to a logger.
type LogBroadcaster struct {
	Logger shield.Logger
}

func (b LogBroadcaster) Notify(scanID string, percent int, message string) {
	b.Logger.Info("scan progress", "scan_id", scanID, "percent", percent, "message", message)
}

// Fanout forwards every event to each broadcaster in order.
type Fanout []shield.Broadcaster

func (f Fanout) Notify(scanID string, percent int, message string) {
	for _, b := range f {
		b.Notify(scanID, percent, message)
	}
}

var (
	_ shield.Broadcaster = LogBroadcaster{}
	_ shield.Broadcaster = Fanout(nil)
)

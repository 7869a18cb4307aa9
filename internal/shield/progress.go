package shield

import "context"

// Broadcaster is the fire-and-forget progress side channel. Implementations
// must not block the caller and must never surface an error.
type Broadcaster interface {
	Notify(scanID string, percent int, message string)
}

// Dispatcher runs best-effort side effects off the critical path. A task's
// error is logged by the dispatcher and never reaches the caller.
type Dispatcher interface {
	Dispatch(name string, task func(ctx context.Context) error)
}

// NopBroadcaster drops every progress event.
type NopBroadcaster struct{}

func (NopBroadcaster) Notify(string, int, string) {}

// InlineDispatcher runs tasks synchronously and logs failures. It suits
// one-shot CLI runs and tests where nothing should outlive the call.
type InlineDispatcher struct {
	Logger Logger
}

func (d InlineDispatcher) Dispatch(name string, task func(ctx context.Context) error) {
	if err := task(context.Background()); err != nil && d.Logger != nil {
		d.Logger.Warn("side effect failed", "task", name, "error", err)
	}
}

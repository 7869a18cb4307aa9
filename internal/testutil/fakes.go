package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Korkidis/ai-risk-shield-sub000/internal/model"
	"github.com/Korkidis/ai-risk-shield-sub000/internal/shield"
)

// FakeAnalyzer returns scripted reports. Each call consumes the next entry of
// Reports; the last entry repeats once the script runs out. Err is returned
// on every call, or only on call number ErrOnCall when that is set. Safe for
// concurrent use.
type FakeAnalyzer struct {
	mu         sync.Mutex
	Reports    []*shield.AnalysisReport
	Err        error
	ErrOnCall  int
	calls      int
	Guidelines []*model.BrandGuideline
	Media      []shield.Media
}

// NewFakeAnalyzer returns an analyzer that reports the given scores in order.
func NewFakeAnalyzer(scores ...int) *FakeAnalyzer {
	a := &FakeAnalyzer{}
	for _, s := range scores {
		a.Reports = append(a.Reports, Report(s))
	}
	return a
}

// Report builds a report with one detection sized to produce score.
func Report(score int) *shield.AnalysisReport {
	r := &shield.AnalysisReport{Score: score, Level: levelFor(score), Summary: fmt.Sprintf("score %d", score)}
	if score > 0 {
		r.Detections = []shield.Detection{{
			Category:    "other",
			Severity:    model.SeverityCritical,
			Confidence:  float64(score),
			Description: "scripted detection",
		}}
	}
	return r
}

func levelFor(score int) model.RiskLevel {
	switch {
	case score >= 91:
		return model.RiskCritical
	case score >= 76:
		return model.RiskHigh
	case score >= 51:
		return model.RiskReview
	case score >= 26:
		return model.RiskCaution
	}
	return model.RiskSafe
}

func (a *FakeAnalyzer) Analyze(ctx context.Context, media shield.Media, g *model.BrandGuideline) (*shield.AnalysisReport, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	a.Guidelines = append(a.Guidelines, g)
	a.Media = append(a.Media, media)
	if a.Err != nil && (a.ErrOnCall == 0 || a.ErrOnCall == a.calls) {
		return nil, a.Err
	}
	if len(a.Reports) == 0 {
		return Report(0), nil
	}
	i := min(a.calls-1, len(a.Reports)-1)
	r := *a.Reports[i]
	return &r, nil
}

// Calls returns the number of Analyze invocations.
func (a *FakeAnalyzer) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

// FakeVerifier returns a fixed provenance result or error.
type FakeVerifier struct {
	mu     sync.Mutex
	Result *shield.ProvenanceResult
	Err    error
	Paths  []string
}

// NewFakeVerifier returns a verifier that reports status.
func NewFakeVerifier(status model.ProvenanceStatus) *FakeVerifier {
	return &FakeVerifier{Result: &shield.ProvenanceResult{Status: status}}
}

func (v *FakeVerifier) Verify(ctx context.Context, path string) (*shield.ProvenanceResult, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.Paths = append(v.Paths, path)
	if v.Err != nil {
		return nil, v.Err
	}
	r := *v.Result
	return &r, nil
}

// FakeSampler returns Count synthetic JPEG frames one second apart.
type FakeSampler struct {
	Count int
	Err   error
}

func (s *FakeSampler) Sample(ctx context.Context, path string, count int) ([]shield.Frame, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	n := s.Count
	if n == 0 {
		n = count
	}
	frames := make([]shield.Frame, n)
	for i := range frames {
		frames[i] = shield.Frame{
			Index:     i,
			Timestamp: time.Duration(i) * time.Second,
			Media:     shield.Media{Data: []byte(fmt.Sprintf("frame-%d", i)), MIMEType: "image/jpeg"},
		}
	}
	return frames, nil
}

// ProgressEvent is one recorded Notify call.
type ProgressEvent struct {
	ScanID  string
	Percent int
	Message string
}

// RecordingBroadcaster keeps every progress event in order.
type RecordingBroadcaster struct {
	mu     sync.Mutex
	events []ProgressEvent
}

func (b *RecordingBroadcaster) Notify(scanID string, percent int, message string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, ProgressEvent{ScanID: scanID, Percent: percent, Message: message})
}

// Events returns a copy of the recorded events.
func (b *RecordingBroadcaster) Events() []ProgressEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]ProgressEvent(nil), b.events...)
}

// CapturingLogger records log lines for assertions.
type CapturingLogger struct {
	mu    sync.Mutex
	Lines []string
}

func (l *CapturingLogger) record(level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Lines = append(l.Lines, fmt.Sprint(append([]any{level, " ", msg, " "}, args...)...))
}

func (l *CapturingLogger) Debug(msg string, args ...any) { l.record("DEBUG", msg, args) }
func (l *CapturingLogger) Info(msg string, args ...any)  { l.record("INFO", msg, args) }
func (l *CapturingLogger) Warn(msg string, args ...any)  { l.record("WARN", msg, args) }
func (l *CapturingLogger) Error(msg string, args ...any) { l.record("ERROR", msg, args) }

var (
	_ shield.Analyzer           = (*FakeAnalyzer)(nil)
	_ shield.ProvenanceVerifier = (*FakeVerifier)(nil)
	_ shield.FrameSampler       = (*FakeSampler)(nil)
	_ shield.Broadcaster        = (*RecordingBroadcaster)(nil)
	_ shield.Logger             = (*CapturingLogger)(nil)
)

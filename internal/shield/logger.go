package shield

// Logger provides structured logging for the service layer.
// The args follow slog conventions: alternating key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// NopLogger discards all output. Use in tests.
type NopLogger struct{}

func NewNopLogger() *NopLogger { return &NopLogger{} }

func (*NopLogger) Debug(string, ...any) {}
func (*NopLogger) Info(string, ...any)  {}
func (*NopLogger) Warn(string, ...any)  {}
func (*NopLogger) Error(string, ...any) {}

// scanLogger prefixes every record with the scan it belongs to.
type scanLogger struct {
	l      Logger
	scanID string
}

func withScan(l Logger, scanID string) Logger {
	return &scanLogger{l: l, scanID: scanID}
}

func (s *scanLogger) Debug(msg string, args ...any) { s.l.Debug(msg, s.args(args)...) }
func (s *scanLogger) Info(msg string, args ...any)  { s.l.Info(msg, s.args(args)...) }
func (s *scanLogger) Warn(msg string, args ...any)  { s.l.Warn(msg, s.args(args)...) }
func (s *scanLogger) Error(msg string, args ...any) { s.l.Error(msg, s.args(args)...) }

func (s *scanLogger) args(args []any) []any {
	return append([]any{"scan_id", s.scanID}, args...)
}

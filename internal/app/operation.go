package app

import "time"

// Operation identifies the CLI command being run. Its ID tags every log
// line the command writes.
type Operation struct {
	ID   string
	Name string

	// Pipeline marks commands that process scans. Only these build the
	// vision, provenance and frame backends, so read-only commands work
	// without an API key or external tools.
	Pipeline bool
}

// NewOperation creates an Operation started at now.
func NewOperation(name string, pipeline bool, now time.Time) *Operation {
	return &Operation{
		ID:       now.UTC().Format("20060102T150405Z"),
		Name:     name,
		Pipeline: pipeline,
	}
}

package shield

import (
	"errors"
	"fmt"
)

// Error taxonomy for the scan pipeline. Wrap with the helpers below so callers
// can classify with errors.Is.
var (
	// ErrNotFound means a scan, asset or guideline is missing from the datastore.
	ErrNotFound = errors.New("not found")

	// ErrUpstreamService means an external call (vision service, object
	// storage, frame extraction) failed or returned something unusable.
	ErrUpstreamService = errors.New("upstream service failure")

	// ErrVerification means the provenance check itself failed. The
	// orchestrator recovers from it by downgrading the provenance status.
	ErrVerification = errors.New("verification failure")

	// ErrPersistence means a datastore write failed.
	ErrPersistence = errors.New("persistence failure")
)

// classified pairs a taxonomy sentinel with the underlying cause.
type classified struct {
	kind  error
	cause error
	msg   string
}

func (e *classified) Error() string {
	if e.cause == nil {
		return fmt.Sprintf("%s: %s", e.kind, e.msg)
	}
	return fmt.Sprintf("%s: %s: %v", e.kind, e.msg, e.cause)
}

func (e *classified) Unwrap() []error {
	if e.cause == nil {
		return []error{e.kind}
	}
	return []error{e.kind, e.cause}
}

func notFound(format string, args ...any) error {
	return &classified{kind: ErrNotFound, msg: fmt.Sprintf(format, args...)}
}

// UpstreamError tags err as an upstream service failure.
func UpstreamError(msg string, err error) error {
	return &classified{kind: ErrUpstreamService, msg: msg, cause: err}
}

// VerificationError tags err as a provenance verification failure.
func VerificationError(msg string, err error) error {
	return &classified{kind: ErrVerification, msg: msg, cause: err}
}

func persistenceError(msg string, err error) error {
	return &classified{kind: ErrPersistence, msg: msg, cause: err}
}

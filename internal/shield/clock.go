package shield

import (
	"time"

	"github.com/google/uuid"
)

// Clock abstracts time retrieval so scan timestamps and durations are
// deterministic in tests.
type Clock interface {
	Now() time.Time
}

// RealClock returns the current time in UTC.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now().UTC() }

// IDGenerator abstracts row ID generation for scans, findings and frames.
type IDGenerator interface {
	New() string
}

// UUIDGenerator produces random v4 UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) New() string { return uuid.New().String() }

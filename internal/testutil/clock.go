package testutil

import (
	"strconv"
	"sync"
	"time"
)

// Epoch is where FixedClock starts.
var Epoch = time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

// StubClock is a manual shield.Clock. With a non-zero step every reading
// advances it, so scan durations come out positive and predictable.
type StubClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

// FixedClock returns a StubClock frozen at Epoch.
func FixedClock() *StubClock {
	return &StubClock{now: Epoch}
}

// TickingClock returns a StubClock starting at Epoch that moves forward by
// step after each reading.
func TickingClock(step time.Duration) *StubClock {
	return &StubClock{now: Epoch, step: step}
}

func (c *StubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

// StubIDGenerator hands out "id-1", "id-2", ... in call order.
type StubIDGenerator struct {
	mu sync.Mutex
	n  int
}

func NewStubIDGenerator() *StubIDGenerator {
	return &StubIDGenerator{}
}

func (g *StubIDGenerator) New() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return "id-" + strconv.Itoa(g.n)
}

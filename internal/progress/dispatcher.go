package progress

import (
	"context"
	"sync"
	"time"

	"github.com/Korkidis/ai-risk-shield-sub000/internal/metrics"
	"github.com/Korkidis/ai-risk-shield-sub000/internal/shield"
)

const defaultTaskTimeout = 30 * time.Second

type task struct {
	name string
	fn   func(ctx context.Context) error
}

// Dispatcher runs side effects on a fixed pool of workers fed by a bounded
// queue. Dispatch never blocks; a full queue drops the task. Failures are
// logged and counted, never returned.
type Dispatcher struct {
	queue   chan task
	workers int
	timeout time.Duration
	logger  shield.Logger

	mu      sync.Mutex
	closed  bool
	started bool
	wg      sync.WaitGroup
}

// NewDispatcher creates a Dispatcher. Tasks queue up until Start is called.
func NewDispatcher(workers, queueSize int, logger shield.Logger) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	if logger == nil {
		logger = shield.NewNopLogger()
	}
	return &Dispatcher{
		queue:   make(chan task, queueSize),
		workers: workers,
		timeout: defaultTaskTimeout,
		logger:  logger,
	}
}

// Start launches the workers. Calling it again has no effect.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.work()
	}
}

// Dispatch implements shield.Dispatcher.
func (d *Dispatcher) Dispatch(name string, fn func(ctx context.Context) error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		d.drop(name, "dispatcher closed")
		return
	}
	select {
	case d.queue <- task{name: name, fn: fn}:
	default:
		d.drop(name, "queue full")
	}
}

// Close stops accepting tasks and waits for queued ones to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	started := d.started
	d.mu.Unlock()

	if !started {
		// run what was queued before Start
		d.wg.Add(1)
		d.work()
	}
	d.wg.Wait()
}

func (d *Dispatcher) drop(name, reason string) {
	metrics.SideEffectFailures.WithLabelValues(name, "dropped").Inc()
	d.logger.Warn("side effect dropped", "task", name, "reason", reason)
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for t := range d.queue {
		d.run(t)
	}
}

func (d *Dispatcher) run(t task) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			metrics.SideEffectFailures.WithLabelValues(t.name, "error").Inc()
			d.logger.Error("side effect panicked", "task", t.name, "panic", r)
		}
	}()

	if err := t.fn(ctx); err != nil {
		metrics.SideEffectFailures.WithLabelValues(t.name, "error").Inc()
		d.logger.Warn("side effect failed", "task", t.name, "error", err)
		return
	}
	d.logger.Debug("side effect done", "task", t.name)
}

var _ shield.Dispatcher = (*Dispatcher)(nil)

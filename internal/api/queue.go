package api

import (
	"context"
	"errors"
	"sync"

	"github.com/Korkidis/ai-risk-shield-sub000/internal/shield"
)

// ErrQueueFull is returned by Enqueue when every slot is taken.
var ErrQueueFull = errors.New("scan queue is full")

// ErrQueueClosed is returned by Enqueue after Close.
var ErrQueueClosed = errors.New("scan queue is closed")

// Processor runs one scan to a terminal state.
type Processor interface {
	Process(ctx context.Context, scanID string) error
}

// Queue runs scans on a fixed pool of workers. Each worker handles one scan
// at a time; different scans proceed in parallel.
type Queue struct {
	proc    Processor
	jobs    chan string
	workers int
	logger  shield.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewQueue creates a Queue with the given worker count and capacity.
func NewQueue(proc Processor, workers, size int, logger shield.Logger) *Queue {
	if workers < 1 {
		workers = 1
	}
	if size < 1 {
		size = 1
	}
	if logger == nil {
		logger = shield.NewNopLogger()
	}
	return &Queue{
		proc:    proc,
		jobs:    make(chan string, size),
		workers: workers,
		logger:  logger,
	}
}

// Start launches the workers. Scans run with ctx.
func (q *Queue) Start(ctx context.Context) {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			for id := range q.jobs {
				if err := q.proc.Process(ctx, id); err != nil {
					q.logger.Error("scan job failed", "scan_id", id, "error", err)
				}
			}
		}()
	}
}

// Enqueue schedules scanID without blocking.
func (q *Queue) Enqueue(scanID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.jobs <- scanID:
		q.logger.Debug("scan enqueued", "scan_id", scanID)
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting jobs and waits for queued scans to finish.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.jobs)
	q.mu.Unlock()
	q.wg.Wait()
}

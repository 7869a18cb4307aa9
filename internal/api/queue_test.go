package api

import (
	"context"
	"errors"
	"sync"
	"testing"
)

type recordingProcessor struct {
	mu  sync.Mutex
	ids []string
	err error
}

func (p *recordingProcessor) Process(ctx context.Context, scanID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ids = append(p.ids, scanID)
	return p.err
}

func TestQueue_ProcessesAll(t *testing.T) {
	p := &recordingProcessor{err: errors.New("logged, not returned")}
	q := NewQueue(p, 3, 10, nil)
	q.Start(context.Background())

	for _, id := range []string{"a", "b", "c", "d"} {
		if err := q.Enqueue(id); err != nil {
			t.Fatalf("Enqueue(%q) error = %v", id, err)
		}
	}
	q.Close()

	if len(p.ids) != 4 {
		t.Errorf("processed %v, want 4 scans", p.ids)
	}
}

func TestQueue_Full(t *testing.T) {
	q := NewQueue(&recordingProcessor{}, 1, 1, nil)

	if err := q.Enqueue("a"); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if err := q.Enqueue("b"); !errors.Is(err, ErrQueueFull) {
		t.Errorf("Enqueue() error = %v, want ErrQueueFull", err)
	}
}

func TestQueue_Closed(t *testing.T) {
	q := NewQueue(&recordingProcessor{}, 1, 1, nil)
	q.Start(context.Background())
	q.Close()
	q.Close()

	if err := q.Enqueue("a"); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("Enqueue() error = %v, want ErrQueueClosed", err)
	}
}

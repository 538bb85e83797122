// Package dispatcher manages worker fan-out over the task queue.
package dispatcher

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/upload-runner/internal/queue/memory"
	"github.com/JakeFAU/upload-runner/internal/task"
	"github.com/JakeFAU/upload-runner/internal/worker"
)

// Dispatcher fans out queue work to a pool of workers.
type Dispatcher struct {
	queue   *memory.Queue
	workers []*worker.Worker
}

// New creates a Dispatcher.
func New(queue *memory.Queue, workers []*worker.Worker) *Dispatcher {
	return &Dispatcher{
		queue:   queue,
		workers: workers,
	}
}

// Run starts all workers and blocks until every one of them returns, which
// happens once the queue is closed and drained or ctx finishes.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, w := range d.workers {
		wg.Add(1)
		go func(wk *worker.Worker) {
			defer wg.Done()
			wk.Run(ctx)
		}(w)
	}
	wg.Wait()
}

// Enqueue proxies to the underlying queue.
func (d *Dispatcher) Enqueue(ctx context.Context, t task.Task) error {
	if err := d.queue.Enqueue(ctx, t); err != nil {
		return fmt.Errorf("queue enqueue: %w", err)
	}
	return nil
}

// Close stops accepting work. Workers finish what is buffered.
func (d *Dispatcher) Close() {
	d.queue.Close()
}

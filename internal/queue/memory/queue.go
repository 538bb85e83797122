// Package memory provides the bounded in-process task queue.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/JakeFAU/upload-runner/internal/metrics"
	"github.com/JakeFAU/upload-runner/internal/task"
)

// ErrClosed is returned by Dequeue once the queue is closed and drained.
var ErrClosed = errors.New("queue closed")

// Queue is a bounded in-memory queue with context-aware operations. Only the
// producer may call Close.
type Queue struct {
	ch      chan task.Task
	closeMu sync.Mutex
	closed  bool
}

// NewQueue constructs a new queue with the provided capacity.
func NewQueue(capacity int) *Queue {
	return &Queue{
		ch: make(chan task.Task, capacity),
	}
}

// Enqueue pushes a task into the queue, blocking while it is full, or returns
// if the context ends.
func (q *Queue) Enqueue(ctx context.Context, t task.Task) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case q.ch <- t:
		metrics.SetQueueDepth(len(q.ch))
		return nil
	}
}

// Dequeue pops the next task, respecting context cancellation. Buffered tasks
// are still handed out after Close.
func (q *Queue) Dequeue(ctx context.Context) (task.Task, error) {
	select {
	case <-ctx.Done():
		return task.Task{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case t, ok := <-q.ch:
		if !ok {
			return task.Task{}, ErrClosed
		}
		metrics.SetQueueDepth(len(q.ch))
		return t, nil
	}
}

// Len reports the number of buffered tasks.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Close closes the underlying channel for shutdown.
func (q *Queue) Close() {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if q.closed {
		return
	}
	close(q.ch)
	q.closed = true
}

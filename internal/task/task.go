// Package task defines the unit of work passed from intake to the workers.
package task

import (
	"sync"
	"sync/atomic"

	"github.com/JakeFAU/upload-runner/internal/protocol"
)

// Task is one file of a job, or a whole job for job-level actions such as
// login and verify.
type Task struct {
	JobID string
	Job   *protocol.Job
	// File is empty for job-level tasks.
	File string
	// Batch is shared by every file task of the same job. Nil for job-level tasks.
	Batch *Batch
}

// JobLevel reports whether the task carries no file.
func (t Task) JobLevel() bool {
	return t.File == ""
}

// Batch counts the outstanding files of a job and fires once when the last
// one settles.
type Batch struct {
	remaining atomic.Int64
	once      sync.Once
	onDone    func()
}

// NewBatch returns a Batch expecting n completions.
func NewBatch(n int, onDone func()) *Batch {
	b := &Batch{onDone: onDone}
	b.remaining.Store(int64(n))
	return b
}

// Done records one settled file. It is safe to call on a nil Batch.
func (b *Batch) Done() {
	if b == nil {
		return
	}
	if b.remaining.Add(-1) == 0 && b.onDone != nil {
		b.once.Do(b.onDone)
	}
}

// Remaining returns the number of files not yet settled.
func (b *Batch) Remaining() int {
	if b == nil {
		return 0
	}
	return int(b.remaining.Load())
}

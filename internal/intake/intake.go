// Package intake reads the job stream, routes each job by action and fans
// file work out to the task queue.
package intake

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/JakeFAU/upload-runner/internal/engine"
	"github.com/JakeFAU/upload-runner/internal/progress"
	"github.com/JakeFAU/upload-runner/internal/protocol"
	"github.com/JakeFAU/upload-runner/internal/task"
)

// Enqueuer accepts tasks. Close is called once the input is exhausted.
type Enqueuer interface {
	Enqueue(ctx context.Context, t task.Task) error
	Close()
}

// IDGenerator mints job correlation IDs.
type IDGenerator interface {
	NewID() (string, error)
}

// Intake turns input lines into queued tasks.
type Intake struct {
	queue  Enqueuer
	events progress.Emitter
	ids    IDGenerator
	logger *zap.Logger
}

// New constructs an Intake.
func New(queue Enqueuer, events progress.Emitter, ids IDGenerator, logger *zap.Logger) *Intake {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Intake{queue: queue, events: events, ids: ids, logger: logger}
}

type next struct {
	job protocol.Job
	err error
}

// Run reads jobs from r until end of input or until ctx ends, then closes the
// queue so workers can drain. Reading happens on its own goroutine because a
// blocked read cannot observe ctx.
func (in *Intake) Run(ctx context.Context, r io.Reader) error {
	defer in.queue.Close()

	lines := make(chan next)
	go func() {
		defer close(lines)
		reader := protocol.NewReader(r)
		for {
			job, err := reader.Next()
			select {
			case lines <- next{job: job, err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil && !isDecodeError(err) {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			in.logger.Info("intake stopped", zap.Error(ctx.Err()))
			return nil
		case n, ok := <-lines:
			if !ok {
				return nil
			}
			switch {
			case n.err == nil:
				in.Dispatch(ctx, n.job)
			case isDecodeError(n.err):
				in.logger.Warn("malformed job line", zap.Error(n.err))
				in.events.Emit(progress.Event{Type: progress.TypeError, Status: engine.KindSpec, Msg: n.err.Error()})
			case errors.Is(n.err, io.EOF):
				in.logger.Info("input closed")
				return nil
			default:
				return fmt.Errorf("read job stream: %w", n.err)
			}
		}
	}
}

// Dispatch routes one job.
func (in *Intake) Dispatch(ctx context.Context, job protocol.Job) {
	jobID, err := in.ids.NewID()
	if err != nil {
		in.logger.Error("job id generation failed", zap.Error(err))
	}
	log := in.logger.With(zap.String("job_id", jobID), zap.String("action", job.Action), zap.String("target", job.Target))

	switch job.Action {
	case protocol.ActionHTTPUpload:
		if job.Spec == nil {
			in.fail(jobID, job, engine.KindSpec, "http_upload requires http_spec field")
			return
		}
		in.fanOut(ctx, jobID, job)
	case protocol.ActionUpload:
		in.fanOut(ctx, jobID, job)
	case protocol.ActionLogin, protocol.ActionVerify:
		if err := in.queue.Enqueue(ctx, task.Task{JobID: jobID, Job: &job}); err != nil {
			log.Warn("verify job dropped", zap.Error(err))
			in.fail(jobID, job, engine.KindFailed, fmt.Sprintf("%s not started: %v", job.Action, err))
			return
		}
	default:
		if len(job.Files) == 0 {
			in.fail(jobID, job, engine.KindSpec, "Unknown action: "+job.Action)
			return
		}
		in.fanOut(ctx, jobID, job)
	}
	log.Debug("job accepted", zap.Int("files", len(job.Files)))
}

// fanOut queues one task per file. Each file is announced as Queued before it
// enters the queue, and the job's batch_complete fires after the last one settles.
func (in *Intake) fanOut(ctx context.Context, jobID string, job protocol.Job) {
	batchDone := func() {
		in.events.Emit(progress.Event{
			Type:   progress.TypeBatchComplete,
			Status: "done",
			JobID:  jobID,
			Target: job.Target,
		})
	}
	if len(job.Files) == 0 {
		batchDone()
		return
	}

	batch := task.NewBatch(len(job.Files), batchDone)
	for _, file := range job.Files {
		t := task.Task{JobID: jobID, Job: &job, File: file, Batch: batch}
		in.emitFile(t, progress.Event{Type: progress.TypeStatus, Status: progress.StatusQueued})
		if err := in.queue.Enqueue(ctx, t); err != nil {
			in.logger.Warn("file not queued", zap.String("job_id", jobID), zap.String("file", file), zap.Error(err))
			in.emitFile(t, progress.Event{Type: progress.TypeStatus, Status: progress.StatusFailed})
			in.emitFile(t, progress.Event{Type: progress.TypeError, Status: engine.KindFailed, Msg: fmt.Sprintf("Upload failed: %v", err)})
			batch.Done()
		}
	}
}

func (in *Intake) fail(jobID string, job protocol.Job, kind, msg string) {
	in.logger.Warn("job rejected", zap.String("job_id", jobID), zap.String("action", job.Action), zap.String("reason", msg))
	in.events.Emit(progress.Event{
		Type:   progress.TypeError,
		Status: kind,
		Msg:    msg,
		JobID:  jobID,
		Target: job.Target,
	})
}

func (in *Intake) emitFile(t task.Task, evt progress.Event) {
	evt.File = t.File
	evt.JobID = t.JobID
	evt.Target = t.Job.Target
	in.events.Emit(evt)
}

func isDecodeError(err error) bool {
	var de *protocol.DecodeError
	return errors.As(err, &de)
}

// Package worker executes upload tasks and reports their progress.
package worker

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/upload-runner/internal/engine"
	"github.com/JakeFAU/upload-runner/internal/metrics"
	"github.com/JakeFAU/upload-runner/internal/progress"
	"github.com/JakeFAU/upload-runner/internal/protocol"
	"github.com/JakeFAU/upload-runner/internal/queue/memory"
	"github.com/JakeFAU/upload-runner/internal/targets"
	"github.com/JakeFAU/upload-runner/internal/task"
)

// DefaultFileTimeout bounds a single file when Config leaves it unset.
const DefaultFileTimeout = 180 * time.Second

// Config controls Worker behavior.
type Config struct {
	// FileTimeout is the hard deadline for one file, chain included.
	FileTimeout time.Duration
}

// Queue is the task source.
type Queue interface {
	Dequeue(ctx context.Context) (task.Task, error)
}

// Executor runs a caller-supplied request spec.
type Executor interface {
	Execute(ctx context.Context, req engine.Request) (engine.Result, error)
}

// Targets resolves legacy targets and answers login checks.
type Targets interface {
	Lookup(target string) (targets.Handler, error)
	Verify(ctx context.Context, target string, creds map[string]string) (bool, string)
}

// Worker consumes tasks and emits their status events.
type Worker struct {
	id      int
	queue   Queue
	exec    Executor
	targets Targets
	events  progress.Emitter
	cfg     Config
	logger  *zap.Logger
}

// New constructs a Worker.
func New(
	id int,
	queue Queue,
	exec Executor,
	reg Targets,
	events progress.Emitter,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.FileTimeout <= 0 {
		cfg.FileTimeout = DefaultFileTimeout
	}
	return &Worker{
		id:      id,
		queue:   queue,
		exec:    exec,
		targets: reg,
		events:  events,
		cfg:     cfg,
		logger:  logger.With(zap.Int("worker", id)),
	}
}

// Run blocks, consuming tasks until the queue is closed and drained or the
// context finishes.
func (w *Worker) Run(ctx context.Context) {
	for {
		t, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, memory.ErrClosed) {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		w.logger.Debug("dequeued task", zap.String("job_id", t.JobID), zap.String("file", t.File))
		w.Process(ctx, t)
	}
}

// Process runs one task to its terminal event. It never panics.
func (w *Worker) Process(ctx context.Context, t task.Task) {
	if t.JobLevel() {
		w.verify(ctx, t)
		return
	}
	defer t.Batch.Done()
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	start := time.Now()
	name := filepath.Base(t.File)
	w.emit(t, progress.Event{Type: progress.TypeLog, Msg: fmt.Sprintf("Worker %d starting %s", w.id, name)})
	w.emit(t, progress.Event{Type: progress.TypeStatus, Status: progress.StatusProcessing})
	w.emit(t, progress.Event{Type: progress.TypeStatus, Status: progress.StatusUploading})

	res, err := w.run(ctx, t)
	dur := time.Since(start)
	kind := engine.Kind(err)

	if kind == engine.KindTimeout {
		w.emit(t, progress.Event{Type: progress.TypeLog, Msg: fmt.Sprintf("Worker %d timed out on %s", w.id, name)})
	}
	w.emit(t, progress.Event{Type: progress.TypeLog, Msg: fmt.Sprintf("Worker %d finished %s", w.id, name)})

	switch {
	case err == nil:
		w.emit(t, progress.Event{Type: progress.TypeResult, URL: res.URL, Thumb: res.Thumb})
		w.emit(t, progress.Event{Type: progress.TypeStatus, Status: progress.StatusDone, Dur: dur})
		metrics.ObserveUpload(t.Job.Target, progress.StatusDone, dur)
		w.logger.Info("upload complete",
			zap.String("job_id", t.JobID),
			zap.String("target", t.Job.Target),
			zap.String("file", t.File),
			zap.String("url", res.URL),
			zap.Duration("duration", dur),
		)
	default:
		status := progress.StatusFailed
		msg := fmt.Sprintf("Upload failed: %v", err)
		if kind == engine.KindTimeout {
			status = progress.StatusTimeout
			msg = fmt.Sprintf("Upload timed out after %s - worker released", humanDuration(w.cfg.FileTimeout))
		}
		w.emit(t, progress.Event{Type: progress.TypeStatus, Status: status, Dur: dur})
		w.emit(t, progress.Event{Type: progress.TypeError, Status: kind, Msg: msg})
		metrics.ObserveUpload(t.Job.Target, status, dur)
		w.logger.Warn("upload failed",
			zap.String("job_id", t.JobID),
			zap.String("target", t.Job.Target),
			zap.String("file", t.File),
			zap.String("kind", kind),
			zap.Duration("duration", dur),
			zap.Error(err),
		)
	}
}

type outcome struct {
	res engine.Result
	err error
}

// run races the upload against the file deadline. The upload goroutine is
// abandoned on timeout; its late result lands in a buffered channel nobody reads.
func (w *Worker) run(parent context.Context, t task.Task) (engine.Result, error) {
	ctx, cancel := context.WithTimeout(parent, w.cfg.FileTimeout)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				w.logger.Error("upload panicked",
					zap.String("job_id", t.JobID),
					zap.String("file", t.File),
					zap.Any("panic", r),
					zap.Stack("stack"),
				)
				done <- outcome{err: fmt.Errorf("%w: %v", engine.ErrPanic, r)}
			}
		}()
		res, err := w.upload(ctx, t)
		done <- outcome{res: res, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return engine.Result{}, w.timeoutError(out.err)
		}
		return out.res, out.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return engine.Result{}, w.timeoutError(ctx.Err())
		}
		return engine.Result{}, fmt.Errorf("upload aborted: %w", ctx.Err())
	}
}

func (w *Worker) timeoutError(cause error) error {
	return fmt.Errorf("%w after %s: %w", engine.ErrTimeout, w.cfg.FileTimeout, cause)
}

func (w *Worker) upload(ctx context.Context, t task.Task) (engine.Result, error) {
	if t.Job.Action == protocol.ActionHTTPUpload {
		return w.exec.Execute(ctx, engine.Request{
			JobID:  t.JobID,
			Target: t.Job.Target,
			File:   t.File,
			Spec:   t.Job.Spec,
		})
	}
	h, err := w.targets.Lookup(t.Job.Target)
	if err != nil {
		return engine.Result{}, err
	}
	return h.Upload(ctx, targets.Upload{JobID: t.JobID, File: t.File, Job: t.Job})
}

// verify answers login and verify jobs with a single result event.
func (w *Worker) verify(parent context.Context, t task.Task) {
	ctx, cancel := context.WithTimeout(parent, w.cfg.FileTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("verify panicked", zap.String("job_id", t.JobID), zap.Any("panic", r), zap.Stack("stack"))
			w.emit(t, progress.Event{
				Type:   progress.TypeError,
				Status: engine.KindPanic,
				Msg:    fmt.Sprintf("%s: %v", t.Job.Action, r),
			})
		}
	}()

	ok, msg := w.targets.Verify(ctx, t.Job.Target, t.Job.Creds)
	status := "failed"
	if ok {
		status = "success"
	}
	w.emit(t, progress.Event{Type: progress.TypeResult, Status: status, Msg: msg})
	w.logger.Info("credentials checked",
		zap.String("job_id", t.JobID),
		zap.String("target", t.Job.Target),
		zap.Bool("ok", ok),
	)
}

func (w *Worker) emit(t task.Task, evt progress.Event) {
	evt.File = t.File
	evt.JobID = t.JobID
	if t.Job != nil {
		evt.Target = t.Job.Target
	}
	w.events.Emit(evt)
}

func humanDuration(d time.Duration) string {
	if d >= time.Minute && d%time.Minute == 0 {
		if n := int(d / time.Minute); n != 1 {
			return fmt.Sprintf("%d minutes", n)
		}
		return "1 minute"
	}
	return d.String()
}

package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/upload-runner/internal/progress"
)

// LogSink mirrors output events into structured logs so a stderr capture
// carries the same history the caller saw on stdout.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch using structured fields.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.String("type", string(evt.Type)),
			zap.String("job_id", evt.JobID),
			zap.String("target", evt.Target),
			zap.String("file", evt.File),
			zap.String("status", evt.Status),
		}
		if evt.URL != "" {
			fields = append(fields, zap.String("url", evt.URL), zap.String("thumb", evt.Thumb))
		}
		if evt.Msg != "" {
			fields = append(fields, zap.String("msg", evt.Msg))
		}
		if evt.Dur > 0 {
			fields = append(fields, zap.Duration("dur", evt.Dur))
		}
		switch evt.Type {
		case progress.TypeError:
			s.logger.Warn("output event", fields...)
		case progress.TypeLog, progress.TypeData:
			s.logger.Debug("output event", fields...)
		default:
			s.logger.Info("output event", fields...)
		}
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}

package sinks

import (
	"context"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/upload-runner/internal/progress"
)

// PrometheusSink exports per-file outcomes derived from the output stream.
type PrometheusSink struct {
	filesQueued    prometheus.Counter
	filesCompleted *prometheus.CounterVec
	fileRuntime    *prometheus.HistogramVec
	failures       *prometheus.CounterVec
	batches        prometheus.Counter
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		filesQueued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "upload_runner_files_queued_total",
			Help: "Files accepted onto the work queue.",
		}),
		filesCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "upload_runner_files_completed_total",
			Help: "Files reaching a terminal status, partitioned by status.",
		}, []string{"status"}),
		fileRuntime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "upload_runner_file_runtime_seconds",
			Help:    "Wall time per file partitioned by terminal status.",
			Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 180},
		}, []string{"status"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "upload_runner_failures_total",
			Help: "Error events partitioned by error kind.",
		}, []string{"kind"}),
		batches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "upload_runner_batches_completed_total",
			Help: "Upload jobs whose files all reached a terminal status.",
		}),
	}
	for _, collector := range []prometheus.Collector{
		s.filesQueued,
		s.filesCompleted,
		s.fileRuntime,
		s.failures,
		s.batches,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register output collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from the batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Type {
	case progress.TypeStatus:
		if evt.Status == progress.StatusQueued {
			s.filesQueued.Inc()
			return
		}
		if !evt.Terminal() {
			return
		}
		label := strings.ToLower(evt.Status)
		s.filesCompleted.WithLabelValues(label).Inc()
		if evt.Dur > 0 {
			s.fileRuntime.WithLabelValues(label).Observe(evt.Dur.Seconds())
		}
	case progress.TypeError:
		kind := evt.Status
		if kind == "" {
			kind = "failed"
		}
		s.failures.WithLabelValues(kind).Inc()
	case progress.TypeBatchComplete:
		s.batches.Inc()
	}
}

// Close implements the Sink interface; collectors stay registered.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

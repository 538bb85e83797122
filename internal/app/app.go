// Package app builds the long-lived runner services from configuration and
// runs one session over the job stream.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/JakeFAU/upload-runner/internal/config"
	"github.com/JakeFAU/upload-runner/internal/dispatcher"
	"github.com/JakeFAU/upload-runner/internal/engine"
	"github.com/JakeFAU/upload-runner/internal/id/uuid"
	"github.com/JakeFAU/upload-runner/internal/intake"
	"github.com/JakeFAU/upload-runner/internal/policy/ratelimit"
	"github.com/JakeFAU/upload-runner/internal/progress"
	"github.com/JakeFAU/upload-runner/internal/progress/sinks"
	"github.com/JakeFAU/upload-runner/internal/queue/memory"
	"github.com/JakeFAU/upload-runner/internal/server"
	localstorage "github.com/JakeFAU/upload-runner/internal/storage/local"
	"github.com/JakeFAU/upload-runner/internal/targets"
	"github.com/JakeFAU/upload-runner/internal/worker"
)

// Options carries dependencies that tests replace.
type Options struct {
	// Registerer receives the output-stream collectors. Defaults to the global registry.
	Registerer prometheus.Registerer
	// Endpoints overrides the built-in target URLs.
	Endpoints *targets.Endpoints
}

// App holds every service of one runner process.
type App struct {
	cfg        config.Config
	logger     *zap.Logger
	hub        *progress.Hub
	dispatcher *dispatcher.Dispatcher
	intake     *intake.Intake
	server     *server.Server
	draining   atomic.Bool
}

// New wires the runner. Protocol events are written to out.
func New(cfg config.Config, logger *zap.Logger, out io.Writer, opts Options) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger}

	promSink, err := sinks.NewPrometheusSink(opts.Registerer)
	if err != nil {
		return nil, fmt.Errorf("init prometheus sink: %w", err)
	}
	a.hub = progress.NewHub(
		progress.Config{Logger: logger},
		sinks.NewStreamSink(out),
		sinks.NewLogSink(logger),
		promSink,
	)

	var dump engine.DumpOutput
	if cfg.Debug.DumpDir != "" {
		store, err := localstorage.New(localstorage.Config{BaseDir: cfg.Debug.DumpDir})
		if err != nil {
			return nil, fmt.Errorf("init dump store: %w", err)
		}
		dump = store
		logger.Info("http exchange dumps enabled", zap.String("dir", cfg.Debug.DumpDir))
	}

	clients := engine.NewClients(engine.ClientConfig{
		Timeout:               cfg.HTTP.Timeout,
		ResponseHeaderTimeout: cfg.HTTP.ResponseHeaderTimeout,
		UserAgent:             cfg.HTTP.UserAgent,
		Dump:                  dump,
		Logger:                logger.Named("http"),
	})
	limiter := ratelimit.New(ratelimit.Config{
		GlobalRPS:     cfg.RateLimit.GlobalRPS,
		GlobalBurst:   cfg.RateLimit.GlobalBurst,
		DefaultRPS:    cfg.RateLimit.DefaultRPS,
		DefaultBurst:  cfg.RateLimit.DefaultBurst,
		StrictRPS:     cfg.RateLimit.StrictRPS,
		StrictBurst:   cfg.RateLimit.StrictBurst,
		StrictTargets: cfg.RateLimit.StrictTargets,
		KnownTargets:  ratelimit.DefaultConfig().KnownTargets,
	})
	eng := engine.New(engine.Config{PreRequestTimeout: cfg.HTTP.PreRequestTimeout}, clients, limiter, logger.Named("engine"))

	endpoints := targets.DefaultEndpoints()
	if opts.Endpoints != nil {
		endpoints = *opts.Endpoints
	}
	scraper := targets.NewScraper(targets.ScraperConfig{UserAgent: cfg.HTTP.UserAgent})
	registry := targets.Builtin(eng, endpoints, scraper, logger.Named("targets"))

	queue := memory.NewQueue(cfg.Runner.QueueDepth)
	workers := make([]*worker.Worker, 0, cfg.Runner.Workers)
	for i := 0; i < cfg.Runner.Workers; i++ {
		workers = append(workers, worker.New(
			i+1, queue, eng, registry, a.hub,
			worker.Config{FileTimeout: cfg.Runner.FileTimeout},
			logger.Named("worker"),
		))
	}
	a.dispatcher = dispatcher.New(queue, workers)
	a.intake = intake.New(a.dispatcher, a.hub, uuid.NewGenerator(), logger.Named("intake"))

	if cfg.Metrics.Addr != "" {
		a.server = server.New(cfg.Metrics.Addr, func() bool { return !a.draining.Load() }, logger.Named("server"))
	}
	return a, nil
}

// Run reads jobs from in until end of input or until ctx is cancelled, then
// lets in-flight and queued files finish before returning. Cancelling ctx
// stops intake only; workers drain on their own context.
func (a *App) Run(ctx context.Context, in io.Reader) error {
	if a.server != nil {
		if err := a.server.Start(); err != nil {
			return err
		}
	}
	a.logger.Info("runner started",
		zap.Int("workers", a.cfg.Runner.Workers),
		zap.Int("queue_depth", a.cfg.Runner.QueueDepth),
		zap.Duration("file_timeout", a.cfg.Runner.FileTimeout),
	)

	drained := make(chan struct{})
	go func() {
		defer close(drained)
		a.dispatcher.Run(context.WithoutCancel(ctx))
	}()

	intakeErr := a.intake.Run(ctx, in)
	a.draining.Store(true)
	a.logger.Info("intake finished, draining workers")
	<-drained
	a.logger.Info("workers drained")

	return errors.Join(intakeErr, a.close())
}

func (a *App) close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var errs []error
	if err := a.hub.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

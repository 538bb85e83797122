package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/upload-runner/internal/protocol"
)

// Limiter gates outgoing work per target.
type Limiter interface {
	Acquire(ctx context.Context, target string) error
}

// Config holds engine timeouts.
type Config struct {
	// PreRequestTimeout bounds each chain step. Zero leaves only the caller's deadline.
	PreRequestTimeout time.Duration
}

// Engine runs request specs. It is safe for concurrent use.
type Engine struct {
	cfg     Config
	clients *Clients
	limiter Limiter
	logger  *zap.Logger
}

// New wires an Engine. A nil limiter disables rate limiting.
func New(cfg Config, clients *Clients, limiter Limiter, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clients == nil {
		clients = NewClients(ClientConfig{Logger: logger})
	}
	return &Engine{cfg: cfg, clients: clients, limiter: limiter, logger: logger}
}

// Request is the input for one file.
type Request struct {
	JobID  string
	Target string
	File   string
	Spec   *protocol.RequestSpec
}

// Result is the normalized outcome of an upload.
type Result struct {
	URL   string
	Thumb string
}

// Execute validates the spec, waits for a rate-limit token, runs the
// pre-request chain, sends the multipart upload, and parses the response.
func (e *Engine) Execute(ctx context.Context, req Request) (Result, error) {
	if err := req.Spec.Validate(); err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrSpec, err)
	}
	if e.limiter != nil {
		if err := e.limiter.Acquire(ctx, req.Target); err != nil {
			return Result{}, fmt.Errorf("acquire token for %q: %w", req.Target, err)
		}
	}

	chain, err := e.RunChain(ctx, req.JobID, req.Spec.PreRequest)
	if err != nil {
		return Result{}, err
	}
	return e.Upload(ctx, req, chain)
}

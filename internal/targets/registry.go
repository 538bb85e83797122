// Package targets holds the built-in upload handlers for the legacy "upload"
// action. Each handler expresses its target as a request spec and runs it
// through the engine.
package targets

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/upload-runner/internal/engine"
	"github.com/JakeFAU/upload-runner/internal/protocol"
)

// Executor runs a request spec for one file.
type Executor interface {
	Execute(ctx context.Context, req engine.Request) (engine.Result, error)
}

// Upload is one file of a legacy upload job.
type Upload struct {
	JobID string
	File  string
	Job   *protocol.Job
}

// Handler uploads a single file to a fixed target.
type Handler interface {
	Upload(ctx context.Context, up Upload) (engine.Result, error)
}

// Verifier checks credentials for a target.
type Verifier interface {
	Verify(ctx context.Context, creds map[string]string) (ok bool, msg string)
}

// Endpoints are the upload URLs of the built-in targets.
type Endpoints struct {
	Pixhost string
	Imx     string
}

// DefaultEndpoints returns the production endpoints.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Pixhost: "https://api.pixhost.to/images",
		Imx:     "https://api.imx.to/v1/upload.php",
	}
}

// Registry maps target identifiers to handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Builtin returns a registry preloaded with pixhost.to and imx.to. A nil
// scraper keeps the imx API URL pair as returned.
func Builtin(exec Executor, endpoints Endpoints, scraper *Scraper, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := NewRegistry()
	r.Register("pixhost.to", &pixhost{exec: exec, endpoint: endpoints.Pixhost})
	r.Register("imx.to", &imx{exec: exec, endpoint: endpoints.Imx, scraper: scraper, logger: logger})
	return r
}

// Register adds or replaces the handler for target.
func (r *Registry) Register(target string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[normalize(target)] = h
}

// Lookup returns the handler for target. Unknown targets are spec errors.
func (r *Registry) Lookup(target string) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[normalize(target)]
	if !ok {
		return nil, fmt.Errorf("%w: unknown service: %s", engine.ErrSpec, target)
	}
	return h, nil
}

// Verify answers a login or verify request. Targets without a verifier need
// no login.
func (r *Registry) Verify(ctx context.Context, target string, creds map[string]string) (bool, string) {
	h, err := r.Lookup(target)
	if err != nil {
		return true, "No login required"
	}
	v, ok := h.(Verifier)
	if !ok {
		return true, "No login required"
	}
	return v.Verify(ctx, creds)
}

func normalize(target string) string {
	return strings.ToLower(strings.TrimSpace(target))
}

func textField(v string) protocol.MultipartField {
	return protocol.MultipartField{Type: protocol.FieldText, Value: v}
}

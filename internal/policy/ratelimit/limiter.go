// Package ratelimit implements global and per-target token bucket limiters.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/JakeFAU/upload-runner/internal/metrics"
)

// ErrWaitCancelled is returned when the caller's context ends while queued for a token.
var ErrWaitCancelled = errors.New("rate-limit wait cancelled")

// Config holds rate limiter configuration.
type Config struct {
	GlobalRPS     float64
	GlobalBurst   int
	DefaultRPS    float64
	DefaultBurst  int
	StrictRPS     float64
	StrictBurst   int
	StrictTargets []string
	// KnownTargets get a bucket up front instead of on first use.
	KnownTargets []string
}

// DefaultConfig mirrors the runner's built-in limits.
func DefaultConfig() Config {
	return Config{
		GlobalRPS:     10,
		GlobalBurst:   20,
		DefaultRPS:    2,
		DefaultBurst:  5,
		StrictRPS:     1,
		StrictBurst:   3,
		StrictTargets: []string{"vipergirls.to"},
		KnownTargets:  []string{"imx.to", "pixhost.to", "vipr.im", "turboimagehost", "imagebam.com"},
	}
}

// Limiter gates outgoing work behind one global bucket and one bucket per target.
type Limiter struct {
	global *rate.Limiter

	mu       sync.RWMutex
	limiters map[string]*rate.Limiter

	defaultRate  rate.Limit
	defaultBurst int
	strictRate   rate.Limit
	strictBurst  int
	strict       map[string]struct{}
}

// New creates a new Limiter.
func New(cfg Config) *Limiter {
	l := &Limiter{
		global:       rate.NewLimiter(limitOf(cfg.GlobalRPS), burstOf(cfg.GlobalBurst)),
		limiters:     make(map[string]*rate.Limiter),
		defaultRate:  limitOf(cfg.DefaultRPS),
		defaultBurst: burstOf(cfg.DefaultBurst),
		strictRate:   limitOf(cfg.StrictRPS),
		strictBurst:  burstOf(cfg.StrictBurst),
		strict:       make(map[string]struct{}, len(cfg.StrictTargets)),
	}
	for _, t := range cfg.StrictTargets {
		l.strict[normalize(t)] = struct{}{}
	}
	for _, t := range append(append([]string{}, cfg.KnownTargets...), cfg.StrictTargets...) {
		l.bucket(t)
	}
	return l
}

// Acquire blocks until both the global bucket and the target's bucket yield a token.
// An empty target waits on the global bucket only.
func (l *Limiter) Acquire(ctx context.Context, target string) error {
	start := time.Now()
	if err := l.global.Wait(ctx); err != nil {
		return fmt.Errorf("global %w: %w", ErrWaitCancelled, err)
	}
	if target != "" {
		if err := l.bucket(target).Wait(ctx); err != nil {
			return fmt.Errorf("target %w: %w", ErrWaitCancelled, err)
		}
	}
	// Immediate tokens are not interesting as delays.
	if waited := time.Since(start); waited > time.Millisecond {
		metrics.ObserveRateLimitDelay(target, waited)
	}
	return nil
}

// Targets reports how many per-target buckets exist.
func (l *Limiter) Targets() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.limiters)
}

func (l *Limiter) bucket(target string) *rate.Limiter {
	key := normalize(target)
	l.mu.RLock()
	limiter, ok := l.limiters[key]
	l.mu.RUnlock()
	if ok {
		return limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if limiter, ok = l.limiters[key]; ok {
		return limiter
	}
	if _, strict := l.strict[key]; strict {
		limiter = rate.NewLimiter(l.strictRate, l.strictBurst)
	} else {
		limiter = rate.NewLimiter(l.defaultRate, l.defaultBurst)
	}
	l.limiters[key] = limiter
	return limiter
}

func normalize(target string) string {
	return strings.ToLower(strings.TrimSpace(target))
}

func limitOf(rps float64) rate.Limit {
	if rps <= 0 {
		return rate.Inf
	}
	return rate.Limit(rps)
}

func burstOf(burst int) int {
	if burst <= 0 {
		return 1
	}
	return burst
}

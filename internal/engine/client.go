package engine

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"
)

// DefaultUserAgent is sent unless a spec header overrides it.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// ClientConfig tunes the HTTP clients used by the engine.
type ClientConfig struct {
	Timeout               time.Duration
	ResponseHeaderTimeout time.Duration
	UserAgent             string
	// Dump receives a rendering of every exchange when set.
	Dump   DumpOutput
	Logger *zap.Logger
}

// Clients owns the shared default client and mints per-chain session clients.
// All clients share one transport and its connection pool.
type Clients struct {
	cfg       ClientConfig
	transport *http.Transport
	shared    *resty.Client
	seq       atomic.Uint64
}

// NewClients builds the shared client. The shared client keeps no cookies.
func NewClients(cfg ClientConfig) *Clients {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 180 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	c := &Clients{
		cfg: cfg,
		transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			MaxIdleConnsPerHost:   10,
			ResponseHeaderTimeout: cfg.ResponseHeaderTimeout,
			ForceAttemptHTTP2:     true,
		},
	}
	c.shared = c.build(nil)
	return c
}

// Shared returns the process-wide client. It is safe for concurrent use.
func (c *Clients) Shared() *resty.Client {
	return c.shared
}

// Session returns a new client with its own cookie jar. It must stay private
// to the task that created it.
func (c *Clients) Session() (*resty.Client, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	return c.build(jar), nil
}

// record dumps an exchange that bypassed resty.
func (c *Clients) record(ctx context.Context, req *http.Request, res *http.Response, body []byte) {
	if c.cfg.Dump == nil {
		return
	}
	writeDump(ctx, c.cfg.Dump, &c.seq, c.cfg.Logger, rawExchange(req, res, body))
}

func (c *Clients) build(jar http.CookieJar) *resty.Client {
	client := resty.New().
		SetTransport(c.transport).
		SetTimeout(c.cfg.Timeout).
		SetHeader("User-Agent", c.cfg.UserAgent).
		SetAllowGetMethodPayload(true).
		SetLogger(c.cfg.Logger.Sugar())
	// resty installs a jar by default; replace it even when jar is nil.
	client.SetCookieJar(jar)
	instrument(client, c.cfg.Dump, &c.seq, c.cfg.Logger)
	return client
}

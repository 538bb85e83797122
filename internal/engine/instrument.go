package engine

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// DumpOutput persists rendered HTTP exchanges for debugging.
type DumpOutput interface {
	Write(ctx context.Context, id string, contents string) error
}

type exchangeKey struct{}

type exchangeLabel struct {
	jobID string
	step  string
}

// withExchange labels requests made with ctx so dumps can be grouped by job.
func withExchange(ctx context.Context, jobID, step string) context.Context {
	return context.WithValue(ctx, exchangeKey{}, exchangeLabel{jobID: jobID, step: step})
}

func instrument(client *resty.Client, out DumpOutput, seq *atomic.Uint64, logger *zap.Logger) {
	if out == nil {
		return
	}
	client.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		writeDump(res.Request.Context(), out, seq, logger, restyExchange(res))
		return nil
	})
}

func writeDump(ctx context.Context, out DumpOutput, seq *atomic.Uint64, logger *zap.Logger, x exchange) {
	id := dumpID(ctx, seq.Add(1))
	if err := out.Write(context.WithoutCancel(ctx), id, x.String()); err != nil {
		logger.Warn("failed to write exchange dump", zap.String("id", id), zap.Error(err))
	}
}

func dumpID(ctx context.Context, n uint64) string {
	label, _ := ctx.Value(exchangeKey{}).(exchangeLabel)
	if label.jobID == "" {
		label.jobID = "unlabeled"
	}
	if label.step == "" {
		label.step = "request"
	}
	return fmt.Sprintf("%s/%04d-%s.txt", label.jobID, n, sanitizeStep(label.step))
}

func sanitizeStep(step string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, step)
}

// 1: request method
// 2: request url
// 3: request headers
// 4: request body
// 5: response status
// 6: response url
// 7: response headers
// 8: response body
const exchangeTemplate = `---- REQUEST ----

%s %s

%s

%s

---- RESPONSE ----

%s %s

%s

%s`

// exchange is one request/response pair as it is rendered into a dump.
type exchange struct {
	method      string
	url         string
	reqHeaders  http.Header
	reqBody     string
	status      int
	responseURL string
	resHeaders  http.Header
	resBody     []byte
}

func restyExchange(res *resty.Response) exchange {
	raw := res.Request.RawRequest
	x := exchange{
		method:      res.Request.Method,
		url:         res.Request.URL,
		reqBody:     formatRequestBody(raw),
		status:      res.StatusCode(),
		responseURL: redirectTarget(res.RawResponse, res.Request.URL),
		resHeaders:  res.Header(),
		resBody:     res.Body(),
	}
	if raw != nil {
		x.reqHeaders = raw.Header
	}
	return x
}

// rawExchange renders a request sent on the underlying http.Client.
func rawExchange(req *http.Request, res *http.Response, body []byte) exchange {
	return exchange{
		method:      req.Method,
		url:         req.URL.String(),
		reqHeaders:  req.Header,
		reqBody:     formatRequestBody(req),
		status:      res.StatusCode,
		responseURL: redirectTarget(res, req.URL.String()),
		resHeaders:  res.Header,
		resBody:     body,
	}
}

func redirectTarget(res *http.Response, fallback string) string {
	if res != nil {
		if loc, err := res.Location(); err == nil {
			return loc.String()
		}
	}
	return fallback
}

func (x exchange) String() string {
	return fmt.Sprintf(
		exchangeTemplate,
		x.method, x.url,
		formatHeaders(x.reqHeaders),
		x.reqBody,
		strconv.Itoa(x.status), x.responseURL,
		formatHeaders(x.resHeaders),
		truncateBody(x.resBody),
	)
}

// maxDumpBody caps the response body kept in a dump.
const maxDumpBody = 64 << 10

func truncateBody(body []byte) string {
	if len(body) <= maxDumpBody {
		return string(body)
	}
	return fmt.Sprintf("%s\n... (%d bytes truncated)", body[:maxDumpBody], len(body)-maxDumpBody)
}

func formatHeaders(headers http.Header) string {
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var out strings.Builder
	for _, k := range keys {
		for _, v := range headers[k] {
			fmt.Fprintf(&out, "%s: %s\n", k, v)
		}
	}
	return strings.TrimSuffix(out.String(), "\n")
}

func formatRequestBody(req *http.Request) string {
	if req == nil || req.GetBody == nil {
		return "(body not replayable)"
	}
	body, err := req.GetBody()
	if err != nil {
		return fmt.Sprintf("failed to get request body: %s", err)
	}
	defer func() { _ = body.Close() }()
	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Sprintf("failed to read request body: %s", err)
	}
	return string(data)
}

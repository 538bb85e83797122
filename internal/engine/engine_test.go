package engine

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/JakeFAU/upload-runner/internal/policy/ratelimit"
	"github.com/JakeFAU/upload-runner/internal/protocol"
)

func newTestEngine(t *testing.T, limiter Limiter, dump DumpOutput) *Engine {
	t.Helper()
	logger := zaptest.NewLogger(t)
	clients := NewClients(ClientConfig{Timeout: 5 * time.Second, Dump: dump, Logger: logger})
	return New(Config{PreRequestTimeout: 5 * time.Second}, clients, limiter, logger)
}

func writeTempFile(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

// TestExecuteStatelessJSON uploads with no pre-request and parses direct paths.
func TestExecuteStatelessJSON(t *testing.T) {
	t.Parallel()

	var gotFile, gotTitle, gotUA, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}
		f, hdr, err := r.FormFile("image")
		if assert.NoError(t, err) {
			data, _ := io.ReadAll(f)
			gotFile = hdr.Filename + ":" + string(data)
		}
		gotTitle = r.FormValue("title")
		gotUA = r.Header.Get("User-Agent")
		gotAuth = r.Header.Get("X-Api-Key")
		_, _ = io.WriteString(w, `{"status":"success","data":{"image_url":"http://x/i.jpg","thumbnail_url":"http://x/t.jpg"}}`)
	}))
	defer srv.Close()

	file := writeTempFile(t, "a.jpg", "JPEGDATA")
	e := newTestEngine(t, nil, nil)
	res, err := e.Execute(context.Background(), Request{
		JobID: "job-a", Target: "example", File: file,
		Spec: &protocol.RequestSpec{
			URL:     srv.URL + "/upload",
			Method:  "POST",
			Headers: map[string]string{"X-API-KEY": "k1"},
			MultipartFields: map[string]protocol.MultipartField{
				"image": {Type: protocol.FieldFile},
				"title": {Type: protocol.FieldText, Value: "hello"},
			},
			ResponseParser: protocol.ResponseParserSpec{
				Type: protocol.ShapeJSON, StatusPath: "status", SuccessValue: "success",
				URLPath: "data.image_url", ThumbPath: "data.thumbnail_url",
			},
		},
	})
	require.NoError(t, err)
	require.Equal(t, Result{URL: "http://x/i.jpg", Thumb: "http://x/t.jpg"}, res)
	require.Equal(t, "a.jpg:JPEGDATA", gotFile)
	require.Equal(t, "hello", gotTitle)
	require.Equal(t, DefaultUserAgent, gotUA)
	require.Equal(t, "k1", gotAuth)
}

// TestExecuteURLTemplate builds the resource URL from the id and the file name.
func TestExecuteURLTemplate(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"success":true,"id":"abc123"}`)
	}))
	defer srv.Close()

	file := writeTempFile(t, "photo.jpg", "x")
	res, err := newTestEngine(t, nil, nil).Execute(context.Background(), Request{
		File: file,
		Spec: &protocol.RequestSpec{
			URL:             srv.URL,
			MultipartFields: map[string]protocol.MultipartField{"file": {Type: protocol.FieldFile}},
			ResponseParser: protocol.ResponseParserSpec{
				Type: protocol.ShapeJSON, StatusPath: "success", SuccessValue: "true",
				URLTemplate: "https://x/p/{id}/{filename}",
			},
		},
	})
	require.NoError(t, err)
	require.Equal(t, "https://x/p/abc123/photo.jpg", res.URL)
	require.Equal(t, "https://x/p/abc123/photo.jpg", res.Thumb)
}

// TestExecuteTwoStepSession logs in, scrapes a session id, and uploads with cookies.
func TestExecuteTwoStepSession(t *testing.T) {
	t.Parallel()

	var uploadCookie, uploadSession, homeToken string
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "alice", r.PostForm.Get("user"))
		http.SetCookie(w, &http.Cookie{Name: "sid", Value: "cookie-1", Path: "/"})
		_, _ = io.WriteString(w, `<html><input name="csrf" value="csrf-9"></html>`)
	})
	mux.HandleFunc("/home", func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("sid"); err != nil || c.Value != "cookie-1" {
			http.Error(w, "no session", http.StatusUnauthorized)
			return
		}
		homeToken = r.Header.Get("X-CSRF")
		_, _ = io.WriteString(w, `<html><div id="sess" data-x="1"> S-123 </div></html>`)
	})
	mux.HandleFunc("/upload", func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("sid"); err == nil {
			uploadCookie = c.Value
		}
		if assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			uploadSession = r.FormValue("session_id")
		}
		_, _ = io.WriteString(w, `{"url":"http://x/u/1"}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	file := writeTempFile(t, "c.png", "PNG")
	res, err := newTestEngine(t, nil, nil).Execute(context.Background(), Request{
		JobID: "job-c", File: file,
		Spec: &protocol.RequestSpec{
			URL: srv.URL + "/upload",
			MultipartFields: map[string]protocol.MultipartField{
				"file":       {Type: protocol.FieldFile},
				"session_id": {Type: protocol.FieldDynamic, Value: "session_id"},
			},
			ResponseParser: protocol.ResponseParserSpec{Type: protocol.ShapeJSON, URLPath: "url"},
			PreRequest: &protocol.PreRequestSpec{
				Action: "login", URL: srv.URL + "/login", Method: "POST", UseCookies: true,
				FormFields:    map[string]string{"user": "alice"},
				ResponseType:  protocol.ShapeHTML,
				ExtractFields: map[string]string{"csrf": "input[name=csrf]"},
				FollowUp: &protocol.PreRequestSpec{
					Action: "home", URL: srv.URL + "/home", UseCookies: true,
					Headers:       map[string]string{"X-CSRF": "{csrf}"},
					ResponseType:  protocol.ShapeHTML,
					ExtractFields: map[string]string{"session_id": "#sess"},
				},
			},
		},
	})
	require.NoError(t, err)
	require.Equal(t, "http://x/u/1", res.URL)
	require.Equal(t, "csrf-9", homeToken)
	require.Equal(t, "S-123", uploadSession)
	require.Equal(t, "cookie-1", uploadCookie)
}

// TestRunChainMergesValuesWithOverride checks child keys override parent keys.
func TestRunChainMergesValuesWithOverride(t *testing.T) {
	t.Parallel()

	var step3Header string
	mux := http.NewServeMux()
	mux.HandleFunc("/one", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"a":"1","b":"first"}`)
	})
	mux.HandleFunc("/two", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"b":"2"}`)
	})
	mux.HandleFunc("/three", func(w http.ResponseWriter, r *http.Request) {
		step3Header = r.Header.Get("X-Seen")
		_, _ = io.WriteString(w, `{}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	chain, err := newTestEngine(t, nil, nil).RunChain(context.Background(), "job", &protocol.PreRequestSpec{
		URL: srv.URL + "/one", ResponseType: protocol.ShapeJSON,
		ExtractFields: map[string]string{"a": "a", "b": "b"},
		FollowUp: &protocol.PreRequestSpec{
			URL: srv.URL + "/two", ResponseType: protocol.ShapeJSON,
			ExtractFields: map[string]string{"b": "b"},
			FollowUp: &protocol.PreRequestSpec{
				URL: srv.URL + "/three", ResponseType: protocol.ShapeJSON,
				Headers: map[string]string{"X-Seen": "{a}/{b}/{c}"},
			},
		},
	})
	require.NoError(t, err)
	require.Equal(t, map[string]string{"a": "1", "b": "2"}, chain.Values)
	require.Nil(t, chain.Session)
	require.Equal(t, "1/2/{c}", step3Header)
}

// TestRunChainFirstStepIsNotSubstituted sends the first step's templates verbatim.
func TestRunChainFirstStepIsNotSubstituted(t *testing.T) {
	t.Parallel()

	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("X-Token")
		_, _ = io.WriteString(w, `ok`)
	}))
	defer srv.Close()

	_, err := newTestEngine(t, nil, nil).RunChain(context.Background(), "job", &protocol.PreRequestSpec{
		URL: srv.URL, Headers: map[string]string{"X-Token": "{token}"},
	})
	require.NoError(t, err)
	require.Equal(t, "{token}", got)
}

// TestExecuteChainFailureAbortsUpload ensures a failed step prevents the main request.
func TestExecuteChainFailureAbortsUpload(t *testing.T) {
	t.Parallel()

	var uploads atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/step", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `not json`)
	})
	mux.HandleFunc("/upload", func(http.ResponseWriter, *http.Request) {
		uploads.Add(1)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	_, err := newTestEngine(t, nil, nil).Execute(context.Background(), Request{
		File: writeTempFile(t, "f.jpg", "x"),
		Spec: &protocol.RequestSpec{
			URL:            srv.URL + "/upload",
			ResponseParser: protocol.ResponseParserSpec{Type: protocol.ShapeJSON, URLPath: "url"},
			PreRequest: &protocol.PreRequestSpec{
				Action: "token", URL: srv.URL + "/step", ResponseType: protocol.ShapeJSON,
			},
		},
	})
	require.ErrorIs(t, err, ErrChain)
	require.Contains(t, err.Error(), "step 1 (token)")
	require.Equal(t, int32(0), uploads.Load())
	require.Equal(t, KindChain, Kind(err))
}

// TestExecuteUnresolvedDynamicFieldMakesNoMainRequest aborts before any upload bytes are sent.
func TestExecuteUnresolvedDynamicFieldMakesNoMainRequest(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	_, err := newTestEngine(t, nil, nil).Execute(context.Background(), Request{
		File: writeTempFile(t, "f.jpg", "x"),
		Spec: &protocol.RequestSpec{
			URL: srv.URL,
			MultipartFields: map[string]protocol.MultipartField{
				"file":  {Type: protocol.FieldFile},
				"token": {Type: protocol.FieldDynamic, Value: "upload_token"},
			},
			ResponseParser: protocol.ResponseParserSpec{Type: protocol.ShapeJSON, URLPath: "url"},
		},
	})
	require.ErrorIs(t, err, ErrDynamicFieldUnresolved)
	require.Contains(t, err.Error(), `"upload_token"`)
	require.Equal(t, int32(0), calls.Load())
}

// TestExecuteEmptyExtractionStillResolvesDynamicField keeps empty matches as present values.
func TestExecuteEmptyExtractionStillResolvesDynamicField(t *testing.T) {
	t.Parallel()

	var got []string
	var mu sync.Mutex
	mux := http.NewServeMux()
	mux.HandleFunc("/page", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `<html></html>`)
	})
	mux.HandleFunc("/upload", func(w http.ResponseWriter, r *http.Request) {
		if assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			mu.Lock()
			got = r.MultipartForm.Value["token"]
			mu.Unlock()
		}
		_, _ = io.WriteString(w, `{"url":"http://x"}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	_, err := newTestEngine(t, nil, nil).Execute(context.Background(), Request{
		File: writeTempFile(t, "f.jpg", "x"),
		Spec: &protocol.RequestSpec{
			URL: srv.URL + "/upload",
			MultipartFields: map[string]protocol.MultipartField{
				"token": {Type: protocol.FieldDynamic, Value: "token"},
			},
			ResponseParser: protocol.ResponseParserSpec{Type: protocol.ShapeJSON, URLPath: "url"},
			PreRequest: &protocol.PreRequestSpec{
				URL: srv.URL + "/page", ResponseType: protocol.ShapeHTML,
				ExtractFields: map[string]string{"token": "input[name=missing]"},
			},
		},
	})
	require.NoError(t, err)
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{""}, got)
}

// TestUploadHeadersAreNotSubstituted keeps main-request headers verbatim.
func TestUploadHeadersAreNotSubstituted(t *testing.T) {
	t.Parallel()

	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("X-Token")
		_, _ = io.WriteString(w, `{"url":"http://x"}`)
	}))
	defer srv.Close()

	e := newTestEngine(t, nil, nil)
	_, err := e.Upload(context.Background(), Request{
		File: writeTempFile(t, "f.jpg", "x"),
		Spec: &protocol.RequestSpec{
			URL:            srv.URL,
			Headers:        map[string]string{"X-Token": "{token}"},
			ResponseParser: protocol.ResponseParserSpec{Type: protocol.ShapeJSON, URLPath: "url"},
		},
	}, ChainResult{Values: map[string]string{"token": "t"}})
	require.NoError(t, err)
	require.Equal(t, "{token}", got)
}

// TestExecuteInvalidSpecTouchesNoNetwork fails fast on spec errors.
func TestExecuteInvalidSpecTouchesNoNetwork(t *testing.T) {
	t.Parallel()

	limiter := &countingLimiter{}
	e := newTestEngine(t, limiter, nil)

	_, err := e.Execute(context.Background(), Request{File: "f"})
	require.ErrorIs(t, err, ErrSpec)

	_, err = e.Execute(context.Background(), Request{File: "f", Spec: &protocol.RequestSpec{
		URL: "http://127.0.0.1:1", ResponseParser: protocol.ResponseParserSpec{Type: "csv"},
	}})
	require.ErrorIs(t, err, ErrSpec)
	require.Equal(t, int32(0), limiter.calls.Load())
}

// TestExecuteRateLimitCancelled surfaces a cancelled token wait.
func TestExecuteRateLimitCancelled(t *testing.T) {
	t.Parallel()

	limiter := ratelimit.New(ratelimit.Config{GlobalRPS: 0.001, GlobalBurst: 1})
	require.NoError(t, limiter.Acquire(context.Background(), ""))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := newTestEngine(t, limiter, nil).Execute(ctx, Request{
		Target: "example", File: "f",
		Spec: &protocol.RequestSpec{
			URL:            "http://127.0.0.1:1",
			ResponseParser: protocol.ResponseParserSpec{Type: protocol.ShapeJSON},
		},
	})
	require.ErrorIs(t, err, ratelimit.ErrWaitCancelled)
	require.Equal(t, KindRateLimitCancelled, Kind(err))
}

// TestExecuteTransportFailure classifies connection errors as request failures.
func TestExecuteTransportFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := newTestEngine(t, nil, nil).Execute(context.Background(), Request{
		File: writeTempFile(t, "f.jpg", "x"),
		Spec: &protocol.RequestSpec{
			URL:             url,
			MultipartFields: map[string]protocol.MultipartField{"f": {Type: protocol.FieldFile}},
			ResponseParser:  protocol.ResponseParserSpec{Type: protocol.ShapeJSON, URLPath: "url"},
		},
	})
	require.ErrorIs(t, err, ErrRequestFailed)
}

// TestExecuteMissingFileIsRequestFailure reports unreadable files before sending.
func TestExecuteMissingFileIsRequestFailure(t *testing.T) {
	t.Parallel()

	_, err := newTestEngine(t, nil, nil).Execute(context.Background(), Request{
		File: filepath.Join(t.TempDir(), "nope.jpg"),
		Spec: &protocol.RequestSpec{
			URL:             "http://127.0.0.1:1",
			MultipartFields: map[string]protocol.MultipartField{"f": {Type: protocol.FieldFile}},
			ResponseParser:  protocol.ResponseParserSpec{Type: protocol.ShapeJSON, URLPath: "url"},
		},
	})
	require.ErrorIs(t, err, ErrRequestFailed)
	require.True(t, errors.Is(err, os.ErrNotExist))
}

// TestExecuteCancelInterruptsInFlightRequest returns promptly when the deadline passes.
func TestExecuteCancelInterruptsInFlightRequest(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := newTestEngine(t, nil, nil).Execute(ctx, Request{
		File: writeTempFile(t, "f.jpg", "x"),
		Spec: &protocol.RequestSpec{
			URL:             srv.URL,
			MultipartFields: map[string]protocol.MultipartField{"f": {Type: protocol.FieldFile}},
			ResponseParser:  protocol.ResponseParserSpec{Type: protocol.ShapeJSON, URLPath: "url"},
		},
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(start), 2*time.Second)
}

// TestBuildPartsOrdering writes text fields, then form fields, then files.
func TestBuildPartsOrdering(t *testing.T) {
	t.Parallel()

	parts, err := buildParts(&protocol.RequestSpec{
		MultipartFields: map[string]protocol.MultipartField{
			"z_file": {Type: protocol.FieldFile},
			"b_text": {Type: protocol.FieldText, Value: "B"},
			"a_dyn":  {Type: protocol.FieldDynamic, Value: "k"},
		},
		FormFields: map[string]string{"form": "F"},
	}, map[string]string{"k": "K"})
	require.NoError(t, err)
	var names []string
	for _, p := range parts {
		names = append(names, p.name)
	}
	require.Equal(t, []string{"a_dyn", "b_text", "form", "z_file"}, names)
	require.Equal(t, "K", parts[0].value)
}

// TestDumpOutputRecordsExchanges writes one rendering per request, labeled by job and step.
func TestDumpOutputRecordsExchanges(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/login" {
			_, _ = io.WriteString(w, `{"token":"t"}`)
			return
		}
		_, _ = io.WriteString(w, `{"url":"http://x"}`)
	}))
	defer srv.Close()

	dump := &memoryDump{}
	_, err := newTestEngine(t, nil, dump).Execute(context.Background(), Request{
		JobID: "job-d", File: writeTempFile(t, "f.jpg", "x"),
		Spec: &protocol.RequestSpec{
			URL:            srv.URL + "/upload",
			ResponseParser: protocol.ResponseParserSpec{Type: protocol.ShapeJSON, URLPath: "url"},
			PreRequest: &protocol.PreRequestSpec{
				Action: "log in", URL: srv.URL + "/login", Method: "POST", UseCookies: true,
				FormFields: map[string]string{"u": "a"}, ResponseType: protocol.ShapeJSON,
			},
		},
	})
	require.NoError(t, err)

	entries := dump.snapshot()
	require.Len(t, entries, 2)
	require.True(t, strings.HasPrefix(entries[0].ID, "job-d/"))
	require.True(t, strings.HasSuffix(entries[0].ID, "-log_in.txt"))
	require.True(t, strings.HasSuffix(entries[1].ID, "-upload.txt"))
	require.Contains(t, entries[0].Contents, "POST "+srv.URL+"/login")
	require.Contains(t, entries[0].Contents, "u=a")
	require.Contains(t, entries[1].Contents, "(body not replayable)")
}

type countingLimiter struct {
	calls atomic.Int32
}

func (l *countingLimiter) Acquire(context.Context, string) error {
	l.calls.Add(1)
	return nil
}

// TestUploadStreamsFileBody sends the multipart body chunked and keeps it out of dumps.
func TestUploadStreamsFileBody(t *testing.T) {
	t.Parallel()

	payload := strings.Repeat("0123456789abcdef", 64<<10)
	var (
		mu            sync.Mutex
		contentLength int64
		chunked       bool
		received      string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		contentLength = r.ContentLength
		chunked = len(r.TransferEncoding) > 0 && r.TransferEncoding[0] == "chunked"
		f, _, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer func() { _ = f.Close() }()
		b, _ := io.ReadAll(f)
		received = string(b)
		_, _ = io.WriteString(w, `{"url":"http://x"}`)
	}))
	defer srv.Close()

	dump := &memoryDump{}
	res, err := newTestEngine(t, nil, dump).Execute(context.Background(), Request{
		JobID: "job-s", File: writeTempFile(t, "big.bin", payload),
		Spec: &protocol.RequestSpec{
			URL:             srv.URL,
			MultipartFields: map[string]protocol.MultipartField{"file": {Type: protocol.FieldFile}},
			ResponseParser:  protocol.ResponseParserSpec{Type: protocol.ShapeJSON, URLPath: "url"},
		},
	})
	require.NoError(t, err)
	require.Equal(t, "http://x", res.URL)
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, int64(-1), contentLength)
	require.True(t, chunked)
	require.Equal(t, payload, received)

	entries := dump.snapshot()
	require.Len(t, entries, 1)
	require.Less(t, len(entries[0].Contents), 8<<10)
	require.Contains(t, entries[0].Contents, "(body not replayable)")
	require.Contains(t, entries[0].Contents, "Content-Type: multipart/form-data; boundary=")
}

type dumpEntry struct {
	ID       string
	Contents string
}

type memoryDump struct {
	mu      sync.Mutex
	entries []dumpEntry
}

func (d *memoryDump) Write(_ context.Context, id, contents string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries = append(d.entries, dumpEntry{ID: id, Contents: contents})
	return nil
}

func (d *memoryDump) snapshot() []dumpEntry {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]dumpEntry(nil), d.entries...)
}

func TestTruncateBody(t *testing.T) {
	t.Parallel()

	require.Equal(t, "short", truncateBody([]byte("short")))
	long := strings.Repeat("a", maxDumpBody+10)
	got := truncateBody([]byte(long))
	require.True(t, strings.HasPrefix(got, strings.Repeat("a", maxDumpBody)+"\n"))
	require.True(t, strings.HasSuffix(got, "(10 bytes truncated)"))
}

package app

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/JakeFAU/upload-runner/internal/config"
	"github.com/JakeFAU/upload-runner/internal/targets"
)

type wireEvent struct {
	Type   string `json:"type"`
	File   string `json:"file"`
	Status string `json:"status"`
	URL    string `json:"url"`
	Thumb  string `json:"thumb"`
	Msg    string `json:"msg"`
}

func decodeEvents(t *testing.T, out []byte) []wireEvent {
	t.Helper()
	var events []wireEvent
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		var e wireEvent
		require.NoError(t, json.Unmarshal(sc.Bytes(), &e), sc.Text())
		events = append(events, e)
	}
	require.NoError(t, sc.Err())
	return events
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Runner.Workers = 2
	cfg.Runner.FileTimeout = 5 * time.Second
	return cfg
}

func writeFiles(t *testing.T, names ...string) []string {
	t.Helper()
	dir := t.TempDir()
	paths := make([]string, 0, len(names))
	for _, n := range names {
		p := filepath.Join(dir, n)
		require.NoError(t, os.WriteFile(p, []byte("data-"+n), 0o600))
		paths = append(paths, p)
	}
	return paths
}

func jobLine(t *testing.T, job map[string]any) string {
	t.Helper()
	b, err := json.Marshal(job)
	require.NoError(t, err)
	return string(b)
}

// TestRunHTTPUploadJob streams every file through to Done and closes the batch.
func TestRunHTTPUploadJob(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		_, hdr, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		fmt.Fprintf(w, `{"ok":"yes","url":"https://host/%s"}`, hdr.Filename)
	}))
	defer srv.Close()

	files := writeFiles(t, "a.jpg", "b.jpg")
	input := jobLine(t, map[string]any{
		"action":  "http_upload",
		"service": "host.example",
		"files":   files,
		"http_spec": map[string]any{
			"url":              srv.URL,
			"multipart_fields": map[string]any{"file": map[string]string{"type": "file"}},
			"response_parser":  map[string]string{"type": "json", "url_path": "url", "status_path": "ok", "success_value": "yes"},
		},
	})

	var out bytes.Buffer
	a, err := New(testConfig(t), zaptest.NewLogger(t), &out, Options{Registerer: prometheus.NewRegistry()})
	require.NoError(t, err)
	require.NoError(t, a.Run(context.Background(), strings.NewReader(input+"\n")))

	events := decodeEvents(t, out.Bytes())
	perFile := map[string][]string{}
	results := map[string]string{}
	for _, e := range events {
		switch e.Type {
		case "status":
			perFile[e.File] = append(perFile[e.File], e.Status)
		case "result":
			results[e.File] = e.URL
		}
	}
	for _, f := range files {
		require.Equal(t, []string{"Queued", "Processing", "Uploading", "Done"}, perFile[f], f)
		require.Equal(t, "https://host/"+filepath.Base(f), results[f])
	}
	last := events[len(events)-1]
	require.Equal(t, "batch_complete", last.Type)
	require.Equal(t, "done", last.Status)
}

// TestRunLegacyAndRejectedJobs handles legacy uploads, verify and bad input in one stream.
func TestRunLegacyAndRejectedJobs(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"show_url":"https://pixhost.to/show/1","th_url":"https://t.pixhost.to/1.jpg"}`)
	}))
	defer srv.Close()

	files := writeFiles(t, "p.jpg")
	input := strings.Join([]string{
		jobLine(t, map[string]any{"action": "upload", "service": "pixhost.to", "files": files,
			"config": map[string]string{"pix_content": "0", "pix_thumb": "200"}}),
		jobLine(t, map[string]any{"action": "verify", "service": "imx.to", "creds": map[string]string{"api_key": "k"}}),
		jobLine(t, map[string]any{"action": "http_upload", "service": "x", "files": files}),
		jobLine(t, map[string]any{"action": "list_galleries", "service": "x"}),
		`{broken`,
	}, "\n")

	var out bytes.Buffer
	endpoints := targets.Endpoints{Pixhost: srv.URL}
	a, err := New(testConfig(t), zaptest.NewLogger(t), &out, Options{
		Registerer: prometheus.NewRegistry(),
		Endpoints:  &endpoints,
	})
	require.NoError(t, err)
	require.NoError(t, a.Run(context.Background(), strings.NewReader(input)))

	var msgs []string
	var pixResult, verify wireEvent
	for _, e := range decodeEvents(t, out.Bytes()) {
		switch {
		case e.Type == "error":
			msgs = append(msgs, e.Msg)
		case e.Type == "result" && e.File != "":
			pixResult = e
		case e.Type == "result":
			verify = e
		}
	}
	require.Equal(t, "https://pixhost.to/show/1", pixResult.URL)
	require.Equal(t, "https://t.pixhost.to/1.jpg", pixResult.Thumb)
	require.Equal(t, "success", verify.Status)
	require.Equal(t, "API Key present", verify.Msg)
	require.Contains(t, msgs, "http_upload requires http_spec field")
	require.Contains(t, msgs, "Unknown action: list_galleries")
	var sawDecode bool
	for _, m := range msgs {
		sawDecode = sawDecode || strings.HasPrefix(m, "JSON Decode Error: ")
	}
	require.True(t, sawDecode)
}

// TestRunWritesDumps records exchanges under the dump directory when enabled.
func TestRunWritesDumps(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"url":"https://host/x"}`)
	}))
	defer srv.Close()

	cfg := testConfig(t)
	cfg.Debug.DumpDir = t.TempDir()
	files := writeFiles(t, "d.jpg")
	input := jobLine(t, map[string]any{
		"action": "http_upload", "service": "host", "files": files,
		"http_spec": map[string]any{"url": srv.URL, "response_parser": map[string]string{"type": "json", "url_path": "url"}},
	})

	var out bytes.Buffer
	a, err := New(cfg, zaptest.NewLogger(t), &out, Options{Registerer: prometheus.NewRegistry()})
	require.NoError(t, err)
	require.NoError(t, a.Run(context.Background(), strings.NewReader(input)))

	matches, err := filepath.Glob(filepath.Join(cfg.Debug.DumpDir, "*", "*-upload.txt"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
}

// TestRunCancelledStopsIntake drains and returns once the caller cancels.
func TestRunCancelledStopsIntake(t *testing.T) {
	t.Parallel()

	pr, pw := io.Pipe()
	defer func() { _ = pw.Close() }()

	var out bytes.Buffer
	a, err := New(testConfig(t), zaptest.NewLogger(t), &out, Options{Registerer: prometheus.NewRegistry()})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx, pr) }()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not return after cancel")
	}
	require.True(t, a.draining.Load())
}

package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"github.com/JakeFAU/upload-runner/internal/protocol"
)

type part struct {
	name  string
	file  bool
	value string
}

// buildParts resolves the whole field table up front so a missing dynamic
// value aborts before any byte is sent. Text and dynamic fields come first,
// then plain form fields, then file fields, each group sorted by name.
func buildParts(spec *protocol.RequestSpec, values map[string]string) ([]part, error) {
	var texts, files []part
	for _, name := range sortedFieldNames(spec.MultipartFields) {
		field := spec.MultipartFields[name]
		switch field.Type {
		case protocol.FieldFile:
			files = append(files, part{name: name, file: true})
		case protocol.FieldText:
			texts = append(texts, part{name: name, value: field.Value})
		case protocol.FieldDynamic:
			v, ok := values[field.Value]
			if !ok {
				return nil, fmt.Errorf("%w: field %q references %q", ErrDynamicFieldUnresolved, name, field.Value)
			}
			texts = append(texts, part{name: name, value: v})
		default:
			return nil, fmt.Errorf("%w: field %q has unknown type %q", ErrSpec, name, field.Type)
		}
	}
	for _, name := range sortedKeys(spec.FormFields) {
		texts = append(texts, part{name: name, value: spec.FormFields[name]})
	}
	return append(texts, files...), nil
}

// Upload sends the multipart request for req.File using the chain's session
// client when there is one, and parses the response. Spec headers are sent
// verbatim.
func (e *Engine) Upload(ctx context.Context, req Request, chain ChainResult) (Result, error) {
	parts, err := buildParts(req.Spec, chain.Values)
	if err != nil {
		return Result{}, err
	}

	var f *os.File
	if hasFilePart(parts) {
		if f, err = os.Open(req.File); err != nil {
			return Result{}, fmt.Errorf("%w: open upload file: %w", ErrRequestFailed, err)
		}
	}

	client := e.clients.Shared()
	if chain.Session != nil {
		client = chain.Session
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		err := writeParts(mw, parts, f, filepath.Base(req.File))
		if err == nil {
			err = mw.Close()
		}
		if f != nil {
			_ = f.Close()
		}
		_ = pw.CloseWithError(err)
	}()
	defer func() { _ = pr.Close() }()

	// resty reads an io.Reader body fully to make it replayable. The upload goes
	// straight to the session's http.Client so the file streams with the
	// session's cookies and timeout.
	ctx = withExchange(ctx, req.JobID, "upload")
	method := req.Spec.MethodOrDefault()
	httpReq, err := http.NewRequestWithContext(ctx, method, req.Spec.URL, pr)
	if err != nil {
		return Result{}, fmt.Errorf("%w: build %s %s: %w", ErrRequestFailed, method, req.Spec.URL, err)
	}
	for k, vs := range client.Header {
		httpReq.Header[k] = append([]string(nil), vs...)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())
	for k, v := range req.Spec.Headers {
		httpReq.Header.Set(k, v)
	}

	res, err := client.GetClient().Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %s %s: %w", ErrRequestFailed, method, req.Spec.URL, err)
	}
	defer func() { _ = res.Body.Close() }()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return Result{}, fmt.Errorf("%w: read response: %w", ErrRequestFailed, err)
	}
	e.clients.record(ctx, httpReq, res, body)

	e.logger.Debug("upload response received",
		zap.String("job_id", req.JobID),
		zap.String("file", filepath.Base(req.File)),
		zap.Int("http_status", res.StatusCode),
		zap.Int("bytes", len(body)),
	)
	return ParseResponse(body, res.StatusCode, req.Spec.ResponseParser, req.File)
}

func writeParts(mw *multipart.Writer, parts []part, f *os.File, filename string) error {
	for _, p := range parts {
		if !p.file {
			if err := mw.WriteField(p.name, p.value); err != nil {
				return fmt.Errorf("write field %q: %w", p.name, err)
			}
			continue
		}
		if f == nil {
			return errors.New("file part without an open file")
		}
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return fmt.Errorf("rewind upload file: %w", err)
		}
		w, err := mw.CreateFormFile(p.name, filename)
		if err != nil {
			return fmt.Errorf("create form file %q: %w", p.name, err)
		}
		if _, err := io.Copy(w, f); err != nil {
			return fmt.Errorf("copy upload file: %w", err)
		}
	}
	return nil
}

func hasFilePart(parts []part) bool {
	for _, p := range parts {
		if p.file {
			return true
		}
	}
	return false
}

func sortedFieldNames(fields map[string]protocol.MultipartField) []string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}


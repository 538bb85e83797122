package engine

import (
	"bytes"
	"fmt"
	"path/filepath"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/upload-runner/internal/protocol"
)

// ParseResponse turns an upload response body into a Result. An empty URL is
// always an error.
func ParseResponse(body []byte, httpStatus int, spec protocol.ResponseParserSpec, file string) (Result, error) {
	switch spec.Type {
	case protocol.ShapeJSON:
		return parseJSON(body, httpStatus, spec, file)
	case protocol.ShapeHTML:
		return parseHTML(body, httpStatus, spec)
	default:
		return Result{}, fmt.Errorf("%w: unsupported parser type %q", ErrSpec, spec.Type)
	}
}

func parseJSON(body []byte, httpStatus int, spec protocol.ResponseParserSpec, file string) (Result, error) {
	tree, err := decodeObject(body)
	if err != nil {
		return Result{}, fmt.Errorf("%w: HTTP %d: %w", ErrParseFailure, httpStatus, err)
	}

	if spec.StatusPath != "" {
		if got := Lookup(tree, spec.StatusPath); got != spec.SuccessValue {
			msg := Lookup(tree, "message")
			if msg == "" {
				msg = Lookup(tree, "error")
			}
			if msg == "" {
				msg = fmt.Sprintf("upload failed with status: %s", got)
			}
			return Result{}, fmt.Errorf("%w: %s", ErrStatusMismatch, msg)
		}
	}

	res := Result{
		URL:   Lookup(tree, spec.URLPath),
		Thumb: Lookup(tree, spec.ThumbPath),
	}
	extra := map[string]string{"filename": filepath.Base(file)}
	if spec.URLTemplate != "" {
		res.URL = substituteTree(spec.URLTemplate, tree, extra)
	}
	switch {
	case spec.ThumbTemplate != "":
		res.Thumb = substituteTree(spec.ThumbTemplate, tree, extra)
	case spec.URLTemplate != "" && res.Thumb == "":
		res.Thumb = res.URL
	}

	if res.URL == "" {
		if reason := Lookup(tree, spec.ErrorPath); reason != "" {
			return Result{}, fmt.Errorf("%w: upload failed: %s", ErrStatusMismatch, reason)
		}
		return Result{}, fmt.Errorf("%w: no URL found in response at path %q", ErrParseFailure, spec.URLPath)
	}
	return res, nil
}

func parseHTML(body []byte, httpStatus int, spec protocol.ResponseParserSpec) (Result, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("%w: HTTP %d: parse html: %w", ErrParseFailure, httpStatus, err)
	}

	res := Result{
		URL:   firstNonEmpty(doc.Find(spec.URLPath), "value"),
		Thumb: firstNonEmpty(doc.Find(spec.ThumbPath), "value", "src"),
	}
	if res.URL == "" {
		return Result{}, fmt.Errorf("%w: no URL found with selector %q", ErrParseFailure, spec.URLPath)
	}
	return res, nil
}

package engine

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/upload-runner/internal/protocol"
)

// extractValues evaluates an extraction table against a response body. A body
// that cannot be decoded is an error; a selector that matches nothing is "".
func extractValues(shape string, body []byte, fields map[string]string) (map[string]string, error) {
	values := make(map[string]string, len(fields))
	switch shape {
	case protocol.ShapeJSON:
		tree, err := decodeObject(body)
		if err != nil {
			return nil, err
		}
		for name, path := range fields {
			values[name] = Lookup(tree, path)
		}
	case protocol.ShapeHTML:
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("parse html: %w", err)
		}
		for name, selector := range fields {
			v, err := extractHTML(doc, body, selector)
			if err != nil {
				return nil, fmt.Errorf("extract %q: %w", name, err)
			}
			values[name] = v
		}
	}
	return values, nil
}

func extractHTML(doc *goquery.Document, raw []byte, selector string) (string, error) {
	if pattern, ok := strings.CutPrefix(selector, protocol.RegexPrefix); ok {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return "", fmt.Errorf("compile pattern: %w", err)
		}
		if m := re.FindSubmatch(raw); len(m) > 1 {
			return strings.TrimSpace(string(m[1])), nil
		}
		return "", nil
	}
	return firstNonEmpty(doc.Find(selector), "value", "action"), nil
}

// firstNonEmpty returns the first non-empty attribute of sel in attrs order,
// falling back to its trimmed text.
func firstNonEmpty(sel *goquery.Selection, attrs ...string) string {
	for _, attr := range attrs {
		if v := strings.TrimSpace(sel.AttrOr(attr, "")); v != "" {
			return v
		}
	}
	return strings.TrimSpace(sel.Text())
}

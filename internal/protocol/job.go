// Package protocol defines the line-delimited JSON records exchanged with the caller.
package protocol

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Actions understood by the runner.
const (
	ActionUpload     = "upload"
	ActionHTTPUpload = "http_upload"
	ActionLogin      = "login"
	ActionVerify     = "verify"
)

// Job is one caller-submitted unit of work.
type Job struct {
	Action      string            `json:"action"`
	Target      string            `json:"service"`
	Files       []string          `json:"files"`
	Creds       map[string]string `json:"creds"`
	Config      map[string]string `json:"config"`
	ContextData map[string]string `json:"context_data,omitempty"`
	Spec        *RequestSpec      `json:"http_spec,omitempty"`
}

// FieldType tags a multipart field.
type FieldType string

// Supported multipart field types.
const (
	FieldFile    FieldType = "file"
	FieldText    FieldType = "text"
	FieldDynamic FieldType = "dynamic"
)

// MultipartField is one entry of the multipart field table. Value holds the
// literal for text fields and the extracted-value name for dynamic fields.
type MultipartField struct {
	Type  FieldType `json:"type"`
	Value string    `json:"value"`
}

// Response shapes for parsers and chain steps.
const (
	ShapeJSON = "json"
	ShapeHTML = "html"
)

// RegexPrefix marks an html-mode selector as a regular expression over the raw body.
const RegexPrefix = "regex:"

// RequestSpec declares the terminal upload request.
type RequestSpec struct {
	URL             string                    `json:"url"`
	Method          string                    `json:"method"`
	Headers         map[string]string         `json:"headers"`
	MultipartFields map[string]MultipartField `json:"multipart_fields"`
	FormFields      map[string]string         `json:"form_fields,omitempty"`
	ResponseParser  ResponseParserSpec        `json:"response_parser"`
	PreRequest      *PreRequestSpec           `json:"pre_request,omitempty"`
}

// PreRequestSpec is one step of a preparatory chain.
type PreRequestSpec struct {
	Action        string            `json:"action"`
	URL           string            `json:"url"`
	Method        string            `json:"method"`
	Headers       map[string]string `json:"headers,omitempty"`
	FormFields    map[string]string `json:"form_fields,omitempty"`
	UseCookies    bool              `json:"use_cookies"`
	ExtractFields map[string]string `json:"extract_fields"`
	ResponseType  string            `json:"response_type"`
	FollowUp      *PreRequestSpec   `json:"follow_up_request,omitempty"`
}

// ResponseParserSpec describes how the terminal response becomes a URL pair.
type ResponseParserSpec struct {
	Type          string `json:"type"`
	URLPath       string `json:"url_path"`
	ThumbPath     string `json:"thumb_path"`
	StatusPath    string `json:"status_path"`
	SuccessValue  string `json:"success_value"`
	URLTemplate   string `json:"url_template,omitempty"`
	ThumbTemplate string `json:"thumb_template,omitempty"`
	// ErrorPath names the field holding the server's reason when no URL came back.
	ErrorPath string `json:"error_path,omitempty"`
}

// Steps flattens the chain into execution order.
func (p *PreRequestSpec) Steps() []*PreRequestSpec {
	var steps []*PreRequestSpec
	for step := p; step != nil; step = step.FollowUp {
		steps = append(steps, step)
	}
	return steps
}

// UsesCookies reports whether any step of the chain asks for a session.
func (p *PreRequestSpec) UsesCookies() bool {
	for _, step := range p.Steps() {
		if step.UseCookies {
			return true
		}
	}
	return false
}

// MethodOrDefault returns the upper-cased method, POST when unset.
func (s *RequestSpec) MethodOrDefault() string {
	return methodOr(s.Method, "POST")
}

// MethodOrDefault returns the upper-cased method, GET when unset.
func (p *PreRequestSpec) MethodOrDefault() string {
	return methodOr(p.Method, "GET")
}

func methodOr(method, fallback string) string {
	if m := strings.TrimSpace(method); m != "" {
		return strings.ToUpper(m)
	}
	return fallback
}

// Validate checks everything that can be checked without touching the network.
func (s *RequestSpec) Validate() error {
	if s == nil {
		return errors.New("request spec is required")
	}
	if strings.TrimSpace(s.URL) == "" {
		return errors.New("url is required")
	}
	for name, field := range s.MultipartFields {
		switch field.Type {
		case FieldFile, FieldText:
		case FieldDynamic:
			if field.Value == "" {
				return fmt.Errorf("dynamic field %q names no extracted value", name)
			}
		default:
			return fmt.Errorf("field %q has unknown type %q", name, field.Type)
		}
	}
	switch s.ResponseParser.Type {
	case ShapeJSON, ShapeHTML:
	default:
		return fmt.Errorf("unknown response parser type %q", s.ResponseParser.Type)
	}
	for i, step := range s.PreRequest.Steps() {
		if err := step.validate(); err != nil {
			return fmt.Errorf("pre_request step %d: %w", i+1, err)
		}
	}
	return nil
}

func (p *PreRequestSpec) validate() error {
	if strings.TrimSpace(p.URL) == "" {
		return errors.New("url is required")
	}
	switch p.ResponseType {
	case ShapeJSON, ShapeHTML, "":
	default:
		return fmt.Errorf("unknown response type %q", p.ResponseType)
	}
	for name, selector := range p.ExtractFields {
		pattern, ok := strings.CutPrefix(selector, RegexPrefix)
		if !ok || p.ResponseType != ShapeHTML {
			continue
		}
		if _, err := regexp.Compile(pattern); err != nil {
			return fmt.Errorf("extract field %q: %w", name, err)
		}
	}
	return nil
}

package engine

import (
	"errors"

	"github.com/JakeFAU/upload-runner/internal/policy/ratelimit"
)

// Failure classes surfaced to the caller. Wrap them with fmt.Errorf("%w: ...").
var (
	ErrSpec                   = errors.New("invalid request spec")
	ErrChain                  = errors.New("pre-request chain failed")
	ErrDynamicFieldUnresolved = errors.New("dynamic field unresolved")
	ErrRequestFailed          = errors.New("request failed")
	ErrStatusMismatch         = errors.New("status mismatch")
	ErrParseFailure           = errors.New("response parse failed")
	ErrTimeout                = errors.New("timed out")
	ErrPanic                  = errors.New("panic")
)

// Wire names for each failure class.
const (
	KindSpec                   = "spec_error"
	KindRateLimitCancelled     = "rate_limit_cancelled"
	KindChain                  = "chain_error"
	KindDynamicFieldUnresolved = "dynamic_field_unresolved"
	KindRequestFailed          = "request_failed"
	KindStatusMismatch         = "status_mismatch"
	KindParseFailure           = "parse_failure"
	KindTimeout                = "timeout"
	KindPanic                  = "panic"
	KindFailed                 = "failed"
)

var kinds = []struct {
	err  error
	kind string
}{
	{ErrTimeout, KindTimeout},
	{ErrPanic, KindPanic},
	{ratelimit.ErrWaitCancelled, KindRateLimitCancelled},
	{ErrSpec, KindSpec},
	{ErrDynamicFieldUnresolved, KindDynamicFieldUnresolved},
	{ErrChain, KindChain},
	{ErrRequestFailed, KindRequestFailed},
	{ErrStatusMismatch, KindStatusMismatch},
	{ErrParseFailure, KindParseFailure},
}

// Kind maps err to its wire name. Unclassified errors are KindFailed.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindFailed
}

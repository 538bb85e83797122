// Package progress provides the output event primitives, the ordered hub, and
// the emitter interface that workers use to report per-file state transitions.
// The hub fans every event out synchronously to pluggable sinks such as the
// protocol stream, structured logs, or Prometheus metrics.
package progress

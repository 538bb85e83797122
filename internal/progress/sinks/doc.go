// Package sinks implements concrete output consumers: the line-delimited
// protocol stream, structured logging, and Prometheus metrics. Each sink
// satisfies the progress.Sink interface and is safe for concurrent use.
package sinks

package sinks

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/JakeFAU/upload-runner/internal/progress"
)

// StreamSink writes each event as one JSON object per line. Writes are
// serialized so lines from concurrent workers never interleave.
type StreamSink struct {
	mu sync.Mutex
	w  *bufio.Writer
}

// NewStreamSink wraps w, typically os.Stdout.
func NewStreamSink(w io.Writer) *StreamSink {
	return &StreamSink{w: bufio.NewWriter(w)}
}

// Consume encodes and flushes the batch.
func (s *StreamSink) Consume(_ context.Context, batch []progress.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, evt := range batch {
		line, err := json.Marshal(evt)
		if err != nil {
			return fmt.Errorf("encode %s event: %w", evt.Type, err)
		}
		line = append(line, '\n')
		if _, err := s.w.Write(line); err != nil {
			return fmt.Errorf("write event: %w", err)
		}
	}
	if err := s.w.Flush(); err != nil {
		return fmt.Errorf("flush events: %w", err)
	}
	return nil
}

// Close flushes anything still buffered. The underlying writer stays open.
func (s *StreamSink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.w.Flush(); err != nil {
		return fmt.Errorf("flush events: %w", err)
	}
	return nil
}

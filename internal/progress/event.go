package progress

import (
	"errors"
	"fmt"
	"time"
)

// Type is the kind of output record.
type Type string

// Supported output record types.
const (
	TypeStatus        Type = "status"
	TypeResult        Type = "result"
	TypeError         Type = "error"
	TypeData          Type = "data"
	TypeLog           Type = "log"
	TypeBatchComplete Type = "batch_complete"
)

// File status strings carried by status events.
const (
	StatusQueued     = "Queued"
	StatusProcessing = "Processing"
	StatusUploading  = "Uploading"
	StatusDone       = "Done"
	StatusFailed     = "Failed"
	StatusTimeout    = "Timeout"
)

// Event is one line of the output protocol. The untagged fields never reach
// the wire; they give sinks enough context for logs and metrics.
type Event struct {
	Type   Type   `json:"type"`
	File   string `json:"file,omitempty"`
	Status string `json:"status,omitempty"`
	URL    string `json:"url,omitempty"`
	Thumb  string `json:"thumb,omitempty"`
	Msg    string `json:"msg,omitempty"`
	Data   any    `json:"data,omitempty"`

	JobID  string        `json:"-"`
	Target string        `json:"-"`
	TS     time.Time     `json:"-"`
	Dur    time.Duration `json:"-"`
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	switch e.Type {
	case TypeStatus, TypeBatchComplete:
		if e.Status == "" {
			return fmt.Errorf("%s event requires status", e.Type)
		}
	case TypeResult:
		if e.URL == "" && e.Status == "" {
			return errors.New("result event requires url or status")
		}
	case TypeError, TypeLog:
		if e.Msg == "" {
			return fmt.Errorf("%s event requires msg", e.Type)
		}
	case TypeData:
	default:
		return fmt.Errorf("unknown event type %q", e.Type)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// Terminal reports whether the event closes out a file.
func (e Event) Terminal() bool {
	if e.Type != TypeStatus {
		return false
	}
	switch e.Status {
	case StatusDone, StatusFailed, StatusTimeout:
		return true
	}
	return false
}

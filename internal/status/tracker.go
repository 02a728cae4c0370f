// Package status records where each analysis request is in the pipeline so
// that callers can poll it while a long OCR run is in flight.
package status

import (
	"context"
	"errors"
	"time"
)

// State is a pipeline stage.
type State string

const (
	StateReceived   State = "received"
	StateRasterized State = "rasterized"
	StateRecognized State = "recognized"
	StateNormalized State = "normalized"
	StateExtracted  State = "extracted"
	StateClassified State = "classified"
	StateSummarized State = "summarized"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// Terminal reports whether no further transitions follow s.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// ErrNotFound is returned by Lookup for unknown or expired request ids.
var ErrNotFound = errors.New("request not found")

// Entry is the last recorded state of a request.
type Entry struct {
	RequestID string    `json:"requestId"`
	State     State     `json:"state"`
	Detail    string    `json:"detail,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Tracker stores request states for a limited time.
type Tracker interface {
	Record(ctx context.Context, requestID string, state State, detail string) error
	Lookup(ctx context.Context, requestID string) (*Entry, error)
	// Stats counts requests that reached a terminal state.
	Stats(ctx context.Context) (map[string]int64, error)
	Close() error
}

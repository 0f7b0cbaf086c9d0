// Package analytics delivers impression and click events for timers on a
// best-effort basis: impressions are deduplicated per page view, failed
// submissions are retried with exponential backoff, and nothing is ever
// surfaced to the visitor.
package analytics

import (
	"context"
	"errors"
)

// Kind is the analytics event type.
type Kind string

const (
	KindImpression Kind = "impression"
	KindClick      Kind = "click"
)

// ErrNoTimerID is returned by Send when called without a timer id.
var ErrNoTimerID = errors.New("analytics: missing timer id")

// Event is the submitted payload.
type Event struct {
	Event     Kind   `json:"event"`
	TimerID   string `json:"timerId"`
	Timestamp int64  `json:"timestamp"`
	URL       string `json:"url"`
}

// Response is what a transport learned from the sink. Counters are
// informational only.
type Response struct {
	Status      int
	Impressions int64
	Clicks      int64
}

// Success reports a 2xx status.
func (r Response) Success() bool {
	return r.Status >= 200 && r.Status < 300
}

// Retryable reports whether a failed status is worth another attempt:
// server errors and 404.
func (r Response) Retryable() bool {
	return r.Status >= 500 || r.Status == 404
}

// Transport submits one event. A non-nil error means the request never
// completed; the response status is then meaningless.
type Transport interface {
	Deliver(ctx context.Context, ev Event) (Response, error)
}

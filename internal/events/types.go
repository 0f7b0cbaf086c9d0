// Package events buffers analytics delivery records for display.
package events

import "time"

// Outcome classifies one delivery attempt.
type Outcome string

const (
	OutcomeDelivered Outcome = "delivered"
	OutcomeRetrying  Outcome = "retrying"
	OutcomeDropped   Outcome = "dropped"
	OutcomeDeduped   Outcome = "deduped"
	OutcomeReceived  Outcome = "received"
)

// Delivery records what happened to one analytics event attempt.
type Delivery struct {
	TimerID   string
	Event     string // impression or click
	Attempt   int
	Status    int // transport status, 0 when the request never completed
	Outcome   Outcome
	RetryIn   time.Duration
	Err       string
	Timestamp time.Time
	Formatted string
}

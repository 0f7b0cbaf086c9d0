// Package receiver is a development sink for storefront timers. It accepts
// analytics over JSON/HTTP, OTLP/HTTP and OTLP/gRPC, keeps per-timer
// counters, and serves the timer list and cart endpoints the runtime reads.
package receiver

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/nixlim/storetimer/internal/analytics"
	"github.com/nixlim/storetimer/internal/events"
)

// ErrInvalidEvent is returned for events without a timer id or with an
// unknown event type.
var ErrInvalidEvent = errors.New("invalid analytics event")

// Counts is the running total for one timer.
type Counts struct {
	Impressions int64 `json:"impressions"`
	Clicks      int64 `json:"clicks"`
}

// Counters tallies events per timer.
type Counters struct {
	mu      sync.Mutex
	byTimer map[string]*Counts
	buf     *events.RingBuffer
	log     Logger
}

// NewCounters creates an empty tally. Accepted events are also recorded in
// buf when it is non-nil.
func NewCounters(buf *events.RingBuffer, log Logger) *Counters {
	if log == nil {
		log = NopLogger{}
	}
	return &Counters{byTimer: make(map[string]*Counts), buf: buf, log: log}
}

// Record counts ev and returns the timer's updated totals.
func (c *Counters) Record(source string, ev analytics.Event) (Counts, error) {
	if ev.TimerID == "" {
		return Counts{}, ErrInvalidEvent
	}
	if ev.Event != analytics.KindImpression && ev.Event != analytics.KindClick {
		return Counts{}, ErrInvalidEvent
	}

	c.mu.Lock()
	counts, ok := c.byTimer[ev.TimerID]
	if !ok {
		counts = &Counts{}
		c.byTimer[ev.TimerID] = counts
	}
	if ev.Event == analytics.KindImpression {
		counts.Impressions++
	} else {
		counts.Clicks++
	}
	out := *counts
	c.mu.Unlock()

	c.log.LogEvent(source, ev)
	if c.buf != nil {
		ts := time.Now()
		if ev.Timestamp > 0 {
			ts = time.UnixMilli(ev.Timestamp)
		}
		c.buf.Add(events.Delivery{
			TimerID:   ev.TimerID,
			Event:     string(ev.Event),
			Status:    200,
			Outcome:   events.OutcomeReceived,
			Timestamp: ts,
		})
	}
	return out, nil
}

// Get returns the totals for one timer.
func (c *Counters) Get(timerID string) Counts {
	c.mu.Lock()
	defer c.mu.Unlock()
	if counts, ok := c.byTimer[timerID]; ok {
		return *counts
	}
	return Counts{}
}

// TimerIDs returns every timer seen so far, sorted.
func (c *Counters) TimerIDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, 0, len(c.byTimer))
	for id := range c.byTimer {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

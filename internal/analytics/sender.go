package analytics

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/nixlim/storetimer/internal/debuglog"
	"github.com/nixlim/storetimer/internal/events"
	"github.com/nixlim/storetimer/internal/kv"
	"github.com/nixlim/storetimer/internal/timeutil"
)

// DefaultMaxRetries bounds retries after the first attempt.
const DefaultMaxRetries = 3

// Observer receives a record of every delivery attempt.
type Observer interface {
	Add(events.Delivery)
}

// Sender submits analytics events for one page view.
type Sender struct {
	transport  Transport
	session    *kv.Safe
	clock      timeutil.Clock
	log        debuglog.Logger
	observer   Observer
	maxRetries int

	pageURL string
	path    string

	wg sync.WaitGroup
}

// Option configures a Sender.
type Option func(*Sender)

func WithClock(c timeutil.Clock) Option {
	return func(s *Sender) { s.clock = c }
}

func WithLogger(l debuglog.Logger) Option {
	return func(s *Sender) { s.log = l }
}

// WithObserver reports every attempt to o.
func WithObserver(o Observer) Option {
	return func(s *Sender) { s.observer = o }
}

// WithMaxRetries sets how many retries follow a retryable failure.
func WithMaxRetries(n int) Option {
	return func(s *Sender) { s.maxRetries = n }
}

// NewSender creates a Sender for the page at pageURL. session holds the
// impression-tracked set.
func NewSender(t Transport, session *kv.Safe, pageURL string, opts ...Option) *Sender {
	s := &Sender{
		transport:  t,
		session:    session,
		clock:      timeutil.SystemClock,
		log:        debuglog.Nop{},
		maxRetries: DefaultMaxRetries,
		pageURL:    pageURL,
		path:       pathOf(pageURL),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func pathOf(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil || u.Path == "" {
		return "/"
	}
	return u.Path
}

// ImpressionKey is the session store key marking an impression as sent.
func ImpressionKey(timerID, path string) string {
	return "impression_" + timerID + "_" + path
}

// Send submits an event without waiting for the result. Impressions are
// sent at most once per timer and path within the session; the mark is
// set before sending, so a failed send is not repeated either.
func (s *Sender) Send(ctx context.Context, kind Kind, timerID string) error {
	if timerID == "" {
		s.log.Log("analytics", "missing timer id", "event", kind)
		return ErrNoTimerID
	}

	ev := Event{
		Event:     kind,
		TimerID:   timerID,
		Timestamp: timeutil.EpochMillis(s.clock.Now()),
		URL:       s.pageURL,
	}

	if kind == KindImpression {
		key := ImpressionKey(timerID, s.path)
		if _, seen := s.session.Get(key); seen {
			s.observe(ev, 0, Response{}, nil, events.OutcomeDeduped, 0)
			return nil
		}
		s.session.Set(key, "1")
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.attempt(ctx, ev, 0)
	}()
	return nil
}

func (s *Sender) attempt(ctx context.Context, ev Event, attempt int) {
	resp, err := s.transport.Deliver(ctx, ev)
	if err == nil && resp.Success() {
		s.observe(ev, attempt, resp, nil, events.OutcomeDelivered, 0)
		return
	}

	retryable := err != nil || resp.Retryable()
	if !retryable || attempt >= s.maxRetries {
		s.log.Log("analytics", "giving up", "timer", ev.TimerID, "event", ev.Event, "attempt", attempt, "status", resp.Status, "err", err)
		s.observe(ev, attempt, resp, err, events.OutcomeDropped, 0)
		return
	}

	delay := Backoff(attempt)
	s.wg.Add(1)
	s.clock.AfterFunc(delay, func() {
		defer s.wg.Done()
		s.attempt(ctx, ev, attempt+1)
	})
	s.log.Log("analytics", "retrying", "timer", ev.TimerID, "event", ev.Event, "attempt", attempt, "status", resp.Status, "delay", delay)
	s.observe(ev, attempt, resp, err, events.OutcomeRetrying, delay)
}

// Backoff is the delay before retry number attempt+1: 1s, 2s, 4s, ...
func Backoff(attempt int) time.Duration {
	return time.Duration(1<<attempt) * time.Second
}

func (s *Sender) observe(ev Event, attempt int, resp Response, err error, outcome events.Outcome, retryIn time.Duration) {
	if s.observer == nil {
		return
	}
	d := events.Delivery{
		TimerID:   ev.TimerID,
		Event:     string(ev.Event),
		Attempt:   attempt,
		Status:    resp.Status,
		Outcome:   outcome,
		RetryIn:   retryIn,
		Timestamp: s.clock.Now(),
	}
	if err != nil {
		d.Status = 0
		d.Err = err.Error()
	}
	s.observer.Add(d)
}

// Wait blocks until every in-flight delivery, including scheduled retries,
// has finished or ctx is done.
func (s *Sender) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

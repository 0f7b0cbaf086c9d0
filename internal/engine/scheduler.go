package engine

import (
	"sort"
	"sync"
	"time"

	"github.com/nixlim/storetimer/internal/timeutil"
)

// FrameScheduler delivers frame callbacks with a monotonically increasing
// timestamp measured from an arbitrary origin. Each request fires at most
// once.
type FrameScheduler interface {
	RequestFrame(fn func(ts time.Duration)) int
	CancelFrame(id int)
}

// TickerScheduler fires each requested frame one interval after the
// request, timestamped by elapsed clock time since the scheduler was
// created.
type TickerScheduler struct {
	clock    timeutil.Clock
	interval time.Duration
	origin   time.Time

	mu     sync.Mutex
	nextID int
	timers map[int]timeutil.Timer
}

// NewTickerScheduler creates a scheduler that fires frames every interval.
func NewTickerScheduler(clock timeutil.Clock, interval time.Duration) *TickerScheduler {
	if clock == nil {
		clock = timeutil.SystemClock
	}
	return &TickerScheduler{
		clock:    clock,
		interval: interval,
		origin:   clock.Now(),
		timers:   make(map[int]timeutil.Timer),
	}
}

func (s *TickerScheduler) RequestFrame(fn func(ts time.Duration)) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	s.timers[id] = s.clock.AfterFunc(s.interval, func() {
		s.mu.Lock()
		_, live := s.timers[id]
		delete(s.timers, id)
		s.mu.Unlock()
		if live {
			fn(s.clock.Now().Sub(s.origin))
		}
	})
	return id
}

func (s *TickerScheduler) CancelFrame(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[id]; ok {
		t.Stop()
		delete(s.timers, id)
	}
}

// ManualScheduler queues frame requests until Fire is called. Tests and
// the preview UI use it to drive frames explicitly.
type ManualScheduler struct {
	mu      sync.Mutex
	nextID  int
	pending map[int]func(time.Duration)
}

// NewManualScheduler creates an empty ManualScheduler.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{pending: make(map[int]func(time.Duration))}
}

func (s *ManualScheduler) RequestFrame(fn func(ts time.Duration)) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.pending[s.nextID] = fn
	return s.nextID
}

func (s *ManualScheduler) CancelFrame(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, id)
}

// Fire runs every frame requested before the call, in request order.
// Frames requested by those callbacks wait for the next Fire.
func (s *ManualScheduler) Fire(ts time.Duration) {
	s.mu.Lock()
	ids := make([]int, 0, len(s.pending))
	for id := range s.pending {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(time.Duration), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.pending[id])
		delete(s.pending, id)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(ts)
	}
}

// Pending reports how many frames are waiting.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

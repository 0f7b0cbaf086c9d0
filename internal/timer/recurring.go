package timer

import (
	"context"
	"time"

	"github.com/nixlim/storetimer/internal/timeutil"
)

// RecheckDelay is how long a recurring timer waits after expiry before
// evaluating its window again.
const RecheckDelay = time.Second

// recurring is active during a daily time-of-day window on selected
// weekdays. It keeps no persisted state.
type recurring struct {
	base
	days    map[time.Weekday]bool
	recheck timeutil.Timer
	closed  bool
}

func newRecurring(cfg Config, deps Deps) Handler {
	days := make(map[time.Weekday]bool, len(cfg.RecurringDays))
	for _, d := range cfg.RecurringDays {
		days[d] = true
	}
	return &recurring{base: base{cfg: cfg, deps: deps}, days: days}
}

func (h *recurring) Initialize(context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.evaluateLocked()
	return nil
}

// MinutesUntilEnd reports whether minute-of-day cur falls inside the daily
// window [start, end) and how many minutes remain in it. end < start spans
// midnight.
func MinutesUntilEnd(cur, start, end int) (int, bool) {
	if end < start {
		switch {
		case cur >= start:
			return timeutil.MinutesPerDay - cur + end, true
		case cur < end:
			return end - cur, true
		}
		return 0, false
	}
	if cur >= start && cur < end {
		return end - cur, true
	}
	return 0, false
}

func (h *recurring) evaluateLocked() {
	now := h.now()
	z := timeutil.In(now, h.cfg.TimeZone)
	if !h.days[z.Weekday] {
		h.clearEnd()
		return
	}

	start, ok1 := timeutil.ParseHHMM(h.cfg.RecurringStart)
	end, ok2 := timeutil.ParseHHMM(h.cfg.RecurringEnd)
	if !ok1 || !ok2 {
		h.log("invalid window", "start", h.cfg.RecurringStart, "end", h.cfg.RecurringEnd)
		h.clearEnd()
		return
	}

	until, ok := MinutesUntilEnd(z.MinuteOfDay, start, end)
	if !ok {
		h.clearEnd()
		return
	}
	h.setEnd(untilMinute(now, z, until))
}

// untilMinute returns the instant `minutes` whole minutes after the start
// of the current zone minute.
func untilMinute(now time.Time, z timeutil.ZoneTime, minutes int) time.Time {
	intoMinute := time.Duration(z.Time.Second())*time.Second + time.Duration(z.Time.Nanosecond())
	return now.Add(time.Duration(minutes)*time.Minute - intoMinute)
}

func (h *recurring) IsActive() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.evaluateLocked()
	return h.activeLocked()
}

// OnExpire schedules a single re-evaluation RecheckDelay later. A window
// that resumes (for example right after midnight) is refreshed; otherwise
// the expired text is shown if configured.
func (h *recurring) OnExpire() ExpireAction {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed || h.deps.Host == nil {
		return h.expiredActionLocked()
	}
	if h.recheck != nil {
		h.recheck.Stop()
	}
	h.recheck = h.deps.Clock.AfterFunc(RecheckDelay, h.recheckWindow)
	return ExpireNone
}

func (h *recurring) recheckWindow() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.recheck = nil
	h.evaluateLocked()
	active := h.activeLocked()
	showExpired := h.cfg.ExpiredText != ""
	h.mu.Unlock()

	switch {
	case active:
		h.deps.Host.RefreshTimer(h.cfg.ID)
	case showExpired:
		h.deps.Host.ShowExpiredState(h.cfg.ID)
	}
}

func (h *recurring) Cleanup() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	if h.recheck != nil {
		h.recheck.Stop()
		h.recheck = nil
	}
}

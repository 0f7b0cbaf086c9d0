package timer

import (
	"context"
	"time"

	"github.com/nixlim/storetimer/internal/timeutil"
)

// cycle is the persisted evergreen record. Times are epoch milliseconds.
type cycle struct {
	StartTime int64  `json:"startTime"`
	ResetAt   *int64 `json:"resetAt"`
}

// evergreen restarts its window per visitor, with an optional cooldown
// between windows.
type evergreen struct {
	base
	key string
}

func newEvergreen(cfg Config, deps Deps) Handler {
	return &evergreen{
		base: base{cfg: cfg, deps: deps},
		key:  EvergreenKey(cfg.ID, deps.VisitorID),
	}
}

// EvergreenKey is the durable store key of a visitor's evergreen cycle.
func EvergreenKey(timerID, visitorID string) string {
	return "evergreen_" + timerID + "_" + visitorID
}

func (h *evergreen) Initialize(context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calculateLocked()
	return nil
}

// calculateLocked resolves the current cycle, starting or cooling down as
// needed, and stores the resulting end time.
func (h *evergreen) calculateLocked() {
	dur := h.cfg.EvergreenDuration
	if dur <= 0 {
		h.log("no evergreen duration configured")
		h.clearEnd()
		return
	}

	now := h.now()
	var c cycle
	if !h.deps.Durable.GetJSON(h.key, &c) {
		h.startLocked(now, dur)
		return
	}

	if c.ResetAt != nil && !now.Before(timeutil.FromEpochMillis(*c.ResetAt)) {
		h.startLocked(now, dur)
		return
	}

	end := timeutil.FromEpochMillis(c.StartTime).Add(dur)
	if !now.After(end) {
		h.setEnd(end)
		return
	}

	if h.cfg.EvergreenReset <= 0 {
		h.startLocked(now, dur)
		return
	}

	if c.ResetAt == nil {
		resetAt := timeutil.EpochMillis(end.Add(h.cfg.EvergreenReset))
		c.ResetAt = &resetAt
		h.deps.Durable.SetJSON(h.key, c)
		h.log("cycle ended, cooling down", "resetAt", resetAt)
	}
	if !now.Before(timeutil.FromEpochMillis(*c.ResetAt)) {
		h.startLocked(now, dur)
		return
	}
	h.clearEnd()
}

func (h *evergreen) startLocked(now time.Time, dur time.Duration) {
	c := cycle{StartTime: timeutil.EpochMillis(now)}
	h.deps.Durable.SetJSON(h.key, c)
	h.setEnd(timeutil.FromEpochMillis(c.StartTime).Add(dur))
	h.log("new cycle", "start", c.StartTime)
}

// IsActive recomputes the cycle first; it can roll over between ticks.
func (h *evergreen) IsActive() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calculateLocked()
	return h.activeLocked()
}

func (h *evergreen) OnExpire() ExpireAction {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calculateLocked()
	if h.activeLocked() {
		return ExpireRefresh
	}
	return h.expiredActionLocked()
}

package timer

import (
	"context"
	"fmt"
	"time"

	"github.com/nixlim/storetimer/internal/timeutil"
)

// MaxShippingScanDays bounds the search for the next shipping day.
const MaxShippingScanDays = 14

// Shipping messages shown once the cutoff has passed.
const (
	MessageTomorrow = "Order now for delivery tomorrow!"
	MessageWeekday  = "Order now for %s delivery!"
	MessageFallback = "Order now for the next available delivery!"
)

// shipping counts down to the daily order cutoff and names the next
// shipping day once it has passed.
type shipping struct {
	base
	excluded map[time.Weekday]bool
	holidays map[string]bool

	pastCutoff bool
	zone       timeutil.ZoneTime
	next       *nextDay
}

type nextDay struct {
	found    bool
	weekday  time.Weekday
	daysAway int
}

func newShipping(cfg Config, deps Deps) Handler {
	h := &shipping{
		base:     base{cfg: cfg, deps: deps},
		excluded: make(map[time.Weekday]bool, len(cfg.ShippingExcludedDays)),
		holidays: make(map[string]bool, len(cfg.ShippingHolidays)),
	}
	for _, d := range cfg.ShippingExcludedDays {
		h.excluded[d] = true
	}
	for _, d := range cfg.ShippingHolidays {
		h.holidays[d] = true
	}
	return h
}

func (h *shipping) Initialize(context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.evaluateLocked()
	return nil
}

func (h *shipping) cutoff() int {
	if m, ok := timeutil.ParseHHMM(h.cfg.ShippingCutoff); ok {
		return m
	}
	m, _ := timeutil.ParseHHMM(DefaultShippingCutoff)
	return m
}

func (h *shipping) shipsOn(z timeutil.ZoneTime) bool {
	return !h.excluded[z.Weekday] && !h.holidays[z.Date]
}

func (h *shipping) evaluateLocked() {
	now := h.now()
	z := timeutil.In(now, h.cfg.TimeZone)
	cutoff := h.cutoff()

	h.zone = z
	h.next = nil
	h.pastCutoff = !h.shipsOn(z) || z.MinuteOfDay >= cutoff
	if h.pastCutoff {
		h.clearEnd()
		return
	}
	h.setEnd(untilMinute(now, z, cutoff-z.MinuteOfDay))
}

// nextLocked finds the next shipping day on first use after an evaluation.
func (h *shipping) nextLocked() nextDay {
	if h.next != nil {
		return *h.next
	}
	n := nextDay{}
	for i := 1; i <= MaxShippingScanDays; i++ {
		d := h.zone.AddDays(i)
		if h.shipsOn(d) {
			n = nextDay{found: true, weekday: d.Weekday, daysAway: i}
			break
		}
	}
	h.next = &n
	return n
}

func (h *shipping) IsActive() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.evaluateLocked()
	return h.activeLocked()
}

// OnExpire re-evaluates; the engine then shows the next-day message.
func (h *shipping) OnExpire() ExpireAction {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.evaluateLocked()
	if h.activeLocked() {
		return ExpireRefresh
	}
	return ExpireNone
}

func (h *shipping) DisplayMessage() (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.pastCutoff {
		return "", false
	}
	if h.cfg.NextDayText != "" {
		return h.cfg.NextDayText, true
	}
	n := h.nextLocked()
	switch {
	case !n.found:
		return MessageFallback, true
	case n.daysAway == 1:
		return MessageTomorrow, true
	}
	return fmt.Sprintf(MessageWeekday, n.weekday), true
}

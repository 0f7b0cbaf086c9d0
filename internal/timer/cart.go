package timer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nixlim/storetimer/internal/timeutil"
)

// DefaultCartDuration applies when neither a cart nor an evergreen duration
// is configured.
const DefaultCartDuration = 15 * time.Minute

type cartCycle struct {
	StartTime int64 `json:"startTime"`
}

// cart counts down on the cart page only, optionally gated by a minimum
// subtotal. Its cycle lives for the session.
type cart struct {
	base
	key      string
	subtotal float64
}

func newCart(cfg Config, deps Deps) Handler {
	return &cart{base: base{cfg: cfg, deps: deps}, key: CartKey(cfg.ID)}
}

// CartKey is the session store key of a cart timer's cycle.
func CartKey(timerID string) string {
	return "cart_timer_" + timerID
}

// Initialize fetches the subtotal when on the cart page. A failed fetch
// counts as an empty cart.
func (h *cart) Initialize(ctx context.Context) error {
	h.mu.Lock()
	onCart := h.onCartPageLocked()
	if !onCart {
		h.clearEnd()
	}
	h.mu.Unlock()
	if !onCart {
		return nil
	}

	var subtotal float64
	if h.deps.Cart != nil {
		subtotal = h.deps.Cart.Subtotal(ctx)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.subtotal = subtotal
	if !h.qualifiedLocked() {
		h.log("below threshold", "subtotal", subtotal, "threshold", h.cfg.CartThreshold)
		h.clearEnd()
		return nil
	}
	h.resolveCycleLocked()
	return nil
}

func (h *cart) duration() time.Duration {
	switch {
	case h.cfg.CartDuration > 0:
		return h.cfg.CartDuration
	case h.cfg.EvergreenDuration > 0:
		return h.cfg.EvergreenDuration
	}
	return DefaultCartDuration
}

func (h *cart) resolveCycleLocked() {
	now := h.now()
	dur := h.duration()

	var c cartCycle
	if h.deps.Session.GetJSON(h.key, &c) {
		end := timeutil.FromEpochMillis(c.StartTime).Add(dur)
		if now.Before(end) {
			h.setEnd(end)
			return
		}
	}

	c = cartCycle{StartTime: timeutil.EpochMillis(now)}
	h.deps.Session.SetJSON(h.key, c)
	h.setEnd(timeutil.FromEpochMillis(c.StartTime).Add(dur))
	h.log("new cart cycle", "start", c.StartTime)
}

func (h *cart) onCartPageLocked() bool {
	path := trimSlash(h.deps.PagePath)
	if path == trimSlash(h.deps.CartPath) {
		return true
	}
	return h.deps.CartRoute != "" && path == trimSlash(h.deps.CartRoute)
}

func trimSlash(p string) string {
	if len(p) > 1 {
		return strings.TrimRight(p, "/")
	}
	return p
}

func (h *cart) qualifiedLocked() bool {
	return h.cfg.CartThreshold <= 0 || h.subtotal >= h.cfg.CartThreshold
}

// IsActive re-checks page and threshold before looking at the clock.
func (h *cart) IsActive() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.onCartPageLocked() || !h.qualifiedLocked() {
		return false
	}
	return h.activeLocked()
}

// DisplayMessage nudges toward the threshold when the cart falls short.
func (h *cart) DisplayMessage() (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.onCartPageLocked() || h.qualifiedLocked() {
		return "", false
	}
	return fmt.Sprintf("Add $%.2f more to qualify!", h.cfg.CartThreshold-h.subtotal), true
}

package timer

import "context"

// fixed counts down to the configured absolute end time.
type fixed struct {
	base
}

func newFixed(cfg Config, deps Deps) Handler {
	return &fixed{base: base{cfg: cfg, deps: deps}}
}

func (h *fixed) Initialize(context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cfg.EndTime.IsZero() {
		h.log("no end time configured")
		h.clearEnd()
		return nil
	}
	h.setEnd(h.cfg.EndTime)
	return nil
}

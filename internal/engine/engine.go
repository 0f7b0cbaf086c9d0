// Package engine owns the registered timer handlers and the single render
// loop that writes their countdowns into the page.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nixlim/storetimer/internal/debuglog"
	"github.com/nixlim/storetimer/internal/page"
	"github.com/nixlim/storetimer/internal/timer"
	"github.com/nixlim/storetimer/internal/timeutil"
)

// ErrNoTimerID is returned when registering a configuration without an id.
var ErrNoTimerID = errors.New("engine: timer has no id")

// Defaults for the render loop.
const (
	DefaultTickInterval  = time.Second
	DefaultFrameInterval = 100 * time.Millisecond
	DefaultPulse         = 300 * time.Millisecond
)

// State is what a registered timer element currently shows.
type State int

const (
	StateHidden State = iota
	StateDigits
	StateMessage
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateDigits:
		return "digits"
	case StateMessage:
		return "message"
	case StateExpired:
		return "expired"
	}
	return "hidden"
}

type entry struct {
	cfg     timer.Config
	handler timer.Handler
	el      *page.Element
	state   State
	digits  map[string]string
	message string
}

// Engine drives every registered timer from one throttled frame loop. All
// handler evaluation and digit writes happen under mu.
type Engine struct {
	deps         timer.Deps
	clock        timeutil.Clock
	sched        FrameScheduler
	log          debuglog.Logger
	tickInterval time.Duration
	pulse        time.Duration

	mu       sync.Mutex
	entries  map[string]*entry
	order    []string
	running  bool
	frameID  int
	ticked   bool
	lastTick time.Duration
	ticks    int
}

// Option configures an Engine.
type Option func(*Engine)

// WithScheduler sets the frame source. The default is a TickerScheduler
// firing every DefaultFrameInterval.
func WithScheduler(s FrameScheduler) Option {
	return func(e *Engine) { e.sched = s }
}

// WithTickInterval sets the minimum frame-time gap between visible updates.
func WithTickInterval(d time.Duration) Option {
	return func(e *Engine) { e.tickInterval = d }
}

// WithPulse sets how long the tick class stays on a changed digit. Zero
// disables the pulse.
func WithPulse(d time.Duration) Option {
	return func(e *Engine) { e.pulse = d }
}

// New creates an Engine. deps is the template every handler is built with;
// its Host is replaced by the engine.
func New(deps timer.Deps, opts ...Option) *Engine {
	e := &Engine{
		deps:         deps,
		clock:        deps.Clock,
		log:          deps.Log,
		tickInterval: DefaultTickInterval,
		pulse:        DefaultPulse,
		entries:      make(map[string]*entry),
	}
	if e.clock == nil {
		e.clock = timeutil.SystemClock
		e.deps.Clock = e.clock
	}
	if e.log == nil {
		e.log = debuglog.Nop{}
	}
	e.deps.Host = e
	for _, opt := range opts {
		opt(e)
	}
	if e.sched == nil {
		e.sched = NewTickerScheduler(e.clock, DefaultFrameInterval)
	}
	return e
}

// Register builds and initializes the handler for cfg and binds it to el.
// Initialization runs without the engine lock held since it may block.
// Registering an id twice is a no-op.
func (e *Engine) Register(ctx context.Context, cfg timer.Config, el *page.Element) error {
	if cfg.ID == "" {
		return ErrNoTimerID
	}
	if e.Has(cfg.ID) {
		return nil
	}

	h := timer.New(cfg, e.deps)
	if err := h.Initialize(ctx); err != nil {
		h.Cleanup()
		return fmt.Errorf("initializing timer %s: %w", cfg.ID, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.entries[cfg.ID]; ok {
		h.Cleanup()
		return nil
	}
	e.entries[cfg.ID] = &entry{cfg: cfg, handler: h, el: el, digits: make(map[string]string)}
	e.order = append(e.order, cfg.ID)
	e.log.Log("engine", "registered", "timer", cfg.ID, "kind", cfg.Kind)
	return nil
}

// Unregister cleans up and forgets a timer.
func (e *Engine) Unregister(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	en, ok := e.entries[id]
	if !ok {
		return
	}
	en.handler.Cleanup()
	delete(e.entries, id)
	for i, v := range e.order {
		if v == id {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
}

func (e *Engine) Has(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.entries[id]
	return ok
}

// Handler returns the handler registered for id.
func (e *Engine) Handler(id string) (timer.Handler, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	en, ok := e.entries[id]
	if !ok {
		return nil, false
	}
	return en.handler, true
}

// Present renders the initial state of a freshly registered timer and
// reports whether it is visible: live digits when active, otherwise a
// display message, otherwise the expired text. With none of those the
// element is hidden.
func (e *Engine) Present(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	en, ok := e.entries[id]
	if !ok {
		return false
	}

	switch {
	case en.handler.IsActive():
		r, _ := en.handler.TimeRemaining()
		e.renderDigitsLocked(en, r, false)
	case e.renderMessageIfAnyLocked(en):
	case en.cfg.ExpiredText != "":
		e.showExpiredLocked(en)
	default:
		en.state = StateHidden
		en.el.Hide()
		return false
	}
	en.el.Show()
	return true
}

// Start begins the render loop. It is a no-op when already running.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return
	}
	e.running = true
	e.ticked = false
	e.frameID = e.sched.RequestFrame(e.frame)
}

// Stop halts the render loop and cancels the pending frame. It is a no-op
// when not running.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return
	}
	e.running = false
	e.sched.CancelFrame(e.frameID)
}

// Running reports whether the render loop is active.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Ticks reports how many visible updates the loop has performed.
func (e *Engine) Ticks() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ticks
}

func (e *Engine) frame(ts time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return
	}
	e.frameID = e.sched.RequestFrame(e.frame)

	if e.ticked && ts-e.lastTick < e.tickInterval {
		return
	}
	e.ticked = true
	e.lastTick = ts
	e.ticks++
	e.tickLocked()
}

func (e *Engine) tickLocked() {
	for _, id := range e.order {
		en := e.entries[id]
		if en.state == StateHidden || !en.el.Attached() {
			continue
		}

		if en.state != StateDigits {
			e.reviveLocked(en)
			continue
		}

		r, ok := en.handler.TimeRemaining()
		if !ok || r.Expired() {
			e.expireLocked(en)
			continue
		}
		e.renderDigitsLocked(en, r, true)
	}
}

// reviveLocked returns an expired or message-showing timer to live digits
// once its handler reports a new active window, and keeps a shown message
// current otherwise.
func (e *Engine) reviveLocked(en *entry) {
	if en.handler.IsActive() {
		e.refreshLocked(en)
		return
	}
	if en.state == StateMessage {
		e.renderMessageIfAnyLocked(en)
	}
}

func (e *Engine) expireLocked(en *entry) {
	en.el.AddClass(page.ExpiredClass)
	en.state = StateExpired

	action := en.handler.OnExpire()
	e.log.Log("engine", "expired", "timer", en.cfg.ID, "action", action)
	switch action {
	case timer.ExpireRefresh:
		e.refreshLocked(en)
	case timer.ExpireShowExpired:
		e.showExpiredLocked(en)
	default:
		if !e.renderMessageIfAnyLocked(en) {
			e.renderDigitsLocked(en, timer.Remaining{}, false)
			en.state = StateExpired
		}
	}
}

// RefreshTimer re-renders a timer whose handler started a new window.
func (e *Engine) RefreshTimer(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if en, ok := e.entries[id]; ok {
		e.refreshLocked(en)
	}
}

// ShowExpiredState renders the expired fallback immediately.
func (e *Engine) ShowExpiredState(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if en, ok := e.entries[id]; ok {
		e.showExpiredLocked(en)
	}
}

func (e *Engine) refreshLocked(en *entry) {
	r, ok := en.handler.TimeRemaining()
	if ok && !r.Expired() {
		en.el.RemoveClass(page.ExpiredClass)
		e.renderDigitsLocked(en, r, false)
		return
	}
	e.renderMessageIfAnyLocked(en)
}

func (e *Engine) showExpiredLocked(en *entry) {
	en.el.AddClass(page.ExpiredClass)
	if en.cfg.ExpiredText != "" {
		e.renderMessageLocked(en, en.cfg.ExpiredText)
	} else {
		e.renderDigitsLocked(en, timer.Remaining{}, false)
	}
	en.state = StateExpired
}

func (e *Engine) renderMessageIfAnyLocked(en *entry) bool {
	msg, ok := en.handler.DisplayMessage()
	if !ok {
		return false
	}
	e.renderMessageLocked(en, msg)
	return true
}

func (e *Engine) renderMessageLocked(en *entry, msg string) {
	if d := en.el.FindClass(page.DigitsClass); d != nil {
		d.Hide()
	}
	m := en.el.FindClass(page.MessageClass)
	if m == nil {
		e.log.Log("engine", "no message slot", "timer", en.cfg.ID)
	} else {
		if en.message != msg || m.Text() != msg {
			m.SetText(msg)
		}
		m.Show()
	}
	en.message = msg
	en.state = StateMessage
}

// renderDigitsLocked writes each shown unit, touching only digits whose
// text changed. Changed digits get the tick class for the pulse duration.
func (e *Engine) renderDigitsLocked(en *entry, r timer.Remaining, pulse bool) {
	if m := en.el.FindClass(page.MessageClass); m != nil {
		m.Hide()
	}
	if d := en.el.FindClass(page.DigitsClass); d != nil {
		d.Show()
	}

	for _, unit := range timer.Units {
		slot := en.el.FindAttr(page.UnitAttr, unit)
		if slot == nil {
			continue
		}
		if !en.cfg.ShowsUnit(unit) {
			if block := slot.Closest(page.UnitClass); block != nil {
				block.Hide()
			} else {
				slot.Hide()
			}
			continue
		}

		v, _ := r.Unit(unit)
		text := fmt.Sprintf("%02d", v)
		if en.digits[unit] == text {
			continue
		}
		slot.SetText(text)
		en.digits[unit] = text
		if pulse && e.pulse > 0 {
			slot.AddClass(page.TickClass)
			e.clock.AfterFunc(e.pulse, func() { slot.RemoveClass(page.TickClass) })
		}
	}
	en.message = ""
	en.state = StateDigits
}

// View is a read-only snapshot of one registered timer.
type View struct {
	ID      string
	Kind    timer.Kind
	Label   string
	State   State
	Expired bool
	Message string
	Digits  map[string]string
	Config  timer.Config
}

// Views returns snapshots of every attached timer in registration order.
func (e *Engine) Views() []View {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]View, 0, len(e.order))
	for _, id := range e.order {
		en := e.entries[id]
		if !en.el.Attached() {
			continue
		}
		v := View{
			ID:      id,
			Kind:    en.cfg.Kind,
			State:   en.state,
			Expired: en.el.HasClass(page.ExpiredClass),
			Message: en.message,
			Digits:  make(map[string]string, len(en.digits)),
			Config:  en.cfg,
		}
		if l := en.el.FindClass(page.LabelClass); l != nil {
			v.Label = l.Text()
		}
		for k, d := range en.digits {
			v.Digits[k] = d
		}
		out = append(out, v)
	}
	return out
}

// Package bootstrap discovers timer elements on a page, filters them by
// targeting rules and the closed-timer set, and hands survivors to the
// render engine.
package bootstrap

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/nixlim/storetimer/internal/analytics"
	"github.com/nixlim/storetimer/internal/debuglog"
	"github.com/nixlim/storetimer/internal/engine"
	"github.com/nixlim/storetimer/internal/kv"
	"github.com/nixlim/storetimer/internal/page"
	"github.com/nixlim/storetimer/internal/timer"
	"github.com/nixlim/storetimer/internal/timeutil"
)

// DefaultCloseDelay matches the exit animation of a closed timer.
const DefaultCloseDelay = 300 * time.Millisecond

// CartRouteAttr names the wrapper attribute carrying the platform cart route.
const CartRouteAttr = "data-cart-route"

// Tracker submits analytics events.
type Tracker interface {
	Send(ctx context.Context, kind analytics.Kind, timerID string) error
}

// Bootstrapper wires one page's timers into an engine.
type Bootstrapper struct {
	doc     *page.Document
	engine  *engine.Engine
	tracker Tracker
	closed  *ClosedSet
	clock   timeutil.Clock
	log     debuglog.Logger

	path       string
	closeDelay time.Duration

	mu       sync.Mutex
	elements map[string]*page.Element
	visible  map[string]bool
	closing  map[string]timeutil.Timer
}

// Option configures a Bootstrapper.
type Option func(*Bootstrapper)

func WithClock(c timeutil.Clock) Option {
	return func(b *Bootstrapper) { b.clock = c }
}

func WithLogger(l debuglog.Logger) Option {
	return func(b *Bootstrapper) { b.log = l }
}

// WithCloseDelay sets how long a closing timer stays in the page.
func WithCloseDelay(d time.Duration) Option {
	return func(b *Bootstrapper) { b.closeDelay = d }
}

// WithPath overrides the path used for targeting. By default it is taken
// from the document URL.
func WithPath(p string) Option {
	return func(b *Bootstrapper) { b.path = p }
}

// New creates a Bootstrapper. durable holds the closed-timer set.
func New(doc *page.Document, eng *engine.Engine, tracker Tracker, durable *kv.Safe, opts ...Option) *Bootstrapper {
	b := &Bootstrapper{
		doc:        doc,
		engine:     eng,
		tracker:    tracker,
		clock:      timeutil.SystemClock,
		log:        debuglog.Nop{},
		path:       PathOf(doc.URL()),
		closeDelay: DefaultCloseDelay,
		elements:   make(map[string]*page.Element),
		visible:    make(map[string]bool),
		closing:    make(map[string]timeutil.Timer),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.closed = NewClosedSet(durable, b.clock)
	return b
}

// PathOf returns the path component of a page URL, "/" when empty.
func PathOf(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil || u.Path == "" {
		return "/"
	}
	return u.Path
}

// CartRoute reads the platform cart route published on the wrapper.
func CartRoute(doc *page.Document) string {
	w := doc.ByID(page.WrapperID)
	if w == nil {
		return ""
	}
	v, _ := w.Attr(CartRouteAttr)
	return v
}

type candidate struct {
	cfg timer.Config
	el  *page.Element
}

// Run discovers and registers the page's timers, then starts the engine.
// The document is fully parsed before Run, so one call covers both the
// ready and load passes. Calling it again only picks up elements inserted
// since; ids already registered are left alone.
func (b *Bootstrapper) Run(ctx context.Context) error {
	wrapper := b.doc.ByID(page.WrapperID)
	if wrapper == nil {
		b.log.Log("bootstrap", "no timer container", "path", b.path)
		return nil
	}

	closed := b.closed.Load()
	var survivors []candidate
	for _, el := range b.doc.ByClass(page.TimerClass) {
		cfg := timer.FromAttributes(el.Attrs())
		switch {
		case cfg.ID == "":
			b.log.Log("bootstrap", "timer without id")
			el.Hide()
			continue
		case b.engine.Has(cfg.ID):
			continue
		}
		if _, ok := closed[cfg.ID]; ok {
			b.log.Log("bootstrap", "closed", "timer", cfg.ID)
			el.Hide()
			continue
		}
		if !Targeted(cfg, b.path) {
			b.log.Log("bootstrap", "not targeted", "timer", cfg.ID, "path", b.path)
			el.Hide()
			continue
		}
		survivors = append(survivors, candidate{cfg: cfg, el: el})
	}

	for _, c := range survivors {
		if b.tracker != nil {
			_ = b.tracker.Send(ctx, analytics.KindImpression, c.cfg.ID)
		}
	}

	for _, c := range survivors {
		if err := b.engine.Register(ctx, c.cfg, c.el); err != nil {
			b.log.Log("bootstrap", "register failed", "timer", c.cfg.ID, "err", err)
			c.el.Hide()
			continue
		}
		shown := b.engine.Present(c.cfg.ID)
		b.mu.Lock()
		b.elements[c.cfg.ID] = c.el
		b.visible[c.cfg.ID] = shown
		b.mu.Unlock()
	}

	if b.anyVisible() {
		wrapper.Show()
	} else {
		wrapper.Hide()
	}
	b.engine.Start()
	return nil
}

func (b *Bootstrapper) anyVisible() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, v := range b.visible {
		if v {
			return true
		}
	}
	return false
}

// Visible reports whether the timer id was shown by the last run and has
// not been closed since.
func (b *Bootstrapper) Visible(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.visible[id]
}

// Close dismisses a timer: it is recorded in the closed-timer set, given
// the closing class, and removed from the page once the exit animation has
// run. Closing the last visible timer hides the wrapper. Close reports
// whether id was a live timer.
func (b *Bootstrapper) Close(id string) bool {
	b.mu.Lock()
	el, ok := b.elements[id]
	if !ok {
		b.mu.Unlock()
		return false
	}
	if _, pending := b.closing[id]; pending {
		b.mu.Unlock()
		return true
	}
	b.closing[id] = b.clock.AfterFunc(b.closeDelay, func() { b.finishClose(id, el) })
	b.mu.Unlock()

	b.closed.Add(id)
	el.AddClass(page.ClosingClass)
	b.log.Log("bootstrap", "closing", "timer", id)
	return true
}

func (b *Bootstrapper) finishClose(id string, el *page.Element) {
	b.engine.Unregister(id)
	el.Remove()

	b.mu.Lock()
	delete(b.closing, id)
	delete(b.elements, id)
	delete(b.visible, id)
	b.mu.Unlock()

	if !b.anyVisible() {
		if w := b.doc.ByID(page.WrapperID); w != nil {
			w.Hide()
		}
	}
}

// ClickCTA records a click on a timer's call-to-action link and returns
// the link target to follow. ok is false when the timer has no link.
func (b *Bootstrapper) ClickCTA(ctx context.Context, id string) (href string, ok bool) {
	b.mu.Lock()
	el, found := b.elements[id]
	b.mu.Unlock()
	if !found {
		return "", false
	}
	link := el.FindLink(page.CTAClass)
	if link == nil {
		return "", false
	}
	if b.tracker != nil {
		_ = b.tracker.Send(ctx, analytics.KindClick, id)
	}
	return link.Attr("href")
}

// Stop halts the engine and cancels pending close animations.
func (b *Bootstrapper) Stop() {
	b.mu.Lock()
	for id, t := range b.closing {
		t.Stop()
		delete(b.closing, id)
	}
	b.mu.Unlock()
	b.engine.Stop()
}

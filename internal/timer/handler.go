package timer

import (
	"context"
	"sync"
	"time"

	"github.com/nixlim/storetimer/internal/debuglog"
	"github.com/nixlim/storetimer/internal/kv"
	"github.com/nixlim/storetimer/internal/timeutil"
)

// ExpireAction tells the engine what to do after a handler reacted to its
// countdown reaching zero.
type ExpireAction int

const (
	// ExpireNone leaves the element as is; the engine renders a display
	// message if the handler has one.
	ExpireNone ExpireAction = iota
	// ExpireRefresh means a new window started and digits should resume.
	ExpireRefresh
	// ExpireShowExpired means the expired text should be rendered.
	ExpireShowExpired
)

func (a ExpireAction) String() string {
	switch a {
	case ExpireRefresh:
		return "refresh"
	case ExpireShowExpired:
		return "show-expired"
	}
	return "none"
}

// Handler computes the countdown window for one timer. All methods except
// Initialize are cheap and never block.
type Handler interface {
	// Initialize computes the first end time. It may block on I/O.
	Initialize(ctx context.Context) error

	// TimeRemaining reports the time left until the current end time, and
	// false when the timer has no end time right now.
	TimeRemaining() (Remaining, bool)

	IsActive() bool

	// OnExpire reacts to the countdown reaching zero.
	OnExpire() ExpireAction

	// DisplayMessage returns text to show instead of digits, if any.
	DisplayMessage() (string, bool)

	// Cleanup releases handler resources. It is idempotent.
	Cleanup()
}

// Host receives deferred requests from handlers. The engine implements it.
// Handlers never call it while holding their own lock.
type Host interface {
	RefreshTimer(id string)
	ShowExpiredState(id string)
}

// CartSource reports the current cart subtotal in currency units. Failures
// are reported as zero.
type CartSource interface {
	Subtotal(ctx context.Context) float64
}

// Deps carries the shared collaborators handlers are built with.
type Deps struct {
	Clock   timeutil.Clock
	Durable *kv.Safe
	Session *kv.Safe

	VisitorID string

	// PagePath is the path of the page the timer renders on.
	PagePath string
	// CartPath is the configured cart page path; CartRoute is the
	// platform-provided cart route, if the page carries one.
	CartPath  string
	CartRoute string
	Cart      CartSource

	Host Host
	Log  debuglog.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Clock == nil {
		d.Clock = timeutil.SystemClock
	}
	if d.Log == nil {
		d.Log = debuglog.Nop{}
	}
	if d.CartPath == "" {
		d.CartPath = "/cart"
	}
	return d
}

type constructor func(cfg Config, deps Deps) Handler

var registry = map[Kind]constructor{
	KindFixed:     newFixed,
	KindEvergreen: newEvergreen,
	KindRecurring: newRecurring,
	KindCart:      newCart,
	KindShipping:  newShipping,
}

// New builds the handler for cfg.Kind. Unrecognised kinds get a fixed
// countdown.
func New(cfg Config, deps Deps) Handler {
	deps = deps.withDefaults()
	ctor, ok := registry[cfg.Kind]
	if !ok {
		deps.Log.Log("timer", "unknown kind, using FIXED", "timer", cfg.ID, "kind", cfg.Kind)
		ctor = newFixed
	}
	return ctor(cfg, deps)
}

// base holds the state every variant shares: the configuration and the
// current end time. mu guards all handler state.
type base struct {
	mu     sync.Mutex
	cfg    Config
	deps   Deps
	end    time.Time
	hasEnd bool
}

func (b *base) setEnd(t time.Time) {
	b.end, b.hasEnd = t, true
}

func (b *base) clearEnd() {
	b.end, b.hasEnd = time.Time{}, false
}

func (b *base) now() time.Time {
	return b.deps.Clock.Now()
}

func (b *base) remainingLocked() (Remaining, bool) {
	if !b.hasEnd {
		return Remaining{}, false
	}
	return Split(b.end.Sub(b.now())), true
}

func (b *base) activeLocked() bool {
	r, ok := b.remainingLocked()
	return ok && r.Total > 0
}

func (b *base) expiredActionLocked() ExpireAction {
	if b.cfg.ExpiredText != "" {
		return ExpireShowExpired
	}
	return ExpireNone
}

func (b *base) TimeRemaining() (Remaining, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.remainingLocked()
}

func (b *base) IsActive() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.activeLocked()
}

func (b *base) OnExpire() ExpireAction {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.expiredActionLocked()
}

func (b *base) DisplayMessage() (string, bool) {
	return "", false
}

func (b *base) Cleanup() {}

func (b *base) log(message string, fields ...any) {
	b.deps.Log.Log(string(b.cfg.Kind), message, append([]any{"timer", b.cfg.ID}, fields...)...)
}

package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nixlim/storetimer/internal/kv"
	"github.com/nixlim/storetimer/internal/page"
	"github.com/nixlim/storetimer/internal/testutil"
	"github.com/nixlim/storetimer/internal/timer"
)

const timerPage = `<!DOCTYPE html><html><body><div id="countdown-timers">
<div class="countdown-timer" data-timer-id="t1" hidden>
  <div class="timer-digits">
    <span class="timer-unit"><span data-unit="days">--</span></span>
    <span class="timer-unit"><span data-unit="hours">--</span></span>
    <span class="timer-unit"><span data-unit="minutes">--</span></span>
    <span class="timer-unit"><span data-unit="seconds">--</span></span>
  </div>
  <span class="timer-message" hidden></span>
</div>
</div></body></html>`

type harness struct {
	clock *testutil.FakeClock
	sched *ManualScheduler
	doc   *page.Document
	el    *page.Element
	eng   *Engine
}

func newHarness(t *testing.T, now time.Time) *harness {
	t.Helper()
	doc, err := page.ParseString(timerPage, "https://shop.example/")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	clock := testutil.NewFakeClock(now)
	sched := NewManualScheduler()
	deps := timer.Deps{
		Clock:     clock,
		Durable:   kv.NewSafe("durable", kv.NewMemoryStore(), nil),
		Session:   kv.NewSafe("session", kv.NewMemoryStore(), nil),
		VisitorID: "v1",
		PagePath:  "/",
	}
	return &harness{
		clock: clock,
		sched: sched,
		doc:   doc,
		el:    doc.ByClass(page.TimerClass)[0],
		eng:   New(deps, WithScheduler(sched)),
	}
}

func (h *harness) register(t *testing.T, cfg timer.Config) {
	t.Helper()
	cfg.ID = "t1"
	if err := h.eng.Register(context.Background(), cfg, h.el); err != nil {
		t.Fatalf("Register: %v", err)
	}
}

func (h *harness) digit(unit string) string {
	return h.el.FindAttr(page.UnitAttr, unit).Text()
}

func (h *harness) message() string {
	return h.el.FindClass(page.MessageClass).Text()
}

func allUnits(cfg timer.Config) timer.Config {
	cfg.ShowDays, cfg.ShowHours, cfg.ShowMinutes, cfg.ShowSeconds = true, true, true, true
	return cfg
}

func TestEngine_RegisterRequiresID(t *testing.T) {
	h := newHarness(t, time.Now())
	err := h.eng.Register(context.Background(), timer.Config{}, h.el)
	if !errors.Is(err, ErrNoTimerID) {
		t.Fatalf("want ErrNoTimerID, got %v", err)
	}
}

func TestEngine_PresentAndTick(t *testing.T) {
	now := time.Date(2026, 10, 20, 12, 0, 0, 0, time.UTC)
	h := newHarness(t, now)
	h.register(t, allUnits(timer.Config{Kind: timer.KindFixed, EndTime: now.Add(26*time.Hour + 90*time.Second)}))

	if !h.eng.Present("t1") {
		t.Fatal("active timer should be visible")
	}
	if h.el.Hidden() {
		t.Error("element should be shown")
	}
	if got := []string{h.digit("days"), h.digit("hours"), h.digit("minutes"), h.digit("seconds")}; got[0] != "01" || got[1] != "02" || got[2] != "01" || got[3] != "30" {
		t.Errorf("initial digits: got %v", got)
	}

	h.eng.Start()
	h.sched.Fire(0)
	if h.eng.Ticks() != 1 {
		t.Fatalf("first frame should tick, got %d", h.eng.Ticks())
	}

	h.clock.Advance(time.Second)
	h.sched.Fire(600 * time.Millisecond)
	if h.digit("seconds") != "30" {
		t.Errorf("throttled frame must not update digits, got %s", h.digit("seconds"))
	}
	if h.eng.Ticks() != 1 {
		t.Errorf("throttled frame counted as tick")
	}

	h.sched.Fire(1000 * time.Millisecond)
	if h.digit("seconds") != "29" {
		t.Errorf("want 29 after one second, got %s", h.digit("seconds"))
	}
	seconds := h.el.FindAttr(page.UnitAttr, "seconds")
	if !seconds.HasClass(page.TickClass) {
		t.Error("changed digit should pulse")
	}
	if h.el.FindAttr(page.UnitAttr, "minutes").HasClass(page.TickClass) {
		t.Error("unchanged digit must not pulse")
	}
	h.clock.Advance(DefaultPulse)
	if seconds.HasClass(page.TickClass) {
		t.Error("pulse class should clear")
	}
}

func TestEngine_HiddenUnits(t *testing.T) {
	now := time.Date(2026, 10, 20, 12, 0, 0, 0, time.UTC)
	h := newHarness(t, now)
	cfg := allUnits(timer.Config{Kind: timer.KindFixed, EndTime: now.Add(time.Hour)})
	cfg.ShowDays = false
	h.register(t, cfg)
	h.eng.Present("t1")

	block := h.el.FindAttr(page.UnitAttr, "days").Closest(page.UnitClass)
	if !block.Hidden() {
		t.Error("days block should be hidden")
	}
	if h.digit("days") != "--" {
		t.Error("hidden unit should not be written")
	}
}

func TestEngine_ExpiryShowsExpiredText(t *testing.T) {
	now := time.Date(2026, 10, 20, 12, 0, 0, 0, time.UTC)
	h := newHarness(t, now)
	h.register(t, allUnits(timer.Config{Kind: timer.KindFixed, EndTime: now.Add(2 * time.Second), ExpiredText: "Sale over"}))
	h.eng.Present("t1")
	h.eng.Start()
	h.sched.Fire(0)

	h.clock.Advance(2 * time.Second)
	h.sched.Fire(time.Second)

	if !h.el.HasClass(page.ExpiredClass) {
		t.Fatal("expired marker missing")
	}
	if h.message() != "Sale over" {
		t.Errorf("message: got %q", h.message())
	}
	if !h.el.FindClass(page.DigitsClass).Hidden() {
		t.Error("digits should be hidden behind the expired text")
	}
	if v := h.eng.Views(); len(v) != 1 || v[0].State != StateExpired || !v[0].Expired {
		t.Errorf("unexpected views %+v", v)
	}
}

func TestEngine_ExpiryWithoutTextFloorsAtZero(t *testing.T) {
	now := time.Date(2026, 10, 20, 12, 0, 0, 0, time.UTC)
	h := newHarness(t, now)
	h.register(t, allUnits(timer.Config{Kind: timer.KindFixed, EndTime: now.Add(time.Second)}))
	h.eng.Present("t1")
	h.eng.Start()
	h.sched.Fire(0)

	h.clock.Advance(5 * time.Second)
	h.sched.Fire(time.Second)
	for _, unit := range timer.Units {
		if h.digit(unit) != "00" {
			t.Errorf("%s: want 00, got %s", unit, h.digit(unit))
		}
	}
	if !h.el.HasClass(page.ExpiredClass) {
		t.Error("expired marker missing")
	}
}

func TestEngine_ShippingExpiryShowsMessage(t *testing.T) {
	// 2026-10-20 is a Tuesday.
	now := time.Date(2026, 10, 20, 13, 59, 58, 0, time.UTC)
	h := newHarness(t, now)
	h.register(t, allUnits(timer.Config{
		Kind: timer.KindShipping, ShippingCutoff: "14:00",
		ShippingExcludedDays: []time.Weekday{time.Sunday, time.Saturday},
	}))
	h.eng.Present("t1")
	h.eng.Start()
	h.sched.Fire(0)

	h.clock.Advance(2 * time.Second)
	h.sched.Fire(time.Second)
	if h.message() != timer.MessageTomorrow {
		t.Errorf("message: got %q", h.message())
	}
	if v := h.eng.Views(); v[0].State != StateMessage {
		t.Errorf("state: want message, got %s", v[0].State)
	}
}

func TestEngine_RecurringRecheckShowsExpiredState(t *testing.T) {
	now := time.Date(2026, 10, 20, 11, 59, 58, 0, time.UTC)
	h := newHarness(t, now)
	h.register(t, allUnits(timer.Config{
		Kind: timer.KindRecurring, RecurringStart: "10:00", RecurringEnd: "12:00",
		RecurringDays: []time.Weekday{time.Tuesday}, ExpiredText: "Back tomorrow",
	}))
	h.eng.Present("t1")
	h.eng.Start()
	h.sched.Fire(0)

	h.clock.Advance(2 * time.Second)
	h.sched.Fire(time.Second)
	if h.digit("seconds") != "00" {
		t.Errorf("digits should floor at zero until the recheck, got %s", h.digit("seconds"))
	}

	h.clock.Advance(timer.RecheckDelay)
	if h.message() != "Back tomorrow" {
		t.Errorf("recheck should show expired text, got %q", h.message())
	}
}

func TestEngine_EvergreenRevivesAfterExpiry(t *testing.T) {
	now := time.Date(2026, 10, 20, 12, 0, 0, 0, time.UTC)
	h := newHarness(t, now)
	h.register(t, allUnits(timer.Config{Kind: timer.KindEvergreen, EvergreenDuration: time.Minute}))
	h.eng.Present("t1")
	h.eng.Start()
	h.sched.Fire(0)

	h.clock.Advance(time.Minute)
	h.sched.Fire(time.Second)
	if !h.el.HasClass(page.ExpiredClass) {
		t.Fatal("should be expired at the cycle boundary")
	}

	h.clock.Advance(time.Second)
	h.sched.Fire(2 * time.Second)
	if h.el.HasClass(page.ExpiredClass) {
		t.Error("new cycle should clear the expired marker")
	}
	if h.digit("minutes") != "01" || h.digit("seconds") != "00" {
		t.Errorf("new cycle digits: got %s:%s", h.digit("minutes"), h.digit("seconds"))
	}
}

func TestEngine_PresentHiddenWhenNothingToShow(t *testing.T) {
	h := newHarness(t, time.Date(2026, 10, 20, 12, 0, 0, 0, time.UTC))
	h.register(t, timer.Config{Kind: timer.KindFixed})
	if h.eng.Present("t1") {
		t.Error("timer without end time or text should stay hidden")
	}
	if !h.el.Hidden() {
		t.Error("element should be hidden")
	}
	if len(h.eng.Views()) != 1 || h.eng.Views()[0].State != StateHidden {
		t.Error("view should report hidden state")
	}
}

func TestEngine_StartStopIdempotent(t *testing.T) {
	h := newHarness(t, time.Now())
	h.eng.Start()
	h.eng.Start()
	if h.sched.Pending() != 1 {
		t.Fatalf("want one pending frame, got %d", h.sched.Pending())
	}
	h.sched.Fire(0)
	if h.sched.Pending() != 1 {
		t.Fatalf("loop should request the next frame, got %d", h.sched.Pending())
	}

	h.eng.Stop()
	h.eng.Stop()
	if h.sched.Pending() != 0 {
		t.Errorf("Stop should cancel the pending frame, got %d", h.sched.Pending())
	}
	if h.eng.Running() {
		t.Error("engine should not be running")
	}
}

func TestEngine_Unregister(t *testing.T) {
	now := time.Date(2026, 10, 20, 12, 0, 0, 0, time.UTC)
	h := newHarness(t, now)
	h.register(t, timer.Config{Kind: timer.KindFixed, EndTime: now.Add(time.Hour)})
	h.register(t, timer.Config{Kind: timer.KindFixed, EndTime: now.Add(2 * time.Hour)})

	if _, ok := h.eng.Handler("t1"); !ok || !h.eng.Has("t1") {
		t.Fatal("t1 should be registered")
	}
	h.eng.Unregister("t1")
	h.eng.Unregister("t1")
	if h.eng.Has("t1") {
		t.Error("t1 should be gone")
	}
	if len(h.eng.Views()) != 0 {
		t.Error("no views after unregister")
	}
}

func TestTickerScheduler(t *testing.T) {
	start := time.Date(2026, 10, 20, 12, 0, 0, 0, time.UTC)
	clock := testutil.NewFakeClock(start)
	s := NewTickerScheduler(clock, 100*time.Millisecond)

	var got []time.Duration
	s.RequestFrame(func(ts time.Duration) { got = append(got, ts) })
	cancelled := s.RequestFrame(func(ts time.Duration) { t.Error("cancelled frame fired") })
	s.CancelFrame(cancelled)

	clock.Advance(250 * time.Millisecond)
	if len(got) != 1 || got[0] != 100*time.Millisecond {
		t.Errorf("want one frame at 100ms, got %v", got)
	}
}

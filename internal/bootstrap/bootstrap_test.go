package bootstrap

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nixlim/storetimer/internal/analytics"
	"github.com/nixlim/storetimer/internal/engine"
	"github.com/nixlim/storetimer/internal/kv"
	"github.com/nixlim/storetimer/internal/page"
	"github.com/nixlim/storetimer/internal/testutil"
	"github.com/nixlim/storetimer/internal/timer"
	"github.com/nixlim/storetimer/internal/timeutil"
)

type recordingTracker struct {
	mu   sync.Mutex
	sent []string
}

func (r *recordingTracker) Send(_ context.Context, kind analytics.Kind, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, string(kind)+":"+id)
	return nil
}

func (r *recordingTracker) events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.sent...)
}

var now = time.Date(2026, 10, 20, 12, 0, 0, 0, time.UTC)

const endTime = "2026-10-21T12:00:00Z"

type fixture struct {
	clock   *testutil.FakeClock
	durable *kv.Safe
	doc     *page.Document
	eng     *engine.Engine
	tracker *recordingTracker
	boot    *Bootstrapper
}

func newFixture(t *testing.T, clock *testutil.FakeClock, durable *kv.Safe, pageURL string, timers ...timer.MetafieldTimer) *fixture {
	t.Helper()
	doc, err := page.FromTimers(timers, pageURL)
	if err != nil {
		t.Fatalf("FromTimers: %v", err)
	}
	eng := engine.New(timer.Deps{
		Clock:     clock,
		Durable:   durable,
		Session:   kv.NewSafe("session", kv.NewMemoryStore(), nil),
		VisitorID: "v1",
		PagePath:  PathOf(pageURL),
	}, engine.WithScheduler(engine.NewManualScheduler()))
	tr := &recordingTracker{}
	return &fixture{
		clock:   clock,
		durable: durable,
		doc:     doc,
		eng:     eng,
		tracker: tr,
		boot:    New(doc, eng, tr, durable, WithClock(clock)),
	}
}

func (f *fixture) run(t *testing.T) {
	t.Helper()
	if err := f.boot.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func (f *fixture) element(id string) *page.Element {
	for _, el := range f.doc.ByClass(page.TimerClass) {
		if v, _ := el.Attr(timer.AttrID); v == id {
			return el
		}
	}
	return nil
}

func (f *fixture) wrapper() *page.Element { return f.doc.ByID(page.WrapperID) }

func fixed(id string) timer.MetafieldTimer {
	return timer.MetafieldTimer{ID: id, Type: "FIXED", EndTime: endTime, CTAURL: "/collections/sale"}
}

func TestRun_RegistersAndShows(t *testing.T) {
	f := newFixture(t, testutil.NewFakeClock(now), kv.NewSafe("durable", kv.NewMemoryStore(), nil),
		"https://shop.example/", fixed("a"), fixed("b"))
	f.run(t)

	for _, id := range []string{"a", "b"} {
		if !f.eng.Has(id) {
			t.Errorf("%s not registered", id)
		}
		if f.element(id).Hidden() {
			t.Errorf("%s should be visible", id)
		}
	}
	if f.wrapper().Hidden() {
		t.Error("wrapper should be visible")
	}
	if !f.eng.Running() {
		t.Error("engine should be started")
	}
	got := f.tracker.events()
	if len(got) != 2 || got[0] != "impression:a" || got[1] != "impression:b" {
		t.Errorf("impressions: got %v", got)
	}
}

func TestRun_SecondRunSkipsRegistered(t *testing.T) {
	f := newFixture(t, testutil.NewFakeClock(now), kv.NewSafe("durable", kv.NewMemoryStore(), nil),
		"https://shop.example/", fixed("a"))
	f.run(t)
	f.run(t)

	if got := f.tracker.events(); len(got) != 1 {
		t.Errorf("second run should not resend impressions, got %v", got)
	}
	if f.wrapper().Hidden() {
		t.Error("wrapper should stay visible")
	}
}

func TestRun_MissingIDHidden(t *testing.T) {
	doc, err := page.ParseString(`<div id="countdown-timers"><div class="countdown-timer" data-timer-type="FIXED"></div></div>`, "https://shop.example/")
	if err != nil {
		t.Fatal(err)
	}
	clock := testutil.NewFakeClock(now)
	eng := engine.New(timer.Deps{Clock: clock}, engine.WithScheduler(engine.NewManualScheduler()))
	tr := &recordingTracker{}
	b := New(doc, eng, tr, nil, WithClock(clock))
	if err := b.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	if !doc.ByClass(page.TimerClass)[0].Hidden() {
		t.Error("timer without id should be hidden")
	}
	if !doc.ByID(page.WrapperID).Hidden() {
		t.Error("wrapper should be hidden when nothing is visible")
	}
	if len(tr.events()) != 0 {
		t.Error("no impression expected")
	}
}

func TestRun_NoContainer(t *testing.T) {
	doc, _ := page.ParseString(`<p>no timers</p>`, "https://shop.example/")
	eng := engine.New(timer.Deps{}, engine.WithScheduler(engine.NewManualScheduler()))
	if err := New(doc, eng, nil, nil).Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if eng.Running() {
		t.Error("engine should not start without a container")
	}
}

func TestRun_Targeting(t *testing.T) {
	no := false
	collections := fixed("c")
	collections.ShowEverywhere = &no
	collections.IncludePages = []string{"/collections/*"}
	home := fixed("h")
	home.ShowEverywhere = &no
	home.IncludePages = []string{"home"}
	notCart := fixed("x")
	notCart.ExcludePages = []string{"cart"}

	tests := []struct {
		url     string
		visible map[string]bool
	}{
		{"https://shop.example/collections/sale", map[string]bool{"c": true, "h": false, "x": true}},
		{"https://shop.example/collection-info", map[string]bool{"c": false, "h": false, "x": true}},
		{"https://shop.example/", map[string]bool{"c": false, "h": true, "x": true}},
		{"https://shop.example/cart", map[string]bool{"c": false, "h": false, "x": false}},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			f := newFixture(t, testutil.NewFakeClock(now), kv.NewSafe("durable", kv.NewMemoryStore(), nil),
				tt.url, collections, home, notCart)
			f.run(t)
			for id, want := range tt.visible {
				if got := !f.element(id).Hidden(); got != want {
					t.Errorf("%s visible: want %v, got %v", id, want, got)
				}
				if f.eng.Has(id) != want {
					t.Errorf("%s registered: want %v", id, want)
				}
			}
		})
	}
}

func TestRun_ExpiredWithoutTextHidesWrapper(t *testing.T) {
	past := timer.MetafieldTimer{ID: "old", Type: "FIXED", EndTime: "2026-01-01T00:00:00Z"}
	f := newFixture(t, testutil.NewFakeClock(now), kv.NewSafe("durable", kv.NewMemoryStore(), nil),
		"https://shop.example/", past)
	f.doc.ByClass(page.TimerClass)[0].SetAttr(timer.AttrExpiredText, "")
	f.run(t)

	if !f.element("old").Hidden() {
		t.Error("expired timer with no text should be hidden")
	}
	if !f.wrapper().Hidden() {
		t.Error("wrapper should be hidden")
	}
}

func TestClose_SuppressedFor24Hours(t *testing.T) {
	clock := testutil.NewFakeClock(now)
	durable := kv.NewSafe("durable", kv.NewMemoryStore(), nil)

	f := newFixture(t, clock, durable, "https://shop.example/", fixed("a"), fixed("b"))
	f.run(t)

	if !f.boot.Close("a") {
		t.Fatal("Close should accept a live timer")
	}
	el := f.element("a")
	if !el.HasClass(page.ClosingClass) {
		t.Error("closing class expected during the exit animation")
	}
	if !el.Attached() {
		t.Error("element should stay until the animation ends")
	}
	clock.Advance(DefaultCloseDelay)
	if el.Attached() {
		t.Error("element should be removed after the animation")
	}
	if f.eng.Has("a") {
		t.Error("closed timer should be unregistered")
	}
	if f.wrapper().Hidden() {
		t.Error("wrapper stays while b is visible")
	}

	clock.Advance(23 * time.Hour)
	again := newFixture(t, clock, durable, "https://shop.example/", fixed("a"), fixed("b"))
	again.run(t)
	if !again.element("a").Hidden() || again.eng.Has("a") {
		t.Error("closed timer should stay hidden within 24 hours")
	}
	if again.element("b").Hidden() {
		t.Error("other timers are unaffected")
	}

	clock.Advance(time.Hour)
	later := newFixture(t, clock, durable, "https://shop.example/", fixed("a"))
	later.run(t)
	if later.element("a").Hidden() {
		t.Error("timer should show again after 24 hours")
	}

	var stored map[string]int64
	durable.GetJSON(ClosedKey, &stored)
	if _, ok := stored["a"]; ok {
		t.Error("expired entry should be pruned on read")
	}
}

func TestClose_LastTimerHidesWrapper(t *testing.T) {
	clock := testutil.NewFakeClock(now)
	f := newFixture(t, clock, kv.NewSafe("durable", kv.NewMemoryStore(), nil), "https://shop.example/", fixed("a"))
	f.run(t)

	f.boot.Close("a")
	f.boot.Close("a")
	if clock.Pending() != 1 {
		t.Errorf("repeated close should schedule once, got %d", clock.Pending())
	}
	clock.Advance(DefaultCloseDelay)
	if !f.wrapper().Hidden() {
		t.Error("wrapper should be hidden after the last close")
	}
	if f.boot.Close("a") {
		t.Error("closing a removed timer should report false")
	}
}

func TestClickCTA(t *testing.T) {
	f := newFixture(t, testutil.NewFakeClock(now), kv.NewSafe("durable", kv.NewMemoryStore(), nil),
		"https://shop.example/", fixed("a"), timer.MetafieldTimer{ID: "nolink", EndTime: endTime})
	f.run(t)

	href, ok := f.boot.ClickCTA(context.Background(), "a")
	if !ok || href != "/collections/sale" {
		t.Errorf("ClickCTA: got %q, %v", href, ok)
	}
	if _, ok := f.boot.ClickCTA(context.Background(), "nolink"); ok {
		t.Error("timer without a link should report false")
	}
	got := f.tracker.events()
	if got[len(got)-1] != "click:a" {
		t.Errorf("click not sent: %v", got)
	}
}

func TestClosedSet_CorruptValue(t *testing.T) {
	store := kv.NewMemoryStore()
	_ = store.Set(ClosedKey, "{not json")
	set := NewClosedSet(kv.NewSafe("durable", store, nil), testutil.NewFakeClock(now))
	if len(set.Load()) != 0 {
		t.Error("corrupt set should read as empty")
	}
	set.Add("z")
	if !set.Has("z") {
		t.Error("Add should recover the set")
	}
}

func TestClosedSet_Boundary(t *testing.T) {
	clock := testutil.NewFakeClock(now)
	durable := kv.NewSafe("durable", kv.NewMemoryStore(), nil)
	durable.SetJSON(ClosedKey, map[string]int64{
		"fresh": timeutil.EpochMillis(now.Add(-ClosedTTL + time.Millisecond)),
		"stale": timeutil.EpochMillis(now.Add(-ClosedTTL)),
	})
	set := NewClosedSet(durable, clock)
	if !set.Has("fresh") || set.Has("stale") {
		t.Errorf("boundary: got %v", set.Load())
	}
}

package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nixlim/storetimer/internal/config"
	"github.com/nixlim/storetimer/internal/engine"
	"github.com/nixlim/storetimer/internal/events"
	"github.com/nixlim/storetimer/internal/timer"
)

type mockTimers struct {
	views []engine.View
}

func (m *mockTimers) Views() []engine.View { return m.views }

type mockActions struct {
	closed  []string
	clicked []string
	links   map[string]string
}

func (m *mockActions) Close(id string) bool {
	m.closed = append(m.closed, id)
	return true
}

func (m *mockActions) ClickCTA(_ context.Context, id string) (string, bool) {
	m.clicked = append(m.clicked, id)
	href, ok := m.links[id]
	return href, ok
}

type mockFrames struct {
	fired []time.Duration
}

func (m *mockFrames) Fire(ts time.Duration) { m.fired = append(m.fired, ts) }

func digitView(id, label string, closable bool) engine.View {
	return engine.View{
		ID:     id,
		Kind:   timer.KindFixed,
		Label:  label,
		State:  engine.StateDigits,
		Digits: map[string]string{"days": "01", "hours": "02", "minutes": "03", "seconds": "04"},
		Config: timer.Config{ID: id, Closable: closable},
	}
}

func newTestModel(timers *mockTimers, actions *mockActions, opts ...ModelOption) Model {
	opts = append([]ModelOption{WithTimerProvider(timers), WithInteractor(actions)}, opts...)
	return NewModel(config.DefaultConfig(), opts...)
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func TestModel_TickDrivesFrames(t *testing.T) {
	frames := &mockFrames{}
	timers := &mockTimers{}
	m := newTestModel(timers, &mockActions{}, WithFrameDriver(frames))

	start := time.Date(2026, 10, 20, 12, 0, 0, 0, time.UTC)
	m, cmd := update(t, m, tickMsg(start))
	if cmd == nil {
		t.Error("tick should schedule the next tick")
	}
	timers.views = []engine.View{digitView("a", "Sale", true)}
	m, _ = update(t, m, tickMsg(start.Add(1500*time.Millisecond)))

	if len(frames.fired) != 2 || frames.fired[0] != 0 || frames.fired[1] != 1500*time.Millisecond {
		t.Errorf("frames: got %v", frames.fired)
	}
	if len(m.views) != 1 {
		t.Errorf("views should refresh on tick, got %d", len(m.views))
	}
}

func TestModel_HiddenTimersSkipped(t *testing.T) {
	hidden := digitView("h", "", true)
	hidden.State = engine.StateHidden
	m := newTestModel(&mockTimers{views: []engine.View{hidden, digitView("a", "", true)}}, &mockActions{})
	if len(m.views) != 1 || m.views[0].ID != "a" {
		t.Errorf("views: got %+v", m.views)
	}
}

func TestModel_SelectAndClose(t *testing.T) {
	actions := &mockActions{}
	m := newTestModel(&mockTimers{views: []engine.View{
		digitView("a", "A", true),
		digitView("b", "B", false),
		digitView("c", "C", true),
	}}, actions)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyDown})
	if m.cursor != 2 {
		t.Fatalf("cursor should stop at the last timer, got %d", m.cursor)
	}
	m, _ = update(t, m, keyRunes("x"))
	if len(actions.closed) != 1 || actions.closed[0] != "c" {
		t.Errorf("closed: got %v", actions.closed)
	}
	if !m.closing["c"] {
		t.Error("closed timer should be marked as closing")
	}

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyUp})
	m, _ = update(t, m, keyRunes("x"))
	if len(actions.closed) != 1 {
		t.Error("non-closable timer must not be closed")
	}
	if !strings.Contains(m.status, "cannot be closed") {
		t.Errorf("status: got %q", m.status)
	}
}

func TestModel_CTA(t *testing.T) {
	actions := &mockActions{links: map[string]string{"a": "/collections/sale"}}
	m := newTestModel(&mockTimers{views: []engine.View{digitView("a", "A", true), digitView("b", "B", true)}}, actions)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.status != "→ /collections/sale" {
		t.Errorf("status: got %q", m.status)
	}
	m, _ = update(t, m, keyRunes("j"))
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if !strings.Contains(m.status, "no link") {
		t.Errorf("status: got %q", m.status)
	}
	if len(actions.clicked) != 2 {
		t.Errorf("clicks: got %v", actions.clicked)
	}
}

func TestModel_Quit(t *testing.T) {
	called := false
	m := newTestModel(&mockTimers{}, &mockActions{}, WithOnShutdown(func() { called = true }))

	m, cmd := update(t, m, keyRunes("q"))
	if !called {
		t.Error("shutdown hook not called")
	}
	if cmd == nil {
		t.Fatal("quit should return a command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("quit command should produce QuitMsg")
	}
	if m.View() != "" {
		t.Error("view should be empty after quitting")
	}
}

func TestModel_View(t *testing.T) {
	buf := events.NewRingBuffer(10)
	buf.Add(events.Delivery{TimerID: "a", Event: "impression", Outcome: events.OutcomeDelivered, Status: 200, Timestamp: time.Now()})

	expired := digitView("old", "Old deal", true)
	expired.State = engine.StateExpired
	expired.Expired = true
	expired.Message = "Offer expired!"

	m := newTestModel(&mockTimers{views: []engine.View{digitView("a", "Black Friday", true), expired}}, &mockActions{},
		WithDeliveryProvider(buf), WithPageURL("https://shop.example/"))
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 30})

	out := stripAnsi(m.View())
	for _, want := range []string{"storetimer", "https://shop.example/", "Timers (2)", "Black Friday", "Offer expired!", "Analytics", "impression delivered (200)", "█"} {
		if !strings.Contains(out, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestModel_ViewEmpty(t *testing.T) {
	m := newTestModel(&mockTimers{}, &mockActions{})
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 80, Height: 20})
	out := stripAnsi(m.View())
	if !strings.Contains(out, "No timers visible") || !strings.Contains(out, "No analytics sent yet") {
		t.Errorf("unexpected empty view:\n%s", out)
	}
}

func TestShutdownManager(t *testing.T) {
	var order []string
	sm := NewShutdownManager()
	sm.DrainTimeout = time.Second
	sm.StopTimers = func() { order = append(order, "timers") }
	sm.DrainAnalytics = func(ctx context.Context) error {
		order = append(order, "drain")
		if _, ok := ctx.Deadline(); !ok {
			t.Error("drain context should carry the timeout")
		}
		return context.DeadlineExceeded
	}
	sm.Cleanup = func() { order = append(order, "cleanup") }

	err := sm.Shutdown()
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("want drain error, got %v", err)
	}
	if strings.Join(order, ",") != "timers,drain,cleanup" {
		t.Errorf("order: got %v", order)
	}

	if err := sm.Shutdown(); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("repeat call should return the first result, got %v", err)
	}
	if len(order) != 3 {
		t.Errorf("repeat call should not run again, got %v", order)
	}
}

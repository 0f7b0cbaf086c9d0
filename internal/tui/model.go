// Package tui is a terminal preview of a storefront page's countdown
// timers. It drives the render engine's frames from bubbletea ticks and
// lets the operator close timers and follow their links.
package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nixlim/storetimer/internal/config"
	"github.com/nixlim/storetimer/internal/engine"
	"github.com/nixlim/storetimer/internal/events"
)

type tickMsg time.Time

// TimerProvider exposes the engine's timer snapshots.
type TimerProvider interface {
	Views() []engine.View
}

// Interactor performs visitor actions on timers.
type Interactor interface {
	Close(id string) bool
	ClickCTA(ctx context.Context, id string) (href string, ok bool)
}

// FrameDriver receives animation frames with a monotonic timestamp.
type FrameDriver interface {
	Fire(ts time.Duration)
}

// DeliveryProvider supplies recent analytics deliveries.
type DeliveryProvider interface {
	Recent(n int) []events.Delivery
}

type Model struct {
	width    int
	height   int
	keys     KeyMap
	quitting bool

	cfg     config.Config
	pageURL string

	timers     TimerProvider
	actions    Interactor
	frames     FrameDriver
	deliveries DeliveryProvider

	views   []engine.View
	cursor  int
	closing map[string]bool
	status  string

	start       time.Time
	refreshRate time.Duration

	onShutdown func()
}

func NewModel(cfg config.Config, opts ...ModelOption) Model {
	m := Model{
		keys:        DefaultKeyMap(),
		cfg:         cfg,
		closing:     make(map[string]bool),
		refreshRate: time.Duration(cfg.Display.FrameIntervalMS) * time.Millisecond,
	}
	if m.refreshRate <= 0 {
		m.refreshRate = engine.DefaultFrameInterval
	}

	for _, opt := range opts {
		opt(&m)
	}
	m.views = m.visibleViews()

	return m
}

type ModelOption func(*Model)

func WithTimerProvider(p TimerProvider) ModelOption {
	return func(m *Model) { m.timers = p }
}

func WithInteractor(i Interactor) ModelOption {
	return func(m *Model) { m.actions = i }
}

func WithFrameDriver(f FrameDriver) ModelOption {
	return func(m *Model) { m.frames = f }
}

func WithDeliveryProvider(d DeliveryProvider) ModelOption {
	return func(m *Model) { m.deliveries = d }
}

func WithPageURL(u string) ModelOption {
	return func(m *Model) { m.pageURL = u }
}

func WithOnShutdown(fn func()) ModelOption {
	return func(m *Model) { m.onShutdown = fn }
}

func (m Model) Init() tea.Cmd {
	return m.tickCmd()
}

func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(m.refreshRate, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		now := time.Time(msg)
		if m.start.IsZero() {
			m.start = now
		}
		if m.frames != nil {
			m.frames.Fire(now.Sub(m.start))
		}
		m.refreshViews()
		return m, m.tickCmd()

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m *Model) refreshViews() {
	m.views = m.visibleViews()
	if m.cursor >= len(m.views) {
		m.cursor = len(m.views) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

// visibleViews returns the timers currently shown on the page.
func (m Model) visibleViews() []engine.View {
	if m.timers == nil {
		return nil
	}
	var out []engine.View
	for _, v := range m.timers.Views() {
		if v.State != engine.StateHidden {
			out = append(out, v)
		}
	}
	return out
}

func (m Model) selected() (engine.View, bool) {
	if m.cursor < 0 || m.cursor >= len(m.views) {
		return engine.View{}, false
	}
	return m.views[m.cursor], true
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		if m.onShutdown != nil {
			m.onShutdown()
		}
		return m, tea.Quit

	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil

	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.views)-1 {
			m.cursor++
		}
		return m, nil

	case key.Matches(msg, m.keys.Close):
		v, ok := m.selected()
		if !ok || m.actions == nil {
			return m, nil
		}
		if !v.Config.Closable {
			m.status = v.ID + " cannot be closed"
			return m, nil
		}
		if m.actions.Close(v.ID) {
			m.closing[v.ID] = true
			m.status = "closed " + v.ID
		}
		return m, nil

	case key.Matches(msg, m.keys.CTA):
		v, ok := m.selected()
		if !ok || m.actions == nil {
			return m, nil
		}
		if href, ok := m.actions.ClickCTA(context.Background(), v.ID); ok {
			m.status = "→ " + href
		} else {
			m.status = v.ID + " has no link"
		}
		return m, nil
	}

	return m, nil
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	return m.renderPreview()
}

package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nixlim/storetimer/internal/engine"
	"github.com/nixlim/storetimer/internal/events"
)

func (m Model) renderPreview() string {
	dims := computeDimensions(m.width, m.height)

	header := m.renderHeader()
	timers := m.renderTimersPanel(dims.timersW, dims.timersH)
	deliveries := m.renderDeliveriesPanel(dims.deliveriesW, dims.deliveriesH)

	parts := []string{header, timers, deliveries}
	if m.status != "" {
		parts = append(parts, statusBarStyle.Render(" "+m.status))
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m Model) renderHeader() string {
	title := " storetimer"
	if m.pageURL != "" {
		title += "  " + m.pageURL
	}
	help := "↑/↓:Select  x:Close  Enter:Link  q:Quit "

	w := m.width
	if w < minWidth {
		w = minWidth
	}
	padding := w - lipgloss.Width(title) - lipgloss.Width(help)
	if padding < 1 {
		title = truncate(title, w-lipgloss.Width(help)-1)
		padding = w - lipgloss.Width(title) - lipgloss.Width(help)
		if padding < 0 {
			padding = 0
		}
	}
	return headerStyle.Width(w).Render(title + strings.Repeat(" ", padding) + help)
}

// renderTimersPanel lists every visible timer. The selected timer gets the
// block-digit rendering; the others a single line each.
func (m Model) renderTimersPanel(w, h int) string {
	contentW := w - 4
	if contentW < 10 {
		contentW = 10
	}
	contentH := h - 2

	lines := []string{panelTitleStyle.Render(fmt.Sprintf("Timers (%d)", len(m.views)))}
	if len(m.views) == 0 {
		lines = append(lines, "", dimStyle.Render("No timers visible on this page"))
		return renderBorderedPanel(strings.Join(lines, "\n"), w, h)
	}

	// Rows left for the selected timer's digits after one line per timer.
	digitRows := contentH - 1 - len(m.views)

	for i, v := range m.views {
		marker := "  "
		if i == m.cursor {
			marker = "> "
		}
		heading := marker + timerName(v) + dimStyle.Render(" ["+string(v.Kind)+"]")
		if i == m.cursor {
			heading = selectedStyle.Render(marker+timerName(v)) + dimStyle.Render(" ["+string(v.Kind)+"]")
		}
		body := m.timerBody(v)
		if m.closing[v.ID] {
			body = closingStyle.Render(stripAnsi(body))
		}

		if i == m.cursor && v.Message == "" && digitRows >= 3 {
			lines = append(lines, heading)
			lines = append(lines, renderCountdown(countdownText(v.Digits), digitRows, contentW, digitStyle))
			continue
		}
		lines = append(lines, heading+"  "+body)
	}

	return renderBorderedPanelStyled(strings.Join(lines, "\n"), w, h, panelBorderStyle.BorderForeground(focusBorderColor))
}

func timerName(v engine.View) string {
	if v.Label != "" {
		return v.Label
	}
	return v.ID
}

func (m Model) timerBody(v engine.View) string {
	switch {
	case v.Message != "" && v.Expired:
		return expiredStyle.Render(v.Message)
	case v.Message != "":
		return messageStyle.Render(v.Message)
	case v.Expired:
		return expiredStyle.Render(countdownText(v.Digits))
	}
	return digitStyle.Render(countdownText(v.Digits))
}

var outcomeStyles = map[events.Outcome]lipgloss.Style{
	events.OutcomeDelivered: lipgloss.NewStyle().Foreground(lipgloss.Color("114")),
	events.OutcomeRetrying:  lipgloss.NewStyle().Foreground(lipgloss.Color("222")),
	events.OutcomeDropped:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	events.OutcomeDeduped:   dimStyle,
	events.OutcomeReceived:  lipgloss.NewStyle().Foreground(lipgloss.Color("117")),
}

// renderDeliveriesPanel shows the most recent analytics deliveries, newest
// last.
func (m Model) renderDeliveriesPanel(w, h int) string {
	contentW := w - 4
	if contentW < 10 {
		contentW = 10
	}
	visible := h - 3
	if visible < 1 {
		visible = 1
	}

	lines := []string{panelTitleStyle.Render("Analytics")}
	var recent []events.Delivery
	if m.deliveries != nil {
		recent = m.deliveries.Recent(visible)
	}
	if len(recent) == 0 {
		lines = append(lines, dimStyle.Render("No analytics sent yet"))
	}
	for _, d := range recent {
		lines = append(lines, renderDeliveryLine(d, contentW))
	}
	return renderBorderedPanel(strings.Join(lines, "\n"), w, h)
}

func renderDeliveryLine(d events.Delivery, maxW int) string {
	style, ok := outcomeStyles[d.Outcome]
	if !ok {
		style = dimStyle
	}
	line := d.Timestamp.Format("15:04:05") + " " + d.Formatted
	return style.Render(truncate(line, maxW))
}

package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nixlim/storetimer/internal/timer"
)

// Block-character digit fonts for countdowns. renderCountdown picks the
// largest one that fits the available space:
//
//   - Large  (5 rows, 6-wide)
//   - Medium (3 rows, 4-wide)
//   - Small  plain styled text

var digitFontLarge = map[rune][5]string{
	'0': {"█▀▀▀▀█", "█    █", "█    █", "█    █", "█▄▄▄▄█"},
	'1': {"    ▀█", "     █", "     █", "     █", "    ▄█"},
	'2': {" ▀▀▀▀█", "     █", "█▀▀▀▀ ", "█     ", "█▄▄▄▄▄"},
	'3': {"▀▀▀▀▀█", "     █", " ▀▀▀▀█", "     █", "▄▄▄▄▄█"},
	'4': {"█    █", "█    █", "▀▀▀▀▀█", "     █", "     █"},
	'5': {"█▀▀▀▀▀", "█     ", "▀▀▀▀▀█", "     █", "▄▄▄▄▄█"},
	'6': {"█▀▀▀▀▀", "█     ", "█▀▀▀▀█", "█    █", "█▄▄▄▄█"},
	'7': {"▀▀▀▀▀█", "     █", "     █", "     █", "     █"},
	'8': {"█▀▀▀▀█", "█    █", "█▀▀▀▀█", "█    █", "█▄▄▄▄█"},
	'9': {"█▀▀▀▀█", "█    █", "▀▀▀▀▀█", "     █", "▄▄▄▄▄█"},
	':': {"      ", "  ██  ", "      ", "  ██  ", "      "},
}

var digitFontMedium = map[rune][3]string{
	'0': {"█▀▀█", "█  █", "█▄▄█"},
	'1': {"  ▀█", "   █", "  ▄█"},
	'2': {"▀▀▀█", "█▀▀▀", "█▄▄▄"},
	'3': {"▀▀▀█", " ▀▀█", "▄▄▄█"},
	'4': {"█  █", "▀▀▀█", "   █"},
	'5': {"█▀▀▀", "▀▀▀█", "▄▄▄█"},
	'6': {"█▀▀▀", "█▀▀█", "█▄▄█"},
	'7': {"▀▀▀█", "   █", "   █"},
	'8': {"█▀▀█", "█▀▀█", "█▄▄█"},
	'9': {"█▀▀█", "▀▀▀█", "▄▄▄█"},
	':': {" ▄  ", "    ", " ▀  "},
}

// countdownText joins the rendered unit values in display order, e.g.
// "02:13:45:09". Units the timer does not show are skipped.
func countdownText(digits map[string]string) string {
	var parts []string
	for _, unit := range timer.Units {
		if d, ok := digits[unit]; ok {
			parts = append(parts, d)
		}
	}
	return strings.Join(parts, ":")
}

// renderCountdown renders s at the largest font size that fits within
// availH rows and availW columns.
func renderCountdown(s string, availH, availW int, style lipgloss.Style) string {
	if availH >= 5 && digitWidth(s, 6) <= availW {
		return renderDigitFont(s, digitFontLarge, 5, style)
	}
	if availH >= 3 && digitWidth(s, 4) <= availW {
		return renderDigitFont(s, digitFontMedium, 3, style)
	}
	return style.Render(s)
}

// digitWidth returns the rendered width of s at charW columns per glyph
// with a one-column gap between glyphs.
func digitWidth(s string, charW int) int {
	n := len([]rune(s))
	if n == 0 {
		return 0
	}
	return n*charW + (n - 1)
}

func renderDigitFont[T [3]string | [5]string](s string, font map[rune]T, nRows int, style lipgloss.Style) string {
	rows := make([]string, nRows)
	i := 0
	for _, ch := range s {
		pattern, ok := font[ch]
		if !ok {
			pattern = font[':']
		}
		for row := 0; row < nRows; row++ {
			if i > 0 {
				rows[row] += " "
			}
			rows[row] += pattern[row]
		}
		i++
	}

	result := make([]string, nRows)
	for r, row := range rows {
		result[r] = style.Render(row)
	}
	return strings.Join(result, "\n")
}

package commands

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	colorPrimary = lipgloss.Color("#00D4FF") // Cyan
	colorSuccess = lipgloss.Color("#10B981") // Green
	colorWarning = lipgloss.Color("#F59E0B") // Yellow/Orange
	colorMuted   = lipgloss.Color("#6B7280") // Gray

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary)

	keyStyle = lipgloss.NewStyle().
			Foreground(colorMuted)

	valueStyle = lipgloss.NewStyle().
			Bold(true)

	goodStyle = lipgloss.NewStyle().
			Foreground(colorSuccess)

	warnStyle = lipgloss.NewStyle().
			Foreground(colorWarning)
)

const barWidth = 30

// printer writes command summaries, styled only when w is a terminal.
type printer struct {
	w      io.Writer
	styled bool
}

func newPrinter(w io.Writer) *printer {
	styled := false
	if f, ok := w.(*os.File); ok {
		styled = term.IsTerminal(int(f.Fd()))
	}
	return &printer{w: w, styled: styled}
}

func (p *printer) render(style lipgloss.Style, text string) string {
	if !p.styled {
		return text
	}
	return style.Render(text)
}

func (p *printer) title(format string, args ...interface{}) {
	fmt.Fprintln(p.w, p.render(titleStyle, fmt.Sprintf(format, args...)))
}

func (p *printer) kv(key string, value interface{}) {
	fmt.Fprintf(p.w, "  %s %s\n", p.render(keyStyle, fmt.Sprintf("%-16s", key+":")), p.render(valueStyle, fmt.Sprint(value)))
}

func (p *printer) warn(format string, args ...interface{}) {
	fmt.Fprintln(p.w, p.render(warnStyle, "  ! "+fmt.Sprintf(format, args...)))
}

// distribution prints one bar per label; the most probable one is
// highlighted.
func (p *printer) distribution(labels []string, probs []float64) {
	best := 0
	width := 0
	for i, l := range labels {
		if probs[i] > probs[best] {
			best = i
		}
		width = max(width, len(l))
	}
	for i, l := range labels {
		bar := strings.Repeat("█", int(probs[i]*barWidth+0.5))
		line := fmt.Sprintf("  %-*s %.4f %s", width, l, probs[i], bar)
		if i == best {
			line = p.render(goodStyle, line)
		}
		fmt.Fprintln(p.w, line)
	}
}

// counts prints a map in sorted key order.
func (p *printer) counts(key string, m map[string]int) {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s=%d", name, m[name])
	}
	p.kv(key, strings.Join(parts, " "))
}

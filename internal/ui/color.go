package ui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/chriserin/pickle/internal/executor"
)

var (
	okStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	warningStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	keywordStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	durationStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	faintStyle    = lipgloss.NewStyle().Faint(true)
	boldStyle     = lipgloss.NewStyle().Bold(true)
	underline     = lipgloss.NewStyle().Underline(true)
)

func statusStyle(s executor.Status) lipgloss.Style {
	switch s {
	case executor.Ok:
		return okStyle
	case executor.Error:
		return errorStyle
	default:
		return warningStyle
	}
}

func Symbol(s executor.Status) string {
	switch s {
	case executor.Ok:
		return "✔"
	case executor.Warning:
		return "⚠"
	case executor.Error:
		return "✘"
	default:
		return "?"
	}
}

// Duration renders d as "1h 1m 1s 1ms", dropping zero units. Zero renders as
// "0ms".
func Duration(d time.Duration) string {
	ms := d.Milliseconds()
	if ms <= 0 {
		return "0ms"
	}
	units := []struct {
		size   int64
		suffix string
	}{
		{3600000, "h"},
		{60000, "m"},
		{1000, "s"},
		{1, "ms"},
	}
	var parts []string
	for _, u := range units {
		if n := ms / u.size; n > 0 {
			parts = append(parts, fmt.Sprintf("%d%s", n, u.suffix))
			ms %= u.size
		}
	}
	return strings.Join(parts, " ")
}

func LoadError(w io.Writer, err error) {
	fmt.Fprintln(w, errorStyle.Render("✘ "+err.Error()))
}

func Listening(w io.Writer, addr string) {
	fmt.Fprintln(w, "debugger listening on "+boldStyle.Render("http://"+addr))
}

func Reloaded(w io.Writer, path string, scenarios int) {
	fmt.Fprintln(w, okStyle.Render("reloaded")+"  "+path+faintStyle.Render(fmt.Sprintf(" (%d scenarios)", scenarios)))
}

func Wrote(w io.Writer, kind, path string) {
	fmt.Fprintln(w, faintStyle.Render("wrote "+kind)+"  "+path)
}

func Checked(w io.Writer, path string, scenarios, steps int) {
	fmt.Fprintln(w, okStyle.Render("✔ "+path)+faintStyle.Render(fmt.Sprintf(" (%d scenarios, %d steps)", scenarios, steps)))
}

package sink

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"

	"github.com/hansrobothans/logfan"
)

var (
	styleDim      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	styleSuccess  = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	styleWarning  = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	styleError    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	styleCritical = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	stylePlain    = lipgloss.NewStyle()
)

func levelStyle(l logfan.Level) lipgloss.Style {
	switch {
	case l >= logfan.LevelCritical:
		return styleCritical
	case l >= logfan.LevelError:
		return styleError
	case l >= logfan.LevelWarning:
		return styleWarning
	case l >= logfan.LevelSuccess:
		return styleSuccess
	case l >= logfan.LevelInfo:
		return stylePlain
	default:
		return styleDim
	}
}

// Console writes formatted lines to a terminal or any other writer.
type Console struct {
	w     io.Writer
	color bool
}

// NewConsole creates a console sink on w (stderr when nil). color is
// "always", "never", or "auto"; auto styles only when w is a terminal.
func NewConsole(w io.Writer, color string) *Console {
	if w == nil {
		w = os.Stderr
	}
	c := &Console{w: w}
	switch color {
	case "always":
		c.color = true
	case "never":
	default: // auto
		if f, ok := w.(*os.File); ok {
			c.color = isTerminal(f)
		}
	}
	return c
}

func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func (c *Console) Name() string { return "console" }

func (c *Console) Write(rec *logfan.Record) error {
	line := rec.FormatText()
	if c.color {
		line = levelStyle(rec.Level).Render(line)
	}
	_, err := fmt.Fprintln(c.w, line)
	return err
}

func (c *Console) Flush() error { return nil }
func (c *Console) Close() error { return nil }

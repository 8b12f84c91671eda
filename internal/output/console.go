package output

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/ayusman/sugoi/internal/session"
)

var (
	consoleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	previewStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true)
	hookStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

	levelStyles = map[session.Level]lipgloss.Style{
		session.LevelInfo:    lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true),
		session.LevelWarning: lipgloss.NewStyle().Foreground(lipgloss.Color("226")).Bold(true),
		session.LevelError:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
	}
)

func sourceStyle(src session.Source) lipgloss.Style {
	switch src {
	case session.SourceConsole:
		return consoleStyle
	case session.SourcePreview:
		return previewStyle
	default:
		return selectedStyle
	}
}

// Console renders the session to a terminal.
type Console struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsole creates a Console writing to w.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

func (c *Console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, format, args...)
}

// Output implements session.Sink.
func (c *Console) Output(ch session.Chunk) {
	style := sourceStyle(ch.Source)
	for _, line := range strings.SplitAfter(ch.Text, "\n") {
		if line == "" {
			continue
		}
		c.printf("%s%s", style.Render(strings.TrimSuffix(line, "\n")), lineEnd(line))
	}
}

func lineEnd(line string) string {
	if strings.HasSuffix(line, "\n") {
		return "\n"
	}
	return ""
}

// ClearOutput implements session.Sink.
func (c *Console) ClearOutput() {
	c.printf("%s\n", dimStyle.Render(strings.Repeat("─", 40)))
}

// HookDiscovered implements session.Sink.
func (c *Console) HookDiscovered(hookID, label string) {
	c.printf("%s %s\n", hookStyle.Render("+ hook "+hookID), dimStyle.Render(label))
}

// HookPreview implements session.Sink.
func (c *Console) HookPreview(string, string) {}

// HooksCleared implements session.Sink.
func (c *Console) HooksCleared() {}

// StateChanged implements session.Sink.
func (c *Console) StateChanged(s session.State, err error) {
	if err != nil {
		c.printf("%s %s\n", levelStyles[session.LevelError].Render(s.String()), err)
		return
	}
	c.printf("%s\n", dimStyle.Render("session "+s.String()))
}

// Notify implements session.Sink.
func (c *Console) Notify(n session.Notice) {
	style, ok := levelStyles[n.Level]
	if !ok {
		style = levelStyles[session.LevelInfo]
	}
	c.printf("%s %s\n", style.Render(n.Title+":"), n.Message)
}

// Package ui renders chat output to a terminal.
package ui

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/sealor/ai-chat/pkg/persistence"
	"golang.org/x/term"
)

const timeLayout = "2006-01-02 15:04:05"

// View writes styled output to w. It implements chat.View.
type View struct {
	out      io.Writer
	tty      bool
	width    int
	renderer *lipgloss.Renderer
	markdown *glamour.TermRenderer
	mu       sync.Mutex

	infoStyle lipgloss.Style
	warnStyle lipgloss.Style
	errStyle  lipgloss.Style
	dimStyle  lipgloss.Style
}

// New creates a View for out. Colors, word wrap and the busy indicator are
// only enabled when out is a terminal.
func New(out io.Writer) *View {
	tty, width := terminal(out)

	style := "notty"
	if tty {
		style = "dark"
	}
	markdown, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width-4),
	)
	if err != nil {
		// Fall back to plain text.
		markdown = nil
	}

	r := lipgloss.NewRenderer(out)
	return &View{
		out:       out,
		tty:       tty,
		width:     width,
		renderer:  r,
		markdown:  markdown,
		infoStyle: r.NewStyle().Foreground(lipgloss.Color("2")),
		warnStyle: r.NewStyle().Foreground(lipgloss.Color("3")),
		errStyle:  r.NewStyle().Foreground(lipgloss.Color("1")),
		dimStyle:  r.NewStyle().Faint(true),
	}
}

func terminal(out io.Writer) (bool, int) {
	f, ok := out.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return false, 80
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width < 20 {
		return true, 80
	}
	return true, width
}

func (v *View) println(s string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintln(v.out, s)
}

func (v *View) Info(msg string)  { v.println(v.infoStyle.Render(msg)) }
func (v *View) Warn(msg string)  { v.println(v.warnStyle.Render(msg)) }
func (v *View) Error(err error)  { v.println(v.errStyle.Render("Error: " + err.Error())) }
func (v *View) Help(text string) { v.println(v.render(text)) }

func (v *View) render(text string) string {
	if v.markdown == nil {
		return text
	}
	out, err := v.markdown.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(out, "\n")
}

func (v *View) Models(models []persistence.Model) {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("Model Name", "Description")
	for _, m := range models {
		t.Row(m.Name, m.Description)
	}
	v.println(v.renderer.NewStyle().Bold(true).Render("Available Models") + "\n" + t.String())
}

func (v *View) Sessions(sessions []persistence.SessionSummary) {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "Start Time", "Current Model", "Title")
	for _, s := range sessions {
		t.Row(
			strconv.FormatInt(s.ID, 10),
			s.StartTime.Local().Format(timeLayout),
			s.CurrentModel,
			persistence.DisplayTitle(s.Title),
		)
	}
	v.println(v.renderer.NewStyle().Bold(true).Render("Chat Sessions") + "\n" + t.String())
}

func (v *View) Transcript(session *persistence.Session) {
	if len(session.Messages) == 0 {
		v.println(v.dimStyle.Render("(no messages yet)"))
		return
	}
	for _, m := range session.Messages {
		v.panel(m)
	}
}

func (v *View) Reply(message persistence.Message) {
	v.panel(message)
}

// panel prints one message in a rounded box titled with role and model.
func (v *View) panel(m persistence.Message) {
	color := lipgloss.Color("4")
	if m.Role == persistence.RoleAssistant {
		color = lipgloss.Color("2")
	}
	title := v.renderer.NewStyle().Foreground(color).Bold(true).Render(roleTitle(m.Role)) +
		" (" + m.Model + ")"
	subtitle := v.dimStyle.Render(m.Timestamp.Local().Format(timeLayout))

	box := v.renderer.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(color).
		Padding(0, 1).
		Width(v.width - 2)
	v.println(title + "\n" + box.Render(v.render(m.Content)) + "\n" + subtitle)
}

func roleTitle(role string) string {
	if role == "" {
		return ""
	}
	return strings.ToUpper(role[:1]) + role[1:]
}

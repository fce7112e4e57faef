package console

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/charmbracelet/lipgloss"

	streamctl "github.com/Paranoid-AF/streamctl"
	"github.com/Paranoid-AF/streamctl/catalog"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	noteStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
)

// display writes operator-facing output. With color off every line is
// plain text, byte for byte.
type display struct {
	out   io.Writer
	color bool
}

func (d *display) render(style lipgloss.Style, text string) string {
	if !d.color {
		return text
	}
	return style.Render(text)
}

func (d *display) line(text string) {
	fmt.Fprintln(d.out, text)
}

func (d *display) errorf(format string, args ...any) {
	fmt.Fprintln(d.out, d.render(errorStyle, "error: "+fmt.Sprintf(format, args...)))
}

func (d *display) menu() {
	var b strings.Builder
	b.WriteString(d.render(headerStyle, "digit commands:") + "\n")
	for _, t := range catalog.All() {
		fmt.Fprintf(&b, "%d - %s\n", int(t.Command), t.Title)
	}
	b.WriteString("\n" + d.render(headerStyle, "text commands:") + "\n")
	b.WriteString("help - show this menu\n")
	b.WriteString("quit - exit from client\n")
	fmt.Fprint(d.out, b.String())
}

func (d *display) sent(t catalog.Template) {
	d.line(d.render(noteStyle, fmt.Sprintf("→ %s (%s, id %d)", t.Title, t.Method, t.ID)))
}

// response annotates a reply. req is the matching sent command when known.
func (d *display) response(msg *streamctl.Message, req pendingRequest, matched bool, at time.Time) {
	var what string
	if matched {
		what = fmt.Sprintf("← %s (id %d, %s)", req.Command, req.ID, at.Sub(req.SentAt).Round(time.Millisecond))
	} else {
		what = fmt.Sprintf("← response (id %s, no pending request)", msg.Key())
	}
	switch {
	case msg.Error != nil:
		d.line(d.render(noteStyle, what) + " " + d.render(errorStyle, fmt.Sprintf("error %d: %s", msg.Error.Code, msg.Error.Message)))
	case len(msg.Result) > 0:
		d.line(d.render(noteStyle, what) + " " + d.render(okStyle, truncate(msg.ResultText(), 80)))
	default:
		d.line(d.render(noteStyle, what))
	}
}

func (d *display) broadcast(msg *streamctl.Message) {
	what := "← " + msg.Method
	if msg.HasID() {
		what += fmt.Sprintf(" (request id %s)", msg.Key())
	}
	d.line(d.render(noteStyle, what))
}

// body prints a received frame body as text. JSON is highlighted when
// color is on; the text itself is never altered.
func (d *display) body(body []byte) {
	if d.color && json.Valid(body) {
		var b strings.Builder
		if err := quick.Highlight(&b, string(body), "json", "terminal256", "monokai"); err == nil {
			d.line(b.String())
			return
		}
	}
	d.line(string(body))
}

// truncate shortens s to max runes.
func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + "…"
}

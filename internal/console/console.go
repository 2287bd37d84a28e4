// Package console renders the dashboard as plain text for terminals.
package console

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/narvanalabs/gatekeeper-dashboard/internal/aggregate"
	"github.com/narvanalabs/gatekeeper-dashboard/internal/models"
	"github.com/narvanalabs/gatekeeper-dashboard/internal/state"
	"github.com/narvanalabs/gatekeeper-dashboard/web/views"
)

const (
	// DefaultWidth is used when the output is not a terminal.
	DefaultWidth = 80
	minWidth     = 40
	// DefaultFeedRows caps the number of feed rows printed.
	DefaultFeedRows = 20
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
	ansiBold   = "\x1b[1m"
	clearHome  = "\x1b[H\x1b[2J"
)

// Options controls the rendering.
type Options struct {
	Width    int
	Color    bool
	FeedRows int
}

// Detect derives options from f. Color is enabled only for terminals.
func Detect(f *os.File) Options {
	opts := Options{Width: DefaultWidth, FeedRows: DefaultFeedRows}
	fd := int(f.Fd())
	if !term.IsTerminal(fd) {
		return opts
	}
	opts.Color = os.Getenv("NO_COLOR") == ""
	if w, _, err := term.GetSize(fd); err == nil && w > 0 {
		opts.Width = w
	}
	return opts
}

// Renderer writes snapshots to a writer.
type Renderer struct {
	w    io.Writer
	opts Options
}

// NewRenderer creates a renderer. Widths below the minimum are raised.
func NewRenderer(w io.Writer, opts Options) *Renderer {
	if opts.Width < minWidth {
		opts.Width = minWidth
	}
	if opts.FeedRows <= 0 {
		opts.FeedRows = DefaultFeedRows
	}
	return &Renderer{w: w, opts: opts}
}

// Clear moves the cursor home and clears the screen when color output is on.
func (r *Renderer) Clear() {
	if r.opts.Color {
		io.WriteString(r.w, clearHome)
	}
}

// Render writes one full frame for snap.
func (r *Renderer) Render(snap state.Snapshot) error {
	var b strings.Builder

	r.header(&b, snap)
	b.WriteString("\n")

	switch snap.View() {
	case state.ViewLoading:
		b.WriteString(views.LoadingText + "\n")
	case state.ViewEmpty:
		r.kpis(&b, snap.Summary)
		b.WriteString("\n" + views.EmptyText + "\n")
	default:
		r.kpis(&b, snap.Summary)
		b.WriteString("\n")
		r.chart(&b, snap.Summary)
		b.WriteString("\n")
		r.feed(&b, snap.Entries)
	}

	_, err := io.WriteString(r.w, b.String())
	return err
}

func (r *Renderer) paint(color, s string) string {
	if !r.opts.Color || color == "" {
		return s
	}
	return color + s + ansiReset
}

// StatusLabel is the indicator text for a connection status.
func StatusLabel(s state.Status) string {
	switch s {
	case state.StatusConnected:
		return "System Active"
	case state.StatusFailed:
		return "Connection Lost"
	case state.StatusInvalidPayload:
		return "Invalid Payload"
	default:
		return "Connecting..."
	}
}

func statusColor(s state.Status) string {
	switch s {
	case state.StatusConnected:
		return ansiGreen
	case state.StatusFailed:
		return ansiRed
	case state.StatusInvalidPayload:
		return ansiYellow
	default:
		return ""
	}
}

func (r *Renderer) header(b *strings.Builder, snap state.Snapshot) {
	title := r.paint(ansiBold, "GateKeeper Governance")
	status := r.paint(statusColor(snap.Status), "● "+StatusLabel(snap.Status))
	fmt.Fprintf(b, "%s  %s\n", title, status)
	if snap.LastError != "" && snap.Status != state.StatusConnected {
		fmt.Fprintf(b, "%s\n", r.paint(ansiRed, truncate("last error: "+snap.LastError, r.opts.Width)))
	}
}

func (r *Renderer) kpis(b *strings.Builder, s aggregate.Summary) {
	fmt.Fprintf(b, "%-24s %s\n", "Total Spend (Session)", aggregate.FormatCost(s.TotalSpend))
	fmt.Fprintf(b, "%-24s %d\n", "Active Teams", s.ActiveTeams)
	fmt.Fprintf(b, "%-24s %s\n", "Threats Blocked", r.paint(ansiRed, fmt.Sprint(s.Blocked)))
	fmt.Fprintf(b, "%-24s %s\n", "Safe Requests", r.paint(ansiGreen, fmt.Sprint(s.Allowed)))
}

// chart draws one horizontal bar per team, scaled to the widest team.
func (r *Renderer) chart(b *strings.Builder, s aggregate.Summary) {
	b.WriteString(r.paint(ansiBold, "Spend by Team") + "\n")

	labelWidth := 4
	for _, t := range s.Teams {
		if n := len([]rune(t.Team)); n > labelWidth {
			labelWidth = n
		}
	}
	if labelWidth > 16 {
		labelWidth = 16
	}

	costWidth := len(aggregate.FormatCost(s.MaxTeamSpend()))
	barWidth := r.opts.Width - labelWidth - costWidth - 4
	if barWidth < 1 {
		barWidth = 1
	}

	top := s.MaxTeamSpend()
	for _, t := range s.Teams {
		cost := math.Max(t.Cost, 0)
		n := 0
		if top > 0 {
			n = int(cost / top * float64(barWidth))
		}
		if n == 0 && cost > 0 {
			n = 1
		}
		n = min(max(n, 0), barWidth)
		bar := strings.Repeat("█", n) + strings.Repeat(" ", barWidth-n)
		fmt.Fprintf(b, "%-*s %s %s\n", labelWidth, truncate(t.Team, labelWidth), r.paint(ansiBlue, bar), aggregate.FormatCost(t.Cost))
	}
}

func (r *Renderer) feed(b *strings.Builder, entries []models.LogEntry) {
	b.WriteString(r.paint(ansiBold, "Live Feed") + "\n")

	rows := entries
	if len(rows) > r.opts.FeedRows {
		rows = rows[:r.opts.FeedRows]
	}
	for _, e := range rows {
		line := fmt.Sprintf("%s  %s  [%s] %s  %s  %s  %s",
			e.Timestamp, e.DisplayUser(), e.Team, e.Mode, e.Reason, e.Action, aggregate.FormatCost(e.Cost))
		b.WriteString(r.paint(actionColor(e), truncate(line, r.opts.Width)) + "\n")
	}
	if hidden := len(entries) - len(rows); hidden > 0 {
		fmt.Fprintf(b, "... %d more\n", hidden)
	}
}

func actionColor(e models.LogEntry) string {
	switch {
	case e.IsBlocked():
		return ansiRed
	case e.IsAllowed():
		return ansiGreen
	default:
		return ""
	}
}

func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	if width <= 1 {
		return string(r[:width])
	}
	return string(r[:width-1]) + "…"
}

// Package format renders discovery results and status reports as console
// tables that adapt to the terminal width.
package format

import (
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"golang.org/x/term"

	"github.com/greg-hellings/scmindex/pkg/index"
	"github.com/greg-hellings/scmindex/pkg/report"
)

// ConsoleFormatter renders entries and reports in terminal-friendly tables.
type ConsoleFormatter struct {
	// MaxColWidth constrains every column. If 0, a width is derived from the
	// terminal width.
	MaxColWidth int

	// EnableColors toggles ANSI color output for status cells.
	EnableColors bool
}

// NewConsoleFormatter creates a formatter with sensible defaults.
func NewConsoleFormatter() *ConsoleFormatter {
	return &ConsoleFormatter{EnableColors: true}
}

func (f *ConsoleFormatter) newTable(w io.Writer, header table.Row) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleRounded)
	tw.Style().Options.SeparateRows = false
	tw.Style().Options.SeparateColumns = false
	tw.Style().Options.DrawBorder = true
	tw.AppendHeader(header)
	if configs := f.buildColumnConfig(w, len(header)); len(configs) > 0 {
		tw.SetColumnConfigs(configs)
	}
	return tw
}

// RenderEntries writes the repositories found by a discovery.
func (f *ConsoleFormatter) RenderEntries(entries []index.Entry, w io.Writer) error {
	tw := f.newTable(w, table.Row{"Repository"})
	for _, e := range entries {
		tw.AppendRow(table.Row{e.Name})
	}
	tw.Render()

	if _, err := fmt.Fprintf(w, "\n%d repositories found\n", len(entries)); err != nil {
		return fmt.Errorf("failed writing entries summary: %w", err)
	}
	return nil
}

// Render writes the formatted report to writer.
func (f *ConsoleFormatter) Render(rpt *report.Report, w io.Writer) error {
	if rpt == nil {
		return fmt.Errorf("nil report")
	}

	nodes := f.newTable(w, table.Row{"Tool", "Node", "Status"})
	for _, n := range rpt.Nodes {
		nodes.AppendRow(table.Row{n.Tool, n.Node, f.statusCell(n.Up, n.Error)})
	}
	nodes.Render()

	if _, err := fmt.Fprintln(w); err != nil {
		return fmt.Errorf("failed writing spacer newline: %w", err)
	}

	subs := f.newTable(w, table.Row{"Tool", "Subscription", "Repository", "Status", "Info", "Home"})
	for _, s := range rpt.Subscriptions {
		info := ""
		if s.Info != nil {
			info = firstLine(fmt.Sprint(s.Info))
		}
		subs.AppendRow(table.Row{
			s.Tool,
			s.Subscription,
			s.Repository,
			f.statusCell(s.Status.IsUp(), s.Error),
			info,
			s.Home.URL,
		})
	}
	subs.Render()

	nodesUp, subsUp := 0, 0
	for _, n := range rpt.Nodes {
		if n.Up {
			nodesUp++
		}
	}
	for _, s := range rpt.Subscriptions {
		if s.Status.IsUp() {
			subsUp++
		}
	}

	if _, err := fmt.Fprintf(w, "\nSummary:\n"); err != nil {
		return fmt.Errorf("failed writing summary header: %w", err)
	}
	if _, err := fmt.Fprintf(w, "  Nodes up: %d/%d\n", nodesUp, len(rpt.Nodes)); err != nil {
		return fmt.Errorf("failed writing nodes line: %w", err)
	}
	if _, err := fmt.Fprintf(w, "  Subscriptions up: %d/%d\n", subsUp, len(rpt.Subscriptions)); err != nil {
		return fmt.Errorf("failed writing subscriptions line: %w", err)
	}

	if rpt.HasErrors() {
		if _, err := fmt.Fprintf(w, "\nErrors:\n"); err != nil {
			return fmt.Errorf("failed writing errors header: %w", err)
		}
		for _, n := range rpt.Nodes {
			if n.Error != nil {
				if err := writeError(w, n.GetIdentifier(), n.Error); err != nil {
					return err
				}
			}
		}
		for _, s := range rpt.Subscriptions {
			if s.Error != nil {
				if err := writeError(w, s.GetIdentifier(), s.Error); err != nil {
					return err
				}
			}
		}
	}

	return nil
}

func writeError(w io.Writer, name string, e error) error {
	if _, err := fmt.Fprintf(w, "  %-30s %v\n", name, e); err != nil {
		return fmt.Errorf("failed writing error line for %s: %w", name, err)
	}
	return nil
}

// statusCell returns the status string (with optional color) of a check.
func (f *ConsoleFormatter) statusCell(up bool, err error) string {
	switch {
	case err != nil:
		return f.color("ERROR", text.FgRed)
	case up:
		return f.color("UP", text.FgGreen)
	default:
		return f.color("DOWN", text.FgYellow)
	}
}

// buildColumnConfig creates per-column sizing to fit the terminal.
func (f *ConsoleFormatter) buildColumnConfig(w io.Writer, cols int) []table.ColumnConfig {
	if cols == 0 {
		return nil
	}

	width := f.MaxColWidth
	if width <= 0 {
		termWidth := detectTerminalWidth(w)
		if termWidth <= 0 {
			// Fallback: do not constrain if width unknown
			return nil
		}
		if termWidth < 60 {
			termWidth = 60
		}
		width = (termWidth - 3*cols) / cols
		if width < 8 {
			width = 8
		}
	}

	configs := make([]table.ColumnConfig, 0, cols)
	for i := 0; i < cols; i++ {
		configs = append(configs, table.ColumnConfig{
			Number:      i + 1,
			WidthMax:    width,
			WidthMin:    minInt(5, width),
			Transformer: truncTransformer(width),
		})
	}
	return configs
}

// detectTerminalWidth attempts to get terminal width if writer is a file (stdout/stderr).
func detectTerminalWidth(w io.Writer) int {
	if f, ok := w.(*os.File); ok {
		if width, _, err := term.GetSize(int(f.Fd())); err == nil {
			return width
		}
	}
	return -1
}

// truncTransformer returns a text.Transformer to ellipsize overly wide cells.
func truncTransformer(max int) text.Transformer {
	return func(val interface{}) string {
		s := fmt.Sprint(val)
		if utf8.RuneCountInString(s) > max {
			if max <= 1 {
				return "…"
			}
			return truncateRunes(s, max)
		}
		return s
	}
}

// truncateRunes truncates a string to (max) runes with ellipsis.
func truncateRunes(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	var b strings.Builder
	count := 0
	for _, r := range s {
		if count >= max-1 {
			break
		}
		b.WriteRune(r)
		count++
	}
	b.WriteRune('…')
	return b.String()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func (f *ConsoleFormatter) color(s string, c text.Color) string {
	if !f.EnableColors {
		return s
	}
	return text.Colors{c}.Sprint(s)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// RenderConsole renders the provided Report to the writer using the default console formatter.
func RenderConsole(rpt *report.Report, w io.Writer) error {
	return NewConsoleFormatter().Render(rpt, w)
}

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#A6E3A1"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F38BA8"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086"))
	borderStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#45475A"))
)

// renderer writes command output, styled when the destination is a terminal.
type renderer struct {
	out    io.Writer
	styled bool
}

func newRenderer(cmd *cobra.Command) renderer {
	out := cmd.OutOrStdout()
	styled := false
	if f, ok := out.(*os.File); ok {
		styled = term.IsTerminal(int(f.Fd()))
	}
	return renderer{out: out, styled: styled}
}

func (r renderer) style(s lipgloss.Style, text string) string {
	if !r.styled {
		return text
	}
	return s.Render(text)
}

func (r renderer) heading(text string) {
	fmt.Fprintln(r.out, r.style(headingStyle, text))
}

func (r renderer) success(format string, args ...any) {
	fmt.Fprintln(r.out, r.style(successStyle, fmt.Sprintf(format, args...)))
}

func (r renderer) failure(format string, args ...any) {
	fmt.Fprintln(r.out, r.style(errorStyle, fmt.Sprintf(format, args...)))
}

func (r renderer) muted(format string, args ...any) {
	fmt.Fprintln(r.out, r.style(mutedStyle, fmt.Sprintf(format, args...)))
}

// table prints rows under headers. Plain output is tab separated so it
// stays easy to pipe into other tools.
func (r renderer) table(headers []string, rows [][]string) {
	if len(rows) == 0 {
		r.muted("No results.")
		return
	}

	if r.styled {
		t := table.New().
			Border(lipgloss.RoundedBorder()).
			BorderStyle(borderStyle).
			Headers(headers...).
			Rows(rows...).
			StyleFunc(func(row, _ int) lipgloss.Style {
				if row == table.HeaderRow {
					return headingStyle.Padding(0, 1)
				}
				return lipgloss.NewStyle().Padding(0, 1)
			})
		fmt.Fprintln(r.out, t.Render())
		return
	}

	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(headers, "\t"))
	for _, row := range rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	w.Flush() //nolint:errcheck
}

// json prints v as indented JSON.
func (r renderer) json(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	fmt.Fprintln(r.out, string(data))
	return nil
}

// list renders items either as JSON or as a table built by row.
func list[T any](cmd *cobra.Command, items []T, headers []string, row func(T) []string) error {
	r := newRenderer(cmd)
	if jsonOutput {
		if items == nil {
			items = []T{}
		}
		return r.json(items)
	}
	rows := make([][]string, len(items))
	for i, item := range items {
		rows[i] = row(item)
	}
	r.table(headers, rows)
	return nil
}

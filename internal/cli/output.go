package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}

// output writes v as JSON in --json mode and otherwise calls text.
func (a *app) output(cmd *cobra.Command, v any, text func(w io.Writer) error) error {
	if a.flags.jsonMode {
		return printJSON(cmd.OutOrStdout(), v)
	}
	return text(cmd.OutOrStdout())
}

// table writes rows under header, aligned in columns.
func table(w io.Writer, header []string, rows [][]string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

// truncate shortens s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}

func formatHours(h float64) string {
	return fmt.Sprintf("%.1fh", h)
}

// palette colors status words when the destination is a terminal.
type palette struct {
	enabled bool
}

func newPalette(w io.Writer) palette {
	f, ok := w.(*os.File)
	if !ok || os.Getenv("NO_COLOR") != "" {
		return palette{}
	}
	return palette{enabled: term.IsTerminal(int(f.Fd()))}
}

var statusColors = map[string]color.Attribute{
	"draft":            color.FgHiBlack,
	"pending_approval": color.FgYellow,
	"approved":         color.FgCyan,
	"in_progress":      color.FgBlue,
	"code_review":      color.FgMagenta,
	"unit_testing":     color.FgMagenta,
	"completed":        color.FgGreen,
	"verified_closed":  color.FgGreen,
	"blocked":          color.FgRed,
}

// status returns s, padded to width, in the color of its status word.
func (p palette) status(s string, width int) string {
	padded := fmt.Sprintf("%-*s", width, s)
	attr, ok := statusColors[s]
	if !p.enabled || !ok {
		return padded
	}
	c := color.New(attr)
	c.EnableColor()
	return c.Sprint(padded)
}

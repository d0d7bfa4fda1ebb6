package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/tidwall/pretty"
)

// Output handles formatted output for the CLI.
type Output struct {
	writer       io.Writer
	errWriter    io.Writer
	jsonMode     bool
	colorEnabled bool
}

// NewOutput creates a new Output instance.
func NewOutput(cmd *cobra.Command) *Output {
	jsonMode, _ := cmd.Flags().GetBool("json")
	return &Output{
		writer:       cmd.OutOrStdout(),
		errWriter:    cmd.ErrOrStderr(),
		jsonMode:     jsonMode,
		colorEnabled: !jsonMode && isTerminal(cmd.OutOrStdout()),
	}
}

// isTerminal checks if w is a terminal that accepts colors.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || color.NoColor {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// IsJSON returns true if JSON output mode is enabled.
func (o *Output) IsJSON() bool {
	return o.jsonMode
}

// JSON outputs data as indented JSON.
func (o *Output) JSON(data interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encoding json: %w", err)
	}
	_, err = o.writer.Write(pretty.Pretty(raw))
	return err
}

// Println prints a line.
func (o *Output) Println(args ...interface{}) {
	fmt.Fprintln(o.writer, args...)
}

// Printf prints a formatted message.
func (o *Output) Printf(format string, args ...interface{}) {
	fmt.Fprintf(o.writer, format, args...)
}

// Success prints a success message in green.
func (o *Output) Success(format string, args ...interface{}) {
	o.line(o.writer, color.New(color.FgGreen), format, args...)
}

// Error prints an error message in red to stderr.
func (o *Output) Error(format string, args ...interface{}) {
	o.line(o.errWriter, color.New(color.FgRed), format, args...)
}

// Warning prints a warning message in yellow to stderr.
func (o *Output) Warning(format string, args ...interface{}) {
	o.line(o.errWriter, color.New(color.FgYellow), format, args...)
}

// Info prints an info message in cyan.
func (o *Output) Info(format string, args ...interface{}) {
	o.line(o.writer, color.New(color.FgCyan), format, args...)
}

// Bold prints a bold heading.
func (o *Output) Bold(format string, args ...interface{}) {
	o.line(o.writer, color.New(color.Bold), format, args...)
}

// Dim prints a faint line.
func (o *Output) Dim(format string, args ...interface{}) {
	o.line(o.writer, color.New(color.Faint), format, args...)
}

func (o *Output) line(w io.Writer, c *color.Color, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if o.colorEnabled {
		c.EnableColor()
		msg = c.Sprint(msg)
	}
	fmt.Fprintln(w, msg)
}

// paint colors text when colors are enabled.
func (o *Output) paint(text string, attrs ...color.Attribute) string {
	if !o.colorEnabled {
		return text
	}
	c := color.New(attrs...)
	c.EnableColor()
	return c.Sprint(text)
}

// Green colors text green.
func (o *Output) Green(text string) string { return o.paint(text, color.FgGreen) }

// Red colors text red.
func (o *Output) Red(text string) string { return o.paint(text, color.FgRed) }

// Yellow colors text yellow.
func (o *Output) Yellow(text string) string { return o.paint(text, color.FgYellow) }

// Verdict renders a record outcome.
func (o *Output) Verdict(valid bool) string {
	if valid {
		return o.Green("valid")
	}
	return o.Red("invalid")
}

// Rate renders a percent correct, colored by whether it beats a coin flip.
func (o *Output) Rate(rate *float64) string {
	text := FormatRate(rate)
	switch {
	case rate == nil:
		return o.Yellow(text)
	case *rate >= 0.5:
		return o.Green(text)
	default:
		return o.Red(text)
	}
}

// Table represents a simple table for output.
type Table struct {
	headers []string
	rows    [][]string
	output  *Output
}

// NewTable creates a new table.
func NewTable(output *Output, headers ...string) *Table {
	return &Table{
		headers: headers,
		rows:    make([][]string, 0),
		output:  output,
	}
}

// AddRow adds a row to the table.
func (t *Table) AddRow(cells ...string) {
	t.rows = append(t.rows, cells)
}

// Render renders the table.
func (t *Table) Render() {
	if len(t.headers) == 0 {
		return
	}

	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = visibleLen(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(widths) && visibleLen(cell) > widths[i] {
				widths[i] = visibleLen(cell)
			}
		}
	}

	t.printRow(t.headers, widths, true)
	seps := make([]string, len(widths))
	for i, w := range widths {
		seps[i] = strings.Repeat("-", w)
	}
	t.output.Println(t.output.paint(strings.Join(seps, "  "), color.Faint))

	for _, row := range t.rows {
		t.printRow(row, widths, false)
	}
}

func (t *Table) printRow(cells []string, widths []int, isHeader bool) {
	parts := make([]string, 0, len(cells))
	for i, cell := range cells {
		if i >= len(widths) {
			break
		}
		padded := cell + strings.Repeat(" ", max(widths[i]-visibleLen(cell), 0))
		if isHeader {
			padded = t.output.paint(padded, color.Bold)
		}
		parts = append(parts, padded)
	}
	t.output.Println(strings.TrimRight(strings.Join(parts, "  "), " "))
}

// visibleLen is the rune count of s without ANSI escape sequences.
func visibleLen(s string) int {
	n := 0
	inEscape := false
	for _, r := range s {
		switch {
		case r == '\x1b':
			inEscape = true
		case inEscape:
			if r == 'm' {
				inEscape = false
			}
		default:
			n++
		}
	}
	return n
}

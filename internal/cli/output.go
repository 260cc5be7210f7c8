// Package cli provides the command-line interface for the mentorship journal.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	apperrors "mentor-desk/internal/errors"
	"mentor-desk/internal/security"
)

// Output handles formatted output for the CLI.
type Output struct {
	writer       io.Writer
	jsonMode     bool
	colorEnabled bool
	format       Formatter
}

// NewOutput creates a new Output instance.
func NewOutput(cmd *cobra.Command) *Output {
	jsonMode, _ := cmd.Flags().GetBool("json")
	return &Output{
		writer:       cmd.OutOrStdout(),
		jsonMode:     jsonMode,
		colorEnabled: !jsonMode && isTerminal(cmd.OutOrStdout()),
		format:       DefaultFormatter(),
	}
}

// isTerminal checks if w is a terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fileInfo, err := f.Stat()
	if err != nil {
		return false
	}
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}

// WithFormatter sets the currency and date formatting.
func (o *Output) WithFormatter(f Formatter) *Output {
	o.format = f
	return o
}

// WithColor turns colour on or off. JSON output is never coloured.
func (o *Output) WithColor(enabled bool) *Output {
	o.colorEnabled = enabled && o.colorEnabled
	return o
}

// Formatter returns the output's formatter.
func (o *Output) Formatter() Formatter {
	return o.format
}

// IsJSON returns true if JSON output mode is enabled.
func (o *Output) IsJSON() bool {
	return o.jsonMode
}

// JSON outputs data as JSON.
func (o *Output) JSON(data interface{}) error {
	encoder := json.NewEncoder(o.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// Println prints a message with newline.
func (o *Output) Println(args ...interface{}) {
	fmt.Fprintln(o.writer, args...)
}

// Printf prints a formatted message.
func (o *Output) Printf(format string, args ...interface{}) {
	fmt.Fprintf(o.writer, format, args...)
}

// Success prints a success message in green.
func (o *Output) Success(format string, args ...interface{}) {
	o.colored(color.FgGreen, format, args...)
}

// Error prints an error message in red.
func (o *Output) Error(format string, args ...interface{}) {
	o.colored(color.FgRed, format, args...)
}

// Warning prints a warning message in yellow.
func (o *Output) Warning(format string, args ...interface{}) {
	o.colored(color.FgYellow, format, args...)
}

// Info prints an info message in cyan.
func (o *Output) Info(format string, args ...interface{}) {
	o.colored(color.FgCyan, format, args...)
}

// Bold prints a bold message.
func (o *Output) Bold(format string, args ...interface{}) {
	o.colored(color.Bold, format, args...)
}

// Dim prints a dimmed message.
func (o *Output) Dim(format string, args ...interface{}) {
	o.colored(color.Faint, format, args...)
}

func (o *Output) paint(attr color.Attribute) *color.Color {
	c := color.New(attr)
	if o.colorEnabled {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c
}

// colored prints a colored message.
func (o *Output) colored(attr color.Attribute, format string, args ...interface{}) {
	fmt.Fprintln(o.writer, o.paint(attr).Sprintf(format, args...))
}

// Green returns green colored text.
func (o *Output) Green(text string) string {
	return o.paint(color.FgGreen).Sprint(text)
}

// Red returns red colored text.
func (o *Output) Red(text string) string {
	return o.paint(color.FgRed).Sprint(text)
}

// Yellow returns yellow colored text.
func (o *Output) Yellow(text string) string {
	return o.paint(color.FgYellow).Sprint(text)
}

// DimText returns dimmed text.
func (o *Output) DimText(text string) string {
	return o.paint(color.Faint).Sprint(text)
}

// FormatPnL formats P&L with sign and color.
func (o *Output) FormatPnL(pnl float64) string {
	formatted := o.format.PnL(pnl)
	switch {
	case pnl > 0:
		return o.Green(formatted)
	case pnl < 0:
		return o.Red(formatted)
	}
	return formatted
}

// Status colours a trade status, validation or review label.
func (o *Output) Status(label string) string {
	switch label {
	case "win", "approved", "reviewed":
		return o.Green(label)
	case "loss", "rejected", "flagged":
		return o.Red(label)
	case "warning", "breakeven":
		return o.Yellow(label)
	case "pending", "none":
		return o.DimText(label)
	}
	return label
}

// Table renders rows through tablewriter.
type Table struct {
	table *tablewriter.Table
	rows  int
}

// NewTable creates a new table.
func NewTable(output *Output, headers ...string) *Table {
	t := tablewriter.NewWriter(output.writer)
	t.Header(toAny(headers)...)
	return &Table{table: t}
}

// AddRow adds a row to the table.
func (t *Table) AddRow(cells ...string) {
	t.table.Append(toAny(cells)...)
	t.rows++
}

// Len returns the number of rows added.
func (t *Table) Len() int {
	return t.rows
}

// Render renders the table.
func (t *Table) Render() {
	t.table.Render()
}

func toAny(cells []string) []any {
	out := make([]any, len(cells))
	for i, c := range cells {
		out[i] = c
	}
	return out
}

// reportError prints a human-readable reason for a failed command and marks
// the error as reported.
func reportError(output *Output, err error) error {
	var (
		readOnly   *security.ReadOnlyError
		validation *apperrors.ValidationError
		notFound   *apperrors.NotFoundError
	)
	switch {
	case apperrors.As(err, &readOnly):
		output.Error("✗ %s is not allowed: read-only mode is enabled", security.OperationDescription(readOnly.Operation))
	case apperrors.As(err, &validation):
		output.Error("✗ Invalid %s: %s", validation.Field, validation.Message)
	case apperrors.As(err, &notFound):
		msg := fmt.Sprintf("✗ No %s with id %q", notFound.Kind, notFound.ID)
		if notFound.Message != "" {
			msg += " (" + notFound.Message + ")"
		}
		output.Error("%s", msg)
	default:
		output.Error("✗ %s", strings.TrimSpace(err.Error()))
	}
	return reportedError{err}
}

// reportedError marks an error already shown to the user.
type reportedError struct{ error }

func (e reportedError) Unwrap() error { return e.error }

// Reported reports whether err has already been printed by a command.
func Reported(err error) bool {
	var r reportedError
	return apperrors.As(err, &r)
}

// Package ui renders CLI output.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/pterm/pterm"
)

// Out and ErrOut receive everything the package prints.
var (
	Out    io.Writer = os.Stdout
	ErrOut io.Writer = os.Stderr
)

var (
	accent = lipgloss.Color("#00D9FF")
	muted  = lipgloss.Color("#6C757D")

	titleStyle   = lipgloss.NewStyle().Foreground(accent).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(muted)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF88")).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFB800")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4444")).Bold(true)
	infoStyle    = lipgloss.NewStyle().Foreground(accent)
)

func terminalWidth() int {
	if w := pterm.GetTerminalWidth(); w > 0 && w < 100 {
		return w
	}
	return 100
}

func printLine(w io.Writer, style lipgloss.Style, symbol, format string, args []interface{}) {
	fmt.Fprintln(w, style.Render(symbol+" "+fmt.Sprintf(format, args...)))
}

// PrintHeader prints a section title with a muted source line underneath,
// e.g. the allow-list file a listing came from.
func PrintHeader(title, source string) {
	fmt.Fprintln(Out, titleStyle.Render(title))
	if source != "" {
		fmt.Fprintln(Out, mutedStyle.Render(source))
	}
	fmt.Fprintln(Out, mutedStyle.Render(strings.Repeat("─", len(title))))
}

// PrintSuccess reports a completed step.
func PrintSuccess(format string, args ...interface{}) {
	printLine(Out, successStyle, "✓", format, args)
}

// PrintError reports a failed command on ErrOut.
func PrintError(format string, args ...interface{}) {
	printLine(ErrOut, errorStyle, "✗", format, args)
}

// PrintWarning reports something the user should look at, e.g. a server
// running without API keys.
func PrintWarning(format string, args ...interface{}) {
	printLine(Out, warningStyle, "!", format, args)
}

// PrintInfo prints a neutral note.
func PrintInfo(format string, args ...interface{}) {
	printLine(Out, infoStyle, "·", format, args)
}

// PrintTable prints rows under headers, followed by a muted caption such
// as "3 tables".
func PrintTable(headers []string, rows [][]string, caption string) {
	writeTable(Out, headers, rows, caption)
}

func writeTable(w io.Writer, headers []string, rows [][]string, caption string) {
	data := pterm.TableData{headers}
	data = append(data, rows...)
	table, err := pterm.DefaultTable.
		WithHasHeader().
		WithBoxed().
		WithHeaderStyle(pterm.NewStyle(pterm.FgCyan, pterm.Bold)).
		WithData(data).
		Srender()
	if err != nil {
		PrintError("render table: %v", err)
		return
	}
	fmt.Fprintln(w, table)
	if caption != "" {
		fmt.Fprintln(w, mutedStyle.Render(caption))
	}
}

// PrintMarkdown renders markdown, used for compiled SQL.
func PrintMarkdown(content string) error {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(terminalWidth()),
	)
	if err != nil {
		return err
	}
	out, err := r.Render(content)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(Out, out)
	return err
}

// PrintSteps prints numbered commands in a box under title.
func PrintSteps(title string, steps ...string) {
	lines := make([]string, 0, len(steps)+1)
	lines = append(lines, titleStyle.Render(title))
	for i, step := range steps {
		lines = append(lines, fmt.Sprintf("%s %s", mutedStyle.Render(fmt.Sprintf("%d.", i+1)), step))
	}
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(accent).
		Padding(0, 2).
		Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
	fmt.Fprintln(Out, box)
}

// PrintSpinner starts a spinner; callers stop it with Success or Fail.
func PrintSpinner(message string) (*pterm.SpinnerPrinter, error) {
	return pterm.DefaultSpinner.WithWriter(Out).Start(message)
}

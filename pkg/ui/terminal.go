package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
)

// ASCIILogo is printed before long-running commands
const ASCIILogo = `
  ██████╗  ██████╗  ██████╗███╗   ███╗██╗██████╗ ██████╗  ██████╗ ██████╗
  ██╔══██╗██╔═══██╗██╔════╝████╗ ████║██║██╔══██╗██╔══██╗██╔═══██╗██╔══██╗
  ██║  ██║██║   ██║██║     ██╔████╔██║██║██████╔╝██████╔╝██║   ██║██████╔╝
  ██║  ██║██║   ██║██║     ██║╚██╔╝██║██║██╔══██╗██╔══██╗██║   ██║██╔══██╗
  ██████╔╝╚██████╔╝╚██████╗██║ ╚═╝ ██║██║██║  ██║██║  ██║╚██████╔╝██║  ██║
  ╚═════╝  ╚═════╝  ╚═════╝╚═╝     ╚═╝╚═╝╚═╝  ╚═╝╚═╝  ╚═╝ ╚═════╝ ╚═╝  ╚═╝
            resumable mirror for gated document collections
`

// Text colours. lipgloss drops them when the output is not a terminal or
// NO_COLOR is set, so piped output stays plain.
var (
	Cyan    = paint(lipgloss.NewStyle().Foreground(lipgloss.Color("6")))
	Yellow  = paint(lipgloss.NewStyle().Foreground(lipgloss.Color("3")))
	Red     = paint(lipgloss.NewStyle().Foreground(lipgloss.Color("1")))
	Green   = paint(lipgloss.NewStyle().Foreground(lipgloss.Color("2")))
	Magenta = paint(lipgloss.NewStyle().Foreground(lipgloss.Color("5")).Bold(true))
	Dim     = paint(lipgloss.NewStyle().Faint(true))
)

func paint(style lipgloss.Style) func(string) string {
	return func(text string) string {
		return style.Render(text)
	}
}

// Terminal prints status lines. Errors and warnings go to errOut so they
// survive redirecting the report.
type Terminal struct {
	out    io.Writer
	errOut io.Writer
}

// NewTerminal creates a terminal printer over the given writers
func NewTerminal(out, errOut io.Writer) *Terminal {
	return &Terminal{out: out, errOut: errOut}
}

var std = NewTerminal(os.Stdout, os.Stderr)

// withDetail appends the first of args to msg as "msg: detail"
func withDetail(msg string, args []interface{}) string {
	if len(args) == 0 || args[0] == nil {
		return msg
	}
	return fmt.Sprintf("%s: %v", msg, args[0])
}

func (t *Terminal) Logo() {
	fmt.Fprint(t.out, Cyan(ASCIILogo))
}

func (t *Terminal) Error(msg string, args ...interface{}) {
	fmt.Fprintln(t.errOut, Red(withDetail(msg, args)))
}

func (t *Terminal) Warning(msg string, args ...interface{}) {
	fmt.Fprintln(t.errOut, Yellow(withDetail(msg, args)))
}

func (t *Terminal) Success(msg string) {
	fmt.Fprintln(t.out, Green(msg))
}

// Info prints a "label: value" line
func (t *Terminal) Info(label, value string) {
	fmt.Fprintf(t.out, "%s: %s\n", Cyan(label), Yellow(value))
}

func (t *Terminal) Highlight(msg string) {
	fmt.Fprintln(t.out, Magenta(msg))
}

// PrintLogo prints the logo to stdout
func PrintLogo() { std.Logo() }

// PrintError prints msg, and the first of args as its detail, to stderr
func PrintError(msg string, args ...interface{}) { std.Error(msg, args...) }

// PrintWarning is PrintError in yellow
func PrintWarning(msg string, args ...interface{}) { std.Warning(msg, args...) }

func PrintSuccess(msg string) { std.Success(msg) }

func PrintInfo(label, value string) { std.Info(label, value) }

func PrintHighlight(msg string) { std.Highlight(msg) }

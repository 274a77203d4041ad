package ui

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

// ASCII logo for the application
const ASCIILogo = `
    ╔═══════════════════════════════════════════════════════════╗
    ║ ███████╗██████╗      ██████╗██╗     ███████╗ █████╗ ███╗  ║
    ║ ██╔════╝██╔══██╗    ██╔════╝██║     ██╔════╝██╔══██╗████╗ ║
    ║ █████╗  ██████╔╝    ██║     ██║     █████╗  ███████║██╔██╗║
    ║ ██╔══╝  ██╔══██╗    ██║     ██║     ██╔══╝  ██╔══██║██║╚██║
    ║ ██║     ██████╔╝    ╚██████╗███████╗███████╗██║  ██║██║ ╚█║
    ║ ╚═╝     ╚═════╝      ╚═════╝╚══════╝╚══════╝╚═╝  ╚═╝╚═╝  ╚║
    ║          ACTIVITY LOG CLEANUP - MBASIC DELETION RUNNER     ║
    ╚═══════════════════════════════════════════════════════════╝
`

// Color functions for terminal output
var (
	Cyan    = color.New(color.FgCyan).SprintFunc()
	Yellow  = color.New(color.FgYellow).SprintFunc()
	Red     = color.New(color.FgRed).SprintFunc()
	Green   = color.New(color.FgGreen).SprintFunc()
	Magenta = color.New(color.FgMagenta).SprintFunc()
	Dim     = color.New(color.Faint).SprintFunc()
	Bold    = color.New(color.Bold).SprintFunc()
)

var out io.Writer = color.Output

// SetColorEnabled toggles ANSI colour globally; --no-color and non-TTY
// output turn it off.
func SetColorEnabled(enabled bool) {
	color.NoColor = !enabled
}

// SetOutput redirects everything the Print helpers write
func SetOutput(w io.Writer) {
	if w == nil {
		w = color.Output
	}
	out = w
}

// PrintLogo prints the ASCII logo with color
func PrintLogo() {
	fmt.Fprint(out, Cyan(ASCIILogo))
}

// PrintError prints an error message in red
func PrintError(msg string, args ...interface{}) {
	if len(args) > 0 {
		fmt.Fprintln(out, Red(msg+": "+fmt.Sprintf("%v", args[0])))
	} else {
		fmt.Fprintln(out, Red(msg))
	}
}

// PrintSuccess prints a success message in green
func PrintSuccess(msg string) {
	fmt.Fprintln(out, Green(msg))
}

// PrintInfo prints a labelled value
func PrintInfo(label string, value string) {
	fmt.Fprintf(out, "%s: %s\n", Cyan(label), Yellow(value))
}

// PrintWarning prints a warning message in yellow
func PrintWarning(msg string, args ...interface{}) {
	if len(args) > 0 {
		fmt.Fprintln(out, Yellow(msg+": "+fmt.Sprintf("%v", args[0])))
	} else {
		fmt.Fprintln(out, Yellow(msg))
	}
}

// PrintHighlight prints a highlighted message in magenta
func PrintHighlight(msg string) {
	fmt.Fprintln(out, Magenta(msg))
}

// PrintBlock writes a pre-rendered multi-line block such as the run summary
func PrintBlock(text string) {
	fmt.Fprint(out, text)
	if len(text) > 0 && text[len(text)-1] != '\n' {
		fmt.Fprintln(out)
	}
}

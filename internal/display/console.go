package display

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

var (
	bannerColor  = color.New(color.FgMagenta, color.Bold)
	phaseColor   = color.New(color.FgMagenta, color.Bold)
	successColor = color.New(color.FgGreen)
	failureColor = color.New(color.FgRed)
	hintColor    = color.New(color.Faint)
	infoColor    = color.New(color.FgCyan)
)

// Banner prints a boxed command title.
func Banner(w io.Writer, title string) {
	const width = 40
	pad := width - len([]rune(title)) - 3
	if pad < 1 {
		pad = 1
	}
	bannerColor.Fprintf(w, "\n╔%s╗\n", strings.Repeat("═", width))
	bannerColor.Fprintf(w, "║   %s%s║\n", title, strings.Repeat(" ", pad))
	bannerColor.Fprintf(w, "╚%s╝\n\n", strings.Repeat("═", width))
}

// Phase prints a phase header line.
func Phase(w io.Writer, format string, args ...interface{}) {
	phaseColor.Fprintf(w, "%s\n\n", fmt.Sprintf(format, args...))
}

// Info prints a cyan status line.
func Info(w io.Writer, format string, args ...interface{}) {
	infoColor.Fprintln(w, fmt.Sprintf(format, args...))
}

// Success prints a green check line.
func Success(w io.Writer, format string, args ...interface{}) {
	successColor.Fprintln(w, "✓ "+fmt.Sprintf(format, args...))
}

// Failure prints a red cross line.
func Failure(w io.Writer, format string, args ...interface{}) {
	failureColor.Fprintln(w, "✗ "+fmt.Sprintf(format, args...))
}

// Hint prints a dimmed guidance line.
func Hint(w io.Writer, format string, args ...interface{}) {
	hintColor.Fprintln(w, fmt.Sprintf(format, args...))
}

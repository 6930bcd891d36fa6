// Package display provides terminal output for monorun: the progress reporter
// that brackets every external process, banners and phase headers, and
// warning blocks.
//
// # Progress Reporter
//
// Every process execution is wrapped in a Scope:
//
//	reporter := display.NewReporter(os.Stdout)
//	scope := reporter.Begin("Checking packages", true)
//	res, err := runner.Execute(ctx, cmd, true)
//	scope.Finish(res, err)
//
// Captured scopes share a single spinner line (animated only on a TTY) and
// print their output beneath a failure glyph when the process fails. Streamed
// scopes print a start line, let the child write to the terminal, then print a
// completion line.
//
// # Lines and Banners
//
// Banner, Phase, Info, Success, Failure and Hint use fatih/color, which
// disables color automatically when stdout is not a terminal or NO_COLOR is
// set.
//
// All functions accept io.Writer for testability.
package display

package newman

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/harrison/monorun/internal/display"
	"github.com/harrison/monorun/internal/process"
)

// SuiteFailedError reports a newman run that exited non-zero.
type SuiteFailedError struct {
	Suite    string
	ExitCode int
}

func (e *SuiteFailedError) Error() string {
	return fmt.Sprintf("newman tests failed for %s (exit %d)", e.Suite, e.ExitCode)
}

// Warner receives non-fatal problems.
type Warner interface {
	LogWarn(message string)
}

// Workflow injects the token, runs a suite and summarizes its report.
type Workflow struct {
	Runner process.Runner
	Out    io.Writer
	Warn   Warner // Optional
	Strict bool   // Flag summaries built from incomplete records
}

// Run executes one suite. The summary is attempted whether or not newman
// passed and never changes the verdict, which comes from newman's exit code.
// A collection that cannot be parsed aborts before newman is started.
func (w *Workflow) Run(ctx context.Context, s Suite, token string) error {
	display.Info(w.Out, "\n📦 Test collection: %s", s.Name)
	display.Hint(w.Out, "   Path: %s", s.CollectionPath)

	display.Info(w.Out, "\n🔑 Injecting auth token into collection...")
	if err := InjectFile(s.CollectionPath, AuthTokenKey, token); err != nil {
		display.Failure(w.Out, "Failed to inject auth token")
		return fmt.Errorf("inject auth token: %w", err)
	}
	display.Success(w.Out, "Auth token injected successfully")

	display.Info(w.Out, "\n🧪 Running Newman test collection for: %s", s.Name)
	display.Hint(w.Out, "   📁 Report directory: %s", s.ReportDir)
	display.Hint(w.Out, "   📊 JSON report: %s", s.JSONReport())
	display.Hint(w.Out, "   📊 JUnit report: %s", s.JUnitReport())
	display.Info(w.Out, "\n⚡ Executing tests...\n")

	res, runErr := RunSuite(ctx, w.Runner, s)
	switch {
	case runErr != nil:
		display.Failure(w.Out, "Newman could not be run for %s: %v", s.Name, runErr)
	case res.Success():
		display.Success(w.Out, "Newman tests passed for %s", s.Name)
	default:
		display.Failure(w.Out, "Newman tests failed for %s", s.Name)
	}

	w.summarize(s)

	if runErr != nil {
		return runErr
	}
	if !res.Success() {
		return &SuiteFailedError{Suite: s.Name, ExitCode: res.ExitCode}
	}
	return nil
}

func (w *Workflow) summarize(s Suite) {
	display.Info(w.Out, "\n📝 Generating assertion summary...")

	summary, err := Summarize(s.JSONReport())
	if err != nil {
		if errors.Is(err, ErrMissingReportArtifact) {
			w.warn(fmt.Sprintf("JSON report not found, cannot create summary: %s", s.JSONReport()))
		} else {
			w.warn(fmt.Sprintf("cannot summarize report: %v", err))
		}
		return
	}

	if n := len(summary.Failures); n == 0 {
		display.Success(w.Out, "No failed assertions for %s", s.Name)
	} else {
		display.Failure(w.Out, "%d failed assertion(s) for %s", n, s.Name)
	}
	if w.Strict {
		if n := summary.Degraded(); n > 0 {
			w.warn(fmt.Sprintf("%d failure record(s) in %s were incomplete", n, s.JSONReport()))
		}
	}

	if err := WriteSummary(s, summary, w.Strict); err != nil {
		w.warn(err.Error())
		return
	}
	display.Hint(w.Out, "   📄 Summary written to: %s", s.SummaryMarkdown())
}

func (w *Workflow) warn(msg string) {
	display.Warning{Title: msg}.Display(w.Out)
	if w.Warn != nil {
		w.Warn.LogWarn(msg)
	}
}

// RunAll runs suites in order and stops at the first one that fails.
func (w *Workflow) RunAll(ctx context.Context, suites []Suite, token string) error {
	for i, s := range suites {
		if i > 0 {
			display.Hint(w.Out, "\n─────────────────────────────────────────────────\n")
		}
		display.Banner(w.Out, "E2E Testing: "+s.Name)
		if err := w.Run(ctx, s, token); err != nil {
			return err
		}
		display.Success(w.Out, "Completed Newman tests for: %s", s.Name)
	}
	return nil
}

package newman

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/tidwall/gjson"
)

// Placeholders used when a failure record lacks a field.
const (
	UnknownAssertion = "Unknown"
	UnknownError     = "Unknown error"
	UnknownSource    = "Unknown"
)

// ErrMissingReportArtifact is returned when the JSON report was not written.
// Callers treat it as a warning; the runner's exit code stays authoritative.
var ErrMissingReportArtifact = errors.New("newman JSON report not found")

// Failure is one failed assertion from the report.
type Failure struct {
	Assertion string
	Error     string
	Source    string
	Degraded  bool // At least one field fell back to a placeholder
}

// Summary lists the failed assertions of one run in report order.
type Summary struct {
	Failures []Failure
}

// Degraded returns the number of records that needed a placeholder.
func (s *Summary) Degraded() int {
	n := 0
	for _, f := range s.Failures {
		if f.Degraded {
			n++
		}
	}
	return n
}

// Summarize reads run.failures from the JSON report at reportPath. A report
// without the array has zero failures. A missing file yields an empty
// summary and an error matching ErrMissingReportArtifact.
func Summarize(reportPath string) (*Summary, error) {
	data, err := os.ReadFile(reportPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &Summary{}, fmt.Errorf("%w: %s", ErrMissingReportArtifact, reportPath)
		}
		return &Summary{}, fmt.Errorf("read report %s: %w", reportPath, err)
	}
	if !gjson.ValidBytes(data) {
		return &Summary{}, fmt.Errorf("read report %s: not valid JSON", reportPath)
	}
	return summarize(gjson.ParseBytes(data)), nil
}

func summarize(report gjson.Result) *Summary {
	s := &Summary{}
	failures := report.Get("run.failures")
	if !failures.IsArray() {
		return s
	}
	failures.ForEach(func(_, rec gjson.Result) bool {
		s.Failures = append(s.Failures, parseFailure(rec))
		return true
	})
	return s
}

func parseFailure(rec gjson.Result) Failure {
	var f Failure

	assertion, ok := firstString(rec, "assertion", "error.test")
	if !ok {
		assertion = UnknownAssertion
		f.Degraded = true
	}
	f.Assertion = assertion

	msg, ok := firstString(rec, "error.message", "error")
	if !ok {
		msg = UnknownError
		f.Degraded = true
	}
	f.Error = msg

	source, ok := firstString(rec, "source.name", "parent.name")
	if !ok {
		source = UnknownSource
		f.Degraded = true
	}
	f.Source = source

	return f
}

// firstString returns the first path that holds a JSON string.
func firstString(rec gjson.Result, paths ...string) (string, bool) {
	for _, p := range paths {
		if v := rec.Get(p); v.Type == gjson.String {
			return v.Str, true
		}
	}
	return "", false
}

// Markdown renders the summary for target. The layout is stable for
// identical input.
func (s *Summary) Markdown(target string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "### Failed Assertions (%s)\n", target)
	if len(s.Failures) == 0 {
		b.WriteString("No failed assertions.\n")
		return b.String()
	}
	for i, f := range s.Failures {
		fmt.Fprintf(&b, "%d. AssertionError  %s\n   %s\n   in \"%s\"\n\n", i+1, f.Assertion, f.Error, f.Source)
	}
	return b.String()
}

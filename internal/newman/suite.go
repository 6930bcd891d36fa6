package newman

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/harrison/monorun/internal/process"
	"github.com/harrison/monorun/internal/target"
)

// SuiteName identifies one API test collection.
type SuiteName int

const (
	// Frontend is the website's collection.
	Frontend SuiteName = iota
	// Backend is the API's collection.
	Backend
)

var suiteNames = map[SuiteName]string{
	Frontend: "frontend",
	Backend:  "backend",
}

var suiteOrder = []SuiteName{Frontend, Backend}

func (n SuiteName) String() string {
	if s, ok := suiteNames[n]; ok {
		return s
	}
	return fmt.Sprintf("suite(%d)", int(n))
}

// collectionDir returns the directory holding a suite's collection.
func collectionDir(n SuiteName) (string, bool) {
	switch n {
	case Frontend:
		return filepath.Join("sites", "arolariu.ro"), true
	case Backend:
		return filepath.Join("sites", "api.arolariu.ro"), true
	default:
		return "", false
	}
}

// ValidSuites lists the accepted suite arguments.
func ValidSuites() []string {
	return []string{target.AllSentinel, Frontend.String(), Backend.String()}
}

// ParseSuites turns a CLI argument into suite names in run order. An empty
// argument selects every suite. Input is trimmed and case-folded.
func ParseSuites(raw string) ([]SuiteName, error) {
	name := strings.ToLower(strings.TrimSpace(raw))
	if name == "" || name == target.AllSentinel {
		return append([]SuiteName(nil), suiteOrder...), nil
	}
	for _, n := range suiteOrder {
		if n.String() == name {
			return []SuiteName{n}, nil
		}
	}
	return nil, &target.InvalidTargetError{Input: raw, Valid: ValidSuites()}
}

// Suite is one collection run with its artifact locations.
type Suite struct {
	Name           string
	CollectionPath string
	ReportDir      string
}

// NewSuite resolves the collection for n under root.
func NewSuite(root string, n SuiteName, reportDir string) (Suite, error) {
	dir, ok := collectionDir(n)
	if !ok {
		return Suite{}, fmt.Errorf("no collection mapping for suite %s", n)
	}
	return Suite{
		Name:           n.String(),
		CollectionPath: filepath.Join(root, dir, "postman-collection.json"),
		ReportDir:      reportDir,
	}, nil
}

// JSONReport is the path of the JSON reporter export.
func (s Suite) JSONReport() string {
	return filepath.Join(s.ReportDir, fmt.Sprintf("newman-%s.json", s.Name))
}

// JUnitReport is the path of the JUnit reporter export.
func (s Suite) JUnitReport() string {
	return filepath.Join(s.ReportDir, fmt.Sprintf("newman-%s.xml", s.Name))
}

// SummaryMarkdown is the path of the failed-assertion summary.
func (s Suite) SummaryMarkdown() string {
	return filepath.Join(s.ReportDir, fmt.Sprintf("newman-%s-summary.md", s.Name))
}

// SummaryHTML is the path of the rendered summary.
func (s Suite) SummaryHTML() string {
	return filepath.Join(s.ReportDir, fmt.Sprintf("newman-%s-summary.html", s.Name))
}

// Command builds the newman invocation for the suite.
func (s Suite) Command() process.Command {
	return process.Command{
		Program: "npx",
		Args: []string{
			"newman", "run", s.CollectionPath,
			"--reporters", "cli,json,junit",
			"--reporter-json-export", s.JSONReport(),
			"--reporter-junit-export", s.JUnitReport(),
		},
		Label: "Running newman for " + s.Name,
	}
}

// RunSuite ensures the report directory exists and runs newman with its
// output streamed. The runner's exit code is the suite verdict.
func RunSuite(ctx context.Context, runner process.Runner, s Suite) (process.Result, error) {
	if err := os.MkdirAll(s.ReportDir, 0755); err != nil {
		return process.Result{}, fmt.Errorf("create report directory: %w", err)
	}
	return runner.Execute(ctx, s.Command(), false)
}

package newman

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/harrison/monorun/internal/process"
	"github.com/harrison/monorun/internal/target"
)

func TestParseSuites(t *testing.T) {
	all, err := ParseSuites("")
	require.NoError(t, err)
	assert.Equal(t, []SuiteName{Frontend, Backend}, all)

	all, err = ParseSuites("all")
	require.NoError(t, err)
	assert.Equal(t, []SuiteName{Frontend, Backend}, all)

	one, err := ParseSuites("backend")
	require.NoError(t, err)
	assert.Equal(t, []SuiteName{Backend}, one)

	one, err = ParseSuites(" Frontend ")
	require.NoError(t, err)
	assert.Equal(t, []SuiteName{Frontend}, one)

	all, err = ParseSuites("ALL")
	require.NoError(t, err)
	assert.Equal(t, []SuiteName{Frontend, Backend}, all)

	_, err = ParseSuites("website")
	var ite *target.InvalidTargetError
	require.ErrorAs(t, err, &ite)
	assert.Equal(t, []string{"all", "frontend", "backend"}, ite.Valid)
}

func TestSuitePaths(t *testing.T) {
	s, err := NewSuite("/repo", Backend, "e2e-logs")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join("/repo", "sites", "api.arolariu.ro", "postman-collection.json"), s.CollectionPath)
	assert.Equal(t, filepath.Join("e2e-logs", "newman-backend.json"), s.JSONReport())
	assert.Equal(t, filepath.Join("e2e-logs", "newman-backend.xml"), s.JUnitReport())
	assert.Equal(t, filepath.Join("e2e-logs", "newman-backend-summary.md"), s.SummaryMarkdown())
	assert.Equal(t, filepath.Join("e2e-logs", "newman-backend-summary.html"), s.SummaryHTML())

	front, err := NewSuite("/repo", Frontend, "out")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/repo", "sites", "arolariu.ro", "postman-collection.json"), front.CollectionPath)
}

func TestSuiteCommand(t *testing.T) {
	s := Suite{Name: "frontend", CollectionPath: "c.json", ReportDir: "r"}
	cmd := s.Command()

	assert.Equal(t, "npx", cmd.Program)
	assert.Equal(t, []string{
		"newman", "run", "c.json",
		"--reporters", "cli,json,junit",
		"--reporter-json-export", filepath.Join("r", "newman-frontend.json"),
		"--reporter-junit-export", filepath.Join("r", "newman-frontend.xml"),
	}, cmd.Args)
}

// newmanStub writes report to the JSON export path and exits with exit.
type newmanStub struct {
	report string
	exit   int
	err    error
	calls  []process.Command
}

func (n *newmanStub) Execute(ctx context.Context, cmd process.Command, capture bool) (process.Result, error) {
	n.calls = append(n.calls, cmd)
	if n.err != nil {
		return process.Result{ExitCode: 1}, n.err
	}
	if n.report != "" {
		for i, a := range cmd.Args {
			if a == "--reporter-json-export" {
				if err := os.WriteFile(cmd.Args[i+1], []byte(n.report), 0644); err != nil {
					return process.Result{}, err
				}
			}
		}
	}
	return process.Result{ExitCode: n.exit}, nil
}

type warnSink struct{ msgs []string }

func (w *warnSink) LogWarn(message string) { w.msgs = append(w.msgs, message) }

func newSuite(t *testing.T, name SuiteName) Suite {
	t.Helper()
	root := t.TempDir()
	s, err := NewSuite(root, name, filepath.Join(root, "e2e-logs"))
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(s.CollectionPath), 0755))
	require.NoError(t, os.WriteFile(s.CollectionPath, []byte(`{"info":{"name":"e2e"},"item":[]}`), 0644))
	return s
}

func TestWorkflowPassingSuite(t *testing.T) {
	s := newSuite(t, Frontend)
	stub := &newmanStub{report: `{"run":{"failures":[]}}`}
	var out bytes.Buffer
	w := &Workflow{Runner: stub, Out: &out}

	require.NoError(t, w.Run(context.Background(), s, "tok"))

	collection, err := os.ReadFile(s.CollectionPath)
	require.NoError(t, err)
	assert.Equal(t, "tok", gjson.GetBytes(collection, `variable.#(key=="authToken").value`).String())

	md, err := os.ReadFile(s.SummaryMarkdown())
	require.NoError(t, err)
	assert.Equal(t, "### Failed Assertions (frontend)\nNo failed assertions.\n", string(md))

	html, err := os.ReadFile(s.SummaryHTML())
	require.NoError(t, err)
	assert.Contains(t, string(html), "<h3>Failed Assertions (frontend)</h3>")

	require.Len(t, stub.calls, 1)
}

func TestWorkflowFailingSuiteStillSummarizes(t *testing.T) {
	s := newSuite(t, Backend)
	stub := &newmanStub{
		exit:   1,
		report: `{"run":{"failures":[{"assertion":"Status code is 200","error":{"message":"expected 500"},"source":{"name":"GET /health"}}]}}`,
	}
	w := &Workflow{Runner: stub, Out: &bytes.Buffer{}}

	err := w.Run(context.Background(), s, "tok")

	var sfe *SuiteFailedError
	require.ErrorAs(t, err, &sfe)
	assert.Equal(t, 1, sfe.ExitCode)

	md, readErr := os.ReadFile(s.SummaryMarkdown())
	require.NoError(t, readErr)
	assert.Contains(t, string(md), "1. AssertionError  Status code is 200\n   expected 500\n   in \"GET /health\"\n")
}

func TestWorkflowMissingReportKeepsRunnerVerdict(t *testing.T) {
	tests := []struct {
		name    string
		exit    int
		wantErr bool
	}{
		{name: "runner passed", exit: 0, wantErr: false},
		{name: "runner failed", exit: 2, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSuite(t, Frontend)
			warns := &warnSink{}
			w := &Workflow{Runner: &newmanStub{exit: tt.exit}, Out: &bytes.Buffer{}, Warn: warns}

			err := w.Run(context.Background(), s, "tok")
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			require.Len(t, warns.msgs, 1)
			assert.Contains(t, warns.msgs[0], "JSON report not found")
			assert.NoFileExists(t, s.SummaryMarkdown())
		})
	}
}

func TestWorkflowMalformedCollectionAbortsBeforeRun(t *testing.T) {
	s := newSuite(t, Frontend)
	require.NoError(t, os.WriteFile(s.CollectionPath, []byte(`{"info":`), 0644))
	stub := &newmanStub{}
	w := &Workflow{Runner: stub, Out: &bytes.Buffer{}}

	err := w.Run(context.Background(), s, "tok")

	var cpe *CollectionParseError
	require.ErrorAs(t, err, &cpe)
	assert.Empty(t, stub.calls)
}

func TestWorkflowSpawnFailure(t *testing.T) {
	s := newSuite(t, Frontend)
	stub := &newmanStub{err: &process.SpawnError{Program: "npx", Err: errors.New("not found")}}
	w := &Workflow{Runner: stub, Out: &bytes.Buffer{}}

	err := w.Run(context.Background(), s, "tok")
	assert.ErrorIs(t, err, process.ErrSpawn)
}

func TestWorkflowStrictNotesDegradedRecords(t *testing.T) {
	s := newSuite(t, Backend)
	warns := &warnSink{}
	w := &Workflow{
		Runner: &newmanStub{exit: 1, report: `{"run":{"failures":[{"error":{}}]}}`},
		Out:    &bytes.Buffer{},
		Warn:   warns,
		Strict: true,
	}

	_ = w.Run(context.Background(), s, "tok")

	md, err := os.ReadFile(s.SummaryMarkdown())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(md), "### Failed Assertions (backend)\n1. AssertionError  Unknown\n   Unknown error\n   in \"Unknown\"\n\n"))
	assert.Contains(t, string(md), "1 of 1 failure records were incomplete")
	require.Len(t, warns.msgs, 1)
	assert.Contains(t, warns.msgs[0], "incomplete")
}

func TestRunAllStopsAtFirstFailure(t *testing.T) {
	root := t.TempDir()
	var suites []Suite
	for _, n := range []SuiteName{Frontend, Backend} {
		s, err := NewSuite(root, n, filepath.Join(root, "e2e-logs"))
		require.NoError(t, err)
		require.NoError(t, os.MkdirAll(filepath.Dir(s.CollectionPath), 0755))
		require.NoError(t, os.WriteFile(s.CollectionPath, []byte(`{}`), 0644))
		suites = append(suites, s)
	}

	stub := &newmanStub{exit: 1}
	w := &Workflow{Runner: stub, Out: &bytes.Buffer{}}

	err := w.RunAll(context.Background(), suites, "tok")
	var sfe *SuiteFailedError
	require.ErrorAs(t, err, &sfe)
	assert.Equal(t, "frontend", sfe.Suite)
	assert.Len(t, stub.calls, 1)
}

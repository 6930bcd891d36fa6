package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/monorun/internal/display"
	"github.com/harrison/monorun/internal/history"
	"github.com/harrison/monorun/internal/process"
	"github.com/harrison/monorun/internal/target"
)

type behavior struct {
	exit  int
	err   error
	panic bool
	delay time.Duration
}

type call struct {
	label   string
	capture bool
}

// fakeRunner answers by command label and records every invocation.
type fakeRunner struct {
	mu        sync.Mutex
	behaviors map[string]behavior
	calls     []call
	started   chan string
}

func newFakeRunner(b map[string]behavior) *fakeRunner {
	return &fakeRunner{behaviors: b, started: make(chan string, 64)}
}

func (f *fakeRunner) Execute(ctx context.Context, cmd process.Command, capture bool) (process.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, call{label: cmd.Label, capture: capture})
	b := f.behaviors[cmd.Label]
	f.mu.Unlock()

	f.started <- cmd.Label
	if b.delay > 0 {
		time.Sleep(b.delay)
	}
	if b.panic {
		panic("runner exploded")
	}
	if b.err != nil {
		return process.Result{ExitCode: 1}, b.err
	}
	out := ""
	if capture {
		out = fmt.Sprintf("%s output\n", cmd.Label)
	}
	return process.Result{ExitCode: b.exit, Output: out}, nil
}

func (f *fakeRunner) labels() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.label
	}
	sort.Strings(out)
	return out
}

func (f *fakeRunner) count(label string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.label == label {
			n++
		}
	}
	return n
}

func tgt(n target.Name) target.Target {
	return target.Target{
		Name:  n,
		Check: process.Command{Program: "tool", Args: []string{"--check"}, Label: "check " + n.String()},
		Fix:   process.Command{Program: "tool", Args: []string{"--write"}, Label: "fix " + n.String()},
	}
}

type recordingLogger struct {
	mu      sync.Mutex
	starts  []string
	results []string
	warns   []string
}

func (l *recordingLogger) LogPhaseStart(phase string, targets int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.starts = append(l.starts, fmt.Sprintf("%s:%d", phase, targets))
}

func (l *recordingLogger) LogPhaseComplete(phase string, duration time.Duration, failed, total int) {}

func (l *recordingLogger) LogTargetResult(phase, target, status string, exitCode int, output string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.results = append(l.results, fmt.Sprintf("%s %s %s", phase, target, status))
}

func (l *recordingLogger) LogProgress(completed, total int) {}

func (l *recordingLogger) LogWarn(message string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, message)
}

func newTestOrchestrator(r process.Runner) (*Orchestrator, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return New("format", r, display.NewReporter(buf), nil), buf
}

func TestRunPhasedFailingCheckSucceedingFix(t *testing.T) {
	runner := newFakeRunner(map[string]behavior{
		"check website": {exit: 1},
	})
	o, _ := newTestOrchestrator(runner)

	outcome, err := o.RunPhased(context.Background(), []target.Target{tgt(target.Website)})
	require.NoError(t, err)

	assert.True(t, outcome.Success())
	assert.False(t, outcome.AlreadyClean)
	assert.Equal(t, []string{"website"}, outcome.Remediated)
	assert.Equal(t, 1, runner.count("fix website"))
	assert.Equal(t, Failed, outcome.Check["website"])
	assert.Equal(t, Passed, outcome.Fix["website"])
}

func TestRunPhasedAllCleanShortCircuits(t *testing.T) {
	runner := newFakeRunner(nil)
	o, _ := newTestOrchestrator(runner)
	targets := []target.Target{tgt(target.Packages), tgt(target.Website), tgt(target.CV), tgt(target.API)}

	outcome, err := o.RunPhased(context.Background(), targets)
	require.NoError(t, err)

	assert.True(t, outcome.AlreadyClean)
	assert.Empty(t, outcome.Remediated)
	assert.Empty(t, outcome.Fix)
	assert.Equal(t, []string{"check api", "check cv", "check packages", "check website"}, runner.labels())
}

func TestRunPhasedScenarioOnlyFailedTargetRemediated(t *testing.T) {
	runner := newFakeRunner(map[string]behavior{
		"check website": {exit: 2},
	})
	o, _ := newTestOrchestrator(runner)

	outcome, err := o.RunPhased(context.Background(), []target.Target{tgt(target.Website), tgt(target.CV)})
	require.NoError(t, err)

	assert.Equal(t, Failed, outcome.Check["website"])
	assert.Equal(t, Passed, outcome.Check["cv"])
	assert.Equal(t, []string{"website"}, outcome.Remediated)
	assert.Equal(t, 1, runner.count("fix website"))
	assert.Equal(t, 0, runner.count("fix cv"))
	assert.True(t, outcome.Success())
}

func TestRunPhasedCapturesEveryPhaseOfABatch(t *testing.T) {
	runner := newFakeRunner(map[string]behavior{"check cv": {exit: 1}})
	o, _ := newTestOrchestrator(runner)

	_, err := o.RunPhased(context.Background(), []target.Target{tgt(target.Website), tgt(target.CV)})
	require.NoError(t, err)

	runner.mu.Lock()
	defer runner.mu.Unlock()
	require.Len(t, runner.calls, 3)
	for _, c := range runner.calls {
		assert.True(t, c.capture, "%s should be captured", c.label)
	}
}

func TestRunPhasedLoneFixOfLargeBatchIsCaptured(t *testing.T) {
	runner := newFakeRunner(map[string]behavior{"check api": {exit: 1}})
	o, buf := newTestOrchestrator(runner)

	_, err := o.RunPhased(context.Background(),
		[]target.Target{tgt(target.Packages), tgt(target.Website), tgt(target.CV), tgt(target.API)})
	require.NoError(t, err)

	runner.mu.Lock()
	defer runner.mu.Unlock()
	for _, c := range runner.calls {
		if c.label == "fix api" {
			assert.True(t, c.capture)
		}
	}
	assert.NotContains(t, buf.String(), "▶ fix api")
}

func TestRunPhasedNotifiesPhases(t *testing.T) {
	runner := newFakeRunner(map[string]behavior{"check website": {exit: 1}})
	o, _ := newTestOrchestrator(runner)

	var phases []string
	o.OnPhase(func(phase string, targets int) {
		phases = append(phases, fmt.Sprintf("%s:%d", phase, targets))
	})

	_, err := o.RunPhased(context.Background(),
		[]target.Target{tgt(target.Packages), tgt(target.Website), tgt(target.CV)})
	require.NoError(t, err)
	assert.Equal(t, []string{"check:3", "fix:1"}, phases)
}

func TestRunPhasedSpawnFailureDoesNotCancelSiblings(t *testing.T) {
	spawnErr := &process.SpawnError{Program: "tool", Err: errors.New("not found")}
	runner := newFakeRunner(map[string]behavior{
		"check packages": {err: spawnErr},
		"fix packages":   {err: spawnErr},
		"check website":  {delay: 30 * time.Millisecond},
		"check cv":       {exit: 1, delay: 60 * time.Millisecond},
	})
	o, buf := newTestOrchestrator(runner)

	outcome, err := o.RunPhased(context.Background(),
		[]target.Target{tgt(target.Packages), tgt(target.Website), tgt(target.CV)})
	require.Error(t, err)

	assert.Equal(t, ExecutionError, outcome.Check["packages"])
	assert.Equal(t, Passed, outcome.Check["website"])
	assert.Equal(t, Failed, outcome.Check["cv"])
	assert.Equal(t, []string{"cv", "packages"}, outcome.Remediated)
	assert.Equal(t, Passed, outcome.Fix["cv"])
	assert.Equal(t, []string{"packages"}, outcome.Failed())

	var pe *PhaseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, PhaseFix, pe.Phase)
	assert.Equal(t, 1, pe.Failed)
	assert.Equal(t, 2, pe.Total)
	assert.ErrorIs(t, err, process.ErrSpawn)

	assert.Contains(t, buf.String(), "✓ check website")
}

func TestRunPhasedLaunchesAllBeforeWaiting(t *testing.T) {
	const n = 3
	release := make(chan struct{})
	runner := &blockingRunner{release: release, started: make(chan struct{}, n)}
	o, _ := newTestOrchestrator(runner)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = o.RunPhased(context.Background(), []target.Target{tgt(target.Packages), tgt(target.Website), tgt(target.CV)})
	}()

	for i := 0; i < n; i++ {
		select {
		case <-runner.started:
		case <-time.After(2 * time.Second):
			t.Fatalf("only %d of %d checks started while others were blocked", i, n)
		}
	}
	close(release)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("RunPhased did not return")
	}
}

type blockingRunner struct {
	release chan struct{}
	started chan struct{}
}

func (b *blockingRunner) Execute(ctx context.Context, cmd process.Command, capture bool) (process.Result, error) {
	b.started <- struct{}{}
	<-b.release
	return process.Result{}, nil
}

func TestRunPhasedPanicCountsAsFailedJoin(t *testing.T) {
	runner := newFakeRunner(map[string]behavior{
		"check api": {panic: true},
	})
	o, _ := newTestOrchestrator(runner)

	outcome, err := o.RunPhased(context.Background(), []target.Target{tgt(target.API), tgt(target.CV)})
	require.NoError(t, err)

	assert.Equal(t, ExecutionError, outcome.Check["api"])
	assert.Equal(t, []string{"api"}, outcome.Remediated)
	assert.Equal(t, Passed, outcome.Fix["api"])
}

func TestRunPhasedFixFailureReported(t *testing.T) {
	runner := newFakeRunner(map[string]behavior{
		"check website": {exit: 1},
		"fix website":   {exit: 2},
		"check cv":      {exit: 1},
		"fix cv":        {exit: 3},
	})
	o, _ := newTestOrchestrator(runner)

	outcome, err := o.RunPhased(context.Background(), []target.Target{tgt(target.Website), tgt(target.CV)})

	var pe *PhaseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 2, pe.Failed)
	assert.Equal(t, []string{"cv", "website"}, pe.Targets)
	assert.Empty(t, pe.Errors)
	assert.Equal(t, "fix failed for 2/2 targets: cv, website", pe.Error())
	assert.False(t, outcome.Success())
}

func TestRunPhasedOrderIndependent(t *testing.T) {
	behaviors := map[string]behavior{
		"check packages": {exit: 1, delay: 40 * time.Millisecond},
		"check website":  {exit: 1},
		"check cv":       {exit: 1, delay: 20 * time.Millisecond},
	}

	o1, _ := newTestOrchestrator(newFakeRunner(behaviors))
	first, err := o1.RunPhased(context.Background(),
		[]target.Target{tgt(target.Packages), tgt(target.Website), tgt(target.CV)})
	require.NoError(t, err)

	o2, _ := newTestOrchestrator(newFakeRunner(behaviors))
	second, err := o2.RunPhased(context.Background(),
		[]target.Target{tgt(target.CV), tgt(target.Website), tgt(target.Packages)})
	require.NoError(t, err)

	assert.Equal(t, first.Check, second.Check)
	assert.Equal(t, first.Fix, second.Fix)
	assert.Equal(t, first.Remediated, second.Remediated)
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestRunSingleCleanSkipsFix(t *testing.T) {
	runner := newFakeRunner(nil)
	o, buf := newTestOrchestrator(runner)

	outcome, err := o.RunSingle(context.Background(), tgt(target.CV))
	require.NoError(t, err)

	assert.True(t, outcome.AlreadyClean)
	assert.Equal(t, []string{"check cv"}, runner.labels())
	assert.Equal(t, "▶ check cv\n✓ check cv completed\n", buf.String())
}

func TestRunSingleCheckErrorSkipsFix(t *testing.T) {
	spawnErr := &process.SpawnError{Program: "dotnet", Err: errors.New("not found")}
	runner := newFakeRunner(map[string]behavior{"check api": {err: spawnErr}})
	o, _ := newTestOrchestrator(runner)

	outcome, err := o.RunSingle(context.Background(), tgt(target.API))

	var pe *PhaseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, PhaseCheck, pe.Phase)
	assert.Equal(t, []string{"api"}, pe.Targets)
	assert.ErrorIs(t, err, process.ErrSpawn)
	assert.Equal(t, 0, runner.count("fix api"))
	assert.Equal(t, ExecutionError, outcome.Check["api"])
	assert.Empty(t, outcome.Remediated)
	assert.False(t, outcome.Success())
}

func TestRunSingleStreamsAndPropagatesFixFailure(t *testing.T) {
	runner := newFakeRunner(map[string]behavior{
		"check api": {exit: 1},
		"fix api":   {exit: 4},
	})
	o, _ := newTestOrchestrator(runner)

	outcome, err := o.RunSingle(context.Background(), tgt(target.API))

	var pe *PhaseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, []string{"api"}, pe.Targets)
	assert.Equal(t, Failed, outcome.Fix["api"])

	runner.mu.Lock()
	defer runner.mu.Unlock()
	require.Len(t, runner.calls, 2)
	for _, c := range runner.calls {
		assert.False(t, c.capture)
	}
}

type staticResolver struct {
	targets []target.Target
	err     error
}

func (s staticResolver) Targets(sel target.Selection) ([]target.Target, error) {
	return s.targets, s.err
}

func TestRunDispatch(t *testing.T) {
	t.Run("single target runs sequentially", func(t *testing.T) {
		runner := newFakeRunner(nil)
		o, buf := newTestOrchestrator(runner)

		_, err := o.Run(context.Background(), staticResolver{targets: []target.Target{tgt(target.CV)}},
			target.Selection{Name: target.CV})
		require.NoError(t, err)
		assert.Contains(t, buf.String(), "▶ check cv")
	})

	t.Run("all sentinel runs phased", func(t *testing.T) {
		runner := newFakeRunner(nil)
		o, buf := newTestOrchestrator(runner)

		outcome, err := o.Run(context.Background(),
			staticResolver{targets: []target.Target{tgt(target.CV), tgt(target.Website)}},
			target.Selection{All: true})
		require.NoError(t, err)
		assert.True(t, outcome.AlreadyClean)
		assert.NotContains(t, buf.String(), "▶")
	})

	t.Run("resolver error spawns nothing", func(t *testing.T) {
		runner := newFakeRunner(nil)
		o, _ := newTestOrchestrator(runner)

		unmapped := &target.UnmappedTargetError{Target: target.API, Category: target.Lint}
		_, err := o.Run(context.Background(), staticResolver{err: unmapped}, target.Selection{Name: target.API})
		assert.ErrorAs(t, err, &unmapped)
		assert.Empty(t, runner.labels())
	})
}

type fakeRecorder struct {
	mu    sync.Mutex
	steps []history.Step
	err   error
}

func (f *fakeRecorder) RecordStep(ctx context.Context, step history.Step) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.steps = append(f.steps, step)
	return f.err
}

func TestRecorderReceivesEveryStep(t *testing.T) {
	runner := newFakeRunner(map[string]behavior{"check website": {exit: 1}})
	o, _ := newTestOrchestrator(runner)
	rec := &fakeRecorder{}
	o.SetRecorder(rec)

	outcome, err := o.RunPhased(context.Background(), []target.Target{tgt(target.Website), tgt(target.CV)})
	require.NoError(t, err)

	require.Len(t, rec.steps, 3)
	for _, s := range rec.steps {
		assert.Equal(t, outcome.RunID, s.RunID)
		assert.Equal(t, "format", s.Command)
	}
}

func TestRecorderErrorIsLoggedNotFatal(t *testing.T) {
	runner := newFakeRunner(nil)
	log := &recordingLogger{}
	o := New("lint", runner, display.NewReporter(&bytes.Buffer{}), log)
	o.SetRecorder(&fakeRecorder{err: errors.New("disk full")})

	outcome, err := o.RunPhased(context.Background(), []target.Target{tgt(target.CV)})
	require.NoError(t, err)
	assert.True(t, outcome.Success())

	require.Len(t, log.warns, 1)
	assert.Contains(t, log.warns[0], "disk full")
	assert.Equal(t, []string{"check:1"}, log.starts)
	assert.Equal(t, []string{"check cv passed"}, log.results)
}

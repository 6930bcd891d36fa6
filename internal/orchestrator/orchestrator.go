// Package orchestrator runs check commands across targets and remediates the
// ones that fail.
//
// A phased run launches every target's check concurrently, waits for all of
// them, then launches the fix command for each failed target and waits again.
// Nothing is cancelled when a sibling fails. A single-target run does the same
// sequentially with streamed output.
package orchestrator

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/harrison/monorun/internal/display"
	"github.com/harrison/monorun/internal/history"
	"github.com/harrison/monorun/internal/process"
	"github.com/harrison/monorun/internal/target"
)

// Phase names used in logs, errors and history.
const (
	PhaseCheck = "check"
	PhaseFix   = "fix"
)

// Logger defines the interface for logging phase progress and results.
type Logger interface {
	LogPhaseStart(phase string, targets int)
	LogPhaseComplete(phase string, duration time.Duration, failed, total int)
	LogTargetResult(phase, target, status string, exitCode int, output string)
	LogProgress(completed, total int)
	LogWarn(message string)
}

// Recorder persists per-target results.
type Recorder interface {
	RecordStep(ctx context.Context, step history.Step) error
}

// Resolver expands a selection into targets.
type Resolver interface {
	Targets(sel target.Selection) ([]target.Target, error)
}

// Orchestrator drives check and fix phases over targets.
type Orchestrator struct {
	command  string
	runner   process.Runner
	reporter *display.Reporter
	logger   Logger
	recorder Recorder
	onPhase  func(phase string, targets int)
}

// New creates an Orchestrator. command names the run in history ("format",
// "lint"). logger may be nil.
func New(command string, runner process.Runner, reporter *display.Reporter, logger Logger) *Orchestrator {
	if runner == nil {
		panic("runner cannot be nil")
	}
	if reporter == nil {
		panic("reporter cannot be nil")
	}
	return &Orchestrator{
		command:  command,
		runner:   runner,
		reporter: reporter,
		logger:   logger,
	}
}

// SetRecorder attaches a history recorder. Recording failures are logged
// and never change a verdict.
func (o *Orchestrator) SetRecorder(r Recorder) {
	o.recorder = r
}

// OnPhase registers fn to be called before each phase of a phased run
// starts, with the number of targets in that phase.
func (o *Orchestrator) OnPhase(fn func(phase string, targets int)) {
	o.onPhase = fn
}

// Run resolves sel and dispatches to RunSingle or RunPhased.
func (o *Orchestrator) Run(ctx context.Context, resolver Resolver, sel target.Selection) (*Outcome, error) {
	targets, err := resolver.Targets(sel)
	if err != nil {
		return nil, err
	}
	if !sel.All && len(targets) == 1 {
		return o.RunSingle(ctx, targets[0])
	}
	return o.RunPhased(ctx, targets)
}

// taskResult is what each phase goroutine sends back.
type taskResult struct {
	name   string
	result process.Result
	err    error
	status Status
}

// RunPhased runs every check concurrently, then every fix for the targets
// whose check failed. Output is captured in both phases when more than one
// target runs, however many of them need fixing.
func (o *Orchestrator) RunPhased(ctx context.Context, targets []target.Target) (*Outcome, error) {
	outcome := newOutcome(uuid.New().String())
	capture := len(targets) > 1

	checks := o.runPhase(ctx, outcome.RunID, PhaseCheck, targets, capture, func(t target.Target) process.Command { return t.Check })

	var toFix []target.Target
	for _, t := range targets {
		st := checks[t.Name.String()].status
		outcome.Check[t.Name.String()] = st
		if st != Passed {
			toFix = append(toFix, t)
			outcome.Remediated = append(outcome.Remediated, t.Name.String())
		}
	}
	sort.Strings(outcome.Remediated)

	if len(toFix) == 0 {
		outcome.AlreadyClean = true
		return outcome, nil
	}

	fixes := o.runPhase(ctx, outcome.RunID, PhaseFix, toFix, capture, func(t target.Target) process.Command { return t.Fix })
	for name, tr := range fixes {
		outcome.Fix[name] = tr.status
	}

	return outcome, phaseError(PhaseFix, fixes)
}

// RunSingle checks one target with streamed output and fixes it only if the
// check failed. A check that could not be run is returned as a *PhaseError
// for the check phase and the fix is skipped. A failing fix is returned as a
// *PhaseError for the fix phase.
func (o *Orchestrator) RunSingle(ctx context.Context, t target.Target) (*Outcome, error) {
	outcome := newOutcome(uuid.New().String())
	name := t.Name.String()

	check := o.runOne(ctx, outcome.RunID, PhaseCheck, name, t.Check, false)
	outcome.Check[name] = check.status
	if check.status == Passed {
		outcome.AlreadyClean = true
		return outcome, nil
	}
	if check.status == ExecutionError {
		return outcome, phaseError(PhaseCheck, map[string]taskResult{name: check})
	}

	outcome.Remediated = []string{name}
	fix := o.runOne(ctx, outcome.RunID, PhaseFix, name, t.Fix, false)
	outcome.Fix[name] = fix.status

	return outcome, phaseError(PhaseFix, map[string]taskResult{name: fix})
}

// runPhase launches one goroutine per target before waiting on any of them
// and returns once every goroutine has reported.
func (o *Orchestrator) runPhase(ctx context.Context, runID, phase string, targets []target.Target, capture bool, pick func(target.Target) process.Command) map[string]taskResult {
	start := time.Now()
	total := len(targets)

	if o.onPhase != nil {
		o.onPhase(phase, total)
	}
	if o.logger != nil {
		o.logger.LogPhaseStart(phase, total)
	}

	resultsCh := make(chan taskResult, total)
	var wg sync.WaitGroup

	for _, t := range targets {
		wg.Add(1)
		go func(t target.Target) {
			defer wg.Done()
			resultsCh <- o.runOne(ctx, runID, phase, t.Name.String(), pick(t), capture)
		}(t)
	}

	go func() {
		wg.Wait()
		close(resultsCh)
	}()

	results := make(map[string]taskResult, total)
	failed := 0
	for tr := range resultsCh {
		results[tr.name] = tr
		if tr.status != Passed {
			failed++
		}
		if o.logger != nil {
			o.logger.LogProgress(len(results), total)
		}
	}

	if o.logger != nil {
		o.logger.LogPhaseComplete(phase, time.Since(start), failed, total)
	}
	return results
}

// runOne executes a single command with its own progress scope. A panic
// inside the runner is converted into an ExecutionError for that target.
func (o *Orchestrator) runOne(ctx context.Context, runID, phase, name string, cmd process.Command, capture bool) (tr taskResult) {
	tr.name = name
	scope := o.reporter.Begin(cmd.Label, capture)

	func() {
		defer func() {
			if r := recover(); r != nil {
				tr.result = process.Result{ExitCode: 1}
				tr.err = &PanicError{Value: r}
			}
		}()
		tr.result, tr.err = o.runner.Execute(ctx, cmd, capture)
	}()

	switch {
	case tr.err != nil:
		tr.status = ExecutionError
	case tr.result.Success():
		tr.status = Passed
	default:
		tr.status = Failed
	}

	scope.Finish(tr.result, tr.err)
	o.report(ctx, runID, phase, tr)
	return tr
}

func (o *Orchestrator) report(ctx context.Context, runID, phase string, tr taskResult) {
	if o.logger != nil {
		o.logger.LogTargetResult(phase, tr.name, tr.status.String(), tr.result.ExitCode, tr.result.Output)
	}
	if o.recorder == nil {
		return
	}
	err := o.recorder.RecordStep(ctx, history.Step{
		RunID:    runID,
		Command:  o.command,
		Target:   tr.name,
		Phase:    phase,
		Status:   tr.status.String(),
		ExitCode: tr.result.ExitCode,
		Duration: tr.result.Duration,
	})
	if err != nil && o.logger != nil {
		o.logger.LogWarn("failed to record history: " + err.Error())
	}
}

// phaseError folds a phase's results into a *PhaseError, or nil when every
// target passed.
func phaseError(phase string, results map[string]taskResult) error {
	pe := &PhaseError{Phase: phase, Total: len(results)}
	for name, tr := range results {
		if tr.status == Passed {
			continue
		}
		pe.Targets = append(pe.Targets, name)
		if tr.err != nil {
			pe.Errors = append(pe.Errors, &TargetError{Target: name, Phase: phase, Err: tr.err})
		}
	}
	if len(pe.Targets) == 0 {
		return nil
	}
	pe.Failed = len(pe.Targets)
	sort.Strings(pe.Targets)
	sort.Slice(pe.Errors, func(i, j int) bool { return pe.Errors[i].Target < pe.Errors[j].Target })
	return pe
}

package orchestrator

import (
	"fmt"
	"strings"
)

// TargetError records why one target could not produce an exit code.
type TargetError struct {
	Target string // Target name
	Phase  string // Phase the error happened in
	Err    error  // Underlying error
}

// Error implements the error interface for TargetError.
func (e *TargetError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Phase, e.Target, e.Err)
}

// Unwrap returns the underlying error for error wrapping support.
func (e *TargetError) Unwrap() error {
	return e.Err
}

// PanicError is reported for a target whose task panicked before joining.
type PanicError struct {
	Value interface{}
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("task panicked: %v", e.Value)
}

// PhaseError reports the targets that were still failing after a phase.
type PhaseError struct {
	Phase   string         // Phase that left failures
	Failed  int            // Number of failing targets
	Total   int            // Number of targets in the phase
	Targets []string       // Failing target names, sorted
	Errors  []*TargetError // Targets that failed without an exit code
}

// Error implements the error interface for PhaseError.
func (e *PhaseError) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s failed for %d/%d %s: %s",
		e.Phase, e.Failed, e.Total, pluralTargets(e.Total), strings.Join(e.Targets, ", ")))
	for _, te := range e.Errors {
		sb.WriteString(fmt.Sprintf("\n  - %s", te.Error()))
	}
	return sb.String()
}

// Unwrap exposes the per-target errors to errors.Is and errors.As.
func (e *PhaseError) Unwrap() []error {
	if len(e.Errors) == 0 {
		return nil
	}
	errs := make([]error, len(e.Errors))
	for i, te := range e.Errors {
		errs[i] = te
	}
	return errs
}

func pluralTargets(n int) string {
	if n == 1 {
		return "target"
	}
	return "targets"
}

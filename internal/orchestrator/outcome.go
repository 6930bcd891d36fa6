package orchestrator

import "sort"

// Status is the result of one target in one phase.
type Status int

const (
	// Passed means the command exited 0.
	Passed Status = iota
	// Failed means the command exited non-zero.
	Failed
	// ExecutionError means no exit code was produced: the process could not
	// be spawned, its streams failed, or the task panicked.
	ExecutionError
)

func (s Status) String() string {
	switch s {
	case Passed:
		return "passed"
	case Failed:
		return "failed"
	case ExecutionError:
		return "error"
	default:
		return "unknown"
	}
}

// Outcome aggregates a run. Maps are keyed by target name, so the result
// does not depend on the order in which tasks finished.
type Outcome struct {
	RunID        string
	Check        map[string]Status
	Fix          map[string]Status
	Remediated   []string // Targets whose check failed, sorted
	AlreadyClean bool     // Every check passed; no fix was run
}

func newOutcome(runID string) *Outcome {
	return &Outcome{
		RunID: runID,
		Check: make(map[string]Status),
		Fix:   make(map[string]Status),
	}
}

// Failed returns the sorted names of targets whose fix did not pass.
func (o *Outcome) Failed() []string {
	var failed []string
	for name, st := range o.Fix {
		if st != Passed {
			failed = append(failed, name)
		}
	}
	sort.Strings(failed)
	return failed
}

// Success reports whether the run left nothing failing. A check that could
// not run and was never followed by a fix counts as a failure.
func (o *Outcome) Success() bool {
	for name, st := range o.Check {
		if _, fixed := o.Fix[name]; st == ExecutionError && !fixed {
			return false
		}
	}
	return len(o.Failed()) == 0
}

// Package doctor validates the local toolchain before development starts.
//
// Each required tool is checked in registration order: present on PATH, then
// a major version at or above the requirement. Deficient checks get one
// remediation attempt. The pipeline never stops early; it reports a single
// deficiency flag after the last check.
package doctor

import (
	"context"
	"io"
)

// FindingKind classifies the outcome of one check.
type FindingKind int

const (
	// OK means the tool is present at a sufficient version.
	OK FindingKind = iota
	// MissingTool means the tool is not on PATH.
	MissingTool
	// VersionTooLow means the version is below the requirement or could not
	// be determined.
	VersionTooLow
)

func (k FindingKind) String() string {
	switch k {
	case OK:
		return "ok"
	case MissingTool:
		return "missing"
	case VersionTooLow:
		return "version too low"
	default:
		return "unknown"
	}
}

// Requirement is a minimum major version for one tool.
type Requirement struct {
	Tool        string   // Executable looked up on PATH
	Display     string   // Human name, e.g. ".NET"
	Major       int      // Minimum major version (inclusive)
	VersionArgs []string // Arguments that print the version
}

// Finding holds the outcome of a single check.
type Finding struct {
	// Name identifies which check produced this finding.
	Name string
	// Kind is the outcome: OK, MissingTool, or VersionTooLow.
	Kind FindingKind
	// Found is the version string reported by the tool, if any.
	Found string
	// Remediated is true when the remediation hook resolved the deficiency.
	Remediated bool
}

// Deficient reports whether the finding still needs attention.
func (f *Finding) Deficient() bool {
	return f.Kind != OK && !f.Remediated
}

// Check is a single environment check. Implementations are registered with
// a Pipeline and executed sequentially during Validate.
type Check interface {
	// Name returns the human-readable tool name.
	Name() string
	// Run executes the check and writes its status lines to w.
	Run(ctx context.Context, w io.Writer) *Finding
	// Remediate is called for every non-OK finding and reports whether the
	// deficiency was resolved.
	Remediate(ctx context.Context, w io.Writer, f *Finding) bool
}

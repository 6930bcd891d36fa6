package doctor

import (
	"context"
	"io"

	"github.com/harrison/monorun/internal/process"
)

// Guidance prints install instructions and never resolves the deficiency.
type Guidance struct {
	Hints []string
}

// Remediate prints the required version and the install hints.
func (g Guidance) Remediate(ctx context.Context, w io.Writer, req Requirement, f *Finding) bool {
	if f.Kind == MissingTool {
		warnColor.Fprintf(w, "  → Required: %s %d.x or higher\n", req.Display, req.Major)
	}
	stepColor.Fprintf(w, "\n📥 Installing %s %d...\n", req.Display, req.Major)
	for _, h := range g.Hints {
		warnColor.Fprintf(w, "  → %s\n", h)
	}
	return false
}

// SelfUpdate runs an update command when the tool is present but too old.
// A missing tool only gets the hint, since the updater needs the tool itself.
type SelfUpdate struct {
	Runner      process.Runner
	Command     process.Command
	MissingHint string
}

// Remediate streams the update command and reports its real exit status.
func (s SelfUpdate) Remediate(ctx context.Context, w io.Writer, req Requirement, f *Finding) bool {
	if f.Kind == MissingTool {
		if s.MissingHint != "" {
			warnColor.Fprintf(w, "  → %s\n", s.MissingHint)
		}
		return false
	}

	dimColor.Fprintf(w, "  → Updating %s...\n", req.Display)
	res, err := s.Runner.Execute(ctx, s.Command, false)
	if err != nil || !res.Success() {
		badColor.Fprintf(w, "  ✗ Failed to update %s\n", req.Display)
		return false
	}
	okColor.Fprintf(w, "  ✓ %s updated successfully\n", req.Display)
	return true
}

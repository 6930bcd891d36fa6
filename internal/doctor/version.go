package doctor

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"

	"github.com/harrison/monorun/internal/process"
)

var (
	okColor   = color.New(color.FgGreen)
	badColor  = color.New(color.FgRed)
	warnColor = color.New(color.FgYellow)
	dimColor  = color.New(color.Faint)
	stepColor = color.New(color.FgCyan)
)

// LookPathFunc resolves an executable on PATH.
type LookPathFunc func(name string) (string, bool)

// Remediation is invoked for a deficient VersionCheck.
type Remediation interface {
	Remediate(ctx context.Context, w io.Writer, req Requirement, f *Finding) bool
}

// VersionCheck verifies that a tool exists and meets a major version.
type VersionCheck struct {
	Req      Requirement
	Runner   process.Runner
	LookPath LookPathFunc
	Remedy   Remediation
}

// Name returns the display name of the tool.
func (c *VersionCheck) Name() string {
	return c.Req.Display
}

// Run looks the tool up, queries its version and compares the major
// component. An unparseable version is reported as VersionTooLow.
func (c *VersionCheck) Run(ctx context.Context, w io.Writer) *Finding {
	f := &Finding{Name: c.Req.Display}

	lookPath := c.LookPath
	if lookPath == nil {
		lookPath = process.LookPath
	}
	if _, ok := lookPath(c.Req.Tool); !ok {
		f.Kind = MissingTool
		badColor.Fprintf(w, "  ✗ %s is not installed\n", c.Req.Display)
		return f
	}

	res, err := c.Runner.Execute(ctx, process.Command{
		Program: c.Req.Tool,
		Args:    c.Req.VersionArgs,
		Label:   c.Req.Display + " version",
	}, true)
	if err != nil || !res.Success() {
		f.Kind = VersionTooLow
		badColor.Fprintf(w, "  ✗ %s version check failed\n", c.Req.Display)
		return f
	}

	f.Found = firstLine(res.Output)
	major, err := ParseMajor(f.Found)
	if err != nil {
		f.Kind = VersionTooLow
		badColor.Fprintf(w, "  ✗ %s version check failed: %v\n", c.Req.Display, err)
		return f
	}
	if major < c.Req.Major {
		f.Kind = VersionTooLow
		warnColor.Fprintf(w, "  ⚠ Found %s %s\n", c.Req.Display, f.Found)
		warnColor.Fprintf(w, "  → Required: %s %d.x or higher\n", c.Req.Display, c.Req.Major)
		return f
	}

	okColor.Fprintf(w, "  ✓ %s %s is installed\n", c.Req.Display, f.Found)
	return f
}

// Remediate delegates to the configured remediation. Without one the
// deficiency stands.
func (c *VersionCheck) Remediate(ctx context.Context, w io.Writer, f *Finding) bool {
	if c.Remedy == nil {
		return false
	}
	return c.Remedy.Remediate(ctx, w, c.Req, f)
}

// ParseMajor extracts the leading numeric component of a version string.
// Surrounding whitespace and a leading "v" or "V" are ignored.
func ParseMajor(version string) (int, error) {
	s := strings.TrimSpace(version)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "v"), "V")

	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, fmt.Errorf("no major version in %q", version)
	}
	major, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, fmt.Errorf("parse major version %q: %w", version, err)
	}
	return major, nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}

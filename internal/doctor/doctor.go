package doctor

import (
	"context"
	"io"

	"github.com/fatih/color"

	"github.com/harrison/monorun/internal/process"
)

var headerColor = color.New(color.Bold)

// Pipeline runs registered checks sequentially.
type Pipeline struct {
	checks   []Check
	out      io.Writer
	findings []*Finding
}

// NewPipeline creates a Pipeline writing status lines to out.
func NewPipeline(out io.Writer) *Pipeline {
	return &Pipeline{out: out}
}

// Register adds a check to the pipeline.
func (p *Pipeline) Register(c Check) {
	p.checks = append(p.checks, c)
}

// Validate runs every check in registration order and invokes the
// remediation hook for each deficient one. It returns true when at least
// one deficiency remains unresolved. No check is skipped because an
// earlier one failed.
func (p *Pipeline) Validate(ctx context.Context) bool {
	p.findings = p.findings[:0]
	hasDeficiency := false

	for _, c := range p.checks {
		headerColor.Fprintf(p.out, "\n🔍 Checking %s...\n", c.Name())

		f := c.Run(ctx, p.out)
		if f.Kind != OK {
			f.Remediated = c.Remediate(ctx, p.out, f)
		}
		if f.Deficient() {
			hasDeficiency = true
		}
		p.findings = append(p.findings, f)
	}

	return hasDeficiency
}

// Report returns the findings of the last Validate call in check order.
func (p *Pipeline) Report() []Finding {
	out := make([]Finding, len(p.findings))
	for i, f := range p.findings {
		out[i] = *f
	}
	return out
}

// Default requirements for the monorepo toolchain.
var (
	DotnetRequirement = Requirement{Tool: "dotnet", Display: ".NET", Major: 10, VersionArgs: []string{"--version"}}
	NodeRequirement   = Requirement{Tool: "node", Display: "Node.js", Major: 24, VersionArgs: []string{"--version"}}
	NpmRequirement    = Requirement{Tool: "npm", Display: "npm", Major: 11, VersionArgs: []string{"--version"}}
)

// NewDefaultPipeline registers the .NET, Node.js and npm checks in that
// order. npm is updated in place when too old; the others get guidance.
func NewDefaultPipeline(out io.Writer, runner process.Runner, lookPath LookPathFunc) *Pipeline {
	p := NewPipeline(out)
	p.Register(&VersionCheck{
		Req:      DotnetRequirement,
		Runner:   runner,
		LookPath: lookPath,
		Remedy: Guidance{Hints: []string{
			"Please visit https://dot.net and download .NET 10 SDK",
			"Or use your system's package manager",
		}},
	})
	p.Register(&VersionCheck{
		Req:      NodeRequirement,
		Runner:   runner,
		LookPath: lookPath,
		Remedy: Guidance{Hints: []string{
			"Please visit https://nodejs.org and download Node.js 24",
			"Or use nvm: nvm install 24",
		}},
	})
	p.Register(&VersionCheck{
		Req:      NpmRequirement,
		Runner:   runner,
		LookPath: lookPath,
		Remedy: SelfUpdate{
			Runner: runner,
			Command: process.Command{
				Program: "npm",
				Args:    []string{"install", "-g", "npm@latest"},
				Label:   "Updating npm",
			},
			MissingHint: "npm should be installed with Node.js",
		},
	})
	return p
}

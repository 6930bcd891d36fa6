// Package target defines the monorepo's named units of work and the check and
// fix commands each tool category runs against them.
//
// Target names form a closed set. Adding a target means adding a Name
// constant and a case in every descriptor switch; the default branches return
// UnmappedTargetError so a missing case fails loudly at dispatch time.
package target

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/harrison/monorun/internal/process"
)

// Name identifies one monorepo target.
type Name int

const (
	// Packages is the shared component library under packages/components.
	Packages Name = iota
	// Website is the main site under sites/arolariu.ro.
	Website
	// CV is the résumé site under sites/cv.arolariu.ro.
	CV
	// API is the .NET backend, formatted through the solution file.
	API
)

// AllSentinel selects every target of a category.
const AllSentinel = "all"

var names = map[Name]string{
	Packages: "packages",
	Website:  "website",
	CV:       "cv",
	API:      "api",
}

// declared is the stable order used when expanding "all".
var declared = []Name{Packages, Website, CV, API}

func (n Name) String() string {
	if s, ok := names[n]; ok {
		return s
	}
	return fmt.Sprintf("target(%d)", int(n))
}

// Category is a family of tools that share a check/fix contract.
type Category int

const (
	Format Category = iota // prettier, dotnet format
	Lint                   // eslint
)

func (c Category) String() string {
	switch c {
	case Format:
		return "format"
	case Lint:
		return "lint"
	default:
		return "unknown"
	}
}

// Target is an immutable unit of work with its check and fix commands.
type Target struct {
	Name     Name
	Selector string // Working-directory glob or path the tool operates on
	Check    process.Command
	Fix      process.Command
}

// Selection is a parsed target argument: either every target or exactly one.
type Selection struct {
	All  bool
	Name Name
}

func (s Selection) String() string {
	if s.All {
		return AllSentinel
	}
	return s.Name.String()
}

// Registry resolves targets for one tool category.
type Registry struct {
	Category       Category
	Root           string // Monorepo root; commands run from here
	PrettierConfig string // Config path passed to prettier; located under Root when empty
}

// NewFormatRegistry creates a registry for the format category. The prettier
// configuration is located the first time a prettier target is resolved, so
// the .NET target works without one.
func NewFormatRegistry(root string) *Registry {
	return &Registry{Category: Format, Root: root}
}

// NewLintRegistry creates a registry for the lint category.
func NewLintRegistry(root string) *Registry {
	return &Registry{Category: Lint, Root: root}
}

// Valid returns the target names accepted by this registry, "all" first.
func (r *Registry) Valid() []string {
	valid := []string{AllSentinel}
	for _, n := range r.members() {
		valid = append(valid, n.String())
	}
	return valid
}

func (r *Registry) members() []Name {
	switch r.Category {
	case Format:
		return declared
	case Lint:
		return []Name{Packages, Website, CV}
	default:
		return nil
	}
}

// Parse resolves a raw target argument. Unknown names fail with
// InvalidTargetError before anything is spawned. A known name that this
// category cannot run is accepted here and rejected by Targets.
func (r *Registry) Parse(raw string) (Selection, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" || s == AllSentinel {
		return Selection{All: true}, nil
	}
	for _, n := range declared {
		if n.String() == s {
			return Selection{Name: n}, nil
		}
	}
	return Selection{}, &InvalidTargetError{Input: raw, Valid: r.Valid()}
}

// Targets expands a selection into resolved targets in declaration order.
func (r *Registry) Targets(sel Selection) ([]Target, error) {
	if !sel.All {
		t, err := r.Target(sel.Name, false)
		if err != nil {
			return nil, err
		}
		return []Target{t}, nil
	}

	members := r.members()
	targets := make([]Target, 0, len(members))
	for _, n := range members {
		t, err := r.Target(n, true)
		if err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}
	return targets, nil
}

// Target builds the descriptors for one name. quiet selects the terse tool
// verbosity used when output is captured.
func (r *Registry) Target(n Name, quiet bool) (Target, error) {
	switch r.Category {
	case Format:
		return r.formatTarget(n, quiet)
	case Lint:
		return r.lintTarget(n)
	default:
		return Target{}, &UnmappedTargetError{Target: n, Category: r.Category}
	}
}

func prettierGlob(n Name) (string, bool) {
	switch n {
	case Packages:
		return "packages/components/**", true
	case Website:
		return "sites/arolariu.ro/**", true
	case CV:
		return "sites/cv.arolariu.ro/**", true
	default:
		return "", false
	}
}

func lintDir(n Name) (string, bool) {
	switch n {
	case Packages:
		return "packages/components", true
	case Website:
		return "sites/arolariu.ro", true
	case CV:
		return "sites/cv.arolariu.ro", true
	default:
		return "", false
	}
}

const dotnetSolution = "arolariu.slnx"

func (r *Registry) formatTarget(n Name, quiet bool) (Target, error) {
	if n == API {
		verbosity := "detailed"
		if quiet {
			verbosity = "quiet"
		}
		return Target{
			Name:     n,
			Selector: dotnetSolution,
			Check: process.Command{
				Program: "dotnet",
				Args:    []string{"format", dotnetSolution, "--verify-no-changes", "--verbosity", verbosity},
				Dir:     r.Root,
				Label:   "Checking .NET API",
			},
			Fix: process.Command{
				Program: "dotnet",
				Args:    []string{"format", dotnetSolution, "--verbosity", verbosity},
				Dir:     r.Root,
				Label:   "Formatting .NET API",
			},
		}, nil
	}

	glob, ok := prettierGlob(n)
	if !ok {
		return Target{}, &UnmappedTargetError{Target: n, Category: Format}
	}
	if r.PrettierConfig == "" {
		cfg, err := FindPrettierConfig(r.Root)
		if err != nil {
			return Target{}, err
		}
		r.PrettierConfig = cfg
	}
	prettier := func(mode string) []string {
		return []string{
			"node_modules/prettier/bin/prettier.cjs",
			mode,
			glob,
			"--cache",
			"--config", r.PrettierConfig,
			"--config-precedence", "prefer-file",
			"--check-ignore-pragma",
		}
	}
	return Target{
		Name:     n,
		Selector: glob,
		Check:    process.Command{Program: "node", Args: prettier("--check"), Dir: r.Root, Label: "Checking " + n.String()},
		Fix:      process.Command{Program: "node", Args: prettier("--write"), Dir: r.Root, Label: "Formatting " + n.String()},
	}, nil
}

func (r *Registry) lintTarget(n Name) (Target, error) {
	dir, ok := lintDir(n)
	if !ok {
		return Target{}, &UnmappedTargetError{Target: n, Category: Lint}
	}
	eslint := func(extra ...string) []string {
		return append([]string{"node_modules/eslint/bin/eslint.js", dir}, extra...)
	}
	return Target{
		Name:     n,
		Selector: dir,
		Check:    process.Command{Program: "node", Args: eslint(), Dir: r.Root, Label: "Linting " + n.String()},
		Fix:      process.Command{Program: "node", Args: eslint("--fix"), Dir: r.Root, Label: "Fixing " + n.String()},
	}, nil
}

var prettierConfigs = []string{
	"prettier.config.ts",
	".prettierrc",
	".prettierrc.json",
	".prettierrc.js",
	".prettierrc.cjs",
	"prettier.config.js",
	"prettier.config.cjs",
}

// FindPrettierConfig returns the first prettier config present under root,
// relative to root.
func FindPrettierConfig(root string) (string, error) {
	for _, name := range prettierConfigs {
		if _, err := os.Stat(filepath.Join(root, name)); err == nil {
			return name, nil
		}
	}
	return "", fmt.Errorf("could not find prettier configuration file in %s", root)
}

// InvalidTargetError reports an unknown target name.
type InvalidTargetError struct {
	Input string
	Valid []string
}

func (e *InvalidTargetError) Error() string {
	return fmt.Sprintf("invalid target %q (valid targets: %s)", e.Input, strings.Join(e.Valid, ", "))
}

// UnmappedTargetError reports a known target with no command set for a category.
type UnmappedTargetError struct {
	Target   Name
	Category Category
}

func (e *UnmappedTargetError) Error() string {
	return fmt.Sprintf("no %s command mapping for target %s", e.Category, e.Target)
}

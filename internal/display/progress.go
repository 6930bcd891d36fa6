package display

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/harrison/monorun/internal/process"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Reporter renders progress for in-flight process executions.
//
// Captured executions share one status line that a ticker redraws while any
// of them is running. Streamed executions print a start line and a completion
// line around the child's live output. Completion blocks are written under the
// reporter's mutex so one task's block never interleaves with another's.
type Reporter struct {
	out      io.Writer
	mu       sync.Mutex
	animate  bool
	color    bool
	interval time.Duration

	active  []*Scope
	ticking bool
	stop    chan struct{}
	stopped chan struct{}
	frame   int
}

// NewReporter creates a Reporter writing to w.
// The spinner only animates when w is a terminal.
func NewReporter(w io.Writer) *Reporter {
	tty := isTerminal(w)
	return &Reporter{
		out:      w,
		animate:  tty,
		color:    tty && !color.NoColor,
		interval: 100 * time.Millisecond,
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Scope brackets exactly one process execution.
type Scope struct {
	r       *Reporter
	label   string
	capture bool
	once    sync.Once
}

// Begin opens a scope for label. When capture is false the start line is
// printed immediately; otherwise the label joins the spinner line.
func (r *Reporter) Begin(label string, capture bool) *Scope {
	s := &Scope{r: r, label: label, capture: capture}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !capture {
		fmt.Fprintf(r.out, "%s %s\n", r.paint(color.FgCyan, "▶"), label)
		return s
	}

	r.active = append(r.active, s)
	if r.animate && !r.ticking {
		r.ticking = true
		r.stop = make(chan struct{})
		r.stopped = make(chan struct{})
		go r.spin(r.stop, r.stopped)
	}
	return s
}

// Finish closes the scope with the paired execution outcome. Only the first
// call has any effect.
func (s *Scope) Finish(res process.Result, err error) {
	s.once.Do(func() {
		s.r.finish(s, res, err)
	})
}

func (r *Reporter) finish(s *Scope, res process.Result, err error) {
	var wait chan struct{}

	r.mu.Lock()
	if s.capture {
		r.remove(s)
		if r.ticking && len(r.active) == 0 {
			r.ticking = false
			close(r.stop)
			wait = r.stopped
		}
	}
	r.mu.Unlock()

	// The ticker takes the mutex to draw, so wait for it outside the lock.
	if wait != nil {
		<-wait
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if s.capture && r.animate {
		r.clearLine()
	}

	var b strings.Builder
	switch {
	case err != nil:
		fmt.Fprintf(&b, "%s %s: %v\n", r.paint(color.FgRed, "✗"), s.label, err)
		if s.capture {
			writeIndented(&b, res.Output)
		}
	case res.Success() && s.capture:
		fmt.Fprintf(&b, "%s %s\n", r.paint(color.FgGreen, "✓"), s.label)
	case res.Success():
		fmt.Fprintf(&b, "%s %s completed\n", r.paint(color.FgGreen, "✓"), s.label)
	case s.capture:
		fmt.Fprintf(&b, "%s %s (exit %d)\n", r.paint(color.FgRed, "✗"), s.label, res.ExitCode)
		writeIndented(&b, res.Output)
	default:
		fmt.Fprintf(&b, "%s %s failed (exit %d)\n", r.paint(color.FgRed, "✗"), s.label, res.ExitCode)
	}
	io.WriteString(r.out, b.String())

	if len(r.active) > 0 && r.animate {
		r.drawLocked()
	}
}

func (r *Reporter) remove(s *Scope) {
	for i, a := range r.active {
		if a == s {
			r.active = append(r.active[:i], r.active[i+1:]...)
			return
		}
	}
}

func (r *Reporter) spin(stop <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.mu.Lock()
	r.drawLocked()
	r.mu.Unlock()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			r.mu.Lock()
			r.frame = (r.frame + 1) % len(spinnerFrames)
			r.drawLocked()
			r.mu.Unlock()
		}
	}
}

// drawLocked redraws the spinner line. Caller holds r.mu.
func (r *Reporter) drawLocked() {
	if len(r.active) == 0 {
		return
	}
	labels := make([]string, 0, len(r.active))
	for _, s := range r.active {
		labels = append(labels, s.label)
	}
	r.clearLine()
	fmt.Fprintf(r.out, "%s %s", r.paint(color.FgCyan, spinnerFrames[r.frame]), strings.Join(labels, ", "))
}

func (r *Reporter) clearLine() {
	io.WriteString(r.out, "\r\x1b[K")
}

func (r *Reporter) paint(attr color.Attribute, s string) string {
	if !r.color {
		return s
	}
	return color.New(attr).Sprint(s)
}

func writeIndented(b *strings.Builder, output string) {
	output = strings.TrimRight(output, "\n")
	if output == "" {
		return
	}
	for _, line := range strings.Split(output, "\n") {
		b.WriteString("    ")
		b.WriteString(line)
		b.WriteString("\n")
	}
}

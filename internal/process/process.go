// Package process runs external tools for monorun.
//
// Every unit of work in monorun is a single external process with a bounded
// lifetime. The Executor launches it with a direct argument vector (no shell),
// either capturing stdout and stderr or streaming them to the terminal, and
// normalizes the outcome into a Result.
package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Command describes one external invocation.
type Command struct {
	Program string   // Executable name or path, resolved via PATH
	Args    []string // Argument vector passed verbatim
	Dir     string   // Working directory (empty = current dir)
	Label   string   // Display label for progress output
}

// String renders the command line for logs. Not suitable for a shell.
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Program
	}
	return c.Program + " " + strings.Join(c.Args, " ")
}

// Result is the normalized outcome of one Execute call.
type Result struct {
	ExitCode int
	Output   string // stdout followed by stderr; empty when streamed
	Duration time.Duration
}

// Success reports whether the process exited with code 0.
func (r Result) Success() bool {
	return r.ExitCode == 0
}

// Runner abstracts process execution for testability.
type Runner interface {
	Execute(ctx context.Context, cmd Command, capture bool) (Result, error)
}

// Executor runs commands on the host.
type Executor struct {
	Stdout io.Writer // Destination for streamed stdout (nil = os.Stdout)
	Stderr io.Writer // Destination for streamed stderr (nil = os.Stderr)
	Env    []string  // Extra KEY=VALUE pairs appended to the inherited environment
}

// NewExecutor creates an Executor streaming to the process's own stdout/stderr.
func NewExecutor() *Executor {
	return &Executor{}
}

// Execute runs cmd to completion.
//
// When capture is true stdout and stderr are buffered independently and
// joined stdout-first into Result.Output. When false both streams go to the
// executor's writers and Result.Output is empty. A process that terminates
// without a reportable exit code (killed by a signal) yields ExitCode 1.
func (e *Executor) Execute(ctx context.Context, cmd Command, capture bool) (Result, error) {
	if cmd.Program == "" {
		return Result{ExitCode: 1}, &SpawnError{Program: cmd.Program, Err: errors.New("empty program name")}
	}

	c := exec.CommandContext(ctx, cmd.Program, cmd.Args...)
	c.Dir = cmd.Dir
	if len(e.Env) > 0 {
		c.Env = append(os.Environ(), e.Env...)
	}

	var stdout, stderr bytes.Buffer
	var outPipe, errPipe io.ReadCloser
	if capture {
		var err error
		if outPipe, err = c.StdoutPipe(); err != nil {
			return Result{ExitCode: 1}, &IoError{Program: cmd.Program, Stream: "stdout", Err: err}
		}
		if errPipe, err = c.StderrPipe(); err != nil {
			return Result{ExitCode: 1}, &IoError{Program: cmd.Program, Stream: "stderr", Err: err}
		}
	} else {
		c.Stdout = e.stdout()
		c.Stderr = e.stderr()
	}

	start := time.Now()
	if err := c.Start(); err != nil {
		return Result{ExitCode: 1}, &SpawnError{Program: cmd.Program, Err: err}
	}

	var copyErr error
	if capture {
		copyErr = drain(cmd.Program, outPipe, &stdout, errPipe, &stderr)
	}

	waitErr := c.Wait()
	res := Result{Duration: time.Since(start)}
	if capture {
		res.Output = stdout.String() + stderr.String()
	}
	res.ExitCode = exitCode(waitErr)

	if copyErr != nil {
		return res, copyErr
	}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return res, &IoError{Program: cmd.Program, Stream: "wait", Err: waitErr}
		}
	}
	return res, nil
}

func (e *Executor) stdout() io.Writer {
	if e.Stdout != nil {
		return e.Stdout
	}
	return os.Stdout
}

func (e *Executor) stderr() io.Writer {
	if e.Stderr != nil {
		return e.Stderr
	}
	return os.Stderr
}

// drain copies both pipes concurrently; pipes must be fully read before Wait.
func drain(program string, outPipe io.Reader, stdout *bytes.Buffer, errPipe io.Reader, stderr *bytes.Buffer) error {
	errCh := make(chan error, 1)
	go func() {
		_, err := io.Copy(stderr, errPipe)
		errCh <- err
	}()

	var firstErr error
	if _, err := io.Copy(stdout, outPipe); err != nil {
		firstErr = &IoError{Program: program, Stream: "stdout", Err: err}
	}
	if err := <-errCh; err != nil && firstErr == nil {
		firstErr = &IoError{Program: program, Stream: "stderr", Err: err}
	}
	return firstErr
}

// exitCode maps a Wait error to an exit code.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if code := exitErr.ExitCode(); code >= 0 {
			return code
		}
	}
	return 1
}

// LookPath reports whether name resolves on the executable search path.
func LookPath(name string) (string, bool) {
	path, err := exec.LookPath(name)
	if err != nil {
		return "", false
	}
	return path, true
}

// ErrSpawn matches every SpawnError via errors.Is.
var ErrSpawn = errors.New("process could not be started")

// ErrIO matches every IoError via errors.Is.
var ErrIO = errors.New("process output could not be read")

// SpawnError reports that a program could not be launched.
type SpawnError struct {
	Program string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn %s: %v", e.Program, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrSpawn) match.
func (e *SpawnError) Is(target error) bool { return target == ErrSpawn }

// IoError reports a failure reading a child's output streams.
type IoError struct {
	Program string
	Stream  string
	Err     error
}

func (e *IoError) Error() string {
	return fmt.Sprintf("read %s of %s: %v", e.Stream, e.Program, e.Err)
}

func (e *IoError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrIO) match.
func (e *IoError) Is(target error) bool { return target == ErrIO }

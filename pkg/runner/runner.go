// Package runner executes the external tools iotwb drives: arduino-cli,
// docker, the cloud CLI and the PnP code generator.
package runner

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

	"github.com/rs/zerolog"
)

// Request describes one process invocation.
type Request struct {
	// Command is the executable name or path.
	Command string `json:"command"`

	// Args are the command arguments.
	Args []string `json:"args,omitempty"`

	// Dir is the working directory.
	Dir string `json:"dir,omitempty"`

	// Env holds extra environment variables, added to the current environment.
	Env map[string]string `json:"env,omitempty"`

	// Stdin, if set, is connected to the process standard input.
	Stdin io.Reader `json:"-"`

	// Quiet suppresses streaming output to the runner's output writer.
	Quiet bool `json:"quiet,omitempty"`

	// Timeout overrides the runner default. Zero keeps the default.
	Timeout time.Duration `json:"timeout,omitempty"`
}

// String renders the command line for logs.
func (r Request) String() string {
	if len(r.Args) == 0 {
		return r.Command
	}
	return r.Command + " " + strings.Join(r.Args, " ")
}

// Result is the outcome of a finished process.
type Result struct {
	// ExitCode is the process exit code.
	ExitCode int `json:"exit_code"`

	// Stdout is the captured standard output.
	Stdout string `json:"stdout"`

	// Stderr is the captured standard error.
	Stderr string `json:"stderr"`

	// Duration is how long the process ran.
	Duration time.Duration `json:"duration"`
}

// Succeeded returns true if the process exited with code 0.
func (r *Result) Succeeded() bool {
	return r != nil && r.ExitCode == 0
}

// Runner runs external processes. A non-zero exit code is reported in the
// Result, not as an error; errors mean the process could not run at all.
type Runner interface {
	Run(ctx context.Context, req Request) (*Result, error)

	// Available reports whether command can be found.
	Available(command string) bool
}

// ExecRunner runs processes on the local machine.
type ExecRunner struct {
	logger  zerolog.Logger
	output  io.Writer
	timeout time.Duration
}

// NewExecRunner creates a runner. Process output is streamed to output
// (usually stderr) as it is produced; nil discards it.
func NewExecRunner(logger zerolog.Logger, output io.Writer, timeout time.Duration) *ExecRunner {
	if output == nil {
		output = io.Discard
	}
	return &ExecRunner{
		logger:  logger.With().Str("component", "runner").Logger(),
		output:  output,
		timeout: timeout,
	}
}

// Run executes req and waits for it to finish.
func (r *ExecRunner) Run(ctx context.Context, req Request) (*Result, error) {
	if req.Command == "" {
		return nil, fmt.Errorf("command is required")
	}

	timeout := r.timeout
	if req.Timeout > 0 {
		timeout = req.Timeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, req.Command, req.Args...)
	if req.Dir != "" {
		cmd.Dir = req.Dir
	}
	if len(req.Env) > 0 {
		env := os.Environ()
		for k, v := range req.Env {
			env = append(env, fmt.Sprintf("%s=%s", k, v))
		}
		cmd.Env = env
	}
	if req.Stdin != nil {
		cmd.Stdin = req.Stdin
	}

	var stdout, stderr bytes.Buffer
	if req.Quiet {
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
	} else {
		cmd.Stdout = io.MultiWriter(&stdout, r.output)
		cmd.Stderr = io.MultiWriter(&stderr, r.output)
	}

	r.logger.Debug().
		Str("command", req.String()).
		Str("dir", req.Dir).
		Msg("Running command")

	start := time.Now()
	err := cmd.Run()
	result := &Result{
		Duration: time.Since(start),
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("failed to execute %s: %w", req.Command, err)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("failed to execute %s: %w", req.Command, ctxErr)
		}
		result.ExitCode = exitErr.ExitCode()
	}

	r.logger.Debug().
		Str("command", req.Command).
		Int("exit_code", result.ExitCode).
		Dur("duration", result.Duration).
		Msg("Command finished")

	return result, nil
}

// Available implements Runner.
func (r *ExecRunner) Available(command string) bool {
	_, err := exec.LookPath(command)
	return err == nil
}

// Func adapts a function to the Runner interface. Available always reports true.
type Func func(ctx context.Context, req Request) (*Result, error)

// Run implements Runner.
func (f Func) Run(ctx context.Context, req Request) (*Result, error) {
	return f(ctx, req)
}

// Available implements Runner.
func (f Func) Available(string) bool {
	return true
}

// ExitError describes a process that ran but exited with a non-zero code.
type ExitError struct {
	// Command is the command line.
	Command string

	// Result is the process result.
	Result *Result
}

// Error implements the error interface.
func (e *ExitError) Error() string {
	msg := strings.TrimSpace(e.Result.Stderr)
	if msg == "" {
		return fmt.Sprintf("%s exited with status %d", e.Command, e.Result.ExitCode)
	}
	return fmt.Sprintf("%s exited with status %d: %s", e.Command, e.Result.ExitCode, lastLine(msg))
}

// Check runs req and turns a non-zero exit code into an *ExitError.
func Check(ctx context.Context, r Runner, req Request) (*Result, error) {
	res, err := r.Run(ctx, req)
	if err != nil {
		return nil, err
	}
	if !res.Succeeded() {
		return res, &ExitError{Command: req.String(), Result: res}
	}
	return res, nil
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// Package runner executes external security tools with a bounded timeout.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	// ErrToolNotFound is returned when the executable cannot be located
	ErrToolNotFound = errors.New("tool not found")
	// ErrTimeout is returned when a command exceeds its timeout
	ErrTimeout = errors.New("command timed out")
)

// ExitError is returned when a command exits with a non-zero status
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("command exited with status %d", e.Code)
}

// Command is a single external tool invocation
type Command struct {
	Name       string   // Tool name or path
	Args       []string // Arguments
	Stdin      string   // Optional data written to stdin
	Dir        string   // Working directory, empty for the current one
	OutputFile string   // When set, captured output is written here
}

// String returns the command line for display
func (c Command) String() string {
	parts := make([]string, 0, len(c.Args)+1)
	parts = append(parts, c.Name)
	for _, a := range c.Args {
		if a == "" || strings.ContainsAny(a, " \t\"'*") {
			a = "'" + strings.ReplaceAll(a, "'", `'\''`) + "'"
		}
		parts = append(parts, a)
	}
	return strings.Join(parts, " ")
}

// Result is the captured output of a command
type Result struct {
	Output   string
	Duration time.Duration
}

// Runner runs commands
type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// ExecRunner runs commands as local processes
type ExecRunner struct {
	timeout   time.Duration
	toolPaths map[string]string
	logger    *logrus.Logger
}

// NewExecRunner creates a runner. toolPaths maps tool names to explicit executables.
func NewExecRunner(timeout time.Duration, toolPaths map[string]string, logger *logrus.Logger) *ExecRunner {
	if logger == nil {
		logger = logrus.New()
	}
	if timeout <= 0 {
		timeout = 300 * time.Second
	}
	return &ExecRunner{timeout: timeout, toolPaths: toolPaths, logger: logger}
}

// LookPath resolves a tool using the configured paths first, then PATH
func (r *ExecRunner) LookPath(name string) (string, error) {
	if p, ok := r.toolPaths[name]; ok && p != "" {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
		r.logger.Warnf("Configured path for %s does not exist: %s", name, p)
	}
	p, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return p, nil
}

// Run executes cmd, capturing combined output. The output is written to
// cmd.OutputFile even on failure, followed by the error.
func (r *ExecRunner) Run(ctx context.Context, cmd Command) (Result, error) {
	path, err := r.LookPath(cmd.Name)
	if err != nil {
		writeOutput(cmd.OutputFile, "", err)
		return Result{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	c := exec.CommandContext(ctx, path, cmd.Args...)
	// children of a killed tool may hold the output pipe open
	c.WaitDelay = 2 * time.Second
	c.Dir = cmd.Dir
	if cmd.Stdin != "" {
		c.Stdin = strings.NewReader(cmd.Stdin)
	}
	var out bytes.Buffer
	c.Stdout = &out
	c.Stderr = &out

	r.logger.Debugf("Running: %s", cmd)
	start := time.Now()
	runErr := c.Run()
	res := Result{Output: out.String(), Duration: time.Since(start)}

	switch {
	case runErr == nil:
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		runErr = fmt.Errorf("%w after %s", ErrTimeout, r.timeout)
	default:
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			runErr = &ExitError{Code: exitErr.ExitCode()}
		} else {
			runErr = fmt.Errorf("run %s: %w", cmd.Name, runErr)
		}
	}

	writeOutput(cmd.OutputFile, res.Output, runErr)
	if runErr != nil {
		return res, runErr
	}
	return res, nil
}

func writeOutput(path, output string, err error) {
	if path == "" {
		return
	}
	if err != nil {
		output += "\n\nERROR: " + err.Error()
	}
	if dir := filepath.Dir(path); dir != "." {
		_ = os.MkdirAll(dir, 0755)
	}
	_ = os.WriteFile(path, []byte(output), 0644)
}

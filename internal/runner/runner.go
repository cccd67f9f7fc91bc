// Package runner executes external programs and reports how they ended.
//
// A Runner never turns a failed program into a returned error on its own:
// the exit status travels back in a Result and the caller chooses whether a
// non-zero exit stops anything.
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

	"github.com/rs/zerolog/log"
)

// maxStderrBytes bounds the stderr tail kept in a Result.
const maxStderrBytes = 8 * 1024

// Command is one external program invocation.
type Command struct {
	Name string
	Args []string
}

// NewCommand splits program on whitespace so that configured programs like
// "python remove_empty_fastq_entries.py" become name plus leading args.
func NewCommand(program string, args ...string) Command {
	fields := strings.Fields(program)
	if len(fields) == 0 {
		return Command{Args: args}
	}
	lead := append([]string{}, fields[1:]...)
	return Command{Name: fields[0], Args: append(lead, args...)}
}

// Argv returns the full argument vector with the program first.
func (c Command) Argv() []string {
	return append([]string{c.Name}, c.Args...)
}

func (c Command) String() string {
	return strings.Join(c.Argv(), " ")
}

// Result describes how one invocation ended.
type Result struct {
	Argv     []string      `json:"argv"`
	ExitCode int           `json:"exit_code"`
	Stderr   string        `json:"stderr,omitempty"`
	Duration time.Duration `json:"duration"`
	// StartErr is set when the program could not be started at all.
	StartErr string `json:"start_error,omitempty"`
}

// OK reports a clean start and a zero exit.
func (r Result) OK() bool {
	return r.StartErr == "" && r.ExitCode == 0
}

// Err converts a failed Result into an error, nil otherwise.
func (r Result) Err() error {
	program := ""
	if len(r.Argv) > 0 {
		program = r.Argv[0]
	}
	if r.StartErr != "" {
		return fmt.Errorf("%w: %s: %s", ErrStart, program, r.StartErr)
	}
	if r.ExitCode != 0 {
		return &ExitError{Program: program, Code: r.ExitCode, Stderr: r.Stderr}
	}
	return nil
}

// Runner runs a Command synchronously.
type Runner interface {
	Run(ctx context.Context, cmd Command) Result
}

// ExecRunner runs commands as child processes. Stdout is inherited; stderr is
// forwarded to the parent and its tail is kept in the Result.
type ExecRunner struct {
	Stdout io.Writer
	Stderr io.Writer
	// Dir is the working directory for children, empty for the current one.
	Dir string
}

// NewExecRunner returns an ExecRunner wired to the process streams.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{Stdout: os.Stdout, Stderr: os.Stderr}
}

// Run starts cmd and waits for it to exit.
func (e *ExecRunner) Run(ctx context.Context, cmd Command) Result {
	result := Result{Argv: cmd.Argv()}
	if cmd.Name == "" {
		result.StartErr = "empty program name"
		result.ExitCode = -1
		return result
	}

	child := exec.CommandContext(ctx, cmd.Name, cmd.Args...) //nolint:gosec // argv is built from configured tools
	child.Dir = e.Dir
	child.Stdout = e.Stdout
	tail := &tailBuffer{limit: maxStderrBytes}
	if e.Stderr != nil {
		child.Stderr = io.MultiWriter(e.Stderr, tail)
	} else {
		child.Stderr = tail
	}

	logger := log.With().Str("program", cmd.Name).Logger()
	logger.Debug().Strs("argv", result.Argv).Msg("starting external program")

	start := time.Now()
	err := child.Run()
	result.Duration = time.Since(start)
	result.Stderr = tail.String()

	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		result.ExitCode = exitErr.ExitCode()
		logger.Warn().Int("exit_code", result.ExitCode).Dur("duration", result.Duration).Msg("external program exited with non-zero status")
		return result
	default:
		result.StartErr = err.Error()
		result.ExitCode = -1
		logger.Warn().Err(err).Msg("external program failed to start")
		return result
	}

	logger.Debug().Dur("duration", result.Duration).Msg("external program finished")
	return result
}

// tailBuffer keeps only the last limit bytes written to it.
type tailBuffer struct {
	buf   bytes.Buffer
	limit int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	n := len(p)
	if len(p) >= t.limit {
		t.buf.Reset()
		t.buf.Write(p[len(p)-t.limit:])
		return n, nil
	}
	if overflow := t.buf.Len() + len(p) - t.limit; overflow > 0 {
		t.buf.Next(overflow)
	}
	t.buf.Write(p)
	return n, nil
}

func (t *tailBuffer) String() string { return t.buf.String() }

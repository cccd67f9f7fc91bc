package runner

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// Recorder is a Runner that logs and records commands without executing
// them. It backs dry-run mode and tests.
type Recorder struct {
	mu       sync.Mutex
	retain   bool
	commands []Command
	failures map[string]int
	// OnRun, when set, is called for every recorded command before it
	// returns. Tests use it to simulate tool side effects.
	OnRun func(cmd Command)
}

// NewRecorder returns an empty Recorder that keeps every command for
// Commands.
func NewRecorder() *Recorder {
	return &Recorder{retain: true, failures: make(map[string]int)}
}

// NewDryRunner returns a Recorder that only logs; Commands stays empty.
func NewDryRunner() *Recorder {
	return &Recorder{failures: make(map[string]int)}
}

// FailProgram makes every later command whose program or first argument
// equals name report exit code code.
func (r *Recorder) FailProgram(name string, code int) {
	r.mu.Lock()
	r.failures[name] = code
	r.mu.Unlock()
}

func (r *Recorder) Run(_ context.Context, cmd Command) Result {
	r.mu.Lock()
	if r.retain {
		r.commands = append(r.commands, cmd)
	}
	code := r.failures[cmd.Name]
	if code == 0 && len(cmd.Args) > 0 {
		code = r.failures[cmd.Args[0]]
	}
	hook := r.OnRun
	r.mu.Unlock()

	log.Info().Str("program", cmd.Name).Strs("argv", cmd.Argv()).Msg("dry run")
	if hook != nil {
		hook(cmd)
	}
	return Result{Argv: cmd.Argv(), ExitCode: code}
}

// Commands returns a copy of everything recorded so far, in call order.
func (r *Recorder) Commands() []Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Command, len(r.commands))
	copy(out, r.commands)
	return out
}

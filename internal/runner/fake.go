package runner

import (
	"context"
	"fmt"
	"sync"
)

// Fake is a scripted Runner for tests. Handler decides the result of every
// command; all invocations are recorded in order. A command run with a done
// ctx fails the way ExecRunner reports an interrupted command.
type Fake struct {
	mu      sync.Mutex
	Handler func(cmd Command) (Result, error)
	Calls   []Command
}

func (f *Fake) Run(ctx context.Context, cmd Command) (Result, error) {
	f.mu.Lock()
	f.Calls = append(f.Calls, cmd)
	handler := f.Handler
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return Result{ExitCode: -1}, fmt.Errorf("%s: %w", cmd, err)
	}

	if handler == nil {
		return Result{}, nil
	}
	return handler(cmd)
}

// Commands returns a snapshot of the recorded invocations.
func (f *Fake) Commands() []Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Command, len(f.Calls))
	copy(out, f.Calls)
	return out
}

var _ Runner = (*Fake)(nil)

// Package exttooltest provides an in-memory exttool.Runner for tests.
package exttooltest

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/ein-plus/lain/internal/exttool"
)

// Call is one recorded invocation.
type Call struct {
	Tool  string
	Args  []string
	Opts  exttool.RunOptions
	Stdin []byte
}

// String renders the call as a command line.
func (c Call) String() string {
	return strings.TrimSpace(c.Tool + " " + strings.Join(c.Args, " "))
}

// HasArgs reports whether args appear in order as a contiguous run.
func (c Call) HasArgs(args ...string) bool {
	for i := 0; i+len(args) <= len(c.Args); i++ {
		match := true
		for j, a := range args {
			if c.Args[i+j] != a {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// Runner records every call and answers through Handler. Without a handler
// every call exits zero with no output.
type Runner struct {
	Handler func(call Call) (*exttool.Result, error)

	mu    sync.Mutex
	calls []Call
}

func (r *Runner) Run(_ context.Context, tool string, args []string, opts exttool.RunOptions) (*exttool.Result, error) {
	call := Call{Tool: tool, Args: append([]string(nil), args...), Opts: opts}
	if opts.Stdin != nil {
		b, err := io.ReadAll(opts.Stdin)
		if err != nil {
			return nil, err
		}
		call.Stdin = b
	}

	r.mu.Lock()
	r.calls = append(r.calls, call)
	r.mu.Unlock()

	if r.Handler == nil {
		return &exttool.Result{Tool: tool, Args: args}, nil
	}
	res, err := r.Handler(call)
	if res != nil {
		res.Tool, res.Args = tool, args
	}
	return res, err
}

// Calls returns the recorded calls in order.
func (r *Runner) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Commands returns the recorded calls rendered as command lines.
func (r *Runner) Commands() []string {
	calls := r.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.String()
	}
	return out
}

// Exit builds a Result with the given exit code and output.
func Exit(code int, stdout, stderr string) *exttool.Result {
	return &exttool.Result{ExitCode: code, Stdout: []byte(stdout), Stderr: []byte(stderr)}
}

// Package exttool runs the external binaries lain drives: kubectl, helm and
// legacy_lain. Every invocation returns a structured Result so callers and
// tests never depend on a real process.
package exttool

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/ein-plus/lain/internal/lainerr"
)

// Result is the outcome of one external invocation.
type Result struct {
	Tool     string
	Args     []string
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

// Err returns nil on a zero exit, else an ExternalTool error carrying the
// tool's exit code and stderr.
func (r *Result) Err() error {
	if r.ExitCode == 0 {
		return nil
	}
	return lainerr.Tool(r.Tool, r.ExitCode, bytes.TrimSpace(r.Stderr))
}

// RunOptions controls how a command is attached to the terminal.
type RunOptions struct {
	// Stream copies output to the terminal while still capturing it.
	Stream bool
	// Interactive attaches the terminal directly; nothing is captured.
	Interactive bool
	Stdin       io.Reader
	// Env holds extra KEY=VALUE entries for the child only.
	Env []string
}

// Runner executes an external command.
type Runner interface {
	Run(ctx context.Context, tool string, args []string, opts RunOptions) (*Result, error)
}

// ExecRunner runs real processes. ExbinDir is searched before PATH and
// prepended to the child's PATH; the parent environment is never modified.
type ExecRunner struct {
	ExbinDir string
	Stdin    io.Reader
	Stdout   io.Writer
	Stderr   io.Writer
	// Environ is the base child environment, os.Environ() when nil.
	Environ []string
}

// NewExecRunner returns a runner attached to the process's standard streams.
func NewExecRunner(exbinDir string) *ExecRunner {
	return &ExecRunner{
		ExbinDir: exbinDir,
		Stdin:    os.Stdin,
		Stdout:   os.Stdout,
		Stderr:   os.Stderr,
	}
}

// Env returns the child environment with ExbinDir prepended to PATH.
func (r *ExecRunner) Env(extra ...string) []string {
	base := r.Environ
	if base == nil {
		base = os.Environ()
	}

	env := make([]string, 0, len(base)+len(extra)+1)
	path := ""
	for _, kv := range base {
		if v, ok := strings.CutPrefix(kv, "PATH="); ok {
			path = v
			continue
		}
		env = append(env, kv)
	}
	if r.ExbinDir != "" {
		if path == "" {
			path = r.ExbinDir
		} else {
			path = r.ExbinDir + string(os.PathListSeparator) + path
		}
	}
	env = append(env, "PATH="+path)
	return append(env, extra...)
}

func (r *ExecRunner) lookPath(tool string) (string, error) {
	if r.ExbinDir != "" {
		candidate := filepath.Join(r.ExbinDir, tool)
		if fi, err := os.Stat(candidate); err == nil && !fi.IsDir() && fi.Mode()&0o111 != 0 {
			return candidate, nil
		}
	}
	p, err := exec.LookPath(tool)
	if err != nil {
		return "", lainerr.New(lainerr.Precondition, err, "%s not found", tool).
			WithRemedy(fmt.Sprintf("install %s into %s, or export LAIN_EXBIN_PREFIX to where it lives", tool, r.ExbinDir))
	}
	return p, nil
}

func (r *ExecRunner) Run(ctx context.Context, tool string, args []string, opts RunOptions) (*Result, error) {
	bin, err := r.lookPath(tool)
	if err != nil {
		return nil, err
	}

	log.Debug("Running external command", "cmd", tool+" "+strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Env = r.Env(opts.Env...)

	var stdout, stderr bytes.Buffer
	switch {
	case opts.Interactive:
		cmd.Stdin = r.Stdin
		cmd.Stdout = r.Stdout
		cmd.Stderr = r.Stderr
	case opts.Stream:
		cmd.Stdout = io.MultiWriter(&stdout, r.Stdout)
		cmd.Stderr = io.MultiWriter(&stderr, r.Stderr)
	default:
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
	}
	if opts.Stdin != nil {
		cmd.Stdin = opts.Stdin
	}

	res := &Result{Tool: tool, Args: args}
	err = cmd.Run()
	res.Stdout, res.Stderr = stdout.Bytes(), stderr.Bytes()

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		if res.ExitCode < 0 {
			res.ExitCode = 1
		}
		return res, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to run %s: %w", tool, err)
	}

	return res, nil
}

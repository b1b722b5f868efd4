package engine

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

	"github.com/google/shlex"
)

const (
	defaultCommand = "docker"
	// waitDelay bounds how long a canceled command may keep its pipes open.
	waitDelay = 2 * time.Second
)

// Config controls how the engine binary is invoked.
type Config struct {
	// Command is the engine command line, e.g. "docker" or "sudo -n docker".
	Command string
	// Name overrides the engine name used in error messages. Empty derives it
	// from Command.
	Name string
	// Env is appended to the current process environment.
	Env []string
}

// wrappers run the engine on behalf of the caller and are skipped when
// naming it.
var wrappers = map[string]bool{
	"sudo":   true,
	"doas":   true,
	"env":    true,
	"nice":   true,
	"ionice": true,
}

type execInvoker struct {
	name     string
	path     string
	baseArgs []string
	env      []string
}

// NewExecInvoker creates an Invoker backed by os/exec.
func NewExecInvoker(cfg Config) (Invoker, error) {
	command := strings.TrimSpace(cfg.Command)
	if command == "" {
		command = defaultCommand
	}
	parts, err := shlex.Split(command)
	if err != nil {
		return nil, fmt.Errorf("parse engine command: %w", err)
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("engine command is empty")
	}
	var env []string
	if len(cfg.Env) > 0 {
		env = append(os.Environ(), cfg.Env...)
	}
	name := strings.TrimSpace(cfg.Name)
	if name == "" {
		name = engineName(parts)
	}
	return &execInvoker{
		name:     name,
		path:     parts[0],
		baseArgs: parts[1:],
		env:      env,
	}, nil
}

func (e *execInvoker) Name() string {
	return e.name
}

// engineName returns the binary behind any privilege or environment
// wrapper: "sudo -n docker" names docker.
func engineName(parts []string) string {
	name := filepath.Base(parts[0])
	if !wrappers[name] {
		return name
	}
	for i := len(parts) - 1; i > 0; i-- {
		if !strings.HasPrefix(parts[i], "-") && !strings.Contains(parts[i], "=") {
			return filepath.Base(parts[i])
		}
	}
	return name
}

func (e *execInvoker) Invoke(ctx context.Context, req Request) (Result, error) {
	args := make([]string, 0, len(e.baseArgs)+len(req.Args))
	args = append(args, e.baseArgs...)
	args = append(args, req.Args...)

	cmd := exec.CommandContext(ctx, e.path, args...)
	cmd.WaitDelay = waitDelay
	if e.env != nil {
		cmd.Env = e.env
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	if req.MergeOutput {
		cmd.Stderr = &stdout
	} else {
		cmd.Stderr = &stderr
	}

	runErr := cmd.Run()
	res := Result{
		ExitCode: exitCodeFromErr(runErr, cmd.ProcessState),
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}
	if runErr == nil {
		return res, nil
	}

	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) && ctx.Err() == nil {
		return res, nil
	}
	if ctx.Err() != nil {
		return res, fmt.Errorf("run %s: %w", e.Name(), ctx.Err())
	}
	return res, fmt.Errorf("run %s: %w", e.Name(), runErr)
}

func exitCodeFromErr(err error, state *os.ProcessState) int {
	if state != nil {
		return state.ExitCode()
	}
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

package engine

import (
	"context"
	"errors"
	"runtime"
	"strings"
	"testing"
	"time"
)

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
}

func TestExecInvokerCapturesStreams(t *testing.T) {
	requireShell(t)
	inv, err := NewExecInvoker(Config{Command: "sh -c"})
	if err != nil {
		t.Fatalf("new invoker: %v", err)
	}
	if inv.Name() != "sh" {
		t.Fatalf("unexpected name: %s", inv.Name())
	}

	res, err := inv.Invoke(context.Background(), Request{Args: []string{"echo out; echo err >&2; exit 3"}})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if res.ExitCode != 3 {
		t.Fatalf("expected exit code 3, got %d", res.ExitCode)
	}
	if res.Success() {
		t.Fatal("non-zero exit must not be success")
	}
	if res.Stdout != "out\n" {
		t.Fatalf("unexpected stdout: %q", res.Stdout)
	}
	if res.Stderr != "err\n" {
		t.Fatalf("unexpected stderr: %q", res.Stderr)
	}
}

func TestExecInvokerMergeOutput(t *testing.T) {
	requireShell(t)
	inv, err := NewExecInvoker(Config{Command: "sh -c"})
	if err != nil {
		t.Fatalf("new invoker: %v", err)
	}
	res, err := inv.Invoke(context.Background(), Request{
		Args:        []string{"echo one; echo two >&2; echo three"},
		MergeOutput: true,
	})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if res.Stdout != "one\ntwo\nthree\n" {
		t.Fatalf("unexpected merged output: %q", res.Stdout)
	}
	if res.Stderr != "" {
		t.Fatalf("stderr should be empty when merged: %q", res.Stderr)
	}
	if res.TrimmedStdout() != "one\ntwo\nthree" {
		t.Fatalf("unexpected trimmed output: %q", res.TrimmedStdout())
	}
}

func TestExecInvokerPassesEnv(t *testing.T) {
	requireShell(t)
	inv, err := NewExecInvoker(Config{Command: "sh -c", Env: []string{"STATEBOX_TEST=hello"}})
	if err != nil {
		t.Fatalf("new invoker: %v", err)
	}
	res, err := inv.Invoke(context.Background(), Request{Args: []string{"printf %s \"$STATEBOX_TEST\""}})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if res.Stdout != "hello" {
		t.Fatalf("unexpected stdout: %q", res.Stdout)
	}
}

func TestExecInvokerMissingBinary(t *testing.T) {
	inv, err := NewExecInvoker(Config{Command: "statebox-no-such-engine-binary"})
	if err != nil {
		t.Fatalf("new invoker: %v", err)
	}
	res, err := inv.Invoke(context.Background(), Request{Args: []string{"ps"}})
	if err == nil {
		t.Fatal("expected start error")
	}
	if res.ExitCode != -1 {
		t.Fatalf("expected exit code -1, got %d", res.ExitCode)
	}
}

func TestExecInvokerContextCancel(t *testing.T) {
	requireShell(t)
	inv, err := NewExecInvoker(Config{Command: "sh -c"})
	if err != nil {
		t.Fatalf("new invoker: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = inv.Invoke(ctx, Request{Args: []string{"sleep 5"}})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestNewExecInvokerCommandParsing(t *testing.T) {
	inv, err := NewExecInvoker(Config{})
	if err != nil {
		t.Fatalf("default command: %v", err)
	}
	if inv.Name() != "docker" {
		t.Fatalf("expected docker default, got %s", inv.Name())
	}

	inv, err = NewExecInvoker(Config{Command: "/usr/bin/sudo -n '/opt/engine bin/docker'"})
	if err != nil {
		t.Fatalf("quoted command: %v", err)
	}
	ei := inv.(*execInvoker)
	if ei.path != "/usr/bin/sudo" {
		t.Fatalf("unexpected path: %s", ei.path)
	}
	if strings.Join(ei.baseArgs, "|") != "-n|/opt/engine bin/docker" {
		t.Fatalf("unexpected base args: %v", ei.baseArgs)
	}

	if _, err := NewExecInvoker(Config{Command: "docker 'unterminated"}); err == nil {
		t.Fatal("expected parse error for unterminated quote")
	}
}

func TestExecInvokerNameSkipsWrappers(t *testing.T) {
	cases := []struct {
		cfg  Config
		want string
	}{
		{Config{Command: "docker"}, "docker"},
		{Config{Command: "sudo -n docker"}, "docker"},
		{Config{Command: "/usr/bin/sudo -n '/opt/engine bin/docker'"}, "docker"},
		{Config{Command: "env DOCKER_HOST=unix:///run/docker.sock docker"}, "docker"},
		{Config{Command: "podman --remote"}, "podman"},
		{Config{Command: "sudo -n docker", Name: "engine"}, "engine"},
	}
	for _, tc := range cases {
		inv, err := NewExecInvoker(tc.cfg)
		if err != nil {
			t.Fatalf("%q: %v", tc.cfg.Command, err)
		}
		if inv.Name() != tc.want {
			t.Fatalf("%q: name = %q, want %q", tc.cfg.Command, inv.Name(), tc.want)
		}
	}
}

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	appErr "statebox/pkg/errors"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Runner.Command != "docker" || cfg.Runner.SecretsMountPath != "/run/secrets" || cfg.Runner.SecretsMountOptions != "ro" {
		t.Fatalf("unexpected runner defaults %+v", cfg.Runner)
	}
	if cfg.Runner.CommandTimeout != defaultCommandTimeout {
		t.Fatalf("command timeout = %s", cfg.Runner.CommandTimeout)
	}
	if cfg.Server.Addr != defaultHTTPAddr || cfg.Server.ShutdownTimeout != defaultShutdownTimeout {
		t.Fatalf("unexpected server defaults %+v", cfg.Server)
	}
	if cfg.Logger.Level != "info" {
		t.Fatalf("log level = %q", cfg.Logger.Level)
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := writeFile(t, "statebox.yaml", `
Runner:
  Command: sudo -n docker
  Network: host
  CommandTimeout: 5s
Poll:
  Interval: 100ms
  MaxInterval: 2s
Server:
  Addr: 0.0.0.0:9000
`)
	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Runner.Command != "sudo -n docker" || cfg.Runner.Network != "host" {
		t.Fatalf("unexpected runner %+v", cfg.Runner)
	}
	if cfg.Runner.CommandTimeout != 5*time.Second {
		t.Fatalf("command timeout = %s", cfg.Runner.CommandTimeout)
	}
	if cfg.Poll.Interval != 100*time.Millisecond || cfg.Poll.MaxInterval != 2*time.Second {
		t.Fatalf("unexpected poll %+v", cfg.Poll)
	}
	if cfg.Server.Addr != "0.0.0.0:9000" {
		t.Fatalf("addr = %q", cfg.Server.Addr)
	}
	if cfg.Runner.SecretsMountPath != "/run/secrets" {
		t.Fatalf("mount path default lost: %q", cfg.Runner.SecretsMountPath)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadEnvFileKeepsOrder(t *testing.T) {
	path := writeFile(t, "env.yaml", "ZED: last-letter\nALPHA: first-letter\nPORT: \"8080\"\n")
	env, err := loadEnvFile(path)
	if err != nil {
		t.Fatalf("load env: %v", err)
	}
	got := make([]string, 0, len(env))
	for _, v := range env {
		got = append(got, v.String())
	}
	want := "ZED=last-letter ALPHA=first-letter PORT=8080"
	if strings.Join(got, " ") != want {
		t.Fatalf("env = %v", got)
	}
}

func TestLoadSecretsFile(t *testing.T) {
	path := writeFile(t, "secrets.yaml", "luggage_password: \"12345\"\n")
	secrets, err := loadSecretsFile(path)
	if err != nil {
		t.Fatalf("load secrets: %v", err)
	}
	if secrets["luggage_password"] != "12345" {
		t.Fatalf("secrets = %v", secrets)
	}
}

func TestBuildRequestMergesEnv(t *testing.T) {
	envPath := writeFile(t, "env.yaml", "FROM_FILE: a\n")
	opts := &runOptions{
		resource: "docker://hello-world",
		env:      multiFlag{"FOO=BAR"},
		envFile:  envPath,
	}
	req, err := opts.buildRequest()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(req.Env) != 2 || req.Env[0].Name != "FROM_FILE" || req.Env[1].String() != "FOO=BAR" {
		t.Fatalf("env = %v", req.Env)
	}
	if req.Secrets != nil {
		t.Fatalf("unexpected secrets %v", req.Secrets)
	}
}

func TestBuildRequestRejectsBadEnv(t *testing.T) {
	opts := &runOptions{resource: "docker://hello-world", env: multiFlag{"NOEQUALS"}}
	if _, err := opts.buildRequest(); !appErr.Is(err, appErr.InvalidParams) {
		t.Fatalf("expected InvalidParams, got %v", err)
	}
}

func TestRunUsageErrors(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run(nil, &stdout, &stderr); code != 2 {
		t.Fatalf("no command: exit %d", code)
	}
	if code := run([]string{"bogus"}, &stdout, &stderr); code != 2 {
		t.Fatalf("unknown command: exit %d", code)
	}
	if code := run([]string{"run", "extra"}, &stdout, &stderr); code != 2 {
		t.Fatalf("stray argument: exit %d", code)
	}
}

func TestRunInvalidResourceFailsBeforeEngine(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"run", "-resource", "arn:abcd:efgh"}, &stdout, &stderr)
	if code != 1 {
		t.Fatalf("exit %d, stderr %s", code, stderr.String())
	}
	if !strings.Contains(stderr.String(), "Invalid resource") {
		t.Fatalf("stderr = %q", stderr.String())
	}
}

func TestExitStatus(t *testing.T) {
	cases := map[int]int{0: 1, 1: 1, 2: 2, 137: 137, 300: 1, -1: 1}
	for in, want := range cases {
		if got := exitStatus(in); got != want {
			t.Fatalf("exitStatus(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestQueueConfigConversion(t *testing.T) {
	path := writeFile(t, "statebox.yaml", `
Queue:
  Brokers:
    - 127.0.0.1:9092
  Concurrency: 4
  DeadLetterTopic: statebox.dead
`)
	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Queue.TaskTopic != "statebox.tasks" || cfg.Queue.ResultTopic != "statebox.results" {
		t.Fatalf("unexpected topics %+v", cfg.Queue)
	}
	mqCfg := cfg.Queue.toMQConfig()
	if len(mqCfg.Brokers) != 1 || mqCfg.Brokers[0] != "127.0.0.1:9092" {
		t.Fatalf("brokers = %v", mqCfg.Brokers)
	}
	opts := cfg.Queue.toSubscribeOptions()
	if opts.Concurrency != 4 || opts.DeadLetterTopic != "statebox.dead" || opts.ConsumerGroup != "statebox-worker" {
		t.Fatalf("unexpected options %+v", opts)
	}
}

func TestWorkerRequiresBrokers(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run([]string{"worker"}, &stdout, &stderr); code != 1 {
		t.Fatalf("exit %d", code)
	}
	if !strings.Contains(stderr.String(), "brokers are required") {
		t.Fatalf("stderr = %q", stderr.String())
	}
}

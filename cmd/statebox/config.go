package main

import (
	"fmt"
	"os"
	"time"

	"statebox/internal/common/mq"
	"statebox/internal/runner/docker"
	"statebox/internal/runner/engine"
	"statebox/internal/runner/secret"
	"statebox/internal/runner/spec"
	"statebox/internal/runner/task"
	"statebox/pkg/utils/logger"

	"github.com/zeromicro/go-zero/core/conf"
	"gopkg.in/yaml.v3"
)

const (
	defaultEngineCommand   = "docker"
	defaultCommandTimeout  = 30 * time.Second
	defaultHTTPAddr        = "127.0.0.1:8090"
	defaultReadTimeout     = 5 * time.Second
	defaultWriteTimeout    = 10 * time.Minute
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 30 * time.Second
)

// RunnerConfig holds container engine settings.
type RunnerConfig struct {
	Command             string        `json:",default=docker"`
	EngineName          string        `json:",optional"`
	Network             string        `json:",optional"`
	SecretsMountPath    string        `json:",default=/run/secrets"`
	SecretsMountOptions string        `json:",default=ro"`
	SecretsDir          string        `json:",optional"`
	CommandTimeout      time.Duration `json:",default=30s"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string        `json:",default=127.0.0.1:8090"`
	ReadTimeout     time.Duration `json:",default=5s"`
	WriteTimeout    time.Duration `json:",default=10m"`
	IdleTimeout     time.Duration `json:",default=60s"`
	ShutdownTimeout time.Duration `json:",default=30s"`
}

// QueueConfig holds Kafka settings for the worker command.
type QueueConfig struct {
	Brokers         []string      `json:",optional"`
	ClientID        string        `json:",default=statebox"`
	TaskTopic       string        `json:",default=statebox.tasks"`
	ResultTopic     string        `json:",default=statebox.results"`
	DeadLetterTopic string        `json:",optional"`
	ConsumerGroup   string        `json:",default=statebox-worker"`
	Concurrency     int           `json:",default=1"`
	MaxRetries      int           `json:",default=3"`
	RetryDelay      time.Duration `json:",default=1s"`
	MaxRetryDelay   time.Duration `json:",default=30s"`
	MessageTTL      time.Duration `json:",optional"`
}

// Config holds statebox settings.
type Config struct {
	Logger logger.Config   `json:",optional"`
	Runner RunnerConfig    `json:",optional"`
	Poll   task.PollConfig `json:",optional"`
	Server ServerConfig    `json:",optional"`
	Queue  QueueConfig     `json:",optional"`
}

// loadConfig reads path when given and fills unset values with defaults.
func loadConfig(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		if err := conf.Load(path, &cfg); err != nil {
			return nil, fmt.Errorf("load config file failed: %w", err)
		}
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Logger.Level == "" {
		cfg.Logger.Level = "info"
	}
	if cfg.Logger.Format == "" {
		cfg.Logger.Format = "console"
	}
	if cfg.Runner.Command == "" {
		cfg.Runner.Command = defaultEngineCommand
	}
	if cfg.Runner.SecretsMountPath == "" {
		cfg.Runner.SecretsMountPath = docker.DefaultSecretsMountPath
	}
	if cfg.Runner.SecretsMountOptions == "" {
		cfg.Runner.SecretsMountOptions = docker.DefaultSecretsMountOptions
	}
	if cfg.Runner.CommandTimeout == 0 {
		cfg.Runner.CommandTimeout = defaultCommandTimeout
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaultHTTPAddr
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = defaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = defaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = defaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = defaultShutdownTimeout
	}
	if cfg.Queue.ClientID == "" {
		cfg.Queue.ClientID = "statebox"
	}
	if cfg.Queue.TaskTopic == "" {
		cfg.Queue.TaskTopic = "statebox.tasks"
	}
	if cfg.Queue.ResultTopic == "" {
		cfg.Queue.ResultTopic = "statebox.results"
	}
	if cfg.Queue.ConsumerGroup == "" {
		cfg.Queue.ConsumerGroup = "statebox-worker"
	}
	if cfg.Queue.Concurrency <= 0 {
		cfg.Queue.Concurrency = 1
	}
}

func (q QueueConfig) toMQConfig() mq.KafkaConfig {
	return mq.KafkaConfig{
		Brokers:  q.Brokers,
		ClientID: q.ClientID,
	}
}

func (q QueueConfig) toSubscribeOptions() *mq.SubscribeOptions {
	return &mq.SubscribeOptions{
		ConsumerGroup:   q.ConsumerGroup,
		Concurrency:     q.Concurrency,
		MaxRetries:      q.MaxRetries,
		RetryDelay:      q.RetryDelay,
		MaxRetryDelay:   q.MaxRetryDelay,
		DeadLetterTopic: q.DeadLetterTopic,
		MessageTTL:      q.MessageTTL,
	}
}

// newRunner assembles the docker runner from cfg.
func newRunner(cfg RunnerConfig) (*docker.Runner, error) {
	invoker, err := engine.NewExecInvoker(engine.Config{Command: cfg.Command, Name: cfg.EngineName})
	if err != nil {
		return nil, err
	}
	stager := secret.NewFileStager(secret.Config{Dir: cfg.SecretsDir})
	return docker.NewRunner(invoker, stager, docker.Options{
		Network:             cfg.Network,
		SecretsMountPath:    cfg.SecretsMountPath,
		SecretsMountOptions: cfg.SecretsMountOptions,
		CommandTimeout:      cfg.CommandTimeout,
	})
}

// loadEnvFile reads a YAML mapping of NAME: VALUE or a list of {name, value}.
func loadEnvFile(path string) (spec.Environment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read env file failed: %w", err)
	}
	var env spec.Environment
	if err := yaml.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("parse env file failed: %w", err)
	}
	return env, nil
}

// loadSecretsFile reads a flat YAML mapping of secret names to values.
func loadSecretsFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read secrets file failed: %w", err)
	}
	var secrets map[string]string
	if err := yaml.Unmarshal(data, &secrets); err != nil {
		return nil, fmt.Errorf("parse secrets file failed: %w", err)
	}
	return secrets, nil
}

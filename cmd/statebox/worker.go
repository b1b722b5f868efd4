package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"statebox/internal/common/mq"
	"statebox/internal/runner/task"
	"statebox/internal/runner/worker"
	"statebox/pkg/utils/logger"

	"go.uber.org/zap"
)

func workerCommand(ctx context.Context, cfg *Config, args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("worker", flag.ContinueOnError)
	fs.SetOutput(stderr)
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if len(cfg.Queue.Brokers) == 0 {
		return fmt.Errorf("queue brokers are required")
	}

	runner, err := newRunner(cfg.Runner)
	if err != nil {
		return err
	}
	executor, err := task.NewExecutor(runner, cfg.Poll)
	if err != nil {
		return err
	}

	queue, err := mq.NewKafkaQueue(cfg.Queue.toMQConfig())
	if err != nil {
		return fmt.Errorf("init kafka failed: %w", err)
	}
	defer func() {
		_ = queue.Close()
	}()

	w, err := worker.NewWorker(executor, queue, cfg.Queue.ResultTopic)
	if err != nil {
		return err
	}

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := queue.SubscribeWithOptions(runCtx, cfg.Queue.TaskTopic, w.HandleMessage, cfg.Queue.toSubscribeOptions()); err != nil {
		return fmt.Errorf("subscribe kafka failed: %w", err)
	}
	if err := queue.Start(); err != nil {
		return fmt.Errorf("start kafka consumer failed: %w", err)
	}
	logger.Info(ctx, "statebox worker started",
		zap.Strings("brokers", cfg.Queue.Brokers),
		zap.String("topic", cfg.Queue.TaskTopic),
		zap.Int("concurrency", cfg.Queue.Concurrency),
	)

	<-runCtx.Done()
	logger.Info(ctx, "shutdown signal received")
	return queue.Stop()
}

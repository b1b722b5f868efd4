// Package task drives one workflow state through a container: launch,
// wait for it to stop, collect its output and clean up.
package task

import (
	"context"
	"errors"
	"fmt"
	"time"

	"statebox/internal/runner/secret"
	"statebox/internal/runner/spec"
	appErr "statebox/pkg/errors"
	"statebox/pkg/utils/logger"

	"go.uber.org/zap"
)

const (
	defaultPollInterval    = 500 * time.Millisecond
	defaultMaxPollInterval = 5 * time.Second
	cleanupTimeout         = 30 * time.Second
)

// ContainerRunner is the subset of the docker runner the executor needs.
type ContainerRunner interface {
	Launch(ctx context.Context, resource string, env spec.Environment, secrets map[string]string) (spec.ContainerHandle, *secret.Handle, error)
	State(ctx context.Context, handle spec.ContainerHandle) (spec.ContainerState, error)
	FetchOutput(ctx context.Context, handle spec.ContainerHandle) (string, error)
	Cleanup(ctx context.Context, handle spec.ContainerHandle, staged secret.Disposer) error
}

// PollConfig controls how often a launched container is inspected.
type PollConfig struct {
	Interval    time.Duration `json:",default=500ms"`
	MaxInterval time.Duration `json:",default=5s"`
	// Timeout bounds a whole execution. Zero means no bound.
	Timeout time.Duration `json:",optional"`
}

// Request is one state execution.
type Request struct {
	Resource string
	Env      spec.Environment
	Secrets  map[string]string
}

// Outcome is the terminal result of an execution. A container that exits
// non-zero is reported through Succeeded, not as an error.
type Outcome struct {
	Handle    spec.ContainerHandle
	Succeeded bool
	ExitCode  int
	Output    string
	Polls     int
	Duration  time.Duration
}

// Executor runs requests to completion.
type Executor struct {
	runner ContainerRunner
	poll   PollConfig
}

// NewExecutor creates an executor around runner.
func NewExecutor(runner ContainerRunner, poll PollConfig) (*Executor, error) {
	if runner == nil {
		return nil, fmt.Errorf("container runner is required")
	}
	if poll.Interval <= 0 {
		poll.Interval = defaultPollInterval
	}
	if poll.MaxInterval <= 0 {
		poll.MaxInterval = defaultMaxPollInterval
	}
	if poll.MaxInterval < poll.Interval {
		poll.MaxInterval = poll.Interval
	}
	return &Executor{runner: runner, poll: poll}, nil
}

// Execute launches req, waits until the container stops and returns its
// output. The container and its secrets are cleaned up on every path
// after a successful launch, including cancellation.
func (e *Executor) Execute(ctx context.Context, req Request) (out Outcome, err error) {
	start := time.Now()
	if e.poll.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.poll.Timeout)
		defer cancel()
	}

	handle, staged, err := e.runner.Launch(ctx, req.Resource, req.Env, req.Secrets)
	if err != nil {
		return Outcome{}, err
	}
	out.Handle = handle

	defer func() {
		if cErr := e.cleanup(ctx, handle, staged); cErr != nil && err == nil {
			err = cErr
		}
		out.Duration = time.Since(start)
	}()

	state, polls, err := e.await(ctx, handle)
	out.Polls = polls
	if err != nil {
		return out, err
	}
	if state.ExitCode != nil {
		out.ExitCode = *state.ExitCode
	}
	out.Succeeded = state.Succeeded()

	output, err := e.runner.FetchOutput(ctx, handle)
	if err != nil {
		return out, err
	}
	out.Output = output

	logger.Info(ctx, "container finished",
		zap.String("container_id", string(handle)),
		zap.Bool("succeeded", out.Succeeded),
		zap.Int("exit_code", out.ExitCode),
		zap.Int("polls", polls),
	)
	return out, nil
}

// await inspects the container until it stops or ctx ends.
func (e *Executor) await(ctx context.Context, handle spec.ContainerHandle) (spec.ContainerState, int, error) {
	for attempt := 0; ; attempt++ {
		state, err := e.runner.State(ctx, handle)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return spec.ContainerState{}, attempt + 1, waitError(ctxErr, handle)
			}
			return spec.ContainerState{}, attempt + 1, err
		}
		if !state.Running {
			return state, attempt + 1, nil
		}

		delay := ComputeBackoff(attempt, e.poll.Interval, e.poll.MaxInterval)
		logger.Debug(ctx, "container still running",
			zap.String("container_id", string(handle)),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
		)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return spec.ContainerState{}, attempt + 1, waitError(ctx.Err(), handle)
		case <-timer.C:
		}
	}
}

// cleanup detaches from ctx cancellation so a canceled execution still
// removes its container.
func (e *Executor) cleanup(ctx context.Context, handle spec.ContainerHandle, staged *secret.Handle) error {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	var d secret.Disposer
	if staged != nil {
		d = staged
	}
	if err := e.runner.Cleanup(cctx, handle, d); err != nil {
		logger.Error(ctx, "cleanup failed", zap.String("container_id", string(handle)), zap.Error(err))
		return err
	}
	return nil
}

func waitError(err error, handle spec.ContainerHandle) error {
	code := appErr.Canceled
	if errors.Is(err, context.DeadlineExceeded) {
		code = appErr.Timeout
	}
	return appErr.Wrapf(err, code, "wait for container %s: %v", handle, err).
		WithDetail("container_id", string(handle))
}

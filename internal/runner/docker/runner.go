// Package docker runs workflow states in containers through the docker CLI.
package docker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"statebox/internal/runner/engine"
	"statebox/internal/runner/secret"
	"statebox/internal/runner/spec"
	appErr "statebox/pkg/errors"
	"statebox/pkg/utils/logger"

	"go.uber.org/zap"
)

const (
	// SecretsEnvName is the variable that tells in-container code where the
	// secrets file is mounted.
	SecretsEnvName = "SECRETS"

	DefaultSecretsMountPath    = "/run/secrets"
	DefaultSecretsMountOptions = "ro"

	// NetworkHost shares the host network namespace with the container.
	NetworkHost = "host"
)

// Options tunes the generated engine commands.
type Options struct {
	// Network is passed as --net on every launch variant when set.
	Network string
	// SecretsMountPath is where staged secrets appear inside the container.
	SecretsMountPath string
	// SecretsMountOptions is appended to the -v flag, e.g. "ro" or "ro,z".
	SecretsMountOptions string
	// CommandTimeout bounds inspect, logs and rm calls. Zero means no bound.
	CommandTimeout time.Duration
}

// Runner drives one container per launch. It keeps no state between calls.
type Runner struct {
	invoker engine.Invoker
	stager  secret.Stager
	opts    Options
}

// NewRunner creates a Runner on top of an engine invoker and secret stager.
func NewRunner(invoker engine.Invoker, stager secret.Stager, opts Options) (*Runner, error) {
	if invoker == nil {
		return nil, fmt.Errorf("engine invoker is required")
	}
	if stager == nil {
		return nil, fmt.Errorf("secret stager is required")
	}
	if opts.SecretsMountPath == "" {
		opts.SecretsMountPath = DefaultSecretsMountPath
	}
	if !strings.HasPrefix(opts.SecretsMountPath, "/") {
		return nil, fmt.Errorf("secrets mount path must be absolute: %q", opts.SecretsMountPath)
	}
	if opts.SecretsMountOptions == "" {
		opts.SecretsMountOptions = DefaultSecretsMountOptions
	}
	return &Runner{invoker: invoker, stager: stager, opts: opts}, nil
}

// Launch starts the resource detached and returns its container handle.
// When secrets are given, the returned secret handle is owned by the caller
// and must be passed back to Cleanup. On error nothing is left behind.
func (r *Runner) Launch(ctx context.Context, resource string, env spec.Environment, secrets map[string]string) (spec.ContainerHandle, *secret.Handle, error) {
	loc, err := parseLaunchInput(resource, env)
	if err != nil {
		return "", nil, err
	}

	staged, err := r.stageSecrets(ctx, secrets)
	if err != nil {
		return "", nil, err
	}

	args := r.launchArgs(launchDetached, loc, env, staged)
	res, err := r.exec(ctx, engine.Request{Args: args}, false)
	if err == nil && res.TrimmedStdout() == "" {
		err = appErr.Newf(appErr.SubprocessFailed, "%s run returned no container id", r.invoker.Name()).
			WithDetail(appErr.DetailCommand, "run")
	}
	if err != nil {
		r.discardSecrets(ctx, staged)
		return "", nil, err
	}

	handle := spec.ContainerHandle(res.TrimmedStdout())
	logger.Info(ctx, "container launched",
		zap.String("container_id", string(handle)),
		zap.String("image", loc.Image),
		zap.Bool("secrets", staged != nil),
	)
	return handle, staged, nil
}

// Run starts the resource with engine-side auto removal and blocks until it
// exits, returning the container output. Secrets staged for the run are
// disposed before Run returns.
func (r *Runner) Run(ctx context.Context, resource string, env spec.Environment, secrets map[string]string) (output string, err error) {
	loc, err := parseLaunchInput(resource, env)
	if err != nil {
		return "", err
	}

	staged, err := r.stageSecrets(ctx, secrets)
	if err != nil {
		return "", err
	}
	if staged != nil {
		defer func() {
			if dErr := staged.Dispose(); dErr != nil && err == nil {
				err = disposalError(dErr, staged.Path())
			}
		}()
	}

	args := r.launchArgs(launchAutoRemove, loc, env, staged)
	res, err := r.exec(ctx, engine.Request{Args: args, MergeOutput: true}, false)
	if err != nil {
		if res.Stdout != "" {
			appErr.GetError(err).WithDetail(appErr.DetailOutput, res.Stdout)
		}
		return "", err
	}
	logger.Info(ctx, "container run finished", zap.String("image", loc.Image))
	return res.Stdout, nil
}

// State inspects the container once.
func (r *Runner) State(ctx context.Context, handle spec.ContainerHandle) (spec.ContainerState, error) {
	if err := validateHandle(handle); err != nil {
		return spec.ContainerState{}, err
	}
	res, err := r.exec(ctx, engine.Request{Args: []string{"inspect", string(handle)}}, true)
	if err != nil {
		return spec.ContainerState{}, err
	}
	return parseInspect([]byte(res.Stdout))
}

// IsRunning reports whether the container was running as of this inspection.
func (r *Runner) IsRunning(ctx context.Context, handle spec.ContainerHandle) (bool, error) {
	state, err := r.State(ctx, handle)
	if err != nil {
		return false, err
	}
	return state.Running, nil
}

// Succeeded reports whether the container has stopped with exit code zero.
// It is only meaningful once IsRunning has returned false.
func (r *Runner) Succeeded(ctx context.Context, handle spec.ContainerHandle) (bool, error) {
	state, err := r.State(ctx, handle)
	if err != nil {
		return false, err
	}
	return state.Succeeded(), nil
}

// FetchOutput returns the container logs verbatim.
func (r *Runner) FetchOutput(ctx context.Context, handle spec.ContainerHandle) (string, error) {
	if err := validateHandle(handle); err != nil {
		return "", err
	}
	res, err := r.exec(ctx, engine.Request{Args: []string{"logs", string(handle)}, MergeOutput: true}, true)
	if err != nil {
		return "", err
	}
	return res.Stdout, nil
}

// RemoveContainer deletes the container record. Removing a container that
// is already gone is a command failure.
func (r *Runner) RemoveContainer(ctx context.Context, handle spec.ContainerHandle) error {
	if err := validateHandle(handle); err != nil {
		return err
	}
	_, err := r.exec(ctx, engine.Request{Args: []string{"rm", string(handle)}}, true)
	return err
}

// Cleanup removes the container and then disposes the staged secrets.
// A removal failure is logged and dropped; disposal always runs when staged
// is non-nil and its failure is returned.
func (r *Runner) Cleanup(ctx context.Context, handle spec.ContainerHandle, staged secret.Disposer) (err error) {
	if staged != nil {
		defer func() {
			if dErr := staged.Dispose(); dErr != nil {
				err = disposalError(dErr, stagedPath(staged))
			}
		}()
	}

	if rmErr := r.RemoveContainer(ctx, handle); rmErr != nil {
		logger.Warn(ctx, "remove container failed",
			zap.String("container_id", string(handle)),
			zap.Error(rmErr),
		)
		return nil
	}
	logger.Debug(ctx, "container removed", zap.String("container_id", string(handle)))
	return nil
}

func (r *Runner) stageSecrets(ctx context.Context, secrets map[string]string) (*secret.Handle, error) {
	if len(secrets) == 0 {
		return nil, nil
	}
	staged, err := r.stager.Stage(ctx, secrets)
	if err != nil {
		return nil, appErr.Wrap(err, appErr.SecretStageFailed)
	}
	return staged, nil
}

// discardSecrets undoes staging after a failed launch.
func (r *Runner) discardSecrets(ctx context.Context, staged *secret.Handle) {
	if staged == nil {
		return
	}
	if err := staged.Dispose(); err != nil {
		logger.Error(ctx, "dispose secrets after failed launch failed",
			zap.String("path", staged.Path()),
			zap.Error(err),
		)
	}
}

// exec runs one engine command and turns a non-zero exit into a
// SubprocessFailed error. bounded applies the configured command timeout.
func (r *Runner) exec(ctx context.Context, req engine.Request, bounded bool) (engine.Result, error) {
	if bounded && r.opts.CommandTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.CommandTimeout)
		defer cancel()
	}

	sub := req.Args[0]
	res, err := r.invoker.Invoke(ctx, req)
	if err != nil {
		return res, appErr.Wrapf(err, appErr.SubprocessFailed, "%s %s: %v", r.invoker.Name(), sub, err).
			WithDetail(appErr.DetailCommand, sub).
			WithDetail(appErr.DetailExitCode, res.ExitCode)
	}
	if res.Success() {
		return res, nil
	}

	stderr := res.Stderr
	if req.MergeOutput {
		stderr = res.Stdout
	}
	msg := fmt.Sprintf("%s exit code: %d", r.invoker.Name(), res.ExitCode)
	if trimmed := strings.TrimSpace(stderr); trimmed != "" {
		msg += ": " + firstLine(trimmed)
	}
	return res, appErr.New(appErr.SubprocessFailed).
		WithMessage(msg).
		WithDetail(appErr.DetailCommand, sub).
		WithDetail(appErr.DetailExitCode, res.ExitCode).
		WithDetail(appErr.DetailStderr, stderr)
}

func parseLaunchInput(resource string, env spec.Environment) (spec.ResourceLocator, error) {
	loc, err := spec.ParseResource(resource)
	if err != nil {
		return spec.ResourceLocator{}, err
	}
	if err := env.Validate(); err != nil {
		return spec.ResourceLocator{}, appErr.Wrapf(err, appErr.InvalidParams, "%v", err)
	}
	return loc, nil
}

func validateHandle(handle spec.ContainerHandle) error {
	if strings.TrimSpace(string(handle)) == "" {
		return appErr.ValidationError("container_id", "required")
	}
	return nil
}

func disposalError(err error, path string) error {
	e := appErr.Wrapf(err, appErr.DisposalFailed, "dispose staged secrets: %v", err)
	if path != "" {
		e.WithDetail("path", path)
	}
	return e
}

func stagedPath(d secret.Disposer) string {
	if p, ok := d.(interface{ Path() string }); ok {
		return p.Path()
	}
	return ""
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

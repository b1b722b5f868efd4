package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"statebox/internal/runner/spec"
	"statebox/internal/runner/task"
	appErr "statebox/pkg/errors"
	"statebox/pkg/utils/contextkey"
	"statebox/pkg/utils/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type runOptions struct {
	resource    string
	env         multiFlag
	envFile     string
	secretsFile string
	sync        bool
}

func parseRunFlags(args []string, stderr io.Writer) (*runOptions, error) {
	opts := &runOptions{}
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.resource, "resource", "", "Resource URI, e.g. docker://hello-world:latest")
	fs.Var(&opts.env, "env", "Environment entry NAME=VALUE (repeatable)")
	fs.StringVar(&opts.envFile, "env-file", "", "YAML file with environment entries")
	fs.StringVar(&opts.secretsFile, "secrets-file", "", "YAML file with secrets to mount")
	fs.BoolVar(&opts.sync, "sync", false, "Run attached with engine-side removal")
	if err := fs.Parse(args); err != nil {
		return nil, errUsage
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(stderr, "unexpected arguments: %v\n", fs.Args())
		return nil, errUsage
	}
	return opts, nil
}

// buildRequest merges file and flag environment; flags come last so they
// appear after file entries on the command line.
func (o *runOptions) buildRequest() (task.Request, error) {
	req := task.Request{Resource: o.resource}
	if o.envFile != "" {
		env, err := loadEnvFile(o.envFile)
		if err != nil {
			return req, err
		}
		req.Env = append(req.Env, env...)
	}
	for _, raw := range o.env {
		v, err := spec.ParseEnvVar(raw)
		if err != nil {
			return req, appErr.Wrapf(err, appErr.InvalidParams, "invalid -env %q: %v", raw, err)
		}
		req.Env = append(req.Env, v)
	}
	if o.secretsFile != "" {
		secrets, err := loadSecretsFile(o.secretsFile)
		if err != nil {
			return req, err
		}
		req.Secrets = secrets
	}
	return req, nil
}

func runCommand(ctx context.Context, cfg *Config, args []string, stdout, stderr io.Writer) error {
	opts, err := parseRunFlags(args, stderr)
	if err != nil {
		return err
	}
	req, err := opts.buildRequest()
	if err != nil {
		return err
	}

	runner, err := newRunner(cfg.Runner)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = context.WithValue(ctx, contextkey.ExecutionID, uuid.NewString())

	if opts.sync {
		output, err := runner.Run(ctx, req.Resource, req.Env, req.Secrets)
		if err != nil {
			if code, ok := appErr.ExitCode(err); ok && code > 0 {
				if e := appErr.GetError(err); e != nil {
					if out, ok := e.Details[appErr.DetailOutput].(string); ok {
						fmt.Fprint(stdout, out)
					}
				}
				return &exitError{code: code}
			}
			return err
		}
		fmt.Fprint(stdout, output)
		return nil
	}

	executor, err := task.NewExecutor(runner, cfg.Poll)
	if err != nil {
		return err
	}
	out, err := executor.Execute(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprint(stdout, out.Output)
	if !out.Succeeded {
		logger.Warn(ctx, "state failed",
			zap.String("container_id", string(out.Handle)),
			zap.Int("exit_code", out.ExitCode),
		)
		return &exitError{code: exitStatus(out.ExitCode)}
	}
	return nil
}

func exitStatus(code int) int {
	if code <= 0 || code > 255 {
		return 1
	}
	return code
}

package docker

import (
	"statebox/internal/runner/secret"
	"statebox/internal/runner/spec"
)

type launchMode int

const (
	launchDetached launchMode = iota
	launchAutoRemove
)

func (m launchMode) flag() string {
	if m == launchAutoRemove {
		return "--rm"
	}
	return "--detach"
}

// launchArgs builds the run argument vector. Order is fixed: mode flag,
// caller environment in order, secrets variable and volume, network,
// image last.
func (r *Runner) launchArgs(mode launchMode, loc spec.ResourceLocator, env spec.Environment, staged *secret.Handle) []string {
	args := make([]string, 0, 2+2*len(env)+7)
	args = append(args, "run", mode.flag())
	for _, v := range env {
		args = append(args, "-e", v.String())
	}
	if staged != nil {
		args = append(args,
			"-e", SecretsEnvName+"="+r.opts.SecretsMountPath,
			"-v", r.secretsVolume(staged.Path()),
		)
	}
	if r.opts.Network != "" {
		args = append(args, "--net", r.opts.Network)
	}
	return append(args, loc.Image)
}

func (r *Runner) secretsVolume(hostPath string) string {
	volume := hostPath + ":" + r.opts.SecretsMountPath
	if r.opts.SecretsMountOptions != "" {
		volume += ":" + r.opts.SecretsMountOptions
	}
	return volume
}

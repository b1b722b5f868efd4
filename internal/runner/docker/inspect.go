package docker

import (
	"encoding/json"

	"statebox/internal/runner/spec"
	appErr "statebox/pkg/errors"
)

// inspectEntry is the subset of `inspect` output the runner reads.
type inspectEntry struct {
	State *struct {
		Running  *bool `json:"Running"`
		ExitCode *int  `json:"ExitCode"`
	} `json:"State"`
}

// parseInspect expects a JSON array holding exactly one container.
func parseInspect(out []byte) (spec.ContainerState, error) {
	var entries []inspectEntry
	if err := json.Unmarshal(out, &entries); err != nil {
		return spec.ContainerState{}, appErr.Wrapf(err, appErr.InspectParseFailed, "decode inspect output: %v", err)
	}
	if len(entries) != 1 {
		return spec.ContainerState{}, appErr.Newf(appErr.InspectParseFailed, "inspect returned %d entries, want 1", len(entries))
	}
	st := entries[0].State
	if st == nil || st.Running == nil {
		return spec.ContainerState{}, appErr.Newf(appErr.InspectParseFailed, "inspect output has no State.Running")
	}
	if *st.Running {
		return spec.ContainerState{Running: true}, nil
	}
	if st.ExitCode == nil {
		return spec.ContainerState{}, appErr.Newf(appErr.InspectParseFailed, "stopped container has no State.ExitCode")
	}
	code := *st.ExitCode
	return spec.ContainerState{ExitCode: &code}, nil
}

package controller

import (
	"context"
	"net/http"
	"strings"

	"statebox/internal/runner/secret"
	"statebox/internal/runner/spec"
	appErr "statebox/pkg/errors"
	"statebox/pkg/utils/logger"
	"statebox/pkg/utils/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ContainerRunner is the runner surface exposed over HTTP.
type ContainerRunner interface {
	Launch(ctx context.Context, resource string, env spec.Environment, secrets map[string]string) (spec.ContainerHandle, *secret.Handle, error)
	Run(ctx context.Context, resource string, env spec.Environment, secrets map[string]string) (string, error)
	State(ctx context.Context, handle spec.ContainerHandle) (spec.ContainerState, error)
	FetchOutput(ctx context.Context, handle spec.ContainerHandle) (string, error)
	Cleanup(ctx context.Context, handle spec.ContainerHandle, staged secret.Disposer) error
}

// LaunchRequest is the body of a launch or run call.
type LaunchRequest struct {
	Resource string            `json:"resource"`
	Env      spec.Environment  `json:"env"`
	Secrets  map[string]string `json:"secrets"`
}

// ContainerView describes a tracked container.
type ContainerView struct {
	ID        string `json:"id"`
	Running   bool   `json:"running"`
	ExitCode  *int   `json:"exit_code,omitempty"`
	Succeeded bool   `json:"succeeded"`
}

// OutputView carries container output.
type OutputView struct {
	ID     string `json:"id,omitempty"`
	Output string `json:"output"`
}

// ContainerController handles container lifecycle requests.
type ContainerController struct {
	runner   ContainerRunner
	registry *Registry
}

// NewContainerController creates a new controller.
func NewContainerController(runner ContainerRunner, registry *Registry) *ContainerController {
	if registry == nil {
		registry = NewRegistry()
	}
	return &ContainerController{runner: runner, registry: registry}
}

// Launch starts a detached container.
func (h *ContainerController) Launch(c *gin.Context) {
	var req LaunchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}
	handle, staged, err := h.runner.Launch(c.Request.Context(), req.Resource, req.Env, req.Secrets)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.registry.Track(handle, staged)
	response.SuccessWithStatus(c, http.StatusCreated, ContainerView{ID: string(handle), Running: true})
}

// GetState inspects one tracked container.
func (h *ContainerController) GetState(c *gin.Context) {
	handle, ok := h.trackedHandle(c)
	if !ok {
		return
	}
	state, err := h.runner.State(c.Request.Context(), handle)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, ContainerView{
		ID:        string(handle),
		Running:   state.Running,
		ExitCode:  state.ExitCode,
		Succeeded: state.Succeeded(),
	})
}

// GetOutput returns the logs of a stopped container.
func (h *ContainerController) GetOutput(c *gin.Context) {
	handle, ok := h.trackedHandle(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	state, err := h.runner.State(ctx, handle)
	if err != nil {
		response.Error(c, err)
		return
	}
	if state.Running {
		response.Error(c, appErr.New(appErr.ContainerNotDone).WithDetail("container_id", string(handle)))
		return
	}
	output, err := h.runner.FetchOutput(ctx, handle)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, OutputView{ID: string(handle), Output: output})
}

// Delete removes a container and disposes its secrets. The container stays
// tracked when cleanup fails so Shutdown still reports it.
func (h *ContainerController) Delete(c *gin.Context) {
	handle, ok := h.trackedHandle(c)
	if !ok {
		return
	}
	staged, _ := h.registry.Lookup(handle)
	var d secret.Disposer
	if staged != nil {
		d = staged
	}
	if err := h.runner.Cleanup(c.Request.Context(), handle, d); err != nil {
		response.Error(c, err)
		return
	}
	h.registry.Release(handle)
	response.Success(c, gin.H{"id": string(handle)})
}

// Run starts a container and blocks until it exits.
func (h *ContainerController) Run(c *gin.Context) {
	var req LaunchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}
	output, err := h.runner.Run(c.Request.Context(), req.Resource, req.Env, req.Secrets)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, OutputView{Output: output})
}

// Shutdown cleans up every container still tracked. Each one is attempted
// even if an earlier cleanup fails; the first failure is returned.
func (h *ContainerController) Shutdown(ctx context.Context) error {
	var first error
	for handle, staged := range h.registry.Drain() {
		var d secret.Disposer
		if staged != nil {
			d = staged
		}
		if err := h.runner.Cleanup(ctx, handle, d); err != nil {
			logger.Error(ctx, "cleanup on shutdown failed", zap.String("container_id", string(handle)), zap.Error(err))
			if first == nil {
				first = err
			}
			continue
		}
		logger.Info(ctx, "container cleaned up on shutdown", zap.String("container_id", string(handle)))
	}
	return first
}

func (h *ContainerController) trackedHandle(c *gin.Context) (spec.ContainerHandle, bool) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		response.BadRequest(c, "Invalid container id")
		return "", false
	}
	handle := spec.ContainerHandle(id)
	if !h.registry.Tracked(handle) {
		response.Error(c, appErr.New(appErr.ContainerNotTracked).WithDetail("container_id", id))
		return "", false
	}
	return handle, true
}

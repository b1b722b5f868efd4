// Package worker executes state run requests delivered through a message
// queue and publishes one result event per request.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"statebox/internal/common/mq"
	"statebox/internal/runner/spec"
	"statebox/internal/runner/task"
	appErr "statebox/pkg/errors"
	"statebox/pkg/utils/contextkey"
	"statebox/pkg/utils/logger"

	"go.uber.org/zap"
)

const headerTraceID = "x-trace-id"

// Executor runs one request to completion.
type Executor interface {
	Execute(ctx context.Context, req task.Request) (task.Outcome, error)
}

// TaskMessage is the body of a run request.
type TaskMessage struct {
	ID       string            `json:"id"`
	Resource string            `json:"resource"`
	Env      spec.Environment  `json:"env,omitempty"`
	Secrets  map[string]string `json:"secrets,omitempty"`
}

// ResultError describes why a request produced no outcome.
type ResultError struct {
	Code    appErr.ErrorCode `json:"code"`
	Message string           `json:"message"`
}

// ResultEvent is published once per handled request.
type ResultEvent struct {
	ID          string       `json:"id"`
	ContainerID string       `json:"container_id,omitempty"`
	Succeeded   bool         `json:"succeeded"`
	ExitCode    int          `json:"exit_code"`
	Output      string       `json:"output,omitempty"`
	Error       *ResultError `json:"error,omitempty"`
	FinishedAt  time.Time    `json:"finished_at"`
	DurationMs  int64        `json:"duration_ms"`
}

// Worker turns queue messages into executions.
type Worker struct {
	executor    Executor
	producer    mq.Producer
	resultTopic string

	// pending holds results whose publish failed, keyed by message id, so a
	// redelivery republishes instead of running the state again.
	mu      sync.Mutex
	pending map[string]ResultEvent
}

// NewWorker creates a worker that reports to resultTopic.
func NewWorker(executor Executor, producer mq.Producer, resultTopic string) (*Worker, error) {
	if executor == nil {
		return nil, fmt.Errorf("executor is required")
	}
	if producer == nil {
		return nil, fmt.Errorf("producer is required")
	}
	if resultTopic == "" {
		return nil, fmt.Errorf("result topic is required")
	}
	return &Worker{
		executor:    executor,
		producer:    producer,
		resultTopic: resultTopic,
		pending:     make(map[string]ResultEvent),
	}, nil
}

// HandleMessage executes one request. Execution failures are reported as
// result events; only a failed publish is returned so the queue retries it.
// A retried message republishes the stored result without executing again.
func (w *Worker) HandleMessage(ctx context.Context, msg *mq.Message) error {
	if msg == nil {
		return nil
	}
	if event, ok := w.pendingResult(msg.ID); ok {
		if traceID, ok := msg.GetHeader(headerTraceID); ok {
			ctx = context.WithValue(ctx, contextkey.TraceID, traceID)
		}
		ctx = context.WithValue(ctx, contextkey.ExecutionID, event.ID)
		logger.Info(ctx, "republishing stored result", zap.String("message_id", msg.ID), zap.Int("retry_count", msg.RetryCount))
		return w.deliver(ctx, msg, event)
	}

	var tm TaskMessage
	if err := json.Unmarshal(msg.Body, &tm); err != nil {
		logger.Warn(ctx, "discarding undecodable task message", zap.String("message_id", msg.ID), zap.Error(err))
		return w.deliver(ctx, msg, ResultEvent{
			ID:         msg.ID,
			Error:      &ResultError{Code: appErr.InvalidParams, Message: "invalid task message"},
			FinishedAt: time.Now(),
		})
	}
	if tm.ID == "" {
		tm.ID = msg.ID
	}

	ctx = context.WithValue(ctx, contextkey.ExecutionID, tm.ID)
	if traceID, ok := msg.GetHeader(headerTraceID); ok {
		ctx = context.WithValue(ctx, contextkey.TraceID, traceID)
	}

	logger.Info(ctx, "task received", zap.String("resource", tm.Resource), zap.Int("retry_count", msg.RetryCount))
	out, err := w.executor.Execute(ctx, task.Request{
		Resource: tm.Resource,
		Env:      tm.Env,
		Secrets:  tm.Secrets,
	})

	event := ResultEvent{
		ID:          tm.ID,
		ContainerID: string(out.Handle),
		Succeeded:   out.Succeeded && err == nil,
		ExitCode:    out.ExitCode,
		Output:      out.Output,
		FinishedAt:  time.Now(),
		DurationMs:  out.Duration.Milliseconds(),
	}
	if err != nil {
		e := appErr.GetError(err)
		event.Error = &ResultError{Code: e.Code, Message: e.Error()}
		logger.Warn(ctx, "task failed", zap.Int("code", int(e.Code)), zap.Error(err))
	}
	return w.deliver(ctx, msg, event)
}

// deliver publishes event for msg. On failure the event is kept for the
// queue's next attempt unless this was the last one.
func (w *Worker) deliver(ctx context.Context, msg *mq.Message, event ResultEvent) error {
	err := w.publish(ctx, event)
	w.mu.Lock()
	defer w.mu.Unlock()
	if err == nil || msg.RetryCount >= msg.MaxRetries {
		delete(w.pending, msg.ID)
	} else {
		w.pending[msg.ID] = event
	}
	return err
}

func (w *Worker) pendingResult(id string) (ResultEvent, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	event, ok := w.pending[id]
	return event, ok
}

// Pending reports how many results are waiting to be republished.
func (w *Worker) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

func (w *Worker) publish(ctx context.Context, event ResultEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return appErr.Wrapf(err, appErr.InternalServerError, "encode result event: %v", err)
	}
	msg := mq.NewMessage(event.ID, body)
	if traceID, ok := ctx.Value(contextkey.TraceID).(string); ok && traceID != "" {
		msg.SetHeader(headerTraceID, traceID)
	}
	if err := w.producer.Publish(ctx, w.resultTopic, msg); err != nil {
		return appErr.Wrapf(err, appErr.ServiceUnavailable, "publish result event: %v", err)
	}
	return nil
}

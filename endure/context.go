package endure

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	"github.com/endurehq/endure-go/internal/engineclient"
	"github.com/endurehq/endure-go/pkg/logger"
	"github.com/endurehq/endure-go/pkg/metrics"
)

// ActionFunc is a single unit of work inside a workflow. It receives the
// request context for cancellation and the input it was invoked with.
type ActionFunc func(ctx context.Context, input any) (any, error)

// ActionOption configures one ExecuteAction call.
type ActionOption func(*actionOptions)

type actionOptions struct {
	name string
}

// WithActionName overrides the action name otherwise derived from the
// function symbol. Use it to correlate logs for the same logical step when
// the same function runs several times in one workflow.
func WithActionName(name string) ActionOption {
	return func(o *actionOptions) { o.name = name }
}

// WorkflowContext coordinates one workflow execution with the durable
// engine. It is created per invocation by the workflow handler and owns the
// in-flight action state for its execution; two actions on the same context
// never run in parallel because the workflow function orders them.
type WorkflowContext struct {
	ExecutionID string

	reqCtx context.Context
	client *engineclient.Client
	log    *logger.Logger
}

// Context returns the inbound request's context. Cancelling it aborts
// in-flight engine calls and retry sleeps.
func (wc *WorkflowContext) Context() context.Context {
	if wc.reqCtx != nil {
		return wc.reqCtx
	}
	return context.Background()
}

// NewWorkflowContext builds a context for the given execution, resolving
// the engine from the environment. Workflow handlers build contexts
// themselves; this constructor exists for embedding the SDK in custom
// hosts.
func NewWorkflowContext(executionID string) (*WorkflowContext, error) {
	client, err := engineclient.FromEnv()
	if err != nil {
		return nil, err
	}
	return &WorkflowContext{
		ExecutionID: executionID,
		client:      client,
		log:         logger.NewDefault("endure"),
	}, nil
}

// ExecuteAction runs action with durability guarantees: the engine observes
// a STARTED log before the action runs, a COMPLETED log with the result on
// success and FAILED logs on every failed attempt. The engine is the retry
// authority; the SDK obeys the retry_at it returns. A 208 acknowledgment of
// the STARTED log means an earlier invocation already succeeded and the
// cached output is returned without running the action.
//
// maxRetries is declared to the engine and enforced by it through the
// responses it returns. retryMechanism names the backoff policy the engine
// applies.
func (wc *WorkflowContext) ExecuteAction(
	ctx context.Context,
	action ActionFunc,
	input any,
	maxRetries int,
	retryMechanism RetryMechanism,
	opts ...ActionOption,
) (any, error) {
	if action == nil {
		return nil, NewValueError("action must be provided")
	}
	if maxRetries < 0 {
		return nil, NewValueError("max retries must be non-negative, got %d", maxRetries)
	}

	var o actionOptions
	for _, opt := range opts {
		opt(&o)
	}
	name := o.name
	if name == "" {
		name = functionName(action)
	}

	canonical, err := toJSONValue(input)
	if err != nil {
		return nil, err
	}

	started := engineclient.NewLog(engineclient.StatusStarted)
	started.Input = canonical
	started.MaxRetries = &maxRetries
	started.RetryMechanism = retryMechanism

	resp, err := wc.client.SendLog(ctx, wc.ExecutionID, started, name)
	if err != nil {
		return nil, err
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		return wc.runAction(ctx, action, input, name)
	case http.StatusAlreadyReported:
		// An earlier invocation of this (execution, action) already
		// succeeded; return its output without running the action.
		wc.log.WithField("action", name).Debug("returning cached action output")
		if out := gjson.GetBytes(resp.Raw, "output"); out.Exists() && out.Type != gjson.Null {
			return out.Value(), nil
		}
		return map[string]any{}, nil
	default:
		return nil, &ProtocolError{
			StatusCode: resp.StatusCode,
			Detail:     fmt.Sprintf("unexpected acknowledgment of started log for action %q", name),
		}
	}
}

// runAction is the execution loop: run, report, and either finish or sleep
// until the engine's retry_at and run again.
func (wc *WorkflowContext) runAction(ctx context.Context, action ActionFunc, input any, name string) (any, error) {
	for {
		start := time.Now()
		result, err := invokeAction(ctx, action, input)
		if err == nil {
			metrics.ObserveAction("completed", time.Since(start))
			output, serr := toJSONValue(result)
			if serr != nil {
				if ferr := wc.sendFailed(ctx, name, serr); ferr != nil {
					return nil, ferr
				}
				return nil, serr
			}
			completed := engineclient.NewLog(engineclient.StatusCompleted)
			completed.Output = output
			if _, serr := wc.client.SendLog(ctx, wc.ExecutionID, completed, name); serr != nil {
				return nil, serr
			}
			return result, nil
		}
		metrics.ObserveAction("failed", time.Since(start))

		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			// Host cancelled the request; surface it without extra logging.
			return nil, err
		}

		if isNonRetryable(err) {
			if ferr := wc.sendFailed(ctx, name, err); ferr != nil {
				return nil, ferr
			}
			return nil, err
		}

		failed := engineclient.NewLog(engineclient.StatusFailed)
		failed.Output = map[string]any{"error": err.Error()}
		resp, serr := wc.client.SendLog(ctx, wc.ExecutionID, failed, name)
		if serr != nil {
			return nil, serr
		}

		switch resp.StatusCode {
		case http.StatusOK:
			// Retry scheduled; the engine tells us when.
			retryAt := gjson.GetBytes(resp.Raw, "retry_at")
			if !retryAt.Exists() {
				return nil, &ProtocolError{
					StatusCode: resp.StatusCode,
					Detail:     fmt.Sprintf("retry scheduled for action %q without retry_at", name),
				}
			}
			if werr := wc.waitForRetry(ctx, name, retryAt.Float()); werr != nil {
				return nil, werr
			}
			metrics.RecordActionRetry()
		case http.StatusBadRequest, http.StatusNotFound:
			return nil, NewError(http.StatusInternalServerError, map[string]any{
				"error": "Action failed after reaching max retries",
			})
		case http.StatusConflict:
			return nil, NewError(http.StatusConflict, map[string]any{
				"error": "Execution paused or terminated",
			})
		default:
			return nil, &ProtocolError{
				StatusCode: resp.StatusCode,
				Detail:     fmt.Sprintf("unexpected acknowledgment of failed log for action %q", name),
			}
		}
	}
}

// sendFailed reports a terminal failure. The original error still
// propagates; a transport failure while reporting takes precedence.
func (wc *WorkflowContext) sendFailed(ctx context.Context, name string, cause error) error {
	failed := engineclient.NewLog(engineclient.StatusFailed)
	failed.Output = map[string]any{"error": cause.Error()}
	_, err := wc.client.SendLog(ctx, wc.ExecutionID, failed, name)
	return err
}

// waitForRetry sleeps until the engine's retry_at (unix seconds). A
// retry_at in the past means the attempt proceeds immediately.
func (wc *WorkflowContext) waitForRetry(ctx context.Context, name string, retryAtUnix float64) error {
	delay := time.Duration((retryAtUnix - float64(time.Now().UnixNano())/float64(time.Second)) * float64(time.Second))
	if delay <= 0 {
		wc.log.WithField("action", name).Warn("retry_at is in the past; retrying immediately")
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// invokeAction shields the protocol loop from panicking user code.
func invokeAction(ctx context.Context, action ActionFunc, input any) (result any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("action panicked: %v", rec)
		}
	}()
	return action(ctx, input)
}

// Package worker implements the background rate cache warm-up task.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"rateservice/internal/reqctx"
	"rateservice/internal/service"
)

// TaskTypeWarmRates is the Asynq task type for rate cache warm-up jobs.
const TaskTypeWarmRates = "rates:warm"

// WarmRatesPayload is the payload structure for warm-up tasks.
type WarmRatesPayload struct {
	Base      string `json:"base"`
	RequestID string `json:"request_id,omitempty"`
}

// Warmer pre-populates the rate store for a base currency.
type Warmer interface {
	Warm(ctx context.Context, base string) (int, error)
}

// NewWarmRatesHandler returns a function to handle warm-up tasks.
// Unsupported base currencies are not retried; provider outages are.
func NewWarmRatesHandler(w Warmer, logger *zap.SugaredLogger) func(context.Context, *asynq.Task) error {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload WarmRatesPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			logger.Errorw("Invalid task payload", "type", t.Type(), "error", err)
			return nil
		}
		ctx = reqctx.WithRequestID(ctx, payload.RequestID)

		n, err := w.Warm(ctx, payload.Base)
		if errors.Is(err, service.ErrRateNotFound) {
			logger.Warnw("Warm-up skipped", "base", payload.Base, "request_id", payload.RequestID, "error", err)
			return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
		}
		if err != nil {
			logger.Errorw("Task processing failed", "base", payload.Base, "request_id", payload.RequestID, "error", err)
			return err
		}

		logger.Infow("Task completed", "base", payload.Base, "written", n, "request_id", payload.RequestID)
		return nil
	}
}

// AsynqEnqueuer enqueues warm-up tasks with the configured retry and timeout policy.
type AsynqEnqueuer struct {
	client   *asynq.Client
	maxRetry int
	timeout  time.Duration
}

// NewAsynqEnqueuer creates a new AsynqEnqueuer with the given client, retry limit, and task timeout duration.
func NewAsynqEnqueuer(client *asynq.Client, maxRetry int, timeout time.Duration) *AsynqEnqueuer {
	return &AsynqEnqueuer{
		client:   client,
		maxRetry: maxRetry,
		timeout:  timeout,
	}
}

// NewWarmRatesTask builds the Asynq task for payload.
func (e *AsynqEnqueuer) NewWarmRatesTask(payload WarmRatesPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeWarmRates, data,
		asynq.TaskID(uuid.NewString()),
		asynq.MaxRetry(e.maxRetry),
		asynq.Timeout(e.timeout),
	), nil
}

// EnqueueWarm enqueues a warm-up task for base and returns the task ID.
func (e *AsynqEnqueuer) EnqueueWarm(ctx context.Context, base string) (string, error) {
	task, err := e.NewWarmRatesTask(WarmRatesPayload{Base: base, RequestID: reqctx.RequestID(ctx)})
	if err != nil {
		return "", err
	}

	info, err := e.client.EnqueueContext(ctx, task)
	if err != nil {
		return "", err
	}
	return info.ID, nil
}

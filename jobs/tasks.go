package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/pricedesk/pricedesk/internal/backend"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskForecastRefresh asks the backend to recompute demand forecasts.
	TaskForecastRefresh = "products:forecast_refresh"
)

// ForecastRefreshPayload describes one refresh request. Token is the bearer
// token of the user who asked, so the backend applies their permissions.
type ForecastRefreshPayload struct {
	Token      string  `json:"token"`
	ProductIDs []int64 `json:"product_ids"`
}

// NewForecastRefreshTask constructs an Asynq task.
func NewForecastRefreshTask(payload ForecastRefreshPayload) (*asynq.Task, error) {
	if len(payload.ProductIDs) == 0 {
		return nil, errors.New("jobs: forecast refresh without products")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskForecastRefresh, data, asynq.Queue(QueueDefault), asynq.MaxRetry(3)), nil
}

// Refresher recomputes forecasts; catalog.Service satisfies it.
type Refresher interface {
	RefreshForecasts(ctx context.Context, token string, ids []int64) error
}

// JobObserver records job outcomes.
type JobObserver interface {
	ObserveJob(task string, err error)
}

// ForecastRefreshJob handles TaskForecastRefresh.
type ForecastRefreshJob struct {
	refresher Refresher
	logger    *slog.Logger
	observer  JobObserver
}

// NewForecastRefreshJob constructs the job handler.
func NewForecastRefreshJob(refresher Refresher, logger *slog.Logger, observer JobObserver) *ForecastRefreshJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &ForecastRefreshJob{refresher: refresher, logger: logger, observer: observer}
}

// Handle processes one task. Malformed payloads and rejected tokens are not
// retried; an unreachable backend is.
func (j *ForecastRefreshJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j.observer != nil {
		defer func() { j.observer.ObserveJob(TaskForecastRefresh, err) }()
	}
	var payload ForecastRefreshPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	if err := j.refresher.RefreshForecasts(ctx, payload.Token, payload.ProductIDs); err != nil {
		j.logger.Warn("forecast refresh failed", slog.Int("products", len(payload.ProductIDs)), slog.Any("error", err))
		if errors.Is(err, backend.ErrUnavailable) {
			return err
		}
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	j.logger.Info("forecast refresh done", slog.Int("products", len(payload.ProductIDs)))
	return nil
}

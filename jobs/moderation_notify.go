package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/stackit-qa/stackit/internal/jobs"
	"github.com/stackit-qa/stackit/internal/moderation"
)

// Deliverer persists a moderation notification.
type Deliverer interface {
	Deliver(ctx context.Context, n moderation.Notification) error
}

// ModerationNotifyJob handles TaskModerationNotify.
type ModerationNotifyJob struct {
	Deliverer Deliverer
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewModerationNotifyJob wires dependencies for the notify handler.
func NewModerationNotifyJob(deliverer Deliverer, logger *slog.Logger, metrics *jobmetrics.Metrics) *ModerationNotifyJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &ModerationNotifyJob{Deliverer: deliverer, Logger: logger, Metrics: metrics}
}

// Handle decodes the notification and hands it to the Deliverer. Malformed
// payloads are not retried.
func (j *ModerationNotifyJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Deliverer == nil {
		return errors.New("moderation notify: handler not configured")
	}
	var n moderation.Notification
	if err := json.Unmarshal(t.Payload(), &n); err != nil {
		return fmt.Errorf("moderation notify: decode: %v: %w", err, asynq.SkipRetry)
	}
	if n.UserID == "" || n.LogID == "" {
		return fmt.Errorf("moderation notify: missing user or log id: %w", asynq.SkipRetry)
	}

	tracker := j.Metrics.Track(TaskModerationNotify)
	err := j.Deliverer.Deliver(ctx, n)
	if err != nil {
		j.Logger.Error("deliver moderation notice", slog.String("log_id", n.LogID), slog.String("user_id", n.UserID), slog.Any("error", err))
	} else {
		j.Logger.Info("moderation notice delivered", slog.String("log_id", n.LogID), slog.String("user_id", n.UserID))
	}
	return tracker.End(err)
}

package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/stackit-qa/stackit/internal/jobs"
)

// Purger removes expired session rows.
type Purger interface {
	PurgeExpiredSessions(ctx context.Context) (int64, error)
}

// SessionsPurgeJob handles TaskSessionsPurge.
type SessionsPurgeJob struct {
	Purger  Purger
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewSessionsPurgeJob wires dependencies for the purge handler.
func NewSessionsPurgeJob(purger Purger, logger *slog.Logger, metrics *jobmetrics.Metrics) *SessionsPurgeJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionsPurgeJob{Purger: purger, Logger: logger, Metrics: metrics}
}

// Handle deletes expired sessions.
func (j *SessionsPurgeJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.Purger == nil {
		return errors.New("sessions purge: handler not configured")
	}
	tracker := j.Metrics.Track(TaskSessionsPurge)
	n, err := j.Purger.PurgeExpiredSessions(ctx)
	if err != nil {
		j.Logger.Error("purge sessions", slog.Any("error", err))
		return tracker.End(err)
	}
	j.Metrics.AddPurgedSessions(n)
	j.Logger.Info("expired sessions purged", slog.Int64("count", n))
	return tracker.End(nil)
}

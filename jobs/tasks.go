package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"

	"github.com/stackit-qa/stackit/internal/moderation"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskModerationNotify delivers a moderation notice to a content owner.
	TaskModerationNotify = "moderation:notify"
	// TaskSessionsPurge deletes expired session rows.
	TaskSessionsPurge = "sessions:purge"
)

// NewModerationNotifyTask constructs an Asynq task carrying n.
func NewModerationNotifyTask(n moderation.Notification) (*asynq.Task, error) {
	data, err := json.Marshal(n)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskModerationNotify, data, asynq.MaxRetry(5)), nil
}

// NewSessionsPurgeTask constructs the periodic purge task.
func NewSessionsPurgeTask() *asynq.Task {
	return asynq.NewTask(TaskSessionsPurge, nil, asynq.MaxRetry(1))
}

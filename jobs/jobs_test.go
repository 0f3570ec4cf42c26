package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/stackit-qa/stackit/internal/jobs"
	"github.com/stackit-qa/stackit/internal/moderation"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type deliverSpy struct {
	got []moderation.Notification
	err error
}

func (d *deliverSpy) Deliver(_ context.Context, n moderation.Notification) error {
	d.got = append(d.got, n)
	return d.err
}

type purgeStub struct {
	n   int64
	err error
}

func (p purgeStub) PurgeExpiredSessions(context.Context) (int64, error) {
	return p.n, p.err
}

func TestModerationNotifyJob(t *testing.T) {
	spy := &deliverSpy{}
	job := NewModerationNotifyJob(spy, discard, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	n := moderation.Notification{UserID: "u1", LogID: "l1", Action: moderation.ActionHide, TargetType: moderation.TargetAnswer, TargetID: "a1", Reason: "spam"}
	task, err := NewModerationNotifyTask(n)
	require.NoError(t, err)
	assert.Equal(t, TaskModerationNotify, task.Type())

	require.NoError(t, job.Handle(context.Background(), task))
	require.Len(t, spy.got, 1)
	assert.Equal(t, n, spy.got[0])
}

func TestModerationNotifyJobSkipsBadPayloads(t *testing.T) {
	spy := &deliverSpy{}
	job := NewModerationNotifyJob(spy, discard, nil)

	err := job.Handle(context.Background(), asynq.NewTask(TaskModerationNotify, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	payload, _ := json.Marshal(moderation.Notification{LogID: "l1"})
	err = job.Handle(context.Background(), asynq.NewTask(TaskModerationNotify, payload))
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.Empty(t, spy.got)
}

func TestModerationNotifyJobRetriesDeliveryFailure(t *testing.T) {
	spy := &deliverSpy{err: errors.New("db down")}
	job := NewModerationNotifyJob(spy, discard, nil)
	task, err := NewModerationNotifyTask(moderation.Notification{UserID: "u1", LogID: "l1"})
	require.NoError(t, err)

	err = job.Handle(context.Background(), task)
	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
}

func TestSessionsPurgeJob(t *testing.T) {
	job := NewSessionsPurgeJob(purgeStub{n: 4}, discard, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	require.NoError(t, job.Handle(context.Background(), NewSessionsPurgeTask()))

	job = NewSessionsPurgeJob(purgeStub{err: errors.New("db down")}, discard, nil)
	require.Error(t, job.Handle(context.Background(), NewSessionsPurgeTask()))

	var unset *SessionsPurgeJob
	require.Error(t, unset.Handle(context.Background(), NewSessionsPurgeTask()))
}

func TestClientEnqueuesTasks(t *testing.T) {
	mr := miniredis.RunT(t)
	opts := asynq.RedisClientOpt{Addr: mr.Addr()}
	client, err := NewClient(opts)
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.EnqueueModerationNotice(context.Background(), moderation.Notification{UserID: "u1", LogID: "l1"}))
	info, err := client.EnqueueSessionsPurge(context.Background())
	require.NoError(t, err)
	assert.Equal(t, TaskSessionsPurge, info.Type)

	pending, err := mr.List("asynq:{" + QueueDefault + "}:pending")
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}

func TestNewWorkerRejectsBadCron(t *testing.T) {
	_, err := NewWorker(WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: "127.0.0.1:1"},
		Logger:    discard,
		Cron:      []CronRegistration{{Spec: "not a cron", Task: NewSessionsPurgeTask()}},
	})
	require.Error(t, err)
}

type inspectorStub struct {
	info *asynq.QueueInfo
	err  error
}

func (s inspectorStub) GetQueueInfo(string) (*asynq.QueueInfo, error) {
	return s.info, s.err
}

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name      string
		inspector QueueInspector
		code      int
		pending   int
	}{
		{"no inspector", nil, http.StatusOK, 0},
		{"queue info", inspectorStub{info: &asynq.QueueInfo{Queue: QueueDefault, Pending: 7}}, http.StatusOK, 7},
		{"redis down", inspectorStub{err: errors.New("dial tcp")}, http.StatusServiceUnavailable, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			NewHandler(tt.inspector, discard).health(rr, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
			require.Equal(t, tt.code, rr.Code)
			if tt.code != http.StatusOK {
				return
			}
			var body queueStatus
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.Equal(t, QueueDefault, body.Queue)
			assert.Equal(t, tt.pending, body.Pending)
		})
	}
}

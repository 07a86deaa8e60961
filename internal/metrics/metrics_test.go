package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChuLiYu/git-queue/internal/jobstate"
	"github.com/ChuLiYu/git-queue/internal/message"
	"github.com/ChuLiYu/git-queue/internal/queue"
	"github.com/ChuLiYu/git-queue/pkg/types"
)

var testQueue = types.MustQueueName("queue-name")

func newTestCollector(t *testing.T) (*Collector, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewCollector(reg), reg
}

func TestNewCollector(t *testing.T) {
	collector, _ := newTestCollector(t)

	assert.NotNil(t, collector, "NewCollector should return a non-nil collector")
	assert.NotNil(t, collector.messagesCommitted, "messagesCommitted counter should be initialized")
	assert.NotNil(t, collector.commandsRejected, "commandsRejected counter should be initialized")
	assert.NotNil(t, collector.jobsProcessed, "jobsProcessed counter should be initialized")
	assert.NotNil(t, collector.reloadDuration, "reloadDuration histogram should be initialized")
	assert.NotNil(t, collector.jobDuration, "jobDuration histogram should be initialized")
	assert.NotNil(t, collector.jobsPending, "jobsPending gauge should be initialized")
	assert.NotNil(t, collector.jobsInFlight, "jobsInFlight gauge should be initialized")
	assert.NotNil(t, collector.jobsFinished, "jobsFinished gauge should be initialized")
}

func TestNewCollector_DefaultRegisterer(t *testing.T) {
	// Reset Prometheus registry to avoid duplicate registration
	prometheus.DefaultRegisterer = prometheus.NewRegistry()

	assert.NotPanics(t, func() {
		NewCollector(nil)
	})
}

func TestNewCollector_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewCollector(reg)

	assert.Panics(t, func() {
		NewCollector(reg)
	})
}

func TestMessageCommitted(t *testing.T) {
	collector, _ := newTestCollector(t)

	collector.MessageCommitted(testQueue, message.KindNewJob)
	collector.MessageCommitted(testQueue, message.KindNewJob)
	collector.MessageCommitted(testQueue, message.KindJobStarted)

	assert.Equal(t, 2.0, testutil.ToFloat64(collector.messagesCommitted.WithLabelValues("queue-name", "new-job")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.messagesCommitted.WithLabelValues("queue-name", "job-started")))
	assert.Equal(t, 0.0, testutil.ToFloat64(collector.messagesCommitted.WithLabelValues("queue-name", "job-finished")))
}

func TestCommandRejected(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		reason string
	}{
		{"missing new job", &queue.StateError{Err: queue.ErrMissingNewJobMessage}, "missing_new_job_message"},
		{"missing started", &queue.StateError{Err: queue.ErrMissingJobStartedMessage}, "missing_job_started_message"},
		{"limit reached", &queue.StateError{Err: queue.ErrPendingJobsLimitReached}, "pending_jobs_limit_reached"},
		{"anything else", errors.New("boom"), "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			collector, _ := newTestCollector(t)

			collector.CommandRejected(testQueue, queue.OpStart, tt.err)

			assert.Equal(t, 1.0, testutil.ToFloat64(collector.commandsRejected.WithLabelValues("queue-name", queue.OpStart, tt.reason)))
		})
	}
}

func TestLogReloaded(t *testing.T) {
	collector, _ := newTestCollector(t)

	collector.LogReloaded(testQueue, 15*time.Millisecond, jobstate.Stats{Total: 6, Pending: 3, InFlight: 1, Finished: 2})

	assert.Equal(t, 3.0, testutil.ToFloat64(collector.jobsPending.WithLabelValues("queue-name")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.jobsInFlight.WithLabelValues("queue-name")))
	assert.Equal(t, 2.0, testutil.ToFloat64(collector.jobsFinished.WithLabelValues("queue-name")))
	assert.Equal(t, 1, testutil.CollectAndCount(collector.reloadDuration))

	// Gauges follow the latest reload.
	collector.LogReloaded(testQueue, time.Millisecond, jobstate.Stats{Total: 6, Finished: 6})
	assert.Equal(t, 0.0, testutil.ToFloat64(collector.jobsPending.WithLabelValues("queue-name")))
	assert.Equal(t, 6.0, testutil.ToFloat64(collector.jobsFinished.WithLabelValues("queue-name")))
}

func TestRecordJobProcessed(t *testing.T) {
	collector, _ := newTestCollector(t)

	collector.RecordJobProcessed(testQueue, ResultSucceeded, time.Second)
	collector.RecordJobProcessed(testQueue, ResultSucceeded, 2*time.Second)
	collector.RecordJobProcessed(testQueue, ResultFailed, time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(collector.jobsProcessed.WithLabelValues("queue-name", ResultSucceeded)))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.jobsProcessed.WithLabelValues("queue-name", ResultFailed)))
}

func TestQueuesAreLabelledSeparately(t *testing.T) {
	collector, _ := newTestCollector(t)

	collector.LogReloaded(types.MustQueueName("queue-a"), 0, jobstate.Stats{Pending: 1})
	collector.LogReloaded(types.MustQueueName("queue-b"), 0, jobstate.Stats{Pending: 4})

	assert.Equal(t, 1.0, testutil.ToFloat64(collector.jobsPending.WithLabelValues("queue-a")))
	assert.Equal(t, 4.0, testutil.ToFloat64(collector.jobsPending.WithLabelValues("queue-b")))
}

func TestHandler(t *testing.T) {
	collector, reg := newTestCollector(t)
	collector.MessageCommitted(testQueue, message.KindNewJob)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `gitqueue_messages_committed_total{kind="new-job",queue="queue-name"} 1`), body)
}

// ============================================================================
// Git Queue Metrics - Prometheus instrumentation
// ============================================================================
//
// Package: internal/metrics
// File: metrics.go
// Purpose: collect queue activity and expose it in the Prometheus format.
//
// Metric families (all labelled by queue):
//
//   1. Counters:
//      - gitqueue_messages_committed_total{kind}: commits appended per message kind
//      - gitqueue_commands_rejected_total{op,reason}: commands refused by the state machine
//      - gitqueue_jobs_processed_total{result}: jobs run by a worker (succeeded / failed)
//
//   2. Histograms:
//      - gitqueue_log_reload_seconds: time to re-read and decode history
//      - gitqueue_job_duration_seconds: handler run time per job
//
//   3. Gauges (refreshed on every reload):
//      - gitqueue_jobs_pending: created, not started
//      - gitqueue_jobs_in_flight: started, not finished (0 or 1)
//      - gitqueue_jobs_finished
//
// Useful queries:
//
//   # backlog
//   gitqueue_jobs_pending + gitqueue_jobs_in_flight
//
//   # reload cost grows with history length
//   histogram_quantile(0.95, rate(gitqueue_log_reload_seconds_bucket[5m]))
//
// Collector implements queue.Recorder, so a queue reports to it directly.
//
// ============================================================================

package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ChuLiYu/git-queue/internal/jobstate"
	"github.com/ChuLiYu/git-queue/internal/message"
	"github.com/ChuLiYu/git-queue/internal/queue"
	"github.com/ChuLiYu/git-queue/pkg/types"
)

const namespace = "gitqueue"

// Job results reported by workers.
const (
	ResultSucceeded = "succeeded"
	ResultFailed    = "failed"
)

// Collector holds the queue metric families.
type Collector struct {
	messagesCommitted *prometheus.CounterVec
	commandsRejected  *prometheus.CounterVec
	jobsProcessed     *prometheus.CounterVec

	reloadDuration *prometheus.HistogramVec
	jobDuration    *prometheus.HistogramVec

	jobsPending  *prometheus.GaugeVec
	jobsInFlight *prometheus.GaugeVec
	jobsFinished *prometheus.GaugeVec
}

var _ queue.Recorder = (*Collector)(nil)

// NewCollector creates the metric families and registers them with reg
// (the default registerer when reg is nil).
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := &Collector{
		messagesCommitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_committed_total",
			Help:      "Total number of queue messages committed, by kind",
		}, []string{"queue", "kind"}),
		commandsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_rejected_total",
			Help:      "Total number of queue commands rejected by the state machine",
		}, []string{"queue", "op", "reason"}),
		jobsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_processed_total",
			Help:      "Total number of jobs run by a worker, by result",
		}, []string{"queue", "result"}),
		reloadDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "log_reload_seconds",
			Help:      "Time taken to reload a queue log from history in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"queue"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Job handler run time in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"queue"}),
		jobsPending: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_pending",
			Help:      "Current number of created but not started jobs",
		}, []string{"queue"}),
		jobsInFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_in_flight",
			Help:      "Current number of started but not finished jobs",
		}, []string{"queue"}),
		jobsFinished: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_finished",
			Help:      "Current number of finished jobs",
		}, []string{"queue"}),
	}

	reg.MustRegister(
		c.messagesCommitted,
		c.commandsRejected,
		c.jobsProcessed,
		c.reloadDuration,
		c.jobDuration,
		c.jobsPending,
		c.jobsInFlight,
		c.jobsFinished,
	)

	return c
}

// MessageCommitted counts one appended commit.
func (c *Collector) MessageCommitted(q types.QueueName, kind message.Kind) {
	c.messagesCommitted.WithLabelValues(q.String(), kind.String()).Inc()
}

// CommandRejected counts one refused command.
func (c *Collector) CommandRejected(q types.QueueName, op string, err error) {
	c.commandsRejected.WithLabelValues(q.String(), op, rejectionReason(err)).Inc()
}

// LogReloaded records the reload latency and refreshes the state gauges.
func (c *Collector) LogReloaded(q types.QueueName, elapsed time.Duration, stats jobstate.Stats) {
	name := q.String()
	c.reloadDuration.WithLabelValues(name).Observe(elapsed.Seconds())
	c.jobsPending.WithLabelValues(name).Set(float64(stats.Pending))
	c.jobsInFlight.WithLabelValues(name).Set(float64(stats.InFlight))
	c.jobsFinished.WithLabelValues(name).Set(float64(stats.Finished))
}

// RecordJobProcessed counts a job run by a worker and its duration.
func (c *Collector) RecordJobProcessed(q types.QueueName, result string, elapsed time.Duration) {
	c.jobsProcessed.WithLabelValues(q.String(), result).Inc()
	c.jobDuration.WithLabelValues(q.String()).Observe(elapsed.Seconds())
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, queue.ErrMissingNewJobMessage):
		return "missing_new_job_message"
	case errors.Is(err, queue.ErrMissingJobStartedMessage):
		return "missing_job_started_message"
	case errors.Is(err, queue.ErrPendingJobsLimitReached):
		return "pending_jobs_limit_reached"
	default:
		return "other"
	}
}

// Handler serves the metrics gathered by g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

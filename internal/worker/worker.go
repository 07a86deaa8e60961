// ============================================================================
// Git Queue Worker - job execution loop
// ============================================================================
//
// Package: internal/worker
// File: worker.go
// Purpose: drain a queue one job at a time.
//
// How it works:
//   Each iteration (RunOnce):
//   1. Reload the source so commits from other processes are seen
//   2. Pick the job in flight (resume after a crash) or the next job
//   3. Append a job started commit unless resuming
//   4. Run the handler under the per-job timeout
//   5. Append a job finished commit with the handler output
//
//   Run repeats until the context ends. When the queue is empty it waits for
//   a change notification (the repository watcher) or the poll interval,
//   whichever comes first. With Drain it returns as soon as the queue is empty.
//
// Failure handling:
//   A handler error leaves the job Started. Since only one job may be in
//   flight, the queue is blocked until the job is finished; Run returns the
//   error and the next run resumes the same job.
//
// ============================================================================

package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ChuLiYu/git-queue/internal/metrics"
	"github.com/ChuLiYu/git-queue/pkg/types"
)

// DefaultPollInterval is used when Config.PollInterval is zero.
const DefaultPollInterval = 5 * time.Second

// ErrJobFailed wraps handler failures returned by Run.
var ErrJobFailed = errors.New("job failed")

// Recorder receives per-job results; metrics.Collector implements it.
type Recorder interface {
	RecordJobProcessed(queue types.QueueName, result string, elapsed time.Duration)
}

// Config tunes a Worker.
type Config struct {
	ID           string        // default: random UUID
	PollInterval time.Duration // wait between empty polls
	Timeout      time.Duration // per-job handler timeout, 0 means none
	Drain        bool          // return once the queue is empty
}

// Worker processes the jobs of one source.
type Worker struct {
	cfg      Config
	source   JobSource
	handler  Handler
	logger   *zap.Logger
	recorder Recorder
	changes  <-chan struct{}
}

// Option configures a Worker.
type Option func(*Worker)

func WithLogger(logger *zap.Logger) Option {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(w *Worker) {
		w.recorder = r
	}
}

// WithNotifications wakes the worker early when the channel fires.
func WithNotifications(changes <-chan struct{}) Option {
	return func(w *Worker) {
		w.changes = changes
	}
}

// New creates a worker.
func New(source JobSource, handler Handler, cfg Config, opts ...Option) *Worker {
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}

	w := &Worker{
		cfg:     cfg,
		source:  source,
		handler: handler,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With(zap.String("worker", cfg.ID), zap.String("queue", source.Name().String()))
	return w
}

func (w *Worker) ID() string {
	return w.cfg.ID
}

// RunOnce processes at most one job. processed is false when the queue had
// nothing to do. A handler failure is reported both in the result and as err.
func (w *Worker) RunOnce(ctx context.Context) (result Result, processed bool, err error) {
	if err := w.source.Reload(ctx); err != nil {
		return Result{}, false, err
	}

	job := w.source.StartedJob()
	resumed := !job.IsNull()
	if !resumed {
		job = w.source.NextJob()
	}
	if job.IsNull() {
		return Result{}, false, nil
	}

	result = Result{JobID: job.ID(), Resumed: resumed}
	log := w.logger.With(zap.Stringer("job", job.ID()), zap.Stringer("commit", job.CommitHash()))

	if resumed {
		log.Info("resuming job in flight")
	} else {
		hash, err := w.source.MarkJobAsStarted(ctx, job.ID(), "")
		if err != nil {
			return result, false, err
		}
		result.StartCommit = hash
		log.Info("job started", zap.Stringer("started_commit", hash))
	}

	output, handlerErr := w.execute(ctx, Task{
		Queue:    w.source.Name(),
		Job:      job,
		WorkerID: w.cfg.ID,
		Resumed:  resumed,
	}, &result)

	if handlerErr != nil {
		result.Error = handlerErr
		w.record(metrics.ResultFailed, result.Duration)
		log.Error("job failed, leaving it started", zap.Duration("duration", result.Duration), zap.Error(handlerErr))
		return result, true, fmt.Errorf("%w: job %s: %w", ErrJobFailed, job.ID(), handlerErr)
	}

	hash, err := w.source.MarkJobAsFinished(ctx, job.ID(), output)
	if err != nil {
		return result, true, err
	}
	result.Success = true
	result.Output = output
	result.FinishCommit = hash
	w.record(metrics.ResultSucceeded, result.Duration)
	log.Info("job finished", zap.Stringer("finished_commit", hash), zap.Duration("duration", result.Duration))

	return result, true, nil
}

// execute runs the handler under the per-job timeout.
func (w *Worker) execute(ctx context.Context, task Task, result *Result) (string, error) {
	if w.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	output, err := w.handler.Handle(ctx, task)
	result.Duration = time.Since(start)
	return output, err
}

func (w *Worker) record(result string, elapsed time.Duration) {
	if w.recorder != nil {
		w.recorder.RecordJobProcessed(w.source.Name(), result, elapsed)
	}
}

// Run processes jobs until ctx ends (returns nil), a job fails, or, with
// Drain, the queue is empty.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("worker started", zap.Duration("poll_interval", w.cfg.PollInterval), zap.Bool("drain", w.cfg.Drain))
	defer w.logger.Info("worker stopped")

	changes := w.changes
	timer := time.NewTimer(w.cfg.PollInterval)
	defer timer.Stop()

	for {
		_, processed, err := w.RunOnce(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if processed {
			continue
		}
		if w.cfg.Drain {
			return nil
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(w.cfg.PollInterval)

		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-changes:
			if !ok {
				changes = nil
			}
		case <-timer.C:
		}
	}
}

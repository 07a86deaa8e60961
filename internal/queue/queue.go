// ============================================================================
// Git Queue - queue state machine
// ============================================================================
//
// Package: internal/queue
// File: queue.go
// Purpose: create / start / finish jobs by appending commits, and answer
// next-job queries from the reloaded commit log.
//
// Command flow (every mutating command):
//
//	check storage initialized -> reload log -> check preconditions
//	  -> append exactly one commit -> reload log -> return result
//
// Nothing is cached across commands except the last loaded log, which is a
// fresh immutable value after every reload. A failed precondition leaves the
// storage untouched.
//
// Job ordering:
//   - createJob assigns latest created id + 1 and never blocks
//   - the next job is always last finished id + 1 (gap free FIFO)
//   - at most one job of the queue is Started at any time
//
// A Queue is not safe for concurrent use; a single logical writer is assumed
// per storage location.
//
// ============================================================================

package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/ChuLiYu/git-queue/internal/commit"
	"github.com/ChuLiYu/git-queue/internal/jobstate"
	"github.com/ChuLiYu/git-queue/internal/message"
	"github.com/ChuLiYu/git-queue/pkg/types"
)

// Queue is one named job stream inside a storage location.
type Queue struct {
	name          types.QueueName
	storage       Storage
	commitOptions commit.Options
	workerID      string
	recorder      Recorder

	log     message.Log
	tracker *jobstate.Tracker
}

// Option configures a Queue.
type Option func(*Queue)

// WithCommitOptions sets the author and signing options of every commit.
func WithCommitOptions(opts commit.Options) Option {
	return func(q *Queue) {
		q.commitOptions = opts
	}
}

// WithRecorder installs an activity observer. A nil recorder is ignored.
func WithRecorder(r Recorder) Option {
	return func(q *Queue) {
		if r != nil {
			q.recorder = r
		}
	}
}

// WithWorkerID stamps start and finish messages with the id of the worker
// issuing them.
func WithWorkerID(id string) Option {
	return func(q *Queue) {
		q.workerID = id
	}
}

// New binds a queue to storage and loads its history.
func New(ctx context.Context, name types.QueueName, storage Storage, opts ...Option) (*Queue, error) {
	if name.IsNull() {
		return nil, fmt.Errorf("queue: %w: empty name", types.ErrInvalidQueueName)
	}

	q := &Queue{
		name:     name,
		storage:  storage,
		recorder: nopRecorder{},
		tracker:  jobstate.New(),
	}
	for _, opt := range opts {
		opt(q)
	}

	if err := q.Reload(ctx); err != nil {
		return nil, err
	}
	return q, nil
}

// ============================================================================
// Queries
// ============================================================================

func (q *Queue) Name() types.QueueName {
	return q.name
}

// Log returns the currently loaded log of this queue.
func (q *Queue) Log() message.Log {
	return q.log
}

// Messages returns the queue messages, newest first.
func (q *Queue) Messages() []message.CommittedMessage {
	return q.log.Messages()
}

func (q *Queue) LatestMessage() message.CommittedMessage {
	return q.log.GetLatestMessage()
}

func (q *Queue) FindCommittedMessageByCommit(hash types.CommitHash) message.CommittedMessage {
	return q.log.FindByCommitHash(hash)
}

// NextJob returns the job following the latest finished one, or job 1 when
// nothing has finished yet. The null job means there is nothing to do.
//
// The next job may already be Started; callers that resume work should check
// StartedJob first.
func (q *Queue) NextJob() Job {
	next := q.log.GetLatestFinishedJobMessage().JobID().Next()
	return JobFromMessage(q.log.GetJobCreationMessage(next))
}

// IsEmpty reports whether there is no next job.
func (q *Queue) IsEmpty() bool {
	return q.NextJob().IsNull()
}

// StartedJob returns the job currently in flight, or the null job.
func (q *Queue) StartedJob() Job {
	started := q.inFlightMessage()
	if started.IsNull() {
		return NullJob()
	}
	return JobFromMessage(q.log.GetJobCreationMessage(started.JobID()))
}

// Stats summarizes the job states of the loaded log.
func (q *Queue) Stats() jobstate.Stats {
	return q.tracker.Stats()
}

// Verify replays the loaded log and returns every invariant violation found.
func (q *Queue) Verify() error {
	return q.tracker.Err()
}

// inFlightMessage returns the started message of the job currently in flight.
func (q *Queue) inFlightMessage() message.CommittedMessage {
	started := q.log.GetLatestStartedJobMessage()
	if started.IsNull() {
		return started
	}
	if !q.log.GetLatestMessageRelatedToJob(started.JobID()).IsJobStarted() {
		return message.Null()
	}
	return started
}

// ============================================================================
// Commands
// ============================================================================

// CreateJob appends a new job with the next consecutive id.
func (q *Queue) CreateJob(ctx context.Context, payload string) (Job, error) {
	if err := q.Reload(ctx); err != nil {
		return NullJob(), err
	}

	id := q.log.GetLatestNewJobMessage().JobID().Next()

	hash, err := q.commit(ctx, commit.NewJobMessage(q.name, id, payload))
	if err != nil {
		return NullJob(), err
	}

	created := q.log.FindByCommitHash(hash)
	if !created.IsNewJob() {
		return NullJob(), fmt.Errorf("queue %s: job %s: %w: %s", q.name, id, ErrCommitNotFound, hash)
	}
	return JobFromMessage(created), nil
}

// MarkJobAsStarted appends a job started message pointing at the job's new
// job commit. The job's latest message must be its new job message and no
// other job may be in flight.
func (q *Queue) MarkJobAsStarted(ctx context.Context, id types.JobID, payload string) (types.CommitHash, error) {
	if err := q.Reload(ctx); err != nil {
		return types.NullCommitHash(), err
	}

	latest := q.log.GetLatestMessageRelatedToJob(id)
	if !latest.IsNewJob() {
		return types.NullCommitHash(), q.reject(&StateError{
			Op:     OpStart,
			Queue:  q.name,
			JobID:  id,
			Commit: latest.CommitHash(),
			Err:    ErrMissingNewJobMessage,
		})
	}

	if inFlight := q.inFlightMessage(); !inFlight.IsNull() {
		return types.NullCommitHash(), q.reject(&StateError{
			Op:            OpStart,
			Queue:         q.name,
			JobID:         id,
			Commit:        inFlight.CommitHash(),
			BlockingJobID: inFlight.JobID(),
			Err:           ErrPendingJobsLimitReached,
		})
	}

	msg := commit.JobStartedMessage(q.name, id, latest.CommitHash(), payload)
	return q.commit(ctx, msg)
}

// MarkJobAsFinished appends a job finished message pointing at the job's
// started commit. The job's latest message must be its job started message.
func (q *Queue) MarkJobAsFinished(ctx context.Context, id types.JobID, payload string) (types.CommitHash, error) {
	if err := q.Reload(ctx); err != nil {
		return types.NullCommitHash(), err
	}

	latest := q.log.GetLatestMessageRelatedToJob(id)
	if !latest.IsJobStarted() {
		return types.NullCommitHash(), q.reject(&StateError{
			Op:     OpFinish,
			Queue:  q.name,
			JobID:  id,
			Commit: latest.CommitHash(),
			Err:    ErrMissingJobStartedMessage,
		})
	}

	created := q.log.GetJobCreationMessage(id)
	msg := commit.JobFinishedMessage(q.name, id, latest.CommitHash(), created.CommitHash(), payload)
	return q.commit(ctx, msg)
}

// Reload re-reads the whole history and replaces the loaded log.
func (q *Queue) Reload(ctx context.Context) error {
	start := time.Now()

	initialized, err := q.storage.IsInitialized(ctx)
	if err != nil {
		return fmt.Errorf("queue %s: check storage: %w", q.name, err)
	}
	if !initialized {
		return fmt.Errorf("queue %s: %w", q.name, ErrStorageNotInitialized)
	}

	hasCommits, err := q.storage.HasCommits(ctx)
	if err != nil {
		return fmt.Errorf("queue %s: check commits: %w", q.name, err)
	}

	var history []commit.Info
	if hasCommits {
		if history, err = q.storage.ReadHistory(ctx); err != nil {
			return fmt.Errorf("queue %s: read history: %w", q.name, err)
		}
	}

	all, err := message.FromCommits(history)
	if err != nil {
		return fmt.Errorf("queue %s: %w", q.name, err)
	}

	q.log = all.FilterByQueue(q.name)
	q.tracker = jobstate.Build(q.log)
	q.recorder.LogReloaded(q.name, time.Since(start), q.tracker.Stats())
	return nil
}

// commit appends one message and reloads the log.
func (q *Queue) commit(ctx context.Context, m commit.Message) (types.CommitHash, error) {
	m.WorkerID = q.workerID
	if m.Key == types.KeyNewJob {
		m.WorkerID = ""
	}

	hash, err := q.storage.AppendCommit(ctx, m.Subject().String(), m.Body().Text(), q.commitOptions)
	if err != nil {
		return types.NullCommitHash(), fmt.Errorf("queue %s: append %s message for job %s: %w", q.name, m.Key, m.JobID, err)
	}

	if err := q.Reload(ctx); err != nil {
		return hash, err
	}

	q.recorder.MessageCommitted(q.name, q.log.FindByCommitHash(hash).Kind())
	return hash, nil
}

func (q *Queue) reject(err *StateError) error {
	q.recorder.CommandRejected(q.name, err.Op, err)
	return err
}

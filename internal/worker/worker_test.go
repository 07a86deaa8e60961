package worker

// ============================================================================
// Worker Test File
// Purpose: verify job hand-off, resume after crash, failure and timeout handling
// ============================================================================

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChuLiYu/git-queue/internal/commit"
	"github.com/ChuLiYu/git-queue/internal/message"
	"github.com/ChuLiYu/git-queue/internal/queue"
	"github.com/ChuLiYu/git-queue/pkg/types"
)

var testQueue = types.MustQueueName("queue-name")

// fakeSource is an in-memory JobSource following the queue rules: jobs are
// handed out in id order and one at a time.
type fakeSource struct {
	mu       sync.Mutex
	jobs     []queue.Job
	state    map[int]string // "", "started", "finished"
	started  []int
	finished map[int]string
	commits  int

	reloadErr error
}

func newFakeSource(payloads ...string) *fakeSource {
	s := &fakeSource{state: map[int]string{}, finished: map[int]string{}}
	for _, p := range payloads {
		s.add(p)
	}
	return s
}

func (s *fakeSource) nextHash() types.CommitHash {
	s.commits++
	return types.MustCommitHash(fmt.Sprintf("%040x", s.commits))
}

// add creates a job through a real new job message so the Job value is built
// the same way the queue builds it.
func (s *fakeSource) add(payload string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := types.MustJobID(len(s.jobs) + 1)
	m := commit.NewJobMessage(testQueue, id, payload)
	cm, err := message.FromCommitInfo(commit.Info{
		Hash:    s.nextHash(),
		Subject: m.Subject().String(),
		Body:    m.Body().Text(),
	})
	if err != nil {
		panic(err)
	}
	s.jobs = append(s.jobs, queue.JobFromMessage(cm))
}

func (s *fakeSource) Name() types.QueueName { return testQueue }

func (s *fakeSource) Reload(context.Context) error {
	return s.reloadErr
}

func (s *fakeSource) StartedJob() queue.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, job := range s.jobs {
		if s.state[job.ID().Int()] == "started" {
			return job
		}
	}
	return queue.NullJob()
}

func (s *fakeSource) NextJob() queue.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, job := range s.jobs {
		if s.state[job.ID().Int()] != "finished" {
			return job
		}
	}
	return queue.NullJob()
}

func (s *fakeSource) MarkJobAsStarted(_ context.Context, id types.JobID, _ string) (types.CommitHash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state[id.Int()] != "" {
		return types.NullCommitHash(), queue.ErrMissingNewJobMessage
	}
	s.state[id.Int()] = "started"
	s.started = append(s.started, id.Int())
	return s.nextHash(), nil
}

func (s *fakeSource) MarkJobAsFinished(_ context.Context, id types.JobID, payload string) (types.CommitHash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state[id.Int()] != "started" {
		return types.NullCommitHash(), queue.ErrMissingJobStartedMessage
	}
	s.state[id.Int()] = "finished"
	s.finished[id.Int()] = payload
	return s.nextHash(), nil
}

type countingRecorder struct {
	mu      sync.Mutex
	results []string
}

func (r *countingRecorder) RecordJobProcessed(_ types.QueueName, result string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, result)
}

func echoHandler() Handler {
	return HandlerFunc(func(_ context.Context, task Task) (string, error) {
		return "done: " + task.Job.Payload(), nil
	})
}

// ============================================================================
// RunOnce
// ============================================================================

func TestRunOnce_EmptyQueue(t *testing.T) {
	w := New(newFakeSource(), echoHandler(), Config{})

	_, processed, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestRunOnce_ProcessesNextJob(t *testing.T) {
	source := newFakeSource("first", "second")
	w := New(source, echoHandler(), Config{})

	result, processed, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)
	assert.True(t, result.Success)
	assert.False(t, result.Resumed)
	assert.Equal(t, types.MustJobID(1), result.JobID)
	assert.Equal(t, "done: first", result.Output)
	assert.False(t, result.StartCommit.IsNull())
	assert.False(t, result.FinishCommit.IsNull())
	assert.Equal(t, "done: first", source.finished[1])
	assert.Equal(t, types.MustJobID(2), source.NextJob().ID())
}

func TestRunOnce_ResumesJobInFlight(t *testing.T) {
	source := newFakeSource("first")
	_, err := source.MarkJobAsStarted(context.Background(), types.MustJobID(1), "")
	require.NoError(t, err)

	var seen Task
	w := New(source, HandlerFunc(func(_ context.Context, task Task) (string, error) {
		seen = task
		return "ok", nil
	}), Config{ID: "worker-1"})

	result, processed, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)
	assert.True(t, result.Resumed)
	assert.True(t, result.StartCommit.IsNull())
	assert.Equal(t, []int{1}, source.started, "a resumed job is not started twice")
	assert.True(t, seen.Resumed)
	assert.Equal(t, "worker-1", seen.WorkerID)
	assert.Equal(t, testQueue, seen.Queue)
}

func TestRunOnce_HandlerFailureLeavesJobStarted(t *testing.T) {
	source := newFakeSource("first", "second")
	rec := &countingRecorder{}
	boom := errors.New("boom")
	w := New(source, HandlerFunc(func(context.Context, Task) (string, error) {
		return "", boom
	}), Config{}, WithRecorder(rec))

	result, processed, err := w.RunOnce(context.Background())
	assert.True(t, processed)
	assert.ErrorIs(t, err, ErrJobFailed)
	assert.ErrorIs(t, err, boom)
	assert.False(t, result.Success)
	assert.Equal(t, boom, result.Error)
	assert.True(t, result.FinishCommit.IsNull())

	assert.Equal(t, types.MustJobID(1), source.StartedJob().ID())
	assert.Equal(t, []string{"failed"}, rec.results)
}

func TestRunOnce_Timeout(t *testing.T) {
	source := newFakeSource("slow")
	w := New(source, HandlerFunc(func(ctx context.Context, _ Task) (string, error) {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(5 * time.Second):
			return "too late", nil
		}
	}), Config{Timeout: 10 * time.Millisecond})

	_, _, err := w.RunOnce(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, types.MustJobID(1), source.StartedJob().ID())
}

func TestRunOnce_ReloadFailure(t *testing.T) {
	source := newFakeSource("first")
	source.reloadErr = queue.ErrStorageNotInitialized
	w := New(source, echoHandler(), Config{})

	_, processed, err := w.RunOnce(context.Background())
	assert.ErrorIs(t, err, queue.ErrStorageNotInitialized)
	assert.False(t, processed)
	assert.Empty(t, source.started)
}

// ============================================================================
// Run
// ============================================================================

func TestRun_DrainProcessesAllJobsInOrder(t *testing.T) {
	source := newFakeSource("a", "b", "c")
	rec := &countingRecorder{}
	w := New(source, echoHandler(), Config{Drain: true}, WithRecorder(rec))

	require.NoError(t, w.Run(context.Background()))

	assert.Equal(t, []int{1, 2, 3}, source.started)
	assert.Equal(t, map[int]string{1: "done: a", 2: "done: b", 3: "done: c"}, source.finished)
	assert.Equal(t, []string{"succeeded", "succeeded", "succeeded"}, rec.results)
}

func TestRun_StopsOnHandlerFailure(t *testing.T) {
	source := newFakeSource("a", "b")
	w := New(source, HandlerFunc(func(context.Context, Task) (string, error) {
		return "", errors.New("boom")
	}), Config{Drain: true})

	err := w.Run(context.Background())
	assert.ErrorIs(t, err, ErrJobFailed)
	assert.Equal(t, []int{1}, source.started)
}

func TestRun_WakesOnNotification(t *testing.T) {
	source := newFakeSource()
	changes := make(chan struct{}, 1)
	done := make(chan struct{})

	w := New(source, HandlerFunc(func(context.Context, Task) (string, error) {
		close(done)
		return "", nil
	}), Config{PollInterval: time.Hour}, WithNotifications(changes))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()

	source.add("late job")
	changes <- struct{}{}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not wake up on notification")
	}

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}

func TestRun_ClosedNotificationsFallBackToPolling(t *testing.T) {
	source := newFakeSource()
	changes := make(chan struct{})
	close(changes)
	done := make(chan struct{})

	w := New(source, HandlerFunc(func(context.Context, Task) (string, error) {
		close(done)
		return "", nil
	}), Config{PollInterval: 10 * time.Millisecond}, WithNotifications(changes))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	source.add("job")

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not poll")
	}
}

func TestNew_Defaults(t *testing.T) {
	w := New(newFakeSource(), echoHandler(), Config{})

	assert.NotEmpty(t, w.ID())
	assert.Equal(t, DefaultPollInterval, w.cfg.PollInterval)

	other := New(newFakeSource(), echoHandler(), Config{})
	assert.NotEqual(t, w.ID(), other.ID())
}

package jobstate

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChuLiYu/git-queue/internal/commit"
	"github.com/ChuLiYu/git-queue/internal/message"
	"github.com/ChuLiYu/git-queue/pkg/types"
)

var queueName = types.MustQueueName("queue-name")

func hashFor(n int) types.CommitHash {
	return types.MustCommitHash(fmt.Sprintf("%040x", n))
}

// history collects messages in chronological order, assigning commit n to the
// n-th message.
type history struct {
	t     *testing.T
	infos []commit.Info
}

func (h *history) add(m commit.Message) *history {
	n := len(h.infos) + 1
	h.infos = append(h.infos, commit.Info{
		Hash:    hashFor(n),
		Subject: m.Subject().String(),
		Body:    m.Body().Text(),
	})
	return h
}

func (h *history) created(id int) *history {
	return h.add(commit.NewJobMessage(queueName, types.MustJobID(id), ""))
}

func (h *history) started(id int) *history {
	return h.add(commit.JobStartedMessage(queueName, types.MustJobID(id), hashFor(1), ""))
}

func (h *history) finished(id int) *history {
	return h.add(commit.JobFinishedMessage(queueName, types.MustJobID(id), hashFor(1), hashFor(1), ""))
}

func (h *history) log() message.Log {
	h.t.Helper()
	newestFirst := make([]commit.Info, len(h.infos))
	for i, info := range h.infos {
		newestFirst[len(h.infos)-1-i] = info
	}
	log, err := message.FromCommits(newestFirst)
	require.NoError(h.t, err)
	return log
}

func TestBuild_ValidHistory(t *testing.T) {
	h := &history{t: t}
	h.created(1).created(2).started(1).finished(1).created(3).started(2)

	tracker := Build(h.log())
	require.NoError(t, tracker.Err())

	assert.Equal(t, StateFinished, tracker.State(types.MustJobID(1)))
	assert.Equal(t, StateStarted, tracker.State(types.MustJobID(2)))
	assert.Equal(t, StateNew, tracker.State(types.MustJobID(3)))
	assert.Equal(t, StateUnknown, tracker.State(types.MustJobID(4)))
	assert.Equal(t, types.MustJobID(2), tracker.InFlight())

	assert.Equal(t, Stats{Total: 3, Pending: 1, InFlight: 1, Finished: 1}, tracker.Stats())

	rec, ok := tracker.Record(types.MustJobID(1))
	require.True(t, ok)
	assert.Equal(t, hashFor(1), rec.Created)
	assert.Equal(t, hashFor(3), rec.Started)
	assert.Equal(t, hashFor(4), rec.Finished)

	records := tracker.Records()
	require.Len(t, records, 3)
	assert.Equal(t, types.MustJobID(1), records[0].ID)
	assert.Equal(t, types.MustJobID(3), records[2].ID)
}

func TestBuild_EmptyLog(t *testing.T) {
	tracker := Build(message.Log{})

	assert.NoError(t, tracker.Err())
	assert.True(t, tracker.InFlight().IsNull())
	assert.Equal(t, Stats{}, tracker.Stats())
	assert.Empty(t, tracker.Violations())
}

func TestBuild_Violations(t *testing.T) {
	tests := []struct {
		name    string
		build   func(h *history)
		wantErr error
		wantJob int
	}{
		{
			name:    "started without new",
			build:   func(h *history) { h.started(1) },
			wantErr: ErrInvalidTransition,
			wantJob: 1,
		},
		{
			name:    "finished without started",
			build:   func(h *history) { h.created(1).finished(1) },
			wantErr: ErrInvalidTransition,
			wantJob: 1,
		},
		{
			name:    "finished twice",
			build:   func(h *history) { h.created(1).started(1).finished(1).finished(1) },
			wantErr: ErrInvalidTransition,
			wantJob: 1,
		},
		{
			name:    "created twice",
			build:   func(h *history) { h.created(1).created(1) },
			wantErr: ErrInvalidTransition,
			wantJob: 1,
		},
		{
			name:    "gap in created ids",
			build:   func(h *history) { h.created(1).created(3) },
			wantErr: ErrNonSequentialJobID,
			wantJob: 3,
		},
		{
			name:    "two jobs in flight",
			build:   func(h *history) { h.created(1).created(2).started(1).started(2) },
			wantErr: ErrMultipleJobsInFlight,
			wantJob: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &history{t: t}
			tt.build(h)

			tracker := Build(h.log())
			require.Error(t, tracker.Err())
			assert.ErrorIs(t, tracker.Err(), tt.wantErr)

			var terr *TransitionError
			require.ErrorAs(t, tracker.Err(), &terr)
			assert.Equal(t, types.MustJobID(tt.wantJob), terr.JobID)
		})
	}
}

func TestBuild_CollectsEveryViolation(t *testing.T) {
	h := &history{t: t}
	h.started(1).created(1).finished(1).created(3)

	tracker := Build(h.log())

	violations := tracker.Violations()
	require.Len(t, violations, 3)
	assert.ErrorIs(t, violations[0], ErrInvalidTransition)
	assert.ErrorIs(t, violations[1], ErrInvalidTransition)
	assert.ErrorIs(t, violations[2], ErrNonSequentialJobID)
}

func TestApply_SubjectWithoutJobID(t *testing.T) {
	info := commit.Info{
		Hash:    hashFor(1),
		Subject: "📝🈺: queue-name",
		Body:    commit.NewBody(commit.Metadata{JobNumber: 1}, "").Text(),
	}
	m, err := message.FromCommitInfo(info)
	require.NoError(t, err)

	tracker := New()
	require.NoError(t, tracker.Apply(m))
	assert.Equal(t, StateNew, tracker.State(types.MustJobID(1)))
}

func TestApply_NullMessageIsIgnored(t *testing.T) {
	tracker := New()
	assert.NoError(t, tracker.Apply(message.Null()))
	assert.Equal(t, Stats{}, tracker.Stats())
}

func TestTransitionError_Message(t *testing.T) {
	err := &TransitionError{
		JobID:  types.MustJobID(2),
		Commit: hashFor(7),
		Kind:   message.KindJobStarted,
		From:   StateNew,
		Err:    ErrMultipleJobsInFlight,
	}

	assert.Equal(t,
		"job 2: job-started message in commit "+hashFor(7).String()+" while new: more than one job in flight",
		err.Error())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "new", StateNew.String())
	assert.Equal(t, "started", StateStarted.String())
	assert.Equal(t, "finished", StateFinished.String())
	assert.Equal(t, "unknown", StateUnknown.String())
}

// ============================================================================
// Job state projection
// ============================================================================
//
// Package: internal/jobstate
// File: jobstate.go
// Purpose: replay one queue's message log (oldest to newest) into per-job
// states and check the queue invariants while doing so.
//
// State machine per job id:
//
//	(unknown) --new job--> New --job started--> Started --job finished--> Finished
//
// Invariants checked on every step:
//   - every message carries a job id
//   - job ids are created as 1, 2, 3, ... without gaps or repeats
//   - a job is never started without being created first
//   - a job is never finished without being started first
//   - a job is never finished twice
//   - at most one job is Started-but-not-Finished at any time
//
// The Tracker keeps going after a violation so that one run reports every
// problem found in history; violations are combined with multierr.
//
// ============================================================================

package jobstate

import (
	"errors"
	"fmt"
	"sort"

	"go.uber.org/multierr"

	"github.com/ChuLiYu/git-queue/internal/message"
	"github.com/ChuLiYu/git-queue/pkg/types"
)

var (
	// ErrInvalidTransition indicates an event that does not follow New -> Started -> Finished
	ErrInvalidTransition = errors.New("invalid job state transition")

	// ErrMissingJobID indicates a queue message without a job id
	ErrMissingJobID = errors.New("message has no job id")

	// ErrNonSequentialJobID indicates a created job id that is not the previous one plus one
	ErrNonSequentialJobID = errors.New("job id is not consecutive")

	// ErrMultipleJobsInFlight indicates a job started while another one was still running
	ErrMultipleJobsInFlight = errors.New("more than one job in flight")
)

// State is the lifecycle position of one job.
type State int

const (
	StateUnknown State = iota
	StateNew
	StateStarted
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateStarted:
		return "started"
	case StateFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Record is everything the log says about one job.
type Record struct {
	ID       types.JobID
	State    State
	Created  types.CommitHash
	Started  types.CommitHash
	Finished types.CommitHash
}

// Stats summarizes a queue.
type Stats struct {
	Total    int `json:"total"`
	Pending  int `json:"pending"`
	InFlight int `json:"in_flight"`
	Finished int `json:"finished"`
}

// TransitionError reports one message that breaks an invariant.
type TransitionError struct {
	JobID  types.JobID
	Commit types.CommitHash
	Kind   message.Kind
	From   State // state of the job before the offending message
	Err    error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("job %s: %s message in commit %s while %s: %v", e.JobID, e.Kind, e.Commit, e.From, e.Err)
}

func (e *TransitionError) Unwrap() error {
	return e.Err
}

// Tracker holds the replayed states of one queue.
type Tracker struct {
	jobs        map[types.JobID]*Record
	lastCreated types.JobID
	inFlight    types.JobID
	errs        error
}

// New returns an empty tracker; feed it with Apply.
func New() *Tracker {
	return &Tracker{jobs: make(map[types.JobID]*Record)}
}

// Build replays a one-queue log from its oldest message.
func Build(log message.Log) *Tracker {
	t := New()
	for _, m := range log.Oldest() {
		_ = t.Apply(m)
	}
	return t
}

// Apply advances the state of the message's job. A violation is returned and
// also kept for Err; the message is still applied where that makes sense so
// that later messages are judged against what history actually says.
func (t *Tracker) Apply(m message.CommittedMessage) error {
	if m.IsNull() {
		return nil
	}

	id := m.JobID()
	if id.IsNull() {
		return t.fail(m, StateUnknown, ErrMissingJobID)
	}

	rec, known := t.jobs[id]
	from := StateUnknown
	if known {
		from = rec.State
	}

	switch m.Kind() {
	case message.KindNewJob:
		if known {
			return t.fail(m, from, ErrInvalidTransition)
		}
		t.jobs[id] = &Record{ID: id, State: StateNew, Created: m.CommitHash()}
		expected := t.lastCreated.Next()
		if id.Int() > t.lastCreated.Int() {
			t.lastCreated = id
		}
		if id != expected {
			return t.fail(m, from, ErrNonSequentialJobID)
		}

	case message.KindJobStarted:
		if from != StateNew {
			return t.fail(m, from, ErrInvalidTransition)
		}
		rec.State = StateStarted
		rec.Started = m.CommitHash()
		blocked := !t.inFlight.IsNull()
		t.inFlight = id
		if blocked {
			return t.fail(m, from, ErrMultipleJobsInFlight)
		}

	case message.KindJobFinished:
		if from != StateStarted {
			return t.fail(m, from, ErrInvalidTransition)
		}
		rec.State = StateFinished
		rec.Finished = m.CommitHash()
		if t.inFlight == id {
			t.inFlight = types.NullJobID()
		}
	}

	return nil
}

func (t *Tracker) fail(m message.CommittedMessage, from State, err error) error {
	terr := &TransitionError{JobID: m.JobID(), Commit: m.CommitHash(), Kind: m.Kind(), From: from, Err: err}
	t.errs = multierr.Append(t.errs, terr)
	return terr
}

// Err returns every violation seen so far, or nil.
func (t *Tracker) Err() error {
	return t.errs
}

// Violations lists the violations one by one.
func (t *Tracker) Violations() []error {
	return multierr.Errors(t.errs)
}

func (t *Tracker) State(id types.JobID) State {
	if rec, ok := t.jobs[id]; ok {
		return rec.State
	}
	return StateUnknown
}

func (t *Tracker) Record(id types.JobID) (Record, bool) {
	rec, ok := t.jobs[id]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// InFlight returns the job currently Started, or the null id.
func (t *Tracker) InFlight() types.JobID {
	return t.inFlight
}

// Records returns all jobs ordered by id.
func (t *Tracker) Records() []Record {
	out := make([]Record, 0, len(t.jobs))
	for _, rec := range t.jobs {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.Int() < out[j].ID.Int() })
	return out
}

func (t *Tracker) Stats() Stats {
	s := Stats{Total: len(t.jobs)}
	for _, rec := range t.jobs {
		switch rec.State {
		case StateNew:
			s.Pending++
		case StateStarted:
			s.InFlight++
		case StateFinished:
			s.Finished++
		}
	}
	return s
}

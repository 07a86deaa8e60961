package queue

// ============================================================================
// Queue errors
// Purpose: storage binding and state machine failures of queue commands
// ============================================================================

import (
	"errors"
	"fmt"

	"github.com/ChuLiYu/git-queue/pkg/types"
)

var (
	// ErrStorageNotInitialized indicates the storage location is not a repository
	ErrStorageNotInitialized = errors.New("storage not initialized")

	// ErrMissingNewJobMessage indicates a start of a job whose latest message is not a new job message
	ErrMissingNewJobMessage = errors.New("previous message of the job is not a new job message")

	// ErrMissingJobStartedMessage indicates a finish of a job whose latest message is not a job started message
	ErrMissingJobStartedMessage = errors.New("previous message of the job is not a job started message")

	// ErrPendingJobsLimitReached indicates a start while another job is still in flight
	ErrPendingJobsLimitReached = errors.New("there is already an unfinished job")

	// ErrCommitNotFound indicates an appended commit missing from the reloaded history
	ErrCommitNotFound = errors.New("appended commit not found in history")
)

// Command names used in StateError and by the Recorder.
const (
	OpCreate = "create"
	OpStart  = "start"
	OpFinish = "finish"
)

// StateError reports a command rejected by the queue state machine. Commit is
// the message that triggered the rejection, or the null hash when the queue
// has no message for the job at all.
type StateError struct {
	Op            string
	Queue         types.QueueName
	JobID         types.JobID
	Commit        types.CommitHash
	BlockingJobID types.JobID // set with ErrPendingJobsLimitReached
	Err           error
}

func (e *StateError) Error() string {
	if errors.Is(e.Err, ErrPendingJobsLimitReached) {
		return fmt.Sprintf("can't %s job %s in queue %s: %v: job %s started in commit %s",
			e.Op, e.JobID, e.Queue, e.Err, e.BlockingJobID, e.Commit)
	}
	return fmt.Sprintf("can't %s job %s in queue %s: %v. Previous message commit: %s",
		e.Op, e.JobID, e.Queue, e.Err, e.Commit)
}

func (e *StateError) Unwrap() error {
	return e.Err
}

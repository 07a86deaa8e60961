package queue

import (
	"fmt"

	"github.com/ChuLiYu/git-queue/internal/message"
	"github.com/ChuLiYu/git-queue/pkg/types"
)

// Job is derived from a new job message; it is never stored on its own.
// The zero value is the null job.
type Job struct {
	id      types.JobID
	commit  types.CommitHash
	payload string
}

// NullJob is returned when there is no job to hand out.
func NullJob() Job {
	return Job{}
}

// JobFromMessage builds the job created by m. Any other message yields the null job.
func JobFromMessage(m message.CommittedMessage) Job {
	if !m.IsNewJob() {
		return NullJob()
	}
	return Job{id: m.JobID(), commit: m.CommitHash(), payload: m.Payload()}
}

func (j Job) IsNull() bool {
	return j.commit.IsNull()
}

func (j Job) ID() types.JobID {
	return j.id
}

// CommitHash is the hash of the job's new job commit.
func (j Job) CommitHash() types.CommitHash {
	return j.commit
}

func (j Job) Payload() string {
	return j.payload
}

func (j Job) Equal(other Job) bool {
	return j == other
}

func (j Job) String() string {
	if j.IsNull() {
		return "--no-job--"
	}
	return fmt.Sprintf("job %s (%s)", j.id, j.commit.Short())
}

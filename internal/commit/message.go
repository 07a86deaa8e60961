package commit

import "github.com/ChuLiYu/git-queue/pkg/types"

// Message is a logical queue event before it is committed.
type Message struct {
	Key       types.MessageKey
	Queue     types.QueueName
	JobID     types.JobID
	JobRef    types.CommitHash // previous event of the same job
	JobCommit types.CommitHash // the job's new-job commit, recorded in metadata
	WorkerID  string
	Payload   string
}

// NewJobMessage builds the creation event of job id.
func NewJobMessage(queue types.QueueName, id types.JobID, payload string) Message {
	return Message{Key: types.KeyNewJob, Queue: queue, JobID: id, Payload: payload}
}

// JobStartedMessage references the job's new-job commit.
func JobStartedMessage(queue types.QueueName, id types.JobID, newJobCommit types.CommitHash, payload string) Message {
	return Message{
		Key:       types.KeyJobStarted,
		Queue:     queue,
		JobID:     id,
		JobRef:    newJobCommit,
		JobCommit: newJobCommit,
		Payload:   payload,
	}
}

// JobFinishedMessage references the job's started commit.
func JobFinishedMessage(queue types.QueueName, id types.JobID, startedCommit, newJobCommit types.CommitHash, payload string) Message {
	return Message{
		Key:       types.KeyJobFinished,
		Queue:     queue,
		JobID:     id,
		JobRef:    startedCommit,
		JobCommit: newJobCommit,
		Payload:   payload,
	}
}

func (m Message) Subject() Subject {
	return Subject{Key: m.Key, Queue: m.Queue, JobID: m.JobID, JobRef: m.JobRef}
}

// BodyFromMessage builds the version 1 envelope for m.
func BodyFromMessage(m Message) Body {
	return NewBody(Metadata{
		JobNumber: m.JobID.Int(),
		JobCommit: m.JobCommit.Hash(),
		WorkerID:  m.WorkerID,
	}, m.Payload)
}

func (m Message) Body() Body {
	return BodyFromMessage(m)
}

// Text is the full commit message: subject, blank line, body.
func (m Message) Text() string {
	return m.Subject().String() + "\n\n" + m.Body().Text()
}

package message

import (
	"github.com/ChuLiYu/git-queue/internal/commit"
	"github.com/ChuLiYu/git-queue/pkg/types"
)

// Log is a read-only, newest-first list of committed messages; the in-memory
// counterpart of `git log` restricted to queue commits.
type Log struct {
	messages []CommittedMessage
}

// FromCommits builds a log from raw history (newest first). Commits without
// the queue subject prefix are skipped before any parsing happens.
func FromCommits(commits []commit.Info) (Log, error) {
	messages := make([]CommittedMessage, 0, len(commits))
	for _, info := range commits {
		if !commit.BelongsToAnyQueue(info.Subject) {
			continue
		}
		m, err := FromCommitInfo(info)
		if err != nil {
			return Log{}, err
		}
		messages = append(messages, m)
	}
	return Log{messages: messages}, nil
}

// NewLog wraps already decoded messages, newest first.
func NewLog(messages ...CommittedMessage) Log {
	return Log{messages: append([]CommittedMessage(nil), messages...)}
}

// Messages returns a copy of the messages, newest first.
func (l Log) Messages() []CommittedMessage {
	return append([]CommittedMessage(nil), l.messages...)
}

// Oldest returns a copy of the messages, oldest first.
func (l Log) Oldest() []CommittedMessage {
	out := make([]CommittedMessage, len(l.messages))
	for i, m := range l.messages {
		out[len(l.messages)-1-i] = m
	}
	return out
}

func (l Log) Len() int {
	return len(l.messages)
}

func (l Log) IsEmpty() bool {
	return len(l.messages) == 0
}

func (l Log) at(i int) CommittedMessage {
	if i < 0 || i >= len(l.messages) {
		return Null()
	}
	return l.messages[i]
}

func (l Log) GetLatestMessage() CommittedMessage {
	return l.at(0)
}

func (l Log) GetNextToLatestMessage() CommittedMessage {
	return l.at(1)
}

func (l Log) find(match func(CommittedMessage) bool) CommittedMessage {
	for _, m := range l.messages {
		if match(m) {
			return m
		}
	}
	return Null()
}

// GetLatestMessageRelatedToJob scans newest to oldest for the first message of job id.
func (l Log) GetLatestMessageRelatedToJob(id types.JobID) CommittedMessage {
	if id.IsNull() {
		return Null()
	}
	return l.find(func(m CommittedMessage) bool { return m.JobID() == id })
}

func (l Log) GetLatestNewJobMessage() CommittedMessage {
	return l.find(CommittedMessage.IsNewJob)
}

func (l Log) GetLatestStartedJobMessage() CommittedMessage {
	return l.find(CommittedMessage.IsJobStarted)
}

func (l Log) GetLatestFinishedJobMessage() CommittedMessage {
	return l.find(CommittedMessage.IsJobFinished)
}

// GetJobCreationMessage returns the new-job message of job id.
func (l Log) GetJobCreationMessage(id types.JobID) CommittedMessage {
	if id.IsNull() {
		return Null()
	}
	return l.find(func(m CommittedMessage) bool { return m.IsNewJob() && m.JobID() == id })
}

func (l Log) FindByCommitHash(hash types.CommitHash) CommittedMessage {
	if hash.IsNull() {
		return Null()
	}
	return l.find(func(m CommittedMessage) bool { return m.CommitHash() == hash })
}

// FilterByQueue derives the sub-log of one queue, preserving order.
func (l Log) FilterByQueue(name types.QueueName) Log {
	filtered := make([]CommittedMessage, 0, len(l.messages))
	for _, m := range l.messages {
		if m.BelongsToQueue(name) {
			filtered = append(filtered, m)
		}
	}
	return Log{messages: filtered}
}

// Equal compares two logs message by message.
func (l Log) Equal(other Log) bool {
	if len(l.messages) != len(other.messages) {
		return false
	}
	for i := range l.messages {
		if !l.messages[i].Equal(other.messages[i]) {
			return false
		}
	}
	return true
}

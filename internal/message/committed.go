// Package message turns raw commits into typed queue events.
//
// A CommittedMessage is bound to exactly one commit and never changes. A Log
// is the ordered (newest first) sequence of those events for one repository
// or one queue; it is rebuilt from history on every load and never mutated.
package message

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ChuLiYu/git-queue/internal/commit"
	"github.com/ChuLiYu/git-queue/pkg/types"
)

// ErrInvalidMessageKey indicates a queue commit whose key is none of the known kinds.
var ErrInvalidMessageKey = errors.New("invalid message key")

// Kind discriminates the CommittedMessage variants.
type Kind int

const (
	KindNull Kind = iota
	KindNewJob
	KindJobStarted
	KindJobFinished
)

func (k Kind) String() string {
	switch k {
	case KindNewJob:
		return "new-job"
	case KindJobStarted:
		return "job-started"
	case KindJobFinished:
		return "job-finished"
	default:
		return "null"
	}
}

// kindForKey maps a subject key to its variant.
func kindForKey(key types.MessageKey) (Kind, bool) {
	switch key {
	case types.KeyNewJob:
		return KindNewJob, true
	case types.KeyJobStarted:
		return KindJobStarted, true
	case types.KeyJobFinished:
		return KindJobFinished, true
	}
	return KindNull, false
}

// CommittedMessage is a queue event read back from one commit.
type CommittedMessage struct {
	kind    Kind
	commit  commit.Info
	subject commit.Subject
	body    commit.Body
}

// FromCommitInfo decodes subject and body and picks the variant from the key.
func FromCommitInfo(info commit.Info) (CommittedMessage, error) {
	subject, err := commit.ParseSubject(info.Subject)
	if err != nil {
		return CommittedMessage{}, fmt.Errorf("commit %s: %w", info.Hash, err)
	}

	kind, ok := kindForKey(subject.Key)
	if !ok {
		return CommittedMessage{}, fmt.Errorf("commit %s: %w: %s", info.Hash, ErrInvalidMessageKey, subject.Key)
	}

	body, err := commit.ParseBody(info.Body)
	if err != nil {
		return CommittedMessage{}, fmt.Errorf("commit %s: %w", info.Hash, err)
	}

	return CommittedMessage{kind: kind, commit: info, subject: subject, body: body}, nil
}

// Null is the message returned by lookups that find nothing.
func Null() CommittedMessage {
	return CommittedMessage{kind: KindNull, commit: commit.NullInfo()}
}

func (m CommittedMessage) Kind() Kind {
	return m.kind
}

func (m CommittedMessage) IsNull() bool {
	return m.kind == KindNull
}

func (m CommittedMessage) IsNewJob() bool {
	return m.kind == KindNewJob
}

func (m CommittedMessage) IsJobStarted() bool {
	return m.kind == KindJobStarted
}

func (m CommittedMessage) IsJobFinished() bool {
	return m.kind == KindJobFinished
}

func (m CommittedMessage) CommitInfo() commit.Info {
	return m.commit
}

func (m CommittedMessage) CommitHash() types.CommitHash {
	return m.commit.Hash
}

func (m CommittedMessage) ShortCommitHash() types.ShortCommitHash {
	return m.commit.Hash.Short()
}

func (m CommittedMessage) CommitSubject() commit.Subject {
	return m.subject
}

func (m CommittedMessage) Body() commit.Body {
	return m.body
}

// Payload returns the body payload without surrounding whitespace.
func (m CommittedMessage) Payload() string {
	return strings.TrimSpace(m.body.Payload)
}

// JobID is the subject's job.id. Legacy subjects without job.id fall back to
// the body's job_number; the null message has a null id.
func (m CommittedMessage) JobID() types.JobID {
	if !m.subject.JobID.IsNull() {
		return m.subject.JobID
	}
	id, err := types.NewJobID(m.body.Metadata.JobNumber)
	if err != nil {
		return types.NullJobID()
	}
	return id
}

// JobRef points at the previous event of the same job.
func (m CommittedMessage) JobRef() types.CommitHash {
	return m.subject.JobRef
}

func (m CommittedMessage) BelongsToQueue(name types.QueueName) bool {
	return !m.IsNull() && m.subject.BelongsToQueue(name)
}

// Equal compares the underlying commit metadata.
func (m CommittedMessage) Equal(other CommittedMessage) bool {
	return m.kind == other.kind && m.commit.Equal(other.commit)
}

package commit

import (
	"strings"

	"github.com/ChuLiYu/git-queue/pkg/types"
)

// Subject line grammar:
//
//	<SubjectPrefix><MessageKey>: <QueueName>[ job.id.<JobID>][ job.ref.<CommitHash>]
//
// Older histories used ": " instead of a single space in front of the job
// segments; ParseSubject accepts both.
const (
	SubjectPrefix    = "📝"
	SubjectDelimiter = ":"

	jobIDMarker  = "job.id."
	jobRefMarker = "job.ref."
)

// Subject is the decoded first line of a queue commit.
type Subject struct {
	Key    types.MessageKey
	Queue  types.QueueName
	JobID  types.JobID      // null on legacy subjects without job.id.
	JobRef types.CommitHash // null for new-job events
}

// BelongsToAnyQueue is the cheap prefix test used to skip unrelated commits
// before fully parsing them.
func BelongsToAnyQueue(text string) bool {
	return strings.HasPrefix(text, SubjectPrefix)
}

// ParseSubject decodes a subject line.
func ParseSubject(text string) (Subject, error) {
	fail := func(err error) (Subject, error) {
		return Subject{}, &SubjectError{Subject: text, Err: err}
	}

	rest, ok := strings.CutPrefix(text, SubjectPrefix)
	if !ok {
		return fail(ErrMissingMessageKey)
	}

	key, rest, found := strings.Cut(rest, SubjectDelimiter)
	if strings.TrimSpace(key) == "" {
		return fail(ErrMissingMessageKey)
	}
	if !found {
		return fail(ErrMissingQueueName)
	}

	segment := queueSegment(rest)
	if strings.TrimSpace(segment) == "" {
		return fail(ErrMissingQueueName)
	}
	queue, err := types.NewQueueName(segment)
	if err != nil {
		return fail(err)
	}

	s := Subject{Key: types.MessageKey(key), Queue: queue}

	if value, ok := markerValue(rest, jobIDMarker); ok {
		if s.JobID, err = types.ParseJobID(value); err != nil {
			return fail(err)
		}
	}

	if value, ok := markerValue(rest, jobRefMarker); ok {
		if value == "" {
			return fail(ErrMissingCommitHashInJobReference)
		}
		if s.JobRef, err = types.NewCommitHash(value); err != nil {
			return fail(err)
		}
	}

	return s, nil
}

// queueSegment returns the text between the key delimiter and the first job
// segment (or the legacy second delimiter).
func queueSegment(rest string) string {
	end := len(rest)
	for _, stop := range []string{SubjectDelimiter, jobIDMarker, jobRefMarker} {
		if i := strings.Index(rest, stop); i >= 0 && i < end {
			end = i
		}
	}
	return rest[:end]
}

// markerValue returns the token following marker, up to the next whitespace.
func markerValue(text, marker string) (string, bool) {
	i := strings.Index(text, marker)
	if i < 0 {
		return "", false
	}
	value := text[i+len(marker):]
	if j := strings.IndexAny(value, " \t"); j >= 0 {
		value = value[:j]
	}
	return strings.TrimSpace(value), true
}

// String encodes the subject. ParseSubject(s.String()) == s for any subject
// with a non-empty key and queue.
func (s Subject) String() string {
	var b strings.Builder
	b.WriteString(SubjectPrefix)
	b.WriteString(s.Key.String())
	b.WriteString(SubjectDelimiter)
	b.WriteString(" ")
	b.WriteString(s.Queue.String())
	if !s.JobID.IsNull() {
		b.WriteString(" " + jobIDMarker + s.JobID.String())
	}
	if !s.JobRef.IsNull() {
		b.WriteString(" " + jobRefMarker + s.JobRef.Hash())
	}
	return b.String()
}

// BelongsToQueue matches the decoded queue name exactly.
func (s Subject) BelongsToQueue(name types.QueueName) bool {
	return s.Queue == name
}

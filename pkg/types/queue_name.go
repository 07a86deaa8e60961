package types

import (
	"regexp"
	"strings"
)

// MaxQueueNameLength bounds the queue segment of a commit subject.
const MaxQueueNameLength = 100

var queueNamePattern = regexp.MustCompile(`^[a-z_-]+$`)

// QueueName is the slug naming one queue inside a repository.
// The zero value is the null name used by uninitialized contexts.
type QueueName struct {
	value string
}

// NewQueueName normalizes (trim, lowercase, spaces to dashes) and validates a name.
func NewQueueName(raw string) (QueueName, error) {
	name := strings.ToLower(strings.TrimSpace(raw))
	name = strings.Join(strings.Fields(name), "-")
	if name == "" || len(name) > MaxQueueNameLength || !queueNamePattern.MatchString(name) {
		return QueueName{}, invalid(ErrInvalidQueueName, raw)
	}
	return QueueName{value: name}, nil
}

func MustQueueName(raw string) QueueName {
	n, err := NewQueueName(raw)
	if err != nil {
		panic(err)
	}
	return n
}

func NullQueueName() QueueName {
	return QueueName{}
}

func (n QueueName) IsNull() bool {
	return n.value == ""
}

func (n QueueName) String() string {
	return n.value
}

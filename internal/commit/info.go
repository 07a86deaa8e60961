package commit

import (
	"strings"
	"time"

	"github.com/ChuLiYu/git-queue/pkg/types"
)

// Info is the raw metadata of one commit as read back from history.
type Info struct {
	Hash        types.CommitHash
	Date        time.Time
	Subject     string // first line of the message
	Body        string // message after the subject, blank separator removed
	AuthorName  string
	AuthorEmail string
}

// NullInfo is the metadata carried by null messages.
func NullInfo() Info {
	return Info{}
}

// SplitMessage separates a full commit message into subject and body.
func SplitMessage(message string) (subject, body string) {
	subject, body, _ = strings.Cut(message, "\n")
	return strings.TrimRight(subject, "\r"), strings.TrimSpace(body)
}

// Equal compares every field; dates are compared as instants.
func (i Info) Equal(other Info) bool {
	return i.Hash == other.Hash &&
		i.Date.Equal(other.Date) &&
		i.Subject == other.Subject &&
		i.Body == other.Body &&
		i.AuthorName == other.AuthorName &&
		i.AuthorEmail == other.AuthorEmail
}

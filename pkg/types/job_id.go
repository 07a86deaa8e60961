package types

import (
	"strconv"
	"strings"
)

// NoJobID is the printable form of the null JobID.
const NoJobID = "--no-job-id--"

// JobID is the per-queue sequence number of a job. Ids start at 1 and grow
// by one for every created job. The zero value means "no job".
type JobID struct {
	value int
}

// NewJobID validates a positive job id.
func NewJobID(value int) (JobID, error) {
	if value <= 0 {
		return JobID{}, invalid(ErrInvalidJobID, value)
	}
	return JobID{value: value}, nil
}

// MustJobID panics when value is not a valid id.
func MustJobID(value int) JobID {
	id, err := NewJobID(value)
	if err != nil {
		panic(err)
	}
	return id
}

// ParseJobID parses the decimal text form, as found in commit subjects and CLI flags.
func ParseJobID(text string) (JobID, error) {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return JobID{}, invalid(ErrInvalidJobID, text)
	}
	return NewJobID(n)
}

func NullJobID() JobID {
	return JobID{}
}

func (id JobID) IsNull() bool {
	return id.value == 0
}

// Int returns the numeric id, 0 for the null id.
func (id JobID) Int() int {
	return id.value
}

// Next returns the id following this one; the id after null is 1.
func (id JobID) Next() JobID {
	return JobID{value: id.value + 1}
}

func (id JobID) String() string {
	if id.IsNull() {
		return NoJobID
	}
	return strconv.Itoa(id.value)
}

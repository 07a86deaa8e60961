package commit

// ============================================================================
// Commit codec errors
// Purpose: failures raised while encoding or decoding a commit subject/body
// ============================================================================

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingMessageKey indicates the glyph between the prefix and the delimiter is empty
	ErrMissingMessageKey = errors.New("missing message key in commit subject")

	// ErrMissingQueueName indicates the queue segment is absent or blank
	ErrMissingQueueName = errors.New("missing queue name in commit subject")

	// ErrMissingCommitHashInJobReference indicates a job.ref. marker without a hash
	ErrMissingCommitHashInJobReference = errors.New("missing commit hash in job reference")

	// ErrInvalidCommitBody indicates a body that is not a valid queue envelope
	ErrInvalidCommitBody = errors.New("invalid commit body")

	// ErrUnsupportedBodyVersion indicates an envelope version this build cannot read
	ErrUnsupportedBodyVersion = errors.New("unsupported commit body version")
)

// SubjectError reports a subject that could not be decoded.
type SubjectError struct {
	Subject string // raw subject line
	Err     error  // sentinel or identifier validation error
}

func (e *SubjectError) Error() string {
	return fmt.Sprintf("commit subject %q: %v", e.Subject, e.Err)
}

func (e *SubjectError) Unwrap() error {
	return e.Err
}

// BodyError reports a body that failed envelope validation. It always
// unwraps to ErrInvalidCommitBody in addition to the specific cause.
type BodyError struct {
	Body   string // raw body text
	Reason string // human readable violation
	Cause  error  // optional underlying error (JSON syntax, version)
}

func (e *BodyError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%v: %s: %v", ErrInvalidCommitBody, e.Reason, e.Cause)
	}
	return fmt.Sprintf("%v: %s", ErrInvalidCommitBody, e.Reason)
}

func (e *BodyError) Unwrap() []error {
	if e.Cause != nil {
		return []error{ErrInvalidCommitBody, e.Cause}
	}
	return []error{ErrInvalidCommitBody}
}

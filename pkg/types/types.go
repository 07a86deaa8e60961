// Package types defines the value identifiers shared by every git-queue layer.
//
// All identifiers are small immutable values compared with ==. Each one has a
// null form (its zero value) so lookups can return a value instead of a
// pointer, and every constructor validates its input and reports the
// offending raw value on failure.
package types

import (
	"errors"
	"fmt"
)

// ============================================================================
// Error definitions
// ============================================================================

var (
	// ErrInvalidHash indicates a value that is not a 40-char lowercase hex commit hash
	ErrInvalidHash = errors.New("invalid commit hash")

	// ErrInvalidShortHash indicates a value that is not a 7-char lowercase hex prefix
	ErrInvalidShortHash = errors.New("invalid short commit hash")

	// ErrInvalidJobID indicates a job id that is not a positive integer
	ErrInvalidJobID = errors.New("invalid job id")

	// ErrInvalidQueueName indicates a queue name outside the allowed slug alphabet
	ErrInvalidQueueName = errors.New("invalid queue name")

	// ErrInvalidEmail indicates a malformed email address
	ErrInvalidEmail = errors.New("invalid email address")

	// ErrInvalidSigningKeyID indicates a signing key id that is not a hex key id or fingerprint
	ErrInvalidSigningKeyID = errors.New("invalid signing key id")
)

func invalid(sentinel error, value any) error {
	return fmt.Errorf("%w: %q", sentinel, fmt.Sprint(value))
}

package gitrepo

// ============================================================================
// Git storage errors
// ============================================================================

import (
	"errors"
	"fmt"
)

var (
	// ErrNotInitialized indicates the directory is not a git repository
	ErrNotInitialized = errors.New("gitrepo: not a git repository")

	// ErrSigningKeyNotFound indicates no entity of the keyring matches the requested key id
	ErrSigningKeyNotFound = errors.New("gitrepo: signing key not found in keyring")

	// ErrSigningKeyLocked indicates the signing key is encrypted and the passphrase did not open it
	ErrSigningKeyLocked = errors.New("gitrepo: signing key is locked")
)

// RepositoryError wraps a go-git failure with the directory and operation.
type RepositoryError struct {
	Dir string
	Op  string
	Err error
}

func (e *RepositoryError) Error() string {
	return fmt.Sprintf("gitrepo: %s %s: %v", e.Op, e.Dir, e.Err)
}

func (e *RepositoryError) Unwrap() error {
	return e.Err
}

package types

import "regexp"

const (
	// NoCommitHash is the printable form of the null CommitHash.
	NoCommitHash = "--no-commit-hash--"

	// NoShortCommitHash is the printable form of the null ShortCommitHash.
	NoShortCommitHash = "--no-short-commit-hash--"

	shortHashLen = 7
)

var (
	commitHashPattern      = regexp.MustCompile(`^[0-9a-f]{40}$`)
	shortCommitHashPattern = regexp.MustCompile(`^[0-9a-f]{7}$`)
)

// CommitHash identifies one physical commit. The zero value is the null hash.
type CommitHash struct {
	value string
}

// NewCommitHash validates a full 40-character lowercase hex hash.
func NewCommitHash(value string) (CommitHash, error) {
	if !commitHashPattern.MatchString(value) {
		return CommitHash{}, invalid(ErrInvalidHash, value)
	}
	return CommitHash{value: value}, nil
}

// MustCommitHash is like NewCommitHash but panics on invalid input.
// Intended for constants in tests and fixtures.
func MustCommitHash(value string) CommitHash {
	h, err := NewCommitHash(value)
	if err != nil {
		panic(err)
	}
	return h
}

// NullCommitHash returns the hash used when no commit exists.
func NullCommitHash() CommitHash {
	return CommitHash{}
}

func (h CommitHash) IsNull() bool {
	return h.value == ""
}

// Hash returns the raw hex string, empty for the null hash.
func (h CommitHash) Hash() string {
	return h.value
}

// Short returns the 7-character prefix form.
func (h CommitHash) Short() ShortCommitHash {
	if h.IsNull() {
		return ShortCommitHash{}
	}
	return ShortCommitHash{value: h.value[:shortHashLen]}
}

func (h CommitHash) String() string {
	if h.IsNull() {
		return NoCommitHash
	}
	return h.value
}

// ShortCommitHash is the abbreviated 7-character form of a CommitHash.
type ShortCommitHash struct {
	value string
}

// NewShortCommitHash validates a 7-character lowercase hex prefix.
func NewShortCommitHash(value string) (ShortCommitHash, error) {
	if !shortCommitHashPattern.MatchString(value) {
		return ShortCommitHash{}, invalid(ErrInvalidShortHash, value)
	}
	return ShortCommitHash{value: value}, nil
}

func NullShortCommitHash() ShortCommitHash {
	return ShortCommitHash{}
}

func (h ShortCommitHash) IsNull() bool {
	return h.value == ""
}

func (h ShortCommitHash) Hash() string {
	return h.value
}

func (h ShortCommitHash) String() string {
	if h.IsNull() {
		return NoShortCommitHash
	}
	return h.value
}

package types

import (
	"regexp"
	"strconv"
	"strings"
)

var signingKeyIDPattern = regexp.MustCompile(`^([0-9A-F]{8}|[0-9A-F]{16}|[0-9A-F]{40})$`)

// SigningKeyID names the OpenPGP key used to sign queue commits.
// Accepted forms: short id (8 hex), long id (16 hex) or fingerprint (40 hex).
type SigningKeyID struct {
	value string
}

func NewSigningKeyID(raw string) (SigningKeyID, error) {
	id := strings.ToUpper(strings.TrimPrefix(strings.TrimSpace(raw), "0x"))
	if !signingKeyIDPattern.MatchString(id) {
		return SigningKeyID{}, invalid(ErrInvalidSigningKeyID, raw)
	}
	return SigningKeyID{value: id}, nil
}

func NullSigningKeyID() SigningKeyID {
	return SigningKeyID{}
}

func (k SigningKeyID) IsNull() bool {
	return k.value == ""
}

// IsShort reports whether only the 32-bit short id is known.
func (k SigningKeyID) IsShort() bool {
	return len(k.value) == 8
}

// KeyID returns the numeric id: the low 64 bits of a fingerprint, the long
// id as is, or the 32-bit short id.
func (k SigningKeyID) KeyID() uint64 {
	if k.IsNull() {
		return 0
	}
	hex := k.value
	if len(hex) == 40 {
		hex = hex[24:]
	}
	n, _ := strconv.ParseUint(hex, 16, 64)
	return n
}

func (k SigningKeyID) String() string {
	return k.value
}

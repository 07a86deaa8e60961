package types

import (
	"fmt"
	"regexp"
	"strings"
)

var emailPattern = regexp.MustCompile(`^[^<>()\[\]\\,;:\s@"]+@[^<>()\[\]\\,;:\s@"]+\.[^<>()\[\]\\,;:\s@".]{2,}$`)

// EmailAddress is a commit identity in the form "Display Name <email>" or "email".
// The zero value is the null address.
type EmailAddress struct {
	name    string
	address string
}

// ParseEmailAddress accepts "Name <email>" and bare "email".
func ParseEmailAddress(raw string) (EmailAddress, error) {
	text := strings.TrimSpace(raw)
	var name, address string

	lt, gt := strings.Index(text, "<"), strings.LastIndex(text, ">")
	switch {
	case lt >= 0 && gt > lt:
		name = strings.TrimSpace(text[:lt])
		address = strings.TrimSpace(text[lt+1 : gt])
	case lt >= 0 || gt >= 0:
		return EmailAddress{}, invalid(ErrInvalidEmail, raw)
	default:
		address = text
	}

	if !emailPattern.MatchString(address) {
		return EmailAddress{}, invalid(ErrInvalidEmail, raw)
	}
	return EmailAddress{name: name, address: address}, nil
}

// NewEmailAddress builds an address from its parts.
func NewEmailAddress(name, address string) (EmailAddress, error) {
	if name == "" {
		return ParseEmailAddress(address)
	}
	return ParseEmailAddress(fmt.Sprintf("%s <%s>", name, address))
}

func (e EmailAddress) IsNull() bool {
	return e.address == ""
}

func (e EmailAddress) Name() string {
	return e.name
}

func (e EmailAddress) Address() string {
	return e.address
}

func (e EmailAddress) String() string {
	if e.name == "" {
		return e.address
	}
	return fmt.Sprintf("%s <%s>", e.name, e.address)
}

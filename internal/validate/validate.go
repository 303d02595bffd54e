// Package validate holds stateless credential policy checks.
package validate

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode"
)

// Reason identifies the first policy rule a value violated.
type Reason string

const (
	ReasonMissing       Reason = "missing"
	ReasonTooShort      Reason = "too short"
	ReasonTooSmall      Reason = "too small"
	ReasonNotEmail      Reason = "not a valid email"
	ReasonNeedUppercase Reason = "needs an uppercase letter"
	ReasonNeedDigit     Reason = "needs a digit"
	ReasonNeedSpecial   Reason = "needs a special character"
)

// ValidationError reports a single violated rule for one field.
type ValidationError struct {
	Field  string
	Reason Reason
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

const (
	minEmailLen    = 6
	minPasswordLen = 12

	// specialChars is the accepted special-character set for passwords.
	specialChars = "!@#$%^&*()-_=+[]{};:,.<>?/|~"
)

// Email checks presence, minimum length and address grammar, in that order.
func Email(email string) error {
	if email == "" {
		return &ValidationError{Field: "email", Reason: ReasonMissing}
	}
	if len(email) < minEmailLen {
		return &ValidationError{Field: "email", Reason: ReasonTooShort}
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return &ValidationError{Field: "email", Reason: ReasonNotEmail}
	}
	return nil
}

// Password checks strength rules in fixed order; only the first violated
// rule is reported.
func Password(password string) error {
	if password == "" {
		return &ValidationError{Field: "password", Reason: ReasonMissing}
	}
	if len(password) < minPasswordLen {
		return &ValidationError{Field: "password", Reason: ReasonTooSmall}
	}
	var upper, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune(specialChars, r):
			special = true
		}
	}
	if !upper {
		return &ValidationError{Field: "password", Reason: ReasonNeedUppercase}
	}
	if !digit {
		return &ValidationError{Field: "password", Reason: ReasonNeedDigit}
	}
	if !special {
		return &ValidationError{Field: "password", Reason: ReasonNeedSpecial}
	}
	return nil
}

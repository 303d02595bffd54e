package validate

import (
	"errors"
	"testing"
)

func reasonOf(t *testing.T, err error) Reason {
	t.Helper()
	var v *ValidationError
	if !errors.As(err, &v) {
		t.Fatalf("want *ValidationError, got %v", err)
	}
	return v.Reason
}

func TestEmail(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		email string
		want  Reason // empty means valid
	}{
		{"valid", "user@example.com", ""},
		{"missing", "", ReasonMissing},
		{"too short", "a@b.c", ReasonTooShort},
		{"no at sign", "userexample.com", ReasonNotEmail},
		{"spaces", "user @example.com", ReasonNotEmail},
		{"display name form", "User <user@example.com>", ReasonNotEmail},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Email(tc.email)
			if tc.want == "" {
				if err != nil {
					t.Fatalf("Email(%q): %v", tc.email, err)
				}
				return
			}
			if got := reasonOf(t, err); got != tc.want {
				t.Fatalf("Email(%q): reason=%q, want %q", tc.email, got, tc.want)
			}
		})
	}
}

func TestPassword_FirstViolatedRuleWins(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		password string
		want     Reason
	}{
		{"valid", "aBcdef+ghijkl9", ""},
		{"missing", "", ReasonMissing},
		{"too small", "aB1+x", ReasonTooSmall},
		// too small AND no uppercase: length must be reported first
		{"too small wins over uppercase", "abc1+efgh", ReasonTooSmall},
		{"no uppercase", "abcdef+ghijkl9", ReasonNeedUppercase},
		{"no digit", "aBcdef+ghijklm", ReasonNeedDigit},
		{"no special", "aBcdefghijklm9", ReasonNeedSpecial},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Password(tc.password)
			if tc.want == "" {
				if err != nil {
					t.Fatalf("Password(%q): %v", tc.password, err)
				}
				return
			}
			if got := reasonOf(t, err); got != tc.want {
				t.Fatalf("Password(%q): reason=%q, want %q", tc.password, got, tc.want)
			}
		})
	}
}

func TestValidationError_Message(t *testing.T) {
	t.Parallel()
	err := &ValidationError{Field: "password", Reason: ReasonTooSmall}
	if err.Error() != "password: too small" {
		t.Fatalf("message = %q", err.Error())
	}
}

// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrVersionConflict indicates optimistic concurrency failure (account version mismatch).
	ErrVersionConflict = errors.New("version conflict")

	// ErrEmailInUse indicates a unique constraint violation on the email column.
	ErrEmailInUse = errors.New("email already in use")

	// ErrNameInUse indicates a unique constraint violation on a company name.
	ErrNameInUse = errors.New("name already in use")

	// ErrInvalidCredentials indicates a wrong password or unknown email.
	// The two cases are deliberately indistinguishable to callers.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUnauthorized indicates failed authentication/authorization.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotLoggedIn indicates a logout without an authenticated caller.
	ErrNotLoggedIn = errors.New("not logged in")

	// ErrAlreadyConnected indicates a login attempt from an already authenticated session.
	ErrAlreadyConnected = errors.New("already connected")

	// ErrNoChallenge indicates no pending challenge exists for the account.
	ErrNoChallenge = errors.New("no pending challenge")

	// ErrChallengeExpired indicates the pending challenge is past its expiration.
	ErrChallengeExpired = errors.New("challenge expired")

	// ErrAccountLocked indicates the account exhausted its verification attempts.
	ErrAccountLocked = errors.New("account locked")

	// ErrCodeOutOfRange indicates a supplied code outside the configured digit width.
	ErrCodeOutOfRange = errors.New("code out of range")

	// ErrInvalidToken indicates a malformed or wrongly signed token.
	ErrInvalidToken = errors.New("invalid token")

	// ErrExpiredToken indicates a token past its expiration.
	ErrExpiredToken = errors.New("expired token")

	// ErrSameEmail indicates an email change to the address already in place.
	ErrSameEmail = errors.New("same email")

	// ErrInvalidPassword indicates the current password check failed on an authenticated operation.
	ErrInvalidPassword = errors.New("invalid password")

	// ErrMissingConfirmation indicates account deletion without the explicit confirmation flag.
	ErrMissingConfirmation = errors.New("missing confirmation")
)

// Package model defines domain entities used by services and repositories.
package model

import "time"

// AccountState is the lifecycle state of an account.
type AccountState int16

const (
	// StatePending means the account awaits its first registration validation.
	StatePending AccountState = 0
	// StateActive is the normal operating state.
	StateActive AccountState = 1
	// StateDisabled is reserved for administrative action.
	StateDisabled AccountState = 2
	// StateLocked means the account exhausted its verification attempt budget.
	StateLocked AccountState = 3
)

// AuthAction names the sensitive operation a pending challenge guards.
type AuthAction string

const (
	ActionRegister      AuthAction = "register"
	ActionLogin         AuthAction = "login"
	ActionResetPassword AuthAction = "reset-password"
	ActionChangeEmail   AuthAction = "change-email"
	ActionDeletion      AuthAction = "account-deletion"
)

// Challenge is the single pending sensitive operation on an account.
// The five fields live and die together; a nil *Challenge is the only
// representation of "no challenge outstanding".
type Challenge struct {
	Action    AuthAction
	Code      int       // positive, bounded by the configured digit width
	Attempts  int       // failed verifications against the current code
	ExpiresAt time.Time // informational past expiry; consumption is impossible
	Data      []byte    // opaque payload, semantics depend on Action
}

// Account is the authoritative record for one user.
type Account struct {
	ID            int64
	Email         string // unique, case-sensitive as stored
	PasswordHash  []byte // Argon2id(password, PasswordSalt)
	PasswordSalt  []byte
	State         AccountState
	Administrator bool
	CompanyID     *int64 // set at most once, never reset
	TokenGen      int64  // bumping invalidates all outstanding refresh tokens
	Challenge     *Challenge
	Version       int64 // optimistic concurrency guard for the auth unit
	CreatedAt     time.Time
}

// Company is a tenant unit owned by exactly one account.
type Company struct {
	ID        int64
	Name      string
	OwnerID   int64
	CreatedAt time.Time
}

// Tokens collects an issued access/refresh pair.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time // access token expiry (for diagnostics)
}

// SessionContext is the read-only projection returned after state-changing operations.
type SessionContext struct {
	Email         string
	Connected     bool
	Administrator bool
	Company       bool
}

// ContextFor derives the session context for an account.
func ContextFor(acc *Account, connected bool) SessionContext {
	return SessionContext{
		Email:         acc.Email,
		Connected:     connected,
		Administrator: acc.Administrator,
		Company:       acc.CompanyID != nil,
	}
}

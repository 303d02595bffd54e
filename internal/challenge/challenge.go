// Package challenge implements the single-pending-challenge state machine.
//
// Every sensitive operation (registration, login recovery, password reset,
// email change, account deletion) is guarded by the same shape: one short
// numeric code per account, a fixed attempt budget and an expiration. The
// engine mutates accounts in memory only; persisting a transition is the
// caller's job and must happen as one atomic write.
package challenge

import (
	"time"

	"github.com/avmikhailov/accountd/internal/crypto"
	"github.com/avmikhailov/accountd/internal/errs"
	"github.com/avmikhailov/accountd/internal/model"
)

// Outcome classifies the result of a verification step.
type Outcome int

const (
	// OutcomeMismatch means the supplied code was wrong and the attempt was counted.
	OutcomeMismatch Outcome = iota
	// OutcomeLocked means the failed attempt exhausted the budget: the account
	// is now LOCKED and the challenge is cleared.
	OutcomeLocked
	// OutcomeVerified means the code matched; the challenge is cleared and the
	// caller must apply the action effect in the same transaction.
	OutcomeVerified
)

// Engine generates and verifies challenges with a fixed digit width and
// attempt budget. The zero value is not usable; construct with New.
type Engine struct {
	digits      int
	maxAttempts int

	now      func() time.Time
	randCode func(digits int) (int, error)
}

// New constructs an engine with the given code digit width and attempt budget.
func New(digits, maxAttempts int) *Engine {
	return &Engine{
		digits:      digits,
		maxAttempts: maxAttempts,
		now:         time.Now,
		randCode:    crypto.RandCode,
	}
}

// MaxCode is the largest code the engine can draw or accept.
func (e *Engine) MaxCode() int {
	max := 1
	for i := 0; i < e.digits; i++ {
		max *= 10
	}
	return max - 1
}

// Start overwrites any existing challenge with a fresh one: new random code,
// attempts reset to zero, expiration now+ttl. A zero ttl produces an already
// expired challenge, which tests rely on.
func (e *Engine) Start(acc *model.Account, action model.AuthAction, data []byte, ttl time.Duration) error {
	code, err := e.randCode(e.digits)
	if err != nil {
		return err
	}
	acc.Challenge = &model.Challenge{
		Action:    action,
		Code:      code,
		Attempts:  0,
		ExpiresAt: e.now().Add(ttl),
		Data:      data,
	}
	return nil
}

// Verify checks the supplied code against the pending challenge.
//
// Out-of-range codes are rejected before comparison and do not consume an
// attempt. An expired challenge can never verify, even with the correct code,
// and is left in place until replaced or cleared by lockout. A mismatch
// consumes one attempt; the attempt that reaches the budget locks the account
// and clears the challenge atomically with the state change.
func (e *Engine) Verify(acc *model.Account, code int) (Outcome, error) {
	ch := acc.Challenge
	if ch == nil {
		return 0, errs.ErrNoChallenge
	}
	if code <= 0 || code > e.MaxCode() {
		return 0, errs.ErrCodeOutOfRange
	}
	if e.now().After(ch.ExpiresAt) {
		return 0, errs.ErrChallengeExpired
	}
	if code != ch.Code {
		return e.RecordFailure(acc), nil
	}
	acc.Challenge = nil
	return OutcomeVerified, nil
}

// RecordFailure counts one failed attempt against the pending challenge and
// applies lockout when the budget is exhausted. Login uses this directly for
// wrong passwords so password guessing and code guessing share one budget.
func (e *Engine) RecordFailure(acc *model.Account) Outcome {
	ch := acc.Challenge
	ch.Attempts++
	if ch.Attempts >= e.maxAttempts {
		acc.State = model.StateLocked
		acc.Challenge = nil
		return OutcomeLocked
	}
	return OutcomeMismatch
}

// Resend draws a new code and extends the expiration, preserving the action,
// payload and attempt count of the pending challenge.
func (e *Engine) Resend(acc *model.Account, ttl time.Duration) error {
	ch := acc.Challenge
	if ch == nil {
		return errs.ErrNoChallenge
	}
	code, err := e.randCode(e.digits)
	if err != nil {
		return err
	}
	ch.Code = code
	ch.ExpiresAt = e.now().Add(ttl)
	return nil
}

package challenge

import (
	"errors"
	"testing"
	"time"

	"github.com/avmikhailov/accountd/internal/errs"
	"github.com/avmikhailov/accountd/internal/model"
)

// fixed clock and code sequence for deterministic transitions
func testEngine(codes ...int) (*Engine, time.Time) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	e := New(6, 3)
	e.now = func() time.Time { return now }
	i := 0
	e.randCode = func(int) (int, error) {
		c := codes[i%len(codes)]
		i++
		return c, nil
	}
	return e, now
}

// checkUnit asserts the all-or-nothing shape of the challenge fields.
func checkUnit(t *testing.T, acc *model.Account) {
	t.Helper()
	if acc.Challenge == nil {
		return
	}
	ch := acc.Challenge
	if ch.Action == "" || ch.Code <= 0 || ch.Attempts < 0 || ch.ExpiresAt.IsZero() {
		t.Fatalf("partial challenge state: %+v", ch)
	}
}

func TestStart_OverwritesExistingChallenge(t *testing.T) {
	t.Parallel()
	e, now := testEngine(111111, 222222)
	acc := &model.Account{State: model.StatePending}

	if err := e.Start(acc, model.ActionRegister, nil, 15*time.Minute); err != nil {
		t.Fatalf("Start: %v", err)
	}
	checkUnit(t, acc)
	if acc.Challenge.Code != 111111 || acc.Challenge.Attempts != 0 {
		t.Fatalf("bad fresh challenge: %+v", acc.Challenge)
	}
	if !acc.Challenge.ExpiresAt.Equal(now.Add(15 * time.Minute)) {
		t.Fatalf("bad expiration: %v", acc.Challenge.ExpiresAt)
	}

	// a failed attempt, then a restart
	if _, err := e.Verify(acc, 999999); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if err := e.Start(acc, model.ActionChangeEmail, []byte("new@example.com"), time.Minute); err != nil {
		t.Fatalf("Start(2): %v", err)
	}
	checkUnit(t, acc)
	if acc.Challenge.Code != 222222 || acc.Challenge.Attempts != 0 {
		t.Fatalf("restart must reset code and attempts: %+v", acc.Challenge)
	}
	if acc.Challenge.Action != model.ActionChangeEmail || string(acc.Challenge.Data) != "new@example.com" {
		t.Fatalf("restart lost action/data: %+v", acc.Challenge)
	}
}

func TestVerify_NoChallenge(t *testing.T) {
	t.Parallel()
	e, _ := testEngine(111111)
	acc := &model.Account{State: model.StateActive}
	if _, err := e.Verify(acc, 111111); !errors.Is(err, errs.ErrNoChallenge) {
		t.Fatalf("want ErrNoChallenge, got %v", err)
	}
}

func TestVerify_OutOfRangeDoesNotConsumeAttempt(t *testing.T) {
	t.Parallel()
	e, _ := testEngine(111111)
	acc := &model.Account{State: model.StatePending}
	_ = e.Start(acc, model.ActionRegister, nil, time.Minute)

	for _, code := range []int{0, -5, 1000000} {
		if _, err := e.Verify(acc, code); !errors.Is(err, errs.ErrCodeOutOfRange) {
			t.Fatalf("code %d: want ErrCodeOutOfRange, got %v", code, err)
		}
	}
	if acc.Challenge.Attempts != 0 {
		t.Fatalf("out-of-range input consumed an attempt: %d", acc.Challenge.Attempts)
	}
}

func TestVerify_ExpiredNeverSucceedsAndRemains(t *testing.T) {
	t.Parallel()
	e, _ := testEngine(111111)
	acc := &model.Account{State: model.StatePending}
	_ = e.Start(acc, model.ActionRegister, nil, 0) // already expired

	// even the correct code must not consume an expired challenge
	if _, err := e.Verify(acc, 111111); !errors.Is(err, errs.ErrChallengeExpired) {
		t.Fatalf("want ErrChallengeExpired, got %v", err)
	}
	if acc.Challenge == nil || acc.Challenge.Attempts != 0 {
		t.Fatalf("expired challenge must remain in place untouched: %+v", acc.Challenge)
	}
}

func TestVerify_ThreeMismatchesLockTheAccount(t *testing.T) {
	t.Parallel()
	e, _ := testEngine(111111)
	acc := &model.Account{State: model.StatePending}
	_ = e.Start(acc, model.ActionRegister, nil, time.Minute)

	for i := 1; i <= 2; i++ {
		out, err := e.Verify(acc, 111112)
		if err != nil {
			t.Fatalf("Verify(%d): %v", i, err)
		}
		if out != OutcomeMismatch {
			t.Fatalf("attempt %d: want OutcomeMismatch, got %v", i, out)
		}
		if acc.Challenge.Attempts != i {
			t.Fatalf("attempt %d: attempts=%d", i, acc.Challenge.Attempts)
		}
		checkUnit(t, acc)
	}

	// third failure is distinguishable and terminal
	out, err := e.Verify(acc, 111112)
	if err != nil {
		t.Fatalf("Verify(3): %v", err)
	}
	if out != OutcomeLocked {
		t.Fatalf("want OutcomeLocked, got %v", out)
	}
	if acc.State != model.StateLocked || acc.Challenge != nil {
		t.Fatalf("lockout must set LOCKED and clear the challenge: state=%v ch=%+v", acc.State, acc.Challenge)
	}
}

func TestVerify_MatchClearsChallenge(t *testing.T) {
	t.Parallel()
	e, _ := testEngine(111111)
	acc := &model.Account{State: model.StatePending}
	_ = e.Start(acc, model.ActionRegister, nil, time.Minute)

	out, err := e.Verify(acc, 111111)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if out != OutcomeVerified {
		t.Fatalf("want OutcomeVerified, got %v", out)
	}
	if acc.Challenge != nil {
		t.Fatalf("consumed challenge must be cleared")
	}
}

func TestResend_PreservesActionDataAndAttempts(t *testing.T) {
	t.Parallel()
	e, now := testEngine(111111, 333333)
	acc := &model.Account{State: model.StateActive}
	_ = e.Start(acc, model.ActionChangeEmail, []byte("new@example.com"), time.Minute)
	if _, err := e.Verify(acc, 999999); err != nil {
		t.Fatalf("Verify: %v", err)
	}

	if err := e.Resend(acc, 10*time.Minute); err != nil {
		t.Fatalf("Resend: %v", err)
	}
	ch := acc.Challenge
	if ch.Code != 333333 {
		t.Fatalf("resend must draw a new code: %d", ch.Code)
	}
	if ch.Action != model.ActionChangeEmail || string(ch.Data) != "new@example.com" {
		t.Fatalf("resend changed action/data: %+v", ch)
	}
	if ch.Attempts != 1 {
		t.Fatalf("resend must preserve attempts, got %d", ch.Attempts)
	}
	if !ch.ExpiresAt.Equal(now.Add(10 * time.Minute)) {
		t.Fatalf("resend must extend expiration: %v", ch.ExpiresAt)
	}
	checkUnit(t, acc)
}

func TestResend_NoChallenge(t *testing.T) {
	t.Parallel()
	e, _ := testEngine(111111)
	acc := &model.Account{State: model.StateActive}
	if err := e.Resend(acc, time.Minute); !errors.Is(err, errs.ErrNoChallenge) {
		t.Fatalf("want ErrNoChallenge, got %v", err)
	}
}

func TestMaxCode(t *testing.T) {
	t.Parallel()
	if got := New(6, 3).MaxCode(); got != 999999 {
		t.Fatalf("MaxCode(6)=%d", got)
	}
	if got := New(4, 3).MaxCode(); got != 9999 {
		t.Fatalf("MaxCode(4)=%d", got)
	}
}

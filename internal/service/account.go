// Package service contains the account lifecycle application service.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/avmikhailov/accountd/internal/challenge"
	pkgcrypto "github.com/avmikhailov/accountd/internal/crypto"
	"github.com/avmikhailov/accountd/internal/errs"
	"github.com/avmikhailov/accountd/internal/model"
	"github.com/avmikhailov/accountd/internal/repository"
	"github.com/avmikhailov/accountd/internal/token"
	"github.com/avmikhailov/accountd/internal/validate"
)

// CodeSender delivers challenge codes to an address. Email transport lives
// outside this core; cmd wires a concrete implementation.
type CodeSender interface {
	SendCode(ctx context.Context, email string, action model.AuthAction, code int) error
}

// ValidateResult is the outcome of a code validation attempt.
type ValidateResult struct {
	Validated bool
	Tokens    *model.Tokens
	Context   *model.SessionContext
}

// Response messages returned to the caller. They never reveal whether an
// email exists.
const (
	MsgAwaitingCode    = "account is waiting for validation code"
	MsgCodeResent      = "a new validation code has been sent"
	MsgResetRequested  = "if the account exists, a reset code has been sent"
	MsgEmailChange     = "a validation code has been sent to the new address"
	MsgPasswordChanged = "password changed, please log in again"
	MsgDeletionCode    = "a deletion code has been sent"
)

// AccountService defines account lifecycle and authentication operations.
//
// Authenticated operations take the caller's account id, extracted from a
// verified access token by the transport layer; there is no process-wide
// session state.
type AccountService interface {
	// Register creates or reuses a PENDING account and starts the
	// registration challenge. Tokens are issued before verification.
	Register(ctx context.Context, email, password string, sendCode bool) (model.Tokens, string, error)
	// ValidateCode verifies the pending challenge code and applies the
	// action effect on success.
	ValidateCode(ctx context.Context, email string, code int) (*ValidateResult, error)
	// Login authenticates by password. Wrong passwords consume the same
	// attempt budget as wrong challenge codes.
	Login(ctx context.Context, email, password string) (model.Tokens, error)
	// Logout revokes all refresh tokens for the account.
	Logout(ctx context.Context, accountID int64) (model.SessionContext, error)
	// ResendCode regenerates the pending challenge code and extends its expiration.
	ResendCode(ctx context.Context, email string) (string, error)
	// ResetPassword starts a reset challenge carrying the new password hash.
	ResetPassword(ctx context.Context, email, newPassword string) (string, error)
	// ChangeEmail starts a change-email challenge after checking the current password.
	ChangeEmail(ctx context.Context, accountID int64, newEmail, password string) (string, error)
	// ChangePassword replaces the password immediately and revokes refresh tokens.
	ChangePassword(ctx context.Context, accountID int64, currentPassword, newPassword string) (string, error)
	// DeleteAccount starts the account-deletion challenge.
	DeleteAccount(ctx context.Context, accountID int64, confirmation bool) (string, error)
	// RefreshTokens rotates a refresh token into a fresh pair.
	RefreshTokens(ctx context.Context, refreshToken string) (model.Tokens, error)
	// SessionContext projects the current authentication status.
	SessionContext(ctx context.Context, accountID int64) (model.SessionContext, error)
	// InitCompany creates a company and binds it to the account, at most once.
	InitCompany(ctx context.Context, accountID int64, name string) (*model.Company, error)
}

type AccountServiceImpl struct {
	accounts  repository.AccountRepository
	companies repository.CompanyRepository
	eng       *challenge.Engine
	tokens    *token.Service
	sender    CodeSender

	challengeTTL time.Duration
}

// NewAccountService constructs AccountService with required dependencies.
func NewAccountService(
	accounts repository.AccountRepository,
	companies repository.CompanyRepository,
	eng *challenge.Engine,
	tokens *token.Service,
	sender CodeSender,
	challengeTTL time.Duration,
) *AccountServiceImpl {
	return &AccountServiceImpl{
		accounts:     accounts,
		companies:    companies,
		eng:          eng,
		tokens:       tokens,
		sender:       sender,
		challengeTTL: challengeTTL,
	}
}

// Register creates a new PENDING account guarded by a registration challenge.
// Re-registering an email whose account is still PENDING reuses the row and
// replaces the challenge, so the old code stops working.
func (s *AccountServiceImpl) Register(ctx context.Context, email, password string, sendCode bool) (model.Tokens, string, error) {
	if err := validate.Email(email); err != nil {
		return model.Tokens{}, "", err
	}
	if err := validate.Password(password); err != nil {
		return model.Tokens{}, "", err
	}

	salt, hash, err := hashNewPassword(password)
	if err != nil {
		return model.Tokens{}, "", err
	}

	acc, err := s.accounts.GetByEmail(ctx, email)
	switch {
	case err == nil && acc.State == model.StatePending:
		acc.PasswordSalt, acc.PasswordHash = salt, hash
		if err := s.eng.Start(acc, model.ActionRegister, nil, s.challengeTTL); err != nil {
			return model.Tokens{}, "", err
		}
		if err := s.accounts.UpdateAuth(ctx, acc); err != nil {
			return model.Tokens{}, "", err
		}
	case err == nil:
		return model.Tokens{}, "", errs.ErrEmailInUse
	case errors.Is(err, errs.ErrNotFound):
		acc = &model.Account{Email: email, PasswordSalt: salt, PasswordHash: hash, State: model.StatePending}
		if err := s.eng.Start(acc, model.ActionRegister, nil, s.challengeTTL); err != nil {
			return model.Tokens{}, "", err
		}
		if err := s.accounts.Create(ctx, acc); err != nil {
			return model.Tokens{}, "", err
		}
	default:
		return model.Tokens{}, "", err
	}

	toks, err := s.tokens.Issue(acc)
	if err != nil {
		return model.Tokens{}, "", err
	}
	if sendCode {
		if err := s.sender.SendCode(ctx, acc.Email, model.ActionRegister, acc.Challenge.Code); err != nil {
			return model.Tokens{}, "", err
		}
	}
	return toks, MsgAwaitingCode, nil
}

// ValidateCode verifies the supplied code and, on success, applies the
// action-specific effect in the same write that clears the challenge.
func (s *AccountServiceImpl) ValidateCode(ctx context.Context, email string, code int) (*ValidateResult, error) {
	acc, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	action := model.ActionRegister
	var data []byte
	if acc.Challenge != nil {
		action = acc.Challenge.Action
		data = acc.Challenge.Data
	}

	outcome, err := s.eng.Verify(acc, code)
	if err != nil {
		return nil, err
	}
	switch outcome {
	case challenge.OutcomeMismatch:
		if err := s.accounts.UpdateAuth(ctx, acc); err != nil {
			return nil, err
		}
		return &ValidateResult{Validated: false}, nil
	case challenge.OutcomeLocked:
		if err := s.accounts.UpdateAuth(ctx, acc); err != nil {
			return nil, err
		}
		return nil, errs.ErrAccountLocked
	}

	return s.applyChallengeEffect(ctx, acc, action, data)
}

// applyChallengeEffect commits the consumed challenge's effect and builds the
// post-effect result.
func (s *AccountServiceImpl) applyChallengeEffect(ctx context.Context, acc *model.Account, action model.AuthAction, data []byte) (*ValidateResult, error) {
	issueTokens := false
	connected := true

	switch action {
	case model.ActionRegister:
		acc.State = model.StateActive
		issueTokens = true
	case model.ActionLogin:
		issueTokens = true
	case model.ActionResetPassword:
		salt, hash, err := splitResetData(data)
		if err != nil {
			return nil, err
		}
		acc.PasswordSalt, acc.PasswordHash = salt, hash
		acc.TokenGen++
		connected = false
	case model.ActionChangeEmail:
		acc.Email = string(data)
	case model.ActionDeletion:
		if err := s.accounts.Delete(ctx, acc.ID); err != nil {
			return nil, err
		}
		return &ValidateResult{
			Validated: true,
			Context:   &model.SessionContext{Connected: false},
		}, nil
	default:
		return nil, errs.ErrNoChallenge
	}

	if err := s.accounts.UpdateAuth(ctx, acc); err != nil {
		return nil, err
	}

	res := &ValidateResult{Validated: true}
	sessCtx := model.ContextFor(acc, connected)
	res.Context = &sessCtx
	if issueTokens {
		toks, err := s.tokens.Issue(acc)
		if err != nil {
			return nil, err
		}
		res.Tokens = &toks
	}
	return res, nil
}

// Login authenticates by email and password. Unknown email and wrong password
// fail identically; wrong passwords count against the login challenge budget
// and lock the account when it is exhausted.
func (s *AccountServiceImpl) Login(ctx context.Context, email, password string) (model.Tokens, error) {
	acc, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return model.Tokens{}, errs.ErrInvalidCredentials
		}
		return model.Tokens{}, err
	}
	switch acc.State {
	case model.StateLocked:
		return model.Tokens{}, errs.ErrAccountLocked
	case model.StateActive:
	default:
		return model.Tokens{}, errs.ErrUnauthorized
	}

	if !pkgcrypto.VerifyPassword([]byte(password), acc.PasswordSalt, acc.PasswordHash) {
		if acc.Challenge == nil || acc.Challenge.Action != model.ActionLogin {
			if err := s.eng.Start(acc, model.ActionLogin, nil, s.challengeTTL); err != nil {
				return model.Tokens{}, err
			}
		}
		outcome := s.eng.RecordFailure(acc)
		if err := s.accounts.UpdateAuth(ctx, acc); err != nil {
			return model.Tokens{}, err
		}
		if outcome == challenge.OutcomeLocked {
			return model.Tokens{}, errs.ErrAccountLocked
		}
		return model.Tokens{}, errs.ErrInvalidCredentials
	}

	// Correct password clears any stray login challenge.
	if acc.Challenge != nil && acc.Challenge.Action == model.ActionLogin {
		acc.Challenge = nil
		if err := s.accounts.UpdateAuth(ctx, acc); err != nil {
			return model.Tokens{}, err
		}
	}
	return s.tokens.Issue(acc)
}

// Logout bumps the token generation, invalidating all refresh tokens. Access
// tokens stay valid until natural expiry; the caller clears its stored pair.
func (s *AccountServiceImpl) Logout(ctx context.Context, accountID int64) (model.SessionContext, error) {
	acc, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return model.SessionContext{}, err
	}
	acc.TokenGen++
	if err := s.accounts.UpdateAuth(ctx, acc); err != nil {
		return model.SessionContext{}, err
	}
	return model.ContextFor(acc, false), nil
}

// ResendCode draws a new code for the pending challenge, preserving its
// action, payload and attempt count.
func (s *AccountServiceImpl) ResendCode(ctx context.Context, email string) (string, error) {
	acc, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return "", errs.ErrNoChallenge
		}
		return "", err
	}
	if err := s.eng.Resend(acc, s.challengeTTL); err != nil {
		return "", err
	}
	if err := s.accounts.UpdateAuth(ctx, acc); err != nil {
		return "", err
	}
	dest := acc.Email
	if acc.Challenge.Action == model.ActionChangeEmail {
		dest = string(acc.Challenge.Data)
	}
	if err := s.sender.SendCode(ctx, dest, acc.Challenge.Action, acc.Challenge.Code); err != nil {
		return "", err
	}
	return MsgCodeResent, nil
}

// ResetPassword starts a reset challenge carrying the new password hash as
// the challenge payload. Unknown emails return the same success shape as
// known ones.
func (s *AccountServiceImpl) ResetPassword(ctx context.Context, email, newPassword string) (string, error) {
	if err := validate.Password(newPassword); err != nil {
		return "", err
	}
	acc, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return MsgResetRequested, nil
		}
		return "", err
	}

	salt, hash, err := hashNewPassword(newPassword)
	if err != nil {
		return "", err
	}
	if err := s.eng.Start(acc, model.ActionResetPassword, joinResetData(salt, hash), s.challengeTTL); err != nil {
		return "", err
	}
	if err := s.accounts.UpdateAuth(ctx, acc); err != nil {
		return "", err
	}
	if err := s.sender.SendCode(ctx, acc.Email, model.ActionResetPassword, acc.Challenge.Code); err != nil {
		return "", err
	}
	return MsgResetRequested, nil
}

// ChangeEmail starts a change-email challenge; the code goes to the new
// address, which becomes the account email only on successful validation.
func (s *AccountServiceImpl) ChangeEmail(ctx context.Context, accountID int64, newEmail, password string) (string, error) {
	acc, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return "", err
	}
	if err := validate.Email(newEmail); err != nil {
		return "", err
	}
	if newEmail == acc.Email {
		return "", errs.ErrSameEmail
	}
	if !pkgcrypto.VerifyPassword([]byte(password), acc.PasswordSalt, acc.PasswordHash) {
		return "", errs.ErrInvalidPassword
	}
	if _, err := s.accounts.GetByEmail(ctx, newEmail); err == nil {
		return "", errs.ErrEmailInUse
	} else if !errors.Is(err, errs.ErrNotFound) {
		return "", err
	}

	if err := s.eng.Start(acc, model.ActionChangeEmail, []byte(newEmail), s.challengeTTL); err != nil {
		return "", err
	}
	if err := s.accounts.UpdateAuth(ctx, acc); err != nil {
		return "", err
	}
	if err := s.sender.SendCode(ctx, newEmail, model.ActionChangeEmail, acc.Challenge.Code); err != nil {
		return "", err
	}
	return MsgEmailChange, nil
}

// ChangePassword replaces the password immediately, without a challenge, and
// revokes all refresh tokens so every session must re-authenticate.
func (s *AccountServiceImpl) ChangePassword(ctx context.Context, accountID int64, currentPassword, newPassword string) (string, error) {
	acc, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return "", err
	}
	if !pkgcrypto.VerifyPassword([]byte(currentPassword), acc.PasswordSalt, acc.PasswordHash) {
		return "", errs.ErrInvalidPassword
	}
	if err := validate.Password(newPassword); err != nil {
		return "", err
	}
	salt, hash, err := hashNewPassword(newPassword)
	if err != nil {
		return "", err
	}
	acc.PasswordSalt, acc.PasswordHash = salt, hash
	acc.TokenGen++
	if err := s.accounts.UpdateAuth(ctx, acc); err != nil {
		return "", err
	}
	return MsgPasswordChanged, nil
}

// DeleteAccount starts the account-deletion challenge. The account is removed
// only when the code is validated.
func (s *AccountServiceImpl) DeleteAccount(ctx context.Context, accountID int64, confirmation bool) (string, error) {
	if !confirmation {
		return "", errs.ErrMissingConfirmation
	}
	acc, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return "", err
	}
	if err := s.eng.Start(acc, model.ActionDeletion, nil, s.challengeTTL); err != nil {
		return "", err
	}
	if err := s.accounts.UpdateAuth(ctx, acc); err != nil {
		return "", err
	}
	if err := s.sender.SendCode(ctx, acc.Email, model.ActionDeletion, acc.Challenge.Code); err != nil {
		return "", err
	}
	return MsgDeletionCode, nil
}

// RefreshTokens rotates a refresh token: the presented token's generation
// must match the account's, the generation advances, and a new pair is
// issued. Presenting the same token twice fails the second time.
func (s *AccountServiceImpl) RefreshTokens(ctx context.Context, refreshToken string) (model.Tokens, error) {
	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return model.Tokens{}, err
	}
	id, err := claims.AccountID()
	if err != nil {
		return model.Tokens{}, err
	}
	acc, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return model.Tokens{}, errs.ErrInvalidToken
		}
		return model.Tokens{}, err
	}
	if claims.Generation != acc.TokenGen {
		return model.Tokens{}, errs.ErrInvalidToken
	}
	acc.TokenGen++
	if err := s.accounts.UpdateAuth(ctx, acc); err != nil {
		return model.Tokens{}, err
	}
	return s.tokens.Issue(acc)
}

// SessionContext projects the account into its read-only session view.
func (s *AccountServiceImpl) SessionContext(ctx context.Context, accountID int64) (model.SessionContext, error) {
	acc, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return model.SessionContext{}, err
	}
	return model.ContextFor(acc, true), nil
}

// InitCompany creates a company owned by the account and binds it. The bind
// succeeds at most once per account and is never reset.
func (s *AccountServiceImpl) InitCompany(ctx context.Context, accountID int64, name string) (*model.Company, error) {
	if name == "" {
		return nil, &validate.ValidationError{Field: "name", Reason: validate.ReasonMissing}
	}
	acc, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if acc.CompanyID != nil {
		return nil, errs.ErrVersionConflict
	}
	c := &model.Company{Name: name, OwnerID: acc.ID}
	if err := s.companies.CreateForOwner(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func hashNewPassword(password string) (salt, hash []byte, err error) {
	salt, err = pkgcrypto.RandBytes(pkgcrypto.SaltLen)
	if err != nil {
		return nil, nil, err
	}
	return salt, pkgcrypto.HashPassword([]byte(password), salt), nil
}

// Reset challenges carry salt||hash of the pending new password as payload.
func joinResetData(salt, hash []byte) []byte {
	return append(append([]byte(nil), salt...), hash...)
}

func splitResetData(data []byte) (salt, hash []byte, err error) {
	if len(data) <= pkgcrypto.SaltLen {
		return nil, nil, errs.ErrNoChallenge
	}
	return data[:pkgcrypto.SaltLen], data[pkgcrypto.SaltLen:], nil
}

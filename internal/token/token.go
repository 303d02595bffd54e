// Package token issues and verifies signed access/refresh token pairs.
//
// Verification is stateless: validity is a function of signature, expiration
// and, for refresh tokens, the per-account generation counter embedded in the
// claims. Bumping the counter invalidates every outstanding refresh token at
// once; no server-side token list exists.
package token

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/avmikhailov/accountd/internal/errs"
	"github.com/avmikhailov/accountd/internal/model"
)

// AccessClaims carries the account id and role claims of an access token.
type AccessClaims struct {
	Administrator bool `json:"adm"`
	Company       bool `json:"cmp"`
	jwt.RegisteredClaims
}

// RefreshClaims carries the account id and token generation of a refresh token.
type RefreshClaims struct {
	Generation int64 `json:"gen"`
	jwt.RegisteredClaims
}

// AccountID parses the subject claim into an account id.
func (c *AccessClaims) AccountID() (int64, error) {
	return parseSubject(c.Subject)
}

// AccountID parses the subject claim into an account id.
func (c *RefreshClaims) AccountID() (int64, error) {
	return parseSubject(c.Subject)
}

func parseSubject(sub string) (int64, error) {
	id, err := strconv.ParseInt(sub, 10, 64)
	if err != nil || id <= 0 {
		return 0, errs.ErrInvalidToken
	}
	return id, nil
}

// Service mints and verifies HS256 token pairs.
type Service struct {
	signKey    []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	issuer     string

	now func() time.Time
}

// NewService constructs a token service with the given signing key and TTLs.
func NewService(signKey []byte, accessTTL, refreshTTL time.Duration, issuer string) *Service {
	return &Service{
		signKey:    signKey,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		issuer:     issuer,
		now:        time.Now,
	}
}

// Issue mints a fresh access+refresh pair bound to the account's current
// generation counter and role claims.
func (s *Service) Issue(acc *model.Account) (model.Tokens, error) {
	now := s.now()
	sub := strconv.FormatInt(acc.ID, 10)
	accessExp := now.Add(s.accessTTL)

	access := jwt.NewWithClaims(jwt.SigningMethodHS256, AccessClaims{
		Administrator: acc.Administrator,
		Company:       acc.CompanyID != nil,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(accessExp),
		},
	})
	signedAccess, err := access.SignedString(s.signKey)
	if err != nil {
		return model.Tokens{}, err
	}

	jti, err := uuid.NewV4()
	if err != nil {
		return model.Tokens{}, err
	}
	refresh := jwt.NewWithClaims(jwt.SigningMethodHS256, RefreshClaims{
		Generation: acc.TokenGen,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			Issuer:    s.issuer,
			ID:        jti.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.refreshTTL)),
		},
	})
	signedRefresh, err := refresh.SignedString(s.signKey)
	if err != nil {
		return model.Tokens{}, err
	}

	return model.Tokens{
		AccessToken:  signedAccess,
		RefreshToken: signedRefresh,
		ExpiresAt:    accessExp,
	}, nil
}

// VerifyAccess validates signature and expiration of an access token.
func (s *Service) VerifyAccess(raw string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := s.parse(raw, claims); err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, errs.ErrExpiredToken
		}
		return nil, errs.ErrUnauthorized
	}
	return claims, nil
}

// VerifyRefresh validates signature and expiration of a refresh token.
// Generation comparison against the account record is the caller's job.
func (s *Service) VerifyRefresh(raw string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := s.parse(raw, claims); err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, errs.ErrExpiredToken
		}
		return nil, errs.ErrInvalidToken
	}
	return claims, nil
}

func (s *Service) parse(raw string, claims jwt.Claims) error {
	_, err := jwt.ParseWithClaims(raw, claims,
		func(t *jwt.Token) (any, error) { return s.signKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	return err
}

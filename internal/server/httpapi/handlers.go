// Package httpapi exposes the account lifecycle service over HTTP.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/avmikhailov/accountd/internal/errs"
	"github.com/avmikhailov/accountd/internal/model"
	"github.com/avmikhailov/accountd/internal/service"
	"github.com/avmikhailov/accountd/internal/token"
	"github.com/avmikhailov/accountd/internal/validate"
)

// Server wires the account service into HTTP handlers.
type Server struct {
	accounts service.AccountService
	tokens   *token.Service
	log      *zap.Logger
}

// New constructs an HTTP server with injected services.
func New(accounts service.AccountService, tokens *token.Service, log *zap.Logger) *Server {
	return &Server{accounts: accounts, tokens: tokens, log: log}
}

// Router registers routes and the middleware stack.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(Recover(s.log))
	r.Use(Logging(s.log))
	r.Use(Authenticate(s.tokens))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/accounts/register", s.register)
		r.Post("/accounts/validate-code", s.validateCode)
		r.Post("/accounts/login", s.login)
		r.Post("/accounts/logout", s.logout)
		r.Post("/accounts/resend-code", s.resendCode)
		r.Post("/accounts/reset-password", s.resetPassword)
		r.Post("/accounts/change-email", s.changeEmail)
		r.Post("/accounts/change-password", s.changePassword)
		r.Delete("/accounts", s.deleteAccount)
		r.Post("/tokens/refresh", s.refreshTokens)
		r.Get("/session", s.session)
		r.Post("/companies", s.initCompany)
	})
	return r
}

type tokensPayload struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type contextPayload struct {
	Email         string `json:"email"`
	Connected     bool   `json:"connected"`
	Administrator bool   `json:"administrator"`
	Company       bool   `json:"company"`
}

func toTokensPayload(t model.Tokens) *tokensPayload {
	return &tokensPayload{AccessToken: t.AccessToken, RefreshToken: t.RefreshToken}
}

func toContextPayload(c model.SessionContext) *contextPayload {
	return &contextPayload{Email: c.Email, Connected: c.Connected, Administrator: c.Administrator, Company: c.Company}
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		SendCode bool   `json:"sendCode"`
	}
	if !decode(w, r, &req) {
		return
	}
	toks, msg, err := s.accounts.Register(r.Context(), req.Email, req.Password, req.SendCode)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"tokens":  toTokensPayload(toks),
		"message": msg,
	})
}

func (s *Server) validateCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
		Code  int    `json:"code"`
	}
	if !decode(w, r, &req) {
		return
	}
	email := req.Email
	if email == "" {
		// Authenticated flows omit the email; resolve it from the caller.
		id, ok := s.callerID(r)
		if !ok {
			writeError(w, errs.ErrUnauthorized)
			return
		}
		sessCtx, err := s.accounts.SessionContext(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		email = sessCtx.Email
	}
	res, err := s.accounts.ValidateCode(r.Context(), email, req.Code)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := map[string]any{"validated": res.Validated}
	if res.Tokens != nil {
		resp["tokens"] = toTokensPayload(*res.Tokens)
	}
	if res.Context != nil {
		resp["context"] = toContextPayload(*res.Context)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	if _, ok := ClaimsFromCtx(r.Context()); ok {
		writeError(w, errs.ErrAlreadyConnected)
		return
	}
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decode(w, r, &req) {
		return
	}
	toks, err := s.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tokens": toTokensPayload(toks)})
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	id, ok := s.callerID(r)
	if !ok {
		writeError(w, errs.ErrNotLoggedIn)
		return
	}
	sessCtx, err := s.accounts.Logout(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tokens":  nil,
		"context": toContextPayload(sessCtx),
	})
}

func (s *Server) resendCode(w http.ResponseWriter, r *http.Request) {
	// Only the account owner may rotate its pending code; registration
	// callers hold the tokens issued by register, so they qualify too.
	id, ok := s.callerID(r)
	if !ok {
		writeError(w, errs.ErrUnauthorized)
		return
	}
	sessCtx, err := s.accounts.SessionContext(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	msg, err := s.accounts.ResendCode(r.Context(), sessCtx.Email)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": msg})
}

func (s *Server) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email       string `json:"email"`
		NewPassword string `json:"newPassword"`
	}
	if !decode(w, r, &req) {
		return
	}
	msg, err := s.accounts.ResetPassword(r.Context(), req.Email, req.NewPassword)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": msg})
}

func (s *Server) changeEmail(w http.ResponseWriter, r *http.Request) {
	id, ok := s.callerID(r)
	if !ok {
		writeError(w, errs.ErrUnauthorized)
		return
	}
	var req struct {
		NewEmail string `json:"newEmail"`
		Password string `json:"password"`
	}
	if !decode(w, r, &req) {
		return
	}
	msg, err := s.accounts.ChangeEmail(r.Context(), id, req.NewEmail, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": msg})
}

func (s *Server) changePassword(w http.ResponseWriter, r *http.Request) {
	id, ok := s.callerID(r)
	if !ok {
		writeError(w, errs.ErrUnauthorized)
		return
	}
	var req struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if !decode(w, r, &req) {
		return
	}
	msg, err := s.accounts.ChangePassword(r.Context(), id, req.CurrentPassword, req.NewPassword)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": msg})
}

func (s *Server) deleteAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := s.callerID(r)
	if !ok {
		writeError(w, errs.ErrUnauthorized)
		return
	}
	var req struct {
		Confirmation bool `json:"confirmation"`
	}
	if !decode(w, r, &req) {
		return
	}
	msg, err := s.accounts.DeleteAccount(r.Context(), id, req.Confirmation)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": msg})
}

func (s *Server) refreshTokens(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if !decode(w, r, &req) {
		return
	}
	toks, err := s.accounts.RefreshTokens(r.Context(), req.RefreshToken)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tokens": toTokensPayload(toks)})
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) {
	id, ok := s.callerID(r)
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"context": &contextPayload{}})
		return
	}
	sessCtx, err := s.accounts.SessionContext(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"context": toContextPayload(sessCtx)})
}

func (s *Server) initCompany(w http.ResponseWriter, r *http.Request) {
	id, ok := s.callerID(r)
	if !ok {
		writeError(w, errs.ErrUnauthorized)
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if !decode(w, r, &req) {
		return
	}
	c, err := s.accounts.InitCompany(r.Context(), id, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"company": map[string]any{"id": c.ID, "name": c.Name},
	})
}

// callerID extracts the authenticated account id from the request context.
func (s *Server) callerID(r *http.Request) (int64, bool) {
	claims, ok := ClaimsFromCtx(r.Context())
	if !ok {
		return 0, false
	}
	id, err := claims.AccountID()
	if err != nil {
		return 0, false
	}
	return id, true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "malformed request body"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps service sentinels onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	var vErr *validate.ValidationError
	if errors.As(err, &vErr) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "validation failed",
			"field":  vErr.Field,
			"reason": string(vErr.Reason),
		})
		return
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errs.ErrInvalidCredentials),
		errors.Is(err, errs.ErrUnauthorized),
		errors.Is(err, errs.ErrNotLoggedIn),
		errors.Is(err, errs.ErrInvalidToken),
		errors.Is(err, errs.ErrExpiredToken),
		errors.Is(err, errs.ErrInvalidPassword):
		status = http.StatusUnauthorized
	case errors.Is(err, errs.ErrAccountLocked):
		status = http.StatusLocked
	case errors.Is(err, errs.ErrAlreadyConnected),
		errors.Is(err, errs.ErrEmailInUse),
		errors.Is(err, errs.ErrNameInUse),
		errors.Is(err, errs.ErrVersionConflict),
		errors.Is(err, errs.ErrSameEmail):
		status = http.StatusConflict
	case errors.Is(err, errs.ErrChallengeExpired):
		status = http.StatusGone
	case errors.Is(err, errs.ErrNoChallenge),
		errors.Is(err, errs.ErrCodeOutOfRange),
		errors.Is(err, errs.ErrMissingConfirmation):
		status = http.StatusBadRequest
	case errors.Is(err, errs.ErrNotFound):
		status = http.StatusNotFound
	}
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal"
	}
	writeJSON(w, status, map[string]any{"error": msg})
}

package httpapi

import (
	"context"

	"github.com/avmikhailov/accountd/internal/token"
)

type ctxKey string

const claimsKey ctxKey = "accountd.claims"

// WithClaims stores verified access claims in the request context.
func WithClaims(ctx context.Context, claims *token.AccessClaims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// ClaimsFromCtx fetches verified access claims from the request context.
func ClaimsFromCtx(ctx context.Context) (*token.AccessClaims, bool) {
	v := ctx.Value(claimsKey)
	if v == nil {
		return nil, false
	}
	claims, ok := v.(*token.AccessClaims)
	return claims, ok
}

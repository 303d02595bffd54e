package httpapi

import (
	"context"
	"testing"

	"github.com/golang-jwt/jwt/v5"

	"github.com/avmikhailov/accountd/internal/token"
)

func TestClaimsCtx_RoundTrip(t *testing.T) {
	t.Parallel()

	claims := &token.AccessClaims{
		Administrator:    true,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "7"},
	}
	ctx := WithClaims(context.Background(), claims)

	got, ok := ClaimsFromCtx(ctx)
	if !ok {
		t.Fatalf("claims not found in context")
	}
	if !got.Administrator || got.Subject != "7" {
		t.Fatalf("bad claims: %+v", got)
	}
}

func TestClaimsFromCtx_Empty(t *testing.T) {
	t.Parallel()

	if _, ok := ClaimsFromCtx(context.Background()); ok {
		t.Fatalf("expected no claims in empty context")
	}
}

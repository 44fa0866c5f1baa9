package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	testSigningSecret = "super-secret"
	testIssuer        = "trustrace-auth"
	testAudience      = "trustrace-api"
)

func newTestIssuer(t *testing.T, clock func() time.Time) *TokenIssuer {
	t.Helper()
	issuer, err := NewTokenIssuer(TokenIssuerConfig{
		SigningSecret: []byte(testSigningSecret),
		Issuer:        testIssuer,
		Audience:      testAudience,
		TokenTTL:      30 * time.Minute,
		Clock:         clock,
	})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}
	return issuer
}

func TestTokenIssuerIssuesTokens(t *testing.T) {
	issuer := newTestIssuer(t, nil)

	tokenString, expiresIn, err := issuer.IssueToken(context.Background(), Identity{
		UserID:      "user-123",
		DisplayName: "Ada",
	})
	if err != nil {
		t.Fatalf("expected successful issuance: %v", err)
	}
	if expiresIn != int64((30 * time.Minute).Seconds()) {
		t.Fatalf("unexpected expiry seconds %d", expiresIn)
	}

	parser := jwt.Parser{}
	claims := &Claims{}
	_, err = parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(testSigningSecret), nil
	})
	if err != nil {
		t.Fatalf("failed to parse generated token: %v", err)
	}
	if claims.Subject != "user-123" {
		t.Fatalf("unexpected subject %s", claims.Subject)
	}
	if claims.DisplayName != "Ada" {
		t.Fatalf("unexpected display name %s", claims.DisplayName)
	}
	if claims.Issuer != testIssuer {
		t.Fatalf("unexpected issuer %s", claims.Issuer)
	}
	if len(claims.Audience) == 0 || claims.Audience[0] != testAudience {
		t.Fatalf("unexpected audience %#v", claims.Audience)
	}
}

func TestTokenIssuerResolvesIssuedTokens(t *testing.T) {
	issuer := newTestIssuer(t, nil)

	tokenString, _, err := issuer.IssueToken(context.Background(), Identity{UserID: "user-321", DisplayName: "Grace"})
	if err != nil {
		t.Fatalf("unexpected error issuing token: %v", err)
	}

	identity, err := issuer.ResolveToken(tokenString)
	if err != nil {
		t.Fatalf("expected resolution success: %v", err)
	}
	if identity.UserID != "user-321" || identity.DisplayName != "Grace" {
		t.Fatalf("unexpected identity %#v", identity)
	}
}

func TestTokenIssuerRejectsBadTokens(t *testing.T) {
	issuedAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	issuer := newTestIssuer(t, func() time.Time { return issuedAt })
	valid, _, err := issuer.IssueToken(context.Background(), Identity{UserID: "user-1"})
	if err != nil {
		t.Fatalf("unexpected error issuing token: %v", err)
	}

	later := newTestIssuer(t, func() time.Time { return issuedAt.Add(2 * time.Hour) })

	foreign, err := NewTokenIssuer(TokenIssuerConfig{
		SigningSecret: []byte("other-secret"),
		Issuer:        testIssuer,
		Audience:      testAudience,
	})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}
	forged, _, err := foreign.IssueToken(context.Background(), Identity{UserID: "user-1"})
	if err != nil {
		t.Fatalf("unexpected error issuing token: %v", err)
	}

	testCases := []struct {
		name     string
		resolver *TokenIssuer
		token    string
	}{
		{name: "missing", resolver: issuer, token: "  "},
		{name: "malformed", resolver: issuer, token: "invalid.token"},
		{name: "foreign-signature", resolver: issuer, token: forged},
		{name: "expired", resolver: later, token: valid},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			_, err := testCase.resolver.ResolveToken(testCase.token)
			if !errors.Is(err, ErrUnauthorized) {
				t.Fatalf("expected ErrUnauthorized, got %v", err)
			}
		})
	}
}

func TestTokenIssuerRejectsMissingSubject(t *testing.T) {
	issuer := newTestIssuer(t, nil)
	if _, _, err := issuer.IssueToken(context.Background(), Identity{UserID: " "}); err == nil {
		t.Fatalf("expected error for missing subject")
	}
}

func TestNewTokenIssuerRequiresConfiguration(t *testing.T) {
	testCases := []struct {
		name   string
		config TokenIssuerConfig
	}{
		{name: "secret", config: TokenIssuerConfig{Issuer: testIssuer, Audience: testAudience}},
		{name: "issuer", config: TokenIssuerConfig{SigningSecret: []byte("secret"), Audience: testAudience}},
		{name: "audience", config: TokenIssuerConfig{SigningSecret: []byte("secret"), Issuer: testIssuer, Audience: " "}},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			if _, err := NewTokenIssuer(testCase.config); err == nil {
				t.Fatalf("expected constructor error for missing %s", testCase.name)
			}
		})
	}
}

package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	defaultTokenTTL = 24 * time.Hour
)

var (
	// ErrUnauthorized is returned for missing, malformed, unrecognized or expired tokens.
	ErrUnauthorized = errors.New("auth: unauthorized")

	errMissingSigningSecret = errors.New("auth: signing secret must be provided")
	errMissingIssuer        = errors.New("auth: issuer must be provided")
	errMissingAudience      = errors.New("auth: audience must be provided")
	errMissingSubjectClaim  = errors.New("auth: subject claim must be provided")
)

// Identity describes the user a token is issued for.
type Identity struct {
	UserID      string
	DisplayName string
}

// Claims is the JWT payload carried by TrustTrace bearer tokens.
type Claims struct {
	DisplayName string `json:"display_name,omitempty"`
	jwt.RegisteredClaims
}

// TokenIssuerConfig configures the HS256 token issuer.
type TokenIssuerConfig struct {
	SigningSecret []byte
	Issuer        string
	Audience      string
	TokenTTL      time.Duration
	Clock         func() time.Time
}

// TokenIssuer issues and resolves bearer tokens. Account registration and password
// checks live outside this service; the issuer only vouches for identities handed to it.
type TokenIssuer struct {
	config TokenIssuerConfig
	clock  func() time.Time
}

// NewTokenIssuer constructs a TokenIssuer with sane defaults.
func NewTokenIssuer(cfg TokenIssuerConfig) (*TokenIssuer, error) {
	if len(cfg.SigningSecret) == 0 {
		return nil, errMissingSigningSecret
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		return nil, errMissingIssuer
	}
	audience := strings.TrimSpace(cfg.Audience)
	if audience == "" {
		return nil, errMissingAudience
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &TokenIssuer{
		config: TokenIssuerConfig{
			SigningSecret: append([]byte(nil), cfg.SigningSecret...),
			Issuer:        issuer,
			Audience:      audience,
			TokenTTL:      ttl,
			Clock:         clock,
		},
		clock: clock,
	}, nil
}

// IssueToken produces a signed JWT and its lifetime in seconds for the identity.
func (i *TokenIssuer) IssueToken(_ context.Context, identity Identity) (string, int64, error) {
	subject := strings.TrimSpace(identity.UserID)
	if subject == "" {
		return "", 0, errMissingSubjectClaim
	}

	now := i.clock().UTC()
	expiresAt := now.Add(i.config.TokenTTL).UTC()

	claims := Claims{
		DisplayName: strings.TrimSpace(identity.DisplayName),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    i.config.Issuer,
			Audience:  []string{i.config.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.config.SigningSecret)
	if err != nil {
		return "", 0, err
	}

	return signed, int64(expiresAt.Sub(now).Seconds()), nil
}

// ResolveToken validates the bearer token and returns the identity it was issued for.
// Every failure wraps ErrUnauthorized.
func (i *TokenIssuer) ResolveToken(tokenString string) (Identity, error) {
	token := strings.TrimSpace(tokenString)
	if token == "" {
		return Identity{}, fmt.Errorf("%w: token missing", ErrUnauthorized)
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(
		token,
		claims,
		func(t *jwt.Token) (interface{}, error) {
			if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
			}
			return i.config.SigningSecret, nil
		},
		jwt.WithAudience(i.config.Audience),
		jwt.WithIssuer(i.config.Issuer),
		jwt.WithTimeFunc(i.clock),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return Identity{}, fmt.Errorf("%w: %w", ErrUnauthorized, errMissingSubjectClaim)
	}
	return Identity{UserID: subject, DisplayName: claims.DisplayName}, nil
}

package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenSource mints short-lived HS256 service tokens for the queue admin
// API.
type TokenSource struct {
	signingKey []byte
	issuer     string
	audience   string
	ttl        time.Duration

	now func() time.Time
}

// NewTokenSource creates a token source. signingKey must be non-empty.
func NewTokenSource(signingKey, issuer, audience string, ttl time.Duration) (*TokenSource, error) {
	if signingKey == "" {
		return nil, fmt.Errorf("queue auth signing key is required")
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &TokenSource{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
		ttl:        ttl,
		now:        time.Now,
	}, nil
}

// Token returns a signed bearer token.
func (s *TokenSource) Token() (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Issuer:    s.issuer,
		Audience:  jwt.ClaimStrings{s.audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign service token: %w", err)
	}
	return signed, nil
}

// Validate parses a bearer token and checks signature, issuer and audience.
// The fake queue uses this to gate its admin API the way the real one would.
func (s *TokenSource) Validate(tokenString string) error {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.signingKey, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithAudience(s.audience))
	if err != nil {
		return fmt.Errorf("parse service token: %w", err)
	}
	if !token.Valid {
		return fmt.Errorf("invalid service token")
	}
	return nil
}

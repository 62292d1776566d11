package auth

import (
	"strings"
	"testing"
	"time"
)

func TestNewTokenSource_RequiresKey(t *testing.T) {
	if _, err := NewTokenSource("", "iss", "aud", time.Minute); err == nil {
		t.Error("NewTokenSource() with empty key should fail")
	}
}

func TestTokenSource_RoundTrip(t *testing.T) {
	s, err := NewTokenSource("secret-key", "taskgate", "queue-admin", time.Minute)
	if err != nil {
		t.Fatalf("NewTokenSource() error: %v", err)
	}

	token, err := s.Token()
	if err != nil {
		t.Fatalf("Token() error: %v", err)
	}
	if len(strings.Split(token, ".")) != 3 {
		t.Errorf("Token() = %q, want three JWT segments", token)
	}
	if err := s.Validate(token); err != nil {
		t.Errorf("Validate() error: %v", err)
	}
}

func TestTokenSource_RejectsForeignToken(t *testing.T) {
	a, _ := NewTokenSource("key-a", "taskgate", "queue-admin", time.Minute)
	b, _ := NewTokenSource("key-b", "taskgate", "queue-admin", time.Minute)

	token, err := a.Token()
	if err != nil {
		t.Fatalf("Token() error: %v", err)
	}
	if err := b.Validate(token); err == nil {
		t.Error("Validate() accepted a token signed with a different key")
	}
}

func TestTokenSource_RejectsWrongClaims(t *testing.T) {
	tests := []struct {
		name     string
		issuer   string
		audience string
	}{
		{name: "wrong issuer", issuer: "someone-else", audience: "queue-admin"},
		{name: "wrong audience", issuer: "taskgate", audience: "other-api"},
	}

	validator, _ := NewTokenSource("shared-key", "taskgate", "queue-admin", time.Minute)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			signer, _ := NewTokenSource("shared-key", tt.issuer, tt.audience, time.Minute)
			token, err := signer.Token()
			if err != nil {
				t.Fatalf("Token() error: %v", err)
			}
			if err := validator.Validate(token); err == nil {
				t.Error("Validate() accepted a token with wrong claims")
			}
		})
	}
}

func TestTokenSource_RejectsExpiredToken(t *testing.T) {
	s, _ := NewTokenSource("secret-key", "taskgate", "queue-admin", time.Minute)
	s.now = func() time.Time { return time.Now().Add(-2 * time.Minute) }

	token, err := s.Token()
	if err != nil {
		t.Fatalf("Token() error: %v", err)
	}
	if err := s.Validate(token); err == nil {
		t.Error("Validate() accepted an expired token")
	}
}

package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	gantry "gantry/lib"
)

var testSecret = []byte("unit-test-secret")

func signToken(t *testing.T, secret []byte, c claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	raw, err := token.SignedString(secret)
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}
	return raw
}

func freshClaims(subject string) claims {
	return claims{
		Email:    "jane@example.com",
		Name:     "Jane",
		Provider: "google",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
}

func TestSecretVerifierAcceptsValidToken(t *testing.T) {
	v := NewSecretVerifier(testSecret)
	raw := signToken(t, testSecret, freshClaims("ext-1"))

	subject, err := v.VerifyToken(context.Background(), raw)
	if err != nil {
		t.Fatalf("Expected verification to succeed, got %v", err)
	}
	if subject.ID != "ext-1" {
		t.Errorf("Expected subject 'ext-1', got '%s'", subject.ID)
	}
	if subject.Email != "jane@example.com" {
		t.Errorf("Expected email claim to be carried, got '%s'", subject.Email)
	}
	if subject.Provider != "google" {
		t.Errorf("Expected provider claim to be carried, got '%s'", subject.Provider)
	}
}

func TestSecretVerifierDefaultsProvider(t *testing.T) {
	v := NewSecretVerifier(testSecret)
	c := freshClaims("ext-1")
	c.Provider = ""
	raw := signToken(t, testSecret, c)

	subject, err := v.VerifyToken(context.Background(), raw)
	if err != nil {
		t.Fatalf("Expected verification to succeed, got %v", err)
	}
	if subject.Provider != "jwt-secret" {
		t.Errorf("Expected the driver name as fallback provider, got '%s'", subject.Provider)
	}
}

func TestSecretVerifierRejectsExpiredToken(t *testing.T) {
	v := NewSecretVerifier(testSecret)
	c := freshClaims("ext-1")
	c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
	raw := signToken(t, testSecret, c)

	_, err := v.VerifyToken(context.Background(), raw)
	appErr, ok := err.(*gantry.Error)
	if !ok {
		t.Fatalf("Expected *gantry.Error, got %T", err)
	}
	if appErr.Kind != gantry.KindAuthExpiredToken {
		t.Errorf("Expected kind AUTH_EXPIRED_TOKEN, got '%s'", appErr.Kind)
	}
}

func TestSecretVerifierRejectsWrongSecret(t *testing.T) {
	v := NewSecretVerifier(testSecret)
	raw := signToken(t, []byte("some-other-secret"), freshClaims("ext-1"))

	_, err := v.VerifyToken(context.Background(), raw)
	appErr, ok := err.(*gantry.Error)
	if !ok {
		t.Fatalf("Expected *gantry.Error, got %T", err)
	}
	if appErr.Kind != gantry.KindAuthInvalidToken {
		t.Errorf("Expected kind AUTH_INVALID_TOKEN, got '%s'", appErr.Kind)
	}
}

func TestSecretVerifierRejectsGarbage(t *testing.T) {
	v := NewSecretVerifier(testSecret)

	_, err := v.VerifyToken(context.Background(), "not.a.token")
	appErr, ok := err.(*gantry.Error)
	if !ok {
		t.Fatalf("Expected *gantry.Error, got %T", err)
	}
	if appErr.Kind != gantry.KindAuthInvalidToken {
		t.Errorf("Expected kind AUTH_INVALID_TOKEN, got '%s'", appErr.Kind)
	}
}

func TestSecretVerifierRejectsMissingSubject(t *testing.T) {
	v := NewSecretVerifier(testSecret)
	raw := signToken(t, testSecret, freshClaims(""))

	_, err := v.VerifyToken(context.Background(), raw)
	appErr, ok := err.(*gantry.Error)
	if !ok {
		t.Fatalf("Expected *gantry.Error, got %T", err)
	}
	if appErr.Kind != gantry.KindAuthInvalidToken {
		t.Errorf("Expected kind AUTH_INVALID_TOKEN, got '%s'", appErr.Kind)
	}
}

func TestDriverNames(t *testing.T) {
	if name := NewSecretVerifier(testSecret).DriverName(); name != "jwt-secret" {
		t.Errorf("Expected 'jwt-secret', got '%s'", name)
	}
	if name := NewJWKSVerifier("https://example.com/jwks.json").DriverName(); name != "jwt-jwks" {
		t.Errorf("Expected 'jwt-jwks', got '%s'", name)
	}
}

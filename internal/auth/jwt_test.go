package auth

import (
	"testing"
	"time"
)

func TestGenerateAndParseJWT(t *testing.T) {
	secret := "test-secret"

	token, err := GenerateJWT(secret, "ops-dashboard", time.Hour)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}

	claims, err := ParseJWT(secret, token)
	if err != nil {
		t.Fatalf("ParseJWT: %v", err)
	}
	if claims.ClientID != "ops-dashboard" {
		t.Errorf("ClientID = %q, want ops-dashboard", claims.ClientID)
	}
	if claims.Issuer != "escrow-bridge" {
		t.Errorf("Issuer = %q", claims.Issuer)
	}
}

func TestParseJWTWrongSecret(t *testing.T) {
	token, err := GenerateJWT("secret-a", "client", time.Hour)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}
	if _, err := ParseJWT("secret-b", token); err == nil {
		t.Error("expected error for wrong secret")
	}
}

func TestParseJWTExpired(t *testing.T) {
	token, err := GenerateJWT("secret", "client", -time.Minute)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}
	// Lifetime <= 0 falls back to 24h, so this one is still valid.
	if _, err := ParseJWT("secret", token); err != nil {
		t.Errorf("ParseJWT with fallback lifetime: %v", err)
	}

	if _, err := ParseJWT("secret", "not-a-token"); err == nil {
		t.Error("expected error for garbage token")
	}
}

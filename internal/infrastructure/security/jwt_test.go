package security

import (
	"testing"
	"time"
)

func TestOperatorTokenRoundTrip(t *testing.T) {
	secret := "test-secret"
	token, err := GenerateOperatorToken("admin", secret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateOperatorToken: %v", err)
	}

	claims, err := ValidateJWT(token, secret)
	if err != nil {
		t.Fatalf("ValidateJWT: %v", err)
	}
	operator, ok := OperatorFromClaims(claims)
	if !ok || operator != "admin" {
		t.Errorf("operator = (%q, %v), want admin", operator, ok)
	}
	if claims["role"] != "operator" {
		t.Errorf("role claim = %v, want operator", claims["role"])
	}
}

func TestValidateJWTWrongSecret(t *testing.T) {
	token, err := GenerateOperatorToken("admin", "secret-a", time.Hour)
	if err != nil {
		t.Fatalf("GenerateOperatorToken: %v", err)
	}
	if _, err := ValidateJWT(token, "secret-b"); err == nil {
		t.Error("token validated under the wrong secret")
	}
}

func TestValidateJWTExpired(t *testing.T) {
	token, err := GenerateOperatorToken("admin", "secret", -time.Minute)
	if err != nil {
		t.Fatalf("GenerateOperatorToken: %v", err)
	}
	if _, err := ValidateJWT(token, "secret"); err == nil {
		t.Error("expired token validated")
	}
}

func TestValidateJWTGarbage(t *testing.T) {
	if _, err := ValidateJWT("not.a.token", "secret"); err == nil {
		t.Error("garbage token validated")
	}
}

func TestOperatorFromClaimsMissingSubject(t *testing.T) {
	token, err := GenerateOperatorToken("", "secret", time.Hour)
	if err != nil {
		t.Fatalf("GenerateOperatorToken: %v", err)
	}
	claims, err := ValidateJWT(token, "secret")
	if err != nil {
		t.Fatalf("ValidateJWT: %v", err)
	}
	if _, ok := OperatorFromClaims(claims); ok {
		t.Error("empty subject accepted")
	}
}

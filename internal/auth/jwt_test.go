package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestNewIssuerRejectsWeakSecrets(t *testing.T) {
	tests := []struct {
		name   string
		secret string
		ttl    time.Duration
	}{
		{"empty", "", time.Hour},
		{"short", "too-short", time.Hour},
		{"no expiry", testSecret, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewIssuer(tc.secret, tc.ttl); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func TestGenerateAndValidate(t *testing.T) {
	issuer, err := NewIssuer(testSecret, time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	token, err := issuer.Generate(42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	claims, err := issuer.Validate(token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claims.ShipID != 42 || claims.Subject != "42" {
		t.Errorf("claims = %+v, want ship 42", claims)
	}
}

func TestValidateRejects(t *testing.T) {
	issuer, _ := NewIssuer(testSecret, time.Hour)
	other, _ := NewIssuer(strings.Repeat("x", 32), time.Hour)

	expired, _ := NewIssuer(testSecret, time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expiredToken, _ := expired.Generate(1)

	foreignToken, _ := other.Generate(1)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		ShipID: 1,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuerName,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	noneToken, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)

	noShip, _ := issuer.Generate(0)

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"expired", expiredToken},
		{"other secret", foreignToken},
		{"unsigned", noneToken},
		{"no ship", noShip},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := issuer.Validate(tc.token); err == nil {
				t.Fatal("expected token to be rejected")
			}
		})
	}
}

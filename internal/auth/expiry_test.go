package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func TestTokenExpiry(t *testing.T) {
	t.Run("reads exp claim without the secret", func(t *testing.T) {
		exp := time.Now().Add(15 * time.Minute).Truncate(time.Second)
		token := signedToken(t, jwt.MapClaims{"exp": exp.Unix(), "sid": "s1"})

		got, err := TokenExpiry(token)
		if err != nil {
			t.Fatalf("TokenExpiry() failed: %v", err)
		}
		if !got.Equal(exp) {
			t.Errorf("TokenExpiry() = %v, want %v", got, exp)
		}
	})

	t.Run("token without exp", func(t *testing.T) {
		token := signedToken(t, jwt.MapClaims{"sid": "s1"})

		got, err := TokenExpiry(token)
		if err != nil {
			t.Fatalf("TokenExpiry() failed: %v", err)
		}
		if !got.IsZero() {
			t.Errorf("TokenExpiry() = %v, want zero time", got)
		}
	})

	t.Run("garbage token", func(t *testing.T) {
		if _, err := TokenExpiry("not-a-jwt"); err == nil {
			t.Error("TokenExpiry() accepted a malformed token")
		}
	})
}

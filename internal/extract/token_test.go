package extract

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return tok
}

func TestNormalizeBearer(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Bearer abc.def.ghi", "abc.def.ghi"},
		{"bearer abc.def.ghi", "abc.def.ghi"},
		{"  abc.def.ghi  ", "abc.def.ghi"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeBearer(tt.in))
		})
	}
}

func TestTokenUsable_ValidJWT(t *testing.T) {
	now := time.Now()
	tok := signedToken(t, jwt.MapClaims{"exp": now.Add(time.Hour).Unix()})
	assert.True(t, TokenUsable(tok, now))
}

func TestTokenUsable_ExpiredJWT(t *testing.T) {
	now := time.Now()
	tok := signedToken(t, jwt.MapClaims{"exp": now.Add(-time.Hour).Unix()})
	assert.False(t, TokenUsable(tok, now))
}

func TestTokenUsable_JWTWithoutExp(t *testing.T) {
	tok := signedToken(t, jwt.MapClaims{"sub": "storesync"})
	assert.True(t, TokenUsable(tok, time.Now()))
}

func TestTokenUsable_OpaqueToken(t *testing.T) {
	// Non-JWT bearer tokens carry no readable expiry; the 401 fallback is
	// the safety net.
	assert.True(t, TokenUsable("opaque-session-token-12345", time.Now()))
}

func TestTokenUsable_Empty(t *testing.T) {
	assert.False(t, TokenUsable("", time.Now()))
}

package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func mintJWT(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("test-key"))
	require.NoError(t, err)
	return signed
}

func TestInspectBearerReadsClaims(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	raw := mintJWT(t, jwt.MapClaims{
		"sub": "user-123",
		"iss": "https://issuer.example",
		"exp": exp.Unix(),
	})

	info, err := InspectBearer(raw)
	require.NoError(t, err)
	require.Equal(t, "user-123", info.Subject)
	require.Equal(t, "https://issuer.example", info.Issuer)
	require.Equal(t, exp.Unix(), info.ExpiresAt.Unix())
	require.False(t, info.Expired(time.Now()))
}

func TestInspectBearerExpiryBuffer(t *testing.T) {
	raw := mintJWT(t, jwt.MapClaims{"exp": time.Now().Add(30 * time.Second).Unix()})
	info, err := InspectBearer(raw)
	require.NoError(t, err)
	require.True(t, info.Expired(time.Now()))
}

func TestInspectBearerGarbage(t *testing.T) {
	_, err := InspectBearer("not-a-jwt")
	require.Error(t, err)
}

func TestSigV4Mode(t *testing.T) {
	t.Setenv(SigV4ModeEnv, "")
	require.False(t, SigV4Mode())
	t.Setenv(SigV4ModeEnv, "1")
	require.True(t, SigV4Mode())
}

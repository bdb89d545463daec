package utils

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupVerifier(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	prev := verifyKey
	verifyKey = func(token *jwt.Token) (any, error) { return &key.PublicKey, nil }
	t.Cleanup(func() { verifyKey = prev })
	return key
}

func signedToken(t *testing.T, key *rsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	require.NoError(t, err)
	return raw
}

func TestParseTokenData_ValidToken(t *testing.T) {
	key := setupVerifier(t)
	raw := signedToken(t, key, jwt.MapClaims{
		"sub":   "user-123",
		"email": "jane@example.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})

	data, err := ParseTokenData(raw)
	require.NoError(t, err)
	assert.Equal(t, "user-123", data.Sub)
	assert.Equal(t, "jane@example.com", data.Email)
}

func TestParseTokenData_RejectsForeignSignature(t *testing.T) {
	setupVerifier(t)

	// Signed with a key the verifier has never seen, as a re-minted token
	// from a leaked payload would be.
	other, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	raw := signedToken(t, other, jwt.MapClaims{
		"sub": "user-123",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	_, err = ParseTokenData(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseTokenData_RejectsUnsignedToken(t *testing.T) {
	setupVerifier(t)

	raw, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": "user-123",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = ParseTokenData(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseTokenData_ExpiredToken(t *testing.T) {
	key := setupVerifier(t)
	raw := signedToken(t, key, jwt.MapClaims{
		"sub": "user-123",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})

	_, err := ParseTokenData(raw)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestParseTokenData_MissingSubject(t *testing.T) {
	key := setupVerifier(t)
	raw := signedToken(t, key, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	_, err := ParseTokenData(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseTokenData_VerifierNotConfigured(t *testing.T) {
	prev := verifyKey
	verifyKey = nil
	t.Cleanup(func() { verifyKey = prev })

	_, err := ParseTokenData("anything")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

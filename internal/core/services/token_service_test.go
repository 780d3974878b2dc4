package services_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iampurna/habit-island-core/internal/core/services"
)

func TestTokenService_RoundTrip(t *testing.T) {
	svc := services.NewTokenService("test-secret", "habit-island", time.Hour)

	token, err := svc.GenerateToken("u1")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	userID, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", userID)
}

func TestTokenService_RejectsForeignSignature(t *testing.T) {
	issuer := services.NewTokenService("secret-a", "habit-island", time.Hour)
	verifier := services.NewTokenService("secret-b", "habit-island", time.Hour)

	token, err := issuer.GenerateToken("u1")
	require.NoError(t, err)

	_, err = verifier.ValidateToken(token)
	assert.Error(t, err)
}

func TestTokenService_RejectsWrongIssuer(t *testing.T) {
	issuer := services.NewTokenService("test-secret", "someone-else", time.Hour)
	verifier := services.NewTokenService("test-secret", "habit-island", time.Hour)

	token, err := issuer.GenerateToken("u1")
	require.NoError(t, err)

	_, err = verifier.ValidateToken(token)
	assert.Error(t, err)
}

func TestTokenService_RejectsExpiredToken(t *testing.T) {
	svc := services.NewTokenService("test-secret", "habit-island", -time.Minute)

	token, err := svc.GenerateToken("u1")
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.Error(t, err)
}

func TestTokenService_RejectsGarbage(t *testing.T) {
	svc := services.NewTokenService("test-secret", "habit-island", time.Hour)

	_, err := svc.ValidateToken("not-a-token")
	assert.Error(t, err)
}

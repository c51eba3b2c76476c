package auth_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kisaansahayak/sahayak/internal/auth"
)

const secret = "test-secret"

func newChain() *auth.ProviderChain {
	chain := auth.NewProviderChain()
	chain.RegisterProvider(auth.NewTokenProvider(secret))
	chain.RegisterProvider(auth.NewAPIKeyProvider([]string{"svc-key-1", " ", "svc-key-2"}))
	return chain
}

func TestChain_Guest(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
	id, err := newChain().Authenticate(context.Background(), req)
	require.NoError(t, err)
	assert.Nil(t, id, "no credentials means guest")
}

func TestChain_UserToken(t *testing.T) {
	token, err := auth.IssueToken([]byte(secret), "uid-42", "asha@example.in", "Asha", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	id, err := newChain().Authenticate(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, "uid-42", id.Subject)
	assert.Equal(t, "asha@example.in", id.Email)
	assert.Equal(t, "Asha", id.DisplayName)
	assert.Equal(t, "token", id.Provider)
	assert.False(t, id.ExpiresAt.IsZero())
}

func TestChain_TokenRejections(t *testing.T) {
	good, err := auth.IssueToken([]byte(secret), "uid-1", "", "", time.Hour)
	require.NoError(t, err)
	forged, err := auth.IssueToken([]byte("other-secret"), "uid-1", "", "", time.Hour)
	require.NoError(t, err)
	expired, err := auth.IssueToken([]byte(secret), "uid-1", "", "", -time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"forged", forged, auth.ErrBadSignature},
		{"expired", expired, auth.ErrTokenExpired},
		{"no dot", "abcdef", auth.ErrMalformedToken},
		{"tampered payload", "x" + good, auth.ErrBadSignature},
		{"bad signature encoding", strings.SplitN(good, ".", 2)[0] + ".!!!", auth.ErrMalformedToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/auth/verify", nil)
			req.Header.Set("Authorization", "Bearer "+tt.token)
			id, err := newChain().Authenticate(context.Background(), req)
			assert.Nil(t, id)
			assert.True(t, errors.Is(err, tt.want), "Authenticate() error = %v, want %v", err, tt.want)
		})
	}
}

func TestChain_APIKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
	req.Header.Set("X-API-Key", "svc-key-2")

	id, err := newChain().Authenticate(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, "apikey", id.Provider)
	assert.True(t, strings.HasPrefix(id.Subject, "apikey:"))

	req.Header.Set("X-API-Key", "wrong")
	_, err = newChain().Authenticate(context.Background(), req)
	assert.ErrorIs(t, err, auth.ErrInvalidAPIKey)
}

func TestChain_DisabledProvidersSkipped(t *testing.T) {
	chain := auth.NewProviderChain()
	chain.RegisterProvider(auth.NewTokenProvider(""))
	chain.RegisterProvider(auth.NewAPIKeyProvider(nil))
	assert.Equal(t, []string{"token", "apikey"}, chain.ListProviders())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer anything.at-all")
	req.Header.Set("X-API-Key", "anything")
	id, err := chain.Authenticate(context.Background(), req)
	require.NoError(t, err)
	assert.Nil(t, id)
}

func TestIssueToken_RequiresSubject(t *testing.T) {
	_, err := auth.IssueToken([]byte(secret), "", "", "", time.Hour)
	assert.ErrorIs(t, err, auth.ErrMalformedToken)
}

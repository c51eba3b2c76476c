package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/kisaansahayak/sahayak/pkg/contracts"
)

// ErrInvalidAPIKey is returned for a present but unknown key.
var ErrInvalidAPIKey = errors.New("invalid API key")

// APIKeyProvider validates static keys sent in the X-API-Key header. It is
// meant for trusted service clients such as a messaging bridge that asks
// on behalf of farmers.
type APIKeyProvider struct {
	keys [][]byte
}

// NewAPIKeyProvider creates a provider for keys. Blank keys are ignored;
// with no keys the provider is disabled.
func NewAPIKeyProvider(keys []string) *APIKeyProvider {
	p := &APIKeyProvider{}
	for _, key := range keys {
		if key = strings.TrimSpace(key); key != "" {
			p.keys = append(p.keys, []byte(key))
		}
	}
	return p
}

func (p *APIKeyProvider) Name() string  { return "apikey" }
func (p *APIKeyProvider) Enabled() bool { return len(p.keys) > 0 }

// Authenticate validates the API key and returns an Identity.
// Returns (nil, nil) if no API key is present (let next provider try).
// Returns (nil, error) if an API key is present but invalid.
func (p *APIKeyProvider) Authenticate(_ context.Context, r *http.Request) (*contracts.Identity, error) {
	apiKey := strings.TrimSpace(r.Header.Get("X-API-Key"))
	if apiKey == "" {
		return nil, nil
	}
	if !p.validateKey(apiKey) {
		return nil, ErrInvalidAPIKey
	}

	keyHash := fmt.Sprintf("%x", sha256.Sum256([]byte(apiKey)))
	return &contracts.Identity{
		Subject:     "apikey:" + keyHash[:16],
		Provider:    "apikey",
		DisplayName: "API Key Client",
	}, nil
}

func (p *APIKeyProvider) validateKey(candidate string) bool {
	ok := false
	for _, key := range p.keys {
		if subtle.ConstantTimeCompare([]byte(candidate), key) == 1 {
			ok = true
		}
	}
	return ok
}

// Package auth provides the authentication provider chain.
//
// Providers:
//   - TokenProvider: HMAC-signed user tokens (Authorization: Bearer)
//   - APIKeyProvider: static keys for trusted service clients (X-API-Key)
//
// A request no provider claims is a guest.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/kisaansahayak/sahayak/internal/metrics"
	"github.com/kisaansahayak/sahayak/pkg/contracts"
)

// ProviderChain implements contracts.AuthProviderChain. Providers are
// tried in registration order; disabled providers are skipped.
type ProviderChain struct {
	mu        sync.RWMutex
	providers []contracts.AuthProvider
}

// NewProviderChain creates a chain holding providers in order.
func NewProviderChain(providers ...contracts.AuthProvider) *ProviderChain {
	c := &ProviderChain{}
	for _, p := range providers {
		c.RegisterProvider(p)
	}
	return c
}

// RegisterProvider adds a provider to the end of the chain.
func (c *ProviderChain) RegisterProvider(provider contracts.AuthProvider) {
	c.mu.Lock()
	c.providers = append(c.providers, provider)
	c.mu.Unlock()

	log.Info().
		Str("provider", provider.Name()).
		Bool("enabled", provider.Enabled()).
		Msg("Auth provider registered")
}

// Authenticate returns the identity of the first provider that claims the
// request. A provider that finds credentials it cannot accept ends the
// walk: a caller who sent a bad token is rejected rather than demoted to
// guest. (nil, nil) means guest.
func (c *ProviderChain) Authenticate(ctx context.Context, r *http.Request) (*contracts.Identity, error) {
	c.mu.RLock()
	providers := c.providers
	c.mu.RUnlock()

	for _, p := range providers {
		if !p.Enabled() {
			continue
		}
		identity, err := p.Authenticate(ctx, r)
		if err != nil {
			metrics.AuthResults.WithLabelValues(p.Name(), "rejected").Inc()
			return nil, fmt.Errorf("%s: %w", p.Name(), err)
		}
		if identity == nil {
			continue
		}
		if identity.Provider == "" {
			identity.Provider = p.Name()
		}
		metrics.AuthResults.WithLabelValues(p.Name(), "authenticated").Inc()
		log.Debug().
			Str("provider", p.Name()).
			Str("subject", identity.Subject).
			Msg("Request authenticated")
		return identity, nil
	}

	metrics.AuthResults.WithLabelValues("", "guest").Inc()
	return nil, nil
}

// ListProviders returns the names of all registered providers in chain
// order, enabled or not.
func (c *ProviderChain) ListProviders() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, len(c.providers))
	for i, p := range c.providers {
		names[i] = p.Name()
	}
	return names
}

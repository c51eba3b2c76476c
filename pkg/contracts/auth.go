// Authentication interfaces for the pluggable auth layer.
//
// The chat service only needs to know whether a caller is an identified
// user (conversations are persisted and context is resolved) or a guest
// (usage is counted). Providers behind this boundary decide how.

package contracts

import (
	"context"
	"net/http"
	"time"
)

// ── Identity ────────────────────────────────────────────────

// Identity represents an authenticated farmer or service client.
type Identity struct {
	// Subject is the unique identifier and owner key for conversations.
	Subject string `json:"uid"`

	Email       string `json:"email,omitempty"`
	DisplayName string `json:"display_name,omitempty"`

	// Provider identifies which auth provider authenticated this identity.
	// Values: "token", "apikey"
	Provider string `json:"provider"`

	Claims    map[string]string `json:"claims,omitempty"`
	ExpiresAt time.Time         `json:"expires_at,omitempty"`
}

// ── AuthProvider ────────────────────────────────────────────

// AuthProvider authenticates an HTTP request and returns an Identity.
//
// The chain pattern:
//   - Return (*Identity, nil) → authenticated, stop chain
//   - Return (nil, nil) → this provider doesn't handle this request, try next
//   - Return (nil, error) → authentication was attempted but failed, reject
type AuthProvider interface {
	Name() string
	Authenticate(ctx context.Context, r *http.Request) (*Identity, error)
	Enabled() bool
}

// ── AuthProviderChain ───────────────────────────────────────

// AuthProviderChain tries providers in priority order until one returns an Identity.
type AuthProviderChain interface {
	// Authenticate returns the first successful Identity, or (nil, nil)
	// if no provider matched. A nil identity means "guest".
	Authenticate(ctx context.Context, r *http.Request) (*Identity, error)

	RegisterProvider(provider AuthProvider)
}

// Package contracts defines the service interfaces for the advisory core.
//
// The router and orchestrator depend only on these interfaces, so a
// provider or a conversation backend can be swapped in the wiring code
// (pkg/server) without touching the pipeline.
package contracts

import (
	"context"

	"github.com/kisaansahayak/sahayak/internal/store"
	"github.com/kisaansahayak/sahayak/pkg/models"
)

// ConversationStore is a type alias for the internal store contract.
type ConversationStore = store.ConversationStore

// ErrNotFound is a type alias for the internal ErrNotFound error.
type ErrNotFound = store.ErrNotFound

// ── Providers ───────────────────────────────────────────────

// Specialist answers agriculture-domain questions. Implementations never
// retry; the caller decides how to degrade.
type Specialist interface {
	Ask(ctx context.Context, query string) (*models.ProviderResponse, error)
}

// Generator is the general-purpose model. Implementations own their model
// fallback chain.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts models.GenerateOptions) (*models.ProviderResponse, error)
}

// ── Chat Service ────────────────────────────────────────────

// ChatService answers one farmer question end to end. A nil identity is a
// guest caller.
type ChatService interface {
	Chat(ctx context.Context, identity *Identity, req *models.ChatRequest) (*models.ChatResult, error)
}

// ── Guest Usage ─────────────────────────────────────────────

// GuestCounter tracks how many questions an unidentified caller has asked.
type GuestCounter interface {
	Count(ctx context.Context, guestID string) (int, error)
	Increment(ctx context.Context, guestID string) (int, error)
}

// Package store provides the conversation storage interface and its
// implementations. The in-memory store is used for local development and
// tests; the PostgreSQL store backs production deployments.
package store

import (
	"context"

	"github.com/kisaansahayak/sahayak/pkg/models"
)

// Store is the full storage interface used by the server.
// Handler and orchestrator code depends only on ConversationStore, making
// it easy to swap between in-memory (tests) and PostgreSQL (production).
type Store interface {
	ConversationStore

	// Ping checks if the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases all resources held by the store.
	Close() error
}

// ── Conversation Store ──────────────────────────────────────

// ConversationStore persists conversations and their messages. Every call
// is scoped to an owner; a conversation belonging to someone else is
// reported as not found.
type ConversationStore interface {
	CreateConversation(ctx context.Context, owner, title, firstMessage string) (*models.Conversation, error)
	ListConversations(ctx context.Context, owner string) ([]models.Conversation, error)
	GetConversation(ctx context.Context, owner, id string) (*models.Conversation, error)
	UpdateConversation(ctx context.Context, owner, id string, upd models.ConversationUpdate) (*models.Conversation, error)
	// DeleteConversation removes the conversation and all of its messages.
	DeleteConversation(ctx context.Context, owner, id string) error

	// SaveMessage appends a turn. It bumps the message count and last
	// message time; user turns also refresh the preview.
	SaveMessage(ctx context.Context, owner, conversationID string, role models.Role, text string) (*models.Message, error)
	// ListMessages returns the turns oldest first.
	ListMessages(ctx context.Context, owner, conversationID string) ([]models.Message, error)
	// LastMessage returns the text of the newest turn by role, or "" when
	// there is none.
	LastMessage(ctx context.Context, owner, conversationID string, role models.Role) (string, error)
}

// ── Errors ──────────────────────────────────────────────────

// ErrNotFound is returned when a requested entity does not exist.
type ErrNotFound struct {
	Entity string
	Key    string
}

func (e *ErrNotFound) Error() string {
	return e.Entity + " not found: " + e.Key
}

func conversationNotFound(id string) error {
	return &ErrNotFound{Entity: "conversation", Key: id}
}

// newConversation fills the defaults for a conversation created from a
// first message.
func newConversation(title, firstMessage string) (string, string) {
	if title == "" {
		title = models.DefaultConversationTitle
	}
	return title, models.Preview(firstMessage)
}

package models

import (
	"strings"
	"time"
)

// ── Mode ────────────────────────────────────────────────────

// Mode selects the default pipeline for questions that are not
// elaborations of an earlier answer. Set once at startup.
type Mode string

const (
	ModeSpecialistOnly Mode = "specialist_only"
	ModeHybridLite     Mode = "hybrid_lite"
	ModeHybridFull     Mode = "hybrid_full"
)

// ParseMode normalises a configured mode string. The legacy "dhenu_only"
// spelling maps to ModeSpecialistOnly; anything unknown falls back to
// ModeHybridLite.
func ParseMode(s string) Mode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "specialist_only", "dhenu_only":
		return ModeSpecialistOnly
	case "hybrid_full":
		return ModeHybridFull
	default:
		return ModeHybridLite
	}
}

// ── Language ────────────────────────────────────────────────

// Language is a reply language. LanguageAuto means "match the question".
type Language string

const (
	LanguageAuto    Language = "auto"
	LanguageEnglish Language = "english"
	LanguageHindi   Language = "hindi"
	LanguageMarathi Language = "marathi"
	LanguageTamil   Language = "tamil"
	LanguageTelugu  Language = "telugu"
	LanguagePunjabi Language = "punjabi"
)

// Languages lists every accepted language value in display order.
var Languages = []Language{
	LanguageAuto, LanguageEnglish, LanguageHindi, LanguageMarathi,
	LanguageTamil, LanguageTelugu, LanguagePunjabi,
}

// Valid reports whether l is one of the known language values.
func (l Language) Valid() bool {
	for _, known := range Languages {
		if l == known {
			return true
		}
	}
	return false
}

// ── Complexity ──────────────────────────────────────────────

// Complexity is the coarse question-complexity tier. It only steers reply
// length targets.
type Complexity string

const (
	ComplexityLow    Complexity = "low"
	ComplexityMedium Complexity = "medium"
	ComplexityHigh   Complexity = "high"
)

// ── Classification ──────────────────────────────────────────

// Classification is computed per request and never persisted.
type Classification struct {
	Language            Language   `json:"language"`
	Complexity          Complexity `json:"complexity"`
	WantsDetail         bool       `json:"wants_detail"`
	IsElaborationOnly   bool       `json:"is_elaboration_only"`
	IsElaborationHint   bool       `json:"is_elaboration_hint"`
	IsFollowUp          bool       `json:"is_follow_up"`
	IsLooseContinuation bool       `json:"is_loose_continuation"`
	IsNewTopic          bool       `json:"is_new_topic"`
}

// Continuation reports whether the message reads as a continuation of an
// earlier exchange (elaboration, follow-up, or short on-topic remark).
func (c Classification) Continuation() bool {
	return c.IsElaborationOnly || c.IsElaborationHint || c.IsFollowUp || c.IsLooseContinuation
}

// ── Pipelines & Provenance ──────────────────────────────────

// Pipeline identifies which branch of the router produced a reply.
type Pipeline string

const (
	PipelineElaborate      Pipeline = "elaborate"
	PipelineSpecialistOnly Pipeline = "specialist_only"
	PipelineTriageHybrid   Pipeline = "triage_hybrid"
	PipelineRewriteHybrid  Pipeline = "rewrite_hybrid"
)

// Provenance tags record which providers produced the final text.
const (
	ProvenanceExpand              = "gemini_expand"
	ProvenanceSpecialistRefine    = "dhenu+gemini_refine"
	ProvenanceTriageSpecialist    = "gemini_router+dhenu"
	ProvenanceTriageSpecialistErr = "gemini_router+dhenu_failed"
	ProvenanceTriageOnly          = "gemini_router_only"
	ProvenanceRewriteSpecialist   = "gemini_rewrite+dhenu+gemini_refine"
	ProvenanceRewriteFallback     = "gemini_rewrite+gemini_fallback"
)

// RoutingDecision is the router's choice plus the resolved inputs for it.
type RoutingDecision struct {
	Pipeline         Pipeline `json:"pipeline"`
	EffectiveMessage string   `json:"effective_message"`
	PreviousAnswer   string   `json:"previous_answer,omitempty"`
}

// ── Providers ───────────────────────────────────────────────

// ProviderResponse is the text returned by one provider call.
type ProviderResponse struct {
	Text       string `json:"text"`
	ProviderID string `json:"provider_id"`
	ModelID    string `json:"model_id,omitempty"`
}

// GenerateOptions carries per-call generation parameters for the general
// provider.
type GenerateOptions struct {
	MaxOutputTokens int     `json:"max_output_tokens"`
	Temperature     float64 `json:"temperature"`
	TopP            float64 `json:"top_p"`
}

// ── Conversations ───────────────────────────────────────────

// Role is the author of a stored message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Message is one stored turn. Immutable once saved.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           Role      `json:"role"`
	Text           string    `json:"text"`
	CreatedAt      time.Time `json:"created_at"`
}

// Conversation is owned by a single identity. Deleting it removes its
// messages.
type Conversation struct {
	ID            string    `json:"id"`
	Owner         string    `json:"owner"`
	Title         string    `json:"title"`
	Preview       string    `json:"preview"`
	MessageCount  int       `json:"message_count"`
	CreatedAt     time.Time `json:"created_at"`
	LastMessageAt time.Time `json:"last_message"`
}

// ConversationUpdate holds the mutable conversation fields. Nil leaves a
// field untouched.
type ConversationUpdate struct {
	Title        *string `json:"title,omitempty"`
	Preview      *string `json:"preview,omitempty"`
	MessageCount *int    `json:"message_count,omitempty"`
}

// DefaultConversationTitle is used for conversations created by the chat
// flow.
const DefaultConversationTitle = "New conversation"

// PreviewLimit caps stored conversation previews.
const PreviewLimit = 100

// Preview truncates text to PreviewLimit characters, appending "..." when
// cut.
func Preview(text string) string {
	r := []rune(text)
	if len(r) <= PreviewLimit {
		return text
	}
	return string(r[:PreviewLimit]) + "..."
}

// ── Chat ────────────────────────────────────────────────────

// ChatRequest is a single farmer question as accepted by the orchestrator.
type ChatRequest struct {
	Message        string   `json:"message"`
	Language       Language `json:"language,omitempty"`
	Location       string   `json:"location,omitempty"`
	ConversationID string   `json:"conversation_id,omitempty"`
	Elaborate      bool     `json:"elaborate,omitempty"`
	PreviousAnswer string   `json:"previous_answer,omitempty"`
}

// ChatResult is the caller-facing outcome of one orchestrated request.
type ChatResult struct {
	Reply          string   `json:"reply"`
	ModeUsed       Mode     `json:"modeUsed"`
	Provider       string   `json:"provider"`
	ModelID        string   `json:"modelId"`
	Pipeline       Pipeline `json:"pipeline"`
	Language       Language `json:"language"`
	ConversationID string   `json:"conversation_id,omitempty"`

	IsAuthenticated bool `json:"isAuthenticated"`
	// GuestRemaining is set for guest callers only.
	GuestRemaining *int `json:"guest_remaining,omitempty"`
}

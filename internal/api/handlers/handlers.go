// Package handlers implements the HTTP handlers for the advisory API.
// Handlers decode requests, resolve the caller from context and map
// service errors onto status codes; all decisions live in the services.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/kisaansahayak/sahayak/internal/geocode"
	"github.com/kisaansahayak/sahayak/internal/guardrails"
	"github.com/kisaansahayak/sahayak/internal/orchestrator"
	"github.com/kisaansahayak/sahayak/internal/provider"
	"github.com/kisaansahayak/sahayak/internal/store"
	"github.com/kisaansahayak/sahayak/pkg/contracts"
	pkgmw "github.com/kisaansahayak/sahayak/pkg/middleware"
	"github.com/kisaansahayak/sahayak/pkg/models"
)

// MaxBodySize caps request bodies.
const MaxBodySize = 64 << 10

// Geocoder resolves coordinates to a place name.
type Geocoder interface {
	Reverse(ctx context.Context, lat, lon float64) (*geocode.Result, error)
}

// Pinger reports backend health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers holds all handler dependencies.
type Handlers struct {
	ChatService contracts.ChatService
	Store       contracts.ConversationStore
	Geocoder    Geocoder
	Screener    *guardrails.Screener
	// Health lists the backends checked by /health.
	Health  map[string]Pinger
	Version string
	Mode    models.Mode
}

// New creates a Handlers instance with all dependencies.
func New(chat contracts.ChatService, s contracts.ConversationStore, geo Geocoder, version string, mode models.Mode) *Handlers {
	return &Handlers{
		ChatService: chat,
		Store:       s,
		Geocoder:    geo,
		Screener:    guardrails.New(),
		Health:      map[string]Pinger{},
		Version:     version,
		Mode:        mode,
	}
}

// ══════════════════════════════════════════════════════════════
// ── Chat ─────────────────────────────────────────────────────
// ══════════════════════════════════════════════════════════════

// Chat answers one farmer question.
func (h *Handlers) Chat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := h.ChatService.Chat(r.Context(), pkgmw.GetIdentity(r.Context()), &req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// AuthVerify reports the caller's identity. Guests get 401 so the client
// can show the sign-in prompt.
func (h *Handlers) AuthVerify(w http.ResponseWriter, r *http.Request) {
	identity := pkgmw.GetIdentity(r.Context())
	if identity == nil {
		respondError(w, r, http.StatusUnauthorized, "Not signed in", "authentication_required")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"authenticated": true,
		"user":          identity,
	})
}

// ══════════════════════════════════════════════════════════════
// ── Conversations ────────────────────────────────────────────
// ══════════════════════════════════════════════════════════════

type createConversationRequest struct {
	Title        string `json:"title"`
	FirstMessage string `json:"first_message"`
}

type appendMessageRequest struct {
	Role models.Role `json:"role"`
	Text string      `json:"text"`
}

func (h *Handlers) ListConversations(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireOwner(w, r)
	if !ok {
		return
	}
	convs, err := h.Store.ListConversations(r.Context(), owner)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if convs == nil {
		convs = []models.Conversation{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"conversations": convs,
		"count":         len(convs),
	})
}

func (h *Handlers) CreateConversation(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireOwner(w, r)
	if !ok {
		return
	}
	var req createConversationRequest
	if !decodeBody(w, r, &req) {
		return
	}

	conv, err := h.Store.CreateConversation(r.Context(), owner, strings.TrimSpace(req.Title), strings.TrimSpace(req.FirstMessage))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, conv)
}

func (h *Handlers) UpdateConversation(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireOwner(w, r)
	if !ok {
		return
	}
	var req models.ConversationUpdate
	if !decodeBody(w, r, &req) {
		return
	}
	if req.MessageCount != nil && *req.MessageCount < 0 {
		respondError(w, r, http.StatusBadRequest, "message_count must not be negative", "")
		return
	}
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			respondError(w, r, http.StatusBadRequest, "title must not be empty", "")
			return
		}
		req.Title = &title
	}

	conv, err := h.Store.UpdateConversation(r.Context(), owner, chi.URLParam(r, "id"), req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, conv)
}

func (h *Handlers) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireOwner(w, r)
	if !ok {
		return
	}
	if err := h.Store.DeleteConversation(r.Context(), owner, chi.URLParam(r, "id")); err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) ListMessages(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireOwner(w, r)
	if !ok {
		return
	}
	convID := chi.URLParam(r, "id")
	msgs, err := h.Store.ListMessages(r.Context(), owner, convID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"conversation_id": convID,
		"messages":        msgs,
		"count":           len(msgs),
	})
}

// AppendMessage stores a turn written by the client. Both roles pass the
// same screening as chat messages.
func (h *Handlers) AppendMessage(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireOwner(w, r)
	if !ok {
		return
	}
	var req appendMessageRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !req.Role.Valid() {
		respondError(w, r, http.StatusBadRequest, "role must be user or assistant", "")
		return
	}

	text := strings.TrimSpace(req.Text)
	if text == "" {
		respondError(w, r, http.StatusBadRequest, "text is required", "")
		return
	}
	sanitized, err := h.Screener.Screen(text)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	msg, err := h.Store.SaveMessage(r.Context(), owner, chi.URLParam(r, "id"), req.Role, sanitized)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, msg)
}

// ══════════════════════════════════════════════════════════════
// ── Location ─────────────────────────────────────────────────
// ══════════════════════════════════════════════════════════════

// ReverseGeocode turns browser coordinates into a place name for the
// chat location field.
func (h *Handlers) ReverseGeocode(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, lon, err := geocode.ParseCoordinates(q.Get("lat"), q.Get("lon"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	res, err := h.Geocoder.Reverse(r.Context(), lat, lon)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// ══════════════════════════════════════════════════════════════
// ── Health & Info ────────────────────────────────────────────
// ══════════════════════════════════════════════════════════════

func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(h.Health))
	for name, p := range h.Health {
		if err := p.Ping(ctx); err != nil {
			log.Warn().Err(err).Str("backend", name).Msg("Health check failed")
			checks[name] = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	overall := "healthy"
	if status != http.StatusOK {
		overall = "degraded"
	}
	respondJSON(w, status, map[string]interface{}{
		"status":  overall,
		"service": "sahayak",
		"checks":  checks,
	})
}

func (h *Handlers) VersionInfo(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"version": h.Version,
		"service": "sahayak",
		"mode":    string(h.Mode),
	})
}

// ══════════════════════════════════════════════════════════════
// ── Helpers ──────────────────────────────────────────────────
// ══════════════════════════════════════════════════════════════

func requireOwner(w http.ResponseWriter, r *http.Request) (string, bool) {
	identity := pkgmw.GetIdentity(r.Context())
	if identity == nil {
		respondError(w, r, http.StatusUnauthorized, "Sign in to manage conversations", "authentication_required")
		return "", false
	}
	return identity.Subject, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, r, http.StatusRequestEntityTooLarge, "Request body too large", "")
			return false
		}
		respondError(w, r, http.StatusBadRequest, "Invalid request body", "")
		return false
	}
	return true
}

// respondServiceError maps a service error onto the API envelope.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validation *guardrails.ValidationError
		guestLimit *orchestrator.ErrGuestLimit
		notFound   *store.ErrNotFound
		configErr  *provider.ConfigError
		providerEr *provider.ProviderError
	)
	switch {
	case errors.As(err, &validation):
		respondError(w, r, http.StatusBadRequest, validation.Reason, strings.Join(validation.Details, "; "))
	case errors.Is(err, geocode.ErrInvalidCoordinates):
		respondError(w, r, http.StatusBadRequest, "Invalid coordinates", err.Error())
	case errors.As(err, &guestLimit):
		respondError(w, r, http.StatusForbidden, guestLimit.Error(), "guest_limit")
	case errors.As(err, &notFound):
		respondError(w, r, http.StatusNotFound, notFound.Error(), "")
	case errors.As(err, &configErr):
		log.Error().Err(err).Msg("Provider misconfigured")
		respondError(w, r, http.StatusInternalServerError, "Service is not configured", "config_error")
	case errors.As(err, &providerEr):
		log.Error().Err(err).Str("provider", providerEr.Provider).Msg("Upstream provider failed")
		details := "upstream_error"
		if providerEr.Timeout {
			details = "upstream_timeout"
		}
		respondError(w, r, http.StatusBadGateway, "The advisory service is unavailable. Please try again.", details)
	case errors.Is(err, context.Canceled):
		log.Debug().Err(err).Msg("Client went away")
	default:
		log.Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
		respondError(w, r, http.StatusInternalServerError, "Internal server error", "")
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Debug().Err(err).Int("status", status).Msg("Failed to write response")
	}
}

func respondError(w http.ResponseWriter, r *http.Request, status int, message, details string) {
	body := map[string]string{"error": message}
	if details != "" {
		body["details"] = details
	}
	if id := chimw.GetReqID(r.Context()); id != "" {
		body["request_id"] = id
	}
	respondJSON(w, status, body)
}

// Package orchestrator answers one farmer question end to end: it screens
// and classifies the message, resolves conversational context, runs the
// router and persists the exchange.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kisaansahayak/sahayak/internal/classify"
	"github.com/kisaansahayak/sahayak/internal/guardrails"
	"github.com/kisaansahayak/sahayak/internal/guest"
	"github.com/kisaansahayak/sahayak/internal/metrics"
	"github.com/kisaansahayak/sahayak/internal/preprocess"
	"github.com/kisaansahayak/sahayak/internal/prompts"
	"github.com/kisaansahayak/sahayak/internal/router"
	"github.com/kisaansahayak/sahayak/pkg/contracts"
	"github.com/kisaansahayak/sahayak/pkg/middleware"
	"github.com/kisaansahayak/sahayak/pkg/models"
)

var tracer = otel.Tracer("github.com/kisaansahayak/sahayak/internal/orchestrator")

// ErrGuestLimit is returned when a guest has used up their questions.
type ErrGuestLimit struct {
	Limit int
}

func (e *ErrGuestLimit) Error() string {
	return fmt.Sprintf("Guest limit reached (%d). Please sign in to continue.", e.Limit)
}

// Service implements contracts.ChatService.
type Service struct {
	router     *router.Router
	screener   *guardrails.Screener
	store      contracts.ConversationStore
	guests     contracts.GuestCounter
	guestLimit int
}

// Option configures a Service.
type Option func(*Service)

// WithStore enables conversation persistence and context resolution for
// identified callers.
func WithStore(s contracts.ConversationStore) Option {
	return func(svc *Service) { svc.store = s }
}

// WithGuestCounter enables guest accounting with the given limit.
func WithGuestCounter(c contracts.GuestCounter, limit int) Option {
	return func(svc *Service) {
		svc.guests = c
		svc.guestLimit = limit
	}
}

// WithScreener replaces the default input screener.
func WithScreener(s *guardrails.Screener) Option {
	return func(svc *Service) { svc.screener = s }
}

// New creates the chat service around r.
func New(r *router.Router, opts ...Option) *Service {
	svc := &Service{router: r, screener: guardrails.New()}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

var _ contracts.ChatService = (*Service)(nil)

// Chat answers req for identity. A nil identity is a guest.
func (s *Service) Chat(ctx context.Context, identity *contracts.Identity, req *models.ChatRequest) (*models.ChatResult, error) {
	ctx, span := tracer.Start(ctx, "chat")
	defer span.End()
	start := time.Now()

	guestID := ""
	if identity == nil {
		guestID = middleware.GetGuestID(ctx)
	}
	used, err := s.checkGuest(ctx, identity, guestID)
	if err != nil {
		return nil, err
	}

	// ── Validate ──
	cleaned := preprocess.Clean(req.Message)
	if cleaned == "" {
		metrics.Rejections.WithLabelValues(string(guardrails.KindEmpty)).Inc()
		return nil, &guardrails.ValidationError{Reason: "Empty message", Kind: guardrails.KindEmpty}
	}
	sanitized, err := s.screener.Screen(cleaned)
	if err != nil {
		if ve, ok := err.(*guardrails.ValidationError); ok {
			metrics.Rejections.WithLabelValues(string(ve.Kind)).Inc()
		}
		log.Warn().Int("message_len", len(cleaned)).Err(err).Msg("Message rejected")
		return nil, err
	}

	// ── Classify and resolve context ──
	in := router.Input{
		Classification:   classify.Classify(cleaned),
		Elaborate:        req.Elaborate,
		EffectiveMessage: sanitized,
		PreviousAnswer:   strings.TrimSpace(req.PreviousAnswer),
	}
	conversationID := strings.TrimSpace(req.ConversationID)
	if identity != nil && conversationID != "" && in.Continuation() {
		s.resolveContext(ctx, identity.Subject, conversationID, &in)
	}

	effective := classify.Classify(in.EffectiveMessage)
	in.Params = prompts.Params{
		Language:   classify.ResponseLanguage(req.Language, effective.Language),
		Location:   strings.TrimSpace(req.Location),
		Complexity: effective.Complexity,
		Detail:     in.ElaborationRequested() || in.Classification.WantsDetail || effective.WantsDetail,
	}
	span.SetAttributes(
		attribute.String("language", string(in.Params.Language)),
		attribute.Bool("guest", identity == nil),
	)

	// ── Persist the user turn ──
	elaborating := s.router.Select(in) == models.PipelineElaborate
	if identity != nil && s.store != nil {
		if conversationID == "" {
			conv, err := s.store.CreateConversation(ctx, identity.Subject, models.DefaultConversationTitle, sanitized)
			if err != nil {
				return nil, fmt.Errorf("create conversation: %w", err)
			}
			conversationID = conv.ID
		}
		// Elaboration turns only store the expanded answer.
		if !elaborating {
			if _, err := s.store.SaveMessage(ctx, identity.Subject, conversationID, models.RoleUser, sanitized); err != nil {
				return nil, fmt.Errorf("save user message: %w", err)
			}
		}
	}

	// ── Route ──
	out, err := s.router.Route(ctx, in)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	result := &models.ChatResult{
		Reply:           out.Reply,
		ModeUsed:        out.Mode,
		Provider:        out.Provenance,
		ModelID:         out.ModelID,
		Pipeline:        out.Decision.Pipeline,
		Language:        in.Params.Language,
		IsAuthenticated: identity != nil,
	}

	if identity != nil {
		result.ConversationID = conversationID
		if s.store != nil {
			if _, err := s.store.SaveMessage(ctx, identity.Subject, conversationID, models.RoleAssistant, out.Reply); err != nil {
				log.Error().Err(err).Str("conversation_id", conversationID).Msg("Failed to save assistant reply")
			}
		}
	} else if s.guests != nil {
		n, err := s.guests.Increment(ctx, guestID)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to record guest question")
			n = used + 1
		}
		remaining := guest.Remaining(s.guestLimit, n)
		result.GuestRemaining = &remaining
		metrics.GuestQuestions.Inc()
	}

	log.Info().
		Str("pipeline", string(result.Pipeline)).
		Str("provenance", result.Provider).
		Str("language", string(result.Language)).
		Bool("authenticated", result.IsAuthenticated).
		Int("message_len", len(cleaned)).
		Dur("elapsed", time.Since(start)).
		Msg("Chat answered")
	return result, nil
}

// checkGuest enforces the guest limit before any provider call and returns
// the questions already used.
func (s *Service) checkGuest(ctx context.Context, identity *contracts.Identity, guestID string) (int, error) {
	if identity != nil || s.guests == nil {
		return 0, nil
	}
	used, err := s.guests.Count(ctx, guestID)
	if err != nil {
		return 0, fmt.Errorf("guest count: %w", err)
	}
	if used >= s.guestLimit {
		metrics.Rejections.WithLabelValues("guest_limit").Inc()
		return used, &ErrGuestLimit{Limit: s.guestLimit}
	}
	return used, nil
}

// resolveContext recovers the implicit subject of a continuation from the
// stored conversation. Missing turns leave the input unchanged.
func (s *Service) resolveContext(ctx context.Context, owner, conversationID string, in *router.Input) {
	if s.store == nil {
		return
	}
	lastUser, err := s.store.LastMessage(ctx, owner, conversationID, models.RoleUser)
	if err != nil {
		log.Debug().Err(err).Str("conversation_id", conversationID).Msg("No stored user turn")
	} else if lastUser != "" {
		in.EffectiveMessage = lastUser
	}

	if in.PreviousAnswer != "" {
		return
	}
	lastAssistant, err := s.store.LastMessage(ctx, owner, conversationID, models.RoleAssistant)
	if err != nil {
		log.Debug().Err(err).Str("conversation_id", conversationID).Msg("No stored assistant turn")
		return
	}
	in.PreviousAnswer = lastAssistant
}

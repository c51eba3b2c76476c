// Package server provides the public entry point for initializing the
// advisory service.
//
// This package exists in pkg/ (not internal/) so that another binary, such
// as a messaging bridge, can embed the same pipeline and handler tree.
//
// Usage:
//
//	srv, err := server.New(ctx, cfg)
//	defer srv.Close(ctx)
//	http.ListenAndServe(":8080", srv.Handler)
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/kisaansahayak/sahayak/internal/api"
	"github.com/kisaansahayak/sahayak/internal/api/handlers"
	"github.com/kisaansahayak/sahayak/internal/auth"
	"github.com/kisaansahayak/sahayak/internal/config"
	"github.com/kisaansahayak/sahayak/internal/geocode"
	"github.com/kisaansahayak/sahayak/internal/guardrails"
	"github.com/kisaansahayak/sahayak/internal/guest"
	"github.com/kisaansahayak/sahayak/internal/orchestrator"
	"github.com/kisaansahayak/sahayak/internal/provider"
	"github.com/kisaansahayak/sahayak/internal/router"
	"github.com/kisaansahayak/sahayak/internal/store"
	"github.com/kisaansahayak/sahayak/internal/telemetry"
	"github.com/kisaansahayak/sahayak/pkg/contracts"
)

// guestBackend is a guest counter that owns a connection.
type guestBackend interface {
	contracts.GuestCounter
	Ping(ctx context.Context) error
	Close() error
}

// Server holds the initialized advisory service.
type Server struct {
	// Handler is the HTTP handler with all routes and middleware.
	Handler http.Handler

	// Chat is the end-to-end question pipeline.
	Chat *orchestrator.Service

	// Store is the conversation store (Postgres or in-memory).
	Store store.Store

	Config *config.Config

	guests   guestBackend
	shutdown telemetry.ShutdownFunc
}

// New initializes all components from cfg and returns a ready Server.
func New(ctx context.Context, cfg *config.Config) (*Server, error) {
	shutdown, err := telemetry.Init(ctx, cfg.Telemetry, cfg.Version)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	dataStore, err := newStore(ctx, cfg)
	if err != nil {
		_ = shutdown(ctx)
		return nil, err
	}

	guests, err := newGuestCounter(ctx, cfg)
	if err != nil {
		_ = dataStore.Close()
		_ = shutdown(ctx)
		return nil, err
	}

	chat := NewChatService(cfg, dataStore, guests)

	chain := auth.NewProviderChain(
		auth.NewTokenProvider(cfg.Auth.TokenSecret),
		auth.NewAPIKeyProvider(cfg.Auth.APIKeys),
	)

	h := handlers.New(chat, dataStore, geocode.New(cfg.Geocode, cfg.Timeout), cfg.Version, cfg.Mode)
	h.Health["store"] = dataStore
	h.Health["guests"] = guests

	log.Info().
		Str("mode", string(cfg.Mode)).
		Strs("models", cfg.Gemini.Models()).
		Int("guest_limit", cfg.Guest.Limit).
		Dur("timeout", cfg.Timeout).
		Strs("auth_providers", chain.ListProviders()).
		Msg("Advisory pipeline initialized")

	return &Server{
		Handler:  api.NewRouter(cfg, h, chain),
		Chat:     chat,
		Store:    dataStore,
		Config:   cfg,
		guests:   guests,
		shutdown: shutdown,
	}, nil
}

// NewChatService builds the question pipeline without the HTTP layer.
// Used by the server and by the one-shot CLI.
func NewChatService(cfg *config.Config, s store.ConversationStore, guests contracts.GuestCounter) *orchestrator.Service {
	specialist := provider.NewDhenu(cfg.Dhenu, provider.WithTimeout(cfg.Timeout))
	general := provider.NewGemini(cfg.Gemini, provider.WithTimeout(cfg.Timeout))
	r := router.New(cfg.Mode, specialist, general)

	screener := guardrails.New()
	screener.HighSensitivity = cfg.Guardrails.HighSensitivity

	opts := []orchestrator.Option{orchestrator.WithScreener(screener)}
	if s != nil {
		opts = append(opts, orchestrator.WithStore(s))
	}
	if guests != nil {
		opts = append(opts, orchestrator.WithGuestCounter(guests, cfg.Guest.Limit))
	}
	return orchestrator.New(r, opts...)
}

// Close releases backends and flushes telemetry.
func (s *Server) Close(ctx context.Context) error {
	return errors.Join(
		s.Store.Close(),
		s.guests.Close(),
		s.shutdown(ctx),
	)
}

func newStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	if cfg.Database.URL != "" {
		pg, err := store.NewPostgresStore(ctx, cfg.Database.URL, cfg.Database.MaxConnections)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
		log.Info().Msg("PostgreSQL conversation store initialized")
		return pg, nil
	}

	log.Info().Str("data_dir", cfg.DataDir).Msg("In-memory conversation store initialized")
	return store.NewMemoryStore(cfg.DataDir), nil
}

func newGuestCounter(ctx context.Context, cfg *config.Config) (guestBackend, error) {
	if cfg.Redis.Addr != "" {
		rc, err := guest.NewRedisCounter(ctx, cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("init redis guest counter: %w", err)
		}
		log.Info().Str("addr", cfg.Redis.Addr).Msg("Redis guest counter initialized")
		return rc, nil
	}
	log.Info().Msg("In-memory guest counter initialized")
	return guest.NewMemoryCounter(), nil
}

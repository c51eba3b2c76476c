package middleware

import (
	"encoding/json"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/kisaansahayak/sahayak/pkg/contracts"
	pkgmw "github.com/kisaansahayak/sahayak/pkg/middleware"
)

// GuestCookie carries the identifier of an unauthenticated caller.
const GuestCookie = "guest_id"

const guestCookieMaxAge = 30 * 24 * 60 * 60

// AuthMiddleware authenticates requests with the provider chain and stores
// the resulting Identity in context. Callers without credentials are
// guests: they get a stable guest_id cookie so their question count
// survives across requests.
type AuthMiddleware struct {
	chain contracts.AuthProviderChain
}

// NewAuthMiddleware creates the auth middleware.
func NewAuthMiddleware(chain contracts.AuthProviderChain) *AuthMiddleware {
	return &AuthMiddleware{chain: chain}
}

// Handler returns the HTTP handler middleware that authenticates requests.
func (am *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isAuthPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		identity, err := am.chain.Authenticate(r.Context(), r)
		if err != nil {
			log.Debug().Err(err).Str("path", r.URL.Path).Msg("Authentication failed")
			w.Header().Set("WWW-Authenticate", `Bearer realm="sahayak"`)
			writeError(w, r, http.StatusUnauthorized, "Invalid or expired credentials", "authentication_failed")
			return
		}

		ctx := r.Context()
		if identity != nil {
			ctx = pkgmw.SetIdentity(ctx, identity)
		} else {
			ctx = pkgmw.SetGuestID(ctx, guestID(w, r))
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// guestID returns the caller's guest cookie, issuing a fresh one when
// absent or malformed.
func guestID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(GuestCookie); err == nil {
		if _, err := uuid.Parse(c.Value); err == nil {
			return c.Value
		}
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     GuestCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   guestCookieMaxAge,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

// isAuthPublicPath returns true for paths that should skip authentication.
func isAuthPublicPath(path string) bool {
	switch path {
	case "/health", "/version", "/metrics":
		return true
	}
	return false
}

// writeError writes the API error envelope.
func writeError(w http.ResponseWriter, r *http.Request, status int, msg, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body := map[string]string{"error": msg}
	if details != "" {
		body["details"] = details
	}
	if id := chimw.GetReqID(r.Context()); id != "" {
		body["request_id"] = id
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Debug().Err(err).Int("status", status).Msg("Failed to write error response")
	}
}

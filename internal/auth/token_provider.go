package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kisaansahayak/sahayak/pkg/contracts"
)

// TokenProvider validates HMAC-signed user tokens issued by the sign-in
// front end.
//
// Token format: base64(JSON payload) + "." + base64(HMAC-SHA256 signature)
// Payload: {"sub": "uid-123", "email": "a@b.in", "name": "Asha", "exp": 1234567890}
type TokenProvider struct {
	secret []byte
	now    func() time.Time
}

// tokenPayload is the signed claim set.
type tokenPayload struct {
	Subject string `json:"sub"`
	Email   string `json:"email,omitempty"`
	Name    string `json:"name,omitempty"`
	Exp     int64  `json:"exp"` // Unix timestamp
}

// Token validation errors.
var (
	ErrMalformedToken = errors.New("malformed token")
	ErrTokenExpired   = errors.New("token expired")
	ErrBadSignature   = errors.New("signature mismatch")
)

// NewTokenProvider creates a provider signing with secret. An empty secret
// disables it.
func NewTokenProvider(secret string) *TokenProvider {
	return &TokenProvider{secret: []byte(secret), now: time.Now}
}

func (p *TokenProvider) Name() string  { return "token" }
func (p *TokenProvider) Enabled() bool { return len(p.secret) > 0 }

// Authenticate validates the bearer token.
// Returns (nil, nil) if no bearer token is present.
// Returns (nil, error) if the token is present but invalid.
func (p *TokenProvider) Authenticate(_ context.Context, r *http.Request) (*contracts.Identity, error) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return nil, nil
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return nil, nil
	}

	payload, err := p.validateToken(token)
	if err != nil {
		return nil, fmt.Errorf("invalid user token: %w", err)
	}

	id := &contracts.Identity{
		Subject:     payload.Subject,
		Email:       payload.Email,
		DisplayName: payload.Name,
		Provider:    "token",
	}
	if payload.Exp > 0 {
		id.ExpiresAt = time.Unix(payload.Exp, 0)
	}
	return id, nil
}

func (p *TokenProvider) validateToken(token string) (*tokenPayload, error) {
	payloadB64, sigB64, ok := strings.Cut(token, ".")
	if !ok || payloadB64 == "" || sigB64 == "" {
		return nil, ErrMalformedToken
	}

	sig, err := base64.RawURLEncoding.DecodeString(sigB64)
	if err != nil {
		return nil, fmt.Errorf("%w: signature encoding", ErrMalformedToken)
	}
	if !hmac.Equal(sig, sign(p.secret, payloadB64)) {
		return nil, ErrBadSignature
	}

	payloadBytes, err := base64.RawURLEncoding.DecodeString(payloadB64)
	if err != nil {
		return nil, fmt.Errorf("%w: payload encoding", ErrMalformedToken)
	}
	var payload tokenPayload
	if err := json.Unmarshal(payloadBytes, &payload); err != nil {
		return nil, fmt.Errorf("%w: payload JSON", ErrMalformedToken)
	}

	if payload.Exp > 0 && p.now().Unix() > payload.Exp {
		return nil, ErrTokenExpired
	}
	if payload.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrMalformedToken)
	}
	return &payload, nil
}

func sign(secret []byte, payloadB64 string) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(payloadB64))
	return mac.Sum(nil)
}

// IssueToken creates a signed user token. Used by the CLI and tests.
func IssueToken(secret []byte, subject, email, name string, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", fmt.Errorf("%w: missing subject", ErrMalformedToken)
	}
	payload := tokenPayload{
		Subject: subject,
		Email:   email,
		Name:    name,
		Exp:     time.Now().Add(ttl).Unix(),
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	payloadB64 := base64.RawURLEncoding.EncodeToString(payloadBytes)
	return payloadB64 + "." + base64.RawURLEncoding.EncodeToString(sign(secret, payloadB64)), nil
}

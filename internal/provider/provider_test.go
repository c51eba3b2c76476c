package provider_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kisaansahayak/sahayak/internal/config"
	"github.com/kisaansahayak/sahayak/internal/provider"
	"github.com/kisaansahayak/sahayak/pkg/models"
)

// ── Fake general provider ───────────────────────────────────

type fakeGemini struct {
	mu       sync.Mutex
	calls    []string
	bodies   []map[string]any
	statuses map[string]int
	replies  map[string]string
	delay    map[string]time.Duration
}

func (f *fakeGemini) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// /models/{model}:generateContent
		model := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/models/"), ":generateContent")
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)

		f.mu.Lock()
		f.calls = append(f.calls, model)
		f.bodies = append(f.bodies, body)
		status := f.statuses[model]
		reply := f.replies[model]
		delay := f.delay[model]
		f.mu.Unlock()

		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))

		if delay > 0 {
			time.Sleep(delay)
		}
		if status != 0 && status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":"nope"}`))
			return
		}
		resp := map[string]any{
			"candidates": []any{
				map[string]any{"content": map[string]any{"parts": []any{
					map[string]any{"text": reply},
					map[string]any{"text": "tail"},
				}}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func (f *fakeGemini) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func newGemini(t *testing.T, f *fakeGemini, chain []string, opts ...provider.Option) *provider.Gemini {
	t.Helper()
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	cfg := config.GeminiConfig{
		APIKey:         "test-key",
		Endpoint:       srv.URL,
		Model:          chain[0],
		FallbackModels: chain[1:],
	}
	return provider.NewGemini(cfg, opts...)
}

func TestGemini_FallbackOrder(t *testing.T) {
	f := &fakeGemini{
		statuses: map[string]int{"A": http.StatusServiceUnavailable},
		replies:  map[string]string{"B": "hello from B"},
	}
	g := newGemini(t, f, []string{"A", "B", "C"})

	resp, attempts, err := g.GenerateTrace(context.Background(), "p", models.GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "hello from B\ntail", resp.Text)
	assert.Equal(t, "B", resp.ModelID)
	assert.Equal(t, provider.GeneralID, resp.ProviderID)
	assert.Equal(t, []string{"A", "B"}, f.Calls())
	require.Len(t, attempts, 2)
	assert.Equal(t, provider.RetryNext, attempts[0].Outcome)
	assert.Equal(t, provider.Success, attempts[1].Outcome)
}

func TestGemini_ChainIncludesLastResort(t *testing.T) {
	g := provider.NewGemini(config.GeminiConfig{Model: "primary", FallbackModels: []string{"x", "primary"}})
	assert.Equal(t, []string{"primary", "x", "gemini-2.5-flash", "gemini-2.5-flash-lite"}, g.Models())
}

func TestGemini_RateLimitRetries(t *testing.T) {
	f := &fakeGemini{
		statuses: map[string]int{"A": http.StatusTooManyRequests},
		replies:  map[string]string{"B": "ok"},
	}
	g := newGemini(t, f, []string{"A", "B"})
	_, err := g.Generate(context.Background(), "p", models.GenerateOptions{})
	require.NoError(t, err)
}

func TestGemini_NonRetryableAborts(t *testing.T) {
	f := &fakeGemini{statuses: map[string]int{"A": http.StatusBadRequest}}
	g := newGemini(t, f, []string{"A", "B", "C"})

	_, err := g.Generate(context.Background(), "p", models.GenerateOptions{})
	require.Error(t, err)
	var pe *provider.ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, http.StatusBadRequest, pe.Status)
	assert.Equal(t, "A", pe.Model)
	assert.False(t, pe.Retryable)
	assert.Equal(t, []string{"A"}, f.Calls())
}

func TestGemini_NotFoundHint(t *testing.T) {
	f := &fakeGemini{statuses: map[string]int{"A": http.StatusNotFound}}
	g := newGemini(t, f, []string{"A", "B"})

	_, err := g.Generate(context.Background(), "p", models.GenerateOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ListModels")
	assert.Equal(t, []string{"A"}, f.Calls())
}

func TestGemini_ExhaustedReturnsLastError(t *testing.T) {
	f := &fakeGemini{statuses: map[string]int{
		"A":                     http.StatusServiceUnavailable,
		"B":                     http.StatusTooManyRequests,
		"gemini-2.5-flash":      http.StatusServiceUnavailable,
		"gemini-2.5-flash-lite": http.StatusTooManyRequests,
	}}
	g := newGemini(t, f, []string{"A", "B"})

	_, err := g.Generate(context.Background(), "p", models.GenerateOptions{})
	require.Error(t, err)
	var pe *provider.ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "gemini-2.5-flash-lite", pe.Model)
	assert.Equal(t, http.StatusTooManyRequests, pe.Status)
	assert.Len(t, f.Calls(), 4)
}

func TestGemini_TimeoutRetriesNext(t *testing.T) {
	f := &fakeGemini{
		delay:   map[string]time.Duration{"A": 300 * time.Millisecond},
		replies: map[string]string{"B": "fast"},
	}
	g := newGemini(t, f, []string{"A", "B"}, provider.WithTimeout(50*time.Millisecond))

	resp, attempts, err := g.GenerateTrace(context.Background(), "p", models.GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "B", resp.ModelID)
	var pe *provider.ProviderError
	require.True(t, errors.As(attempts[0].Err, &pe))
	assert.True(t, pe.Timeout)
}

func TestGemini_MissingKey(t *testing.T) {
	g := provider.NewGemini(config.GeminiConfig{Model: "A"})
	_, err := g.Generate(context.Background(), "p", models.GenerateOptions{})
	var ce *provider.ConfigError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, provider.GeneralID, ce.Provider)
}

func TestGemini_RequestShape(t *testing.T) {
	f := &fakeGemini{replies: map[string]string{"A": "x"}}
	g := newGemini(t, f, []string{"A"})

	_, err := g.Generate(context.Background(), "the prompt", models.GenerateOptions{MaxOutputTokens: 200})
	require.NoError(t, err)

	body := f.bodies[0]
	cfg := body["generationConfig"].(map[string]any)
	assert.Equal(t, 0.5, cfg["temperature"])
	assert.Equal(t, 0.9, cfg["topP"])
	assert.Equal(t, float64(200), cfg["maxOutputTokens"])
	contents := body["contents"].([]any)
	parts := contents[0].(map[string]any)["parts"].([]any)
	assert.Equal(t, "the prompt", parts[0].(map[string]any)["text"])
}

func TestGemini_EmptyCandidatesAborts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()
	g := provider.NewGemini(config.GeminiConfig{APIKey: "k", Endpoint: srv.URL, Model: "A"})

	_, attempts, err := g.GenerateTrace(context.Background(), "p", models.GenerateOptions{})
	require.Error(t, err)
	assert.Len(t, attempts, 1)
	assert.Contains(t, err.Error(), "empty response")
}

func TestDecide(t *testing.T) {
	assert.Equal(t, provider.Success, provider.Decide(nil))
	assert.Equal(t, provider.RetryNext, provider.Decide(&provider.ProviderError{Retryable: true}))
	assert.Equal(t, provider.Abort, provider.Decide(&provider.ProviderError{Status: 400}))
	assert.Equal(t, provider.Abort, provider.Decide(&provider.ConfigError{}))
	assert.Equal(t, provider.Abort, provider.Decide(errors.New("boom")))
}

// ── Specialist ──────────────────────────────────────────────

func newDhenu(t *testing.T, h http.HandlerFunc, opts ...provider.Option) *provider.Dhenu {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return provider.NewDhenu(config.DhenuConfig{URL: srv.URL, APIKey: "dk"}, opts...)
}

func TestDhenu_AnswerKeys(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"answer", `{"answer":" use neem "}`, "use neem"},
		{"response", `{"response":"r"}`, "r"},
		{"result", `{"answer":"","result":"res"}`, "res"},
		{"data.answer", `{"data":{"answer":"da"}}`, "da"},
		{"data.response", `{"data":{"response":"dr"}}`, "dr"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newDhenu(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "Bearer dk", r.Header.Get("Authorization"))
				var req map[string]string
				_ = json.NewDecoder(r.Body).Decode(&req)
				assert.Equal(t, "aphids on mustard", req["query"])
				_, _ = w.Write([]byte(tt.body))
			})
			resp, err := d.Ask(context.Background(), "aphids on mustard")
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.Text)
			assert.Equal(t, provider.SpecialistID, resp.ProviderID)
		})
	}
}

func TestDhenu_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"unavailable is not retried", http.StatusServiceUnavailable, `busy`},
		{"bad request", http.StatusBadRequest, `bad`},
		{"empty", http.StatusOK, `{}`},
		{"non-string answer", http.StatusOK, `{"answer":{"text":"x"}}`},
		{"not json", http.StatusOK, `<html>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			d := newDhenu(t, func(w http.ResponseWriter, r *http.Request) {
				calls++
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := d.Ask(context.Background(), "q")
			require.Error(t, err)
			assert.False(t, provider.IsRetryable(err))
			assert.Equal(t, 1, calls)
		})
	}
}

func TestDhenu_OversizedBody(t *testing.T) {
	d := newDhenu(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"answer":"` + strings.Repeat("x", provider.MaxResponseBodySize) + `"}`))
	})

	_, err := d.Ask(context.Background(), "q")
	var pe *provider.ProviderError
	require.True(t, errors.As(err, &pe), "Ask() error = %v, want ProviderError", err)
	assert.Equal(t, "decode response", pe.Message)
}

func TestDhenu_Timeout(t *testing.T) {
	d := newDhenu(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`{"answer":"late"}`))
	}, provider.WithTimeout(30*time.Millisecond))

	_, err := d.Ask(context.Background(), "q")
	var pe *provider.ProviderError
	require.True(t, errors.As(err, &pe))
	assert.True(t, pe.Timeout)
	assert.False(t, pe.Retryable)
}

func TestDhenu_MissingKey(t *testing.T) {
	d := provider.NewDhenu(config.DhenuConfig{URL: "http://unused"})
	_, err := d.Ask(context.Background(), "q")
	var ce *provider.ConfigError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "DHENU_API_KEY", ce.Missing)
}

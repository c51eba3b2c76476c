package provider

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kisaansahayak/sahayak/internal/config"
	"github.com/kisaansahayak/sahayak/internal/metrics"
	"github.com/kisaansahayak/sahayak/pkg/models"
)

// Dhenu is the agriculture specialist adapter. It calls a single endpoint
// and never retries; every failure is non-retryable at this layer.
type Dhenu struct {
	url    string
	apiKey string
	transport
}

// NewDhenu creates the specialist adapter.
func NewDhenu(cfg config.DhenuConfig, opts ...Option) *Dhenu {
	return &Dhenu{
		url:       cfg.URL,
		apiKey:    cfg.APIKey,
		transport: newTransport(opts),
	}
}

type dhenuRequest struct {
	Query string `json:"query"`
}

// answerKeys are checked in order; the first non-empty value wins.
var answerKeys = [][]string{
	{"answer"},
	{"response"},
	{"result"},
	{"data", "answer"},
	{"data", "response"},
}

// Ask sends query to the specialist and returns its answer.
func (d *Dhenu) Ask(ctx context.Context, query string) (*models.ProviderResponse, error) {
	if d.apiKey == "" {
		metrics.ProviderCalls.WithLabelValues(SpecialistID, "", "config_error").Inc()
		return nil, &ConfigError{Provider: SpecialistID, Missing: "DHENU_API_KEY"}
	}

	start := time.Now()
	header := http.Header{}
	header.Set("Authorization", "Bearer "+d.apiKey)

	var payload map[string]any
	err := d.postJSON(ctx, SpecialistID, "", d.url, header, dhenuRequest{Query: query}, &payload)
	if err == nil {
		text, ok := extractAnswer(payload)
		if !ok {
			err = &ProviderError{Provider: SpecialistID, Message: "empty response"}
		} else {
			metrics.ProviderCalls.WithLabelValues(SpecialistID, "", "success").Inc()
			log.Debug().
				Str("provider", SpecialistID).
				Int("query_len", len(query)).
				Int("answer_len", len(text)).
				Dur("latency", time.Since(start)).
				Msg("Specialist answered")
			return &models.ProviderResponse{Text: text, ProviderID: SpecialistID}, nil
		}
	}

	if pe, ok := err.(*ProviderError); ok {
		pe.Retryable = false
	}
	metrics.ProviderCalls.WithLabelValues(SpecialistID, "", "abort").Inc()
	log.Warn().
		Str("provider", SpecialistID).
		Dur("latency", time.Since(start)).
		Err(err).
		Msg("Specialist call failed")
	return nil, err
}

// extractAnswer walks answerKeys. The first present, non-empty value must
// be a string; anything else counts as an empty payload.
func extractAnswer(payload map[string]any) (string, bool) {
	for _, path := range answerKeys {
		v, ok := lookup(payload, path)
		if !ok || isEmpty(v) {
			continue
		}
		s, isString := v.(string)
		if !isString {
			return "", false
		}
		s = strings.TrimSpace(s)
		return s, s != ""
	}
	return "", false
}

func lookup(m map[string]any, path []string) (any, bool) {
	var cur any = m
	for _, key := range path {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = obj[key]; !ok {
			return nil, false
		}
	}
	return cur, true
}

func isEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case bool:
		return !x
	case float64:
		return x == 0
	}
	return false
}

package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/kisaansahayak/sahayak/internal/metrics"
)

var tracer = otel.Tracer("github.com/kisaansahayak/sahayak/internal/provider")

// DefaultTimeout bounds every outbound call.
const DefaultTimeout = 18 * time.Second

// Option configures an adapter.
type Option func(*transport)

// WithHTTPClient replaces the HTTP client (tests, proxies).
func WithHTTPClient(c *http.Client) Option {
	return func(t *transport) { t.client = c }
}

// WithTimeout overrides the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(t *transport) {
		if d > 0 {
			t.timeout = d
		}
	}
}

type transport struct {
	client  *http.Client
	timeout time.Duration
}

func newTransport(opts []Option) transport {
	t := transport{
		client:  &http.Client{},
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(&t)
	}
	return t
}

// postJSON sends payload to url under its own deadline and decodes a 2xx
// body into out. Every failure is returned as a *ProviderError; only 429,
// 503 and per-call timeouts are marked retryable.
func (t transport) postJSON(ctx context.Context, provider, model, url string, header http.Header, payload, out any) error {
	ctx, span := tracer.Start(ctx, provider+".call")
	defer span.End()
	span.SetAttributes(
		attribute.String("provider", provider),
		attribute.String("model", model),
	)

	start := time.Now()
	err := t.do(ctx, provider, model, url, header, payload, out)
	metrics.ProviderLatency.WithLabelValues(provider).Observe(time.Since(start).Seconds())

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (t transport) do(parent context.Context, provider, model, url string, header http.Header, payload, out any) error {
	ctx, cancel := context.WithTimeout(parent, t.timeout)
	defer cancel()

	body, err := json.Marshal(payload)
	if err != nil {
		return &ProviderError{Provider: provider, Model: model, Message: "marshal request", Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return &ProviderError{Provider: provider, Model: model, Message: "create request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := t.client.Do(req)
	if err != nil {
		pe := &ProviderError{Provider: provider, Model: model, Message: "request failed", Err: err}
		switch {
		case parent.Err() != nil:
			pe.Err = parent.Err()
		case errors.Is(err, context.DeadlineExceeded) || isNetTimeout(err):
			pe.Timeout = true
			pe.Retryable = true
			pe.Message = fmt.Sprintf("timed out after %s", t.timeout)
		}
		return pe
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := readLimitedBody(resp.Body, MaxErrorBodySize)
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &ProviderError{
			Provider:  provider,
			Model:     model,
			Status:    resp.StatusCode,
			Retryable: retryableStatus(resp.StatusCode),
			Message:   msg,
		}
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, MaxResponseBodySize)).Decode(out); err != nil {
		pe := &ProviderError{Provider: provider, Model: model, Message: "decode response", Err: err}
		if ctx.Err() != nil && parent.Err() == nil {
			pe.Timeout = true
			pe.Retryable = true
		}
		return pe
	}
	return nil
}

func isNetTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// Package provider implements the two outbound model adapters: the
// agriculture specialist (Dhenu) and the general-purpose model (Gemini)
// with its ordered model fallback chain.
package provider

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Provider identifiers used in errors, logs and metrics.
const (
	SpecialistID = "dhenu"
	GeneralID    = "gemini"
)

// MaxErrorBodySize caps how much of a failed response body is read into an
// error message.
const MaxErrorBodySize = 4096

// MaxResponseBodySize caps a successful response body. Longer bodies fail
// to decode.
const MaxResponseBodySize = 1 << 20

// ConfigError means a required credential or setting is missing. It is
// never retried.
type ConfigError struct {
	Provider string
	Missing  string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: server missing %s", e.Provider, e.Missing)
}

// ProviderError is a failed provider call. Status is the HTTP status, or 0
// for transport failures, timeouts and unusable payloads.
type ProviderError struct {
	Provider  string
	Model     string
	Status    int
	Retryable bool
	Timeout   bool
	Message   string
	Err       error
}

func (e *ProviderError) Error() string {
	var b strings.Builder
	b.WriteString(e.Provider)
	if e.Model != "" {
		b.WriteString(" (" + e.Model + ")")
	}
	if e.Status != 0 {
		fmt.Fprintf(&b, ": status %d", e.Status)
	}
	if e.Message != "" {
		b.WriteString(": " + e.Message)
	}
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

func (e *ProviderError) Unwrap() error { return e.Err }

// IsRetryable reports whether err is a provider failure the general
// adapter may retry against its next model.
func IsRetryable(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Retryable
}

// retryableStatus reports transient unavailability or rate limiting.
func retryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable
}

// readLimitedBody reads at most limit bytes from r.
func readLimitedBody(r io.Reader, limit int64) string {
	b, _ := io.ReadAll(io.LimitReader(r, limit))
	return strings.TrimSpace(string(b))
}

// Package geocode turns browser coordinates into a "city, state, country"
// line for the prompt location.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kisaansahayak/sahayak/internal/config"
	"github.com/kisaansahayak/sahayak/internal/provider"
)

var tracer = otel.Tracer("github.com/kisaansahayak/sahayak/internal/geocode")

// ProviderID names the upstream in errors.
const ProviderID = "nominatim"

// UnknownLocation is returned when the upstream knows no place names.
const UnknownLocation = "Unknown location"

// ErrInvalidCoordinates is returned for out-of-range coordinates.
var ErrInvalidCoordinates = errors.New("invalid coordinates")

// Result is a resolved location.
type Result struct {
	Location string  `json:"location"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
}

// Client calls a Nominatim-compatible reverse endpoint.
type Client struct {
	endpoint  string
	userAgent string
	client    *http.Client
}

// New creates a client. timeout bounds each lookup.
func New(cfg config.GeocodeConfig, timeout time.Duration) *Client {
	return &Client{
		endpoint:  cfg.URL,
		userAgent: cfg.UserAgent,
		client:    &http.Client{Timeout: timeout},
	}
}

// ParseCoordinates parses and range-checks query parameters.
func ParseCoordinates(latRaw, lonRaw string) (float64, float64, error) {
	lat, err := strconv.ParseFloat(strings.TrimSpace(latRaw), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: lat %q", ErrInvalidCoordinates, latRaw)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(lonRaw), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: lon %q", ErrInvalidCoordinates, lonRaw)
	}
	if err := validate(lat, lon); err != nil {
		return 0, 0, err
	}
	return lat, lon, nil
}

func validate(lat, lon float64) error {
	if lat < -90 || lat > 90 {
		return fmt.Errorf("%w: lat %v out of range", ErrInvalidCoordinates, lat)
	}
	if lon < -180 || lon > 180 {
		return fmt.Errorf("%w: lon %v out of range", ErrInvalidCoordinates, lon)
	}
	return nil
}

type reverseResponse struct {
	Address map[string]any `json:"address"`
}

// Reverse resolves lat/lon. Upstream failures are *provider.ProviderError.
func (c *Client) Reverse(ctx context.Context, lat, lon float64) (*Result, error) {
	if err := validate(lat, lon); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "geocode.reverse")
	defer span.End()
	span.SetAttributes(attribute.Float64("lat", lat), attribute.Float64("lon", lon))

	q := url.Values{}
	q.Set("format", "jsonv2")
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("addressdetails", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("geocode request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		span.RecordError(err)
		return nil, &provider.ProviderError{Provider: ProviderID, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, provider.MaxErrorBodySize))
		log.Warn().
			Int("status", resp.StatusCode).
			Dur("latency", time.Since(start)).
			Msg("Reverse geocode failed")
		return nil, &provider.ProviderError{
			Provider: ProviderID,
			Status:   resp.StatusCode,
			Message:  "Reverse geocode failed: " + strings.TrimSpace(string(body)),
		}
	}

	var data reverseResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, &provider.ProviderError{Provider: ProviderID, Message: "decode response", Err: err}
	}

	log.Debug().Dur("latency", time.Since(start)).Msg("Reverse geocode resolved")
	addr := make(map[string]string, len(data.Address))
	for k, v := range data.Address {
		if s, ok := v.(string); ok {
			addr[k] = strings.TrimSpace(s)
		}
	}
	return &Result{Location: FormatAddress(addr), Lat: lat, Lon: lon}, nil
}

// FormatAddress joins the most specific settlement name with state and
// country.
func FormatAddress(addr map[string]string) string {
	city := firstNonEmpty(addr["city"], addr["town"], addr["village"], addr["county"])
	var parts []string
	for _, p := range []string{city, addr["state"], addr["country"]} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return UnknownLocation
	}
	return strings.Join(parts, ", ")
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// Package geocode provides reverse geocoding via Nominatim (primary) and
// the Google Geocoding API (fallback).
package geocode

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/loveofmn/mapkit/internal/resilience"
)

// Client converts a coordinate to a display address.
type Client interface {
	// ReverseGeocode resolves (lat, lng) to an address. A nil error with
	// Matched=false means no provider had an answer; that is not a failure.
	ReverseGeocode(ctx context.Context, lat, lng float64) (*Result, error)
}

// Result holds the reverse geocoding output for a coordinate.
type Result struct {
	Address string `json:"address"`
	Source  string `json:"source"` // "nominatim" or "google"
	Matched bool   `json:"matched"`
}

// Option configures the geocoder.
type Option func(*geocoder)

// WithBaseURL overrides the Nominatim endpoint.
func WithBaseURL(url string) Option {
	return func(g *geocoder) {
		g.baseURL = url
	}
}

// WithUserAgent sets the User-Agent header. Nominatim's usage policy
// requires an identifying agent.
func WithUserAgent(ua string) Option {
	return func(g *geocoder) {
		g.userAgent = ua
	}
}

// WithGoogleAPIKey enables the Google Geocoding API as a fallback.
func WithGoogleAPIKey(key string) Option {
	return func(g *geocoder) {
		g.googleKey = key
	}
}

// WithHTTPClient sets a custom HTTP client for all provider requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(g *geocoder) {
		g.httpClient = hc
	}
}

// WithRateLimit sets the requests-per-second limit for Nominatim calls.
func WithRateLimit(rps float64) Option {
	return func(g *geocoder) {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithRetry overrides the retry tuning for provider calls.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(g *geocoder) {
		g.retry = cfg
	}
}

type geocoder struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	googleKey  string
	limiter    *rate.Limiter
	retry      resilience.RetryConfig
}

// NewClient creates a reverse geocoding Client with the given options.
func NewClient(opts ...Option) Client {
	g := &geocoder{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    nominatimDefaultURL,
		userAgent:  "mapkit/1.0",
		limiter:    rate.NewLimiter(1, 1), // Nominatim policy: 1 req/s
		retry:      resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// ReverseGeocode tries Nominatim first, then Google if configured. Any
// provider error on the primary degrades to the fallback; with no fallback
// the error surfaces so the caller can log it.
func (g *geocoder) ReverseGeocode(ctx context.Context, lat, lng float64) (*Result, error) {
	result, nomErr := resilience.DoVal(ctx, g.retry, func(ctx context.Context) (*Result, error) {
		return g.reverseNominatim(ctx, lat, lng)
	})
	if nomErr == nil && result.Matched {
		return result, nil
	}

	if g.googleKey != "" {
		googleResult, googleErr := resilience.DoVal(ctx, g.retry, func(ctx context.Context) (*Result, error) {
			return g.reverseGoogle(ctx, lat, lng)
		})
		if googleErr == nil && googleResult.Matched {
			return googleResult, nil
		}
	}

	if nomErr != nil {
		return nil, nomErr
	}

	// No match from any provider — not an error, just unmatched.
	return &Result{Matched: false}, nil
}

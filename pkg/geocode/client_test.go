package geocode

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReverseGeocode_NominatimSucceeds_NoGoogleCall(t *testing.T) {
	var googleCalled atomic.Int32

	nomSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/reverse", r.URL.Path)
		assert.Equal(t, "mapkit-test/1.0", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"display_name": "123 Main St, Minneapolis, Hennepin County, Minnesota, USA"}`)
	}))
	defer nomSrv.Close()

	googleSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		googleCalled.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"status":"OK","results":[{"formatted_address":"google"}]}`)
	}))
	defer googleSrv.Close()

	g := &geocoder{
		httpClient: newRewriteClient(map[string]string{googleGeocodeURL: googleSrv.URL}),
		baseURL:    nomSrv.URL,
		userAgent:  "mapkit-test/1.0",
		googleKey:  "test-key",
		limiter:    newTestLimiter(),
		retry:      noRetry(),
	}

	result, err := g.ReverseGeocode(context.Background(), 44.9778, -93.2650)
	require.NoError(t, err)
	assert.True(t, result.Matched)
	assert.Equal(t, "nominatim", result.Source)
	assert.Contains(t, result.Address, "Minneapolis")
	assert.Equal(t, int32(0), googleCalled.Load(), "Google should not be called when Nominatim matches")
}

func TestReverseGeocode_NominatimNoMatch_GoogleFallback(t *testing.T) {
	nomSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"error": "Unable to geocode"}`)
	}))
	defer nomSrv.Close()

	googleSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"status": "OK",
			"results": [{"formatted_address": "123 Main St, Minneapolis, MN 55401, USA"}]
		}`)
	}))
	defer googleSrv.Close()

	g := &geocoder{
		httpClient: newRewriteClient(map[string]string{googleGeocodeURL: googleSrv.URL}),
		baseURL:    nomSrv.URL,
		userAgent:  "mapkit-test/1.0",
		googleKey:  "test-key",
		limiter:    newTestLimiter(),
		retry:      noRetry(),
	}

	result, err := g.ReverseGeocode(context.Background(), 44.9778, -93.2650)
	require.NoError(t, err)
	assert.True(t, result.Matched)
	assert.Equal(t, "google", result.Source)
	assert.Equal(t, "123 Main St, Minneapolis, MN 55401, USA", result.Address)
}

func TestReverseGeocode_BothUnmatched(t *testing.T) {
	nomSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"error": "Unable to geocode"}`)
	}))
	defer nomSrv.Close()

	googleSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"status": "ZERO_RESULTS", "results": []}`)
	}))
	defer googleSrv.Close()

	g := &geocoder{
		httpClient: newRewriteClient(map[string]string{googleGeocodeURL: googleSrv.URL}),
		baseURL:    nomSrv.URL,
		userAgent:  "mapkit-test/1.0",
		googleKey:  "test-key",
		limiter:    newTestLimiter(),
		retry:      noRetry(),
	}

	result, err := g.ReverseGeocode(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.False(t, result.Matched)
}

func TestReverseGeocode_NominatimDown_NoFallback(t *testing.T) {
	nomSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer nomSrv.Close()

	g := &geocoder{
		httpClient: &http.Client{},
		baseURL:    nomSrv.URL,
		userAgent:  "mapkit-test/1.0",
		limiter:    newTestLimiter(),
		retry:      noRetry(),
		// No googleKey set.
	}

	_, err := g.ReverseGeocode(context.Background(), 44.9778, -93.2650)
	require.Error(t, err)
}

func TestReverseGeocode_NominatimDown_GoogleRescues(t *testing.T) {
	nomSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer nomSrv.Close()

	googleSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"status":"OK","results":[{"formatted_address":"Fallback Ave"}]}`)
	}))
	defer googleSrv.Close()

	g := &geocoder{
		httpClient: newRewriteClient(map[string]string{googleGeocodeURL: googleSrv.URL}),
		baseURL:    nomSrv.URL,
		userAgent:  "mapkit-test/1.0",
		googleKey:  "test-key",
		limiter:    newTestLimiter(),
		retry:      noRetry(),
	}

	result, err := g.ReverseGeocode(context.Background(), 44.9778, -93.2650)
	require.NoError(t, err)
	assert.True(t, result.Matched)
	assert.Equal(t, "google", result.Source)
	assert.Equal(t, "Fallback Ave", result.Address)
}

func TestNewClient_Options(t *testing.T) {
	c := NewClient(
		WithBaseURL("https://nominatim.example.com"),
		WithUserAgent("mapkit-test/1.0"),
		WithGoogleAPIKey("key"),
		WithRateLimit(0.5),
	)
	g, ok := c.(*geocoder)
	require.True(t, ok)
	assert.Equal(t, "https://nominatim.example.com", g.baseURL)
	assert.Equal(t, "mapkit-test/1.0", g.userAgent)
	assert.Equal(t, "key", g.googleKey)
	assert.Equal(t, 1, g.limiter.Burst())
}

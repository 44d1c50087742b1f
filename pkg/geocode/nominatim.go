package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/rotisserie/eris"

	"github.com/loveofmn/mapkit/internal/resilience"
)

const nominatimDefaultURL = "https://nominatim.openstreetmap.org"

// nominatimResponse is the JSON response from the Nominatim reverse API.
type nominatimResponse struct {
	DisplayName string `json:"display_name"`
	Error       string `json:"error"`
}

// reverseNominatim resolves a coordinate using the Nominatim /reverse API.
func (g *geocoder) reverseNominatim(ctx context.Context, lat, lng float64) (*Result, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim rate limit")
	}

	params := url.Values{
		"format": {"jsonv2"},
		"lat":    {fmt.Sprintf("%.6f", lat)},
		"lon":    {fmt.Sprintf("%.6f", lng)},
	}

	reqURL := g.baseURL + "/reverse?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim build request")
	}
	req.Header.Set("User-Agent", g.userAgent)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("geocode: nominatim returned status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim read body")
	}

	var nomResp nominatimResponse
	if err := json.Unmarshal(body, &nomResp); err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim parse response")
	}

	// Nominatim reports "Unable to geocode" as an in-band error field.
	if nomResp.Error != "" || nomResp.DisplayName == "" {
		return &Result{Matched: false, Source: "nominatim"}, nil
	}

	return &Result{
		Address: nomResp.DisplayName,
		Source:  "nominatim",
		Matched: true,
	}, nil
}

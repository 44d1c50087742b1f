package server

import (
	"sync"
	"time"

	"github.com/loveofmn/mapkit/internal/mapctl"
)

// Flight is a camera move the client should perform.
type Flight struct {
	Lng        float64 `json:"lng"`
	Lat        float64 `json:"lat"`
	Zoom       float64 `json:"zoom"`
	DurationMs int64   `json:"duration_ms"`
}

// Marker is the click marker the client should show.
type Marker struct {
	Lng float64 `json:"lng"`
	Lat float64 `json:"lat"`
}

// stateRenderer adapts the HTTP click surface to mapctl.Renderer. The
// real map runs on the client; each click request delivers the zoom
// level and the rendered features near the pointer, and the response
// carries back the camera and marker effects recorded here.
type stateRenderer struct {
	mu       sync.Mutex
	zoom     float64
	point    mapctl.Point
	features []mapctl.Feature
	flight   *Flight
	marker   *Marker
	removed  bool
}

// prepare installs the per-click state delivered by the request and
// clears effects recorded for the previous click.
func (r *stateRenderer) prepare(zoom float64, point mapctl.Point, features []mapctl.Feature) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.zoom = zoom
	r.point = point
	r.features = features
	r.flight = nil
}

// takeFlight returns and clears the camera move recorded for the
// current click, if any.
func (r *stateRenderer) takeFlight() *Flight {
	r.mu.Lock()
	defer r.mu.Unlock()
	f := r.flight
	r.flight = nil
	return f
}

func (r *stateRenderer) currentMarker() *Marker {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.marker == nil {
		return nil
	}
	m := *r.marker
	return &m
}

func (r *stateRenderer) teardown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = true
}

func (r *stateRenderer) QueryRenderedFeatures(_ mapctl.Box, layers []string) ([]mapctl.Feature, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if layers == nil {
		out := make([]mapctl.Feature, len(r.features))
		copy(out, r.features)
		return out, nil
	}
	allowed := make(map[string]bool, len(layers))
	for _, l := range layers {
		allowed[l] = true
	}
	var out []mapctl.Feature
	for _, f := range r.features {
		if allowed[f.Layer] {
			out = append(out, f)
		}
	}
	return out, nil
}

// HasLayer always reports true: layer presence is decided client-side,
// and an absent layer simply contributes no features to the payload.
func (r *stateRenderer) HasLayer(string) bool { return true }

func (r *stateRenderer) FlyTo(center mapctl.LngLat, zoom float64, duration time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flight = &Flight{
		Lng:        center.Lng,
		Lat:        center.Lat,
		Zoom:       zoom,
		DurationMs: duration.Milliseconds(),
	}
}

func (r *stateRenderer) GetZoom() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.zoom
}

// Project returns the pointer position delivered with the current
// click; the server has no projection of its own.
func (r *stateRenderer) Project(mapctl.LngLat) mapctl.Point {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.point
}

func (r *stateRenderer) AddMarker(pos mapctl.LngLat) mapctl.MarkerHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.marker = &Marker{Lng: pos.Lng, Lat: pos.Lat}
	return &markerHandle{renderer: r}
}

func (r *stateRenderer) Removed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removed
}

type markerHandle struct {
	renderer *stateRenderer
	once     sync.Once
}

func (h *markerHandle) Remove() {
	h.once.Do(func() {
		h.renderer.mu.Lock()
		defer h.renderer.mu.Unlock()
		h.renderer.marker = nil
	})
}

package mapctl

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// fakeRenderer is a scripted stand-in for the vector-map widget.
type fakeRenderer struct {
	mu        sync.Mutex
	layers    map[string][]Feature
	zoom      float64
	flights   []flight
	markers   []*fakeMarker
	torn      bool
	failQuery bool
}

type flight struct {
	center LngLat
	zoom   float64
}

type fakeMarker struct {
	mu      sync.Mutex
	pos     LngLat
	removed bool
}

func (m *fakeMarker) Remove() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removed = true
}

func newFakeRenderer() *fakeRenderer {
	return &fakeRenderer{
		layers: make(map[string][]Feature),
		zoom:   10,
	}
}

// addFeature registers a feature on a layer, creating the layer.
func (r *fakeRenderer) addFeature(layer string, props map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.layers[layer] = append(r.layers[layer], Feature{Layer: layer, Properties: props})
}

// addLayer creates an empty layer.
func (r *fakeRenderer) addLayer(layer string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.layers[layer]; !ok {
		r.layers[layer] = nil
	}
}

func (r *fakeRenderer) QueryRenderedFeatures(box Box, layers []string) ([]Feature, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failQuery {
		return nil, fmt.Errorf("style not loaded")
	}
	var out []Feature
	if layers == nil {
		for _, fs := range r.layers {
			out = append(out, fs...)
		}
		return out, nil
	}
	for _, id := range layers {
		out = append(out, r.layers[id]...)
	}
	return out, nil
}

func (r *fakeRenderer) HasLayer(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.layers[id]
	return ok
}

func (r *fakeRenderer) FlyTo(center LngLat, zoom float64, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flights = append(r.flights, flight{center: center, zoom: zoom})
	r.zoom = zoom
}

func (r *fakeRenderer) GetZoom() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.zoom
}

func (r *fakeRenderer) Project(ll LngLat) Point {
	return Point{X: ll.Lng * 10, Y: ll.Lat * -10}
}

func (r *fakeRenderer) AddMarker(ll LngLat) MarkerHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := &fakeMarker{pos: ll}
	r.markers = append(r.markers, m)
	return m
}

func (r *fakeRenderer) Removed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.torn
}

// activeMarkers returns the markers not yet removed.
func (r *fakeRenderer) activeMarkers() []*fakeMarker {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*fakeMarker
	for _, m := range r.markers {
		m.mu.Lock()
		removed := m.removed
		m.mu.Unlock()
		if !removed {
			out = append(out, m)
		}
	}
	return out
}

func (r *fakeRenderer) lastFlight() (flight, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.flights) == 0 {
		return flight{}, false
	}
	return r.flights[len(r.flights)-1], true
}

// stubGeocoder resolves from a fixed table, optionally blocking until
// released so tests can interleave requests.
type stubGeocoder struct {
	mu        sync.Mutex
	addresses map[string]string
	err       error
	calls     int
	gate      chan struct{}
}

func newStubGeocoder() *stubGeocoder {
	return &stubGeocoder{addresses: make(map[string]string)}
}

func geoKey(lat, lng float64) string {
	return fmt.Sprintf("%.4f,%.4f", lat, lng)
}

func (g *stubGeocoder) set(lat, lng float64, addr string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.addresses[geoKey(lat, lng)] = addr
}

func (g *stubGeocoder) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func (g *stubGeocoder) ReverseGeocode(_ context.Context, lat, lng float64) (string, error) {
	g.mu.Lock()
	g.calls++
	gate := g.gate
	err := g.err
	addr := g.addresses[geoKey(lat, lng)]
	g.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return "", err
	}
	return addr, nil
}

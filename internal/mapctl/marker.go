package mapctl

import "sync"

// MarkerManager owns the single "last clicked location" marker. At most one
// marker exists on the map at any time; setting a new one removes any prior
// one, and removal is idempotent.
type MarkerManager struct {
	mu       sync.Mutex
	renderer func() Renderer
	marker   MarkerHandle
	pos      LngLat
}

// NewMarkerManager returns a manager that resolves the renderer through the
// given accessor at call time, so a map instance swapped under a long-lived
// handler is always the one mutated.
func NewMarkerManager(renderer func() Renderer) *MarkerManager {
	return &MarkerManager{renderer: renderer}
}

// Set removes any existing marker and places exactly one at ll.
func (m *MarkerManager) Set(ll LngLat) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.marker != nil {
		m.marker.Remove()
		m.marker = nil
	}

	r := m.renderer()
	if r == nil || r.Removed() {
		return
	}
	m.marker = r.AddMarker(ll)
	m.pos = ll
}

// Remove removes the marker if present; no-op otherwise.
func (m *MarkerManager) Remove() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.marker != nil {
		m.marker.Remove()
		m.marker = nil
	}
}

// Position returns the marker coordinate and whether a marker is present.
func (m *MarkerManager) Position() (LngLat, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pos, m.marker != nil
}

// Cleanup removes the marker and releases renderer-level resources. Called
// on session teardown.
func (m *MarkerManager) Cleanup() {
	m.Remove()
}

package mapctl

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// ItemType classifies what a click landed on.
type ItemType string

const (
	ItemPin      ItemType = "pin"
	ItemArea     ItemType = "area"
	ItemMap      ItemType = "map"
	ItemBoundary ItemType = "boundary"
)

// BoundaryLayer identifies an administrative boundary layer.
type BoundaryLayer string

const (
	LayerState    BoundaryLayer = "state"
	LayerCounty   BoundaryLayer = "county"
	LayerDistrict BoundaryLayer = "district"
	LayerCTU      BoundaryLayer = "ctu"
)

// ValidBoundaryLayer reports whether l names a known boundary layer.
func ValidBoundaryLayer(l BoundaryLayer) bool {
	switch l {
	case LayerState, LayerCounty, LayerDistrict, LayerCTU:
		return true
	}
	return false
}

// ClickedItem is one user interaction with the map surface. Items are
// created synchronously at click time, appended to the session history,
// and never mutated.
type ClickedItem struct {
	Type      ItemType      `json:"type"`
	ID        string        `json:"id,omitempty"`
	Lat       float64       `json:"lat"`
	Lng       float64       `json:"lng"`
	Layer     BoundaryLayer `json:"layer,omitempty"`
	Username  string        `json:"username,omitempty"`
	ClickedAt time.Time     `json:"clicked_at"`
}

// BoundarySelection is the single currently focused administrative
// boundary. Selecting a new one replaces the old; the set size is 0 or 1.
type BoundarySelection struct {
	Layer BoundaryLayer `json:"layer"`
	ID    string        `json:"id"`
	Name  string        `json:"name"`
	Lat   float64       `json:"lat"`
	Lng   float64       `json:"lng"`
}

// Popup is the transient state behind the location-select popup. Address
// is empty until the reverse geocoder resolves it for these exact
// coordinates; Meta is captured synchronously at click time.
type Popup struct {
	Open    bool         `json:"open"`
	Lat     float64      `json:"lat"`
	Lng     float64      `json:"lng"`
	Address string       `json:"address,omitempty"`
	Meta    *FeatureMeta `json:"meta,omitempty"`
}

// Session tracks everything clicked during one map session: the append-only
// history, the current boundary selection, the popup, and named loading
// flags folded into a single readiness signal.
type Session struct {
	mu        sync.Mutex
	id        string
	createdAt time.Time
	history   []ClickedItem
	selection *BoundarySelection
	popup     Popup
	loading   map[string]bool
}

// NewSession returns an empty session with a fresh id.
func NewSession() *Session {
	return &Session{
		id:        uuid.New().String(),
		createdAt: time.Now().UTC(),
		loading:   make(map[string]bool),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// CreatedAt returns the session creation time.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// RecordClick appends an item to the history. Append-only, no
// de-duplication: clicking the same pin twice produces two entries.
func (s *Session) RecordClick(item ClickedItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, item)
}

// History returns a copy of the session history, insertion order.
func (s *Session) History() []ClickedItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ClickedItem, len(s.history))
	copy(out, s.history)
	return out
}

// SelectBoundary replaces the current selection and appends a boundary
// item to the history.
func (s *Session) SelectBoundary(layer BoundaryLayer, id, name string, lat, lng float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection = &BoundarySelection{Layer: layer, ID: id, Name: name, Lat: lat, Lng: lng}
	s.history = append(s.history, ClickedItem{
		Type:      ItemBoundary,
		ID:        id,
		Lat:       lat,
		Lng:       lng,
		Layer:     layer,
		ClickedAt: time.Now().UTC(),
	})
}

// ClearSelection empties the current selection. History entries stay.
func (s *Session) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection = nil
}

// Selection returns the current boundary selection, or nil.
func (s *Session) Selection() *BoundarySelection {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selection == nil {
		return nil
	}
	sel := *s.selection
	return &sel
}

// OpenPopup opens or overwrites the popup at the given coordinates. The
// address always resets and stays empty until SetAddress lands for these
// exact coordinates.
func (s *Session) OpenPopup(lat, lng float64, meta *FeatureMeta) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.popup = Popup{Open: true, Lat: lat, Lng: lng, Meta: meta}
}

// ClosePopup clears the popup on explicit dismissal.
func (s *Session) ClosePopup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.popup = Popup{}
}

// SetAddress fills the popup address, but only while the popup is still
// open for the same coordinates the resolution was issued for. Stale
// results are discarded silently.
func (s *Session) SetAddress(lat, lng float64, address string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.popup.Open || s.popup.Lat != lat || s.popup.Lng != lng {
		return false
	}
	s.popup.Address = address
	return true
}

// Popup returns the current popup state.
func (s *Session) Popup() Popup {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.popup
}

// SetLoading flips a named loading flag (map tiles, pin data, boundary
// geometry fetches).
func (s *Session) SetLoading(name string, loading bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if loading {
		s.loading[name] = true
	} else {
		delete(s.loading, name)
	}
}

// Ready reports whether every named sub-load has finished. The fold is the
// logical AND of all flags being false.
func (s *Session) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.loading) == 0
}

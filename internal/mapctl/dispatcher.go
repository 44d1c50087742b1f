package mapctl

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// PermissionFunc checks whether the current account may perform an action
// ("clicks", ...). A nil result means unknown, which gates as allow: only
// an explicit false blocks.
type PermissionFunc func(action string) *bool

// MapSettings carries the map-level collaboration gating read at dispatch
// time.
type MapSettings struct {
	ClicksEnabled bool `json:"clicks_enabled"`
}

// DispatchContext is the mutable collaborator set the dispatcher re-reads
// on every click. Routing it through a provider instead of capturing it at
// registration keeps a long-lived handler reading current values when the
// map instance, account, or settings change under it.
type DispatchContext struct {
	Renderer   Renderer
	Session    *Session
	Settings   MapSettings
	Permission PermissionFunc
	Username   string
}

// ContextProvider returns the current dispatch context.
type ContextProvider func() DispatchContext

// BoundsChecker tests whether a coordinate lies inside the service area.
type BoundsChecker interface {
	Contains(lat, lng float64) bool
}

// Outcome is the modeled result of one click-handling pass. Policy
// rejections are outcomes, not errors.
type Outcome string

const (
	// OutcomeIgnored: no usable renderer (unloaded or torn down).
	OutcomeIgnored Outcome = "ignored"
	// OutcomeDebounced: duplicate delivery inside the debounce window.
	OutcomeDebounced Outcome = "debounced"
	// OutcomeFeature: a pin/area feature was hit; its own handler owns the click.
	OutcomeFeature Outcome = "feature"
	// OutcomeOutOfBounds: outside the service area; marker and popup coords
	// updated, no geocode.
	OutcomeOutOfBounds Outcome = "out_of_bounds"
	// OutcomeGated: map settings or permissions disallow clicks.
	OutcomeGated Outcome = "gated"
	// OutcomeAccepted: full raw-map-click path ran, geocode in flight.
	OutcomeAccepted Outcome = "accepted"
)

// Config tunes the dispatcher.
type Config struct {
	DebounceWindow    time.Duration
	HitTolerancePx    float64
	MinZoom           float64
	ZoomStep          float64
	FlyDuration       time.Duration
	InteractiveLayers []string
}

// DefaultConfig returns the production dispatcher tuning. The 100 ms
// debounce guards against duplicate event delivery from the renderer, not
// against intentional double-clicks.
func DefaultConfig() Config {
	return Config{
		DebounceWindow: 100 * time.Millisecond,
		HitTolerancePx: 20,
		MinZoom:        15,
		ZoomStep:       2,
		FlyDuration:    1200 * time.Millisecond,
		InteractiveLayers: []string{
			"pin-points", "pin-labels", "area-fill", "area-outline",
		},
	}
}

// Dispatcher is the single entry point for pointer clicks on the map. It
// decides what a click means and routes it: feature hits pass to the
// feature's own handler, raw map clicks run the marker/camera/popup/
// geocode pipeline.
type Dispatcher struct {
	cfg      Config
	provider ContextProvider
	bounds   BoundsChecker
	resolver *Resolver
	markers  *MarkerManager
	bus      *Bus

	mu        sync.Mutex
	lastClick time.Time
}

// NewDispatcher wires a dispatcher. The bus may be nil when nothing
// subscribes to controller events.
func NewDispatcher(cfg Config, provider ContextProvider, bounds BoundsChecker, resolver *Resolver, bus *Bus) *Dispatcher {
	if cfg.DebounceWindow <= 0 {
		cfg.DebounceWindow = DefaultConfig().DebounceWindow
	}
	if cfg.HitTolerancePx <= 0 {
		cfg.HitTolerancePx = DefaultConfig().HitTolerancePx
	}
	d := &Dispatcher{
		cfg:      cfg,
		provider: provider,
		bounds:   bounds,
		resolver: resolver,
		bus:      bus,
	}
	d.markers = NewMarkerManager(func() Renderer {
		return provider().Renderer
	})
	return d
}

// Markers exposes the marker manager for teardown paths.
func (d *Dispatcher) Markers() *MarkerManager {
	return d.markers
}

// HandleClick processes one pointer click. Everything up to and including
// the popup open runs synchronously in the stated order; only the reverse
// geocode is asynchronous. Nothing here returns an error: every failure
// path degrades to a consistent outcome.
func (d *Dispatcher) HandleClick(ctx context.Context, ev ClickEvent) Outcome {
	dc := d.provider()
	r := dc.Renderer
	if r == nil || r.Removed() || dc.Session == nil {
		return OutcomeIgnored
	}

	if !d.acceptClick(ev.Time) {
		return OutcomeDebounced
	}

	// Feature precedence: a pin/area hit owns the click entirely. The
	// marker is cleared and popup state is untouched.
	query := NewFeatureQuery(r)
	box := BoxAround(ev.Point, d.cfg.HitTolerancePx)
	if features := query.QueryBox(box, d.cfg.InteractiveLayers); len(features) > 0 {
		d.markers.Remove()
		d.recordFeatureClick(dc.Session, features[0], ev.LngLat)
		return OutcomeFeature
	}

	// Raw map click: marker, then camera, then gating, then popup.
	d.markers.Set(ev.LngLat)

	zoom := r.GetZoom() + d.cfg.ZoomStep
	if zoom < d.cfg.MinZoom {
		zoom = d.cfg.MinZoom
	}
	r.FlyTo(ev.LngLat, zoom, d.cfg.FlyDuration)

	dc.Session.RecordClick(ClickedItem{
		Type:      ItemMap,
		Lat:       ev.LngLat.Lat,
		Lng:       ev.LngLat.Lng,
		ClickedAt: ev.Time,
	})

	if !d.bounds.Contains(ev.LngLat.Lat, ev.LngLat.Lng) {
		dc.Session.OpenPopup(ev.LngLat.Lat, ev.LngLat.Lng, nil)
		d.publishPopup(dc.Session)
		return OutcomeOutOfBounds
	}

	if !clicksAllowed(dc) {
		dc.Session.OpenPopup(ev.LngLat.Lat, ev.LngLat.Lng, nil)
		d.publishPopup(dc.Session)
		return OutcomeGated
	}

	meta := query.FeatureAtPoint(ev.Point, nil)
	dc.Session.OpenPopup(ev.LngLat.Lat, ev.LngLat.Lng, meta)
	d.publishPopup(dc.Session)

	d.resolver.Resolve(ctx, ev.LngLat.Lat, ev.LngLat.Lng, func(lat, lng float64, address string) {
		if dc.Session.SetAddress(lat, lng, address) {
			d.publishPopup(dc.Session)
		}
	})

	return OutcomeAccepted
}

// SelectBoundary is the entry point for boundary-layer click handlers. It
// replaces the session's selection and announces it on the bus.
func (d *Dispatcher) SelectBoundary(layer BoundaryLayer, id, name string, lat, lng float64) {
	dc := d.provider()
	if dc.Session == nil {
		return
	}
	dc.Session.SelectBoundary(layer, id, name, lat, lng)
	if d.bus != nil {
		d.bus.Publish(TopicBoundarySelected, dc.Session.Selection())
	}
}

// DismissPopup closes the popup and removes the click marker.
func (d *Dispatcher) DismissPopup() {
	dc := d.provider()
	if dc.Session != nil {
		dc.Session.ClosePopup()
	}
	d.markers.Remove()
}

// Cleanup tears down renderer-level resources on session unmount.
func (d *Dispatcher) Cleanup() {
	d.markers.Cleanup()
}

// acceptClick applies the debounce rule: events inside the window since
// the last accepted click are dropped silently.
func (d *Dispatcher) acceptClick(at time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.lastClick.IsZero() && at.Sub(d.lastClick) < d.cfg.DebounceWindow {
		zap.L().Debug("click debounced", zap.Duration("since_last", at.Sub(d.lastClick)))
		return false
	}
	d.lastClick = at
	return true
}

// recordFeatureClick appends a pin/area history item from the hit feature.
func (d *Dispatcher) recordFeatureClick(s *Session, f Feature, ll LngLat) {
	item := ClickedItem{
		Lat:       ll.Lat,
		Lng:       ll.Lng,
		ID:        propString(f.Properties, "id"),
		ClickedAt: time.Now().UTC(),
	}
	switch f.Layer {
	case "area-fill", "area-outline":
		item.Type = ItemArea
	default:
		item.Type = ItemPin
		item.Username = propString(f.Properties, "username")
	}
	s.RecordClick(item)
}

func (d *Dispatcher) publishPopup(s *Session) {
	if d.bus != nil {
		d.bus.Publish(TopicPopupUpdated, s.Popup())
	}
}

// clicksAllowed runs map-level and permission-level gating. Unknown
// permission gates as allow.
func clicksAllowed(dc DispatchContext) bool {
	if !dc.Settings.ClicksEnabled {
		return false
	}
	if dc.Permission == nil {
		return true
	}
	allowed := dc.Permission("clicks")
	return allowed == nil || *allowed
}

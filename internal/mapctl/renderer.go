// Package mapctl implements the map click-resolution controller: it turns
// raw pointer clicks on a vector-map renderer into marker placement, camera
// movement, popup state, and boundary selection.
package mapctl

import "time"

// LngLat is a WGS84 coordinate pair.
type LngLat struct {
	Lng float64 `json:"lng"`
	Lat float64 `json:"lat"`
}

// Point is a screen-space pixel coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Box is a screen-space bounding box.
type Box struct {
	Min Point `json:"min"`
	Max Point `json:"max"`
}

// BoxAround returns a box of ±tolerance pixels centered on pt.
func BoxAround(pt Point, tolerance float64) Box {
	return Box{
		Min: Point{X: pt.X - tolerance, Y: pt.Y - tolerance},
		Max: Point{X: pt.X + tolerance, Y: pt.Y + tolerance},
	}
}

// Feature is a rendered vector object returned by a hit-test query.
type Feature struct {
	Layer       string         `json:"layer"`
	SourceLayer string         `json:"source_layer,omitempty"`
	Properties  map[string]any `json:"properties,omitempty"`
}

// ClickEvent is a raw pointer click delivered by the renderer.
type ClickEvent struct {
	Point  Point     `json:"point"`
	LngLat LngLat    `json:"lnglat"`
	Time   time.Time `json:"time"`
}

// MarkerHandle is a live marker placed on the map. Remove must be safe to
// call more than once.
type MarkerHandle interface {
	Remove()
}

// Renderer is the contract mapctl consumes from the vector-map widget.
// Implementations wrap the real renderer; the package tests use a scripted
// fake. Query methods may return errors or panic for layers that do not
// exist yet; callers go through FeatureQuery, which degrades those to
// "no match".
type Renderer interface {
	// QueryRenderedFeatures returns the features rendered inside box,
	// restricted to the given layer ids.
	QueryRenderedFeatures(box Box, layers []string) ([]Feature, error)

	// HasLayer reports whether a layer id currently exists in the style.
	HasLayer(id string) bool

	// FlyTo animates the camera to center at the given zoom.
	FlyTo(center LngLat, zoom float64, duration time.Duration)

	// GetZoom returns the current camera zoom level.
	GetZoom() float64

	// Project converts a geographic coordinate to screen space.
	Project(ll LngLat) Point

	// AddMarker places a marker and returns its handle. Marker lifecycle
	// is owned by MarkerManager; nothing else may call this.
	AddMarker(ll LngLat) MarkerHandle

	// Removed reports whether the underlying map has been torn down.
	Removed() bool
}

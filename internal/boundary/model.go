// Package boundary loads and stores administrative boundary geometries
// and answers point-in-boundary lookups against them.
package boundary

import "time"

// Layer identifies which administrative boundary set a record belongs to.
type Layer string

const (
	LayerState    Layer = "state"
	LayerCounty   Layer = "county"
	LayerDistrict Layer = "district"
	LayerCTU      Layer = "ctu"
)

// ValidLayer reports whether the given string names a known layer.
func ValidLayer(s string) bool {
	switch Layer(s) {
	case LayerState, LayerCounty, LayerDistrict, LayerCTU:
		return true
	}
	return false
}

// Boundary is one administrative area with its geometry encoded as
// EWKB (SRID 4326). The bounding box is denormalized so lookups can
// prefilter without decoding geometry.
type Boundary struct {
	Layer      Layer     `json:"layer"`
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	CountyName string    `json:"county_name,omitempty"`
	Class      string    `json:"class,omitempty"`
	Population int64     `json:"population,omitempty"`
	MinLng     float64   `json:"min_lng"`
	MinLat     float64   `json:"min_lat"`
	MaxLng     float64   `json:"max_lng"`
	MaxLat     float64   `json:"max_lat"`
	CentLng    float64   `json:"cent_lng"`
	CentLat    float64   `json:"cent_lat"`
	Geom       []byte    `json:"-"`
	LoadedAt   time.Time `json:"loaded_at,omitempty"`
}

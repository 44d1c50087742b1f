// Package bounds implements the service-area containment check: a fast
// bounding-box test, optionally refined by a polygon loaded from GeoJSON.
package bounds

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/xy"
)

// Checker tests whether a coordinate lies inside the supported service
// area. Pure and synchronous.
type Checker interface {
	Contains(lat, lng float64) bool
}

// BoxChecker is an axis-aligned bounding-box service area.
type BoxChecker struct {
	MinLat, MinLng, MaxLat, MaxLng float64
}

// Minnesota returns the default production service area: the state plus a
// margin for border towns.
func Minnesota() BoxChecker {
	return BoxChecker{MinLat: 43.2, MinLng: -97.5, MaxLat: 49.7, MaxLng: -89.0}
}

// Contains reports whether the coordinate lies inside the box, edges
// included.
func (b BoxChecker) Contains(lat, lng float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lng >= b.MinLng && lng <= b.MaxLng
}

// PolygonChecker tests containment against an explicit service-area
// polygon. The box pre-check keeps the common far-away case cheap.
type PolygonChecker struct {
	box      BoxChecker
	polygons []*geom.Polygon
}

// NewPolygonChecker builds a checker from a polygonal geometry
// (Polygon or MultiPolygon).
func NewPolygonChecker(g geom.T) (*PolygonChecker, error) {
	polygons, err := collectPolygons(g)
	if err != nil {
		return nil, err
	}

	b := g.Bounds()
	return &PolygonChecker{
		box: BoxChecker{
			MinLat: b.Min(1), MinLng: b.Min(0),
			MaxLat: b.Max(1), MaxLng: b.Max(0),
		},
		polygons: polygons,
	}, nil
}

// LoadGeoJSON reads a service-area polygon from a GeoJSON file containing
// a single Feature or bare geometry.
func LoadGeoJSON(path string) (*PolygonChecker, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "bounds: read %s", path)
	}

	var feature geojson.Feature
	if err := feature.UnmarshalJSON(data); err == nil && feature.Geometry != nil {
		return NewPolygonChecker(feature.Geometry)
	}

	var g geom.T
	if err := geojson.Unmarshal(data, &g); err != nil {
		return nil, eris.Wrapf(err, "bounds: parse %s", path)
	}
	return NewPolygonChecker(g)
}

// Contains reports whether the coordinate lies inside the polygon,
// respecting holes.
func (p *PolygonChecker) Contains(lat, lng float64) bool {
	if !p.box.Contains(lat, lng) {
		return false
	}
	coord := geom.Coord{lng, lat}
	for _, poly := range p.polygons {
		if polygonContains(poly, coord) {
			return true
		}
	}
	return false
}

func collectPolygons(g geom.T) ([]*geom.Polygon, error) {
	switch t := g.(type) {
	case *geom.Polygon:
		return []*geom.Polygon{t}, nil
	case *geom.MultiPolygon:
		polygons := make([]*geom.Polygon, 0, t.NumPolygons())
		for i := 0; i < t.NumPolygons(); i++ {
			polygons = append(polygons, t.Polygon(i))
		}
		return polygons, nil
	default:
		return nil, eris.Errorf("bounds: unsupported geometry type %T", g)
	}
}

// polygonContains tests point-in-polygon with holes: inside the outer
// ring and outside every interior ring.
func polygonContains(poly *geom.Polygon, coord geom.Coord) bool {
	if poly.NumLinearRings() == 0 {
		return false
	}
	if !xy.IsPointInRing(poly.Layout(), coord, poly.LinearRing(0).FlatCoords()) {
		return false
	}
	for i := 1; i < poly.NumLinearRings(); i++ {
		if xy.IsPointInRing(poly.Layout(), coord, poly.LinearRing(i).FlatCoords()) {
			return false
		}
	}
	return true
}

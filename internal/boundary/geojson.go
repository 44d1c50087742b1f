package boundary

import (
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"
)

// ParseGeoJSON reads a GeoJSON FeatureCollection and returns boundary
// records for the given layer. Features without polygonal geometry or a
// name property are skipped.
func ParseGeoJSON(path string, layer Layer) ([]Boundary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "boundary: read geojson %s", path)
	}

	var fc geojson.FeatureCollection
	if err := fc.UnmarshalJSON(data); err != nil {
		return nil, eris.Wrapf(err, "boundary: parse geojson %s", path)
	}

	var out []Boundary
	var skipped int

	for _, f := range fc.Features {
		mp := toMultiPolygon(f.Geometry)
		if mp == nil {
			skipped++
			continue
		}

		name := propValue(f.Properties, "feature_name", "name", "ctu_name")
		if name == "" {
			skipped++
			continue
		}

		b, err := fromGeometry(layer, mp)
		if err != nil {
			skipped++
			continue
		}
		b.Name = DisplayName(name)
		b.ID = propValue(f.Properties, "gnis_feature_id", "geoid", "id")
		if b.ID == "" {
			if f.ID != "" {
				b.ID = f.ID
			} else {
				b.ID = slugify(name)
			}
		}
		b.CountyName = DisplayName(propValue(f.Properties, "county_name", "county"))
		b.Class = propValue(f.Properties, "ctu_class", "class")
		b.Population = parsePopulation(propValue(f.Properties, "population"))

		out = append(out, *b)
	}

	if skipped > 0 {
		zap.L().Debug("boundary: skipped geojson features",
			zap.String("path", path),
			zap.String("layer", string(layer)),
			zap.Int("skipped", skipped),
		)
	}

	return out, nil
}

// toMultiPolygon normalizes polygonal geometry to a MultiPolygon with
// SRID 4326, returning nil for anything else.
func toMultiPolygon(g geom.T) *geom.MultiPolygon {
	switch t := g.(type) {
	case *geom.MultiPolygon:
		return t.SetSRID(4326)
	case *geom.Polygon:
		mp := geom.NewMultiPolygon(geom.XY).SetSRID(4326)
		if err := mp.Push(t); err != nil {
			return nil
		}
		return mp
	default:
		return nil
	}
}

// propValue returns the first present, non-empty property among keys.
// Lookup is case-insensitive because upstream exports vary.
func propValue(props map[string]any, keys ...string) string {
	if len(props) == 0 {
		return ""
	}
	lower := make(map[string]any, len(props))
	for k, v := range props {
		lower[strings.ToLower(k)] = v
	}
	for _, k := range keys {
		v, ok := lower[k]
		if !ok || v == nil {
			continue
		}
		switch s := v.(type) {
		case string:
			if s != "" {
				return s
			}
		case float64:
			return fmt.Sprintf("%.0f", s)
		}
	}
	return ""
}

package boundary

import (
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Source data uses varying attribute names depending on publisher; the
// first present, non-empty field wins.
var (
	nameFields   = []string{"feature_name", "name", "ctu_name", "namelsad"}
	idFields     = []string{"gnis_feature_id", "geoid", "gnis_id", "id"}
	countyFields = []string{"county_name", "countyfp", "county"}
	classFields  = []string{"ctu_class", "classfp", "class"}
	popFields    = []string{"population", "pop"}
)

// ParseShapefile reads a shapefile and returns boundary records for the
// given layer. Records without usable polygon geometry or a name are
// skipped.
func ParseShapefile(shpPath string, layer Layer) ([]Boundary, error) {
	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "boundary: open shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	fieldIdx := make(map[string]int, len(fields))
	for i, f := range fields {
		name := strings.TrimRight(f.String(), "\x00")
		fieldIdx[strings.ToLower(name)] = i
	}

	attr := func(keys []string) string {
		for _, k := range keys {
			idx, ok := fieldIdx[k]
			if !ok {
				continue
			}
			val := strings.TrimSpace(strings.TrimRight(reader.Attribute(idx), "\x00"))
			if val != "" {
				return val
			}
		}
		return ""
	}

	var out []Boundary
	var skipped int

	for reader.Next() {
		_, shape := reader.Shape()

		poly, ok := shape.(*shp.Polygon)
		if !ok || poly == nil {
			skipped++
			continue
		}

		name := attr(nameFields)
		if name == "" {
			skipped++
			continue
		}

		mp := polygonToMultiPolygon(poly)
		if mp == nil {
			skipped++
			continue
		}

		b, err := fromGeometry(layer, mp)
		if err != nil {
			skipped++
			continue
		}
		b.Name = DisplayName(name)
		b.ID = attr(idFields)
		if b.ID == "" {
			b.ID = slugify(name)
		}
		b.CountyName = DisplayName(attr(countyFields))
		b.Class = attr(classFields)
		b.Population = parsePopulation(attr(popFields))

		out = append(out, *b)
	}

	if skipped > 0 {
		zap.L().Debug("boundary: skipped shapefile records",
			zap.String("path", shpPath),
			zap.String("layer", string(layer)),
			zap.Int("skipped", skipped),
		)
	}

	return out, nil
}

// fromGeometry fills the derived fields of a Boundary from a
// MultiPolygon: EWKB encoding, bounding box, and bbox centroid.
func fromGeometry(layer Layer, mp *geom.MultiPolygon) (*Boundary, error) {
	data, err := ewkb.Marshal(mp, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "boundary: encode EWKB")
	}

	b := mp.Bounds()
	return &Boundary{
		Layer:   layer,
		MinLng:  b.Min(0),
		MinLat:  b.Min(1),
		MaxLng:  b.Max(0),
		MaxLat:  b.Max(1),
		CentLng: (b.Min(0) + b.Max(0)) / 2,
		CentLat: (b.Min(1) + b.Max(1)) / 2,
		Geom:    data,
	}, nil
}

// polygonToMultiPolygon converts a shapefile Polygon to a geom.MultiPolygon.
func polygonToMultiPolygon(p *shp.Polygon) *geom.MultiPolygon {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY).SetSRID(4326)

	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		var end int32
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		} else {
			end = int32(len(p.Points))
		}

		flat := make([]float64, 0, (end-start)*2)
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}

		ring := geom.NewLinearRingFlat(geom.XY, flat)
		poly := geom.NewPolygon(geom.XY)
		if err := poly.Push(ring); err != nil {
			zap.L().Debug("boundary: skipping malformed polygon ring", zap.Int32("part", i), zap.Error(err))
			continue
		}
		if err := mp.Push(poly); err != nil {
			zap.L().Debug("boundary: skipping malformed polygon part", zap.Int32("part", i), zap.Error(err))
			continue
		}
	}

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

var titleCaser = cases.Title(language.AmericanEnglish)

// DisplayName normalizes an all-caps source name like "SAINT PAUL" to
// "Saint Paul". Mixed-case names pass through unchanged.
func DisplayName(name string) string {
	if name == "" || name != strings.ToUpper(name) {
		return name
	}
	return titleCaser.String(strings.ToLower(name))
}

func slugify(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	return strings.ReplaceAll(s, " ", "-")
}

func parsePopulation(s string) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

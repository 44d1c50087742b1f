package bounds

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
)

func TestBoxChecker(t *testing.T) {
	mn := Minnesota()

	cases := []struct {
		name     string
		lat, lng float64
		want     bool
	}{
		{"Minneapolis", 44.9778, -93.2650, true},
		{"Duluth", 46.7867, -92.1005, true},
		{"International Falls", 48.6012, -93.4108, true},
		{"far outside", 10, 10, false},
		{"Chicago", 41.8781, -87.6298, false},
		{"edge min", 43.2, -97.5, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, mn.Contains(tc.lat, tc.lng))
		})
	}
}

// unitSquare returns a polygon covering (0,0)..(10,10) with a hole at
// (4,4)..(6,6).
func unitSquare(t *testing.T) *PolygonChecker {
	t.Helper()
	poly := geom.NewPolygon(geom.XY)
	_, err := poly.SetCoords([][]geom.Coord{
		{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}},
		{{4, 4}, {6, 4}, {6, 6}, {4, 6}, {4, 4}},
	})
	require.NoError(t, err)

	checker, err := NewPolygonChecker(poly)
	require.NoError(t, err)
	return checker
}

func TestPolygonChecker_Contains(t *testing.T) {
	checker := unitSquare(t)

	assert.True(t, checker.Contains(2, 2))
	assert.True(t, checker.Contains(8, 8))
	assert.False(t, checker.Contains(5, 5), "inside the hole")
	assert.False(t, checker.Contains(11, 11))
	assert.False(t, checker.Contains(-1, 5))
}

func TestPolygonChecker_MultiPolygon(t *testing.T) {
	mp := geom.NewMultiPolygon(geom.XY)
	_, err := mp.SetCoords([][][]geom.Coord{
		{{{0, 0}, {2, 0}, {2, 2}, {0, 2}, {0, 0}}},
		{{{10, 10}, {12, 10}, {12, 12}, {10, 12}, {10, 10}}},
	})
	require.NoError(t, err)

	checker, err := NewPolygonChecker(mp)
	require.NoError(t, err)

	assert.True(t, checker.Contains(1, 1))
	assert.True(t, checker.Contains(11, 11))
	assert.False(t, checker.Contains(5, 5), "between the parts")
}

func TestNewPolygonChecker_RejectsNonPolygonal(t *testing.T) {
	pt := geom.NewPointFlat(geom.XY, []float64{1, 1})
	_, err := NewPolygonChecker(pt)
	assert.Error(t, err)
}

func TestLoadGeoJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "area.geojson")
	data := `{
		"type": "Feature",
		"properties": {"name": "service-area"},
		"geometry": {
			"type": "Polygon",
			"coordinates": [[[-94, 44], [-93, 44], [-93, 45], [-94, 45], [-94, 44]]]
		}
	}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	checker, err := LoadGeoJSON(path)
	require.NoError(t, err)

	assert.True(t, checker.Contains(44.5, -93.5))
	assert.False(t, checker.Contains(46, -93.5))
}

func TestLoadGeoJSON_BareGeometry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "area.geojson")
	data := `{
		"type": "Polygon",
		"coordinates": [[[-94, 44], [-93, 44], [-93, 45], [-94, 45], [-94, 44]]]
	}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	checker, err := LoadGeoJSON(path)
	require.NoError(t, err)
	assert.True(t, checker.Contains(44.5, -93.5))
}

func TestLoadGeoJSON_MissingFile(t *testing.T) {
	_, err := LoadGeoJSON(filepath.Join(t.TempDir(), "nope.geojson"))
	assert.Error(t, err)
}

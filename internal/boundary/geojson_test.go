package boundary

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ctuGeoJSON = `{
	"type": "FeatureCollection",
	"features": [
		{
			"type": "Feature",
			"properties": {
				"CTU_CLASS": "CITY",
				"FEATURE_NAME": "SAINT PAUL",
				"GNIS_FEATURE_ID": 661867,
				"COUNTY_NAME": "RAMSEY",
				"POPULATION": 311527
			},
			"geometry": {
				"type": "Polygon",
				"coordinates": [[[-93.2, 44.9], [-93.0, 44.9], [-93.0, 45.0], [-93.2, 45.0], [-93.2, 44.9]]]
			}
		},
		{
			"type": "Feature",
			"properties": {
				"CTU_CLASS": "TOWNSHIP",
				"FEATURE_NAME": "WHITE BEAR",
				"COUNTY_NAME": "RAMSEY"
			},
			"geometry": {
				"type": "MultiPolygon",
				"coordinates": [[[[-93.0, 45.0], [-92.9, 45.0], [-92.9, 45.1], [-93.0, 45.1], [-93.0, 45.0]]]]
			}
		},
		{
			"type": "Feature",
			"properties": {"FEATURE_NAME": "NO GEOMETRY"},
			"geometry": {"type": "Point", "coordinates": [-93.0, 45.0]}
		},
		{
			"type": "Feature",
			"properties": {"CTU_CLASS": "CITY"},
			"geometry": {
				"type": "Polygon",
				"coordinates": [[[0, 0], [1, 0], [1, 1], [0, 1], [0, 0]]]
			}
		}
	]
}`

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseGeoJSON(t *testing.T) {
	path := writeTempFile(t, "ctu.geojson", ctuGeoJSON)

	records, err := ParseGeoJSON(path, LayerCTU)
	require.NoError(t, err)
	require.Len(t, records, 2, "non-polygonal and unnamed features are skipped")

	sp := records[0]
	assert.Equal(t, LayerCTU, sp.Layer)
	assert.Equal(t, "Saint Paul", sp.Name)
	assert.Equal(t, "661867", sp.ID)
	assert.Equal(t, "Ramsey", sp.CountyName)
	assert.Equal(t, "CITY", sp.Class)
	assert.Equal(t, int64(311527), sp.Population)
	assert.NotEmpty(t, sp.Geom)
	assert.InDelta(t, -93.2, sp.MinLng, 1e-9)
	assert.InDelta(t, 44.9, sp.MinLat, 1e-9)
	assert.InDelta(t, -93.0, sp.MaxLng, 1e-9)
	assert.InDelta(t, 45.0, sp.MaxLat, 1e-9)
	assert.InDelta(t, -93.1, sp.CentLng, 1e-9)
	assert.InDelta(t, 44.95, sp.CentLat, 1e-9)

	wb := records[1]
	assert.Equal(t, "White Bear", wb.Name)
	assert.Equal(t, "white-bear", wb.ID, "falls back to a name slug without a source id")
}

func TestParseGeoJSON_BadInput(t *testing.T) {
	_, err := ParseGeoJSON(filepath.Join(t.TempDir(), "missing.geojson"), LayerCTU)
	assert.Error(t, err)

	path := writeTempFile(t, "bad.geojson", `{"type": "oops"`)
	_, err = ParseGeoJSON(path, LayerCTU)
	assert.Error(t, err)
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"SAINT PAUL", "Saint Paul"},
		{"WHITE BEAR LAKE", "White Bear Lake"},
		{"Minneapolis", "Minneapolis"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DisplayName(tt.in), "input %q", tt.in)
	}
}

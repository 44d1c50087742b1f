package boundary

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
)

// squareBoundary builds a boundary whose geometry is an axis-aligned
// square over the given extent.
func squareBoundary(t *testing.T, layer Layer, id, name string, minLng, minLat, maxLng, maxLat float64) Boundary {
	t.Helper()

	mp := geom.NewMultiPolygon(geom.XY).SetSRID(4326)
	poly := geom.NewPolygon(geom.XY)
	ring := geom.NewLinearRingFlat(geom.XY, []float64{
		minLng, minLat,
		maxLng, minLat,
		maxLng, maxLat,
		minLng, maxLat,
		minLng, minLat,
	})
	require.NoError(t, poly.Push(ring))
	require.NoError(t, mp.Push(poly))

	data, err := ewkb.Marshal(mp, ewkb.NDR)
	require.NoError(t, err)

	return Boundary{
		Layer:   layer,
		ID:      id,
		Name:    name,
		MinLng:  minLng,
		MinLat:  minLat,
		MaxLng:  maxLng,
		MaxLat:  maxLat,
		CentLng: (minLng + maxLng) / 2,
		CentLat: (minLat + maxLat) / 2,
		Geom:    data,
	}
}

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func TestSQLiteStore_LocateFindsContainingBoundary(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	n, err := store.ReplaceLayer(ctx, LayerCounty, []Boundary{
		squareBoundary(t, LayerCounty, "hennepin", "Hennepin", -93.8, 44.8, -93.2, 45.2),
		squareBoundary(t, LayerCounty, "ramsey", "Ramsey", -93.2, 44.9, -92.9, 45.1),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := store.Locate(ctx, LayerCounty, 45.0, -93.5)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "hennepin", got.ID)
	assert.Equal(t, "Hennepin", got.Name)

	got, err = store.Locate(ctx, LayerCounty, 45.0, -93.0)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "ramsey", got.ID)
}

func TestSQLiteStore_LocateOutsideReturnsNil(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.ReplaceLayer(ctx, LayerCounty, []Boundary{
		squareBoundary(t, LayerCounty, "hennepin", "Hennepin", -93.8, 44.8, -93.2, 45.2),
	})
	require.NoError(t, err)

	got, err := store.Locate(ctx, LayerCounty, 47.0, -91.0)
	require.NoError(t, err)
	assert.Nil(t, got)

	// Wrong layer misses even at a contained point.
	got, err = store.Locate(ctx, LayerCTU, 45.0, -93.5)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLiteStore_ReplaceLayerReplaces(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.ReplaceLayer(ctx, LayerCTU, []Boundary{
		squareBoundary(t, LayerCTU, "old", "Old Town", 0, 0, 1, 1),
	})
	require.NoError(t, err)

	_, err = store.ReplaceLayer(ctx, LayerCTU, []Boundary{
		squareBoundary(t, LayerCTU, "new", "New Town", 0, 0, 1, 1),
	})
	require.NoError(t, err)

	count, err := store.Count(ctx, LayerCTU)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	got, err := store.Get(ctx, LayerCTU, "old")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = store.Get(ctx, LayerCTU, "new")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "New Town", got.Name)
	assert.False(t, got.LoadedAt.IsZero())
}

func TestSQLiteStore_ListOrdersByName(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.ReplaceLayer(ctx, LayerCTU, []Boundary{
		squareBoundary(t, LayerCTU, "b", "Bemidji", 0, 0, 1, 1),
		squareBoundary(t, LayerCTU, "a", "Austin", 0, 0, 1, 1),
		squareBoundary(t, LayerCTU, "c", "Chaska", 0, 0, 1, 1),
	})
	require.NoError(t, err)

	list, err := store.List(ctx, LayerCTU, 2, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Austin", list[0].Name)
	assert.Equal(t, "Bemidji", list[1].Name)

	list, err = store.List(ctx, LayerCTU, 2, 2)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Chaska", list[0].Name)
}

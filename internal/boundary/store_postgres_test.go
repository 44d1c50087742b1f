package boundary

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var boundaryCols = []string{
	"layer", "id", "name", "county_name", "class", "population",
	"min_lng", "min_lat", "max_lng", "max_lat", "cent_lng", "cent_lat",
	"geom", "loaded_at",
}

func TestPostgresStore_Locate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	loaded := time.Now().UTC()
	mock.ExpectQuery(`SELECT .+ FROM boundaries .* ST_Contains`).
		WithArgs("county", -93.5, 45.0).
		WillReturnRows(pgxmock.NewRows(boundaryCols).AddRow(
			"county", "27053", "Hennepin", "Hennepin", "", int64(1280000),
			-93.8, 44.8, -93.2, 45.2, -93.5, 45.0,
			[]byte{0x01}, loaded,
		))

	store := NewPostgres(mock)
	got, err := store.Locate(context.Background(), LayerCounty, 45.0, -93.5)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, LayerCounty, got.Layer)
	assert.Equal(t, "27053", got.ID)
	assert.Equal(t, "Hennepin", got.Name)
	assert.Equal(t, int64(1280000), got.Population)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LocateNoMatchReturnsNil(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT .+ FROM boundaries`).
		WithArgs("ctu", 10.0, 10.0).
		WillReturnError(pgx.ErrNoRows)

	store := NewPostgres(mock)
	got, err := store.Locate(context.Background(), LayerCTU, 10.0, 10.0)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ReplaceLayer(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`DELETE FROM boundaries WHERE layer`).
		WithArgs("ctu").
		WillReturnResult(pgxmock.NewResult("DELETE", 3))
	mock.ExpectCopyFrom(pgx.Identifier{"boundaries"}, copyColumns).
		WillReturnResult(2)

	store := NewPostgres(mock)
	n, err := store.ReplaceLayer(context.Background(), LayerCTU, []Boundary{
		{Layer: LayerCTU, ID: "a", Name: "Ada", Geom: []byte{0x01}},
		{Layer: LayerCTU, ID: "b", Name: "Bemidji", Geom: []byte{0x01}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Count(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM boundaries`).
		WithArgs("county").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(87)))

	store := NewPostgres(mock)
	n, err := store.Count(context.Background(), LayerCounty)
	require.NoError(t, err)
	assert.Equal(t, int64(87), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

package boundary

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/loveofmn/mapkit/internal/db"
)

// PostgresStore implements Store against PostGIS. Containment queries
// run as ST_Contains in the database.
type PostgresStore struct {
	pool db.Pool
}

func NewPostgres(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS boundaries (
	layer       TEXT NOT NULL,
	id          TEXT NOT NULL,
	name        TEXT NOT NULL,
	county_name TEXT,
	class       TEXT,
	population  BIGINT,
	min_lng     DOUBLE PRECISION NOT NULL,
	min_lat     DOUBLE PRECISION NOT NULL,
	max_lng     DOUBLE PRECISION NOT NULL,
	max_lat     DOUBLE PRECISION NOT NULL,
	cent_lng    DOUBLE PRECISION NOT NULL,
	cent_lat    DOUBLE PRECISION NOT NULL,
	geom        GEOMETRY(MULTIPOLYGON, 4326) NOT NULL,
	loaded_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (layer, id)
);

CREATE INDEX IF NOT EXISTS idx_boundaries_geom ON boundaries USING GIST (geom);
CREATE INDEX IF NOT EXISTS idx_boundaries_name ON boundaries(layer, name);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "boundary: migrate postgres")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

var copyColumns = []string{
	"layer", "id", "name", "county_name", "class", "population",
	"min_lng", "min_lat", "max_lng", "max_lat", "cent_lng", "cent_lat",
	"geom", "loaded_at",
}

func (s *PostgresStore) ReplaceLayer(ctx context.Context, layer Layer, boundaries []Boundary) (int, error) {
	if _, err := s.pool.Exec(ctx, `DELETE FROM boundaries WHERE layer = $1`, string(layer)); err != nil {
		return 0, eris.Wrapf(err, "boundary: clear layer %s", layer)
	}

	now := time.Now().UTC()
	rows := make([][]any, 0, len(boundaries))
	for _, b := range boundaries {
		rows = append(rows, []any{
			string(layer), b.ID, b.Name, nullable(b.CountyName), nullable(b.Class), b.Population,
			b.MinLng, b.MinLat, b.MaxLng, b.MaxLat, b.CentLng, b.CentLat,
			b.Geom, now,
		})
	}

	n, err := db.CopyFrom(ctx, s.pool, "boundaries", copyColumns, rows)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

const postgresSelect = `
	SELECT layer, id, name, county_name, class, population,
	       min_lng, min_lat, max_lng, max_lat, cent_lng, cent_lat,
	       ST_AsEWKB(geom), loaded_at
	FROM boundaries
`

// Locate finds the boundary in a layer containing the given point.
func (s *PostgresStore) Locate(ctx context.Context, layer Layer, lat, lng float64) (*Boundary, error) {
	row := s.pool.QueryRow(ctx,
		postgresSelect+` WHERE layer = $1 AND ST_Contains(geom, ST_SetSRID(ST_MakePoint($2, $3), 4326)) LIMIT 1`,
		string(layer), lng, lat,
	)
	b, err := scanBoundary(row)
	if err != nil {
		if eris.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "boundary: locate")
	}
	return b, nil
}

func (s *PostgresStore) Get(ctx context.Context, layer Layer, id string) (*Boundary, error) {
	row := s.pool.QueryRow(ctx,
		postgresSelect+` WHERE layer = $1 AND id = $2`,
		string(layer), id,
	)
	b, err := scanBoundary(row)
	if err != nil {
		if eris.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "boundary: get %s/%s", layer, id)
	}
	return b, nil
}

func (s *PostgresStore) List(ctx context.Context, layer Layer, limit, offset int) ([]Boundary, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		postgresSelect+` WHERE layer = $1 ORDER BY name LIMIT $2 OFFSET $3`,
		string(layer), limit, offset,
	)
	if err != nil {
		return nil, eris.Wrap(err, "boundary: list query")
	}
	defer rows.Close()

	var out []Boundary
	for rows.Next() {
		b, err := scanBoundary(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, eris.Wrap(rows.Err(), "boundary: list rows")
}

func (s *PostgresStore) Count(ctx context.Context, layer Layer) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM boundaries WHERE layer = $1`, string(layer)).Scan(&n)
	if err != nil {
		return 0, eris.Wrap(err, "boundary: count")
	}
	return n, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

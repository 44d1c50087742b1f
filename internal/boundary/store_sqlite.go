package boundary

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/loveofmn/mapkit/internal/bounds"
)

// SQLiteStore implements Store using modernc.org/sqlite. Geometry stays
// EWKB in a BLOB column; containment is decided in Go after a bounding
// box prefilter.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "boundary: open sqlite")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "boundary: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS boundaries (
	layer       TEXT NOT NULL,
	id          TEXT NOT NULL,
	name        TEXT NOT NULL,
	county_name TEXT,
	class       TEXT,
	population  INTEGER,
	min_lng     REAL NOT NULL,
	min_lat     REAL NOT NULL,
	max_lng     REAL NOT NULL,
	max_lat     REAL NOT NULL,
	cent_lng    REAL NOT NULL,
	cent_lat    REAL NOT NULL,
	geom        BLOB NOT NULL,
	loaded_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (layer, id)
);

CREATE INDEX IF NOT EXISTS idx_boundaries_bbox ON boundaries(layer, min_lng, max_lng, min_lat, max_lat);
CREATE INDEX IF NOT EXISTS idx_boundaries_name ON boundaries(layer, name);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "boundary: migrate sqlite")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) ReplaceLayer(ctx context.Context, layer Layer, boundaries []Boundary) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "boundary: begin tx")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM boundaries WHERE layer = ?`, string(layer)); err != nil {
		return 0, eris.Wrapf(err, "boundary: clear layer %s", layer)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO boundaries
			(layer, id, name, county_name, class, population,
			 min_lng, min_lat, max_lng, max_lat, cent_lng, cent_lat, geom, loaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, eris.Wrap(err, "boundary: prepare insert")
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, b := range boundaries {
		_, err := stmt.ExecContext(ctx,
			string(layer), b.ID, b.Name, b.CountyName, b.Class, b.Population,
			b.MinLng, b.MinLat, b.MaxLng, b.MaxLat, b.CentLng, b.CentLat, b.Geom, now,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "boundary: insert %s/%s", layer, b.ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "boundary: commit")
	}
	return len(boundaries), nil
}

// Locate finds the boundary in a layer containing the given point. The
// bounding box prefilter runs in SQL; candidates are then tested
// against their decoded geometry.
func (s *SQLiteStore) Locate(ctx context.Context, layer Layer, lat, lng float64) (*Boundary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT layer, id, name, county_name, class, population,
		       min_lng, min_lat, max_lng, max_lat, cent_lng, cent_lat, geom, loaded_at
		FROM boundaries
		WHERE layer = ? AND min_lng <= ? AND max_lng >= ? AND min_lat <= ? AND max_lat >= ?`,
		string(layer), lng, lng, lat, lat,
	)
	if err != nil {
		return nil, eris.Wrap(err, "boundary: locate query")
	}
	defer rows.Close()

	for rows.Next() {
		b, err := scanBoundary(rows)
		if err != nil {
			return nil, err
		}
		ok, err := geomContains(b.Geom, lat, lng)
		if err != nil {
			zap.L().Debug("boundary: skipping undecodable geometry",
				zap.String("layer", string(b.Layer)),
				zap.String("id", b.ID),
				zap.Error(err),
			)
			continue
		}
		if ok {
			return b, nil
		}
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "boundary: locate rows")
	}
	return nil, nil
}

func (s *SQLiteStore) Get(ctx context.Context, layer Layer, id string) (*Boundary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT layer, id, name, county_name, class, population,
		       min_lng, min_lat, max_lng, max_lat, cent_lng, cent_lat, geom, loaded_at
		FROM boundaries WHERE layer = ? AND id = ?`,
		string(layer), id,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "boundary: get %s/%s", layer, id)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanBoundary(rows)
}

func (s *SQLiteStore) List(ctx context.Context, layer Layer, limit, offset int) ([]Boundary, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT layer, id, name, county_name, class, population,
		       min_lng, min_lat, max_lng, max_lat, cent_lng, cent_lat, geom, loaded_at
		FROM boundaries WHERE layer = ? ORDER BY name LIMIT ? OFFSET ?`,
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

func (s *SQLiteStore) Count(ctx context.Context, layer Layer) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM boundaries WHERE layer = ?`, string(layer)).Scan(&n)
	if err != nil {
		return 0, eris.Wrap(err, "boundary: count")
	}
	return n, nil
}

// scannable abstracts *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

func scanBoundary(row scannable) (*Boundary, error) {
	var b Boundary
	var layer string
	var countyName, class sql.NullString
	var population sql.NullInt64
	err := row.Scan(
		&layer, &b.ID, &b.Name, &countyName, &class, &population,
		&b.MinLng, &b.MinLat, &b.MaxLng, &b.MaxLat, &b.CentLng, &b.CentLat,
		&b.Geom, &b.LoadedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "boundary: scan row")
	}
	b.Layer = Layer(layer)
	b.CountyName = countyName.String
	b.Class = class.String
	b.Population = population.Int64
	return &b, nil
}

// geomContains decodes EWKB and tests point containment.
func geomContains(data []byte, lat, lng float64) (bool, error) {
	g, err := ewkb.Unmarshal(data)
	if err != nil {
		return false, eris.Wrap(err, "boundary: decode EWKB")
	}
	checker, err := bounds.NewPolygonChecker(g)
	if err != nil {
		return false, err
	}
	return checker.Contains(lat, lng), nil
}

package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/loveofmn/mapkit/internal/db"
	"github.com/loveofmn/mapkit/internal/mapctl"
	"github.com/loveofmn/mapkit/pkg/geocode"
)

// PostgresStore implements Store against PostgreSQL.
type PostgresStore struct {
	pool     db.Pool
	cacheTTL time.Duration
}

func NewPostgres(pool db.Pool, cacheTTL time.Duration) *PostgresStore {
	if cacheTTL <= 0 {
		cacheTTL = 30 * 24 * time.Hour
	}
	return &PostgresStore{pool: pool, cacheTTL: cacheTTL}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS sessions (
	id         UUID PRIMARY KEY,
	username   TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS clicks (
	id         UUID PRIMARY KEY,
	session_id UUID NOT NULL REFERENCES sessions(id),
	item_type  TEXT NOT NULL,
	item_id    TEXT,
	lat        DOUBLE PRECISION NOT NULL,
	lng        DOUBLE PRECISION NOT NULL,
	layer      TEXT,
	username   TEXT,
	clicked_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS geocode_cache (
	key        TEXT PRIMARY KEY,
	address    TEXT NOT NULL,
	source     TEXT NOT NULL,
	matched    BOOLEAN NOT NULL,
	cached_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_clicks_session_id ON clicks(session_id);
CREATE INDEX IF NOT EXISTS idx_geocode_cache_expires_at ON geocode_cache(expires_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "store: migrate postgres")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateSession(ctx context.Context, sessionID, username string) (*SessionRecord, error) {
	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	rec := &SessionRecord{
		ID:        sessionID,
		Username:  username,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sessions (id, username, created_at) VALUES ($1, $2, $3)`,
		rec.ID, rec.Username, rec.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "store: insert session")
	}
	return rec, nil
}

func (s *PostgresStore) GetSession(ctx context.Context, sessionID string) (*SessionRecord, error) {
	var rec SessionRecord
	err := s.pool.QueryRow(ctx,
		`SELECT id, COALESCE(username, ''), created_at FROM sessions WHERE id = $1`, sessionID,
	).Scan(&rec.ID, &rec.Username, &rec.CreatedAt)
	if eris.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "store: get session %s", sessionID)
	}
	return &rec, nil
}

func (s *PostgresStore) RecordClick(ctx context.Context, sessionID string, item mapctl.ClickedItem) error {
	clickedAt := item.ClickedAt
	if clickedAt.IsZero() {
		clickedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO clicks (id, session_id, item_type, item_id, lat, lng, layer, username, clicked_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		uuid.New().String(), sessionID, string(item.Type), item.ID,
		item.Lat, item.Lng, string(item.Layer), item.Username, clickedAt,
	)
	return eris.Wrapf(err, "store: insert click for session %s", sessionID)
}

func (s *PostgresStore) ListClicks(ctx context.Context, sessionID string, limit int) ([]mapctl.ClickedItem, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT item_type, COALESCE(item_id, ''), lat, lng, COALESCE(layer, ''), COALESCE(username, ''), clicked_at
		 FROM clicks WHERE session_id = $1 ORDER BY clicked_at, id LIMIT $2`,
		sessionID, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "store: list clicks")
	}
	defer rows.Close()

	var items []mapctl.ClickedItem
	for rows.Next() {
		var item mapctl.ClickedItem
		var itemType, layer string
		if err := rows.Scan(&itemType, &item.ID, &item.Lat, &item.Lng, &layer, &item.Username, &item.ClickedAt); err != nil {
			return nil, eris.Wrap(err, "store: scan click")
		}
		item.Type = mapctl.ItemType(itemType)
		item.Layer = mapctl.BoundaryLayer(layer)
		items = append(items, item)
	}
	return items, eris.Wrap(rows.Err(), "store: list clicks rows")
}

func (s *PostgresStore) GetAddress(ctx context.Context, key string) (*geocode.Result, error) {
	var res geocode.Result
	err := s.pool.QueryRow(ctx,
		`SELECT address, source, matched FROM geocode_cache WHERE key = $1 AND expires_at > now()`,
		key,
	).Scan(&res.Address, &res.Source, &res.Matched)
	if eris.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "store: get cached address")
	}
	return &res, nil
}

func (s *PostgresStore) PutAddress(ctx context.Context, key string, result *geocode.Result) error {
	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO geocode_cache (key, address, source, matched, cached_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (key) DO UPDATE SET
			address = EXCLUDED.address,
			source = EXCLUDED.source,
			matched = EXCLUDED.matched,
			cached_at = EXCLUDED.cached_at,
			expires_at = EXCLUDED.expires_at`,
		key, result.Address, result.Source, result.Matched, now, now.Add(s.cacheTTL),
	)
	return eris.Wrap(err, "store: put cached address")
}

func (s *PostgresStore) DeleteExpiredAddresses(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM geocode_cache WHERE expires_at <= now()`)
	if err != nil {
		return 0, eris.Wrap(err, "store: delete expired addresses")
	}
	return int(tag.RowsAffected()), nil
}

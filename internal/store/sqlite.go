package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/loveofmn/mapkit/internal/mapctl"
	"github.com/loveofmn/mapkit/pkg/geocode"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db       *sql.DB
	cacheTTL time.Duration
}

// NewSQLite opens a SQLite database at the given path and configures
// WAL mode. cacheTTL bounds how long geocode cache entries live.
func NewSQLite(dsn string, cacheTTL time.Duration) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "store: open sqlite")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "store: exec %s", pragma)
		}
	}
	if cacheTTL <= 0 {
		cacheTTL = 30 * 24 * time.Hour
	}
	return &SQLiteStore{db: db, cacheTTL: cacheTTL}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	username   TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS clicks (
	id         TEXT PRIMARY KEY,
	session_id TEXT NOT NULL REFERENCES sessions(id),
	item_type  TEXT NOT NULL,
	item_id    TEXT,
	lat        REAL NOT NULL,
	lng        REAL NOT NULL,
	layer      TEXT,
	username   TEXT,
	clicked_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS geocode_cache (
	key        TEXT PRIMARY KEY,
	address    TEXT NOT NULL,
	source     TEXT NOT NULL,
	matched    INTEGER NOT NULL,
	cached_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	expires_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_clicks_session_id ON clicks(session_id);
CREATE INDEX IF NOT EXISTS idx_geocode_cache_expires_at ON geocode_cache(expires_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "store: migrate sqlite")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateSession(ctx context.Context, sessionID, username string) (*SessionRecord, error) {
	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	rec := &SessionRecord{
		ID:        sessionID,
		Username:  username,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, username, created_at) VALUES (?, ?, ?)`,
		rec.ID, rec.Username, rec.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "store: insert session")
	}
	return rec, nil
}

func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*SessionRecord, error) {
	var rec SessionRecord
	var username sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, created_at FROM sessions WHERE id = ?`, sessionID,
	).Scan(&rec.ID, &username, &rec.CreatedAt)
	if eris.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "store: get session %s", sessionID)
	}
	rec.Username = username.String
	return &rec, nil
}

func (s *SQLiteStore) RecordClick(ctx context.Context, sessionID string, item mapctl.ClickedItem) error {
	clickedAt := item.ClickedAt
	if clickedAt.IsZero() {
		clickedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO clicks (id, session_id, item_type, item_id, lat, lng, layer, username, clicked_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), sessionID, string(item.Type), item.ID,
		item.Lat, item.Lng, string(item.Layer), item.Username, clickedAt,
	)
	return eris.Wrapf(err, "store: insert click for session %s", sessionID)
}

func (s *SQLiteStore) ListClicks(ctx context.Context, sessionID string, limit int) ([]mapctl.ClickedItem, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT item_type, item_id, lat, lng, layer, username, clicked_at
		 FROM clicks WHERE session_id = ? ORDER BY clicked_at, id LIMIT ?`,
		sessionID, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "store: list clicks")
	}
	defer rows.Close()

	var items []mapctl.ClickedItem
	for rows.Next() {
		var item mapctl.ClickedItem
		var itemType, itemID, layer, username sql.NullString
		if err := rows.Scan(&itemType, &itemID, &item.Lat, &item.Lng, &layer, &username, &item.ClickedAt); err != nil {
			return nil, eris.Wrap(err, "store: scan click")
		}
		item.Type = mapctl.ItemType(itemType.String)
		item.ID = itemID.String
		item.Layer = mapctl.BoundaryLayer(layer.String)
		item.Username = username.String
		items = append(items, item)
	}
	return items, eris.Wrap(rows.Err(), "store: list clicks rows")
}

func (s *SQLiteStore) GetAddress(ctx context.Context, key string) (*geocode.Result, error) {
	var res geocode.Result
	var matched int
	err := s.db.QueryRowContext(ctx,
		`SELECT address, source, matched FROM geocode_cache WHERE key = ? AND expires_at > ?`,
		key, time.Now().UTC(),
	).Scan(&res.Address, &res.Source, &matched)
	if eris.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "store: get cached address")
	}
	res.Matched = matched != 0
	return &res, nil
}

func (s *SQLiteStore) PutAddress(ctx context.Context, key string, result *geocode.Result) error {
	now := time.Now().UTC()
	matched := 0
	if result.Matched {
		matched = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO geocode_cache (key, address, source, matched, cached_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
			address = excluded.address,
			source = excluded.source,
			matched = excluded.matched,
			cached_at = excluded.cached_at,
			expires_at = excluded.expires_at`,
		key, result.Address, result.Source, matched, now, now.Add(s.cacheTTL),
	)
	return eris.Wrap(err, "store: put cached address")
}

func (s *SQLiteStore) DeleteExpiredAddresses(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM geocode_cache WHERE expires_at <= ?`, time.Now().UTC(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "store: delete expired addresses")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "store: rows affected")
	}
	return int(n), nil
}

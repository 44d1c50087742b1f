// Package store persists map sessions, their click histories, and the
// reverse-geocode address cache.
package store

import (
	"context"
	"time"

	"github.com/loveofmn/mapkit/internal/mapctl"
	"github.com/loveofmn/mapkit/pkg/geocode"
)

// SessionRecord is a persisted map session.
type SessionRecord struct {
	ID        string    `json:"id"`
	Username  string    `json:"username,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Store defines the persistence interface for the interaction layer.
// GetSession returns nil, nil when the session does not exist. The
// geocode cache methods satisfy geocode.Cache so a store can back the
// reverse geocoder directly.
type Store interface {
	// Sessions and clicks
	CreateSession(ctx context.Context, sessionID, username string) (*SessionRecord, error)
	GetSession(ctx context.Context, sessionID string) (*SessionRecord, error)
	RecordClick(ctx context.Context, sessionID string, item mapctl.ClickedItem) error
	ListClicks(ctx context.Context, sessionID string, limit int) ([]mapctl.ClickedItem, error)

	// Geocode cache
	GetAddress(ctx context.Context, key string) (*geocode.Result, error)
	PutAddress(ctx context.Context, key string, result *geocode.Result) error
	DeleteExpiredAddresses(ctx context.Context) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

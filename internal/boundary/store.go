package boundary

import "context"

// Store defines the persistence interface for boundary geometries.
// Locate and Get return nil, nil when nothing matches.
type Store interface {
	ReplaceLayer(ctx context.Context, layer Layer, boundaries []Boundary) (int, error)
	Locate(ctx context.Context, layer Layer, lat, lng float64) (*Boundary, error)
	Get(ctx context.Context, layer Layer, id string) (*Boundary, error)
	List(ctx context.Context, layer Layer, limit, offset int) ([]Boundary, error)
	Count(ctx context.Context, layer Layer) (int64, error)

	Migrate(ctx context.Context) error
	Close() error
}

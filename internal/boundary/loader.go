package boundary

import (
	"context"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// SourceFile pairs a boundary data file with the layer it populates.
// Shapefiles (.shp) and GeoJSON (.geojson, .json) are supported.
type SourceFile struct {
	Path  string `json:"path"`
	Layer Layer  `json:"layer"`
}

// Loader parses boundary source files and replaces layer contents in a
// store.
type Loader struct {
	store       Store
	concurrency int
}

func NewLoader(store Store, concurrency int) *Loader {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Loader{store: store, concurrency: concurrency}
}

// Load parses all sources concurrently, then replaces each layer in the
// store with the combined records parsed for it. A layer with no
// successfully parsed records is left untouched.
func (l *Loader) Load(ctx context.Context, sources []SourceFile) (int, error) {
	var mu sync.Mutex
	byLayer := make(map[Layer][]Boundary)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)

	for _, src := range sources {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if !ValidLayer(string(src.Layer)) {
				return eris.Errorf("boundary: unknown layer %q for %s", src.Layer, src.Path)
			}

			records, err := parseSource(src)
			if err != nil {
				return err
			}
			zap.L().Info("boundary: parsed source",
				zap.String("path", src.Path),
				zap.String("layer", string(src.Layer)),
				zap.Int("records", len(records)),
			)

			mu.Lock()
			byLayer[src.Layer] = append(byLayer[src.Layer], records...)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return 0, err
	}

	var total int
	for layer, records := range byLayer {
		if len(records) == 0 {
			continue
		}
		n, err := l.store.ReplaceLayer(ctx, layer, records)
		if err != nil {
			return total, err
		}
		zap.L().Info("boundary: loaded layer",
			zap.String("layer", string(layer)),
			zap.Int("records", n),
		)
		total += n
	}
	return total, nil
}

func parseSource(src SourceFile) ([]Boundary, error) {
	switch strings.ToLower(filepath.Ext(src.Path)) {
	case ".shp":
		return ParseShapefile(src.Path, src.Layer)
	case ".geojson", ".json":
		return ParseGeoJSON(src.Path, src.Layer)
	default:
		return nil, eris.Errorf("boundary: unsupported source format %s", src.Path)
	}
}

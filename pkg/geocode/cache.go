package geocode

import (
	"context"
	"crypto/sha256"
	"fmt"

	"go.uber.org/zap"
)

// Cache stores reverse geocode results keyed by coordinate hash. A miss is
// (nil, nil). Implementations may enforce a TTL.
type Cache interface {
	GetAddress(ctx context.Context, key string) (*Result, error)
	PutAddress(ctx context.Context, key string, result *Result) error
}

// CacheKey returns SHA-256 hex of the coordinate rounded to 5 decimal
// places (~1 m), so clicks on the same spot reuse the cached address.
func CacheKey(lat, lng float64) string {
	normalized := fmt.Sprintf("%.5f|%.5f", lat, lng)
	h := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("%x", h)
}

// cachedClient wraps a Client with a read-through cache. Non-matches are
// cached too, so repeated clicks on unmappable spots skip the providers.
type cachedClient struct {
	client Client
	cache  Cache
}

// NewCached wraps client with cache. Cache failures fall through to the
// underlying client and are logged at debug level only.
func NewCached(client Client, cache Cache) Client {
	return &cachedClient{client: client, cache: cache}
}

func (c *cachedClient) ReverseGeocode(ctx context.Context, lat, lng float64) (*Result, error) {
	key := CacheKey(lat, lng)

	if cached, err := c.cache.GetAddress(ctx, key); err != nil {
		zap.L().Debug("geocode cache lookup failed", zap.Error(err))
	} else if cached != nil {
		zap.L().Debug("geocode cache hit",
			zap.String("key", key[:12]),
			zap.Bool("matched", cached.Matched),
		)
		return cached, nil
	}

	result, err := c.client.ReverseGeocode(ctx, lat, lng)
	if err != nil {
		return nil, err
	}

	if putErr := c.cache.PutAddress(ctx, key, result); putErr != nil {
		zap.L().Debug("geocode cache store failed", zap.Error(putErr))
	}
	return result, nil
}

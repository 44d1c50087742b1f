package mapctl

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// ReverseGeocoder converts a coordinate to a display address. An empty
// address with a nil error means the provider had no match.
type ReverseGeocoder interface {
	ReverseGeocode(ctx context.Context, lat, lng float64) (string, error)
}

// Resolver runs reverse-geocode lookups with a latest-request-wins
// discipline: every new Resolve call supersedes the previous one, and a
// superseded result is discarded when it eventually arrives. Cancellation
// is "ignore stale result", not "abort the network request".
type Resolver struct {
	mu       sync.Mutex
	gen      uint64
	geocoder ReverseGeocoder
	wg       sync.WaitGroup
}

// NewResolver returns a resolver over the given geocoder.
func NewResolver(g ReverseGeocoder) *Resolver {
	return &Resolver{geocoder: g}
}

// Resolve starts an asynchronous lookup for (lat, lng). When the lookup
// completes and no newer request has been issued meanwhile, apply is called
// with the coordinates and resolved address. Provider failures resolve to
// no address at all: apply is never called and the error is logged at
// debug level only.
func (r *Resolver) Resolve(ctx context.Context, lat, lng float64, apply func(lat, lng float64, address string)) {
	r.mu.Lock()
	r.gen++
	gen := r.gen
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		address, err := r.geocoder.ReverseGeocode(ctx, lat, lng)
		if err != nil {
			zap.L().Debug("reverse geocode failed",
				zap.Float64("lat", lat),
				zap.Float64("lng", lng),
				zap.Error(err),
			)
			return
		}
		if address == "" {
			return
		}

		r.mu.Lock()
		stale := gen != r.gen
		r.mu.Unlock()
		if stale {
			return
		}

		apply(lat, lng, address)
	}()
}

// Wait blocks until all in-flight lookups have completed. Test and
// teardown helper; superseded lookups still count until they return.
func (r *Resolver) Wait() {
	r.wg.Wait()
}

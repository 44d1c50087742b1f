package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/loveofmn/mapkit/internal/boundary"
	"github.com/loveofmn/mapkit/internal/bounds"
	"github.com/loveofmn/mapkit/internal/db"
	"github.com/loveofmn/mapkit/internal/mapctl"
	"github.com/loveofmn/mapkit/internal/store"
	"github.com/loveofmn/mapkit/pkg/geocode"
)

// env bundles the wired backends shared by the serve, boundaries, and
// geocode commands.
type env struct {
	Store      store.Store
	Boundaries boundary.Store
	Geocoder   geocode.Client
	Bounds     mapctl.BoundsChecker
}

func initEnv(ctx context.Context) (*env, error) {
	st, bst, err := openStores(ctx)
	if err != nil {
		return nil, err
	}

	checker, err := newBoundsChecker()
	if err != nil {
		st.Close()
		bst.Close()
		return nil, err
	}

	return &env{
		Store:      st,
		Boundaries: bst,
		Geocoder:   newGeocoder(st),
		Bounds:     checker,
	}, nil
}

func (e *env) Close() {
	if err := e.Store.Close(); err != nil {
		zap.L().Warn("close store", zap.Error(err))
	}
	if err := e.Boundaries.Close(); err != nil {
		zap.L().Warn("close boundary store", zap.Error(err))
	}
}

// openStores opens the session and boundary stores on the configured
// backend and runs migrations.
func openStores(ctx context.Context) (store.Store, boundary.Store, error) {
	ttl := time.Duration(cfg.Geocode.CacheTTLHours) * time.Hour

	var st store.Store
	var bst boundary.Store

	switch cfg.Store.Driver {
	case "postgres":
		pool, err := db.Connect(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		st = store.NewPostgres(pool, ttl)
		bst = boundary.NewPostgres(pool)

	case "sqlite", "":
		var err error
		st, err = store.NewSQLite(cfg.Store.DatabaseURL, ttl)
		if err != nil {
			return nil, nil, err
		}
		bst, err = boundary.NewSQLite(cfg.Store.DatabaseURL)
		if err != nil {
			st.Close()
			return nil, nil, err
		}

	default:
		return nil, nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	if err := st.Migrate(ctx); err != nil {
		return nil, nil, err
	}
	if err := bst.Migrate(ctx); err != nil {
		return nil, nil, err
	}
	return st, bst, nil
}

// newGeocoder builds the provider chain and backs it with the store's
// address cache.
func newGeocoder(cache geocode.Cache) geocode.Client {
	return geocode.NewCached(newUncachedGeocoder(), cache)
}

func newUncachedGeocoder() geocode.Client {
	return geocode.NewClient(
		geocode.WithBaseURL(cfg.Geocode.NominatimURL),
		geocode.WithUserAgent(cfg.Geocode.UserAgent),
		geocode.WithGoogleAPIKey(cfg.Geocode.GoogleAPIKey),
		geocode.WithRateLimit(cfg.Geocode.RateLimit),
	)
}

// newBoundsChecker prefers a polygon service area when configured and
// falls back to the configured bounding box.
func newBoundsChecker() (mapctl.BoundsChecker, error) {
	if cfg.Bounds.GeoJSONPath != "" {
		checker, err := bounds.LoadGeoJSON(cfg.Bounds.GeoJSONPath)
		if err != nil {
			return nil, err
		}
		return checker, nil
	}
	return bounds.BoxChecker{
		MinLat: cfg.Bounds.MinLat,
		MinLng: cfg.Bounds.MinLng,
		MaxLat: cfg.Bounds.MaxLat,
		MaxLng: cfg.Bounds.MaxLng,
	}, nil
}

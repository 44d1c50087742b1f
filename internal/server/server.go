// Package server exposes the click-resolution layer over HTTP. The map
// itself renders on the client; clients post click events carrying
// the pointer position, zoom, and nearby rendered features, and read
// back the camera, marker, and popup effects to apply.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/loveofmn/mapkit/internal/boundary"
	"github.com/loveofmn/mapkit/internal/config"
	"github.com/loveofmn/mapkit/internal/mapctl"
	"github.com/loveofmn/mapkit/internal/store"
	"github.com/loveofmn/mapkit/pkg/geocode"
)

// Server wires the HTTP surface over the dispatcher, stores, and
// geocoder.
type Server struct {
	cfg        config.Config
	store      store.Store
	boundaries boundary.Store
	geocoder   geocode.Client
	bounds     mapctl.BoundsChecker
	bus        *mapctl.Bus
	sessions   *registry
}

// New builds a server. boundaries may be nil when no boundary data has
// been loaded; the boundary endpoints then report 503.
func New(cfg config.Config, st store.Store, boundaries boundary.Store, geocoder geocode.Client, bounds mapctl.BoundsChecker) *Server {
	return &Server{
		cfg:        cfg,
		store:      st,
		boundaries: boundaries,
		geocoder:   geocoder,
		bounds:     bounds,
		bus:        mapctl.NewBus(),
		sessions:   newRegistry(),
	}
}

// Bus exposes the controller event bus for subscribers.
func (s *Server) Bus() *mapctl.Bus { return s.bus }

// Router assembles the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.Server.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/sessions", s.handleCreateSession)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Delete("/", s.handleDeleteSession)
			r.Post("/clicks", s.handleClick)
			r.Get("/history", s.handleHistory)
			r.Get("/popup", s.handleGetPopup)
			r.Delete("/popup", s.handleDismissPopup)
			r.Get("/selection", s.handleGetSelection)
			r.Post("/selection", s.handleSelectBoundary)
			r.Delete("/selection", s.handleClearSelection)
			r.Post("/loading", s.handleLoading)
		})
		r.Get("/geocode/reverse", s.handleReverseGeocode)
		r.Route("/boundaries/{layer}", func(r chi.Router) {
			r.Get("/", s.handleListBoundaries)
			r.Get("/locate", s.handleLocateBoundary)
		})
	})

	return r
}

// addressGeocoder adapts geocode.Client to the resolver interface. An
// unmatched result yields an empty address, which the resolver drops.
type addressGeocoder struct {
	client geocode.Client
}

func (g addressGeocoder) ReverseGeocode(ctx context.Context, lat, lng float64) (string, error) {
	res, err := g.client.ReverseGeocode(ctx, lat, lng)
	if err != nil {
		return "", err
	}
	return res.Address, nil
}

func (s *Server) dispatchConfig() mapctl.Config {
	cfg := mapctl.DefaultConfig()
	m := s.cfg.Map
	if m.DebounceMs > 0 {
		cfg.DebounceWindow = m.DebounceWindow()
	}
	if m.HitTolerancePx > 0 {
		cfg.HitTolerancePx = m.HitTolerancePx
	}
	if m.MinZoom > 0 {
		cfg.MinZoom = m.MinZoom
	}
	if m.ZoomStep > 0 {
		cfg.ZoomStep = m.ZoomStep
	}
	if m.FlyDurationMs > 0 {
		cfg.FlyDuration = m.FlyDuration()
	}
	if len(m.InteractiveLayers) > 0 {
		cfg.InteractiveLayers = m.InteractiveLayers
	}
	return cfg
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type sessionResponse struct {
	ID        string                    `json:"id"`
	Username  string                    `json:"username,omitempty"`
	CreatedAt time.Time                 `json:"created_at"`
	Ready     bool                      `json:"ready"`
	Popup     mapctl.Popup              `json:"popup"`
	Selection *mapctl.BoundarySelection `json:"selection,omitempty"`
	History   int                       `json:"history_len"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
	}
	if r.Body != nil {
		// An empty body is a valid anonymous session.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	rs := s.sessions.create(req.Username, s.dispatchConfig(), s.bounds, addressGeocoder{client: s.geocoder}, s.bus)

	if _, err := s.store.CreateSession(r.Context(), rs.session.ID(), req.Username); err != nil {
		s.sessions.remove(rs.session.ID())
		respondError(w, http.StatusInternalServerError, "failed to persist session")
		zap.L().Error("server: persist session", zap.Error(err))
		return
	}

	respondJSON(w, http.StatusCreated, s.sessionResponse(rs))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	rs := s.sessions.get(chi.URLParam(r, "id"))
	if rs == nil {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}
	respondJSON(w, http.StatusOK, s.sessionResponse(rs))
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	rs := s.sessions.remove(chi.URLParam(r, "id"))
	if rs == nil {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}
	rs.dispatcher.Cleanup()
	rs.renderer.teardown()
	w.WriteHeader(http.StatusNoContent)
}

type clickFeature struct {
	Layer       string         `json:"layer"`
	SourceLayer string         `json:"source_layer,omitempty"`
	Properties  map[string]any `json:"properties,omitempty"`
}

type clickRequest struct {
	Lng           float64        `json:"lng"`
	Lat           float64        `json:"lat"`
	Point         mapctl.Point   `json:"point"`
	Zoom          float64        `json:"zoom"`
	Features      []clickFeature `json:"features,omitempty"`
	ClicksEnabled *bool          `json:"clicks_enabled,omitempty"`
}

type clickResponse struct {
	Outcome mapctl.Outcome `json:"outcome"`
	Marker  *Marker        `json:"marker,omitempty"`
	FlyTo   *Flight        `json:"fly_to,omitempty"`
	Popup   mapctl.Popup   `json:"popup"`
}

func (s *Server) handleClick(w http.ResponseWriter, r *http.Request) {
	rs := s.sessions.get(chi.URLParam(r, "id"))
	if rs == nil {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}

	var req clickRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.ClicksEnabled != nil {
		rs.setClicksEnabled(*req.ClicksEnabled)
	}

	features := make([]mapctl.Feature, 0, len(req.Features))
	for _, f := range req.Features {
		features = append(features, mapctl.Feature{
			Layer:       f.Layer,
			SourceLayer: f.SourceLayer,
			Properties:  f.Properties,
		})
	}
	rs.renderer.prepare(req.Zoom, req.Point, features)

	before := len(rs.session.History())

	// The geocode continues after this handler returns; detach it from
	// the request lifetime.
	ev := mapctl.ClickEvent{
		Point:  req.Point,
		LngLat: mapctl.LngLat{Lng: req.Lng, Lat: req.Lat},
		Time:   time.Now().UTC(),
	}
	outcome := rs.dispatcher.HandleClick(context.WithoutCancel(r.Context()), ev)

	s.persistNewClicks(r.Context(), rs, before)

	respondJSON(w, http.StatusOK, clickResponse{
		Outcome: outcome,
		Marker:  rs.renderer.currentMarker(),
		FlyTo:   rs.renderer.takeFlight(),
		Popup:   rs.session.Popup(),
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if rs := s.sessions.get(id); rs != nil {
		respondJSON(w, http.StatusOK, map[string]any{"items": rs.session.History()})
		return
	}

	// Fall back to persisted history for sessions no longer live.
	items, err := s.store.ListClicks(r.Context(), id, parseIntParam(r, "limit", 0))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to read history")
		zap.L().Error("server: list clicks", zap.String("session", id), zap.Error(err))
		return
	}
	if items == nil {
		rec, err := s.store.GetSession(r.Context(), id)
		if err == nil && rec == nil {
			respondError(w, http.StatusNotFound, "session not found")
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handleGetPopup(w http.ResponseWriter, r *http.Request) {
	rs := s.sessions.get(chi.URLParam(r, "id"))
	if rs == nil {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}
	respondJSON(w, http.StatusOK, rs.session.Popup())
}

func (s *Server) handleDismissPopup(w http.ResponseWriter, r *http.Request) {
	rs := s.sessions.get(chi.URLParam(r, "id"))
	if rs == nil {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}
	rs.dispatcher.DismissPopup()
	respondJSON(w, http.StatusOK, rs.session.Popup())
}

func (s *Server) handleGetSelection(w http.ResponseWriter, r *http.Request) {
	rs := s.sessions.get(chi.URLParam(r, "id"))
	if rs == nil {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"selection": rs.session.Selection()})
}

type selectionRequest struct {
	Layer string  `json:"layer"`
	ID    string  `json:"id,omitempty"`
	Lat   float64 `json:"lat,omitempty"`
	Lng   float64 `json:"lng,omitempty"`
}

func (s *Server) handleSelectBoundary(w http.ResponseWriter, r *http.Request) {
	rs := s.sessions.get(chi.URLParam(r, "id"))
	if rs == nil {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}
	if s.boundaries == nil {
		respondError(w, http.StatusServiceUnavailable, "boundary data not loaded")
		return
	}

	var req selectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !boundary.ValidLayer(req.Layer) {
		respondError(w, http.StatusBadRequest, "unknown boundary layer")
		return
	}

	layer := boundary.Layer(req.Layer)
	var b *boundary.Boundary
	var err error
	if req.ID != "" {
		b, err = s.boundaries.Get(r.Context(), layer, req.ID)
	} else {
		b, err = s.boundaries.Locate(r.Context(), layer, req.Lat, req.Lng)
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "boundary lookup failed")
		zap.L().Error("server: boundary lookup", zap.Error(err))
		return
	}
	if b == nil {
		respondError(w, http.StatusNotFound, "no boundary at location")
		return
	}

	before := len(rs.session.History())
	rs.dispatcher.SelectBoundary(mapctl.BoundaryLayer(b.Layer), b.ID, b.Name, b.CentLat, b.CentLng)
	s.persistNewClicks(r.Context(), rs, before)

	respondJSON(w, http.StatusOK, map[string]any{"selection": rs.session.Selection()})
}

func (s *Server) handleClearSelection(w http.ResponseWriter, r *http.Request) {
	rs := s.sessions.get(chi.URLParam(r, "id"))
	if rs == nil {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}
	rs.session.ClearSelection()
	respondJSON(w, http.StatusOK, map[string]any{"selection": nil})
}

func (s *Server) handleLoading(w http.ResponseWriter, r *http.Request) {
	rs := s.sessions.get(chi.URLParam(r, "id"))
	if rs == nil {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}

	var req struct {
		Name    string `json:"name"`
		Loading bool   `json:"loading"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	rs.session.SetLoading(req.Name, req.Loading)
	respondJSON(w, http.StatusOK, map[string]bool{"ready": rs.session.Ready()})
}

func (s *Server) handleReverseGeocode(w http.ResponseWriter, r *http.Request) {
	lat, err1 := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lng, err2 := strconv.ParseFloat(r.URL.Query().Get("lng"), 64)
	if err1 != nil || err2 != nil {
		respondError(w, http.StatusBadRequest, "lat and lng are required")
		return
	}

	res, err := s.geocoder.ReverseGeocode(r.Context(), lat, lng)
	if err != nil {
		respondError(w, http.StatusBadGateway, "reverse geocode failed")
		zap.L().Warn("server: reverse geocode", zap.Float64("lat", lat), zap.Float64("lng", lng), zap.Error(err))
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleListBoundaries(w http.ResponseWriter, r *http.Request) {
	if s.boundaries == nil {
		respondError(w, http.StatusServiceUnavailable, "boundary data not loaded")
		return
	}
	layer := chi.URLParam(r, "layer")
	if !boundary.ValidLayer(layer) {
		respondError(w, http.StatusBadRequest, "unknown boundary layer")
		return
	}

	list, err := s.boundaries.List(r.Context(), boundary.Layer(layer),
		parseIntParam(r, "limit", 100), parseIntParam(r, "offset", 0))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "boundary list failed")
		zap.L().Error("server: list boundaries", zap.String("layer", layer), zap.Error(err))
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"boundaries": list})
}

func (s *Server) handleLocateBoundary(w http.ResponseWriter, r *http.Request) {
	if s.boundaries == nil {
		respondError(w, http.StatusServiceUnavailable, "boundary data not loaded")
		return
	}
	layer := chi.URLParam(r, "layer")
	if !boundary.ValidLayer(layer) {
		respondError(w, http.StatusBadRequest, "unknown boundary layer")
		return
	}
	lat, err1 := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lng, err2 := strconv.ParseFloat(r.URL.Query().Get("lng"), 64)
	if err1 != nil || err2 != nil {
		respondError(w, http.StatusBadRequest, "lat and lng are required")
		return
	}

	b, err := s.boundaries.Locate(r.Context(), boundary.Layer(layer), lat, lng)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "boundary lookup failed")
		zap.L().Error("server: locate boundary", zap.String("layer", layer), zap.Error(err))
		return
	}
	if b == nil {
		respondError(w, http.StatusNotFound, "no boundary at location")
		return
	}
	respondJSON(w, http.StatusOK, b)
}

func (s *Server) sessionResponse(rs *runtimeSession) sessionResponse {
	return sessionResponse{
		ID:        rs.session.ID(),
		Username:  rs.username,
		CreatedAt: rs.session.CreatedAt(),
		Ready:     rs.session.Ready(),
		Popup:     rs.session.Popup(),
		Selection: rs.session.Selection(),
		History:   len(rs.session.History()),
	}
}

// persistNewClicks writes history items appended since before to the
// store. Persistence failures are logged, not surfaced: the in-memory
// session remains authoritative for the live interaction.
func (s *Server) persistNewClicks(ctx context.Context, rs *runtimeSession, before int) {
	history := rs.session.History()
	for _, item := range history[before:] {
		if err := s.store.RecordClick(ctx, rs.session.ID(), item); err != nil {
			zap.L().Warn("server: persist click", zap.String("session", rs.session.ID()), zap.Error(err))
		}
	}
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("server: encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

func parseIntParam(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

package server

import (
	"sync"

	"github.com/loveofmn/mapkit/internal/mapctl"
)

// runtimeSession bundles the live state behind one session id: the
// session itself, the renderer fed by click requests, and the
// dispatcher routing clicks into both.
type runtimeSession struct {
	session    *mapctl.Session
	renderer   *stateRenderer
	dispatcher *mapctl.Dispatcher
	resolver   *mapctl.Resolver
	username   string

	mu       sync.Mutex
	settings mapctl.MapSettings
}

func (rs *runtimeSession) setClicksEnabled(enabled bool) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.settings.ClicksEnabled = enabled
}

func (rs *runtimeSession) context() mapctl.DispatchContext {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return mapctl.DispatchContext{
		Renderer: rs.renderer,
		Session:  rs.session,
		Settings: rs.settings,
		Username: rs.username,
	}
}

// registry holds the live sessions by id.
type registry struct {
	mu       sync.Mutex
	sessions map[string]*runtimeSession
}

func newRegistry() *registry {
	return &registry{sessions: make(map[string]*runtimeSession)}
}

// create builds a runtime session. Each session gets its own resolver
// so latest-request-wins geocode suppression never crosses sessions.
func (r *registry) create(username string, cfg mapctl.Config, bounds mapctl.BoundsChecker, geocoder mapctl.ReverseGeocoder, bus *mapctl.Bus) *runtimeSession {
	rs := &runtimeSession{
		session:  mapctl.NewSession(),
		renderer: &stateRenderer{},
		username: username,
		settings: mapctl.MapSettings{ClicksEnabled: true},
	}
	rs.resolver = mapctl.NewResolver(geocoder)
	rs.dispatcher = mapctl.NewDispatcher(cfg, rs.context, bounds, rs.resolver, bus)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[rs.session.ID()] = rs
	return rs
}

func (r *registry) get(id string) *runtimeSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[id]
}

func (r *registry) remove(id string) *runtimeSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	rs := r.sessions[id]
	delete(r.sessions, id)
	return rs
}

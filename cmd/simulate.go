package main

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/loveofmn/mapkit/internal/mapctl"
	"github.com/loveofmn/mapkit/pkg/geocode"
)

var simulateOffline bool

// clickScript is the YAML input for the simulate command.
type clickScript struct {
	Username      string        `yaml:"username"`
	ClicksEnabled *bool         `yaml:"clicks_enabled"`
	Zoom          float64       `yaml:"zoom"`
	Events        []scriptEvent `yaml:"events"`
}

type scriptEvent struct {
	Type     string          `yaml:"type"` // click, dismiss, select
	Lat      float64         `yaml:"lat"`
	Lng      float64         `yaml:"lng"`
	Features []scriptFeature `yaml:"features"`
	Layer    string          `yaml:"layer"`
	ID       string          `yaml:"id"`
	Name     string          `yaml:"name"`
}

type scriptFeature struct {
	Layer      string         `yaml:"layer"`
	Properties map[string]any `yaml:"properties"`
}

// simReport is what the command prints after the replay.
type simReport struct {
	Outcomes  []string                  `yaml:"outcomes"`
	History   []mapctl.ClickedItem      `yaml:"history"`
	Selection *mapctl.BoundarySelection `yaml:"selection,omitempty"`
	Popup     mapctl.Popup              `yaml:"popup"`
	Flights   []simFlight               `yaml:"flights"`
	Marker    *simMarker                `yaml:"marker,omitempty"`
}

type simFlight struct {
	Lng  float64 `yaml:"lng"`
	Lat  float64 `yaml:"lat"`
	Zoom float64 `yaml:"zoom"`
}

type simMarker struct {
	Lng float64 `yaml:"lng"`
	Lat float64 `yaml:"lat"`
}

var simulateCmd = &cobra.Command{
	Use:   "simulate <script.yaml>",
	Short: "Replay a click script and print the resulting session state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return eris.Wrapf(err, "read script %s", args[0])
		}
		var script clickScript
		if err := yaml.Unmarshal(data, &script); err != nil {
			return eris.Wrapf(err, "parse script %s", args[0])
		}

		var geocoder geocode.Client
		if simulateOffline {
			geocoder = offlineGeocoder{}
		} else {
			env, err := initEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer env.Close()
			geocoder = env.Geocoder
		}

		checker, err := newBoundsChecker()
		if err != nil {
			return err
		}

		report, err := runScript(cmd.Context(), script, geocoder, checker)
		if err != nil {
			return err
		}

		out, err := yaml.Marshal(report)
		if err != nil {
			return eris.Wrap(err, "encode report")
		}
		fmt.Print(string(out))
		return nil
	},
}

func runScript(ctx context.Context, script clickScript, geocoder geocode.Client, checker mapctl.BoundsChecker) (*simReport, error) {
	session := mapctl.NewSession()
	renderer := newSimRenderer(script.Zoom)

	settings := mapctl.MapSettings{ClicksEnabled: true}
	if script.ClicksEnabled != nil {
		settings.ClicksEnabled = *script.ClicksEnabled
	}

	resolver := mapctl.NewResolver(scriptGeocoder{client: geocoder})
	dispatcher := mapctl.NewDispatcher(dispatchConfig(), func() mapctl.DispatchContext {
		return mapctl.DispatchContext{
			Renderer: renderer,
			Session:  session,
			Settings: settings,
			Username: script.Username,
		}
	}, checker, resolver, nil)

	report := &simReport{}
	base := time.Now().UTC()

	for i, ev := range script.Events {
		switch ev.Type {
		case "click":
			features := make([]mapctl.Feature, 0, len(ev.Features))
			for _, f := range ev.Features {
				features = append(features, mapctl.Feature{Layer: f.Layer, Properties: f.Properties})
			}
			renderer.setFeatures(features)
			outcome := dispatcher.HandleClick(ctx, mapctl.ClickEvent{
				LngLat: mapctl.LngLat{Lng: ev.Lng, Lat: ev.Lat},
				// Space scripted clicks past the debounce window.
				Time: base.Add(time.Duration(i) * time.Second),
			})
			report.Outcomes = append(report.Outcomes, string(outcome))

		case "dismiss":
			dispatcher.DismissPopup()
			report.Outcomes = append(report.Outcomes, "dismissed")

		case "select":
			dispatcher.SelectBoundary(mapctl.BoundaryLayer(ev.Layer), ev.ID, ev.Name, ev.Lat, ev.Lng)
			report.Outcomes = append(report.Outcomes, "selected")

		default:
			return nil, eris.Errorf("unknown event type %q", ev.Type)
		}
	}

	// Let in-flight geocodes land before reporting.
	resolver.Wait()

	report.History = session.History()
	report.Selection = session.Selection()
	report.Popup = session.Popup()
	report.Flights = renderer.flightLog()
	if pos, ok := dispatcher.Markers().Position(); ok {
		report.Marker = &simMarker{Lng: pos.Lng, Lat: pos.Lat}
	}
	return report, nil
}

// scriptGeocoder adapts geocode.Client to the resolver.
type scriptGeocoder struct {
	client geocode.Client
}

func (g scriptGeocoder) ReverseGeocode(ctx context.Context, lat, lng float64) (string, error) {
	res, err := g.client.ReverseGeocode(ctx, lat, lng)
	if err != nil {
		return "", err
	}
	return res.Address, nil
}

// offlineGeocoder never matches; popups keep an empty address.
type offlineGeocoder struct{}

func (offlineGeocoder) ReverseGeocode(context.Context, float64, float64) (*geocode.Result, error) {
	return &geocode.Result{Source: "offline"}, nil
}

func dispatchConfig() mapctl.Config {
	c := mapctl.DefaultConfig()
	if cfg == nil {
		return c
	}
	m := cfg.Map
	if m.DebounceMs > 0 {
		c.DebounceWindow = m.DebounceWindow()
	}
	if m.HitTolerancePx > 0 {
		c.HitTolerancePx = m.HitTolerancePx
	}
	if m.MinZoom > 0 {
		c.MinZoom = m.MinZoom
	}
	if m.ZoomStep > 0 {
		c.ZoomStep = m.ZoomStep
	}
	if m.FlyDurationMs > 0 {
		c.FlyDuration = m.FlyDuration()
	}
	if len(m.InteractiveLayers) > 0 {
		c.InteractiveLayers = m.InteractiveLayers
	}
	return c
}

// simRenderer is the headless map the script plays against. FlyTo
// adopts the target zoom so successive clicks zoom in the way a real
// camera would.
type simRenderer struct {
	mu       sync.Mutex
	zoom     float64
	features []mapctl.Feature
	flights  []simFlight
	marker   *simMarker
}

func newSimRenderer(zoom float64) *simRenderer {
	if zoom == 0 {
		zoom = 10
	}
	return &simRenderer{zoom: zoom}
}

func (r *simRenderer) setFeatures(features []mapctl.Feature) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.features = features
}

func (r *simRenderer) flightLog() []simFlight {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]simFlight, len(r.flights))
	copy(out, r.flights)
	return out
}

func (r *simRenderer) QueryRenderedFeatures(_ mapctl.Box, layers []string) ([]mapctl.Feature, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if layers == nil {
		return append([]mapctl.Feature(nil), r.features...), nil
	}
	allowed := make(map[string]bool, len(layers))
	for _, l := range layers {
		allowed[l] = true
	}
	var out []mapctl.Feature
	for _, f := range r.features {
		if allowed[f.Layer] {
			out = append(out, f)
		}
	}
	return out, nil
}

func (r *simRenderer) HasLayer(string) bool { return true }

func (r *simRenderer) FlyTo(center mapctl.LngLat, zoom float64, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flights = append(r.flights, simFlight{Lng: center.Lng, Lat: center.Lat, Zoom: zoom})
	r.zoom = zoom
}

func (r *simRenderer) GetZoom() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.zoom
}

func (r *simRenderer) Project(mapctl.LngLat) mapctl.Point { return mapctl.Point{} }

func (r *simRenderer) AddMarker(pos mapctl.LngLat) mapctl.MarkerHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.marker = &simMarker{Lng: pos.Lng, Lat: pos.Lat}
	return simMarkerHandle{renderer: r}
}

func (r *simRenderer) Removed() bool { return false }

type simMarkerHandle struct {
	renderer *simRenderer
}

func (h simMarkerHandle) Remove() {
	h.renderer.mu.Lock()
	defer h.renderer.mu.Unlock()
	h.renderer.marker = nil
}

func init() {
	simulateCmd.Flags().BoolVar(&simulateOffline, "offline", false, "skip reverse geocoding")
	rootCmd.AddCommand(simulateCmd)
}

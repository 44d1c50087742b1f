package mapctl

import (
	"fmt"

	"go.uber.org/zap"
)

// FeatureMeta is structured metadata about the rendered feature under a
// click point, captured synchronously at click time for the popup.
type FeatureMeta struct {
	Layer       string         `json:"layer"`
	SourceLayer string         `json:"source_layer,omitempty"`
	Category    string         `json:"category,omitempty"`
	Name        string         `json:"name,omitempty"`
	Icon        string         `json:"icon,omitempty"`
	Properties  map[string]any `json:"properties,omitempty"`
}

// FeatureQuery wraps the renderer's hit-testing API. Renderer errors and
// panics (querying a layer that is not loaded yet, a mid-teardown style
// swap) degrade to "no match" rather than propagating.
type FeatureQuery struct {
	renderer Renderer
}

// NewFeatureQuery returns a FeatureQuery over the given renderer.
func NewFeatureQuery(r Renderer) *FeatureQuery {
	return &FeatureQuery{renderer: r}
}

// QueryBox resolves a screen box to the features rendered there, restricted
// to the candidate layers that currently exist in the style. Layers not yet
// loaded are silently skipped; a nil layer list queries every rendered
// layer. Returns an empty slice on any renderer failure.
func (q *FeatureQuery) QueryBox(box Box, layers []string) []Feature {
	if q.renderer == nil || q.renderer.Removed() {
		return nil
	}

	var present []string
	if layers != nil {
		present = make([]string, 0, len(layers))
		for _, id := range layers {
			if q.hasLayer(id) {
				present = append(present, id)
			}
		}
		if len(present) == 0 {
			return nil
		}
	}

	features, err := q.queryRendered(box, present)
	if err != nil {
		zap.L().Debug("feature query failed",
			zap.Strings("layers", present),
			zap.Error(err),
		)
		return nil
	}
	return features
}

// FeatureAtPoint returns metadata for the topmost tappable feature at a
// single point, or nil when nothing is there. Best-effort: failures are
// swallowed and logged at debug level only.
func (q *FeatureQuery) FeatureAtPoint(pt Point, layers []string) *FeatureMeta {
	features := q.QueryBox(Box{Min: pt, Max: pt}, layers)
	if len(features) == 0 {
		return nil
	}

	f := features[0]
	meta := &FeatureMeta{
		Layer:       f.Layer,
		SourceLayer: f.SourceLayer,
		Properties:  f.Properties,
	}
	meta.Category = propString(f.Properties, "category", "class")
	meta.Name = propString(f.Properties, "name", "name_en")
	meta.Icon = propString(f.Properties, "icon", "maki")
	return meta
}

// hasLayer checks layer existence, treating a panicking renderer as "absent".
func (q *FeatureQuery) hasLayer(id string) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	return q.renderer.HasLayer(id)
}

// queryRendered calls the renderer, converting panics into errors.
func (q *FeatureQuery) queryRendered(box Box, layers []string) (features []Feature, err error) {
	defer func() {
		if r := recover(); r != nil {
			features = nil
			err = fmt.Errorf("renderer panic: %v", r)
		}
	}()
	return q.renderer.QueryRenderedFeatures(box, layers)
}

// propString returns the first non-empty string property among keys.
func propString(props map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := props[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

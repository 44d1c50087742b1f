package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/loveofmn/mapkit/internal/bounds"
)

const demoScript = `
username: alice
zoom: 12
events:
  - type: click
    lat: 44.95
    lng: -93.09
  - type: click
    lat: 44.96
    lng: -93.10
    features:
      - layer: pin-points
        properties:
          id: pin-1
          username: bob
  - type: select
    layer: county
    id: "27053"
    name: Hennepin
    lat: 45.0
    lng: -93.5
  - type: dismiss
`

func TestRunScript(t *testing.T) {
	var script clickScript
	require.NoError(t, yaml.Unmarshal([]byte(demoScript), &script))

	report, err := runScript(context.Background(), script, offlineGeocoder{}, bounds.Minnesota())
	require.NoError(t, err)

	assert.Equal(t, []string{"accepted", "feature", "selected", "dismissed"}, report.Outcomes)
	require.Len(t, report.History, 3, "map click, pin click, boundary click")
	assert.Equal(t, "bob", report.History[1].Username)

	require.NotNil(t, report.Selection)
	assert.Equal(t, "Hennepin", report.Selection.Name)

	assert.False(t, report.Popup.Open, "dismiss closes the popup")
	assert.Nil(t, report.Marker, "dismiss removes the marker")

	require.Len(t, report.Flights, 1, "only the raw click moves the camera")
	assert.InDelta(t, 15.0, report.Flights[0].Zoom, 1e-9, "zoom floors at the minimum")
}

func TestRunScript_UnknownEvent(t *testing.T) {
	script := clickScript{Events: []scriptEvent{{Type: "warp"}}}
	_, err := runScript(context.Background(), script, offlineGeocoder{}, bounds.Minnesota())
	assert.Error(t, err)
}

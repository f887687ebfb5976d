package report

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flora-home/flora/internal/model"
)

func TestBuildMinLightIrr(t *testing.T) {
	now := time.Date(2024, 6, 1, 14, 0, 0, 0, time.UTC)
	sensors := []SensorStatus{
		{Sensor: "a", Limits: model.Profile{LightIrr: 50000}},
		{Sensor: "b", Limits: model.Profile{LightIrr: 30000}},
	}
	ctl := model.ControlState{AutoReport: true, AutoIrrigation: true, ManDuration: 60}

	d := Build(now, "manual", sensors, nil, model.TankLow, ctl)
	assert.Equal(t, 30000, d.MinLightIrr)
	assert.Equal(t, "low", d.Tank)
	assert.Equal(t, "manual", d.Trigger)
	assert.Equal(t, "2024-06-01T14:00:00Z", d.Timestamp)
}

func TestJSONOmitsInvalidReadings(t *testing.T) {
	now := time.Now()
	sensors := []SensorStatus{{Sensor: "a", Plant: "A", Pump: 1, Valid: false}}

	payload, err := Build(now, "alert", sensors, nil, model.TankOK, model.ControlState{}).JSON()
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(payload), &decoded))
	assert.Equal(t, "alert", decoded["trigger"])

	ss := decoded["sensors"].([]any)[0].(map[string]any)
	assert.Equal(t, false, ss["valid"])
	_, hasReading := ss["reading"]
	assert.False(t, hasReading, "stale sensors carry no reading")
}

// Package report builds the JSON status report published over MQTT.
package report

import (
	"encoding/json"
	"time"

	"github.com/flora-home/flora/internal/model"
)

// SensorStatus is one sensor's slice of the report.
type SensorStatus struct {
	Sensor  string         `json:"sensor"`
	Plant   string         `json:"plant"`
	Pump    int            `json:"pump"`
	Valid   bool           `json:"valid"`
	Reading *model.Reading `json:"reading,omitempty"`
	Flags   model.Flags    `json:"flags"`
	Limits  model.Profile  `json:"limits"`
}

// Data is the full report payload.
type Data struct {
	Timestamp      string            `json:"timestamp"`
	Trigger        string            `json:"trigger"` // "manual" | "alert"
	Sensors        []SensorStatus    `json:"sensors"`
	Pumps          []model.PumpState `json:"pumps"`
	Tank           string            `json:"tank"`
	AutoReport     bool              `json:"auto_report"`
	AutoIrrigation bool              `json:"auto_irrigation"`
	ManDuration    int               `json:"man_irr_duration_s"`
	MinLightIrr    int               `json:"min_light_irr"`
}

// Build assembles a report. MinLightIrr is the smallest irrigation
// light ceiling over all sensors, the level above which no pump can
// trigger at all.
func Build(now time.Time, trigger string, sensors []SensorStatus, pumps []model.PumpState,
	tank model.TankLevel, ctl model.ControlState) Data {

	minIrr := 0
	for i, s := range sensors {
		if i == 0 || s.Limits.LightIrr < minIrr {
			minIrr = s.Limits.LightIrr
		}
	}
	return Data{
		Timestamp:      now.Format(time.RFC3339),
		Trigger:        trigger,
		Sensors:        sensors,
		Pumps:          pumps,
		Tank:           tank.String(),
		AutoReport:     ctl.AutoReport,
		AutoIrrigation: ctl.AutoIrrigation,
		ManDuration:    ctl.ManDuration,
		MinLightIrr:    minIrr,
	}
}

// JSON renders the report payload.
func (d Data) JSON() (string, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

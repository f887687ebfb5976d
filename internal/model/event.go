package model

import (
	"time"

	"github.com/google/uuid"
)

// IrrigationEvent records one pump run start. Published over MQTT and
// written to the history backend.
type IrrigationEvent struct {
	ID        string    `json:"id"`
	Pump      int       `json:"pump"`
	Mode      PumpMode  `json:"mode"`
	Duration  int       `json:"duration_s"`
	Moisture  int       `json:"moisture,omitempty"` // % at trigger, auto mode only
	Sensor    string    `json:"sensor,omitempty"`   // triggering sensor, auto mode only
	Timestamp time.Time `json:"timestamp"`
}

func NewIrrigationEvent(pump int, mode PumpMode, duration time.Duration, ts time.Time) IrrigationEvent {
	return IrrigationEvent{
		ID:        uuid.NewString(),
		Pump:      pump,
		Mode:      mode,
		Duration:  int(duration.Seconds()),
		Timestamp: ts,
	}
}

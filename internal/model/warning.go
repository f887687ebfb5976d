package model

import "fmt"

// WarningKind identifies a threshold violation or system condition.
type WarningKind string

const (
	WarnOffline    WarningKind = "sensor_offline"
	WarnBattery    WarningKind = "battery_low"
	WarnCold       WarningKind = "too_cold"
	WarnHot        WarningKind = "too_hot"
	WarnFertilize  WarningKind = "fertilize"
	WarnExcessFert WarningKind = "excess_fertilizer"
	WarnCritDry    WarningKind = "critical_dry"
	WarnDry        WarningKind = "dry"
	WarnWet        WarningKind = "wet"
	WarnCritWet    WarningKind = "critical_wet"
	WarnDark       WarningKind = "too_dark"
	WarnBright     WarningKind = "too_bright"
	WarnPumpFault  WarningKind = "pump_fault"
	WarnTankLow    WarningKind = "tank_low"
	WarnTankEmpty  WarningKind = "tank_empty"
)

// Warning is one per-cycle finding. Sensor is empty for system-level
// conditions (pump, tank).
type Warning struct {
	Kind    WarningKind `json:"kind"`
	Sensor  string      `json:"sensor,omitempty"`
	Message string      `json:"message"`
}

func NewWarning(kind WarningKind, sensor, format string, args ...any) Warning {
	return Warning{Kind: kind, Sensor: sensor, Message: fmt.Sprintf(format, args...)}
}

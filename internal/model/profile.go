package model

import "fmt"

// Profile holds the plant-specific threshold bands for one sensor.
//
// Moisture uses four thresholds: [moist_min, moist_max] is the hard
// outer band, [moist_lo, moist_hi] the desired inner band. Light has
// an additional irrigation ceiling light_irr above which watering is
// suppressed.
type Profile struct {
	Sensor string `json:"sensor"`
	Plant  string `json:"plant"`
	Pump   int    `json:"pump"`

	TempMin float64 `json:"temp_min"`
	TempMax float64 `json:"temp_max"`

	CondMin int `json:"cond_min"`
	CondMax int `json:"cond_max"`

	MoistMin int `json:"moist_min"`
	MoistLo  int `json:"moist_lo"`
	MoistHi  int `json:"moist_hi"`
	MoistMax int `json:"moist_max"`

	LightMin int `json:"light_min"`
	LightIrr int `json:"light_irr"`
	LightMax int `json:"light_max"`
}

// Validate checks the internal consistency of the threshold bands.
func (p Profile) Validate() error {
	if p.Pump != 1 && p.Pump != 2 {
		return fmt.Errorf("sensor %s: pump must be 1 or 2, got %d", p.Sensor, p.Pump)
	}
	if !(p.MoistMin <= p.MoistLo && p.MoistLo <= p.MoistHi && p.MoistHi <= p.MoistMax) {
		return fmt.Errorf("sensor %s: moisture thresholds must satisfy min<=lo<=hi<=max (%d/%d/%d/%d)",
			p.Sensor, p.MoistMin, p.MoistLo, p.MoistHi, p.MoistMax)
	}
	if p.TempMin >= p.TempMax {
		return fmt.Errorf("sensor %s: temp_min must be below temp_max (%.1f/%.1f)", p.Sensor, p.TempMin, p.TempMax)
	}
	if p.CondMin >= p.CondMax {
		return fmt.Errorf("sensor %s: cond_min must be below cond_max (%d/%d)", p.Sensor, p.CondMin, p.CondMax)
	}
	if p.LightMin >= p.LightIrr {
		return fmt.Errorf("sensor %s: light_min must be below light_irr (%d/%d)", p.Sensor, p.LightMin, p.LightIrr)
	}
	return nil
}

// Flags is the result of comparing one reading against a profile.
type Flags struct {
	BattLow bool

	TempLow  bool
	TempHigh bool

	CondLow  bool
	CondHigh bool

	MoistCritLow  bool // below moist_min, irrigation candidate
	MoistLow      bool // in [moist_min, moist_lo)
	MoistHigh     bool // in (moist_hi, moist_max]
	MoistCritHigh bool // above moist_max, pump veto

	LightLow  bool
	LightIrr  bool // above light_irr, pump veto
	LightHigh bool
}

// Eligible reports whether the moisture level asks for irrigation.
func (f Flags) Eligible() bool { return f.MoistCritLow || f.MoistLow }

// Veto reports whether this sensor forbids irrigation on its pump.
func (f Flags) Veto() bool { return f.MoistCritHigh || f.LightIrr }

// Check compares a reading against the profile. The light min/max
// comparisons use lightAvg, the rolling period average, while the
// irrigation ceiling uses the instantaneous value.
func (p Profile) Check(r Reading, battMin int, lightAvg float64) Flags {
	return Flags{
		BattLow: r.Battery < battMin,

		TempLow:  r.Temperature < p.TempMin,
		TempHigh: r.Temperature > p.TempMax,

		CondLow:  r.Conductivity < p.CondMin,
		CondHigh: r.Conductivity > p.CondMax,

		MoistCritLow:  r.Moisture < p.MoistMin,
		MoistLow:      r.Moisture >= p.MoistMin && r.Moisture < p.MoistLo,
		MoistHigh:     r.Moisture > p.MoistHi && r.Moisture <= p.MoistMax,
		MoistCritHigh: r.Moisture > p.MoistMax,

		LightLow:  lightAvg < float64(p.LightMin),
		LightIrr:  r.Light > p.LightIrr,
		LightHigh: lightAvg > float64(p.LightMax),
	}
}

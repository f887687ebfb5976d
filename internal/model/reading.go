package model

import "time"

// Reading is one decoded sensor message as published by the Mi Flora
// MQTT daemon, plus the local receipt timestamp.
type Reading struct {
	Temperature  float64   `json:"temperature"`  // °C
	Conductivity int       `json:"conductivity"` // µS/cm
	Moisture     int       `json:"moisture"`     // %
	Light        int       `json:"light"`        // lux
	Battery      int       `json:"battery"`      // %
	ReceivedAt   time.Time `json:"-"`
}

// Stale reports whether the reading is older than the configured
// message timeout. A zero ReceivedAt (never updated) is always stale.
func (r *Reading) Stale(now time.Time, timeout time.Duration) bool {
	if r == nil || r.ReceivedAt.IsZero() {
		return true
	}
	return now.Sub(r.ReceivedAt) > timeout
}

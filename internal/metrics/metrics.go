// Package metrics registers the daemon's prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Readings = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flora_readings_total",
		Help: "Sensor readings accepted.",
	})
	Malformed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flora_malformed_payloads_total",
		Help: "MQTT payloads dropped because they could not be decoded.",
	})
	Warnings = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flora_warnings_total",
		Help: "Warnings emitted by the evaluation cycle.",
	}, []string{"kind"})
	IrrigationRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flora_irrigation_runs_total",
		Help: "Pump runs started.",
	}, []string{"pump", "mode"})
	Moisture = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "flora_moisture_percent",
		Help: "Last soil moisture reading per sensor.",
	}, []string{"sensor"})
	Tank = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "flora_tank_level",
		Help: "Tank level (0=empty, 1=low, 2=ok).",
	})
)

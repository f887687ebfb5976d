// Package history records readings and irrigation events in InfluxDB.
package history

import (
	"context"
	"log"
	"strconv"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/sony/gobreaker"

	"github.com/flora-home/flora/internal/model"
)

// Recorder writes points through a circuit breaker so a dead Influx
// backend cannot stall the evaluation loop on every cycle.
type Recorder struct {
	write api.WriteAPIBlocking
	cb    *gobreaker.CircuitBreaker

	mu      sync.RWMutex
	lastErr time.Time
}

// NewRecorder wires a recorder onto an existing write API.
func NewRecorder(write api.WriteAPIBlocking) *Recorder {
	r := &Recorder{write: write}
	r.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     "influx",
		Interval: time.Minute,
		Timeout:  30 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 3
		},
	})
	return r
}

// New creates a recorder from connection settings.
func New(url, token, org, bucket string) *Recorder {
	client := influxdb2.NewClient(url, token)
	return NewRecorder(client.WriteAPIBlocking(org, bucket))
}

// Reading stores one accepted sensor reading.
func (r *Recorder) Reading(ctx context.Context, sensor, plant string, rd model.Reading) {
	p := influxdb2.NewPoint("plant_reading",
		map[string]string{"sensor": sensor, "plant": plant},
		map[string]interface{}{
			"temperature":  rd.Temperature,
			"conductivity": rd.Conductivity,
			"moisture":     rd.Moisture,
			"light":        rd.Light,
			"battery":      rd.Battery,
		},
		rd.ReceivedAt)
	r.writePoint(ctx, p)
}

// Irrigation stores one pump run start.
func (r *Recorder) Irrigation(ctx context.Context, evt model.IrrigationEvent) {
	p := influxdb2.NewPoint("irrigation_event",
		map[string]string{
			"pump": strconv.Itoa(evt.Pump),
			"mode": string(evt.Mode),
		},
		map[string]interface{}{
			"id":         evt.ID,
			"duration_s": evt.Duration,
			"moisture":   evt.Moisture,
		},
		evt.Timestamp)
	r.writePoint(ctx, p)
}

func (r *Recorder) writePoint(ctx context.Context, p *write.Point) {
	_, err := r.cb.Execute(func() (interface{}, error) {
		wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return nil, r.write.WritePoint(wctx, p)
	})
	if err != nil {
		r.mu.Lock()
		r.lastErr = time.Now()
		r.mu.Unlock()
		log.Printf("history: write error: %v", err)
	}
}

// LastErrorAge returns how long ago the last write error occurred.
func (r *Recorder) LastErrorAge() time.Duration {
	if r == nil {
		return 99999 * time.Hour
	}
	r.mu.RLock()
	t := r.lastErr
	r.mu.RUnlock()
	if t.IsZero() {
		return 99999 * time.Hour
	}
	return time.Since(t)
}

// State exposes the breaker state for health reporting.
func (r *Recorder) State() gobreaker.State {
	if r == nil {
		return gobreaker.StateClosed
	}
	return r.cb.State()
}

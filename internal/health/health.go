// Package health serves the liveness, readiness and metrics endpoints.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/flora-home/flora/internal/history"
)

type healthHandler struct {
	mqtt mqtt.Client
	rec  *history.Recorder
}

// NewHealthHandler reports overall daemon health as JSON. rec may be
// nil when history recording is disabled.
func NewHealthHandler(m mqtt.Client, rec *history.Recorder) http.Handler {
	return &healthHandler{mqtt: m, rec: rec}
}

func (h *healthHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	type status struct {
		Status          string  `json:"status"`
		MQTTConnected   bool    `json:"mqtt_connected"`
		HistoryBreaker  string  `json:"history_breaker"`
		LastWriteErrorS float64 `json:"last_write_error_age_sec"`
	}
	st := status{
		MQTTConnected:   h.mqtt != nil && h.mqtt.IsConnectionOpen(),
		HistoryBreaker:  h.rec.State().String(),
		LastWriteErrorS: h.rec.LastErrorAge().Seconds(),
	}
	switch {
	case st.MQTTConnected && h.rec.LastErrorAge() > 30*time.Second:
		st.Status = "ok"
	case st.MQTTConnected:
		st.Status = "degraded"
	default:
		st.Status = "down"
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(st)
}

type readyHandler struct {
	mqtt  mqtt.Client
	ready func() bool
}

// NewReadyHandler returns 200 only once the MQTT connection is up and
// the first evaluation cycle has completed.
func NewReadyHandler(m mqtt.Client, ready func() bool) http.Handler {
	return &readyHandler{mqtt: m, ready: ready}
}

func (h *readyHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	ok := h.mqtt != nil && h.mqtt.IsConnectionOpen() && h.ready()
	if !ok {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(struct {
		Ready bool `json:"ready"`
	}{Ready: ok})
}

// Serve runs the HTTP listener until ctx is cancelled.
func Serve(ctx context.Context, port int, m mqtt.Client, rec *history.Recorder, ready func() bool) {
	mux := http.NewServeMux()
	mux.Handle("/healthz", NewHealthHandler(m, rec))
	mux.Handle("/readyz", NewReadyHandler(m, ready))
	mux.Handle("/metrics", promhttp.Handler())

	hs := &http.Server{
		Addr:              ":" + strconv.Itoa(port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = hs.Shutdown(shCtx)
	}()
	log.Printf("health: HTTP listening on :%d", port)
	if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("health: http server error: %v", err)
	}
}

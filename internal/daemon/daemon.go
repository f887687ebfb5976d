// Package daemon wires the MQTT topic contract to the policy engine.
package daemon

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/flora-home/flora/internal/config"
	"github.com/flora-home/flora/internal/engine"
	"github.com/flora-home/flora/internal/hal"
	"github.com/flora-home/flora/internal/history"
	"github.com/flora-home/flora/internal/metrics"
	"github.com/flora-home/flora/internal/model"
	"github.com/flora-home/flora/internal/report"
	"github.com/flora-home/flora/pkg/mqttclient"
)

// Control topics below base_topic_flora, subscribed at QoS 2.
var controlTopics = []string{
	"man_report_cmd",
	"man_irr_cmd",
	"man_irr_duration_ctrl",
	"auto_report_ctrl",
	"auto_irr_ctrl",
}

type Daemon struct {
	cfg    *config.Config
	client mqtt.Client
	pub    mqttclient.IPublisher
	rec    *history.Recorder
	engine *engine.Engine
}

func New(cfg *config.Config, client mqtt.Client, pub mqttclient.IPublisher,
	rec *history.Recorder, pumps hal.PumpDriver, tank hal.TankGauge) *Daemon {

	d := &Daemon{cfg: cfg, client: client, pub: pub, rec: rec}
	d.engine = engine.New(cfg, pumps, tank, engine.Hooks{
		OnState:    d.publishState,
		OnWarnings: d.handleWarnings,
		OnEvent:    d.publishEvent,
		OnReading:  d.recordReading,
		OnReport:   d.publishReport,
	})
	return d
}

// Ready is the readiness predicate for the health endpoint.
func (d *Daemon) Ready() bool { return d.engine.Ready() }

// Run subscribes everything and drives the engine until ctx is
// cancelled, then announces the offline status.
func (d *Daemon) Run(ctx context.Context) error {
	ctl := make([]string, 0, len(controlTopics))
	for _, t := range controlTopics {
		ctl = append(ctl, d.topic(t))
	}
	ctrlConsumer := mqttclient.NewConsumer(d.client, 2, d.handleControl, ctl...)
	go ctrlConsumer.Consume(ctx)

	sens := make([]string, 0, len(d.cfg.MQTT.Sensors))
	for _, s := range d.cfg.MQTT.Sensors {
		sens = append(sens, d.cfg.MQTT.BaseTopicSensors+"/"+s)
	}
	sensConsumer := mqttclient.NewConsumer(d.client, 0, d.handleSensor, sens...)
	go sensConsumer.Consume(ctx)

	d.publishStatus(model.StatusOnline)
	d.engine.Run(ctx)
	d.publishStatus(model.StatusOffline)
	return nil
}

func (d *Daemon) topic(suffix string) string {
	return d.cfg.MQTT.BaseTopicFlora + "/" + suffix
}

// handleSensor decodes one Mi Flora JSON payload. A malformed payload
// is dropped and counted; it must not disturb the cycle or the other
// sensors.
func (d *Daemon) handleSensor(topic string, msg mqtt.Message) error {
	sensor := strings.TrimPrefix(topic, d.cfg.MQTT.BaseTopicSensors+"/")
	var r model.Reading
	if err := json.Unmarshal(msg.Payload(), &r); err != nil {
		metrics.Malformed.Inc()
		log.Printf("daemon: bad payload from %s: %v", sensor, err)
		return nil
	}
	d.engine.Submit(engine.ReadingEvent{Sensor: sensor, Reading: r})
	return nil
}

func (d *Daemon) handleControl(topic string, msg mqtt.Message) error {
	payload := strings.TrimSpace(string(msg.Payload()))
	switch strings.TrimPrefix(topic, d.cfg.MQTT.BaseTopicFlora+"/") {
	case "man_report_cmd":
		log.Printf("daemon: manual report requested")
		d.engine.Submit(engine.ControlEvent{Kind: engine.CtlManReport})
	case "man_irr_cmd":
		pump, err := strconv.Atoi(payload)
		if err != nil || (pump != 1 && pump != 2) {
			metrics.Malformed.Inc()
			log.Printf("daemon: man_irr_cmd: bad pump %q", payload)
			return nil
		}
		d.engine.Submit(engine.ControlEvent{Kind: engine.CtlManIrrigation, Value: pump})
	case "man_irr_duration_ctrl":
		secs, err := strconv.Atoi(payload)
		if err != nil || secs <= 0 {
			metrics.Malformed.Inc()
			log.Printf("daemon: man_irr_duration_ctrl: bad duration %q", payload)
			return nil
		}
		d.engine.Submit(engine.ControlEvent{Kind: engine.CtlManDuration, Value: secs})
	case "auto_report_ctrl":
		d.engine.Submit(engine.ControlEvent{Kind: engine.CtlAutoReport, Value: onOff(payload)})
	case "auto_irr_ctrl":
		d.engine.Submit(engine.ControlEvent{Kind: engine.CtlAutoIrrigation, Value: onOff(payload)})
	}
	return nil
}

func onOff(payload string) int {
	if payload == "1" {
		return 1
	}
	return 0
}

func (d *Daemon) publishStatus(s model.Status) {
	if err := d.pub.Publish(d.topic("status"), 1, true, string(s)); err != nil {
		log.Printf("daemon: status publish failed: %v", err)
	}
}

// publishState pushes the retained stat topics after every cycle and
// control command.
func (d *Daemon) publishState(s engine.Snapshot) {
	d.publishStatus(s.Status)
	pub := func(suffix string, qos byte, retain bool, payload string) {
		if err := d.pub.Publish(d.topic(suffix), qos, retain, payload); err != nil {
			log.Printf("daemon: publish %s failed: %v", suffix, err)
		}
	}
	pub("auto_report_stat", 2, true, bit(s.AutoReport))
	pub("auto_irr_stat", 2, true, bit(s.AutoIrrigation))
	pub("man_irr_duration_stat", 2, true, strconv.Itoa(s.ManDuration))
	pub("man_irr_stat", 0, false, bit(s.ManualActive))
	pub("tank", 1, true, strconv.Itoa(int(s.Tank)))
	metrics.Tank.Set(float64(s.Tank))
}

func bit(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func (d *Daemon) publishEvent(evt model.IrrigationEvent) {
	metrics.IrrigationRuns.WithLabelValues(strconv.Itoa(evt.Pump), string(evt.Mode)).Inc()
	b, err := json.Marshal(evt)
	if err != nil {
		log.Printf("daemon: event marshal failed: %v", err)
		return
	}
	if err := d.pub.Publish(d.topic("event"), 1, false, string(b)); err != nil {
		log.Printf("daemon: event publish failed: %v", err)
	}
	if d.rec != nil {
		d.rec.Irrigation(context.Background(), evt)
	}
}

func (d *Daemon) recordReading(sensor, plant string, r model.Reading) {
	metrics.Readings.Inc()
	metrics.Moisture.WithLabelValues(sensor).Set(float64(r.Moisture))
	if d.rec != nil {
		d.rec.Reading(context.Background(), sensor, plant, r)
	}
}

func (d *Daemon) handleWarnings(warnings []model.Warning) {
	for _, w := range warnings {
		metrics.Warnings.WithLabelValues(string(w.Kind)).Inc()
		if w.Sensor != "" {
			log.Printf("daemon: warning [%s] %s: %s", w.Kind, w.Sensor, w.Message)
		} else {
			log.Printf("daemon: warning [%s] %s", w.Kind, w.Message)
		}
	}
}

func (d *Daemon) publishReport(data report.Data) {
	payload, err := data.JSON()
	if err != nil {
		log.Printf("daemon: report marshal failed: %v", err)
		return
	}
	if err := d.pub.Publish(d.topic("report"), 1, true, payload); err != nil {
		log.Printf("daemon: report publish failed: %v", err)
	}
	log.Printf("daemon: report published (trigger: %s)", data.Trigger)
}

package daemon

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flora-home/flora/internal/config"
	"github.com/flora-home/flora/internal/engine"
	"github.com/flora-home/flora/internal/hal"
	"github.com/flora-home/flora/internal/model"
)

type published struct {
	topic   string
	qos     byte
	retain  bool
	payload string
}

// fakePub records publishes instead of talking to a broker.
type fakePub struct {
	msgs []published
}

func (f *fakePub) Publish(topic string, qos byte, retain bool, payload string) error {
	f.msgs = append(f.msgs, published{topic, qos, retain, payload})
	return nil
}

func (f *fakePub) Close() {}

func (f *fakePub) byTopic(topic string) (published, bool) {
	for i := len(f.msgs) - 1; i >= 0; i-- {
		if f.msgs[i].topic == topic {
			return f.msgs[i], true
		}
	}
	return published{}, false
}

// fakeMsg satisfies the paho message interface for handler tests.
type fakeMsg struct {
	topic   string
	payload string
}

func (m *fakeMsg) Duplicate() bool   { return false }
func (m *fakeMsg) Qos() byte         { return 0 }
func (m *fakeMsg) Retained() bool    { return false }
func (m *fakeMsg) Topic() string     { return m.topic }
func (m *fakeMsg) MessageID() uint16 { return 0 }
func (m *fakeMsg) Payload() []byte   { return []byte(m.payload) }
func (m *fakeMsg) Ack()              {}

func testDaemon() (*Daemon, *fakePub) {
	cfg := &config.Config{
		General: config.General{
			ProcessingPeriod: 300 * time.Second,
			DurationAuto1:    120 * time.Second,
			DurationAuto2:    120 * time.Second,
			DurationMan:      60 * time.Second,
			AutoReport:       true,
			AutoIrrigation:   true,
		},
		Daemon:   config.Daemon{Enabled: true},
		MQTT:     config.MQTT{BaseTopicSensors: "miflora", BaseTopicFlora: "flora", MessageTimeout: 900 * time.Second},
		Profiles: map[string]model.Profile{"hibiscus": {Sensor: "hibiscus", Plant: "Hibiscus", Pump: 1}},
		Order:    []string{"hibiscus"},
	}
	pub := &fakePub{}
	d := New(cfg, nil, pub, nil, hal.NewSimPump(), &hal.StaticTank{Lvl: model.TankOK})
	return d, pub
}

func TestPublishStateTopics(t *testing.T) {
	d, pub := testDaemon()
	d.publishState(engine.Snapshot{
		Status:         model.StatusOnline,
		AutoReport:     true,
		AutoIrrigation: false,
		ManDuration:    45,
		ManualActive:   true,
		Tank:           model.TankLow,
	})

	expect := map[string]string{
		"flora/status":               "online",
		"flora/auto_report_stat":     "1",
		"flora/auto_irr_stat":        "0",
		"flora/man_irr_duration_stat": "45",
		"flora/man_irr_stat":         "1",
		"flora/tank":                 "1",
	}
	for topic, want := range expect {
		got, ok := pub.byTopic(topic)
		require.True(t, ok, "missing publish on %s", topic)
		assert.Equal(t, want, got.payload, topic)
	}

	status, _ := pub.byTopic("flora/status")
	assert.True(t, status.retain)
	man, _ := pub.byTopic("flora/man_irr_stat")
	assert.False(t, man.retain, "manual state is transient")
}

func TestPublishEventPayload(t *testing.T) {
	d, pub := testDaemon()
	evt := model.NewIrrigationEvent(2, model.ModeAuto, 120*time.Second, time.Now())
	evt.Sensor = "hibiscus"
	evt.Moisture = 18
	d.publishEvent(evt)

	got, ok := pub.byTopic("flora/event")
	require.True(t, ok)
	assert.Equal(t, byte(1), got.qos)
	assert.False(t, got.retain)
	assert.Contains(t, got.payload, `"pump":2`)
	assert.Contains(t, got.payload, `"mode":"auto"`)
	assert.Contains(t, got.payload, `"sensor":"hibiscus"`)
}

func TestHandleControlRejectsBadPayloads(t *testing.T) {
	d, _ := testDaemon()
	for _, m := range []*fakeMsg{
		{topic: "flora/man_irr_cmd", payload: "3"},
		{topic: "flora/man_irr_cmd", payload: "pump one"},
		{topic: "flora/man_irr_duration_ctrl", payload: "-5"},
		{topic: "flora/man_irr_duration_ctrl", payload: "soon"},
	} {
		assert.NoError(t, d.handleControl(m.topic, m), "bad control input is dropped, not fatal")
	}
}

func TestHandleSensorRejectsMalformedJSON(t *testing.T) {
	d, _ := testDaemon()
	m := &fakeMsg{topic: "miflora/hibiscus", payload: "{broken"}
	assert.NoError(t, d.handleSensor(m.topic, m))

	m = &fakeMsg{topic: "miflora/hibiscus", payload: `{"moisture": 40, "light": 10000}`}
	assert.NoError(t, d.handleSensor(m.topic, m))
}

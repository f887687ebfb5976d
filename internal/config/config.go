// Package config loads and validates the daemon configuration from
// config.ini.dist / config.ini (the latter overrides the former).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/ini.v1"

	"github.com/flora-home/flora/internal/model"
)

// Defaults, kept in line with the shipped config.ini.dist. Change the
// config file, not these.
const (
	defProcessingPeriod = 300
	defMessageTimeout   = 900
	defNightBegin       = "24:00"
	defNightEnd         = "00:00"
	defAutoReport       = 1
	defAutoIrrigation   = 1
	defDurationAuto     = 120
	defDurationMan      = 60
	defRest             = 7200
	defBattLow          = 5
	defAlertsDefer      = 4  // hours
	defAlertsRepeat     = 24 // hours
	defAlertMode        = 2
	defHTTPPort         = 8080
)

// plantOptions are mandatory in every sensor section.
var plantOptions = []string{
	"name",
	"temp_min", "temp_max",
	"cond_min", "cond_max",
	"moist_min", "moist_lo", "moist_hi", "moist_max",
	"light_min", "light_irr", "light_max",
}

// Clock is a time of day as minutes since midnight. 24:00 is a valid
// value (used by the default configuration to disable the night window).
type Clock int

func (c Clock) String() string { return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60) }

// ParseClock parses "HH:MM".
func ParseClock(s string) (Clock, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("time %q: want HH:MM", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 24 {
		return 0, fmt.Errorf("time %q: bad hour", s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("time %q: bad minute", s)
	}
	return Clock(h*60 + m), nil
}

type General struct {
	ProcessingPeriod time.Duration
	BattLow          int
	AutoReport       bool
	AutoIrrigation   bool
	DurationAuto1    time.Duration
	DurationAuto2    time.Duration
	DurationMan      time.Duration
	Rest             time.Duration
	NightBegin       Clock
	NightEnd         Clock
}

// DurationAuto returns the automatic run time for a pump id.
func (g General) DurationAuto(pump int) time.Duration {
	if pump == 2 {
		return g.DurationAuto2
	}
	return g.DurationAuto1
}

type Daemon struct {
	Enabled  bool
	HTTPPort int
}

type Alerts struct {
	DeferTime  time.Duration
	RepeatTime time.Duration

	// Filter modes 0..4 per alert kind, see internal/alert.
	Battery      int
	Temperature  int
	Moisture     int
	MoistureInfo int
	Conductivity int
	Light        int
	Sensor       int
	Pump         int
	TankLow      int
	TankEmpty    int
}

type MQTT struct {
	Hostname         string
	Port             int
	Keepalive        time.Duration
	BaseTopicSensors string
	BaseTopicFlora   string
	Sensors          []string
	MessageTimeout   time.Duration
	Username         string
	Password         string
	TLS              bool
	TLSCACert        string
	TLSCertFile      string
	TLSKeyFile       string
}

type Influx struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// Enabled reports whether history recording is configured at all.
func (i Influx) Enabled() bool { return i.URL != "" }

type Config struct {
	General  General
	Daemon   Daemon
	Alerts   Alerts
	MQTT     MQTT
	Influx   Influx
	Profiles map[string]model.Profile
	// Sensors in config order, used wherever a stable iteration
	// order matters (alert state vectors, reports).
	Order []string
}

// Load reads config.ini.dist and config.ini from dir. At least one of
// the two must exist. Any inconsistency is fatal here, never deferred
// to the evaluation loop.
func Load(dir string) (*Config, error) {
	dist := filepath.Join(dir, "config.ini.dist")
	local := filepath.Join(dir, "config.ini")
	if _, err := os.Stat(dist); err != nil {
		if _, err2 := os.Stat(local); err2 != nil {
			return nil, fmt.Errorf("config: neither %s nor %s found", dist, local)
		}
	}

	f, err := ini.LooseLoad(dist, local)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return parse(f)
}

func parse(f *ini.File) (*Config, error) {
	cfg := &Config{Profiles: make(map[string]model.Profile)}

	gen := f.Section("General")
	cfg.General = General{
		ProcessingPeriod: secs(gen, "processing_period", defProcessingPeriod),
		BattLow:          gen.Key("batt_low").MustInt(defBattLow),
		AutoReport:       gen.Key("auto_report").MustInt(defAutoReport) != 0,
		AutoIrrigation:   gen.Key("auto_irrigation").MustInt(defAutoIrrigation) != 0,
		DurationAuto1:    secs(gen, "irrigation_duration_auto1", defDurationAuto),
		DurationAuto2:    secs(gen, "irrigation_duration_auto2", defDurationAuto),
		DurationMan:      secs(gen, "irrigation_duration_man", defDurationMan),
		Rest:             secs(gen, "irrigation_rest", defRest),
	}
	var err error
	if cfg.General.NightBegin, err = ParseClock(gen.Key("night_begin").MustString(defNightBegin)); err != nil {
		return nil, fmt.Errorf("config: [General] night_begin: %w", err)
	}
	if cfg.General.NightEnd, err = ParseClock(gen.Key("night_end").MustString(defNightEnd)); err != nil {
		return nil, fmt.Errorf("config: [General] night_end: %w", err)
	}
	if cfg.General.ProcessingPeriod <= 0 {
		return nil, fmt.Errorf("config: [General] processing_period must be positive")
	}

	dae := f.Section("Daemon")
	cfg.Daemon = Daemon{
		Enabled:  dae.Key("enabled").MustBool(true),
		HTTPPort: dae.Key("http_port").MustInt(defHTTPPort),
	}

	al := f.Section("Alerts")
	cfg.Alerts = Alerts{
		DeferTime:    time.Duration(al.Key("alerts_defer_time").MustInt(defAlertsDefer)) * time.Hour,
		RepeatTime:   time.Duration(al.Key("alerts_repeat_time").MustInt(defAlertsRepeat)) * time.Hour,
		Battery:      alertMode(al, "w_battery"),
		Temperature:  alertMode(al, "w_temperature"),
		Moisture:     alertMode(al, "w_moisture"),
		MoistureInfo: alertMode(al, "i_moisture"),
		Conductivity: alertMode(al, "w_conductivity"),
		Light:        alertMode(al, "w_light"),
		Sensor:       alertMode(al, "e_sensor"),
		Pump:         alertMode(al, "e_pump"),
		TankLow:      alertMode(al, "e_tank_low"),
		TankEmpty:    alertMode(al, "e_tank_empty"),
	}

	mq := f.Section("MQTT")
	cfg.MQTT = MQTT{
		Hostname:         mq.Key("hostname").MustString("localhost"),
		Port:             mq.Key("port").MustInt(1883),
		Keepalive:        secs(mq, "keepalive", 60),
		BaseTopicSensors: strings.ToLower(mq.Key("base_topic_sensors").MustString("miflora-mqtt-daemon")),
		BaseTopicFlora:   strings.ToLower(mq.Key("base_topic_flora").MustString("flora")),
		MessageTimeout:   secs(mq, "message_timeout", defMessageTimeout),
		Username:         mq.Key("username").String(),
		Password:         mq.Key("password").String(),
		TLS:              mq.Key("tls").MustBool(false),
		TLSCACert:        mq.Key("tls_ca_cert").String(),
		TLSCertFile:      mq.Key("tls_certfile").String(),
		TLSKeyFile:       mq.Key("tls_keyfile").String(),
	}
	// Secrets may come from the environment instead of the ini file.
	if v := os.Getenv("MQTT_USERNAME"); v != "" {
		cfg.MQTT.Username = v
	}
	if v := os.Getenv("MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Password = v
	}

	for _, name := range strings.Split(mq.Key("sensors").String(), ",") {
		if name = strings.TrimSpace(name); name != "" {
			cfg.MQTT.Sensors = append(cfg.MQTT.Sensors, name)
		}
	}
	if len(cfg.MQTT.Sensors) == 0 {
		return nil, fmt.Errorf("config: no sensors listed in the [MQTT] section")
	}

	ix := f.Section("Influx")
	cfg.Influx = Influx{
		URL:    ix.Key("url").String(),
		Token:  ix.Key("token").String(),
		Org:    ix.Key("org").String(),
		Bucket: ix.Key("bucket").String(),
	}

	for _, name := range cfg.MQTT.Sensors {
		p, err := parseProfile(f, name)
		if err != nil {
			return nil, err
		}
		cfg.Profiles[name] = p
		cfg.Order = append(cfg.Order, name)
	}
	return cfg, nil
}

func parseProfile(f *ini.File, sensor string) (model.Profile, error) {
	if !f.HasSection(sensor) {
		return model.Profile{}, fmt.Errorf("config: sensor %s listed in [MQTT] but has no plant section", sensor)
	}
	sec := f.Section(sensor)
	for _, opt := range plantOptions {
		if !sec.HasKey(opt) {
			return model.Profile{}, fmt.Errorf("config: [%s] is missing the mandatory key %q", sensor, opt)
		}
	}
	p := model.Profile{
		Sensor:   sensor,
		Plant:    sec.Key("name").String(),
		Pump:     sec.Key("pump").MustInt(1),
		TempMin:  sec.Key("temp_min").MustFloat64(),
		TempMax:  sec.Key("temp_max").MustFloat64(),
		CondMin:  sec.Key("cond_min").MustInt(),
		CondMax:  sec.Key("cond_max").MustInt(),
		MoistMin: sec.Key("moist_min").MustInt(),
		MoistLo:  sec.Key("moist_lo").MustInt(),
		MoistHi:  sec.Key("moist_hi").MustInt(),
		MoistMax: sec.Key("moist_max").MustInt(),
		LightMin: sec.Key("light_min").MustInt(),
		LightIrr: sec.Key("light_irr").MustInt(),
		LightMax: sec.Key("light_max").MustInt(),
	}
	if err := p.Validate(); err != nil {
		return model.Profile{}, fmt.Errorf("config: %w", err)
	}
	return p, nil
}

func secs(sec *ini.Section, key string, def int) time.Duration {
	return time.Duration(sec.Key(key).MustInt(def)) * time.Second
}

func alertMode(sec *ini.Section, key string) int {
	m := sec.Key(key).MustInt(defAlertMode)
	if m < 0 || m > 4 {
		m = defAlertMode
	}
	return m
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalIni = `
[MQTT]
sensors = hibiscus

[hibiscus]
name = Hibiscus
pump = 1
temp_min = 10
temp_max = 35
cond_min = 350
cond_max = 2000
moist_min = 25
moist_lo = 30
moist_hi = 55
moist_max = 65
light_min = 2500
light_irr = 50000
light_max = 60000
`

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	return dir
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "config.ini.dist", minimalIni))
	require.NoError(t, err)

	assert.Equal(t, 300*time.Second, cfg.General.ProcessingPeriod)
	assert.Equal(t, 900*time.Second, cfg.MQTT.MessageTimeout)
	assert.Equal(t, 7200*time.Second, cfg.General.Rest)
	assert.Equal(t, 120*time.Second, cfg.General.DurationAuto(1))
	assert.Equal(t, 60*time.Second, cfg.General.DurationMan)
	assert.Equal(t, 5, cfg.General.BattLow)
	assert.True(t, cfg.General.AutoReport)
	assert.True(t, cfg.General.AutoIrrigation)
	assert.Equal(t, Clock(24*60), cfg.General.NightBegin)
	assert.Equal(t, Clock(0), cfg.General.NightEnd)
	assert.True(t, cfg.Daemon.Enabled)
	assert.Equal(t, 8080, cfg.Daemon.HTTPPort)
	assert.Equal(t, "localhost", cfg.MQTT.Hostname)
	assert.Equal(t, 1883, cfg.MQTT.Port)
	assert.Equal(t, []string{"hibiscus"}, cfg.Order)
	assert.False(t, cfg.Influx.Enabled())

	p, ok := cfg.Profiles["hibiscus"]
	require.True(t, ok)
	assert.Equal(t, "Hibiscus", p.Plant)
	assert.Equal(t, 25, p.MoistMin)
	assert.Equal(t, 50000, p.LightIrr)
}

func TestLocalOverridesDist(t *testing.T) {
	dir := writeConfig(t, "config.ini.dist", minimalIni)
	local := `
[General]
processing_period = 60
night_begin = 22:00
night_end = 07:00

[Daemon]
enabled = false
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.ini"), []byte(local), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 60*time.Second, cfg.General.ProcessingPeriod)
	assert.Equal(t, Clock(22*60), cfg.General.NightBegin)
	assert.Equal(t, Clock(7*60), cfg.General.NightEnd)
	assert.False(t, cfg.Daemon.Enabled)
}

func TestLoadMissingFiles(t *testing.T) {
	_, err := Load(t.TempDir())
	assert.Error(t, err)
}

func TestLoadNoSensors(t *testing.T) {
	_, err := Load(writeConfig(t, "config.ini.dist", "[MQTT]\nsensors =\n"))
	assert.Error(t, err)
}

func TestLoadMissingPlantSection(t *testing.T) {
	_, err := Load(writeConfig(t, "config.ini.dist", "[MQTT]\nsensors = orchid\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "orchid")
}

func TestLoadMissingPlantOption(t *testing.T) {
	broken := `
[MQTT]
sensors = ficus

[ficus]
name = Ficus
pump = 1
`
	_, err := Load(writeConfig(t, "config.ini.dist", broken))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ficus")
}

func TestLoadInvalidThresholds(t *testing.T) {
	broken := `
[MQTT]
sensors = hibiscus

[hibiscus]
name = Hibiscus
pump = 1
temp_min = 10
temp_max = 35
cond_min = 350
cond_max = 2000
moist_min = 40
moist_lo = 30
moist_hi = 55
moist_max = 65
light_min = 2500
light_irr = 50000
light_max = 60000
`
	_, err := Load(writeConfig(t, "config.ini.dist", broken))
	assert.Error(t, err)
}

func TestEnvOverridesCredentials(t *testing.T) {
	t.Setenv("MQTT_USERNAME", "flora")
	t.Setenv("MQTT_PASSWORD", "secret")
	cfg, err := Load(writeConfig(t, "config.ini.dist", minimalIni))
	require.NoError(t, err)
	assert.Equal(t, "flora", cfg.MQTT.Username)
	assert.Equal(t, "secret", cfg.MQTT.Password)
}

func TestParseClock(t *testing.T) {
	c, err := ParseClock("06:30")
	require.NoError(t, err)
	assert.Equal(t, Clock(390), c)
	assert.Equal(t, "06:30", c.String())

	c, err = ParseClock("24:00")
	require.NoError(t, err)
	assert.Equal(t, Clock(1440), c)

	for _, bad := range []string{"", "7", "25:00", "24:01", "12:60", "ab:cd"} {
		_, err := ParseClock(bad)
		assert.Error(t, err, "input %q", bad)
	}
}

func TestAlertModeClamped(t *testing.T) {
	withAlerts := minimalIni + `
[Alerts]
w_battery = 1
w_light = 9
e_tank_empty = 0
alerts_defer_time = 2
`
	cfg, err := Load(writeConfig(t, "config.ini.dist", withAlerts))
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Alerts.Battery)
	assert.Equal(t, 2, cfg.Alerts.Light, "out-of-range mode falls back to default")
	assert.Equal(t, 0, cfg.Alerts.TankEmpty)
	assert.Equal(t, 2*time.Hour, cfg.Alerts.DeferTime)
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestParseOverridesDefaults(t *testing.T) {
	c, err := Parse([]byte(`
bus:
  adapter: nanopi
  number: 0
ens160:
  address: 0x53
ambient:
  sensor: shtc3
light:
  enabled: true
station:
  id: balcony
  interval: 2s
broadcast:
  message_delay: 20ms
metrics:
  enabled: true
debug:
  mode: 2
`))
	require.NoError(t, err)
	assert.Equal(t, AdapterNanoPi, c.Bus.Adapter)
	assert.Equal(t, 100_000, c.Bus.SpeedHz)
	assert.Equal(t, uint8(0x53), c.ENS160.Address)
	assert.Equal(t, 10*time.Millisecond, c.ENS160.BootDelay)
	assert.Equal(t, AmbientSHTC3, c.Ambient.Sensor)
	assert.True(t, c.Light.Enabled)
	assert.Equal(t, 1000.0, c.Light.MaxLux)
	assert.Equal(t, "balcony", c.Station.ID)
	assert.Equal(t, 2*time.Second, c.Station.Interval)
	assert.True(t, c.Station.Compensate)
	assert.True(t, c.Broadcast.Enabled)
	assert.Equal(t, 20*time.Millisecond, c.Broadcast.MessageDelay)
	assert.Equal(t, ":9160", c.Metrics.Listen)
	assert.Equal(t, 2, c.Debug.Mode)
}

func TestParseGeneratesID(t *testing.T) {
	c, err := Parse([]byte("{}"))
	require.NoError(t, err)
	assert.Len(t, c.Station.ID, 36)
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"adapter":        "bus: {adapter: serial}",
		"speed":          "bus: {speed_hz: 0}",
		"ens160 address": "ens160: {address: 0x50}",
		"boot delay":     "ens160: {boot_delay: -1ms}",
		"ambient":        "ambient: {sensor: dht22}",
		"bme address":    "ambient: {address: 0x10}",
		"max lux":        "light: {enabled: true, max_lux: 0}",
		"interval":       "station: {interval: 0s}",
		"broadcast":      "broadcast: {address: ''}",
		"metrics":        "metrics: {enabled: true, listen: ''}",
		"debug":          "debug: {mode: 5}",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestParseMalformed(t *testing.T) {
	_, err := Parse([]byte("bus: [unterminated"))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalid)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "airsense.yaml")
	require.NoError(t, os.WriteFile(path, []byte("station: {id: desk}\n"), 0o600))
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "desk", c.Station.ID)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

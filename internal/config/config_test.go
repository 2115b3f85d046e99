package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 2, cfg.Poll.IntervalSeconds)
	assert.Equal(t, "nrgkick", cfg.MQTT.BaseTopic)
	assert.False(t, cfg.DeviceConfig().Configured())
	assert.False(t, cfg.MQTT.Enabled())
}

func TestLoadEnvironmentFallbacks(t *testing.T) {
	t.Setenv("NRGKICK_HOST", "192.168.1.50")
	t.Setenv("NRGKICK_USERNAME", "admin")
	t.Setenv("NRGKICK_PASSWORD", "secret")
	t.Setenv("MQTT_BROKER", "tcp://localhost:1883")
	t.Setenv("PORT", "9090")

	cfg, err := Load()
	require.NoError(t, err)

	device := cfg.DeviceConfig()
	assert.True(t, device.Configured())
	assert.True(t, device.HasAuth())
	assert.Equal(t, "192.168.1.50", device.Host)
	assert.True(t, cfg.MQTT.Enabled())
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestDeviceConfigAuth(t *testing.T) {
	t.Setenv("NRGKICK_HOST", "192.168.1.50")
	t.Setenv("NRGKICK_USERNAME", "")
	t.Setenv("NRGKICK_PASSWORD", "")

	cfg, err := Load()
	require.NoError(t, err)

	device := cfg.DeviceConfig()
	assert.True(t, device.Configured())
	assert.False(t, device.HasAuth())
}

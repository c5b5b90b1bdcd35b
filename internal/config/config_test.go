package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/XC-/lampgatt"
	"github.com/XC-/lampgatt/gatttest"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefault(t *testing.T) {
	c := Default()
	assert.Equal(t, "Color Lamp", c.Name)
	assert.Equal(t, uint16(gatt.AppearanceLightBulb), c.Appearance)
	assert.Equal(t, int8(9), c.TxPower)
	assert.Equal(t, BackendSim, c.Backend)
	assert.Equal(t, 0, c.HCIDevice)
	assert.Equal(t, "info", c.LogLevel)
	assert.Equal(t, 10*time.Second, c.DemoInterval)
	assert.Equal(t, *gatt.DefaultAdvertisingParams(), c.Advertising)
	assert.NoError(t, c.Validate())
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lampd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
name: Desk Lamp
backend: goble
hci_device: 1
log_level: debug
demo_interval: 250ms
advertising:
  min_interval: 160
  max_interval: 320
`)
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Desk Lamp", c.Name)
	assert.Equal(t, BackendGoble, c.Backend)
	assert.Equal(t, 1, c.HCIDevice)
	assert.Equal(t, logrus.DebugLevel, c.Level())
	assert.Equal(t, 250*time.Millisecond, c.DemoInterval)
	assert.Equal(t, uint16(160), c.Advertising.MinInterval)
	assert.Equal(t, uint16(320), c.Advertising.MaxInterval)
	assert.Equal(t, gatt.AdvChannelAll, c.Advertising.ChannelMap, "unset fields keep defaults")
	assert.Equal(t, uint16(gatt.AppearanceLightBulb), c.Appearance)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"bad yaml", "name: [", "parsing config file"},
		{"bad backend", "backend: bluez", "backend must be"},
		{"bad level", "log_level: loud", "log_level"},
		{"empty name", `name: ""`, "name must be"},
		{"long name", "name: a lamp with a name far too long to advertise", "name must be"},
		{"bad interval", "advertising: {min_interval: 8}", "advertising"},
		{"negative demo", "demo_interval: -1s", "demo_interval"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLevel(t *testing.T) {
	tests := []struct {
		level string
		want  logrus.Level
	}{
		{"debug", logrus.DebugLevel},
		{"warn", logrus.WarnLevel},
		{"error", logrus.ErrorLevel},
		{"bogus", logrus.InfoLevel},
	}
	for _, tt := range tests {
		c := Default()
		c.LogLevel = tt.level
		assert.Equal(t, tt.want, c.Level(), tt.level)
		assert.Equal(t, tt.want, c.NewLogger().GetLevel(), tt.level)
	}
}

func TestNewLoggerFormatter(t *testing.T) {
	f, ok := Default().NewLogger().Formatter.(*logrus.TextFormatter)
	require.True(t, ok)
	assert.True(t, f.FullTimestamp)
	assert.Equal(t, time.RFC3339, f.TimestampFormat)
}

func TestMarshalRoundTrip(t *testing.T) {
	c := Default()
	c.Name = "Hall"
	c.DemoInterval = 3 * time.Second
	b, err := c.Marshal()
	require.NoError(t, err)
	assert.Contains(t, string(b), "demo_interval: 3s")

	var got Config
	require.NoError(t, yaml.Unmarshal(b, &got))
	assert.Equal(t, *c, got)
}

func TestApply(t *testing.T) {
	c := Default()
	c.Name = "Porch"
	c.TxPower = -4
	ctrl := gatttest.New()
	srv := gatt.NewServer(ctrl, gatt.Logger(c.NewLogger()))
	c.Apply(srv)
	require.NoError(t, srv.Start())

	call, ok := ctrl.Last(gatttest.OpSetDeviceName)
	require.True(t, ok)
	assert.Equal(t, "Porch", call.Name)

	call, ok = ctrl.Last(gatttest.OpConfigureAdvertising)
	require.True(t, ok)
	assert.Equal(t, gatt.AppearanceLightBulb, call.Adv.Appearance)
	assert.Equal(t, int8(-4), call.Adv.TxPower)
}

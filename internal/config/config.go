package config

import (
	"fmt"
	"os"
	"time"

	"github.com/XC-/lampgatt"
	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Controller backends.
const (
	BackendSim   = "sim"
	BackendGoble = "goble"
)

// maxNameLen is the longest device name a controller accepts.
const maxNameLen = 29

// Config holds the lampd configuration.
type Config struct {
	Name         string                 `default:"Color Lamp" yaml:"name"`
	Appearance   uint16                 `default:"1431" yaml:"appearance"`
	TxPower      int8                   `default:"9" yaml:"tx_power"`
	Backend      string                 `default:"sim" yaml:"backend"`
	HCIDevice    int                    `yaml:"hci_device"`
	LogLevel     string                 `default:"info" yaml:"log_level"`
	DemoInterval time.Duration          `default:"10s" yaml:"demo_interval"`
	Advertising  gatt.AdvertisingParams `yaml:"advertising"`
}

// Default returns the default configuration.
func Default() *Config {
	c := &Config{Advertising: *gatt.DefaultAdvertisingParams()}
	defaults.SetDefaults(c)
	return c
}

// Load reads a YAML configuration file. Missing fields keep their
// default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	c := Default()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return c, nil
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	if c.Name == "" || len(c.Name) > maxNameLen {
		return fmt.Errorf("name must be 1 to %d bytes long, got %q", maxNameLen, c.Name)
	}
	switch c.Backend {
	case BackendSim, BackendGoble:
	default:
		return fmt.Errorf("backend must be %q or %q, got %q", BackendSim, BackendGoble, c.Backend)
	}
	if c.HCIDevice < 0 {
		return fmt.Errorf("hci_device must be >= 0, got %d", c.HCIDevice)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	if c.DemoInterval < 0 {
		return fmt.Errorf("demo_interval must be >= 0, got %s", c.DemoInterval)
	}
	if err := c.Advertising.Validate(); err != nil {
		return fmt.Errorf("advertising: %w", err)
	}
	return nil
}

// Level returns the configured log level, or info if it does not parse.
func (c *Config) Level() logrus.Level {
	l, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return l
}

// NewLogger creates a configured logger instance
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(c.Level())
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})
	return logger
}

// Marshal returns c as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// Apply sets the device options of c on srv.
func (c *Config) Apply(srv *gatt.Server) {
	p := c.Advertising
	srv.Option(
		gatt.Name(c.Name),
		gatt.DeviceAppearance(gatt.Appearance(c.Appearance)),
		gatt.TxPower(c.TxPower),
		gatt.AdvertisingParameters(&p),
	)
}

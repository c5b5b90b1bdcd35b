package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/XC-/lampgatt/internal/config"
	"github.com/XC-/lampgatt/sim"
	"github.com/fatih/color"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type CommandTestSuite struct {
	suite.Suite
	noColor bool
}

func (s *CommandTestSuite) SetupSuite() {
	s.noColor = color.NoColor
	color.NoColor = true
}

func (s *CommandTestSuite) TearDownSuite() {
	color.NoColor = s.noColor
}

func (s *CommandTestSuite) SetupTest() {
	configPath, logLevel = "", ""
}

func (s *CommandTestSuite) execute(args ...string) (string, error) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)
	err := rootCmd.Execute()
	return out.String(), err
}

func (s *CommandTestSuite) writeConfig(content string) string {
	path := filepath.Join(s.T().TempDir(), "lampd.yaml")
	s.Require().NoError(os.WriteFile(path, []byte(content), 0o600))
	return path
}

func (s *CommandTestSuite) TestConfigCommand() {
	path := s.writeConfig("name: Desk Lamp\ndemo_interval: 2s\n")
	out, err := s.execute("--config", path, "--log-level", "warn", "config")
	s.Require().NoError(err)
	s.Contains(out, "name: Desk Lamp")
	s.Contains(out, "demo_interval: 2s")
	s.Contains(out, "log_level: warn")
	s.Contains(out, "backend: sim")
}

func (s *CommandTestSuite) TestConfigCommandBadFile() {
	path := s.writeConfig("backend: carrier-pigeon\n")
	_, err := s.execute("--config", path, "config")
	s.Require().Error(err)
	s.Contains(err.Error(), "backend must be")
}

func (s *CommandTestSuite) TestBadLogLevelFlag() {
	_, err := s.execute("--log-level", "chatty", "config")
	s.Require().Error(err)
	s.Contains(err.Error(), "log_level")
}

func (s *CommandTestSuite) TestTableCommand() {
	out, err := s.execute("--log-level", "error", "table")
	s.Require().NoError(err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	s.Require().Len(lines, 9)
	s.Equal("Color Lamp (profile live)", lines[0])
	s.True(strings.HasPrefix(lines[1], "HANDLE"))
	want := []struct {
		prefix, uuid, name string
	}{
		{"0x0028  service", "4e0f5e1e-fc5b-4d67-8e30-2a83b336476b", "Lamp"},
		{"0x002a  characteristic", "f9dfbd73-0181-433a-8091-372e0ca8a598", "Brightness"},
		{"0x002b  descriptor", "0x2902", "Brightness"},
		{"0x002c  descriptor", "0x2901", "Brightness"},
		{"0x002e  characteristic", "ca344e9b-7445-43aa-ad20-43a33c8101e9", "Temperature"},
		{"0x002f  descriptor", "0x2902", "Temperature"},
		{"0x0030  descriptor", "0x2901", "Temperature"},
	}
	for i, w := range want {
		line := lines[i+2]
		s.True(strings.HasPrefix(line, w.prefix), line)
		s.Contains(line, w.uuid)
		s.True(strings.HasSuffix(line, w.name), line)
	}
}

func TestCommandTestSuite(t *testing.T) {
	suite.Run(t, new(CommandTestSuite))
}

func TestNewController(t *testing.T) {
	l, _ := test.NewNullLogger()
	cfg := config.Default()

	ctrl, err := newController(cfg, l)
	require.NoError(t, err)
	assert.IsType(t, &sim.Controller{}, ctrl)

	cfg.Backend = "bogus"
	_, err = newController(cfg, l)
	assert.Error(t, err)
}

func TestSimulateClient(t *testing.T) {
	l, hook := test.NewNullLogger()
	cfg := config.Default()
	c := sim.New(l)
	e, err := newEngine(cfg, c, l)
	require.NoError(t, err)
	require.NoError(t, e.srv.Start())
	c.Flush(e.srv)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go c.Run(ctx, e.srv)

	done := make(chan struct{})
	go func() {
		defer close(done)
		simulateClient(ctx, c, e.app, l.WithField("component", "central"))
	}()
	require.Eventually(t, func() bool { return e.lamp.Brightness() == 80 }, time.Second, time.Millisecond)

	e.lamp.SetTemperature(12, true)
	require.Eventually(t, func() bool {
		for _, entry := range hook.AllEntries() {
			if entry.Message == "notification" {
				return true
			}
		}
		return false
	}, time.Second, time.Millisecond)

	cancel()
	<-done
	assert.True(t, c.Connected())
}

package main

import (
	"context"
	"fmt"

	"github.com/XC-/lampgatt"
	"github.com/XC-/lampgatt/goble"
	"github.com/XC-/lampgatt/internal/app"
	"github.com/XC-/lampgatt/internal/config"
	"github.com/XC-/lampgatt/internal/lamp"
	"github.com/XC-/lampgatt/sim"
	"github.com/sirupsen/logrus"
)

// A controller delivers its events to the server from Run.
type controller interface {
	gatt.Controller
	Run(ctx context.Context, h gatt.EventHandler) error
}

// newController returns the controller for the configured backend.
// newDevice is only called for the goble backend.
func newController(cfg *config.Config, logger *logrus.Logger) (controller, error) {
	switch cfg.Backend {
	case config.BackendSim:
		return sim.New(logger), nil
	case config.BackendGoble:
		dev, err := newDevice(cfg.HCIDevice)
		if err != nil {
			return nil, fmt.Errorf("open hci%d: %w", cfg.HCIDevice, err)
		}
		return goble.New(dev, logger), nil
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}

type engine struct {
	lamp *lamp.Lamp
	app  *app.App
	srv  *gatt.Server
}

// newEngine declares the lamp profile on a server driving ctrl. The
// server is not started.
func newEngine(cfg *config.Config, ctrl gatt.Controller, logger *logrus.Logger) (*engine, error) {
	e := &engine{lamp: lamp.New()}
	e.app = app.New(e.lamp, logger)
	e.srv = gatt.NewServer(ctrl, gatt.Logger(logger))
	cfg.Apply(e.srv)
	if err := e.app.Attach(e.srv); err != nil {
		return nil, err
	}
	return e, nil
}

package main

import (
	"context"
	"errors"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/XC-/lampgatt"
	"github.com/XC-/lampgatt/internal/app"
	"github.com/XC-/lampgatt/sim"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Serve the lamp until interrupted",
	Long: `Registers the lamp profile, advertises and serves the connected central.
Unless disabled, random lamp values are set and notified every demo interval.`,
	Args: cobra.NoArgs,
	RunE: runLamp,
}

var (
	runBackend        string
	runHCIDevice      int
	runSimulateClient bool
	runNoDemo         bool
)

func init() {
	runCmd.Flags().StringVarP(&runBackend, "backend", "b", "", "Controller backend (sim, goble)")
	runCmd.Flags().IntVar(&runHCIDevice, "hci", -1, "HCI device id for the goble backend")
	runCmd.Flags().BoolVar(&runSimulateClient, "simulate-client", false, "Connect a scripted central (sim backend only)")
	runCmd.Flags().BoolVar(&runNoDemo, "no-demo", false, "Do not set random lamp values")
}

func runLamp(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if runBackend != "" {
		cfg.Backend = runBackend
	}
	if runHCIDevice >= 0 {
		cfg.HCIDevice = runHCIDevice
	}
	if runNoDemo {
		cfg.DemoInterval = 0
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	logger := cfg.NewLogger()
	ctrl, err := newController(cfg, logger)
	if err != nil {
		return err
	}
	e, err := newEngine(cfg, ctrl, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if runSimulateClient {
		s, ok := ctrl.(*sim.Controller)
		if !ok {
			return errors.New("--simulate-client requires the sim backend")
		}
		log := logger.WithField("component", "central")
		e.srv.Option(gatt.Registered(func(*gatt.Profile) {
			go simulateClient(ctx, s, e.app, log)
		}))
	}

	if err := e.srv.Start(); err != nil {
		return err
	}
	if cfg.DemoInterval > 0 {
		go e.app.Demo(ctx, cfg.DemoInterval, rand.New(rand.NewSource(time.Now().UnixNano())))
	}
	logger.WithFields(logrus.Fields{"name": cfg.Name, "backend": cfg.Backend}).Info("lamp started")

	err = ctrl.Run(ctx, e.srv)
	if errors.Is(err, context.Canceled) {
		logger.Info("lamp stopped")
		return nil
	}
	return err
}

// simulateClient connects a central to c, reads and sets the
// brightness, then logs notifications until ctx is done.
func simulateClient(ctx context.Context, c *sim.Controller, a *app.App, log *logrus.Entry) {
	brightness, _ := a.Brightness().Handle()
	if _, err := c.Connect(sim.DefaultCentralAddr); err != nil {
		log.WithError(err).Error("connect")
		return
	}
	v, status, err := c.Read(ctx, brightness, 0)
	if err != nil {
		log.WithError(err).Error("read brightness")
		return
	}
	log.WithFields(logrus.Fields{"status": status, "value": v}).Info("read brightness")

	status, err = c.Write(ctx, brightness, []byte{80})
	if err != nil {
		log.WithError(err).Error("write brightness")
		return
	}
	log.WithField("status", status).Info("wrote brightness")

	for {
		select {
		case <-ctx.Done():
			return
		case n := <-c.Notifications():
			log.WithFields(logrus.Fields{"handle": n.Handle, "value": n.Value}).Info("notification")
		}
	}
}

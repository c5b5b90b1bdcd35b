package main

import (
	"fmt"
	"io"

	"github.com/XC-/lampgatt/internal/app"
	"github.com/XC-/lampgatt/internal/config"
	"github.com/XC-/lampgatt/sim"
	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var tableCmd = &cobra.Command{
	Use:   "table",
	Short: "Print the attribute table of the lamp",
	Long: `Registers the lamp profile with the simulated controller and prints
the resulting attribute handles.`,
	Args: cobra.NoArgs,
	RunE: runTable,
}

var tableNoColor bool

func init() {
	tableCmd.Flags().BoolVar(&tableNoColor, "no-color", false, "Disable colored output")
}

func runTable(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true
	if tableNoColor {
		color.NoColor = true
	}
	return printTable(cmd.OutOrStdout(), cfg, cfg.NewLogger())
}

// printTable registers the lamp profile on a simulated controller and
// writes its attribute table to w.
func printTable(w io.Writer, cfg *config.Config, logger *logrus.Logger) error {
	c := sim.New(logger)
	e, err := newEngine(cfg, c, logger)
	if err != nil {
		return err
	}
	if err := e.srv.Start(); err != nil {
		return err
	}
	c.Flush(e.srv)

	state, err := e.srv.RegistrationState(app.AppID)
	if err != nil {
		return err
	}

	header := color.New(color.Bold)
	kinds := map[string]*color.Color{
		"service":        color.New(color.FgYellow),
		"characteristic": color.New(color.FgCyan),
		"descriptor":     color.New(color.FgWhite),
	}
	fmt.Fprintf(w, "%s (profile %s)\n", header.Sprint(c.DeviceName()), state)
	fmt.Fprintln(w, header.Sprintf("%-8s%-16s%-38s%s", "HANDLE", "TYPE", "UUID", "NAME"))
	for _, a := range e.srv.Attributes() {
		kind := fmt.Sprintf("%-16s", a.Type)
		if col, ok := kinds[a.Type]; ok {
			kind = col.Sprint(kind)
		}
		fmt.Fprintf(w, "0x%04x  %s%-38s%s\n", a.Handle, kind, a.UUID, a.Name)
	}
	return nil
}

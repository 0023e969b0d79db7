package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var sensorsCmd = &cobra.Command{
	Use:   "sensors",
	Short: "Print the current state of the panel sensors",
	Run: func(cmd *cobra.Command, args []string) {
		if err := runSensors(cmd); err != nil {
			fmt.Printf("Sensor read failed: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(sensorsCmd)
}

func runSensors(cmd *cobra.Command) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	m, err := openMachine(cmd.Context(), cmd, cfg, logger)
	if err != nil {
		return err
	}
	defer m.Close()

	for _, p := range m.panel() {
		r, err := p.Read()
		if err != nil {
			return fmt.Errorf("pin %d: %w", p.Pin, err)
		}
		state := "clear"
		if r.Triggered {
			state = "triggered"
		}
		fmt.Printf("GPIO %-3d raw=%d %s\n", r.Pin, r.Raw, state)
	}
	return nil
}

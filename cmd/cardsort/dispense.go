package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var dispenseCmd = &cobra.Command{
	Use:   "dispense",
	Short: "Release the card at the camera into a bin",
	Run: func(cmd *cobra.Command, args []string) {
		bin, _ := cmd.Flags().GetInt("bin")
		if err := runDispense(cmd, bin); err != nil {
			fmt.Printf("Dispense failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Card dispensed to bin %d\n", bin)
	},
}

func init() {
	rootCmd.AddCommand(dispenseCmd)
	dispenseCmd.Flags().IntP("bin", "b", 10, "Destination bin (1-10)")
}

func runDispense(cmd *cobra.Command, bin int) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m, err := openMachine(ctx, cmd, cfg, logger)
	if err != nil {
		return err
	}
	defer m.Close()

	seq, err := m.dispenser()
	if err != nil {
		return err
	}
	return seq.Dispense(ctx, bin)
}

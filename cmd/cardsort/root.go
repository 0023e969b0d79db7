package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/cardsort/internal/config"
	"github.com/aretw0/cardsort/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "cardsort",
	Short: "cardsort drives a card sorting machine",
	Long: `cardsort feeds trading cards one at a time past a camera, identifies them
with an external recognizer and drops each one into one of ten bins.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to the machine configuration (YAML)")
	rootCmd.PersistentFlags().Bool("simulate", false, "Run against a simulated board instead of pigpiod")
	rootCmd.PersistentFlags().String("log-level", "", "Override log.level from the configuration")
}

// loadConfig reads the configuration named by --config and builds the logger.
func loadConfig(cmd *cobra.Command) (config.Config, *slog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, nil, err
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logging.NewWithWriter(os.Stderr, level, cfg.Log.Format), nil
}

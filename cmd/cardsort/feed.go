package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aretw0/cardsort/pkg/domain"
)

var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "Feed a single card to the camera position",
	Long:  `Runs one feed cycle and prints each phase. Exits non-zero if the card did not arrive.`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runFeed(cmd); err != nil {
			fmt.Printf("Feed failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Card at camera")
	},
}

func init() {
	rootCmd.AddCommand(feedCmd)
}

func runFeed(cmd *cobra.Command) error {
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

	seq, err := m.feeder(domain.LifecycleHooks{
		OnFeedPhase: func(_ context.Context, e *domain.PhaseEvent) {
			fmt.Printf("  %s\n", e.Phase)
		},
	})
	if err != nil {
		return err
	}
	return seq.Feed(ctx)
}

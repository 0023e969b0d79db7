package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/cardsort/pkg/adapters/file"
	"github.com/aretw0/cardsort/pkg/domain"
	"github.com/aretw0/cardsort/pkg/ports"
	"github.com/aretw0/cardsort/pkg/routing"
)

var routeCmd = &cobra.Command{
	Use:   "route",
	Short: "Show which bin a card would be sorted into",
	Long: `Evaluates a card record (JSON, as printed by the recognizer) against the
saved bin criteria. Use --card - to read the record from stdin.`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runRoute(cmd); err != nil {
			fmt.Printf("Route failed: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(routeCmd)
	routeCmd.Flags().String("card", "-", "Card record to route")
}

func runRoute(cmd *cobra.Command) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	in := io.Reader(os.Stdin)
	if path, _ := cmd.Flags().GetString("card"); path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}
	return explainRoute(cmd.Context(), file.NewCriteriaStore(cfg.Storage.CriteriaPath), in, os.Stdout)
}

func explainRoute(ctx context.Context, store ports.CriteriaStore, in io.Reader, out io.Writer) error {
	var card domain.Card
	if err := json.NewDecoder(in).Decode(&card); err != nil {
		return fmt.Errorf("invalid card record: %w", err)
	}
	table, err := store.Load(ctx)
	if err != nil {
		return err
	}
	for _, d := range routing.Explain(card, table) {
		mark := " "
		if d.Matched {
			mark = "x"
		}
		fmt.Fprintf(out, "[%s] bin %d\n", mark, d.Bin)
	}
	fmt.Fprintf(out, "%s -> bin %d\n", card.Name, routing.Route(card, table))
	return nil
}

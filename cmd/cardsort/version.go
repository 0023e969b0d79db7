package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/cardsort"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of cardsort",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("cardsort version %s\n", strings.TrimSpace(cardsort.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

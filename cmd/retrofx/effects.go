package main

import (
	"encoding/json"

	"github.com/aretw0/retrofx/internal/presentation/tui"
	"github.com/aretw0/retrofx/pkg/catalog"
	"github.com/spf13/cobra"
)

var effectsCmd = &cobra.Command{
	Use:   "effects",
	Short: "Describe the available effects and their parameters",
	RunE: func(cmd *cobra.Command, args []string) error {
		effects := catalog.Default().List()
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(effects)
		}
		return tui.RenderCatalog(cmd.OutOrStdout(), effects)
	},
}

func init() {
	rootCmd.AddCommand(effectsCmd)
	effectsCmd.Flags().Bool("json", false, "Print the catalog as JSON")
}

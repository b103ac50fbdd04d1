package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/retrofx"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of retrofx",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "retrofx version %s\n", strings.TrimSpace(retrofx.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

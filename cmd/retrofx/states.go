package main

import (
	"fmt"

	"github.com/aretw0/retrofx/internal/presentation/graph"
	"github.com/spf13/cobra"
)

var statesCmd = &cobra.Command{
	Use:   "states [session-id]",
	Short: "Print the processing state machine as a Mermaid diagram",
	Long:  `Prints the apply cycle as a Mermaid state diagram. With a session id, the session's current state is highlighted.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var overlay *graph.GraphOverlay
		if len(args) == 1 {
			store, done, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer done()

			snap, err := store.Load(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("loading session '%s': %w", args[0], err)
			}
			overlay = &graph.GraphOverlay{SessionID: snap.ID, CurrentState: snap.State}
			if snap.Selection != nil {
				overlay.Effect = snap.Selection.EffectID
			}
		}
		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(overlay))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statesCmd)
}

package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aretw0/retrofx/pkg/ports"
	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage persisted sessions",
	Long:  `List, inspect, and remove session snapshots kept in the configured Redis store.`,
}

var sessionLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List all stored sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, done, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer done()

		sessions, err := store.List(cmd.Context())
		if err != nil {
			return fmt.Errorf("listing sessions: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(sessions) == 0 {
			fmt.Fprintln(out, "No active sessions found.")
			return nil
		}

		fmt.Fprintln(out, "Active Sessions:")
		for _, s := range sessions {
			fmt.Fprintln(out, "- "+s)
		}
		return nil
	},
}

var sessionInspectCmd = &cobra.Command{
	Use:   "inspect <session-id>",
	Short: "Inspect the state of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID := args[0]
		store, done, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer done()

		snap, err := store.Load(cmd.Context(), sessionID)
		if err != nil {
			return fmt.Errorf("loading session '%s': %w", sessionID, err)
		}

		data, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

var sessionRmCmd = &cobra.Command{
	Use:   "rm [session-id]...",
	Short: "Remove one or more sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		if !all && len(args) == 0 {
			return errors.New("requires at least one session id or --all")
		}

		store, done, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer done()

		if all {
			args, err = store.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("listing sessions: %w", err)
			}
		}

		var errs []error
		for _, sessionID := range args {
			if err := store.Delete(cmd.Context(), sessionID); err != nil {
				errs = append(errs, fmt.Errorf("removing '%s': %w", sessionID, err))
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed session '%s'\n", sessionID)
		}
		return errors.Join(errs...)
	},
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionLsCmd)
	sessionCmd.AddCommand(sessionInspectCmd)
	sessionCmd.AddCommand(sessionRmCmd)
	sessionRmCmd.Flags().Bool("all", false, "Remove every stored session")
}

// openStore opens the configured store. Only Redis outlives the server process.
func openStore(cmd *cobra.Command) (ports.SessionStore, func(), error) {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	if cfg.RedisAddr == "" {
		return nil, nil, errors.New("no redis_addr configured: in-memory sessions live only inside the server")
	}
	store, _, closeStore, err := newStore(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return store, func() {
		if err := closeStore(); err != nil {
			logger.Warn("Failed to close session store", "err", err)
		}
	}, nil
}

package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/retrofx/internal/config"
	"github.com/aretw0/retrofx/internal/logging"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "retrofx",
	Short:        "retrofx applies retro effects to images through a remote processing service",
	Long:         `retrofx hosts editing sessions: upload an image, pick pixelate or VHS, tune it and export the result.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file (default: ./"+config.DefaultFile+" if present)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "", "Log format: text or json")
}

// loadConfig resolves the configuration and applies the persistent flags on top.
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel, _ = cmd.Flags().GetString("log-level")
	}
	if cmd.Flags().Changed("log-format") {
		cfg.LogFormat, _ = cmd.Flags().GetString("log-format")
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	logger := logging.New(level, cfg.LogFormat)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

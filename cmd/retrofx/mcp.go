package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/retrofx/pkg/adapters/mcp"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Exposes one editing session as an MCP Server.
Agents can upload local images, pick and tune effects, apply them and export the result.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		transport, _ := cmd.Flags().GetString("transport")
		port, _ := cmd.Flags().GetInt("port")

		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		client, err := newGateway(cfg, logger, nil)
		if err != nil {
			return err
		}
		editor := newEditorFactory(cfg, client, logger, nil)(uuid.NewString())
		srv := mcp.NewServer(editor, mcp.WithLogger(logger))

		switch transport {
		case "stdio":
			// Ensure logs don't corrupt JSON-RPC on Stdout
			log.SetOutput(os.Stderr)
			logger.Info("Starting retrofx MCP Server (Stdio)", "session_id", editor.ID())
			return srv.ServeStdio()
		case "sse":
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if err := srv.ServeSSE(ctx, port); err != nil {
				return err
			}
			logger.Info("MCP Server stopped gracefully")
			return nil
		default:
			return fmt.Errorf("unknown transport: %s. Supported: stdio, sse", transport)
		}
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)

	mcpCmd.Flags().String("transport", "stdio", "Transport protocol to use: 'stdio' or 'sse'")
	mcpCmd.Flags().Int("port", 8081, "Port to listen on (only for SSE)")
}

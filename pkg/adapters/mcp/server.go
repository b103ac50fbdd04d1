package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aretw0/retrofx"
	"github.com/aretw0/retrofx/internal/logging"
	"github.com/aretw0/retrofx/pkg/domain"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/mitchellh/mapstructure"
)

const catalogURI = "retrofx://effects"

// StatusResponse is the structured result of every editing tool.
type StatusResponse struct {
	Session domain.SessionSnapshot `json:"session" jsonschema_description:"The current editing session"`
	Message string                 `json:"message,omitempty" jsonschema_description:"Human readable outcome"`
}

// ApplyResponse is the structured result of apply_effect.
type ApplyResponse struct {
	Token        uint64                 `json:"token" jsonschema_description:"Submission token"`
	Stale        bool                   `json:"stale" jsonschema_description:"True when a newer submission superseded this one"`
	ProcessedURL string                 `json:"processed_url,omitempty" jsonschema_description:"Where the processed image was published"`
	Session      domain.SessionSnapshot `json:"session" jsonschema_description:"The editing session after the apply"`
}

type uploadArgs struct {
	Path string `mapstructure:"path"`
}

type selectArgs struct {
	EffectID string `mapstructure:"effect_id"`
}

type paramArgs struct {
	Key   string `mapstructure:"key"`
	Value any    `mapstructure:"value"`
}

type exportArgs struct {
	Dir string `mapstructure:"dir"`
}

// Server exposes one editing session as an MCP server.
type Server struct {
	editor    *retrofx.Editor
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// NewServer creates a new MCP Server instance bound to editor.
func NewServer(editor *retrofx.Editor, opts ...Option) *Server {
	s := &Server{
		editor:    editor,
		mcpServer: server.NewMCPServer("retrofx-mcp", strings.TrimSpace(retrofx.Version)),
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves the MCP SSE transport on port until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Info("Shutdown signal received, shutting down MCP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("list_effects",
		mcp.WithDescription("List the available effects and their tunable parameters."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		data, err := json.Marshal(s.editor.Catalog().List())
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("encode catalog: %v", err)), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	})

	s.mcpServer.AddTool(mcp.NewTool("upload_image",
		mcp.WithDescription("Upload a local PNG, JPEG or WebP file and make it the image being edited. Clears the active effect."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path of the image file")),
		mcp.WithOutputSchema[StatusResponse](),
	), mcp.NewStructuredToolHandler(s.handleUpload))

	s.mcpServer.AddTool(mcp.NewTool("select_effect",
		mcp.WithDescription("Make an effect the single active effect, with default parameters."),
		mcp.WithString("effect_id", mcp.Required(), mcp.Description("Effect id, e.g. pixelate or vhs")),
		mcp.WithOutputSchema[StatusResponse](),
	), mcp.NewStructuredToolHandler(s.handleSelect))

	s.mcpServer.AddTool(mcp.NewTool("update_param",
		mcp.WithDescription("Set one parameter of the active effect. Numbers outside the declared range are clamped or rejected."),
		mcp.WithString("key", mcp.Required(), mcp.Description("Parameter key, e.g. pixel_size")),
		mcp.WithString("value", mcp.Required(), mcp.Description("New value, e.g. 24 or false")),
		mcp.WithOutputSchema[StatusResponse](),
	), mcp.NewStructuredToolHandler(s.handleUpdateParam))

	s.mcpServer.AddTool(mcp.NewTool("clear_effect",
		mcp.WithDescription("Remove the active effect."),
		mcp.WithOutputSchema[StatusResponse](),
	), mcp.NewStructuredToolHandler(s.handleClear))

	s.mcpServer.AddTool(mcp.NewTool("apply_effect",
		mcp.WithDescription("Send the active effect to the processing service and show the result."),
		mcp.WithOutputSchema[ApplyResponse](),
	), mcp.NewStructuredToolHandler(s.handleApply))

	s.mcpServer.AddTool(mcp.NewTool("export_image",
		mcp.WithDescription("Write the visible frame as a PNG file named after the active effect."),
		mcp.WithString("dir", mcp.Description("Target directory (default: current directory)")),
		mcp.WithOutputSchema[StatusResponse](),
	), mcp.NewStructuredToolHandler(s.handleExport))

	s.mcpServer.AddTool(mcp.NewTool("session_status",
		mcp.WithDescription("Show the image, active effect, processing state and the last processing error."),
		mcp.WithOutputSchema[StatusResponse](),
	), mcp.NewStructuredToolHandler(s.handleStatus))

	s.mcpServer.AddTool(mcp.NewTool("acknowledge_error",
		mcp.WithDescription("Clear a reported processing error so the session returns to idle. The visible image is kept."),
		mcp.WithOutputSchema[StatusResponse](),
	), mcp.NewStructuredToolHandler(s.handleAcknowledge))
}

func (s *Server) handleUpload(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (StatusResponse, error) {
	var in uploadArgs
	if err := mapstructure.Decode(args, &in); err != nil {
		return StatusResponse{}, fmt.Errorf("invalid arguments: %w", err)
	}
	data, err := os.ReadFile(in.Path)
	if err != nil {
		return StatusResponse{}, fmt.Errorf("read image: %w", err)
	}
	ref, err := s.editor.Upload(ctx, filepath.Base(in.Path), data)
	if err != nil {
		return StatusResponse{}, err
	}
	return s.status(fmt.Sprintf("loaded %s", ref)), nil
}

func (s *Server) handleSelect(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (StatusResponse, error) {
	var in selectArgs
	if err := mapstructure.Decode(args, &in); err != nil {
		return StatusResponse{}, fmt.Errorf("invalid arguments: %w", err)
	}
	if err := s.editor.SelectEffect(domain.EffectID(in.EffectID)); err != nil {
		return StatusResponse{}, err
	}
	return s.status("selected " + in.EffectID), nil
}

func (s *Server) handleUpdateParam(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (StatusResponse, error) {
	var in paramArgs
	if err := mapstructure.Decode(args, &in); err != nil {
		return StatusResponse{}, fmt.Errorf("invalid arguments: %w", err)
	}
	v, err := s.editor.UpdateParam(in.Key, in.Value)
	if err != nil {
		return StatusResponse{}, err
	}
	return s.status(fmt.Sprintf("%s = %v", in.Key, v)), nil
}

func (s *Server) handleClear(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (StatusResponse, error) {
	s.editor.ClearSelection()
	return s.status("selection cleared"), nil
}

func (s *Server) handleApply(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (ApplyResponse, error) {
	out, err := s.editor.Apply(ctx)
	if err != nil {
		s.logger.Warn("MCP apply failed", "err", err)
		return ApplyResponse{}, err
	}
	return ApplyResponse{
		Token:        uint64(out.Token),
		Stale:        out.Stale,
		ProcessedURL: out.Result.URL,
		Session:      s.editor.Snapshot(),
	}, nil
}

func (s *Server) handleExport(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (StatusResponse, error) {
	var in exportArgs
	if err := mapstructure.Decode(args, &in); err != nil {
		return StatusResponse{}, fmt.Errorf("invalid arguments: %w", err)
	}
	name, data, err := s.editor.Export()
	if err != nil {
		return StatusResponse{}, err
	}
	if in.Dir == "" {
		in.Dir = "."
	}
	target := filepath.Join(in.Dir, name)
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return StatusResponse{}, fmt.Errorf("write export: %w", err)
	}
	return s.status("exported " + target), nil
}

func (s *Server) handleStatus(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (StatusResponse, error) {
	snap := s.editor.Snapshot()
	msg := string(snap.State)
	if snap.State == domain.StateError {
		msg = "last apply failed: " + snap.LastError
	}
	return StatusResponse{Session: snap, Message: msg}, nil
}

func (s *Server) handleAcknowledge(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (StatusResponse, error) {
	if !s.editor.Acknowledge(ctx) {
		return s.status("no error to acknowledge"), nil
	}
	return s.status("error acknowledged"), nil
}

func (s *Server) status(msg string) StatusResponse {
	return StatusResponse{Session: s.editor.Snapshot(), Message: msg}
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(catalogURI, "Effect Catalog",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		jsonBytes, err := json.Marshal(s.editor.Catalog().List())
		if err != nil {
			return nil, fmt.Errorf("failed to encode catalog: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      catalogURI,
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}

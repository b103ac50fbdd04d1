package http

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/retrofx"
	"github.com/aretw0/retrofx/internal/logging"
	"github.com/aretw0/retrofx/pkg/adapters/gateway"
	"github.com/aretw0/retrofx/pkg/catalog"
	"github.com/aretw0/retrofx/pkg/domain"
	"github.com/aretw0/retrofx/pkg/observability"
	"github.com/aretw0/retrofx/pkg/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// viewportShare is the fraction of the reported browser width the preview may use.
const viewportShare = 0.9

// Server serves editing sessions to a browser.
type Server struct {
	Sessions *session.Manager
	Streams  *StreamManager

	catalog       *catalog.Catalog
	metrics       *observability.Metrics
	logger        *slog.Logger
	applyTimeout  time.Duration
	maxUploadSize int64
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithCatalog sets the catalog served by /effects. It should match the
// catalog the session factory builds editors with.
func WithCatalog(c *catalog.Catalog) Option {
	return func(s *Server) {
		s.catalog = c
	}
}

// WithMetrics mounts /metrics and tracks live sessions.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithApplyTimeout bounds how long an apply request waits for its response.
func WithApplyTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.applyTimeout = d
	}
}

// NewHandler creates the HTTP handler for the session manager.
func NewHandler(sessions *session.Manager, opts ...Option) http.Handler {
	return NewServer(sessions, opts...).Handler()
}

// NewServer creates a Server without building its routes.
func NewServer(sessions *session.Manager, opts ...Option) *Server {
	s := &Server{
		Sessions:      sessions,
		catalog:       catalog.Default(),
		logger:        logging.NewNop(),
		applyTimeout:  time.Minute,
		maxUploadSize: gateway.MaxUploadBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Streams = NewStreamManager(s.logger)
	return s
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/effects", s.ListEffects)
	r.Get("/events", s.SubscribeEvents)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", s.CreateSession)
		r.Get("/", s.ListSessions)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", s.GetSession)
			r.Delete("/", s.DeleteSession)
			r.Post("/upload", s.Upload)
			r.Put("/effect", s.SelectEffect)
			r.Delete("/effect", s.ClearEffect)
			r.Put("/params/{key}", s.UpdateParam)
			r.Post("/apply", s.Apply)
			r.Post("/acknowledge", s.Acknowledge)
			r.Post("/reset", s.Reset)
			r.Get("/preview", s.Preview)
			r.Get("/export", s.Export)
			r.Get("/graph", s.GetGraph)
		})
	})

	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"app":      "retrofx-http",
		"version":  strings.TrimSpace(retrofx.Version),
		"sessions": len(s.Sessions.Live()),
	})
}

// SubscribeEvents handles GET /events?session_id=... and streams session snapshots.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.logger.Error("SubscribeEvents: Streaming not supported")
		return
	}

	sessionID := r.URL.Query().Get("session_id")
	ed, err := s.Sessions.Get(sessionID)
	if err != nil {
		writeError(w, err)
		return
	}

	ch, cancel := s.Streams.Subscribe(sessionID)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	if snap, err := json.Marshal(ed.Snapshot()); err == nil {
		fmt.Fprintf(w, "event: session\ndata: %s\n\n", snap)
	}
	flusher.Flush()
	s.logger.Info("SSE: Subscribing to Session Updates", "session_id", sessionID)

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("SSE Client Disconnected", "session_id", sessionID)
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: session\ndata: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

// publish pushes the session snapshot to SSE subscribers.
func (s *Server) publish(ed *retrofx.Editor) {
	data, err := json.Marshal(ed.Snapshot())
	if err != nil {
		s.logger.Error("snapshot encode failed", "session_id", ed.ID(), "err", err)
		return
	}
	s.Streams.Broadcast(ed.ID(), string(data))
}

func (s *Server) trackSessions() {
	if s.metrics != nil {
		s.metrics.ActiveSessions.Set(float64(len(s.Sessions.Live())))
	}
}

// -- Helpers --

type errorResponse struct {
	Error string           `json:"error"`
	Kind  domain.ErrorKind `json:"kind"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response encode failed", "err", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, domain.HTTPStatus(err), errorResponse{
		Error: err.Error(),
		Kind:  domain.KindOf(err),
	})
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	if err := dec.Decode(v); err != nil && err != io.EOF {
		return domain.Validation("decode request", domain.ErrInvalidValue, err.Error())
	}
	return nil
}

package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/aretw0/retrofx"
	"github.com/aretw0/retrofx/internal/presentation/graph"
	"github.com/aretw0/retrofx/pkg/adapters/gateway"
	"github.com/aretw0/retrofx/pkg/domain"
	"github.com/aretw0/retrofx/pkg/sequencer"
	"github.com/go-chi/chi/v5"
)

type createSessionRequest struct {
	ViewportWidth int `json:"viewport_width"`
}

type selectEffectRequest struct {
	EffectID domain.EffectID `json:"effect_id"`
}

type paramRequest struct {
	Value any `json:"value"`
}

type paramResponse struct {
	Key     string                 `json:"key"`
	Value   any                    `json:"value"`
	Session domain.SessionSnapshot `json:"session"`
}

type applyResponse struct {
	Token        domain.RequestToken    `json:"token"`
	Stale        bool                   `json:"stale"`
	ProcessedURL string                 `json:"processed_url,omitempty"`
	Session      domain.SessionSnapshot `json:"session"`
}

// ListEffects handles GET /effects.
func (s *Server) ListEffects(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.catalog.List())
}

// CreateSession handles POST /sessions. A reported viewport width bounds the preview.
func (s *Server) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	var opts []retrofx.Option
	if req.ViewportWidth > 0 {
		opts = append(opts, retrofx.WithViewportWidth(int(float64(req.ViewportWidth)*viewportShare)))
	}
	ed, err := s.Sessions.Create(r.Context(), opts...)
	if err != nil {
		writeError(w, err)
		return
	}
	s.trackSessions()
	writeJSON(w, http.StatusCreated, ed.Snapshot())
}

// ListSessions handles GET /sessions.
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"sessions": s.Sessions.Live()})
}

// GetSession handles GET /sessions/{sessionID}.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	ed, err := s.Sessions.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ed.Snapshot())
}

// GetGraph handles GET /sessions/{sessionID}/graph as a Mermaid state diagram.
func (s *Server) GetGraph(w http.ResponseWriter, r *http.Request) {
	ed, err := s.Sessions.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(graph.GenerateMermaid(overlayOf(ed.Snapshot()))))
}

func overlayOf(snap domain.SessionSnapshot) *graph.GraphOverlay {
	o := &graph.GraphOverlay{SessionID: snap.ID, CurrentState: snap.State}
	if snap.Selection != nil {
		o.Effect = snap.Selection.EffectID
	}
	return o
}

// DeleteSession handles DELETE /sessions/{sessionID}.
func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.Sessions.Destroy(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		writeError(w, err)
		return
	}
	s.trackSessions()
	w.WriteHeader(http.StatusNoContent)
}

// Upload handles POST /sessions/{sessionID}/upload with a multipart "image" field.
func (s *Server) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadSize+1<<20)
	file, header, err := r.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, domain.UploadFailure("upload", gateway.ErrFileTooLarge))
			return
		}
		writeError(w, domain.Validation("upload", domain.ErrInvalidValue, "No file uploaded"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, domain.UploadFailure("upload", err))
		return
	}

	s.mutate(w, r, func(ctx context.Context, ed *retrofx.Editor) (any, error) {
		ref, err := ed.Upload(ctx, header.Filename, data)
		if err != nil {
			return nil, err
		}
		return map[string]any{"image_ref": ref, "session": ed.Snapshot()}, nil
	})
}

// SelectEffect handles PUT /sessions/{sessionID}/effect.
func (s *Server) SelectEffect(w http.ResponseWriter, r *http.Request) {
	var req selectEffectRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	s.mutate(w, r, func(ctx context.Context, ed *retrofx.Editor) (any, error) {
		if err := ed.SelectEffect(req.EffectID); err != nil {
			return nil, err
		}
		return ed.Snapshot(), nil
	})
}

// ClearEffect handles DELETE /sessions/{sessionID}/effect.
func (s *Server) ClearEffect(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, func(ctx context.Context, ed *retrofx.Editor) (any, error) {
		ed.ClearSelection()
		return ed.Snapshot(), nil
	})
}

// UpdateParam handles PUT /sessions/{sessionID}/params/{key}.
func (s *Server) UpdateParam(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	var req paramRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	s.mutate(w, r, func(ctx context.Context, ed *retrofx.Editor) (any, error) {
		v, err := ed.UpdateParam(key, req.Value)
		if err != nil {
			return nil, err
		}
		return paramResponse{Key: key, Value: v, Session: ed.Snapshot()}, nil
	})
}

// Apply handles POST /sessions/{sessionID}/apply. The token is minted under
// the session lock; the response is awaited outside it so a newer apply can
// overtake this one.
func (s *Server) Apply(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), s.applyTimeout)
	defer cancel()

	var (
		ed   *retrofx.Editor
		done <-chan sequencer.AsyncResult
	)
	err := s.Sessions.Do(r.Context(), id, func(_ context.Context, e *retrofx.Editor) error {
		var err error
		ed = e
		_, done, err = e.ApplyAsync(ctx)
		return err
	})
	if err != nil {
		writeError(w, err)
		return
	}
	s.publish(ed)

	res := <-done
	if err := s.Sessions.Sync(r.Context(), id); err != nil {
		s.logger.Warn("session sync failed", "session_id", id, "err", err)
	}
	s.publish(ed)

	if res.Err != nil {
		writeError(w, res.Err)
		return
	}
	writeJSON(w, http.StatusOK, applyResponse{
		Token:        res.Outcome.Token,
		Stale:        res.Outcome.Stale,
		ProcessedURL: res.Outcome.Result.URL,
		Session:      ed.Snapshot(),
	})
}

// Acknowledge handles POST /sessions/{sessionID}/acknowledge.
func (s *Server) Acknowledge(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, func(ctx context.Context, ed *retrofx.Editor) (any, error) {
		ed.Acknowledge(ctx)
		return ed.Snapshot(), nil
	})
}

// Reset handles POST /sessions/{sessionID}/reset.
func (s *Server) Reset(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, func(ctx context.Context, ed *retrofx.Editor) (any, error) {
		ed.Reset(ctx)
		return ed.Snapshot(), nil
	})
}

// Preview handles GET /sessions/{sessionID}/preview.
func (s *Server) Preview(w http.ResponseWriter, r *http.Request) {
	ed, err := s.Sessions.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, err)
		return
	}
	data, err := ed.Preview()
	if err != nil {
		writeError(w, err)
		return
	}
	writePNG(w, data, "")
}

// Export handles GET /sessions/{sessionID}/export as a PNG download.
func (s *Server) Export(w http.ResponseWriter, r *http.Request) {
	ed, err := s.Sessions.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, err)
		return
	}
	name, data, err := ed.Export()
	if err != nil {
		writeError(w, err)
		return
	}
	writePNG(w, data, name)
}

// mutate runs fn under the session lock, persists and publishes the snapshot,
// then writes fn's result or error.
func (s *Server) mutate(w http.ResponseWriter, r *http.Request, fn func(context.Context, *retrofx.Editor) (any, error)) {
	id := chi.URLParam(r, "sessionID")
	var (
		ed  *retrofx.Editor
		out any
	)
	err := s.Sessions.Do(r.Context(), id, func(ctx context.Context, e *retrofx.Editor) error {
		var err error
		ed = e
		out, err = fn(ctx, e)
		return err
	})
	if ed != nil {
		s.publish(ed)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func writePNG(w http.ResponseWriter, data []byte, filename string) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if filename != "" {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

package http

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/retrofx"
	"github.com/aretw0/retrofx/internal/testutils"
	"github.com/aretw0/retrofx/pkg/adapters/memory"
	"github.com/aretw0/retrofx/pkg/domain"
	"github.com/aretw0/retrofx/pkg/observability"
	"github.com/aretw0/retrofx/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	srv    *httptest.Server
	server *Server
	svc *testutils.FakeService
	mgr *session.Manager
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	svc := testutils.NewFakeService()
	factory := func(id string, opts ...retrofx.Option) *retrofx.Editor {
		return retrofx.New(svc, svc, svc, append([]retrofx.Option{retrofx.WithSessionID(id)}, opts...)...)
	}
	mgr := session.NewManager(factory, memory.NewStore())
	server := NewServer(mgr, opts...)
	srv := httptest.NewServer(server.Handler())
	t.Cleanup(srv.Close)
	return &fixture{srv: srv, server: server, svc: svc, mgr: mgr}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, f.srv.URL+path, r)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (f *fixture) upload(t *testing.T, id, filename string, data []byte) *http.Response {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", filename)
	require.NoError(t, err)
	_, _ = part.Write(data)
	require.NoError(t, mw.Close())

	resp, err := http.Post(f.srv.URL+"/sessions/"+id+"/upload", mw.FormDataContentType(), &body)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (f *fixture) createSession(t *testing.T) domain.SessionSnapshot {
	t.Helper()
	resp := f.do(t, "POST", "/sessions", map[string]int{"viewport_width": 200})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var snap domain.SessionSnapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	return snap
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestHealthAndInfo(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	info := decode[map[string]any](t, f.do(t, "GET", "/info", nil))
	assert.Equal(t, "retrofx-http", info["app"])
	assert.Equal(t, strings.TrimSpace(retrofx.Version), info["version"])
}

func TestListEffects(t *testing.T) {
	f := newFixture(t)
	effects := decode[[]domain.EffectDescriptor](t, f.do(t, "GET", "/effects", nil))
	require.Len(t, effects, 2)
	assert.Equal(t, domain.EffectPixelate, effects[0].ID)
}

func TestEditingFlow(t *testing.T) {
	f := newFixture(t)
	snap := f.createSession(t)
	id := snap.ID

	// Selecting before upload fails.
	resp := f.do(t, "PUT", "/sessions/"+id+"/effect", map[string]string{"effect_id": "pixelate"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, domain.KindValidation, decode[errorResponse](t, resp).Kind)

	resp = f.upload(t, id, "cat.png", testutils.PNG(400, 200, color.White))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	up := decode[map[string]any](t, resp)
	assert.Equal(t, "cat.png", up["image_ref"])

	resp = f.do(t, "PUT", "/sessions/"+id+"/effect", map[string]string{"effect_id": "pixelate"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = f.do(t, "PUT", "/sessions/"+id+"/effect", map[string]string{"effect_id": "pixelate"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = f.do(t, "PUT", "/sessions/"+id+"/params/pixel_size", map[string]any{"value": 200})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	param := decode[paramResponse](t, resp)
	assert.Equal(t, 50.0, param.Value)

	resp = f.do(t, "PUT", "/sessions/"+id+"/params/size", map[string]any{"value": 3})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do(t, "POST", "/sessions/"+id+"/apply", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	applied := decode[applyResponse](t, resp)
	assert.False(t, applied.Stale)
	assert.NotEmpty(t, applied.ProcessedURL)
	assert.Equal(t, domain.StateIdle, applied.Session.State)

	resp = f.do(t, "GET", "/sessions/"+id+"/export", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "retrofx-pixelate.png")
	img, err := png.Decode(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, 180, img.Bounds().Dx())

	stored, err := f.mgr.Store().Load(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, domain.ImageRef("cat.png"), stored.ImageRef)
}

func TestUpdateParam_MissingValue(t *testing.T) {
	f := newFixture(t)
	id := f.createSession(t).ID
	require.Equal(t, http.StatusOK, f.upload(t, id, "cat.png", testutils.PNG(20, 20, color.White)).StatusCode)
	require.Equal(t, http.StatusOK, f.do(t, "PUT", "/sessions/"+id+"/effect", map[string]string{"effect_id": "pixelate"}).StatusCode)

	for _, key := range []string{"dither", "pixel_size"} {
		resp := f.do(t, "PUT", "/sessions/"+id+"/params/"+key, map[string]any{})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, key)
		assert.Equal(t, domain.KindValidation, decode[errorResponse](t, resp).Kind, key)
	}

	snap := decode[domain.SessionSnapshot](t, f.do(t, "GET", "/sessions/"+id, nil))
	require.NotNil(t, snap.Selection)
	assert.Equal(t, true, snap.Selection.Params["dither"])
	assert.Equal(t, 10.0, snap.Selection.Params["pixel_size"])
}

func TestApply_FailureThenAcknowledge(t *testing.T) {
	f := newFixture(t)
	id := f.createSession(t).ID
	require.Equal(t, http.StatusOK, f.upload(t, id, "cat.png", testutils.PNG(20, 20, color.White)).StatusCode)
	require.Equal(t, http.StatusOK, f.do(t, "PUT", "/sessions/"+id+"/effect", map[string]string{"effect_id": "vhs"}).StatusCode)

	f.svc.SetProcessErr(assert.AnError)
	resp := f.do(t, "POST", "/sessions/"+id+"/apply", nil)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, domain.KindProcessing, decode[errorResponse](t, resp).Kind)

	snap := decode[domain.SessionSnapshot](t, f.do(t, "GET", "/sessions/"+id, nil))
	assert.Equal(t, domain.StateError, snap.State)

	snap = decode[domain.SessionSnapshot](t, f.do(t, "POST", "/sessions/"+id+"/acknowledge", nil))
	assert.Equal(t, domain.StateIdle, snap.State)
}

func TestApply_NothingToProcess(t *testing.T) {
	f := newFixture(t)
	id := f.createSession(t).ID

	resp := f.do(t, "POST", "/sessions/"+id+"/apply", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, decode[errorResponse](t, resp).Error, "nothing to process")
}

func TestExport_NothingToExport(t *testing.T) {
	f := newFixture(t)
	id := f.createSession(t).ID

	assert.Equal(t, http.StatusBadRequest, f.do(t, "GET", "/sessions/"+id+"/export", nil).StatusCode)
	assert.Equal(t, http.StatusBadRequest, f.do(t, "GET", "/sessions/"+id+"/preview", nil).StatusCode)
}

func TestSessionNotFound(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusNotFound, f.do(t, "GET", "/sessions/missing", nil).StatusCode)
	assert.Equal(t, http.StatusNotFound, f.do(t, "POST", "/sessions/missing/apply", nil).StatusCode)
	assert.Equal(t, http.StatusNotFound, f.do(t, "GET", "/events?session_id=missing", nil).StatusCode)
}

func TestDeleteSession(t *testing.T) {
	f := newFixture(t)
	id := f.createSession(t).ID

	assert.Equal(t, http.StatusNoContent, f.do(t, "DELETE", "/sessions/"+id, nil).StatusCode)
	assert.Equal(t, http.StatusNotFound, f.do(t, "GET", "/sessions/"+id, nil).StatusCode)

	list := decode[map[string][]string](t, f.do(t, "GET", "/sessions", nil))
	assert.Empty(t, list["sessions"])
}

func TestReset(t *testing.T) {
	f := newFixture(t)
	id := f.createSession(t).ID
	require.Equal(t, http.StatusOK, f.upload(t, id, "cat.png", testutils.PNG(20, 20, color.White)).StatusCode)

	snap := decode[domain.SessionSnapshot](t, f.do(t, "POST", "/sessions/"+id+"/reset", nil))
	assert.Empty(t, snap.ImageRef)
}

func TestSubscribeEvents_Session(t *testing.T) {
	f := newFixture(t)
	id := f.createSession(t).ID

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, "GET", f.srv.URL+"/events?session_id="+id, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := make(chan string, 32)
	go func() {
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()

	next := func() string {
		for {
			select {
			case l, ok := <-lines:
				if !ok {
					return ""
				}
				if strings.HasPrefix(l, "data: {") {
					return l
				}
			case <-time.After(2 * time.Second):
				t.Fatal("no SSE data")
				return ""
			}
		}
	}

	// Initial snapshot.
	assert.Contains(t, next(), `"state":"idle"`)

	assert.Equal(t, 1, f.server.Streams.Subscribers(id))
	require.Equal(t, http.StatusOK, f.upload(t, id, "cat.png", testutils.PNG(20, 20, color.White)).StatusCode)
	assert.Contains(t, next(), `"image_ref":"cat.png"`)
}

func TestMetricsEndpoint(t *testing.T) {
	m := observability.NewMetrics()
	f := newFixture(t, WithMetrics(m))
	f.createSession(t)

	resp := f.do(t, "GET", "/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "retrofx_active_sessions 1")
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, "OPTIONS", "/sessions", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestGetGraph(t *testing.T) {
	f := newFixture(t)
	id := f.createSession(t).ID
	require.Equal(t, http.StatusOK, f.upload(t, id, "cat.png", testutils.PNG(20, 20, color.White)).StatusCode)
	require.Equal(t, http.StatusOK, f.do(t, "PUT", "/sessions/"+id+"/effect", map[string]string{"effect_id": "vhs"}).StatusCode)

	resp := f.do(t, "GET", "/sessions/"+id+"/graph", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "stateDiagram-v2")
	assert.Contains(t, string(body), "class idle current")
	assert.Contains(t, string(body), "in_flight <br/> vhs")

	assert.Equal(t, http.StatusNotFound, f.do(t, "GET", "/sessions/missing/graph", nil).StatusCode)
}

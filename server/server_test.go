package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/plugmesh/core"
	"github.com/hupe1980/plugmesh/engine"
	"github.com/hupe1980/plugmesh/memory"
	"github.com/hupe1980/plugmesh/observability"
	"github.com/hupe1980/plugmesh/plugins/bootstrap"
	"github.com/hupe1980/plugmesh/runner"
)

type testServer struct {
	eng *engine.Engine
	db  *memory.InMemoryStore
	srv *Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db := memory.NewInMemoryStore()
	reg := prometheus.NewRegistry()
	metrics := observability.MustNewMetrics(reg)

	echo := core.Plugin{
		Name: "echo",
		Models: map[core.ModelType]core.ModelHandler{
			core.ModelTypeTextLarge: func(context.Context, core.Runtime, core.ModelParams) (any, error) {
				return `{"text": "pong", "actions": ["REPLY"]}`, nil
			},
		},
		Routes: []core.Route{
			{Name: "status", Type: "get", Path: "status", Handler: func(w http.ResponseWriter, _ *http.Request, rt core.Runtime) {
				_, _ = w.Write([]byte("agent " + rt.Character().Name))
			}},
			{Name: "status-again", Type: "GET", Path: "/status", Handler: func(w http.ResponseWriter, _ *http.Request, _ core.Runtime) {
				w.WriteHeader(http.StatusTeapot)
			}},
		},
	}

	eng, err := engine.New(&core.Character{Name: "Ada"}, func(o *engine.Options) {
		o.Adapter = db
		o.Metrics = metrics
		o.Plugins = []core.Plugin{bootstrap.Plugin(), echo}
	})
	require.NoError(t, err)
	require.NoError(t, eng.Initialize(context.Background()))

	t.Cleanup(func() { _ = eng.Stop(context.Background()) })

	srv := New(eng, runner.New(eng, func(o *runner.Options) { o.Metrics = metrics }), func(o *Options) {
		o.Gatherer = reg
	})

	return &testServer{eng: eng, db: db, srv: srv}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(rec, req)

	return rec
}

func TestServer_Health(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestServer_Agent(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/v1/agent", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data AgentInfo `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, "Ada", resp.Data.Name)
	assert.Equal(t, ts.eng.AgentID(), resp.Data.ID)
	assert.Equal(t, []string{"bootstrap", "echo"}, resp.Data.Plugins)
	assert.Contains(t, resp.Data.Actions, bootstrap.ActionReply)
	assert.Contains(t, resp.Data.Providers, bootstrap.ProviderCharacter)
}

func TestServer_Message(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/v1/messages", MessageRequest{
		RoomID:   "room-9",
		EntityID: "user-9",
		Name:     "Bob",
		Text:     "ping",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Success bool              `json:"success"`
		Data    runner.TurnResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.True(t, resp.Success)
	require.Len(t, resp.Data.Sent, 1)
	assert.Equal(t, "pong", resp.Data.Sent[0].Text)
	assert.Equal(t, "api", resp.Data.Sent[0].Source)

	ctx := context.Background()

	room, err := ts.db.GetRoom(ctx, "room-9")
	require.NoError(t, err)
	require.NotNil(t, room)
	assert.Equal(t, core.ChannelTypeAPI, room.Type)

	participants, err := ts.db.GetParticipantsForRoom(ctx, "room-9")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"user-9", ts.eng.AgentID()}, participants)
}

func TestServer_MessageValidation(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/v1/messages", map[string]string{"text": "missing ids"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid request")
}

func TestServer_PluginRoutes(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/plugins/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "agent Ada", rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/status", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_Metrics(t *testing.T) {
	ts := newTestServer(t)

	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/v1/messages", MessageRequest{
		RoomID: "room-1", EntityID: "user-1", Text: "ping",
	}).Code)

	rec := ts.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "plugmesh_model_calls_total"))
}

func TestServer_SkipsInvalidPluginRoutes(t *testing.T) {
	ctx := context.Background()

	ok := func(body string) core.RouteHandler {
		return func(w http.ResponseWriter, _ *http.Request, _ core.Runtime) {
			_, _ = w.Write([]byte(body))
		}
	}

	eng, err := engine.New(&core.Character{Name: "Ada"})
	require.NoError(t, err)
	require.NoError(t, eng.Install(ctx, core.Plugin{
		Name: "routes",
		Routes: []core.Route{
			{Name: "brew", Type: "BREW", Path: "/coffee", Handler: ok("brew")},
			{Name: "by-id", Type: http.MethodGet, Path: "/items/:id", Handler: ok("by-id")},
			{Name: "by-name", Type: http.MethodGet, Path: "/items/:name", Handler: ok("by-name")},
			{Name: "after", Type: http.MethodGet, Path: "/after", Handler: ok("after")},
		},
	}))

	var srv *Server

	require.NotPanics(t, func() {
		srv = New(eng, runner.New(eng), func(o *Options) { o.Gatherer = prometheus.NewRegistry() })
	})

	ts := &testServer{eng: eng, srv: srv}

	rec := ts.do(t, http.MethodGet, "/plugins/items/42", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "by-id", rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/plugins/after", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "after", rec.Body.String())

	assert.Equal(t, http.StatusNotFound, ts.do(t, "BREW", "/plugins/coffee", nil).Code)
}

package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/vigil/engine"
)

func newTestServer(t *testing.T) (*Server, *engine.Engine) {
	t.Helper()
	eng := engine.New(engine.Config{}, engine.Callbacks{})
	t.Cleanup(eng.Stop)
	return New(eng, 0, nil), eng
}

func TestHandleStatus_ReturnsSnapshot(t *testing.T) {
	s, eng := newTestServer(t)
	require.NoError(t, eng.ComponentCreate("Net"))

	rec := httptest.NewRecorder()
	s.handleStatus(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var snap engine.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))

	var names []string
	for _, c := range snap.Components {
		names = append(names, c.Name)
	}
	assert.Contains(t, names, "Net")
	assert.Contains(t, names, engine.ComponentSystem)
}

func TestHandleStatus_RejectsNonGet(t *testing.T) {
	s, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	s.handleStatus(rec, httptest.NewRequest(http.MethodPost, "/status", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleComponent_ByName(t *testing.T) {
	s, eng := newTestServer(t)
	require.NoError(t, eng.ComponentCreate("Net"))
	require.NoError(t, eng.ComponentHealthSet("Net", 750))

	rec := httptest.NewRecorder()
	s.handleComponent(rec, httptest.NewRequest(http.MethodGet, "/status/Net", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var cs engine.ComponentStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cs))
	assert.Equal(t, "Net", cs.Name)
	assert.Equal(t, int64(750), cs.Health)
}

func TestHandleComponent_UnknownIs404(t *testing.T) {
	s, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	s.handleComponent(rec, httptest.NewRequest(http.MethodGet, "/status/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHub_BroadcastDropsForSlowClients(t *testing.T) {
	h := newHub(nil)
	c := &client{send: make(chan healthEvent, 2)}
	h.clients[c] = true

	// Overfill: the extra events are dropped, the broadcast never blocks.
	for i := 0; i < 10; i++ {
		h.broadcast(healthEvent{Component: "C", Health: int64(i)})
	}
	assert.Len(t, c.send, 2)
}

package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scenestudio/internal/gateway/agentstate"
	"scenestudio/internal/gateway/scenestore"
)

func newAPIServer(t *testing.T) *httptest.Server {
	t.Helper()
	scenes := NewSceneHandler(scenestore.New(filepath.Join(t.TempDir(), "scenes.json")))
	agents := NewAgentStateHandler(agentstate.NewStore(filepath.Join(t.TempDir(), "agents.json")))

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/scenes", scenes.HandleSave)
	mux.HandleFunc("GET /api/scenes/{name}", scenes.HandleGet)
	mux.HandleFunc("GET /api/agent/state/{threadId}", agents.HandleGet)
	mux.HandleFunc("PUT /api/agent/state/{threadId}", agents.HandlePut)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestSceneSaveAndGet(t *testing.T) {
	srv := newAPIServer(t)

	resp, err := http.Post(srv.URL+"/api/scenes", "application/json",
		strings.NewReader(`{"name":"intro","code":"export default {};","parameters":{"x":1}}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/api/scenes/intro")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var scene scenestore.Scene
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&scene))
	assert.Equal(t, "intro", scene.Name)
	assert.Equal(t, "export default {};", scene.Code)
}

func TestSceneGetUnknown(t *testing.T) {
	srv := newAPIServer(t)
	resp, err := http.Get(srv.URL + "/api/scenes/missing")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAgentStatePutAndGet(t *testing.T) {
	srv := newAPIServer(t)

	req, err := http.NewRequest(http.MethodPut, srv.URL+"/api/agent/state/t-1",
		strings.NewReader(`{"prompt":"p","final_result":{"code":"export default {};"}}`))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/api/agent/state/t-1")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var state map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&state))
	assert.Equal(t, "p", state["prompt"])
}

func TestAgentStateRejectsNonObject(t *testing.T) {
	srv := newAPIServer(t)
	req, err := http.NewRequest(http.MethodPut, srv.URL+"/api/agent/state/t-1",
		strings.NewReader(`"just a string"`))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

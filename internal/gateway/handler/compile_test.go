package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scenestudio/internal/playground/compiler"
	"scenestudio/internal/playground/modules"
	"scenestudio/internal/playground/registry"
)

func newCompileHandler(t *testing.T) *CompileHandler {
	t.Helper()
	reg := registry.New()
	modules.Install(reg)
	c := compiler.New(reg)
	require.NoError(t, c.Initialize(context.Background()))
	return NewCompileHandler(c)
}

func postCompile(t *testing.T, h *CompileHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/compile", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.HandleCompile(rec, req)
	return rec
}

func TestHandleCompileSuccess(t *testing.T) {
	h := newCompileHandler(t)
	rec := postCompile(t, h, `{"code":"export default { value: 42 };","parameters":{"x":1}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var project compiler.Project
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &project))
	require.Len(t, project.Scenes, 1)
	assert.EqualValues(t, 42, project.Scenes[0]["value"])
	assert.EqualValues(t, 1, project.Variables["x"])
}

func TestHandleCompileEmptySource(t *testing.T) {
	h := newCompileHandler(t)
	rec := postCompile(t, h, `{"code":"  "}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestHandleCompileSyntaxError(t *testing.T) {
	h := newCompileHandler(t)
	rec := postCompile(t, h, `{"code":"const s = \"unterminated"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["error"])
}

func TestHandleCompileBadBody(t *testing.T) {
	h := newCompileHandler(t)
	rec := postCompile(t, h, `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

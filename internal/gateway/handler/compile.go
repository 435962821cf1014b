package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"scenestudio/internal/playground/compiler"
)

// CompileHandler serves one-shot compiles of scene source.
type CompileHandler struct {
	compiler *compiler.Compiler
}

func NewCompileHandler(c *compiler.Compiler) *CompileHandler {
	return &CompileHandler{compiler: c}
}

type compileRequest struct {
	Code       string                `json:"code"`
	Parameters compiler.ParameterMap `json:"parameters,omitempty"`
	Globals    map[string]any        `json:"globals,omitempty"`
}

func (h *CompileHandler) HandleCompile(w http.ResponseWriter, r *http.Request) {
	var req compileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	// Empty source is not an error; there is just nothing to preview.
	if strings.TrimSpace(req.Code) == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if !h.compiler.Ready() {
		if err := h.compiler.Initialize(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "compiler toolchain unavailable")
			return
		}
	}

	project, err := h.compiler.ProcessCode(r.Context(), req.Code, compiler.Options{
		Parameters: req.Parameters,
		Globals:    req.Globals,
	})
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, project)
}

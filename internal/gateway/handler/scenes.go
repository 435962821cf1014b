package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"scenestudio/internal/gateway/scenestore"
)

// SceneHandler persists and retrieves named scenes.
type SceneHandler struct {
	store *scenestore.Store
}

func NewSceneHandler(store *scenestore.Store) *SceneHandler {
	return &SceneHandler{store: store}
}

type saveSceneRequest struct {
	Name       string         `json:"name"`
	Code       string         `json:"code"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

func (h *SceneHandler) HandleSave(w http.ResponseWriter, r *http.Request) {
	var req saveSceneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if err := h.store.Put(scenestore.Scene{
		Name:       req.Name,
		Code:       req.Code,
		Parameters: req.Parameters,
	}); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SceneHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.PathValue("name"))
	if name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	scene, ok, err := h.store.Get(name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "scene lookup failed")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "unknown scene")
		return
	}
	writeJSON(w, http.StatusOK, scene)
}

package handler

import (
	"io"
	"net/http"
	"strings"

	"scenestudio/internal/gateway/agentstate"
)

// AgentStateHandler exposes the agent-state collaborator store. The
// gateway stores the state verbatim and only interprets the nested
// code field elsewhere.
type AgentStateHandler struct {
	store *agentstate.Store
}

func NewAgentStateHandler(store *agentstate.Store) *AgentStateHandler {
	return &AgentStateHandler{store: store}
}

func (h *AgentStateHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	threadID := strings.TrimSpace(r.PathValue("threadId"))
	if threadID == "" {
		writeError(w, http.StatusBadRequest, "threadId is required")
		return
	}
	state, ok := h.store.Get(threadID)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown thread")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(state)
}

func (h *AgentStateHandler) HandlePut(w http.ResponseWriter, r *http.Request) {
	threadID := strings.TrimSpace(r.PathValue("threadId"))
	if threadID == "" {
		writeError(w, http.StatusBadRequest, "threadId is required")
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 4<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body")
		return
	}
	if err := h.store.Put(threadID, body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

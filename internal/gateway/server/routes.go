package server

import (
	"net/http"

	"scenestudio/internal/gateway/handler"
	"scenestudio/internal/gateway/middleware"
)

func NewMux(
	compileHandler *handler.CompileHandler,
	sessionHandler *handler.SessionHandler,
	ttsHandler *handler.TTSHandler,
	mediaHandler *handler.MediaHandler,
	agentStateHandler *handler.AgentStateHandler,
	sceneHandler *handler.SceneHandler,
) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/compile", compileHandler.HandleCompile)
	mux.HandleFunc("GET /ws/session", sessionHandler.HandleSessionWS)

	mux.HandleFunc("POST /api/tts", ttsHandler.HandleSynthesize)
	mux.HandleFunc("POST /api/media/analyze", mediaHandler.HandleAnalyze)

	mux.HandleFunc("GET /api/agent/state/{threadId}", agentStateHandler.HandleGet)
	mux.HandleFunc("PUT /api/agent/state/{threadId}", agentStateHandler.HandlePut)

	mux.HandleFunc("POST /api/scenes", sceneHandler.HandleSave)
	mux.HandleFunc("GET /api/scenes/{name}", sceneHandler.HandleGet)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return middleware.CORS(mux)
}

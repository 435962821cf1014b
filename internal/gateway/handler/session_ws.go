package handler

import (
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"scenestudio/internal/gateway/agentstate"
	"scenestudio/internal/playground/compiler"
	"scenestudio/internal/playground/session"
)

const (
	sessionWSWriteWait = 10 * time.Second
	sessionWSPongWait  = 60 * time.Second
	sessionWSPingEvery = (sessionWSPongWait * 9) / 10
)

var sessionWSUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

type sessionWSInbound struct {
	Type        string                `json:"type"`
	Code        string                `json:"code,omitempty"`
	Parameters  compiler.ParameterMap `json:"parameters,omitempty"`
	Globals     map[string]any        `json:"globals,omitempty"`
	AutoCompile bool                  `json:"autoCompile,omitempty"`
}

type sessionWSOutbound struct {
	Type        string            `json:"type"`
	IsReady     bool              `json:"isReady"`
	IsCompiling bool              `json:"isCompiling"`
	AutoCompile bool              `json:"autoCompile"`
	Project     *compiler.Project `json:"project,omitempty"`
	Error       string            `json:"error,omitempty"`
}

// SessionHandler serves one live session per websocket connection. All
// connections share the compiler instance and its module registry.
type SessionHandler struct {
	compiler *compiler.Compiler
	agents   *agentstate.Store
}

func NewSessionHandler(c *compiler.Compiler, agents *agentstate.Store) *SessionHandler {
	return &SessionHandler{compiler: c, agents: agents}
}

func (h *SessionHandler) HandleSessionWS(w http.ResponseWriter, r *http.Request) {
	cfg := session.Config{
		AutoCompile: true,
		Globals:     sessionGlobals(r),
	}
	if threadID := strings.TrimSpace(r.URL.Query().Get("thread_id")); threadID != "" && h.agents != nil {
		if code, ok := h.agents.Code(threadID); ok {
			cfg.Code = code
		}
	}

	conn, err := sessionWSUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	sess := session.New(h.compiler, cfg)
	defer sess.Close()

	snapshots, unsubscribe := sess.Subscribe()
	defer unsubscribe()

	if err := conn.SetReadDeadline(time.Now().Add(sessionWSPongWait)); err != nil {
		log.Printf("session ws set read deadline failed: %v", err)
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(sessionWSPongWait))
	})

	writerDone := make(chan struct{})
	readerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		ticker := time.NewTicker(sessionWSPingEvery)
		defer ticker.Stop()
		for {
			select {
			case snap, ok := <-snapshots:
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(sessionWSWriteWait))
				if err := conn.WriteJSON(snapshotMessage(snap)); err != nil {
					return
				}
			case <-ticker.C:
				_ = conn.SetWriteDeadline(time.Now().Add(sessionWSWriteWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case <-readerDone:
				return
			}
		}
	}()

	func() {
		defer close(readerDone)
		for {
			var msg sessionWSInbound
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			switch msg.Type {
			case "setCode":
				sess.SetSourceText(msg.Code)
			case "mergeParameters":
				sess.MergeParameters(msg.Parameters)
			case "mergeGlobals":
				sess.MergeGlobals(msg.Globals)
			case "setAutoCompile":
				sess.SetAutoCompile(msg.AutoCompile)
			case "run":
				sess.Run()
			default:
				log.Printf("session ws: unknown message type %q", msg.Type)
			}
		}
	}()

	<-writerDone
}

func snapshotMessage(snap session.Snapshot) sessionWSOutbound {
	return sessionWSOutbound{
		Type:        "state",
		IsReady:     snap.IsReady,
		IsCompiling: snap.IsCompiling,
		AutoCompile: snap.AutoCompile,
		Project:     snap.Project,
		Error:       snap.Error,
	}
}

// sessionGlobals derives environment globals for the execution context
// from the request: target width and aspect ratio.
func sessionGlobals(r *http.Request) map[string]any {
	width := 480.0
	if v := r.URL.Query().Get("width"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			width = f
		}
	}
	aspect := 9.0 / 16.0
	if v := r.URL.Query().Get("aspect"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			aspect = f
		}
	}
	return map[string]any{
		"WIDTH":        width,
		"ASPECT_RATIO": aspect,
	}
}

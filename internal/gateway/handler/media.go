package handler

import (
	"context"
	"encoding/json"
	"log"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"scenestudio/internal/cache/memory"
)

// MediaAnalyzer annotates a media file into timed segments, streaming
// chunks of the JSON array as they are produced.
type MediaAnalyzer interface {
	AnalyzeStream(ctx context.Context, fileURI, mimeType, prompt string, onChunk func(chunk string)) (string, error)
}

// MediaHandler proxies media analysis. Finished analyses are cached so
// re-annotating the same file is free.
type MediaHandler struct {
	analyzer MediaAnalyzer
	cache    *memory.LRUTTL[string, string]
}

func NewMediaHandler(analyzer MediaAnalyzer) *MediaHandler {
	return &MediaHandler{
		analyzer: analyzer,
		cache:    memory.NewLRUTTL[string, string](128, 16<<20, 30*time.Minute),
	}
}

type mediaRequest struct {
	FileURI    string `json:"fileUri"`
	MimeType   string `json:"mimeType,omitempty"`
	PromptText string `json:"promptText,omitempty"`
}

func (h *MediaHandler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req mediaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.FileURI) == "" {
		writeError(w, http.StatusBadRequest, "fileUri is required")
		return
	}
	mimeType := strings.TrimSpace(req.MimeType)
	if mimeType == "" {
		mimeType = guessMimeType(req.FileURI)
	}
	if mimeType == "" {
		writeError(w, http.StatusBadRequest, "mimeType is required and could not be derived")
		return
	}
	if h.analyzer == nil {
		writeError(w, http.StatusInternalServerError, "GEMINI_API_KEY not set")
		return
	}

	cacheKey := req.FileURI + "|" + req.PromptText
	if result, ok := h.cache.Get(cacheKey); ok {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(result))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Transfer-Encoding", "chunked")
	flusher, _ := w.(http.Flusher)

	result, err := h.analyzer.AnalyzeStream(r.Context(), req.FileURI, mimeType, req.PromptText, func(chunk string) {
		// Chunks are fragments of one JSON array; keep them newline-free
		// so the consumer can concatenate verbatim.
		chunk = strings.ReplaceAll(chunk, "\n", "")
		if chunk == "" {
			return
		}
		_, _ = w.Write([]byte(chunk))
		if flusher != nil {
			flusher.Flush()
		}
	})
	if err != nil {
		// Headers are already out; all we can do is log and stop the
		// stream early.
		log.Printf("media analyze failed: %v", err)
		return
	}
	h.cache.Set(cacheKey, strings.ReplaceAll(result, "\n", ""), len(result))
}

// mediaTypes covers the media extensions the stdlib table may lack.
var mediaTypes = map[string]string{
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".m4a":  "audio/mp4",
	".ogg":  "audio/ogg",
}

func guessMimeType(fileURI string) string {
	u, err := url.Parse(fileURI)
	if err != nil {
		return ""
	}
	ext := strings.ToLower(path.Ext(u.Path))
	if mt, ok := mediaTypes[ext]; ok {
		return mt
	}
	return mime.TypeByExtension(ext)
}

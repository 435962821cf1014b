package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"scenestudio/internal/assets"
	"scenestudio/internal/tts"
)

// TTSHandler proxies synthesis requests to the TTS vendor, optionally
// persisting the audio in the asset store.
type TTSHandler struct {
	client *tts.Client
	apiKey string
	store  *assets.Store
}

func NewTTSHandler(client *tts.Client, apiKey string, store *assets.Store) *TTSHandler {
	return &TTSHandler{client: client, apiKey: apiKey, store: store}
}

// ttsRequest mirrors the unified synthesis contract: snake_case for
// the vendor-shaped fields, camelCase for voiceId and stageTags.
type ttsRequest struct {
	Text          string             `json:"text"`
	Provider      string             `json:"provider,omitempty"`
	ModelID       string             `json:"model_id,omitempty"`
	OutputFormat  string             `json:"output_format,omitempty"`
	LanguageCode  string             `json:"language_code,omitempty"`
	VoiceID       string             `json:"voiceId,omitempty"`
	StageTags     []string           `json:"stageTags,omitempty"`
	VoiceSettings *tts.VoiceSettings `json:"voiceSettings,omitempty"`
	Store         bool               `json:"store,omitempty"`
}

func (h *TTSHandler) HandleSynthesize(w http.ResponseWriter, r *http.Request) {
	var req ttsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	if req.Provider != "" && req.Provider != "eleven" {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unsupported provider %q", req.Provider))
		return
	}
	if h.apiKey == "" {
		writeError(w, http.StatusInternalServerError, "ELEVENLABS_API_KEY not set")
		return
	}

	audio, contentType, err := h.client.Synthesize(r.Context(), tts.Request{
		Text:          req.Text,
		VoiceID:       req.VoiceID,
		ModelID:       req.ModelID,
		OutputFormat:  req.OutputFormat,
		LanguageCode:  req.LanguageCode,
		NextText:      stageTagsNextText(req.StageTags),
		VoiceSettings: req.VoiceSettings,
	})
	if err != nil {
		var upstream *tts.UpstreamError
		if errors.As(err, &upstream) {
			writeError(w, upstream.Status, upstream.Detail)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	defer audio.Close()

	if req.Store && h.store != nil {
		data, err := io.ReadAll(audio)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "read audio stream")
			return
		}
		key := fmt.Sprintf("tts/%s/%s.mp3", time.Now().UTC().Format("2006-01-02"), uuid.NewString())
		url, err := h.store.Put(r.Context(), key, contentType, data)
		if err != nil {
			log.Printf("tts: store audio failed: %v", err)
			writeError(w, http.StatusInternalServerError, "store audio")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"url": url, "key": key})
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, audio)
}

// stageTagsNextText turns emotion cues like "(door_slam)" into the
// next_text hint the vendor understands.
func stageTagsNextText(tags []string) string {
	if len(tags) == 0 {
		return ""
	}
	cleaned := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.NewReplacer("(", "", ")", "", "_", " ").Replace(tag)
		if tag = strings.TrimSpace(tag); tag != "" {
			cleaned = append(cleaned, tag)
		}
	}
	if len(cleaned) == 0 {
		return ""
	}
	return strings.Join(cleaned, ". ") + "."
}

package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scenestudio/internal/tts"
)

func TestTTSHandlerForwardsUnifiedContract(t *testing.T) {
	var payload map[string]any
	var outputFormat string
	vendor := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		outputFormat = r.URL.Query().Get("output_format")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("AUDIO"))
	}))
	defer vendor.Close()

	h := NewTTSHandler(tts.NewClient("key", vendor.URL), "key", nil)
	body := `{
		"text": "hello",
		"provider": "eleven",
		"model_id": "eleven_turbo_v2",
		"output_format": "mp3",
		"language_code": "ja",
		"voiceId": "voice-1",
		"stageTags": ["(door_slam)", "whisper"]
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/tts", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.HandleSynthesize(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "audio/mpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, "AUDIO", rec.Body.String())

	assert.Equal(t, "mp3_44100_128", outputFormat)
	assert.Equal(t, "hello", payload["text"])
	assert.Equal(t, "eleven_turbo_v2", payload["model_id"])
	assert.Equal(t, "ja", payload["language_code"])
	assert.Equal(t, "door slam. whisper.", payload["next_text"])
}

func TestTTSHandlerRejectsUnsupportedProvider(t *testing.T) {
	h := NewTTSHandler(tts.NewClient("key", "http://example.invalid"), "key", nil)
	req := httptest.NewRequest(http.MethodPost, "/api/tts",
		strings.NewReader(`{"text":"hi","provider":"dia"}`))
	rec := httptest.NewRecorder()
	h.HandleSynthesize(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unsupported provider")
}

func TestTTSHandlerRequiresAPIKey(t *testing.T) {
	h := NewTTSHandler(tts.NewClient("", "http://example.invalid"), "", nil)
	req := httptest.NewRequest(http.MethodPost, "/api/tts", strings.NewReader(`{"text":"hi"}`))
	rec := httptest.NewRecorder()
	h.HandleSynthesize(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "ELEVENLABS_API_KEY")
}

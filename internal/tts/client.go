// Package tts proxies text-to-speech synthesis to the ElevenLabs API.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

const (
	defaultVoiceID = "21m00Tcm4TlvDq8ikWAM"
	defaultModelID = "eleven_multilingual_v2"
)

// formatAliases maps the short output_format names clients send to the
// vendor's enum values. Unknown values pass through unchanged.
var formatAliases = map[string]string{
	"mp3":  "mp3_44100_128",
	"wav":  "wav",
	"flac": "flac",
	"opus": "opus_48k_128",
	"pcm":  "pcm_24000",
}

// VoiceSettings fine-tunes synthesis.
type VoiceSettings struct {
	Stability       *float64 `json:"stability,omitempty"`
	SimilarityBoost *float64 `json:"similarity_boost,omitempty"`
}

// Request describes one synthesis call. Text is required; the rest
// falls back to vendor defaults.
type Request struct {
	Text          string
	VoiceID       string
	ModelID       string
	OutputFormat  string
	LanguageCode  string
	NextText      string
	VoiceSettings *VoiceSettings
}

// UpstreamError carries a non-2xx vendor response.
type UpstreamError struct {
	Status int
	Detail string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("tts upstream %d: %s", e.Status, e.Detail)
}

type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

func NewClient(apiKey, baseURL string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 60 * time.Second},
	}
}

var (
	blankLines  = regexp.MustCompile(`\r?\n\s*\r?\n`)
	lineBreaks  = regexp.MustCompile(`\r?\n`)
	multiSpaces = regexp.MustCompile(`\s{2,}`)
)

// tidyText collapses blank lines to a space and single newlines to a
// short pause so the synthesized speech flows naturally.
func tidyText(text string) string {
	text = blankLines.ReplaceAllString(text, " ")
	text = lineBreaks.ReplaceAllString(text, ", ")
	text = multiSpaces.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// Synthesize streams synthesized audio. The caller owns the returned
// reader and must close it.
func (c *Client) Synthesize(ctx context.Context, req Request) (io.ReadCloser, string, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, "", fmt.Errorf("text is required")
	}
	voiceID := req.VoiceID
	if voiceID == "" {
		voiceID = defaultVoiceID
	}
	modelID := req.ModelID
	if modelID == "" {
		modelID = defaultModelID
	}
	format := req.OutputFormat
	if format == "" {
		format = "mp3"
	}
	if resolved, ok := formatAliases[format]; ok {
		format = resolved
	}

	endpoint := fmt.Sprintf("%s/v1/text-to-speech/%s?output_format=%s",
		c.baseURL, url.PathEscape(voiceID), url.QueryEscape(format))

	payload := map[string]any{
		"text":                     tidyText(req.Text),
		"model_id":                 modelID,
		"apply_text_normalization": "off",
	}
	if req.LanguageCode != "" {
		payload["language_code"] = req.LanguageCode
	}
	if req.NextText != "" {
		payload["next_text"] = req.NextText
	}
	if req.VoiceSettings != nil {
		payload["voice_settings"] = req.VoiceSettings
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, "", err
	}
	httpReq.Header.Set("Accept", "audio/mpeg")
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		detail := "TTS failed"
		var vendorErr struct {
			Detail any `json:"detail"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&vendorErr); err == nil && vendorErr.Detail != nil {
			if s, ok := vendorErr.Detail.(string); ok {
				detail = s
			} else if b, err := json.Marshal(vendorErr.Detail); err == nil {
				detail = string(b)
			}
		}
		return nil, "", &UpstreamError{Status: resp.StatusCode, Detail: detail}
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = mimeForFormat(format)
	}
	return resp.Body, contentType, nil
}

func mimeForFormat(format string) string {
	switch {
	case strings.HasPrefix(format, "mp3"):
		return "audio/mpeg"
	case strings.HasPrefix(format, "opus"):
		return "audio/ogg"
	case strings.HasPrefix(format, "pcm"):
		return "audio/wave"
	default:
		prefix, _, _ := strings.Cut(format, "_")
		return "audio/" + prefix
	}
}

package llm

import (
	"context"
	"errors"
	"log"
	"os"
	"strconv"
	"time"

	genai "google.golang.org/genai"
)

var ErrEmptyResponse = errors.New("llm: empty response from model")

const (
	defaultAnalyzePrompt = "Analyze the media"

	analyzeAttempts  = 3
	analyzeRetryBase = 300 * time.Millisecond
)

// segmentSchema constrains the analyzer output to an array of annotated
// clip segments.
var segmentSchema = &genai.Schema{
	Type:        genai.TypeArray,
	Description: "Array of annotated video or audio clip segments produced by an analyzer.",
	Items: &genai.Schema{
		Type:     genai.TypeObject,
		Required: []string{"start_time", "end_time"},
		Properties: map[string]*genai.Schema{
			"start_time": {
				Type:        genai.TypeNumber,
				Description: "Start timestamp from the beginning of the media in seconds.",
			},
			"end_time": {
				Type:        genai.TypeNumber,
				Description: "End timestamp from the beginning of the media in seconds.",
			},
			"clip_description": {
				Type:        genai.TypeString,
				Description: "Natural-language summary of what occurs in this clip.",
			},
			"camera_tags": {
				Type:        genai.TypeArray,
				Description: `Shot or camera-related keywords (e.g., "close-up", "steadycam").`,
				Items:       &genai.Schema{Type: genai.TypeString},
			},
			"sound_effect_tags": {
				Type:        genai.TypeArray,
				Description: `Sound-effect identifiers present in this clip (e.g., "door slam").`,
				Items:       &genai.Schema{Type: genai.TypeString},
			},
			"elements_tags": {
				Type:        genai.TypeArray,
				Description: `Notable visual or semantic elements (e.g., "car", "sunset").`,
				Items:       &genai.Schema{Type: genai.TypeString},
			},
		},
	},
}

// Analyzer is a thin wrapper around the official genai client that
// annotates media files into timed segments.
type Analyzer struct {
	cli   *genai.Client
	model string
	rl    *pacer
}

func NewAnalyzer(ctx context.Context, apiKey, model string) (*Analyzer, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	// Optional RPS limiter via env: LLM_RPS and LLM_BURST.
	var rps float64
	var burst int
	if v := os.Getenv("LLM_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			rps = f
		}
	}
	if v := os.Getenv("LLM_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			burst = n
		}
	}
	return &Analyzer{cli: cli, model: model, rl: newPacer(rps, burst)}, nil
}

// AnalyzeStream annotates the media behind fileURI and forwards response
// text chunks to onChunk as they arrive. It returns the concatenated
// result.
func (a *Analyzer) AnalyzeStream(ctx context.Context, fileURI, mimeType, prompt string, onChunk func(chunk string)) (string, error) {
	if prompt == "" {
		prompt = defaultAnalyzePrompt
	}
	log.Printf("media analyze: %s (%s)", fileURI, mimeType)

	contents := []*genai.Content{{
		Parts: []*genai.Part{
			{FileData: &genai.FileData{FileURI: fileURI, MIMEType: mimeType}},
			{Text: prompt},
		},
	}}
	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   segmentSchema,
	}

	// Transient upstream failures are retried until the first chunk has
	// been forwarded; after that a retry would duplicate output.
	return retryStream(ctx, analyzeAttempts, analyzeRetryBase, func() (string, error) {
		if err := a.rl.Acquire(ctx); err != nil {
			return "", err
		}
		var full string
		for resp, err := range a.cli.Models.GenerateContentStream(ctx, a.model, contents, cfg) {
			if err != nil {
				return full, err
			}
			if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
				continue
			}
			for _, part := range resp.Candidates[0].Content.Parts {
				if part == nil || part.Text == "" {
					continue
				}
				full += part.Text
				if onChunk != nil {
					onChunk(part.Text)
				}
			}
		}
		if full == "" {
			return "", ErrEmptyResponse
		}
		return full, nil
	})
}

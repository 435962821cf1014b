package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAnalyzer struct {
	calls  int
	chunks []string
	err    error
}

func (f *fakeAnalyzer) AnalyzeStream(_ context.Context, _, _, _ string, onChunk func(string)) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	var full string
	for _, chunk := range f.chunks {
		full += chunk
		onChunk(chunk)
	}
	return full, nil
}

func postAnalyze(h *MediaHandler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/media/analyze", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.HandleAnalyze(rec, req)
	return rec
}

func TestHandleAnalyzeRequiresFileURI(t *testing.T) {
	h := NewMediaHandler(&fakeAnalyzer{})
	rec := postAnalyze(h, `{"mimeType":"video/mp4"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleAnalyzeRequiresDerivableMimeType(t *testing.T) {
	h := NewMediaHandler(&fakeAnalyzer{})
	rec := postAnalyze(h, `{"fileUri":"https://cdn.example.com/clip"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleAnalyzeDerivesMimeTypeFromExtension(t *testing.T) {
	fake := &fakeAnalyzer{chunks: []string{`[{"start_time":0,`, `"end_time":2}]`}}
	h := NewMediaHandler(fake)
	rec := postAnalyze(h, `{"fileUri":"https://cdn.example.com/clip.mp4?sig=abc"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `[{"start_time":0,"end_time":2}]`, rec.Body.String())
}

func TestHandleAnalyzeStripsNewlinesFromChunks(t *testing.T) {
	fake := &fakeAnalyzer{chunks: []string{"[{\"start_time\":0,\n", "\"end_time\":1}]\n"}}
	h := NewMediaHandler(fake)
	rec := postAnalyze(h, `{"fileUri":"https://x/v.mp4","mimeType":"video/mp4"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "\n")
}

func TestHandleAnalyzeCachesResults(t *testing.T) {
	fake := &fakeAnalyzer{chunks: []string{`[]`}}
	h := NewMediaHandler(fake)
	body := `{"fileUri":"https://x/v.mp4","mimeType":"video/mp4","promptText":"p"}`
	first := postAnalyze(h, body)
	second := postAnalyze(h, body)
	require.Equal(t, http.StatusOK, first.Code)
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, 1, fake.calls, "second request must hit the cache")
}

package httpserver

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/immigration-assistant/internal/config"
	"github.com/fairyhunter13/immigration-assistant/internal/domain"
	"github.com/fairyhunter13/immigration-assistant/internal/usecase"
)

type scriptedAI struct {
	answers map[string]string
}

func (s *scriptedAI) Chat(_ domain.Context, req domain.ChatRequest) (string, error) {
	for k, v := range s.answers {
		if strings.Contains(req.System, k) {
			return v, nil
		}
	}
	return "", errors.New("no scripted response")
}

func (s *scriptedAI) Embed(_ domain.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1}
	}
	return out, nil
}

type stubIndex struct{ hits []domain.ScoredChunk }

func (s *stubIndex) Index(domain.Context, []domain.Chunk) error { return nil }
func (s *stubIndex) Search(domain.Context, string, int) ([]domain.ScoredChunk, error) {
	return s.hits, nil
}

type stubRepo struct{ matched bool }

func (s *stubRepo) Append(domain.Context, domain.FeedbackEntry) (string, error) { return "id", nil }
func (s *stubRepo) AttachRating(domain.Context, string, string, int) (bool, error) {
	return s.matched, nil
}

type stubQueue struct{ tasks []domain.EvaluationTask }

func (s *stubQueue) EnqueueEvaluation(_ domain.Context, task domain.EvaluationTask) (string, error) {
	s.tasks = append(s.tasks, task)
	return "t/0/0", nil
}

type stubTranscriber struct {
	transcript string
	err        error
	gotPath    string
}

func (s *stubTranscriber) Transcribe(_ domain.Context, path, _ string) (string, error) {
	s.gotPath = path
	os.Remove(path)
	return s.transcript, s.err
}

type tokenPerRune struct{}

func (tokenPerRune) Count(s string) int { return len([]rune(s)) }

func newTestServer(t *testing.T) (*Server, *stubQueue, *stubTranscriber) {
	t.Helper()
	ai := &scriptedAI{answers: map[string]string{
		"predefined intents": "general_info",
		"provided context":   "Answer text (Source: uk_visa_faq.txt).",
		"translator":         "translated",
	}}
	ix := &stubIndex{hits: []domain.ScoredChunk{{
		Chunk: domain.Chunk{Source: "uk_visa_faq.txt", Content: "content"},
		Score: 0.9,
	}}}
	langs, err := config.LoadLanguageMap("")
	require.NoError(t, err)

	queue := &stubQueue{}
	rag := usecase.NewRAGService(ai, ix, tokenPerRune{}, 4, 0)
	ask := usecase.NewAskService(
		usecase.NewIntentClassifier(ai, nil),
		rag,
		usecase.NewTranslationService(ai, nil, langs),
		queue,
	)
	tr := &stubTranscriber{transcript: "Do I need a sponsor?"}
	srv := NewServer(ask, usecase.NewFeedbackService(&stubRepo{matched: true}), tr, t.TempDir(), 10,
		map[string]ReadinessProbe{"always": func(domain.Context) error { return nil }})
	return srv, queue, tr
}

func TestQuestionHandlerAnswers(t *testing.T) {
	srv, queue, _ := newTestServer(t)

	body := `{"question": "Do I need a sponsor?", "language": "en"}`
	req := httptest.NewRequest(http.MethodPost, "/api/question", strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.QuestionHandler(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp usecase.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Answer, "(Source: uk_visa_faq.txt)")
	assert.Equal(t, []string{"uk_visa_faq.txt"}, resp.Sources)
	assert.Equal(t, "general_info", resp.Intent)
	assert.Len(t, queue.tasks, 1)
}

func TestQuestionHandlerRejectsBadInput(t *testing.T) {
	srv, _, _ := newTestServer(t)

	for name, body := range map[string]string{
		"empty body":       ``,
		"not json":         `not json`,
		"missing question": `{"language": "en"}`,
		"too long":         fmt.Sprintf(`{"question": %q}`, strings.Repeat("x", 2001)),
	} {
		req := httptest.NewRequest(http.MethodPost, "/api/question", strings.NewReader(body))
		w := httptest.NewRecorder()
		srv.QuestionHandler(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code, name)

		var envelope errorEnvelope
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope), name)
		assert.Equal(t, "INVALID_ARGUMENT", envelope.Error.Code, name)
	}
}

func TestQuestionHandlerDefaultsLanguage(t *testing.T) {
	srv, queue, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/question", strings.NewReader(`{"question": "hi there"}`))
	w := httptest.NewRecorder()
	srv.QuestionHandler(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, queue.tasks, 1)
	assert.Equal(t, "en", queue.tasks[0].Language)
}

func multipartAudio(t *testing.T, field, filename string, content []byte, language string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	if language != "" {
		require.NoError(t, mw.WriteField("language", language))
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

// wavHeader is a minimal RIFF/WAVE header so MIME sniffing sees audio.
func wavHeader() []byte {
	b := []byte("RIFF\x24\x00\x00\x00WAVEfmt ")
	b = append(b, make([]byte, 24)...)
	return b
}

func TestAudioHandlerAnswers(t *testing.T) {
	srv, _, tr := newTestServer(t)

	buf, ct := multipartAudio(t, "audio", "question.wav", wavHeader(), "en")
	req := httptest.NewRequest(http.MethodPost, "/api/audio", buf)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	srv.AudioHandler(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp audioResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Do I need a sponsor?", resp.Transcript)
	assert.Contains(t, resp.Answer, "(Source: uk_visa_faq.txt)")

	_, err := os.Stat(tr.gotPath)
	assert.True(t, os.IsNotExist(err), "audio temp file must be deleted")
}

func TestAudioHandlerMissingFile(t *testing.T) {
	srv, _, _ := newTestServer(t)

	buf, ct := multipartAudio(t, "wrongfield", "a.wav", wavHeader(), "")
	req := httptest.NewRequest(http.MethodPost, "/api/audio", buf)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	srv.AudioHandler(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAudioHandlerRejectsNonAudio(t *testing.T) {
	srv, _, _ := newTestServer(t)

	buf, ct := multipartAudio(t, "audio", "nefarious.pdf", []byte("%PDF-1.4 not audio at all"), "")
	req := httptest.NewRequest(http.MethodPost, "/api/audio", buf)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	srv.AudioHandler(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAudioHandlerEmptyFileIsBadRequest(t *testing.T) {
	srv, _, tr := newTestServer(t)
	tr.err = fmt.Errorf("%w: audio file is empty", domain.ErrInvalidArgument)

	buf, ct := multipartAudio(t, "audio", "empty.wav", nil, "")
	req := httptest.NewRequest(http.MethodPost, "/api/audio", buf)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	srv.AudioHandler(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFeedbackHandler(t *testing.T) {
	srv, _, _ := newTestServer(t)

	body := `{"question": "q", "answer": "a", "rating": 4}`
	req := httptest.NewRequest(http.MethodPost, "/api/feedback", strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.FeedbackHandler(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	for name, bad := range map[string]string{
		"rating too high": `{"question": "q", "answer": "a", "rating": 6}`,
		"rating zero":     `{"question": "q", "answer": "a", "rating": 0}`,
		"missing answer":  `{"question": "q", "rating": 3}`,
	} {
		req := httptest.NewRequest(http.MethodPost, "/api/feedback", strings.NewReader(bad))
		w := httptest.NewRecorder()
		srv.FeedbackHandler(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code, name)
	}
}

func TestHealthzHandler(t *testing.T) {
	srv, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	srv.HealthzHandler(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
	assert.NotEmpty(t, resp["timestamp"])
	assert.NotEmpty(t, resp["uptime"])
}

func TestReadyzHandlerReportsFailures(t *testing.T) {
	srv, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	w := httptest.NewRecorder()
	srv.ReadyzHandler(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	srv.Probes["postgres"] = func(domain.Context) error { return errors.New("connection refused") }
	w = httptest.NewRecorder()
	srv.ReadyzHandler(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var resp struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "not ready", resp.Status)
	assert.Equal(t, "ok", resp.Checks["always"])
	assert.Contains(t, resp.Checks["postgres"], "connection refused")
}

func TestWriteErrorStatusMapping(t *testing.T) {
	for err, want := range map[error]int{
		domain.ErrInvalidArgument: http.StatusBadRequest,
		domain.ErrNotFound:        http.StatusNotFound,
		domain.ErrConflict:        http.StatusConflict,
		domain.ErrRateLimited:     http.StatusTooManyRequests,
		domain.ErrUpstreamTimeout: http.StatusGatewayTimeout,
		domain.ErrUpstream:        http.StatusBadGateway,
		domain.ErrSchemaInvalid:   http.StatusUnprocessableEntity,
		errors.New("anything"):    http.StatusInternalServerError,
	} {
		w := httptest.NewRecorder()
		writeError(w, fmt.Errorf("op=test: %w", err))
		assert.Equal(t, want, w.Code, err.Error())
	}
}

func TestOpenAPIHandler(t *testing.T) {
	srv, _, _ := newTestServer(t)

	w := httptest.NewRecorder()
	srv.OpenAPIHandler(w, httptest.NewRequest(http.MethodGet, "/openapi.yaml", nil))
	assert.Equal(t, http.StatusNotFound, w.Code, "no path configured")

	specPath := filepath.Join(t.TempDir(), "openapi.yaml")
	require.NoError(t, os.WriteFile(specPath, []byte("openapi: 3.0.3\n"), 0o644))
	srv.OpenAPIPath = specPath
	w = httptest.NewRecorder()
	srv.OpenAPIHandler(w, httptest.NewRequest(http.MethodGet, "/openapi.yaml", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "openapi: 3.0.3")
}

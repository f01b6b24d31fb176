package httpserver

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"

	"github.com/fairyhunter13/immigration-assistant/internal/domain"
	"github.com/fairyhunter13/immigration-assistant/internal/observability"
	"github.com/fairyhunter13/immigration-assistant/internal/usecase"
	"github.com/fairyhunter13/immigration-assistant/pkg/textx"
)

// ReadinessProbe checks one dependency; readiness aggregates them by name.
type ReadinessProbe func(ctx domain.Context) error

// Server bundles the HTTP handlers and their dependencies.
type Server struct {
	Ask         *usecase.AskService
	Feedback    *usecase.FeedbackService
	Transcriber domain.Transcriber

	UploadDir   string
	MaxUploadMB int64
	OpenAPIPath string

	Probes map[string]ReadinessProbe

	validate *validator.Validate
	started  time.Time
}

// NewServer constructs a Server. probes map dependency names to their checks.
func NewServer(ask *usecase.AskService, fb *usecase.FeedbackService, tr domain.Transcriber, uploadDir string, maxUploadMB int64, probes map[string]ReadinessProbe) *Server {
	return &Server{
		Ask:         ask,
		Feedback:    fb,
		Transcriber: tr,
		UploadDir:   uploadDir,
		MaxUploadMB: maxUploadMB,
		Probes:      probes,
		validate:    validator.New(),
		started:     time.Now(),
	}
}

type questionRequest struct {
	Question     string                    `json:"question" validate:"required,min=1,max=2000"`
	Language     string                    `json:"language" validate:"omitempty,max=32"`
	Conversation []domain.ConversationTurn `json:"conversation" validate:"omitempty,max=20,dive"`
}

// QuestionHandler answers a text question: POST /api/question.
func (s *Server) QuestionHandler(w http.ResponseWriter, r *http.Request) {
	var req questionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	req.Question = textx.SanitizeText(req.Question)
	if err := s.validate.Struct(req); err != nil {
		writeBadRequest(w, fmt.Sprintf("validation failed: %v", err))
		return
	}
	if req.Language == "" {
		req.Language = "en"
	}
	result := s.Ask.Process(r.Context(), req.Question, req.Language, req.Conversation)
	writeJSON(w, http.StatusOK, result)
}

type audioResponse struct {
	usecase.Result
	Transcript string `json:"transcript"`
}

// AudioHandler answers a spoken question: POST /api/audio with a
// multipart "audio" part. The upload is sniffed for an audio MIME type,
// spooled to a temp file and handed to the transcriber, which owns deleting
// the file on every outcome.
func (s *Server) AudioHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.MaxUploadMB<<20)
	if err := r.ParseMultipartForm(s.MaxUploadMB << 20); err != nil {
		writeBadRequest(w, "invalid multipart form or upload too large")
		return
	}
	file, header, err := r.FormFile("audio")
	if err != nil {
		writeBadRequest(w, "missing audio file")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeBadRequest(w, "failed to read audio file")
		return
	}
	if len(data) > 0 {
		if mt := mimetype.Detect(data); !strings.HasPrefix(mt.String(), "audio/") && !strings.HasPrefix(mt.String(), "video/") {
			writeBadRequest(w, fmt.Sprintf("unsupported content type %s, expected audio", mt.String()))
			return
		}
	}

	lang := r.FormValue("language")
	if lang == "" {
		lang = "en"
	}

	path, err := s.spoolUpload(header.Filename, data)
	if err != nil {
		observability.LoggerFromContext(r.Context()).Error("failed to spool audio upload", slog.Any("error", err))
		writeError(w, fmt.Errorf("%w: could not store upload", domain.ErrInternal))
		return
	}

	transcript, err := s.Transcriber.Transcribe(r.Context(), path, lang)
	if err != nil {
		writeError(w, err)
		return
	}

	result := s.Ask.Process(r.Context(), transcript, lang, nil)
	writeJSON(w, http.StatusOK, audioResponse{Result: result, Transcript: transcript})
}

// spoolUpload writes the upload to a uniquely named file under UploadDir.
func (s *Server) spoolUpload(filename string, data []byte) (string, error) {
	if err := os.MkdirAll(s.UploadDir, 0o755); err != nil {
		return "", err
	}
	ext := filepath.Ext(filename)
	if ext == "" {
		ext = ".bin"
	}
	f, err := os.CreateTemp(s.UploadDir, "audio-*"+ext)
	if err != nil {
		return "", err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

type feedbackRequest struct {
	Question string `json:"question" validate:"required,min=1,max=2000"`
	Answer   string `json:"answer" validate:"required,min=1"`
	Rating   int    `json:"rating" validate:"required,min=1,max=5"`
}

// FeedbackHandler attaches a user rating to an answered question:
// POST /api/feedback. Ratings that match no logged answer are accepted and
// dropped; the client cannot distinguish the two outcomes.
func (s *Server) FeedbackHandler(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeBadRequest(w, fmt.Sprintf("validation failed: %v", err))
		return
	}
	if err := s.Feedback.RecordUserRating(r.Context(), req.Question, req.Answer, req.Rating); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}

// HealthzHandler reports process liveness: GET /healthz.
func (s *Server) HealthzHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// ReadyzHandler probes each dependency: GET /readyz. Any failing probe makes
// the whole endpoint report 503 with per-dependency detail.
func (s *Server) ReadyzHandler(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string, len(s.Probes))
	healthy := true
	for name, probe := range s.Probes {
		if err := probe(r.Context()); err != nil {
			checks[name] = err.Error()
			healthy = false
		} else {
			checks[name] = "ok"
		}
	}
	status := http.StatusOK
	overall := "ready"
	if !healthy {
		status = http.StatusServiceUnavailable
		overall = "not ready"
	}
	writeJSON(w, status, map[string]any{"status": overall, "checks": checks})
}

// OpenAPIHandler serves the API contract: GET /openapi.yaml.
func (s *Server) OpenAPIHandler(w http.ResponseWriter, r *http.Request) {
	if s.OpenAPIPath == "" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	http.ServeFile(w, r, s.OpenAPIPath)
}

// Package openai implements the AI ports against an OpenAI-compatible API.
package openai

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fairyhunter13/immigration-assistant/internal/config"
	"github.com/fairyhunter13/immigration-assistant/internal/domain"
	"github.com/fairyhunter13/immigration-assistant/internal/observability"
)

// transcriptPlaceholder is returned when transcription degrades. Callers treat
// it as best-effort text, never as an error.
const transcriptPlaceholder = "[transcription unavailable] Audio could not be processed."

// Client implements domain.AIClient and domain.Transcriber against the
// OpenAI API (or any compatible endpoint).
type Client struct {
	cfg     config.Config
	chatHC  *http.Client
	embedHC *http.Client
	audioHC *http.Client
}

// New constructs a Client with sensible per-operation timeouts. Outbound
// calls are traced at the transport level.
func New(cfg config.Config) *Client {
	transport := otelhttp.NewTransport(http.DefaultTransport,
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return fmt.Sprintf("OpenAI %s %s", r.Method, r.URL.Path)
		}),
	)
	return &Client{
		cfg:     cfg,
		chatHC:  &http.Client{Timeout: 60 * time.Second, Transport: transport},
		embedHC: &http.Client{Timeout: 30 * time.Second, Transport: transport},
		audioHC: &http.Client{Timeout: 120 * time.Second, Transport: transport},
	}
}

func (c *Client) getBackoffConfig() *backoff.ExponentialBackOff {
	expo := backoff.NewExponentialBackOff()
	maxElapsedTime, initialInterval, maxInterval, multiplier := c.cfg.GetAIBackoffConfig()
	expo.MaxElapsedTime = maxElapsedTime
	expo.InitialInterval = initialInterval
	expo.MaxInterval = maxInterval
	expo.Multiplier = multiplier
	return expo
}

// Chat calls the chat completions endpoint and returns the message content.
// Transport-level retry with backoff handles 429/5xx; 4xx is permanent.
func (c *Client) Chat(ctx domain.Context, req domain.ChatRequest) (string, error) {
	if c.cfg.OpenAIAPIKey == "" {
		return "", fmt.Errorf("%w: OPENAI_API_KEY missing", domain.ErrInvalidArgument)
	}
	body := map[string]any{
		"model":       c.cfg.ChatModel,
		"temperature": req.Temperature,
		"max_tokens":  req.MaxTokens,
		"messages": []map[string]string{
			{"role": "system", "content": req.System},
			{"role": "user", "content": req.User},
		},
	}
	b, _ := json.Marshal(body)
	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	op := func() error {
		start := time.Now()
		r, _ := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.OpenAIBaseURL+"/chat/completions", bytes.NewReader(b))
		r.Header.Set("Authorization", "Bearer "+c.cfg.OpenAIAPIKey)
		r.Header.Set("Content-Type", "application/json")
		resp, err := c.chatHC.Do(r)
		observability.AIRequestsTotal.WithLabelValues("openai", "chat").Inc()
		observability.AIRequestDuration.WithLabelValues("openai", "chat").Observe(time.Since(start).Seconds())
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()
		bodyBytes, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			slog.Warn("ai provider rate limited", slog.String("op", "chat"), slog.Int("status", resp.StatusCode))
			return fmt.Errorf("rate limited: 429")
		}
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			slog.Warn("ai provider 4xx", slog.String("op", "chat"), slog.Int("status", resp.StatusCode), slog.String("body", snippet(bodyBytes)))
			return backoff.Permanent(fmt.Errorf("%w: chat status %d", domain.ErrUpstream, resp.StatusCode))
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			slog.Error("ai provider non-2xx", slog.String("op", "chat"), slog.Int("status", resp.StatusCode), slog.String("body", snippet(bodyBytes)))
			return fmt.Errorf("chat status %d", resp.StatusCode)
		}
		if err := json.Unmarshal(bodyBytes, &out); err != nil {
			return err
		}
		return nil
	}
	bo := backoff.WithContext(c.getBackoffConfig(), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return "", fmt.Errorf("openai chat: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", errors.New("empty choices from chat completions")
	}
	return out.Choices[0].Message.Content, nil
}

// Embed returns one embedding vector per input text, in input order.
func (c *Client) Embed(ctx domain.Context, texts []string) ([][]float32, error) {
	if c.cfg.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("%w: OPENAI_API_KEY missing", domain.ErrInvalidArgument)
	}
	body := map[string]any{"model": c.cfg.EmbeddingsModel, "input": texts}
	b, _ := json.Marshal(body)
	var out struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	op := func() error {
		start := time.Now()
		r, _ := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.OpenAIBaseURL+"/embeddings", bytes.NewReader(b))
		r.Header.Set("Authorization", "Bearer "+c.cfg.OpenAIAPIKey)
		r.Header.Set("Content-Type", "application/json")
		resp, err := c.embedHC.Do(r)
		observability.AIRequestsTotal.WithLabelValues("openai", "embed").Inc()
		observability.AIRequestDuration.WithLabelValues("openai", "embed").Observe(time.Since(start).Seconds())
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()
		bodyBytes, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("rate limited: 429")
		}
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return backoff.Permanent(fmt.Errorf("%w: embeddings status %d", domain.ErrUpstream, resp.StatusCode))
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("embeddings status %d", resp.StatusCode)
		}
		return json.Unmarshal(bodyBytes, &out)
	}
	bo := backoff.WithContext(c.getBackoffConfig(), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	if len(out.Data) != len(texts) {
		return nil, fmt.Errorf("embeddings count mismatch: want %d got %d", len(texts), len(out.Data))
	}
	vectors := make([][]float32, len(texts))
	for _, d := range out.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, fmt.Errorf("embeddings index out of range: %d", d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}

// Transcribe streams the audio file at path to the transcription endpoint with
// a language hint. The temporary file is removed on every outcome. An empty
// file is a caller error; any provider failure degrades to a placeholder
// transcript instead of an error.
func (c *Client) Transcribe(ctx domain.Context, path, language string) (string, error) {
	defer func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Warn("could not remove temporary audio file", slog.String("path", path), slog.Any("error", err))
		}
	}()

	st, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("%w: audio file missing: %v", domain.ErrInvalidArgument, err)
	}
	if st.Size() == 0 {
		return "", fmt.Errorf("%w: audio file is empty", domain.ErrInvalidArgument)
	}

	text, err := c.transcribeOnce(ctx, path, language)
	if err != nil {
		slog.Error("transcription degraded to placeholder", slog.String("path", path), slog.Any("error", err))
		observability.FallbacksTotal.WithLabelValues("transcriber").Inc()
		return transcriptPlaceholder, nil
	}
	return text, nil
}

func (c *Client) transcribeOnce(ctx domain.Context, path, language string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(fw, f); err != nil {
		return "", err
	}
	_ = mw.WriteField("model", c.cfg.WhisperModel)
	if language != "" {
		_ = mw.WriteField("language", language)
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	start := time.Now()
	r, _ := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.OpenAIBaseURL+"/audio/transcriptions", &buf)
	r.Header.Set("Authorization", "Bearer "+c.cfg.OpenAIAPIKey)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := c.audioHC.Do(r)
	observability.AIRequestsTotal.WithLabelValues("openai", "transcribe").Inc()
	observability.AIRequestDuration.WithLabelValues("openai", "transcribe").Observe(time.Since(start).Seconds())
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("transcription status %d: %s", resp.StatusCode, snippet(bodyBytes))
	}
	var out struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(bodyBytes, &out); err != nil {
		return "", err
	}
	return out.Text, nil
}

func snippet(b []byte) string {
	if len(b) > 512 {
		b = b[:512]
	}
	return string(b)
}

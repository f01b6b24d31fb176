// Package domain holds core entities and ports for the immigration assistant.
package domain

import (
	"context"
	"errors"
	"time"
)

// Error taxonomy (sentinels)
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrRateLimited     = errors.New("rate limited")
	ErrUpstreamTimeout = errors.New("upstream timeout")
	ErrUpstream        = errors.New("upstream error")
	ErrSchemaInvalid   = errors.New("schema invalid")
	ErrInternal        = errors.New("internal error")
)

// Intent is the coarse classification label for a user question.
type Intent string

// Closed intent label set. Unknown model output maps to IntentGeneralInfo.
const (
	IntentVisaEligibility      Intent = "visa_eligibility"
	IntentDocumentRequirements Intent = "document_requirements"
	IntentGeneralInfo          Intent = "general_info"
)

// ParseIntent maps raw model output to a member of the closed label set.
// Anything that is not an exact member falls back to IntentGeneralInfo.
func ParseIntent(s string) Intent {
	switch Intent(s) {
	case IntentVisaEligibility, IntentDocumentRequirements, IntentGeneralInfo:
		return Intent(s)
	}
	return IntentGeneralInfo
}

// Document is an immutable unit of ingested corpus text.
// Country and Domain are inferred from the source filename at load time.
type Document struct {
	Source     string
	Content    string
	Country    string
	Domain     string
	IngestedAt time.Time
}

// Chunk is a bounded, overlapping slice of a Document used as a retrieval unit.
// Invariants: len(Content) <= configured chunk size; consecutive chunks of the
// same document share exactly the configured overlap, except possibly the last.
type Chunk struct {
	Source     string
	Content    string
	Country    string
	Domain     string
	Index      int
	IngestedAt time.Time
}

// ScoredChunk is a similarity-search hit with its score.
type ScoredChunk struct {
	Chunk
	Score float64
}

// RetrievedContext is the per-query context bundle fed into the prompt.
type RetrievedContext struct {
	Text    string
	Sources []string
	Chunks  []ScoredChunk
}

// ConversationTurn is a prior (question, answer) pair supplied by the caller.
type ConversationTurn struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Answer is generated text plus the source identifiers it draws on.
type Answer struct {
	Text    string
	Sources []string
}

// Evaluation holds the five rubric sub-scores and the weighted overall score,
// all in [0,1], with free-text reasons and recommendations.
type Evaluation struct {
	Overall            float64
	Accuracy           float64
	Completeness       float64
	Clarity            float64
	Actionability      float64
	TranslationQuality float64
	Reasons            []string
	Recommendations    []string
}

// FeedbackEntry is the persisted per-answer quality record. Entries are
// append-only; a later user rating mutates the matching entry in place.
type FeedbackEntry struct {
	ID         string
	Question   string
	Answer     string
	Sources    []string
	AIScore    float64
	AIReason   string
	UserRating *int
	Language   string
	CreatedAt  time.Time
}

// EvaluationTask is the queue payload carrying everything the worker needs to
// evaluate an answer and append the feedback entry.
type EvaluationTask struct {
	// Question is the user's question exactly as asked; the feedback entry
	// is keyed on it so later ratings can find the entry again.
	Question        string   `json:"question"`
	EnglishQuestion string   `json:"english_question"`
	EnglishAnswer   string   `json:"english_answer"`
	FinalAnswer     string   `json:"final_answer"`
	Sources         []string `json:"sources"`
	Language        string   `json:"language"`
}

// ChatRequest parameterizes a single chat-completion call.
type ChatRequest struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int
}

// AIClient (port): hosted language-model provider.
type AIClient interface {
	// Chat returns the raw text content of a single completion.
	Chat(ctx Context, req ChatRequest) (string, error)
	// Embed returns embedding vectors for texts, one per input, in order.
	Embed(ctx Context, texts []string) ([][]float32, error)
}

// Transcriber (port): hosted speech-to-text provider.
// Implementations must delete the file at path on every outcome.
type Transcriber interface {
	Transcribe(ctx Context, path, language string) (string, error)
}

// VectorIndex (port): embeds chunks/queries and talks to the hosted index.
type VectorIndex interface {
	Index(ctx Context, chunks []Chunk) error
	Search(ctx Context, query string, topK int) ([]ScoredChunk, error)
}

// FeedbackRepository (port): append-only quality log with in-place ratings.
type FeedbackRepository interface {
	Append(ctx Context, e FeedbackEntry) (string, error)
	// AttachRating updates the most recent entry matching (question, answer)
	// exactly. Returns false when no entry matched.
	AttachRating(ctx Context, question, answer string, rating int) (bool, error)
}

// Queue (port): hands evaluation tasks to the worker process.
type Queue interface {
	EnqueueEvaluation(ctx Context, task EvaluationTask) (string, error)
}

// Context aliases context.Context so ports read uniformly across layers.
type Context = context.Context

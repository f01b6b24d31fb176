package usecase

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/fairyhunter13/immigration-assistant/internal/domain"
	"github.com/fairyhunter13/immigration-assistant/internal/observability"
	"github.com/fairyhunter13/immigration-assistant/pkg/textx"
)

// Generation parameters. Slightly warm temperature keeps answers natural
// while staying grounded in the retrieved context.
const (
	generationTemperature = 0.2
	generationMaxTokens   = 800
)

// generatorApology is the fail-open answer when the provider cannot produce
// a completion. It ships with no sources so clients can tell it apart from a
// grounded answer.
const generatorApology = "Sorry, I could not generate an answer at this time."

// retrievalApology covers the earlier failure mode where retrieval itself is
// unavailable and no context exists to answer from.
const retrievalApology = "Sorry, something went wrong while processing your request."

// TokenCounter counts model tokens in a string; used to budget prompt size.
type TokenCounter interface {
	Count(s string) int
}

// RAGService runs the retrieval-augmented generation pipeline:
// search the vector index, assemble a source-labelled context block,
// build the grounded prompt and generate the answer.
type RAGService struct {
	AI          domain.AIClient
	Index       domain.VectorIndex
	Tokens      TokenCounter
	TopK        int
	TokenBudget int
}

// NewRAGService constructs a RAGService.
func NewRAGService(ai domain.AIClient, ix domain.VectorIndex, tokens TokenCounter, topK, tokenBudget int) *RAGService {
	return &RAGService{AI: ai, Index: ix, Tokens: tokens, TopK: topK, TokenBudget: tokenBudget}
}

// Retrieve searches the index and assembles the context bundle. Sources are
// de-duplicated preserving first-hit order; context sections beyond the token
// budget are dropped from the tail.
func (s *RAGService) Retrieve(ctx domain.Context, query string) (domain.RetrievedContext, error) {
	hits, err := s.Index.Search(ctx, query, s.TopK)
	if err != nil {
		return domain.RetrievedContext{}, fmt.Errorf("op=rag.retrieve: %w", err)
	}

	sections := make([]string, 0, len(hits))
	sources := make([]string, 0, len(hits))
	seen := make(map[string]bool, len(hits))
	used := 0
	kept := make([]domain.ScoredChunk, 0, len(hits))
	for i, h := range hits {
		section := fmt.Sprintf("Source %d (%s):\n%s", i+1, h.Source, h.Content)
		cost := s.Tokens.Count(section)
		if s.TokenBudget > 0 && used+cost > s.TokenBudget && len(sections) > 0 {
			slog.Info("retrieved context trimmed to token budget",
				slog.Int("kept_sections", len(sections)),
				slog.Int("dropped_sections", len(hits)-i),
				slog.Int("budget", s.TokenBudget))
			break
		}
		used += cost
		sections = append(sections, section)
		kept = append(kept, h)
		if !seen[h.Source] {
			seen[h.Source] = true
			sources = append(sources, h.Source)
		}
	}

	return domain.RetrievedContext{
		Text:    strings.Join(sections, "\n\n"),
		Sources: sources,
		Chunks:  kept,
	}, nil
}

// Generate produces the grounded answer for an already-retrieved context.
// Provider failures degrade to an apology answer with no sources.
func (s *RAGService) Generate(ctx domain.Context, query string, rc domain.RetrievedContext, language string, conversation []domain.ConversationTurn) domain.Answer {
	prompt := BuildPrompt(query, rc, language, conversation)
	text, err := s.AI.Chat(ctx, domain.ChatRequest{
		System:      generationSystemPrompt,
		User:        prompt,
		Temperature: generationTemperature,
		MaxTokens:   generationMaxTokens,
	})
	if err != nil {
		slog.Error("answer generation failed, serving apology",
			slog.String("question", textx.Snippet(query, 80)),
			slog.Any("error", err))
		observability.FallbacksTotal.WithLabelValues("generator").Inc()
		return domain.Answer{Text: generatorApology, Sources: []string{}}
	}
	return domain.Answer{Text: strings.TrimSpace(text), Sources: rc.Sources}
}

// Ask runs the full pipeline for one question. It never returns an error:
// retrieval failures and generation failures both degrade to apology answers
// so the caller always has something to show the user.
func (s *RAGService) Ask(ctx domain.Context, query string, conversation []domain.ConversationTurn) domain.Answer {
	rc, err := s.Retrieve(ctx, query)
	if err != nil {
		slog.Error("retrieval failed, serving apology",
			slog.String("question", textx.Snippet(query, 80)),
			slog.Any("error", err))
		observability.FallbacksTotal.WithLabelValues("retriever").Inc()
		return domain.Answer{Text: retrievalApology, Sources: []string{}}
	}
	return s.Generate(ctx, query, rc, "English", conversation)
}

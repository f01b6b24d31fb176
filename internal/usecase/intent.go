package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fairyhunter13/immigration-assistant/internal/domain"
	"github.com/fairyhunter13/immigration-assistant/internal/observability"
	"github.com/fairyhunter13/immigration-assistant/pkg/textx"
)

// TextCache is a read-through cache for deterministic model calls. Intent
// labels and translations are produced at zero temperature, so equal inputs
// yield equal outputs and caching is sound.
type TextCache interface {
	Get(ctx context.Context, kind, key string) (string, bool)
	Set(ctx context.Context, kind, key, value string)
}

// nopCache misses on every read; used when no Redis is configured.
type nopCache struct{}

func (nopCache) Get(context.Context, string, string) (string, bool) { return "", false }
func (nopCache) Set(context.Context, string, string, string)        {}

const intentSystemPrompt = "You classify user questions into predefined intents. Respond with ONLY one intent value."

const intentUserPromptFmt = `Classify the intent of the following question into ONE of:
- visa_eligibility
- document_requirements
- general_info

Question: %q

Respond with ONLY the intent name.`

// IntentClassifier maps a question to a member of the closed intent set.
type IntentClassifier struct {
	AI    domain.AIClient
	Cache TextCache
}

// NewIntentClassifier constructs an IntentClassifier; cache may be nil.
func NewIntentClassifier(ai domain.AIClient, cache TextCache) *IntentClassifier {
	if cache == nil {
		cache = nopCache{}
	}
	return &IntentClassifier{AI: ai, Cache: cache}
}

// Classify returns the intent label for question. Classification runs at
// zero temperature; provider failures fall back to general_info so routing
// always proceeds.
func (c *IntentClassifier) Classify(ctx domain.Context, question string) domain.Intent {
	if cached, ok := c.Cache.Get(ctx, "intent", question); ok {
		return domain.ParseIntent(cached)
	}
	raw, err := c.AI.Chat(ctx, domain.ChatRequest{
		System:      intentSystemPrompt,
		User:        fmt.Sprintf(intentUserPromptFmt, question),
		Temperature: 0,
		MaxTokens:   10,
	})
	if err != nil {
		slog.Warn("intent classification failed, defaulting to general_info",
			slog.String("question", textx.Snippet(question, 80)),
			slog.Any("error", err))
		observability.FallbacksTotal.WithLabelValues("intent").Inc()
		return domain.IntentGeneralInfo
	}
	intent := domain.ParseIntent(strings.ToLower(strings.TrimSpace(raw)))
	c.Cache.Set(ctx, "intent", question, string(intent))
	return intent
}

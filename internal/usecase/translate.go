package usecase

import (
	"fmt"
	"log/slog"

	"github.com/fairyhunter13/immigration-assistant/internal/config"
	"github.com/fairyhunter13/immigration-assistant/internal/domain"
	"github.com/fairyhunter13/immigration-assistant/internal/observability"
	"github.com/fairyhunter13/immigration-assistant/pkg/textx"
)

const translatorSystemPrompt = "You are a helpful translator."

// TranslationService translates user questions into English for the pipeline
// and answers back into the user's language. Every translation is fail-open:
// a provider failure returns the original text unchanged, which keeps the
// service usable in English when the translator is down.
type TranslationService struct {
	AI        domain.AIClient
	Cache     TextCache
	Languages config.LanguageMap
}

// NewTranslationService constructs a TranslationService; cache may be nil.
func NewTranslationService(ai domain.AIClient, cache TextCache, langs config.LanguageMap) *TranslationService {
	if cache == nil {
		cache = nopCache{}
	}
	return &TranslationService{AI: ai, Cache: cache, Languages: langs}
}

// Translate translates text into the language named by ISO code lang.
// English targets and empty text short-circuit without a provider call.
func (s *TranslationService) Translate(ctx domain.Context, text, lang string) string {
	if text == "" || config.IsEnglish(lang) {
		return text
	}
	target := s.Languages.Name(lang)
	cacheKey := target + "\x00" + text
	if cached, ok := s.Cache.Get(ctx, "translate", cacheKey); ok {
		return cached
	}
	out, err := s.AI.Chat(ctx, domain.ChatRequest{
		System:      translatorSystemPrompt,
		User:        fmt.Sprintf("Translate the following text to %s:\n\n%s", target, text),
		Temperature: 0,
		MaxTokens:   1000,
	})
	if err != nil {
		slog.Warn("translation failed, returning original text",
			slog.String("target", target),
			slog.String("text", textx.Snippet(text, 80)),
			slog.Any("error", err))
		observability.FallbacksTotal.WithLabelValues("translator").Inc()
		return text
	}
	s.Cache.Set(ctx, "translate", cacheKey, out)
	return out
}

// ToEnglish translates text from the user's language into English.
func (s *TranslationService) ToEnglish(ctx domain.Context, text, lang string) string {
	if text == "" || config.IsEnglish(lang) {
		return text
	}
	cacheKey := "en\x00" + lang + "\x00" + text
	if cached, ok := s.Cache.Get(ctx, "translate", cacheKey); ok {
		return cached
	}
	out, err := s.AI.Chat(ctx, domain.ChatRequest{
		System:      translatorSystemPrompt,
		User:        fmt.Sprintf("Translate the following text to English:\n\n%s", text),
		Temperature: 0,
		MaxTokens:   1000,
	})
	if err != nil {
		slog.Warn("translation to English failed, using original text",
			slog.String("lang", lang),
			slog.String("text", textx.Snippet(text, 80)),
			slog.Any("error", err))
		observability.FallbacksTotal.WithLabelValues("translator").Inc()
		return text
	}
	s.Cache.Set(ctx, "translate", cacheKey, out)
	return out
}

// TranslateConversation translates each turn of a conversation history into
// English, preserving order. Failed turns pass through untranslated.
func (s *TranslationService) TranslateConversation(ctx domain.Context, turns []domain.ConversationTurn, lang string) []domain.ConversationTurn {
	if len(turns) == 0 || config.IsEnglish(lang) {
		return turns
	}
	out := make([]domain.ConversationTurn, len(turns))
	for i, t := range turns {
		out[i] = domain.ConversationTurn{
			Question: s.ToEnglish(ctx, t.Question, lang),
			Answer:   s.ToEnglish(ctx, t.Answer, lang),
		}
	}
	return out
}

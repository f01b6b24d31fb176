package usecase

import (
	"log/slog"

	"github.com/fairyhunter13/immigration-assistant/internal/domain"
	"github.com/fairyhunter13/immigration-assistant/internal/observability"
	"github.com/fairyhunter13/immigration-assistant/pkg/textx"
)

// Result is the complete outcome of answering one question.
type Result struct {
	Answer        string   `json:"answer"`
	EnglishAnswer string   `json:"-"`
	Sources       []string `json:"sources"`
	Intent        string   `json:"intent"`
	Language      string   `json:"language"`
}

// intentHandler answers an already-English question for one intent.
type intentHandler func(ctx domain.Context, question string, conversation []domain.ConversationTurn) domain.Answer

// AskService orchestrates the answer flow: translate the question to
// English, classify intent, dispatch to the intent's handler, translate the
// answer back and enqueue it for asynchronous evaluation.
type AskService struct {
	Intents    *IntentClassifier
	RAG        *RAGService
	Translator *TranslationService
	Queue      domain.Queue

	handlers map[domain.Intent]intentHandler
}

// NewAskService constructs an AskService. Queue may be nil; evaluation is
// then skipped entirely.
func NewAskService(intents *IntentClassifier, rag *RAGService, tr *TranslationService, q domain.Queue) *AskService {
	s := &AskService{Intents: intents, RAG: rag, Translator: tr, Queue: q}
	// Every intent currently runs the same retrieval pipeline; the map keeps
	// routing explicit so an intent can grow a specialized handler without
	// touching the flow.
	s.handlers = map[domain.Intent]intentHandler{
		domain.IntentVisaEligibility:      rag.Ask,
		domain.IntentDocumentRequirements: rag.Ask,
		domain.IntentGeneralInfo:          rag.Ask,
	}
	return s
}

// Process answers one question asked in language lang. It never returns an
// error: every stage degrades rather than fails, so the caller always
// receives a displayable Result.
func (s *AskService) Process(ctx domain.Context, question, lang string, conversation []domain.ConversationTurn) Result {
	english := s.Translator.ToEnglish(ctx, question, lang)
	englishHistory := s.Translator.TranslateConversation(ctx, conversation, lang)

	intent := s.Intents.Classify(ctx, english)
	handler, ok := s.handlers[intent]
	if !ok {
		handler = s.handlers[domain.IntentGeneralInfo]
	}
	answer := handler(ctx, english, englishHistory)

	final := s.Translator.Translate(ctx, answer.Text, lang)

	slog.Info("question answered",
		slog.String("intent", string(intent)),
		slog.String("language", lang),
		slog.Int("sources", len(answer.Sources)),
		slog.String("question", textx.Snippet(question, 80)))

	s.enqueueEvaluation(ctx, domain.EvaluationTask{
		Question:        question,
		EnglishQuestion: english,
		EnglishAnswer:   answer.Text,
		FinalAnswer:     final,
		Sources:         answer.Sources,
		Language:        lang,
	})

	return Result{
		Answer:        final,
		EnglishAnswer: answer.Text,
		Sources:       answer.Sources,
		Intent:        string(intent),
		Language:      lang,
	}
}

// enqueueEvaluation hands the answer to the worker. Failures never affect
// the user-facing response.
func (s *AskService) enqueueEvaluation(ctx domain.Context, task domain.EvaluationTask) {
	if s.Queue == nil {
		return
	}
	if _, err := s.Queue.EnqueueEvaluation(ctx, task); err != nil {
		slog.Error("failed to enqueue evaluation task",
			slog.String("question", textx.Snippet(task.Question, 80)),
			slog.Any("error", err))
		observability.FallbacksTotal.WithLabelValues("queue").Inc()
	}
}

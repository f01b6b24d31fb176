package usecase

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/fairyhunter13/immigration-assistant/internal/domain"
	"github.com/fairyhunter13/immigration-assistant/internal/observability"
	"github.com/fairyhunter13/immigration-assistant/pkg/textx"
)

// Rubric weights for the overall score. They sum to 1.0.
const (
	weightAccuracy      = 0.30
	weightCompleteness  = 0.25
	weightClarity       = 0.20
	weightActionability = 0.15
	weightTranslation   = 0.10
)

// Heuristic thresholds and penalties applied before the model pass.
const (
	minAnswerLen = 50
	maxAnswerLen = 2000

	penaltyTooShort       = 0.3
	penaltyTooLong        = 0.2
	penaltyNoSourcesDim   = 0.5
	penaltyNoSourcesAll   = 0.4
	penaltyBadCitationDim = 0.3
)

// citationPattern matches the citation form the generation prompt mandates.
var citationPattern = regexp.MustCompile(`(?i)\(Source:\s*[\w.\-]+\)`)

const evaluatorSystemPrompt = "You are an expert evaluator of immigration assistance responses. " +
	"Provide objective, detailed evaluations in the requested JSON format."

// Evaluator scores answers on the five-dimension rubric. Scoring combines a
// deterministic heuristic pass with a model pass; the model pass contributes
// nothing when it fails or returns unparseable output.
type Evaluator struct {
	AI domain.AIClient
}

// NewEvaluator constructs an Evaluator.
func NewEvaluator(ai domain.AIClient) *Evaluator { return &Evaluator{AI: ai} }

// Evaluate scores an answer. It always returns a usable Evaluation: when the
// model pass fails the heuristic result stands alone.
func (e *Evaluator) Evaluate(ctx domain.Context, task domain.EvaluationTask) domain.Evaluation {
	basic := heuristicEvaluate(task.EnglishAnswer, task.Sources)

	model, err := e.modelEvaluate(ctx, task)
	if err != nil {
		slog.Warn("model evaluation pass failed, keeping heuristic scores",
			slog.String("question", textx.Snippet(task.Question, 80)),
			slog.Any("error", err))
		observability.FallbacksTotal.WithLabelValues("evaluator").Inc()
		observability.EvaluationOverallScore.Observe(basic.Overall)
		return basic
	}

	merged := mergeEvaluations(basic, model)
	observability.EvaluationOverallScore.Observe(merged.Overall)
	return merged
}

// heuristicEvaluate applies deterministic structural checks. Its Overall is
// penalty-based rather than weighted, so a missing model pass still yields a
// score that reflects the structural defects found.
func heuristicEvaluate(answer string, sources []string) domain.Evaluation {
	ev := domain.Evaluation{
		Overall:            1.0,
		Accuracy:           1.0,
		Completeness:       0.8,
		Clarity:            0.8,
		Actionability:      0.7,
		TranslationQuality: 1.0,
	}

	if len(answer) < minAnswerLen {
		ev.Overall -= penaltyTooShort
		ev.Reasons = append(ev.Reasons, "Response too short")
		ev.Recommendations = append(ev.Recommendations, "Provide more detailed explanation")
	}
	if len(answer) > maxAnswerLen {
		ev.Overall -= penaltyTooLong
		ev.Reasons = append(ev.Reasons, "Response too long")
		ev.Recommendations = append(ev.Recommendations, "Make response more concise")
	}

	if len(sources) == 0 {
		ev.Accuracy -= penaltyNoSourcesDim
		ev.Overall -= penaltyNoSourcesAll
		ev.Reasons = append(ev.Reasons, "No sources cited")
		ev.Recommendations = append(ev.Recommendations, "Include source citations for credibility")
	} else if !citationPattern.MatchString(answer) {
		ev.Accuracy -= penaltyBadCitationDim
		ev.Reasons = append(ev.Reasons, "Improper citation format")
		ev.Recommendations = append(ev.Recommendations, "Use proper citation format: (Source: filename.txt)")
	}

	ev.Overall = clamp01(ev.Overall)
	ev.Accuracy = clamp01(ev.Accuracy)
	return ev
}

// modelScores is the strict JSON contract for the model pass. A parse failure
// of the whole payload discards the pass; a missing dimension gets a neutral
// default rather than zero.
type modelScores struct {
	LegalAccuracy      float64  `json:"legal_accuracy"`
	Completeness       float64  `json:"completeness"`
	Clarity            float64  `json:"clarity"`
	Actionability      float64  `json:"actionability"`
	TranslationQuality float64  `json:"translation_quality"`
	Reasons            []string `json:"reasons"`
	Recommendations    []string `json:"recommendations"`
}

func (e *Evaluator) modelEvaluate(ctx domain.Context, task domain.EvaluationTask) (modelScores, error) {
	prompt := buildEvaluationPrompt(task)
	raw, err := e.AI.Chat(ctx, domain.ChatRequest{
		System:      evaluatorSystemPrompt,
		User:        prompt,
		Temperature: 0.1,
		MaxTokens:   500,
	})
	if err != nil {
		return modelScores{}, fmt.Errorf("op=evaluate.model: %w", err)
	}
	payload, ok := extractJSONObject(raw)
	if !ok {
		return modelScores{}, fmt.Errorf("op=evaluate.model: %w: no JSON object in response", domain.ErrSchemaInvalid)
	}
	var scores modelScores
	if err := json.Unmarshal([]byte(payload), &scores); err != nil {
		return modelScores{}, fmt.Errorf("op=evaluate.model: %w: %v", domain.ErrSchemaInvalid, err)
	}
	if scores.LegalAccuracy == 0 {
		scores.LegalAccuracy = 0.5
	}
	if scores.Completeness == 0 {
		scores.Completeness = 0.5
	}
	if scores.Clarity == 0 {
		scores.Clarity = 0.5
	}
	if scores.Actionability == 0 {
		scores.Actionability = 0.5
	}
	if scores.TranslationQuality == 0 {
		scores.TranslationQuality = 1.0
	}
	return scores, nil
}

func buildEvaluationPrompt(task domain.EvaluationTask) string {
	var b strings.Builder
	b.WriteString("Evaluate this immigration assistance response.\n\n")
	fmt.Fprintf(&b, "Question: %s\n\n", task.EnglishQuestion)
	fmt.Fprintf(&b, "Answer: %s\n\n", task.EnglishAnswer)
	fmt.Fprintf(&b, "Sources cited: %s\n", strings.Join(task.Sources, ", "))
	if task.Language != "" && task.Language != "en" {
		fmt.Fprintf(&b, "Answer was delivered to the user in language code: %s\n", task.Language)
		fmt.Fprintf(&b, "Delivered answer: %s\n", task.FinalAnswer)
	}
	b.WriteString("\nScore each dimension from 0.0 to 1.0 and respond with only this JSON object:\n")
	b.WriteString(`{"legal_accuracy": 0.0, "completeness": 0.0, "clarity": 0.0, "actionability": 0.0, "translation_quality": 0.0, "reasons": [], "recommendations": []}`)
	return b.String()
}

// mergeEvaluations combines heuristic and model results. A non-zero model
// dimension wins over the heuristic one; the overall score is the weighted
// sum of merged dimensions. Heuristic reasons come first because they encode
// hard structural defects.
func mergeEvaluations(basic domain.Evaluation, model modelScores) domain.Evaluation {
	merged := domain.Evaluation{
		Accuracy:           pick(model.LegalAccuracy, basic.Accuracy),
		Completeness:       pick(model.Completeness, basic.Completeness),
		Clarity:            pick(model.Clarity, basic.Clarity),
		Actionability:      pick(model.Actionability, basic.Actionability),
		TranslationQuality: pick(model.TranslationQuality, basic.TranslationQuality),
		Reasons:            append(append([]string{}, basic.Reasons...), model.Reasons...),
		Recommendations:    append(append([]string{}, basic.Recommendations...), model.Recommendations...),
	}
	merged.Overall = clamp01(weightAccuracy*merged.Accuracy +
		weightCompleteness*merged.Completeness +
		weightClarity*merged.Clarity +
		weightActionability*merged.Actionability +
		weightTranslation*merged.TranslationQuality)
	return merged
}

func pick(model, fallback float64) float64 {
	if model > 0 {
		return clamp01(model)
	}
	return fallback
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// extractJSONObject returns the outermost {...} span of s, tolerating model
// chatter and markdown fences around the object.
func extractJSONObject(s string) (string, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

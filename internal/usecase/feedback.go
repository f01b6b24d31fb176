package usecase

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fairyhunter13/immigration-assistant/internal/domain"
	"github.com/fairyhunter13/immigration-assistant/internal/observability"
	"github.com/fairyhunter13/immigration-assistant/pkg/textx"
)

// FeedbackService maintains the append-only answer quality log.
type FeedbackService struct {
	Repo domain.FeedbackRepository
}

// NewFeedbackService constructs a FeedbackService.
func NewFeedbackService(repo domain.FeedbackRepository) *FeedbackService {
	return &FeedbackService{Repo: repo}
}

// RecordAutomatic appends the entry produced by an answer evaluation. The
// worker process is the only caller, which keeps automatic writes serialized.
func (s *FeedbackService) RecordAutomatic(ctx domain.Context, task domain.EvaluationTask, ev domain.Evaluation) (string, error) {
	id, err := s.Repo.Append(ctx, domain.FeedbackEntry{
		Question:  task.Question,
		Answer:    task.FinalAnswer,
		Sources:   task.Sources,
		AIScore:   ev.Overall,
		AIReason:  strings.Join(ev.Reasons, "; "),
		Language:  task.Language,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return "", fmt.Errorf("op=feedback.record_automatic: %w", err)
	}
	return id, nil
}

// RecordUserRating attaches a 1-5 star rating to the most recent entry
// matching the (question, answer) pair exactly. A rating with no matching
// entry is dropped silently: the caller gets success, the miss is logged and
// counted so operators can see drift between clients and the log.
func (s *FeedbackService) RecordUserRating(ctx domain.Context, question, answer string, rating int) error {
	if rating < 1 || rating > 5 {
		return fmt.Errorf("%w: rating %d out of range 1-5", domain.ErrInvalidArgument, rating)
	}
	matched, err := s.Repo.AttachRating(ctx, question, answer, rating)
	if err != nil {
		return fmt.Errorf("op=feedback.record_rating: %w", err)
	}
	if !matched {
		slog.Warn("rating dropped, no matching feedback entry",
			slog.String("question", textx.Snippet(question, 80)),
			slog.Int("rating", rating))
		observability.FeedbackRatingMissesTotal.Inc()
	}
	return nil
}

package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/immigration-assistant/internal/domain"
)

func TestRecordAutomatic(t *testing.T) {
	repo := &fakeRepo{}
	svc := NewFeedbackService(repo)

	task := domain.EvaluationTask{
		Question:    "Do I need a sponsor?",
		FinalAnswer: "Oui (Source: uk_visa_faq.txt)",
		Sources:     []string{"uk_visa_faq.txt"},
		Language:    "fr",
	}
	ev := domain.Evaluation{Overall: 0.85, Reasons: []string{"well grounded", "clear"}}

	id, err := svc.RecordAutomatic(context.Background(), task, ev)
	require.NoError(t, err)
	assert.Equal(t, "id-1", id)

	require.Len(t, repo.entries, 1)
	e := repo.entries[0]
	assert.Equal(t, task.Question, e.Question)
	assert.Equal(t, task.FinalAnswer, e.Answer)
	assert.InDelta(t, 0.85, e.AIScore, 1e-9)
	assert.Equal(t, "well grounded; clear", e.AIReason)
	assert.Equal(t, "fr", e.Language)
	assert.Nil(t, e.UserRating)
	assert.False(t, e.CreatedAt.IsZero())
}

func TestRecordUserRatingValidation(t *testing.T) {
	svc := NewFeedbackService(&fakeRepo{})

	for _, rating := range []int{0, -1, 6} {
		err := svc.RecordUserRating(context.Background(), "q", "a", rating)
		assert.ErrorIs(t, err, domain.ErrInvalidArgument, "rating %d", rating)
	}
	assert.NoError(t, svc.RecordUserRating(context.Background(), "q", "a", 5))
}

func TestRecordUserRatingMissIsSilent(t *testing.T) {
	svc := NewFeedbackService(&fakeRepo{})
	err := svc.RecordUserRating(context.Background(), "unseen question", "unseen answer", 3)
	assert.NoError(t, err, "a rating with no matching entry is dropped, not rejected")
}

func TestRecordUserRatingRepoError(t *testing.T) {
	svc := NewFeedbackService(&fakeRepo{matchErr: assert.AnError})
	err := svc.RecordUserRating(context.Background(), "q", "a", 4)
	assert.Error(t, err)
}

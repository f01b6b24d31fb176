package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/immigration-assistant/internal/domain"
)

func TestClassifyKnownIntent(t *testing.T) {
	ai := &fakeAI{}
	ai.on("predefined intents", "visa_eligibility")
	c := NewIntentClassifier(ai, nil)

	intent := c.Classify(context.Background(), "Can I get a Skilled Worker visa?")
	assert.Equal(t, domain.IntentVisaEligibility, intent)

	calls := ai.chatCalls()
	require.Len(t, calls, 1)
	assert.Zero(t, calls[0].Temperature)
	assert.Equal(t, 10, calls[0].MaxTokens)
}

func TestClassifyNormalizesModelOutput(t *testing.T) {
	ai := &fakeAI{}
	ai.on("predefined intents", "  Document_Requirements \n")
	c := NewIntentClassifier(ai, nil)
	assert.Equal(t, domain.IntentDocumentRequirements, c.Classify(context.Background(), "what documents?"))
}

func TestClassifyUnknownLabelFallsBack(t *testing.T) {
	ai := &fakeAI{}
	ai.on("predefined intents", "travel_advice")
	c := NewIntentClassifier(ai, nil)
	assert.Equal(t, domain.IntentGeneralInfo, c.Classify(context.Background(), "anything"))
}

func TestClassifyProviderFailureFallsBack(t *testing.T) {
	ai := &fakeAI{chatErr: errors.New("provider down")}
	c := NewIntentClassifier(ai, nil)
	assert.Equal(t, domain.IntentGeneralInfo, c.Classify(context.Background(), "anything"))
}

func TestClassifyUsesCache(t *testing.T) {
	ai := &fakeAI{}
	ai.on("predefined intents", "general_info")
	cache := newMemCache()
	c := NewIntentClassifier(ai, cache)

	c.Classify(context.Background(), "same question")
	c.Classify(context.Background(), "same question")
	assert.Len(t, ai.chatCalls(), 1)
}

package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/fairyhunter13/immigration-assistant/internal/domain"
)

// fakeAI scripts Chat responses by matching a substring of the system
// prompt, so one fake can serve classifier, translator, generator and
// evaluator in a single flow.
type fakeAI struct {
	mu      sync.Mutex
	rules   []aiRule
	calls   []domain.ChatRequest
	chatErr error
}

type aiRule struct {
	systemContains string
	response       string
}

func (f *fakeAI) on(systemContains, response string) {
	f.rules = append(f.rules, aiRule{systemContains: systemContains, response: response})
}

func (f *fakeAI) Chat(_ domain.Context, req domain.ChatRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if f.chatErr != nil {
		return "", f.chatErr
	}
	for _, r := range f.rules {
		if strings.Contains(req.System, r.systemContains) {
			return r.response, nil
		}
	}
	return "", errors.New("no scripted response")
}

func (f *fakeAI) Embed(_ domain.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func (f *fakeAI) chatCalls() []domain.ChatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.ChatRequest{}, f.calls...)
}

// fakeIndex returns canned hits or an error.
type fakeIndex struct {
	hits    []domain.ScoredChunk
	indexed []domain.Chunk
	err     error
}

func (f *fakeIndex) Index(_ domain.Context, chunks []domain.Chunk) error {
	f.indexed = append(f.indexed, chunks...)
	return f.err
}

func (f *fakeIndex) Search(_ domain.Context, _ string, topK int) ([]domain.ScoredChunk, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.hits) > topK {
		return f.hits[:topK], nil
	}
	return f.hits, nil
}

// fakeQueue records enqueued tasks.
type fakeQueue struct {
	tasks []domain.EvaluationTask
	err   error
}

func (f *fakeQueue) EnqueueEvaluation(_ domain.Context, task domain.EvaluationTask) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.tasks = append(f.tasks, task)
	return "test/0/0", nil
}

// memCache is an in-memory TextCache.
type memCache struct {
	mu sync.Mutex
	m  map[string]string
}

func newMemCache() *memCache { return &memCache{m: make(map[string]string)} }

func (c *memCache) Get(_ context.Context, kind, key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.m[kind+"|"+key]
	return v, ok
}

func (c *memCache) Set(_ context.Context, kind, key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[kind+"|"+key] = value
}

// fakeRepo implements domain.FeedbackRepository in memory.
type fakeRepo struct {
	entries  []domain.FeedbackEntry
	appErr   error
	matchErr error
}

func (f *fakeRepo) Append(_ domain.Context, e domain.FeedbackEntry) (string, error) {
	if f.appErr != nil {
		return "", f.appErr
	}
	f.entries = append(f.entries, e)
	return "id-1", nil
}

func (f *fakeRepo) AttachRating(_ domain.Context, question, answer string, rating int) (bool, error) {
	if f.matchErr != nil {
		return false, f.matchErr
	}
	for i := len(f.entries) - 1; i >= 0; i-- {
		if f.entries[i].Question == question && f.entries[i].Answer == answer {
			f.entries[i].UserRating = &rating
			return true, nil
		}
	}
	return false, nil
}

// fixedCounter counts tokens as one per rune; keeps budget math obvious.
type fixedCounter struct{}

func (fixedCounter) Count(s string) int { return len([]rune(s)) }

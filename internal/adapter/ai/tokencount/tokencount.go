// Package tokencount provides token counting for prompt budgeting.
//
// It uses tiktoken-go, a Go port of OpenAI's official tiktoken library, so
// retrieved context can be trimmed to a model-accurate token budget before a
// prompt is sent.
package tokencount

import (
	"log/slog"
	"sync"

	tiktoken "github.com/pkoukk/tiktoken-go"
)

// Counter provides thread-safe token counting for LLM models.
type Counter struct {
	model string
	mu    sync.Mutex
	enc   *tiktoken.Tiktoken
}

// NewCounter creates a counter for the given model name.
func NewCounter(model string) *Counter {
	return &Counter{model: model}
}

func (c *Counter) encoding() *tiktoken.Tiktoken {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.enc != nil {
		return c.enc
	}
	enc, err := tiktoken.EncodingForModel(c.model)
	if err != nil {
		// cl100k_base covers gpt-3.5-turbo, gpt-4 and most modern models.
		slog.Debug("falling back to cl100k_base encoding",
			slog.String("model", c.model),
			slog.Any("error", err))
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil
		}
	}
	c.enc = enc
	return c.enc
}

// Count returns the number of tokens in s for the counter's model. A failed
// encoder load degrades to a rough len/4 estimate rather than an error.
func (c *Counter) Count(s string) int {
	enc := c.encoding()
	if enc == nil {
		return len(s) / 4
	}
	return len(enc.Encode(s, nil, nil))
}

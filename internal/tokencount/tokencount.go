// Package tokencount estimates token counts for chat messages so the
// context window can be trimmed against a model's budget.
package tokencount

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"parley/internal/provider"
	"parley/pkg/logger"
)

// fallbackEncoding is used when the configured model has no known
// encoding. cl100k_base covers the GPT-4 family and is a reasonable
// approximation for other chat models.
const fallbackEncoding = "cl100k_base"

// charsPerToken is the degraded estimate used when no encoder could be
// loaded at all. Roughly four characters per token for English text.
const charsPerToken = 4

// perMessageOverhead approximates the per-message framing tokens the
// chat format adds around role and content.
const perMessageOverhead = 4

// Counter estimates token counts for a specific model. Counting never
// fails: if the encoder cannot be loaded the counter degrades to a
// character-based estimate.
type Counter struct {
	model string

	once    sync.Once
	encoder *tiktoken.Tiktoken
}

// NewCounter creates a counter for model. The encoder is loaded lazily
// on first use.
func NewCounter(model string) *Counter {
	return &Counter{model: model}
}

// Count estimates the tokens one message occupies in the prompt,
// including role and framing overhead.
func (c *Counter) Count(msg provider.Message) int {
	return c.countText(msg.Role) + c.countText(msg.Content) + perMessageOverhead
}

// CountAll estimates the total tokens for a slice of messages.
func (c *Counter) CountAll(msgs []provider.Message) int {
	total := 0
	for _, msg := range msgs {
		total += c.Count(msg)
	}
	return total
}

// CountText estimates tokens for a bare string, without message framing.
func (c *Counter) CountText(text string) int {
	return c.countText(text)
}

func (c *Counter) countText(text string) int {
	if text == "" {
		return 0
	}

	c.once.Do(c.loadEncoder)

	if c.encoder == nil {
		// Degraded estimate; round up.
		return (len(text) + charsPerToken - 1) / charsPerToken
	}
	return len(c.encoder.Encode(text, nil, nil))
}

func (c *Counter) loadEncoder() {
	enc, err := tiktoken.EncodingForModel(c.model)
	if err == nil {
		c.encoder = enc
		return
	}

	logger.Debug().Str("model", c.model).Err(err).Msg("no encoding for model, using fallback")
	enc, err = tiktoken.GetEncoding(fallbackEncoding)
	if err != nil {
		logger.Warn().Err(err).Msg("token encoder unavailable, using character estimate")
		return
	}
	c.encoder = enc
}

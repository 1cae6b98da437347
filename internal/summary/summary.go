// Package summary condenses conversation history into a short rolling
// digest by prompting the completion backend.
package summary

import (
	"context"
	"fmt"
	"strings"

	"parley/internal/provider"
)

// DefaultMaxTokens bounds the length of a generated summary.
const DefaultMaxTokens = 256

// condenseInstruction is the fixed system prompt for every
// summarization call. The model is asked to keep the conversation's
// own language so summaries of non-English sessions stay readable.
const condenseInstruction = "Condense the following conversation content to the essential facts. " +
	"Use the same language as the conversation. Be as short as possible."

// Summarizer produces and merges conversation summaries. It shares the
// completion backend with the main chat path but issues non-streaming
// calls with a low temperature.
type Summarizer struct {
	provider  provider.Provider
	model     string
	maxTokens int
}

// New creates a summarizer. A non-positive maxTokens falls back to
// DefaultMaxTokens.
func New(p provider.Provider, model string, maxTokens int) *Summarizer {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &Summarizer{provider: p, model: model, maxTokens: maxTokens}
}

// SummarizeOverflow condenses messages that fell out of the context
// window into a short digest. The result is turn-scoped: the caller
// combines it with the persisted summary for this turn only and must
// not write it back directly.
func (s *Summarizer) SummarizeOverflow(ctx context.Context, overflow []provider.Message) (string, error) {
	if len(overflow) == 0 {
		return "", nil
	}

	var b strings.Builder
	for _, msg := range overflow {
		fmt.Fprintf(&b, "%s: %s\n", msg.Role, msg.Content)
	}
	return s.condense(ctx, b.String())
}

// Merge re-condenses the persisted summary together with everything the
// completed turn added: the turn's overflow digest, the literal user
// input, and the literal assistant output. The result replaces the old
// summary entirely.
func (s *Summarizer) Merge(ctx context.Context, oldSummary, overflowDigest, userInput, assistantOutput string) (string, error) {
	parts := make([]string, 0, 4)
	if oldSummary != "" {
		parts = append(parts, "Previous summary:\n"+oldSummary)
	}
	if overflowDigest != "" {
		parts = append(parts, "Older messages:\n"+overflowDigest)
	}
	parts = append(parts,
		"user: "+userInput,
		"assistant: "+assistantOutput,
	)
	return s.condense(ctx, strings.Join(parts, "\n\n"))
}

func (s *Summarizer) condense(ctx context.Context, text string) (string, error) {
	resp, err := s.provider.Chat(ctx, provider.ChatRequest{
		Model: s.model,
		Messages: []provider.Message{
			{Role: provider.RoleSystem, Content: condenseInstruction},
			{Role: provider.RoleUser, Content: text},
		},
		Temperature: 0.2,
		MaxTokens:   s.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("condense: %w", err)
	}
	return strings.TrimSpace(resp.Content), nil
}

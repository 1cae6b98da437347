package openaicompat

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"

	"parley/internal/provider"
	"parley/pkg/logger"
)

// ProcessStream parses an SSE chat completion stream into ChatEvents.
// It owns body and closes it when the stream ends. The channel is
// buffered so trailing error/done sends complete even after the
// consumer stops reading; the producer goroutine must never outlive an
// abandoned stream.
func ProcessStream(body io.ReadCloser) <-chan provider.ChatEvent {
	events := make(chan provider.ChatEvent, 32)

	go func() {
		defer close(events)
		defer body.Close()

		scanner := bufio.NewScanner(body)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)

		var finishReason string
		var usage *provider.Usage

		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, ":") {
				continue
			}

			data, ok := strings.CutPrefix(line, "data: ")
			if !ok {
				continue
			}
			if data == "[DONE]" {
				break
			}

			var chunk streamChunk
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				logger.Warn().Err(err).Str("data", data).Msg("skip malformed stream chunk")
				continue
			}

			if chunk.Error != nil {
				events <- provider.ChatEvent{
					Type: provider.EventTypeError,
					Error: provider.NewError(provider.ErrCodeUnknown,
						chunk.Error.Message, "openai", false),
				}
				return
			}

			if chunk.Usage != nil {
				usage = &provider.Usage{
					PromptTokens:     chunk.Usage.PromptTokens,
					CompletionTokens: chunk.Usage.CompletionTokens,
					TotalTokens:      chunk.Usage.TotalTokens,
				}
			}

			for _, choice := range chunk.Choices {
				if choice.Delta.Content != "" {
					events <- provider.ChatEvent{
						Type:  provider.EventTypeContent,
						Delta: choice.Delta.Content,
					}
				}
				if choice.FinishReason != nil && *choice.FinishReason != "" {
					finishReason = *choice.FinishReason
				}
			}
		}

		if err := scanner.Err(); err != nil {
			events <- provider.ChatEvent{
				Type: provider.EventTypeError,
				Error: provider.NewError(provider.ErrCodeNetworkError,
					"stream read: "+err.Error(), "openai", true),
			}
			return
		}

		events <- provider.ChatEvent{
			Type:         provider.EventTypeDone,
			Usage:        usage,
			FinishReason: finishReason,
		}
	}()

	return events
}

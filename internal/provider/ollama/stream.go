package ollama

import (
	"bufio"
	"encoding/json"
	"io"

	"parley/internal/provider"
	"parley/pkg/logger"
)

// ProcessStream parses Ollama's newline-delimited JSON stream into
// ChatEvents. It owns r and closes it when the stream ends. The
// channel is buffered so trailing error/done sends complete even after
// the consumer stops reading.
func ProcessStream(r io.ReadCloser) <-chan provider.ChatEvent {
	events := make(chan provider.ChatEvent, 32)

	go func() {
		defer close(events)
		defer r.Close()

		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}

			var resp ollamaResponse
			if err := json.Unmarshal(line, &resp); err != nil {
				logger.Warn().Err(err).Str("line", string(line)).Msg("skip malformed stream line")
				continue
			}

			if resp.Error != "" {
				events <- provider.ChatEvent{
					Type:  provider.EventTypeError,
					Error: provider.NewError(provider.ErrCodeUnknown, resp.Error, "ollama", false),
				}
				return
			}

			if resp.Message.Content != "" {
				events <- provider.ChatEvent{
					Type:  provider.EventTypeContent,
					Delta: resp.Message.Content,
				}
			}

			if resp.Done {
				var usage *provider.Usage
				if resp.PromptEvalCount > 0 || resp.EvalCount > 0 {
					usage = &provider.Usage{
						PromptTokens:     resp.PromptEvalCount,
						CompletionTokens: resp.EvalCount,
						TotalTokens:      resp.PromptEvalCount + resp.EvalCount,
					}
				}
				finishReason := resp.DoneReason
				if finishReason == "" {
					finishReason = provider.FinishReasonStop
				}
				events <- provider.ChatEvent{
					Type:         provider.EventTypeDone,
					Usage:        usage,
					FinishReason: finishReason,
				}
				return
			}
		}

		if err := scanner.Err(); err != nil {
			events <- provider.ChatEvent{
				Type:  provider.EventTypeError,
				Error: provider.NewError(provider.ErrCodeNetworkError, "stream read: "+err.Error(), "ollama", true),
			}
		}
	}()

	return events
}

// Package provider defines the completion service interface and types.
package provider

import "context"

// Provider is the contract for completion backends. A single Provider
// instance is shared process-wide and must be safe for concurrent use;
// the same instance serves both turn completion and summarization.
type Provider interface {
	// Name returns the provider name.
	Name() string

	// Chat sends a chat request and returns the complete response.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// Stream sends a chat request and returns a channel of streaming
	// events. The channel is closed when the stream ends for any reason.
	Stream(ctx context.Context, req ChatRequest) (<-chan ChatEvent, error)
}

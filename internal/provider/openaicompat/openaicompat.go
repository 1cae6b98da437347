// Package openaicompat implements the Provider interface against any
// OpenAI-compatible chat completions endpoint (OpenAI itself, vLLM,
// LM Studio, llama.cpp server, and others).
package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"parley/internal/provider"
	"parley/pkg/logger"
)

// Compile-time interface check.
var _ provider.Provider = (*Client)(nil)

// DefaultEndpoint is used when no endpoint is configured.
const DefaultEndpoint = "https://api.openai.com"

// DefaultTimeout bounds non-streaming requests.
const DefaultTimeout = 30 * time.Second

// Config configures the client.
type Config struct {
	Endpoint  string
	APIKey    string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// Client talks to an OpenAI-compatible chat completions API.
type Client struct {
	endpoint  string
	apiKey    string
	model     string
	maxTokens int

	httpClient   *http.Client // non-streaming requests, overall timeout
	streamClient *http.Client // streaming requests, no body read timeout
}

// New creates a client from config, applying defaults.
func New(cfg Config) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	// Strip trailing /v1 to avoid /v1/v1/chat/completions.
	endpoint := strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	endpoint = strings.TrimSuffix(endpoint, "/v1")

	return &Client{
		endpoint:  endpoint,
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		// http.Client.Timeout includes body read time, which kills
		// long-running SSE streams; bound the transport instead.
		streamClient: &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   30 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   15 * time.Second,
				ResponseHeaderTimeout: cfg.Timeout,
				IdleConnTimeout:       90 * time.Second,
			},
		},
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return "openai"
}

// Chat sends a chat completion request and returns the response.
func (c *Client) Chat(ctx context.Context, req provider.ChatRequest) (*provider.ChatResponse, error) {
	wireReq := c.buildRequest(req, false)

	resp, err := c.doRequest(ctx, c.httpClient, wireReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, c.errorFromStatus(resp.StatusCode, body)
	}

	var wireResp chatResponse
	if err := json.Unmarshal(body, &wireResp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if wireResp.Error != nil {
		return nil, provider.NewError(provider.ErrCodeUnknown,
			fmt.Sprintf("[%s] %s", wireResp.Error.Type, wireResp.Error.Message), c.Name(), false)
	}
	if len(wireResp.Choices) == 0 {
		return nil, provider.NewError(provider.ErrCodeServiceUnavailable,
			"empty choices in response", c.Name(), true)
	}

	out := &provider.ChatResponse{
		Content:      wireResp.Choices[0].Message.Content,
		FinishReason: wireResp.Choices[0].FinishReason,
	}
	if wireResp.Usage != nil {
		out.Usage = &provider.Usage{
			PromptTokens:     wireResp.Usage.PromptTokens,
			CompletionTokens: wireResp.Usage.CompletionTokens,
			TotalTokens:      wireResp.Usage.TotalTokens,
		}
	}
	return out, nil
}

// Stream sends a streaming chat completion request.
func (c *Client) Stream(ctx context.Context, req provider.ChatRequest) (<-chan provider.ChatEvent, error) {
	wireReq := c.buildRequest(req, true)

	resp, err := c.doRequest(ctx, c.streamClient, wireReq)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, c.errorFromStatus(resp.StatusCode, body)
	}

	return ProcessStream(resp.Body), nil
}

func (c *Client) buildRequest(req provider.ChatRequest, stream bool) *chatRequest {
	model := req.Model
	if model == "" {
		model = c.model
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}

	wireReq := &chatRequest{
		Model:     model,
		Messages:  make([]chatMessage, 0, len(req.Messages)),
		MaxTokens: maxTokens,
		Stream:    stream,
	}
	if req.Temperature > 0 {
		temp := req.Temperature
		wireReq.Temperature = &temp
	}
	for _, msg := range req.Messages {
		wireReq.Messages = append(wireReq.Messages, chatMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}
	return wireReq
}

func (c *Client) doRequest(ctx context.Context, client *http.Client, body any) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := c.endpoint + "/v1/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, provider.NewError(provider.ErrCodeTimeout, "request timed out", c.Name(), true)
		}
		return nil, provider.NewError(provider.ErrCodeNetworkError, err.Error(), c.Name(), true)
	}
	return resp, nil
}

func (c *Client) errorFromStatus(status int, body []byte) error {
	code := provider.CodeForStatus(status)

	message := strings.TrimSpace(string(body))
	var errResp chatResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != nil {
		message = errResp.Error.Message
	}

	logger.Error().Int("status", status).Str("body", message).Msg("completion backend error")
	retryable := code == provider.ErrCodeServiceUnavailable || code == provider.ErrCodeRateLimited
	return provider.NewError(code, message, c.Name(), retryable)
}

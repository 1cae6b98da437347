package ollama

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

var _ provider.Provider = (*Client)(nil)

// Client talks to an Ollama server's /api/chat endpoint.
type Client struct {
	endpoint  string
	model     string
	maxTokens int
	keepAlive string

	httpClient   *http.Client
	streamClient *http.Client
}

// New creates a client from config, applying defaults.
func New(cfg Config) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.KeepAlive == "" {
		cfg.KeepAlive = DefaultKeepAlive
	}

	return &Client{
		endpoint:  strings.TrimRight(cfg.Endpoint, "/"),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		keepAlive: cfg.KeepAlive,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		// Streams can outlive any sane whole-request timeout while a
		// model is generating, so only the transport is bounded.
		streamClient: &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   30 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				ResponseHeaderTimeout: cfg.Timeout,
				IdleConnTimeout:       90 * time.Second,
			},
		},
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return "ollama"
}

// Chat sends a chat request and returns the full response.
func (c *Client) Chat(ctx context.Context, req provider.ChatRequest) (*provider.ChatResponse, error) {
	resp, err := c.doRequest(ctx, c.httpClient, c.buildRequest(req, false))
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

	var wireResp ollamaResponse
	if err := json.Unmarshal(body, &wireResp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if wireResp.Error != "" {
		return nil, provider.NewError(provider.ErrCodeUnknown, wireResp.Error, c.Name(), false)
	}

	return c.convertResponse(&wireResp), nil
}

// Stream sends a streaming chat request. Ollama streams NDJSON lines.
func (c *Client) Stream(ctx context.Context, req provider.ChatRequest) (<-chan provider.ChatEvent, error) {
	resp, err := c.doRequest(ctx, c.streamClient, c.buildRequest(req, true))
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

func (c *Client) buildRequest(req provider.ChatRequest, stream bool) *ollamaRequest {
	model := req.Model
	if model == "" {
		model = c.model
	}

	wireReq := &ollamaRequest{
		Model:     model,
		Messages:  make([]ollamaMessage, 0, len(req.Messages)),
		Stream:    stream,
		KeepAlive: c.keepAlive,
	}
	for _, msg := range req.Messages {
		wireReq.Messages = append(wireReq.Messages, ollamaMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}
	if req.Temperature > 0 || maxTokens > 0 {
		wireReq.Options = &ollamaOptions{
			Temperature: req.Temperature,
			NumPredict:  maxTokens,
		}
	}
	return wireReq
}

func (c *Client) doRequest(ctx context.Context, client *http.Client, body any) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/api/chat", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

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
	message := strings.TrimSpace(string(body))
	var errResp ollamaResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		message = errResp.Error
	}

	code := provider.CodeForStatus(status)
	// Ollama reports an unknown model as a 404 with "model not found".
	if status == http.StatusNotFound && strings.Contains(message, "model") {
		code = provider.ErrCodeModelNotFound
	}

	logger.Error().Int("status", status).Str("body", message).Msg("ollama backend error")
	retryable := code == provider.ErrCodeServiceUnavailable || code == provider.ErrCodeRateLimited
	return provider.NewError(code, message, c.Name(), retryable)
}

func (c *Client) convertResponse(resp *ollamaResponse) *provider.ChatResponse {
	out := &provider.ChatResponse{
		Content:      resp.Message.Content,
		FinishReason: resp.DoneReason,
	}
	if out.FinishReason == "" {
		out.FinishReason = provider.FinishReasonStop
	}
	if resp.PromptEvalCount > 0 || resp.EvalCount > 0 {
		out.Usage = &provider.Usage{
			PromptTokens:     resp.PromptEvalCount,
			CompletionTokens: resp.EvalCount,
			TotalTokens:      resp.PromptEvalCount + resp.EvalCount,
		}
	}
	return out
}

package summary

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parley/internal/provider"
)

// mockProvider records the last request and returns a canned response.
type mockProvider struct {
	lastReq provider.ChatRequest
	content string
	err     error
}

func (m *mockProvider) Name() string { return "mock" }

func (m *mockProvider) Chat(ctx context.Context, req provider.ChatRequest) (*provider.ChatResponse, error) {
	m.lastReq = req
	if m.err != nil {
		return nil, m.err
	}
	return &provider.ChatResponse{Content: m.content, FinishReason: provider.FinishReasonStop}, nil
}

func (m *mockProvider) Stream(ctx context.Context, req provider.ChatRequest) (<-chan provider.ChatEvent, error) {
	return nil, errors.New("not implemented")
}

func TestSummarizeOverflow(t *testing.T) {
	mock := &mockProvider{content: "  alice asked about go modules  "}
	s := New(mock, "test-model", 0)

	got, err := s.SummarizeOverflow(context.Background(), []provider.Message{
		{Role: provider.RoleUser, Content: "how do go modules work?"},
		{Role: provider.RoleAssistant, Content: "a module is a collection of packages..."},
	})
	require.NoError(t, err)
	assert.Equal(t, "alice asked about go modules", got)

	require.Len(t, mock.lastReq.Messages, 2)
	assert.Equal(t, provider.RoleSystem, mock.lastReq.Messages[0].Role)
	assert.Contains(t, mock.lastReq.Messages[0].Content, "Condense")
	assert.Contains(t, mock.lastReq.Messages[1].Content, "how do go modules work?")
	assert.Equal(t, DefaultMaxTokens, mock.lastReq.MaxTokens)
}

func TestSummarizeOverflowEmpty(t *testing.T) {
	mock := &mockProvider{content: "should not be called"}
	s := New(mock, "test-model", 0)

	got, err := s.SummarizeOverflow(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Empty(t, mock.lastReq.Messages)
}

func TestSummarizeOverflowError(t *testing.T) {
	mock := &mockProvider{err: errors.New("backend down")}
	s := New(mock, "test-model", 0)

	_, err := s.SummarizeOverflow(context.Background(), []provider.Message{
		{Role: provider.RoleUser, Content: "hello"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend down")
}

func TestMergeIncludesAllParts(t *testing.T) {
	mock := &mockProvider{content: "merged summary"}
	s := New(mock, "test-model", 128)

	got, err := s.Merge(context.Background(),
		"old summary text",
		"digest of older messages",
		"what about generics?",
		"generics were added in go 1.18",
	)
	require.NoError(t, err)
	assert.Equal(t, "merged summary", got)

	prompt := mock.lastReq.Messages[1].Content
	assert.Contains(t, prompt, "old summary text")
	assert.Contains(t, prompt, "digest of older messages")
	assert.Contains(t, prompt, "what about generics?")
	assert.Contains(t, prompt, "generics were added in go 1.18")
	assert.Equal(t, 128, mock.lastReq.MaxTokens)
}

func TestMergeOmitsEmptyParts(t *testing.T) {
	mock := &mockProvider{content: "merged"}
	s := New(mock, "test-model", 0)

	_, err := s.Merge(context.Background(), "", "", "hi", "hello")
	require.NoError(t, err)

	prompt := mock.lastReq.Messages[1].Content
	assert.NotContains(t, prompt, "Previous summary")
	assert.NotContains(t, prompt, "Older messages")
}

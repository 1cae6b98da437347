package turn

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parley/internal/provider"
	"parley/internal/storage"
)

func TestCompleteTurn(t *testing.T) {
	store := newFakeStore()
	store.seed("s1")
	cond := &fakeCondenser{mergeText: "new rolling summary"}
	p := NewPersister(store, cond, time.Second)

	turn := &Turn{
		SessionID:        "s1",
		Input:            "what changed?",
		PersistedSummary: "old summary",
		OverflowDigest:   "digest",
	}
	p.CompleteTurn(turn, "these things changed")

	msgs, _ := store.GetMessages("s1")
	require.Len(t, msgs, 1)
	assert.Equal(t, provider.RoleAssistant, msgs[0].Role)
	assert.Equal(t, "these things changed", msgs[0].Content)

	assert.Equal(t, []string{"old summary", "digest", "what changed?", "these things changed"}, cond.mergeArgs)

	got, _ := store.GetSummary("s1")
	assert.Equal(t, "new rolling summary", got)
}

func TestCompleteTurnMergeFailureKeepsSummary(t *testing.T) {
	store := newFakeStore()
	store.seed("s1")
	store.sessions["s1"].Summary = "previous summary"
	cond := &fakeCondenser{mergeErr: errors.New("model down")}
	p := NewPersister(store, cond, time.Second)

	p.CompleteTurn(&Turn{SessionID: "s1", Input: "q"}, "a")

	got, _ := store.GetSummary("s1")
	assert.Equal(t, "previous summary", got)

	// The assistant message still landed.
	msgs, _ := store.GetMessages("s1")
	assert.Len(t, msgs, 1)
}

func TestCompleteTurnAppendFailureStillMerges(t *testing.T) {
	store := newFakeStore()
	store.seed("s1")
	store.appendErr = errors.New("disk full")
	cond := &fakeCondenser{mergeText: "merged anyway"}
	p := NewPersister(store, cond, time.Second)

	p.CompleteTurn(&Turn{SessionID: "s1", Input: "q"}, "a")

	got, _ := store.GetSummary("s1")
	assert.Equal(t, "merged anyway", got)
}

func TestCompleteTurnNotifies(t *testing.T) {
	store := newFakeStore()
	store.seed("s1")
	p := NewPersister(store, &fakeCondenser{mergeText: "s"}, time.Second)

	var notified string
	p.OnPersisted = func(sessionID string) { notified = sessionID }

	p.CompleteTurn(&Turn{SessionID: "s1", Input: "q"}, "a")
	assert.Equal(t, "s1", notified)
}

func TestCompleteTurnSetSummaryFailure(t *testing.T) {
	store := newFakeStore()
	store.seed("s1")
	store.summaryErr = storage.ErrNotFound
	p := NewPersister(store, &fakeCondenser{mergeText: "s"}, time.Second)

	// Must not panic; failure is logged and swallowed.
	p.CompleteTurn(&Turn{SessionID: "s1", Input: "q"}, "a")
}

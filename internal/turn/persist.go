package turn

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"parley/internal/provider"
	"parley/pkg/logger"
)

// DefaultMergeTimeout bounds the summary merge call after a turn.
const DefaultMergeTimeout = 30 * time.Second

// Persister records a completed turn: it appends the assistant message
// and folds the turn into the session summary. All writes are
// best-effort and isolated from each other; a failure is logged and
// never surfaced to the client, whose response has already streamed.
type Persister struct {
	store        Store
	condenser    Condenser
	mergeTimeout time.Duration
	log          zerolog.Logger

	// OnPersisted, when set, is called after the turn is recorded, with
	// the session id. Used to push session updates to connected clients.
	OnPersisted func(sessionID string)
}

// NewPersister creates a persister.
func NewPersister(store Store, condenser Condenser, mergeTimeout time.Duration) *Persister {
	if mergeTimeout <= 0 {
		mergeTimeout = DefaultMergeTimeout
	}
	return &Persister{
		store:        store,
		condenser:    condenser,
		mergeTimeout: mergeTimeout,
		log:          logger.Component("turn"),
	}
}

// CompleteTurn records a successfully streamed turn. The user message
// was already persisted at assembly time; this appends the assistant
// output and replaces the session summary with a re-condensed one.
//
// Call only after the stream completed in full: a mid-stream failure
// means the assistant message is not persisted and the summary stands.
// Runs on its own detached context so a cancelled request context does
// not abort persistence.
func (p *Persister) CompleteTurn(t *Turn, assistantOutput string) {
	if _, err := p.store.AppendMessage(t.SessionID, provider.RoleAssistant, assistantOutput); err != nil {
		p.log.Error().Err(err).Str("session_id", t.SessionID).Msg("failed to persist assistant message")
	}

	p.mergeSummary(t, assistantOutput)

	if p.OnPersisted != nil {
		p.OnPersisted(t.SessionID)
	}
}

func (p *Persister) mergeSummary(t *Turn, assistantOutput string) {
	ctx, cancel := context.WithTimeout(context.Background(), p.mergeTimeout)
	defer cancel()

	merged, err := p.condenser.Merge(ctx, t.PersistedSummary, t.OverflowDigest, t.Input, assistantOutput)
	if err != nil {
		p.log.Warn().Err(err).Str("session_id", t.SessionID).Msg("summary merge failed, keeping previous summary")
		return
	}
	if err := p.store.SetSummary(t.SessionID, merged); err != nil {
		p.log.Error().Err(err).Str("session_id", t.SessionID).Msg("failed to persist merged summary")
	}
}

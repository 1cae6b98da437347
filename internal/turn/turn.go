// Package turn orchestrates a single conversation turn: resolving the
// session, loading history and summary, trimming to the token budget,
// condensing overflow, and assembling the prompt for the completion
// backend. Persistence of the completed turn lives in Persister.
package turn

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"parley/internal/provider"
	"parley/internal/storage"
	"parley/internal/window"
	"parley/pkg/logger"
)

// ErrEmptyInput is returned when a turn arrives without user input.
var ErrEmptyInput = errors.New("empty user input")

// DefaultTurnTimeout bounds a whole turn including the model call.
const DefaultTurnTimeout = 30 * time.Second

// DefaultTitleMaxChars is the display length the session title derived
// from the first user message is truncated to.
const DefaultTitleMaxChars = 50

// Store is the storage surface a turn needs. *storage.DB implements it.
type Store interface {
	CreateSession(userID, title string) (*storage.Session, error)
	GetSession(id string) (*storage.Session, error)
	GetSummary(id string) (string, error)
	SetSummary(id, summary string) error
	GetMessages(sessionID string) ([]*storage.Message, error)
	AppendMessage(sessionID, role, content string) (*storage.Message, error)
}

// Condenser produces and merges conversation summaries.
// *summary.Summarizer implements it.
type Condenser interface {
	SummarizeOverflow(ctx context.Context, overflow []provider.Message) (string, error)
	Merge(ctx context.Context, oldSummary, overflowDigest, userInput, assistantOutput string) (string, error)
}

// Turn is the assembled context for one exchange. Messages is the exact
// payload for the completion backend; the remaining fields carry what
// Persister needs after the stream completes.
type Turn struct {
	SessionID      string
	SessionCreated bool
	Input          string

	// Messages is system preamble (with merged summary), window, then
	// the current user input.
	Messages []provider.Message

	// PersistedSummary is the summary as read at assembly time.
	// OverflowDigest is this turn's unpersisted condensation of
	// messages that fell out of the window; empty when nothing
	// overflowed or condensation failed.
	PersistedSummary string
	OverflowDigest   string
}

// Assembler builds Turns.
type Assembler struct {
	store         Store
	trimmer       *window.Trimmer
	condenser     Condenser
	systemPrompt  string
	titleMaxChars int
	log           zerolog.Logger
}

// AssemblerOptions configures an Assembler.
type AssemblerOptions struct {
	SystemPrompt  string
	TitleMaxChars int
}

// NewAssembler creates an assembler.
func NewAssembler(store Store, trimmer *window.Trimmer, condenser Condenser, opts AssemblerOptions) *Assembler {
	if opts.TitleMaxChars <= 0 {
		opts.TitleMaxChars = DefaultTitleMaxChars
	}
	return &Assembler{
		store:         store,
		trimmer:       trimmer,
		condenser:     condenser,
		systemPrompt:  opts.SystemPrompt,
		titleMaxChars: opts.TitleMaxChars,
		log:           logger.Component("turn"),
	}
}

// Assemble resolves the session (creating one when sessionID is empty),
// loads history and summary, trims to the budget, condenses overflow,
// and returns the assembled turn. The user message is persisted before
// returning so it survives even if the model call later fails.
//
// A condensation failure never fails the turn: the overflow is dropped
// from context for this turn and the old summary stands.
func (a *Assembler) Assemble(ctx context.Context, userID, sessionID, input string) (*Turn, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, ErrEmptyInput
	}

	t := &Turn{Input: input}

	if sessionID == "" {
		sess, err := a.store.CreateSession(userID, deriveTitle(input, a.titleMaxChars))
		if err != nil {
			return nil, err
		}
		t.SessionID = sess.ID
		t.SessionCreated = true
	} else {
		if _, err := a.store.GetSession(sessionID); err != nil {
			return nil, err
		}
		t.SessionID = sessionID
	}

	history, persisted, err := a.load(t.SessionID)
	if err != nil {
		return nil, err
	}
	t.PersistedSummary = persisted

	currentInput := provider.Message{Role: provider.RoleUser, Content: input}
	history = window.ExcludeCurrentInput(history, currentInput)
	res := a.trimmer.Trim(history)

	if len(res.Overflow) > 0 {
		digest, err := a.condenser.SummarizeOverflow(ctx, res.Overflow)
		if err != nil {
			a.log.Warn().Err(err).Str("session_id", t.SessionID).
				Int("overflow", len(res.Overflow)).
				Msg("overflow condensation failed, dropping overflow for this turn")
		} else {
			t.OverflowDigest = digest
		}
	}

	t.Messages = a.assemblePrompt(persisted, t.OverflowDigest, res.Window, currentInput)

	if _, err := a.store.AppendMessage(t.SessionID, provider.RoleUser, input); err != nil {
		a.log.Error().Err(err).Str("session_id", t.SessionID).Msg("failed to persist user message")
	}

	return t, nil
}

// load reads history and summary concurrently; neither depends on the
// other.
func (a *Assembler) load(sessionID string) ([]provider.Message, string, error) {
	var (
		wg      sync.WaitGroup
		msgs    []*storage.Message
		summary string
		msgErr  error
		sumErr  error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		msgs, msgErr = a.store.GetMessages(sessionID)
	}()
	go func() {
		defer wg.Done()
		summary, sumErr = a.store.GetSummary(sessionID)
	}()
	wg.Wait()

	if msgErr != nil {
		return nil, "", msgErr
	}
	if sumErr != nil {
		return nil, "", sumErr
	}

	history := make([]provider.Message, 0, len(msgs))
	for _, m := range msgs {
		history = append(history, provider.Message{
			Role:    CanonicalRole(m.Role),
			Content: m.Content,
		})
	}
	return history, summary, nil
}

// assemblePrompt joins the system preamble and the merged summary into
// one system message, then appends the window and the current input.
// Empty parts are omitted.
func (a *Assembler) assemblePrompt(persisted, digest string, win []provider.Message, input provider.Message) []provider.Message {
	parts := make([]string, 0, 3)
	if a.systemPrompt != "" {
		parts = append(parts, a.systemPrompt)
	}
	if persisted != "" {
		parts = append(parts, persisted)
	}
	if digest != "" {
		parts = append(parts, digest)
	}

	msgs := make([]provider.Message, 0, len(win)+2)
	if len(parts) > 0 {
		msgs = append(msgs, provider.Message{
			Role:    provider.RoleSystem,
			Content: strings.Join(parts, "\n"),
		})
	}
	msgs = append(msgs, win...)
	return append(msgs, input)
}

// CanonicalRole maps legacy stored roles onto the wire roles the
// completion APIs expect. New writes always use the canonical names;
// older databases may still carry "human" and "ai".
func CanonicalRole(role string) string {
	switch role {
	case "human":
		return provider.RoleUser
	case "ai":
		return provider.RoleAssistant
	default:
		return role
	}
}

// deriveTitle truncates the first user message to a display title.
func deriveTitle(input string, maxChars int) string {
	runes := []rune(input)
	if len(runes) <= maxChars {
		return input
	}
	return string(runes[:maxChars]) + "…"
}

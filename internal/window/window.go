// Package window selects which prior messages fit into the model's
// context budget for a turn.
package window

import (
	"parley/internal/provider"
	"parley/internal/tokencount"
)

// DefaultBudgetTokens is the window budget when none is configured.
const DefaultBudgetTokens = 1500

// Result partitions a history into the messages sent verbatim to the
// model and the older messages that exceeded the budget.
type Result struct {
	// Window is a contiguous chronological suffix of the input history
	// whose cumulative token cost stays within the budget.
	Window []provider.Message
	// Overflow holds the leading messages excluded from the window, in
	// their original chronological order.
	Overflow []provider.Message
}

// Trimmer implements the "last" strategy: keep the most recent messages
// that fit, drop the rest to overflow.
type Trimmer struct {
	counter *tokencount.Counter
	budget  int
}

// NewTrimmer creates a trimmer. A non-positive budget falls back to
// DefaultBudgetTokens.
func NewTrimmer(counter *tokencount.Counter, budget int) *Trimmer {
	if budget <= 0 {
		budget = DefaultBudgetTokens
	}
	return &Trimmer{counter: counter, budget: budget}
}

// Budget returns the configured token budget.
func (t *Trimmer) Budget() int {
	return t.budget
}

// Trim walks history from the most recent message backward, accumulating
// token cost, and stops before the first message that would exceed the
// budget. The window may be empty if even the newest message alone is
// over budget; messages are never truncated mid-content.
func (t *Trimmer) Trim(history []provider.Message) Result {
	if len(history) == 0 {
		return Result{}
	}

	cut := len(history)
	total := 0
	for i := len(history) - 1; i >= 0; i-- {
		cost := t.counter.Count(history[i])
		if total+cost > t.budget {
			break
		}
		total += cost
		cut = i
	}

	return Result{
		Window:   history[cut:],
		Overflow: history[:cut],
	}
}

// ExcludeCurrentInput removes any message matching the current user
// input by role and content. The current turn's input is supplied to
// the model separately, so a stale copy loaded from history would be
// presented twice.
func ExcludeCurrentInput(history []provider.Message, input provider.Message) []provider.Message {
	out := make([]provider.Message, 0, len(history))
	for _, msg := range history {
		if msg.Role == input.Role && msg.Content == input.Content {
			continue
		}
		out = append(out, msg)
	}
	return out
}

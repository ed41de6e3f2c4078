package assistant

import (
	"slices"

	"github.com/firebase/genkit/go/ai"
)

// TokenBudget limits how much conversation history is sent to the model.
type TokenBudget struct {
	// MaxHistoryTokens is the budget for prior messages (default: 4000).
	MaxHistoryTokens int
}

// DefaultTokenBudget returns a budget suitable for small context windows.
func DefaultTokenBudget() TokenBudget {
	return TokenBudget{MaxHistoryTokens: 4000}
}

// estimateTokens approximates the token count of a message. Roughly two
// characters per token holds for both English and Spanish text, which is
// close enough for a truncation budget.
func estimateTokens(msg *ai.Message) int {
	if msg == nil {
		return 0
	}
	total := 0
	for _, part := range msg.Content {
		if part == nil {
			continue
		}
		total += len([]rune(part.Text)) / 2
	}
	if total == 0 {
		total = 1
	}
	return total
}

// truncateHistory drops the oldest messages until the remainder fits the
// budget. A leading system message is always kept. Newer messages win
// because they carry the active thread of the conversation.
func (b TokenBudget) truncateHistory(history []*ai.Message) []*ai.Message {
	if len(history) == 0 || b.MaxHistoryTokens <= 0 {
		return history
	}

	var system *ai.Message
	rest := history
	if history[0] != nil && history[0].Role == ai.RoleSystem {
		system = history[0]
		rest = history[1:]
	}

	budget := b.MaxHistoryTokens
	if system != nil {
		budget -= estimateTokens(system)
	}

	kept := make([]*ai.Message, 0, len(rest))
	for i := len(rest) - 1; i >= 0; i-- {
		cost := estimateTokens(rest[i])
		if cost > budget {
			break
		}
		budget -= cost
		kept = append(kept, rest[i])
	}
	slices.Reverse(kept)

	if system != nil {
		return append([]*ai.Message{system}, kept...)
	}
	return kept
}

package orchestrator

import (
	"github.com/pkoukk/tiktoken-go"

	"github.com/loomkg/loom/pkg/model"
)

// defaultTurnBudget bounds the token count of the turn history sent to the
// model. Older turns are dropped first; the newest turn is always kept.
const defaultTurnBudget = 60000

func countTokens(enc *tiktoken.Tiktoken, turn model.Turn) int {
	// small constant for role framing
	return 4 + len(enc.Encode(turn.Content, nil, nil))
}

// trimTurns drops the oldest turns until the history fits the token
// budget. On encoder failure the history is returned untrimmed; the model
// call will surface any real overflow.
func trimTurns(turns []model.Turn, budget int) []model.Turn {
	if budget <= 0 || len(turns) == 0 {
		return turns
	}
	enc, err := tiktoken.GetEncoding("o200k_base")
	if err != nil {
		return turns
	}

	total := 0
	counts := make([]int, len(turns))
	for i, turn := range turns {
		counts[i] = countTokens(enc, turn)
		total += counts[i]
	}

	start := 0
	for total > budget && start < len(turns)-1 {
		total -= counts[start]
		start++
	}
	return turns[start:]
}

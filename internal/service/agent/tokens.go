package agent

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
	"github.com/sandevgo/spyglass/internal/core"
)

var (
	tkMu   sync.Mutex
	tk     *tiktoken.Tiktoken
	loadTk = func() (*tiktoken.Tiktoken, error) {
		return tiktoken.GetEncoding("cl100k_base")
	}
)

// getTokenizer loads the encoding lazily. The first load fetches the BPE
// table over the network, so a failure returns nil and is retried on the
// next call instead of wedging every future turn.
func getTokenizer() *tiktoken.Tiktoken {
	tkMu.Lock()
	defer tkMu.Unlock()
	if tk != nil {
		return tk
	}
	enc, err := loadTk()
	if err != nil {
		return nil
	}
	tk = enc
	return tk
}

func countTokens(text string) int {
	if text == "" {
		return 0
	}
	if enc := getTokenizer(); enc != nil {
		return len(enc.Encode(text, nil, nil))
	}
	// Tokenizer unavailable, approximate so trimming still bounds the
	// history.
	return len(text) / 4
}

func messageTokens(msg core.Message) int {
	// Rough per-message overhead for role and framing.
	total := 4
	total += countTokens(msg.FlatText())
	for _, tc := range msg.ToolCalls {
		total += countTokens(tc.Function.Name)
		total += countTokens(tc.Function.Arguments)
	}
	return total
}

// trimToBudget drops the oldest messages until the remainder fits the token
// budget. The newest message is always kept. A trimmed history never starts
// with a tool result, the matching call would be missing.
func trimToBudget(history []core.Message, budget int) []core.Message {
	if budget <= 0 || len(history) == 0 {
		return history
	}

	total := 0
	start := len(history)
	for i := len(history) - 1; i >= 0; i-- {
		cost := messageTokens(history[i])
		if total+cost > budget && start < len(history) {
			break
		}
		total += cost
		start = i
	}

	for start < len(history)-1 && history[start].Role == core.RoleTool {
		start++
	}
	return history[start:]
}

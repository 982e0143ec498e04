package rag

import (
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/fabled/internal/vectorstore"
)

// assembleContext builds the context block inserted into the prompt
// from ranked search results. Fables are added in rank order until the
// byte budget is exhausted, so the lowest-ranked context is truncated
// first. The top fable is always included, clipped to the budget if it
// alone exceeds it. Returns the block and the IDs of fables included,
// in rank order.
func assembleContext(results []vectorstore.SearchResult, budget int) (string, []int) {
	var b strings.Builder
	var sources []int

	for i, r := range results {
		block := fmt.Sprintf("Fable %d: %s\nContent: %s\nMoral: %s",
			i+1, r.Fable.Title, r.Fable.Content, r.Fable.Moral)

		needed := len(block)
		if b.Len() > 0 {
			needed += 2 // separator
		}

		if b.Len()+needed > budget {
			if i == 0 {
				b.WriteString(clip(block, budget))
				sources = append(sources, r.Fable.ID)
			}
			break
		}

		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(block)
		sources = append(sources, r.Fable.ID)
	}

	return b.String(), sources
}

// clip truncates s to at most n bytes without splitting a UTF-8 rune.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8Start(s[n]) {
		n--
	}
	return s[:n]
}

func utf8Start(b byte) bool {
	return b&0xC0 != 0x80
}

// buildPrompt combines the assembled context with the user's question.
func buildPrompt(contextBlock, query string) string {
	return fmt.Sprintf(`Based on the following fables, answer the user's question.

%s

User's question: %s

Please provide a helpful answer based on the fables above. Reference specific fables when relevant.`, contextBlock, query)
}

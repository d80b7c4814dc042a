package llm

import (
	"fmt"
	"strings"
)

// RollupPrompt builds the prompt that condenses a cluster of similar
// memories into a single higher-level abstraction.
func RollupPrompt(contents []string) string {
	var sources strings.Builder
	for i, c := range contents {
		fmt.Fprintf(&sources, "%d. %s\n", i+1, c)
	}

	return fmt.Sprintf(`These %d memories from an AI assistant's long-term store describe the same underlying knowledge:

%s
Write ONE generalized statement that captures what they have in common.

Rules:
- Keep every concrete detail that all sources agree on
- Drop details unique to a single source
- State it as a reusable pattern or principle, not an anecdote
- One to three sentences, no preamble, no markdown

Return only the statement.`, len(contents), sources.String())
}

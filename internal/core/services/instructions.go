package services

import (
	"fmt"
	"strings"

	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/domain"
)

const (
	agentName        = "Product Recommendation Assistant"
	agentDescription = "Recommends catalog products that match a free-text need"
	minMatch         = 82
)

const instructionsHeader = `You are an expert assistant behind a search and comparison site for AI tools.
Queries arrive through an API. You only have access to the exported tool catalog attached to you.
Never recommend a tool that is not in the catalog.

RULES:
1. Choose tools exclusively from the attached catalog. Never invent products.
2. For every recommended tool give a matchPercentage reflecting relevance to the query (%d-99).
3. Each recommendation is personalized (2-3 sentences) and based on the query and the tool's features.
4. Always answer in English, whatever the language of the query.
5. Sort results by matchPercentage, highest first.
6. There is no fixed number of recommendations.
7. If no tool reaches %d%%, return an empty recommendations array.

OUTPUT FORMAT:
Answer with JSON only: no headings, no markdown, no code fences, no prose.
The answer must start with '{' and end with '}'.

{
  "recommendations": [
    {
      "id": "<catalog id>",
      "matchPercentage": 97,
      "recommendation": "Why this tool fits the query."
    }
  ]
}

If nothing fits:

{"recommendations": []}

The id of every tool must be exactly one of the catalog ids listed below.
`

// BuildInstructions renders the agent instructions for a snapshot, embedding the valid id list.
func BuildInstructions(snapshot *domain.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, instructionsHeader, minMatch, minMatch)
	b.WriteString("\nVALID CATALOG IDS:\n")
	for _, id := range snapshot.ProductIDs {
		if name := snapshot.ProductNames[id]; name != "" {
			fmt.Fprintf(&b, "- %s (%s)\n", id, name)
		} else {
			fmt.Fprintf(&b, "- %s\n", id)
		}
	}
	return b.String()
}

package labeling

import (
	"fmt"
	"strings"

	"github.com/doctadg/perpstrader-sub004/internal/news"
)

const maxSnippetChars = 160

const labelInstructions = `You label financial news articles for a market heatmap.

For every article below produce one label object:
- "id": the article id, copied exactly
- "topic": a short, specific event phrase (3-8 words) naming the concrete story, e.g. "Bitcoin spot ETF approval" rather than "crypto news"
- "trend": "UP" if attention on this story is building, "DOWN" if it is fading, otherwise "NEUTRAL"
- "urgency": "LOW", "MEDIUM", "HIGH" or "CRITICAL" judged by likely market impact
- "keywords": 3 to 6 lowercase search terms a trader would use for this story

Articles covering the same underlying event must share the exact same topic string, even when their headlines differ.

Articles (id | category | title | snippet):
`

const labelEpilogue = `
Respond with only a JSON object of the form {"labels":[{"id":"...","topic":"...","trend":"...","urgency":"...","keywords":["..."]}]} containing one entry per article. No prose, no markdown fences.`

// buildPrompt renders the batched labeling request, one line per article so
// the response stays id-addressable.
func buildPrompt(articles []news.SourceArticle) string {
	var b strings.Builder
	b.WriteString(labelInstructions)
	for _, a := range articles {
		snippet := a.Snippet
		if snippet == "" {
			snippet = a.Summary
		}
		if len(snippet) > maxSnippetChars {
			snippet = snippet[:maxSnippetChars]
		}
		snippet = strings.ReplaceAll(snippet, "\n", " ")
		fmt.Fprintf(&b, "%s | %s | %s | %s\n", a.ID, a.PrimaryCategory(), strings.ReplaceAll(a.Title, "\n", " "), snippet)
	}
	b.WriteString(labelEpilogue)
	return b.String()
}

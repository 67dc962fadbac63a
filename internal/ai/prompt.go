package ai

import (
	"fmt"
	"strings"
)

const systemPrompt = `You are reviewing web pages collected by a crawler. Your task is to rate how well a page matches what the user is looking for.

You will receive:
1. A page digest with the URL, the title and the visible text of the page (possibly truncated)
2. The user's criteria

Output a single JSON object with:
- "rating": an integer from 1 (unrelated) to 5 (exactly what the user is looking for)
- "reason": one short sentence explaining the rating

Guidelines:
- Judge only from the digest, do not guess what is behind links
- Navigation menus, cookie banners and footers are noise
- A page that only lists other pages (search results, an index) rates at most 2 unless the criteria ask for listings

Example output:
{"rating": 4, "reason": "Backend engineering position in Berlin, but the salary range is missing."}

Respond ONLY with the JSON object, no explanation or markdown.`

func buildUserPrompt(page Page, criteria string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "URL: %s\n", page.URL)
	fmt.Fprintf(&b, "Title: %s\n\n", page.Title)
	b.WriteString("Visible text:\n")
	b.WriteString(page.Text)
	if page.Truncated {
		b.WriteString("\n[truncated]")
	}
	b.WriteString("\n\nCriteria: ")
	b.WriteString(criteria)
	return b.String()
}

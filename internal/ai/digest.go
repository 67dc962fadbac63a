package ai

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// DefaultMaxChars bounds the visible text sent to a provider
const DefaultMaxChars = 4000

// Page is the part of a page a provider gets to see
type Page struct {
	URL       string
	Title     string
	Text      string
	Truncated bool
}

// Digest extracts the title and the visible text of an HTML document.
// Whitespace is collapsed and the text is cut after maxChars characters.
func Digest(src string, maxChars int) (Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(src))
	if err != nil {
		return Page{}, fmt.Errorf("parse page: %w", err)
	}
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}

	page := Page{Title: strings.TrimSpace(doc.Find("title").First().Text())}

	body := doc.Find("body")
	body.Find("script, style, noscript, template, [hidden]").Remove()
	text := strings.Join(strings.Fields(body.Text()), " ")

	r := []rune(text)
	if len(r) > maxChars {
		text = string(r[:maxChars])
		page.Truncated = true
	}
	page.Text = text
	return page, nil
}

package crawler

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// CandidateFunc lists the texts a strategy proposes for a field, in document order
type CandidateFunc func(doc *goquery.Document) []string

// Matcher is one strategy in a field's fallback chain
type Matcher struct {
	Name       string
	Candidates CandidateFunc

	// MinLength is the rune count a candidate must exceed; 0 accepts any non-empty text
	MinLength int
}

// accept reports whether text passes the matcher's length gate
func (m Matcher) accept(text string) bool {
	return utf8.RuneCountInString(text) > m.MinLength
}

// FieldExtractor resolves one JobRecord field from a detail page
type FieldExtractor struct {
	Field    string
	Sentinel string
	Matchers []Matcher
}

// Extract applies the matchers in priority order and returns the first accepted
// candidate, or the sentinel when every matcher comes up empty.
func (f FieldExtractor) Extract(doc *goquery.Document) string {
	for _, m := range f.Matchers {
		if m.Candidates == nil {
			continue
		}
		for _, candidate := range m.Candidates(doc) {
			if m.accept(candidate) {
				return candidate
			}
		}
	}
	return f.Sentinel
}

// nodeText returns the text under sel with each text node trimmed, blank nodes
// dropped and the rest joined by sep. Script and style content is skipped.
func nodeText(sel *goquery.Selection, sep string) string {
	var parts []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			if t := strings.TrimSpace(n.Data); t != "" {
				parts = append(parts, t)
			}
			return
		case html.ElementNode:
			switch n.Data {
			case "script", "style", "noscript", "template":
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	return strings.Join(parts, sep)
}

// pageText is the lowercased visible text of the whole document
func pageText(doc *goquery.Document) string {
	return strings.ToLower(nodeText(doc.Selection, " "))
}

// containsAny reports whether text contains one of the phrases
func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if p != "" && strings.Contains(text, p) {
			return true
		}
	}
	return false
}

package crawler

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// labelContainers are the elements scanned for "Label: value" text
const labelContainers = "li, div, span, p"

// StructuralMatch proposes the text of every element matching selector
func StructuralMatch(name, selector string, minLen int) Matcher {
	return Matcher{
		Name:      name,
		MinLength: minLen,
		Candidates: func(doc *goquery.Document) []string {
			var out []string
			doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
				out = append(out, nodeText(s, " "))
			})
			return out
		},
	}
}

// PreferredMatch proposes the first element of the first selector whose match has
// content. An element without child nodes counts as absent.
func PreferredMatch(name string, minLen int, selectors ...string) Matcher {
	return Matcher{
		Name:      name,
		MinLength: minLen,
		Candidates: func(doc *goquery.Document) []string {
			for _, selector := range selectors {
				if sel := doc.Find(selector).First(); sel.Contents().Length() > 0 {
					return []string{nodeText(sel, " ")}
				}
			}
			return nil
		},
	}
}

// LabelMatch proposes the values of every "label: value" element in document order
func LabelMatch(label string) Matcher {
	return Matcher{
		Name: "label:" + label,
		Candidates: func(doc *goquery.Document) []string {
			return labelValues(doc, label)
		},
	}
}

// labelValues returns the text after the first ":" of every element whose text
// starts with "label:", ignoring case
func labelValues(doc *goquery.Document, label string) []string {
	prefix := strings.ToLower(label) + ":"
	var out []string
	doc.Find(labelContainers).Each(func(_ int, s *goquery.Selection) {
		text := nodeText(s, " ")
		if !strings.HasPrefix(strings.ToLower(text), prefix) {
			return
		}
		_, value, _ := strings.Cut(text, ":")
		out = append(out, strings.TrimSpace(value))
	})
	return out
}

// HeadingSiblingMatch finds the first heading whose text mentions keyword and
// proposes the joined text of all element siblings that follow it.
func HeadingSiblingMatch(headings, keyword string) Matcher {
	return Matcher{
		Name: "heading-siblings:" + keyword,
		Candidates: func(doc *goquery.Document) []string {
			heading := findHeading(doc, headings, keyword)
			if heading == nil {
				return nil
			}
			var parts []string
			heading.NextAll().Each(func(_ int, s *goquery.Selection) {
				if t := nodeText(s, " "); t != "" {
					parts = append(parts, t)
				}
			})
			return []string{strings.Join(parts, " ")}
		},
	}
}

// ClimbMatch finds tag elements mentioning keyword and proposes the text of the
// container reached by climbing through at most depth div parents.
func ClimbMatch(tag, keyword string, depth, minLen int) Matcher {
	return Matcher{
		Name:      "climb:" + keyword,
		MinLength: minLen,
		Candidates: func(doc *goquery.Document) []string {
			var out []string
			doc.Find(tag).Each(func(_ int, s *goquery.Selection) {
				if !strings.Contains(strings.ToLower(nodeText(s, "")), keyword) {
					return
				}
				container := s
				for i := 0; i < depth; i++ {
					parent := container.Parent()
					if parent.Length() == 0 || goquery.NodeName(parent) != "div" {
						break
					}
					container = parent
				}
				out = append(out, nodeText(container, " "))
			})
			return out
		},
	}
}

// SkillsMatch collects the siblings after the first heading mentioning keyword,
// up to the next heading-like element, skipping any sibling that contains one of
// the excluded words. The kept texts are joined with ", ".
func SkillsMatch(headings, keyword string, excludes []string) Matcher {
	return Matcher{
		Name: "skills:" + keyword,
		Candidates: func(doc *goquery.Document) []string {
			heading := findHeading(doc, headings, keyword)
			if heading == nil {
				return nil
			}
			var skills []string
			heading.NextAll().EachWithBreak(func(_ int, s *goquery.Selection) bool {
				if strings.HasPrefix(goquery.NodeName(s), "h") {
					return false
				}
				text := nodeText(s, " ")
				if text != "" && !containsAny(strings.ToLower(text), excludes) {
					skills = append(skills, text)
				}
				return true
			})
			return []string{strings.Join(skills, ", ")}
		},
	}
}

// IndexMatch proposes the text of the index-th element matching selector.
// Positions are fixed by the page layout, so a missing index is a miss.
func IndexMatch(name, selector string, index int, sep string) Matcher {
	return Matcher{
		Name: name,
		Candidates: func(doc *goquery.Document) []string {
			sel := doc.Find(selector)
			if index < 0 || index >= sel.Length() {
				return nil
			}
			return []string{nodeText(sel.Eq(index), sep)}
		},
	}
}

// findHeading returns the first element of headings whose text contains keyword
func findHeading(doc *goquery.Document, headings, keyword string) *goquery.Selection {
	var found *goquery.Selection
	doc.Find(headings).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if strings.Contains(strings.ToLower(nodeText(s, "")), keyword) {
			found = s
			return false
		}
		return true
	})
	return found
}

// maxNumericText returns the largest integer written as the whole text of an
// element matching selector, or 0 when none is numeric.
func maxNumericText(doc *goquery.Document, selector string) int {
	highest := 0
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if !isDigits(text) {
			return
		}
		if n, err := strconv.Atoi(text); err == nil && n > highest {
			highest = n
		}
	})
	return highest
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

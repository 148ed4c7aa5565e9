package conflict

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var numberedHeading = regexp.MustCompile(`^(?:(?:section|article)\s+)?\d+(?:\.\d+)*[.)]?\s+\S`)

// splitSections breaks extracted text into sections. Form feeds separate
// pages; within a page a heading line starts a new section.
func splitSections(text string) []Section {
	var out []Section

	pages := strings.Split(text, "\f")
	for i, page := range pages {
		cur := Section{Page: i + 1}
		var body strings.Builder

		flush := func() {
			cur.Text = strings.TrimSpace(body.String())
			if cur.Text != "" || cur.Heading != "" {
				out = append(out, cur)
			}
			body.Reset()
		}

		for _, line := range strings.Split(page, "\n") {
			trimmed := strings.TrimSpace(line)
			if isHeading(trimmed) {
				flush()
				cur = Section{Page: i + 1, Heading: trimmed}
				continue
			}
			if trimmed == "" {
				if body.Len() > 0 {
					body.WriteString("\n")
				}
				continue
			}
			body.WriteString(trimmed)
			body.WriteString("\n")
		}
		flush()
	}
	return out
}

func isHeading(line string) bool {
	if line == "" || len(line) > 80 || strings.HasSuffix(line, ".") || strings.HasSuffix(line, ",") {
		return false
	}
	if numberedHeading.MatchString(strings.ToLower(line)) {
		return true
	}

	letters, upper := 0, 0
	for _, r := range line {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		}
	}
	return letters >= 3 && upper == letters
}

// selectSections keeps the sections relevant to the focus areas, in
// document order, until budget characters are used. With no focus areas,
// or when nothing matches, the document is kept from the start.
func selectSections(sections []Section, focusAreas []string, budget int) ([]Section, bool) {
	terms := focusTerms(focusAreas)

	var picked []Section
	if len(terms) > 0 {
		for _, s := range sections {
			if matchesAny(s, terms) {
				picked = append(picked, s)
			}
		}
	}
	if len(picked) == 0 {
		picked = sections
	}

	var out []Section
	used := 0
	for _, s := range picked {
		n := len(s.Heading) + len(s.Text)
		if used+n <= budget {
			out = append(out, s)
			used += n
			continue
		}
		if room := budget - used - len(s.Heading); room > 200 {
			s.Text = cut(s.Text, room)
			out = append(out, s)
		}
		return out, true
	}
	return out, false
}

// focusTerms lowercases each focus area and also keeps its significant words
// so "Short-Term Disability" matches "short term disability benefits".
func focusTerms(focusAreas []string) [][]string {
	var terms [][]string
	for _, area := range focusAreas {
		area = strings.ToLower(strings.TrimSpace(area))
		if area == "" {
			continue
		}
		words := strings.FieldsFunc(area, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		var significant []string
		for _, w := range words {
			if len(w) >= 3 && w != "and" && w != "the" && w != "for" {
				significant = append(significant, w)
			}
		}
		if len(significant) > 0 {
			terms = append(terms, significant)
		}
	}
	return terms
}

func matchesAny(s Section, terms [][]string) bool {
	hay := strings.ToLower(s.Heading + " " + s.Text)
	for _, words := range terms {
		all := true
		for _, w := range words {
			if !strings.Contains(hay, w) {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}

// cut shortens s to at most n bytes without splitting a rune.
func cut(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

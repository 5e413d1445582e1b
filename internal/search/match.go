package search

import "strings"

// Matches reports whether content matches the query. Matching is OR across
// query tokens: a token matches by case-insensitive substring, or by edit
// distance 1 against a content word when the token is long enough that a
// single typo is plausible.
func Matches(content, query string) bool {
	tokens := strings.Fields(strings.ToLower(query))
	if len(tokens) == 0 {
		return false
	}
	lowered := strings.ToLower(content)
	var words []string
	for _, tok := range tokens {
		if strings.Contains(lowered, tok) {
			return true
		}
		if len(tok) < 5 {
			continue
		}
		if words == nil {
			words = strings.Fields(lowered)
		}
		for _, w := range words {
			if editDistanceAtMostOne(tok, w) {
				return true
			}
		}
	}
	return false
}

// editDistanceAtMostOne reports whether a and b are within one insertion,
// deletion, or substitution of each other.
func editDistanceAtMostOne(a, b string) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	if len(b)-len(a) > 1 {
		return false
	}
	i, j, edits := 0, 0, 0
	for i < len(a) && j < len(b) {
		if a[i] == b[j] {
			i++
			j++
			continue
		}
		edits++
		if edits > 1 {
			return false
		}
		if len(a) == len(b) {
			i++
		}
		j++
	}
	if j < len(b) || i < len(a) {
		edits++
	}
	return edits <= 1
}

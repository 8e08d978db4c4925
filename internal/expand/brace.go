package expand

import "strings"

// expandBraces performs shell brace expansion: "a{b,c}d" -> "abd" "acd".
// Only the first top-level {...} is handled per call; nested/successive
// groups are picked up by recursing into each alternative's surrounding
// text, preserving left-to-right ordering across multiple groups (the
// "~{a,b}" ordering question SPEC_FULL.md resolves: tilde expands after
// brace, so "~{a,b}" yields the same two strings brace expansion alone
// would, each independently tilde-expanded afterward).
func expandBraces(s string) []string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return []string{s}
	}
	end := matchBrace(s, start)
	if end < 0 {
		return []string{s}
	}
	before := s[:start]
	inner := s[start+1 : end]
	after := s[end+1:]

	alts := splitTopLevelCommas(inner)
	if len(alts) < 2 {
		// A lone {x} with no comma isn't an alternation; fish (like
		// bash) leaves it as a literal brace.
		return prefixEach([]string{before + "{" + inner + "}"}, after)
	}

	afterExpanded := expandBraces(after)
	var out []string
	for _, alt := range alts {
		for _, altExpanded := range expandBraces(before + alt) {
			for _, a := range afterExpanded {
				out = append(out, altExpanded+a)
			}
		}
	}
	return out
}

func prefixEach(prefixes []string, suffix string) []string {
	suffixes := expandBraces(suffix)
	out := make([]string, 0, len(prefixes)*len(suffixes))
	for _, p := range prefixes {
		for _, s := range suffixes {
			out = append(out, p+s)
		}
	}
	return out
}

func matchBrace(s string, open int) int {
	depth := 1
	for i := open + 1; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func splitTopLevelCommas(s string) []string {
	var out []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	out = append(out, s[start:])
	return out
}

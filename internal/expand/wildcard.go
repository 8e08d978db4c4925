package expand

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/diillson/wrensh/internal/shellerr"
)

// containsGlobChar reports whether raw's original (pre-expansion) text
// has an unescaped glob metacharacter, used as a cheap filter so plain
// words skip the filesystem walk entirely.
func containsGlobChar(raw string) bool {
	for i := 0; i < len(raw); i++ {
		switch raw[i] {
		case '\\':
			i++
		case '*', '?', '[':
			return true
		}
	}
	return false
}

// expandWildcard walks the directory tree matching pattern component by
// component (so "*" never crosses a "/", matching fish, while "**"
// explicitly does), returning every matching path sorted
// lexicographically. A pattern with no metacharacters at all, real or
// quoted-and-protected, returns a nil slice and no error so the caller
// keeps it as a literal word. A pattern that does have an unescaped,
// unquoted metacharacter but matches nothing in the filesystem returns a
// nil slice plus a CodeWildcardNoMatch error instead, so the two "stays
// literal" cases are never confused with an actual failed glob. A
// protected (quoted or backslash-escaped) metacharacter is still walked
// as a literal character against real filenames, but never reports
// CodeWildcardNoMatch on failure to match: quoting something that
// happens to contain "*" was never a wildcard attempt in the first
// place.
func (x *Expander) expandWildcard(pattern string) ([]string, shellerr.List) {
	hasRealGlob := strings.ContainsAny(pattern, "*?[")
	if !hasRealGlob && !containsProtectedGlob(pattern) {
		return nil, nil
	}

	base := x.Cwd
	rel := pattern
	if filepath.IsAbs(pattern) {
		base = "/"
		rel = strings.TrimPrefix(pattern, "/")
	}

	segs := strings.Split(rel, "/")
	matches := []string{""}
	for i, seg := range segs {
		isLast := i == len(segs)-1
		var next []string
		for _, m := range matches {
			dir := filepath.Join(base, m)
			if seg == "**" {
				next = append(next, walkRecursive(dir, m)...)
				continue
			}
			entries, err := os.ReadDir(dir)
			if err != nil {
				continue
			}
			for _, ent := range entries {
				if x.Flags&DirectoriesOnly != 0 && !isLast && !ent.IsDir() {
					continue
				}
				if !globMatch(seg, ent.Name()) {
					continue
				}
				if strings.HasPrefix(ent.Name(), ".") && !strings.HasPrefix(seg, ".") {
					continue
				}
				cand := ent.Name()
				if m != "" {
					cand = m + "/" + ent.Name()
				}
				if isLast {
					if x.Flags&DirectoriesOnly != 0 && !ent.IsDir() {
						continue
					}
					if x.Flags&ExecutablesOnly != 0 && !ent.IsDir() && !isExecutable(filepath.Join(dir, ent.Name())) {
						continue
					}
				}
				next = append(next, cand)
			}
		}
		matches = next
		if len(matches) == 0 {
			if !hasRealGlob {
				return nil, nil
			}
			msg := fmt.Sprintf("%s: no matches for wildcard", pattern)
			return nil, shellerr.List{shellerr.New(shellerr.KindExpansion, shellerr.CodeWildcardNoMatch, msg, 0, len(pattern))}
		}
	}

	sort.Strings(matches)
	if filepath.IsAbs(pattern) {
		for i := range matches {
			matches[i] = "/" + matches[i]
		}
	}
	return matches, nil
}

// containsProtectedGlob reports whether pattern holds a sentinel rune
// standing in for a quoted or backslash-escaped glob metacharacter.
func containsProtectedGlob(pattern string) bool {
	for _, r := range pattern {
		if _, ok := sentinelToLiteral[r]; ok {
			return true
		}
	}
	return false
}

func walkRecursive(dir, relPrefix string) []string {
	var out []string
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	for _, ent := range entries {
		if strings.HasPrefix(ent.Name(), ".") {
			continue
		}
		rel := ent.Name()
		if relPrefix != "" {
			rel = relPrefix + "/" + ent.Name()
		}
		out = append(out, rel)
		if ent.IsDir() {
			out = append(out, walkRecursive(filepath.Join(dir, ent.Name()), rel)...)
		}
	}
	return out
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode()&0o111 != 0
}

// globMatch implements fish-style single-component glob matching: '*'
// matches any run of characters, '?' matches exactly one, '[...]'
// matches a character class. Sentinel runes (an escaped '*'/'?'/'['/']')
// are compared as the literal character they stand for rather than as
// metacharacters.
func globMatch(pattern, name string) bool {
	return globMatchRunes([]rune(pattern), []rune(name))
}

func globMatchRunes(p, s []rune) bool {
	for len(p) > 0 {
		switch {
		case p[0] == '*':
			if len(p) == 1 {
				return true
			}
			for i := 0; i <= len(s); i++ {
				if globMatchRunes(p[1:], s[i:]) {
					return true
				}
			}
			return false
		case p[0] == '?':
			if len(s) == 0 {
				return false
			}
			p, s = p[1:], s[1:]
		case p[0] == '[':
			end := indexRune(p, ']', 1)
			if end < 0 {
				return matchLiteralRune(p[0], s)
			}
			if len(s) == 0 || !matchClass(p[1:end], s[0]) {
				return false
			}
			p, s = p[end+1:], s[1:]
		default:
			if !matchLiteralRune(p[0], s) {
				return false
			}
			p, s = p[1:], s[1:]
		}
	}
	return len(s) == 0
}

func matchLiteralRune(pc rune, s []rune) bool {
	if len(s) == 0 {
		return false
	}
	want := pc
	if lit, ok := sentinelToLiteral[pc]; ok {
		want = lit
	}
	return s[0] == want
}

func indexRune(rs []rune, target rune, from int) int {
	for i := from; i < len(rs); i++ {
		if rs[i] == target {
			return i
		}
	}
	return -1
}

func matchClass(class []rune, c rune) bool {
	negate := false
	if len(class) > 0 && (class[0] == '!' || class[0] == '^') {
		negate = true
		class = class[1:]
	}
	matched := false
	for i := 0; i < len(class); i++ {
		if i+2 < len(class) && class[i+1] == '-' {
			if class[i] <= c && c <= class[i+2] {
				matched = true
			}
			i += 2
			continue
		}
		if class[i] == c {
			matched = true
		}
	}
	return matched != negate
}

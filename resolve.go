package clashpatch

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Patterns are matched against node names extracted from the proxies
// section, in document order. A pattern is a glob (*, ?, [...]) unless it
// carries the "re:" prefix, in which case the remainder is a regular
// expression applied with re-search semantics (unanchored).
const regexPatternPrefix = "re:"

// DefaultNodePatterns match US-region nodes under common subscription
// naming styles.
var DefaultNodePatterns = []string{
	"🇺🇲 美国 *",
	"🇺🇸 *",
	"US *",
	"United States *",
}

// DefaultFallbackNodes is the fixed non-empty member list used when the
// patterns match nothing; a generated group must never be empty.
var DefaultFallbackNodes = []string{"🇺🇲 美国 01", "🇺🇲 美国 02", "🇺🇲 美国 03"}

// globRegexp translates a glob pattern to an anchored regular expression.
// Unlike path matching there is no separator special-casing: * spans the
// whole name. [!...] negates a class, an unterminated class matches the
// literal bracket.
func globRegexp(pat string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("(?s)^")
	for i := 0; i < len(pat); {
		r, size := utf8.DecodeRuneInString(pat[i:])
		switch r {
		case '*':
			b.WriteString(".*")
			i += size
		case '?':
			b.WriteString(".")
			i += size
		case '[':
			end := strings.IndexByte(pat[i+1:], ']')
			if end < 0 {
				b.WriteString(regexp.QuoteMeta("["))
				i += size
				continue
			}
			inner := pat[i+1 : i+1+end]
			if strings.HasPrefix(inner, "!") {
				inner = "^" + inner[1:]
			}
			b.WriteString("[" + inner + "]")
			i += 1 + end + 1
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
			i += size
		}
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}

// matchesPattern reports whether name matches the single glob/regex
// pattern. Patterns that fail to compile match nothing.
func matchesPattern(name, pat string) bool {
	if rest, ok := strings.CutPrefix(pat, regexPatternPrefix); ok {
		rx, err := regexp.Compile(rest)
		if err != nil {
			return false
		}
		return rx.MatchString(name)
	}
	rx, err := globRegexp(pat)
	if err != nil {
		return false
	}
	return rx.MatchString(name)
}

// MatchesAny reports whether name matches any of the patterns.
func MatchesAny(name string, patterns []string) bool {
	for _, pat := range patterns {
		if matchesPattern(name, pat) {
			return true
		}
	}
	return false
}

// ResolveNodes returns the ordered sub-list of all (document order) that
// matches any pattern, excluding protected names. A zero-match result is
// replaced by the fallback list: resolution never yields an empty set.
func ResolveNodes(all, patterns, protected, fallback []string) []string {
	prot := make(map[string]struct{}, len(protected))
	for _, p := range protected {
		prot[p] = struct{}{}
	}
	var matched []string
	for _, n := range all {
		if _, skip := prot[n]; skip {
			continue
		}
		if MatchesAny(n, patterns) {
			matched = append(matched, n)
		}
	}
	if len(matched) == 0 {
		return append([]string(nil), fallback...)
	}
	return matched
}

// selectDialerCandidates decides which upstream nodes the relay dials
// through, honoring the configured mode. Degradations (empty filter,
// invalid pattern, zero matches) fall back to the unfiltered candidate set
// with a warning; the candidate list is only empty when the proxies
// section itself has no usable nodes.
func selectDialerCandidates(allNames []string, st *State, rep *Report) []string {
	var candidates []string
	for _, n := range allNames {
		if n != st.Relay.Name {
			candidates = append(candidates, n)
		}
	}
	if len(candidates) == 0 {
		rep.Warnf("resi: no dialer candidates found in proxies section")
		return nil
	}

	switch st.DialerMode {
	case DialerAll, "":
		return candidates
	case DialerRegex:
		pattern := strings.TrimSpace(st.DialerRegex)
		if pattern == "" {
			rep.Warnf("resi: dialer mode is regex but the pattern is empty; falling back to all")
			return candidates
		}
		rx, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			rep.Warnf("resi: invalid dialer regex %q: %v; falling back to all", pattern, err)
			return candidates
		}
		var filtered []string
		for _, n := range candidates {
			if rx.MatchString(n) {
				filtered = append(filtered, n)
			}
		}
		if len(filtered) == 0 {
			rep.Warnf("resi: dialer regex matched 0 nodes; falling back to all (pattern=%q)", pattern)
			return candidates
		}
		return filtered
	default:
		rep.Warnf("resi: unknown dialer mode %q; falling back to all", st.DialerMode)
		return candidates
	}
}

// resolveSelectGroup picks the user-facing selection group to mutate:
// the override if it exists in the document, then the default name, then
// conventional fallbacks. Returning false means no safe target exists and
// the caller must skip the mutation rather than guess.
func resolveSelectGroup(groupNames []string, override string) (string, bool) {
	if len(groupNames) == 0 {
		return "", false
	}
	exists := make(map[string]struct{}, len(groupNames))
	for _, n := range groupNames {
		exists[n] = struct{}{}
	}
	if override != "" {
		if _, ok := exists[override]; ok {
			return override, true
		}
	}
	if _, ok := exists[DefaultSelectGroupName]; ok {
		return DefaultSelectGroupName, true
	}
	for _, cand := range selectGroupFallbacks {
		if _, ok := exists[cand]; ok {
			return cand, true
		}
	}
	return "", false
}

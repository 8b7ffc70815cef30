package clashpatch

import (
	"fmt"
	"strings"
)

// The locator works on raw lines, not a parsed document model. Blocks are
// found by their serialized "name:" field under the documented canonical
// layout; anything formatted differently is simply "not found", which the
// reconciler treats as "needs insertion". That trade-off (tolerate unknown
// sibling content, stay byte-exact everywhere we do not manage) is the
// whole point of the engine.

// splitKeepEnds splits s into lines, each retaining its trailing newline.
// The final element has no newline if s does not end with one.
func splitKeepEnds(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for {
		i := strings.IndexByte(s, '\n')
		if i < 0 {
			out = append(out, s)
			return out
		}
		out = append(out, s[:i+1])
		s = s[i+1:]
		if s == "" {
			return out
		}
	}
}

// sectionBounds returns the character range [start, end) from the line
// that is exactly header to the line that is exactly nextHeader. Both
// headers are matched at the start of a line (top level), first occurrence
// wins. A missing header is fatal: the document is considered too
// non-standard to patch.
func sectionBounds(text, header, nextHeader string) (int, int, error) {
	start, ok := findHeaderLine(text, header, 0)
	if !ok {
		return 0, 0, fmt.Errorf("%w: %q", ErrMissingSection, header)
	}
	end, ok := findHeaderLine(text, nextHeader, start+len(header))
	if !ok {
		return 0, 0, fmt.Errorf("%w: %q", ErrMissingSection, nextHeader)
	}
	return start, end, nil
}

// findHeaderLine locates the offset of the first line at or after from
// that is exactly header (ignoring a trailing newline / carriage return).
func findHeaderLine(text, header string, from int) (int, bool) {
	offset := 0
	for _, ln := range splitKeepEnds(text) {
		if offset >= from && strings.TrimRight(ln, "\r\n") == strings.TrimRight(header, "\n") {
			return offset, true
		}
		offset += len(ln)
	}
	return 0, false
}

// isItemStart reports whether ln begins a list item at the given dash
// indentation: either the bare marker ("  -") or the inline form
// ("  - ...").
func isItemStart(ln, dashIndent string) bool {
	trimmed := strings.TrimRight(ln, "\r\n")
	if trimmed == dashIndent+"-" {
		return true
	}
	return strings.HasPrefix(trimmed, dashIndent+"- ")
}

// nameMatches reports whether a serialized "name:" line declares the given
// name, in either single- or double-quoted form.
func nameMatches(ln, name string) bool {
	s := strings.TrimSpace(ln)
	if !strings.HasPrefix(s, "name: ") {
		return false
	}
	return s == "name: "+quoteSingle(name) || s == fmt.Sprintf("name: %q", name)
}

// findListItem returns the half-open line range [start, end) of the first
// list item whose name field equals name, scanning lines[startIdx:]. An
// item begins at a dash-marker line at dashIndent and ends before the next
// such marker or the end of the slice.
func findListItem(lines []string, startIdx int, dashIndent, name string) (int, int, bool) {
	i := startIdx
	for i < len(lines) {
		if !isItemStart(lines[i], dashIndent) {
			i++
			continue
		}
		found := false
		j := i + 1
		for j < len(lines) && !isItemStart(lines[j], dashIndent) {
			if nameMatches(lines[j], name) {
				found = true
				break
			}
			j++
		}
		if found {
			k := i + 1
			for k < len(lines) && !isItemStart(lines[k], dashIndent) {
				k++
			}
			return i, k, true
		}
		if j > i {
			i = j
		} else {
			i++
		}
	}
	return 0, 0, false
}

// findTopLevelBlock returns the line range [start, end) of a top-level
// "key:" block: the header line plus every following line that is blank,
// a comment, or indented.
func findTopLevelBlock(lines []string, key string) (int, int, bool) {
	start := -1
	for i, ln := range lines {
		if strings.TrimRight(ln, "\r\n") == key+":" {
			start = i
			break
		}
	}
	if start < 0 {
		return 0, 0, false
	}
	j := start + 1
	for j < len(lines) {
		s := lines[j]
		if strings.TrimSpace(s) == "" || strings.HasPrefix(s, "#") || strings.HasPrefix(s, " ") {
			j++
			continue
		}
		break
	}
	return start, j, true
}

// extractNames lists, in document order, every name declared by a
// serialized "name:" field in the section text. Only the canonical quoted
// forms are recognized.
func extractNames(section string) []string {
	var names []string
	for _, ln := range splitKeepEnds(section) {
		s := strings.TrimRight(strings.TrimSpace(ln), "\r\n")
		if !strings.HasPrefix(s, "name: ") {
			continue
		}
		v := s[len("name: "):]
		switch {
		case strings.HasPrefix(v, "'") && strings.HasSuffix(v, "'") && len(v) >= 2:
			names = append(names, strings.ReplaceAll(v[1:len(v)-1], "''", "'"))
		case strings.HasPrefix(v, `"`) && strings.HasSuffix(v, `"`) && len(v) >= 2:
			names = append(names, v[1:len(v)-1])
		}
	}
	return names
}

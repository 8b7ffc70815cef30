package clashpatch

import (
	"fmt"
	"strings"
)

// The bypass feature keeps local and allowlisted traffic out of the proxy
// chain even when the client runs in TUN/"global" style modes. Four
// independent sub-steps, each idempotent: TUN route exclusion, DNS fake-ip
// filtering, DNS nameserver policy, and plain routing rules as a safety
// net. Dialect-gated sub-steps degrade to a warning instead of failing the
// run.

func applyBypass(text string, st *State, rep *Report, changed *bool) (string, error) {
	var ch bool
	if st.Dialect == DialectMihomo {
		text, ch = ensureTunRouteExclude(text, st.BypassCIDRs)
		if ch {
			*changed = true
			rep.Notef("bypass: updated tun.route-exclude-address")
		}
	} else {
		rep.Warnf("bypass: compat=classic -> skipping tun.route-exclude-address injection")
	}

	text, ch = ensureFakeIPFilter(text, st.FakeIPFilters())
	if ch {
		*changed = true
		rep.Notef("bypass: updated dns.fake-ip-filter")
	}

	if len(st.InternalDNS) > 0 {
		if st.Dialect == DialectMihomo {
			text, ch = ensureNameserverPolicy(text, st.FakeIPFilters(), st.InternalDNS)
			if ch {
				*changed = true
				rep.Notef("bypass: updated dns.nameserver-policy")
			}
		} else {
			rep.Warnf("bypass: compat=classic -> ignoring internal DNS servers (nameserver-policy may be unsupported)")
		}
	}

	text, ch = ensureBypassRules(text, st.BypassCIDRs, st.BypassDomains)
	if ch {
		*changed = true
		rep.Notef("bypass: inserted DIRECT rules into %s", rulesHeader)
	}
	return text, nil
}

// ensureTunRouteExclude makes tun.route-exclude-address contain every
// CIDR. When the document has no tun block at all, a minimal one is
// inserted before the proxies section (or at EOF).
func ensureTunRouteExclude(text string, cidrs []string) (string, bool) {
	if len(cidrs) == 0 {
		return text, false
	}
	lines := splitKeepEnds(text)
	tStart, tEnd, ok := findTopLevelBlock(lines, "tun")
	if !ok {
		return insertTunBlock(lines, cidrs), true
	}

	block := strings.Join(lines[tStart:tEnd], "")
	missing := missingItems(block, cidrs)
	if len(missing) == 0 {
		return text, false
	}

	keyIdx := -1
	for i := tStart + 1; i < tEnd; i++ {
		if strings.HasPrefix(strings.TrimLeft(lines[i], " "), "route-exclude-address:") {
			keyIdx = i
			break
		}
	}
	if keyIdx < 0 {
		// Append the key (plus items) at the end of the tun block.
		ins := []string{"  route-exclude-address:\n"}
		for _, c := range missing {
			ins = append(ins, "    - "+c+"\n")
		}
		return spliceLines(lines, tEnd, tEnd, ins), true
	}

	if newLine, ok := appendInlineListItems(lines[keyIdx], missing); ok {
		if newLine == lines[keyIdx] {
			return text, false
		}
		lines[keyIdx] = newLine
		return strings.Join(lines, ""), true
	}

	ins := make([]string, 0, len(missing))
	for _, c := range missing {
		ins = append(ins, "    - "+c+"\n")
	}
	at := endOfNestedList(lines, keyIdx, tEnd)
	return spliceLines(lines, at, at, ins), true
}

func insertTunBlock(lines []string, cidrs []string) string {
	at := len(lines)
	for i, ln := range lines {
		if strings.TrimRight(ln, "\r\n") == proxiesHeader {
			at = i
			break
		}
	}
	if at == len(lines) && len(lines) > 0 && !strings.HasSuffix(lines[len(lines)-1], "\n") {
		lines[len(lines)-1] += "\n"
	}
	block := []string{
		"tun:\n",
		"  enable: true\n",
		"  stack: system\n",
		"  auto-route: true\n",
		"  auto-detect-interface: true\n",
		"  dns-hijack:\n",
		"    - any:53\n",
		"  route-exclude-address:\n",
	}
	for _, c := range cidrs {
		block = append(block, "    - "+c+"\n")
	}
	block = append(block, "\n")
	return spliceLines(lines, at, at, block)
}

// ensureFakeIPFilter appends missing "+.domain" patterns to
// dns.fake-ip-filter. No-op when the document has no dns block; the
// filter only matters for fake-ip deployments, which always carry one.
func ensureFakeIPFilter(text string, patterns []string) (string, bool) {
	if len(patterns) == 0 {
		return text, false
	}
	lines := splitKeepEnds(text)
	dStart, dEnd, ok := findTopLevelBlock(lines, "dns")
	if !ok {
		return text, false
	}
	block := strings.Join(lines[dStart:dEnd], "")
	missing := missingItems(block, patterns)
	if len(missing) == 0 {
		return text, false
	}

	keyIdx := -1
	for i := dStart + 1; i < dEnd; i++ {
		if strings.HasPrefix(strings.TrimLeft(lines[i], " "), "fake-ip-filter:") {
			keyIdx = i
			break
		}
	}
	if keyIdx < 0 {
		ins := []string{"  fake-ip-filter:\n"}
		for _, p := range missing {
			ins = append(ins, "    - "+p+"\n")
		}
		return spliceLines(lines, dEnd, dEnd, ins), true
	}

	if newLine, ok := appendInlineListItems(lines[keyIdx], missing); ok {
		if newLine == lines[keyIdx] {
			return text, false
		}
		lines[keyIdx] = newLine
		return strings.Join(lines, ""), true
	}

	ins := make([]string, 0, len(missing))
	for _, p := range missing {
		ins = append(ins, "    - "+p+"\n")
	}
	at := endOfNestedList(lines, keyIdx, dEnd)
	return spliceLines(lines, at, at, ins), true
}

// ensureNameserverPolicy adds a `"pattern": [servers]` entry under
// dns.nameserver-policy for every pattern not yet mentioned in the dns
// block, creating the mapping when absent.
func ensureNameserverPolicy(text string, patterns, servers []string) (string, bool) {
	if len(patterns) == 0 || len(servers) == 0 {
		return text, false
	}
	lines := splitKeepEnds(text)
	dStart, dEnd, ok := findTopLevelBlock(lines, "dns")
	if !ok {
		return text, false
	}
	block := strings.Join(lines[dStart:dEnd], "")

	var entries []string
	for _, p := range patterns {
		// Match the serialized policy key, not the bare pattern: the same
		// pattern also appears under fake-ip-filter in this block.
		if strings.Contains(block, fmt.Sprintf("%q:", p)) {
			continue
		}
		entries = append(entries, fmt.Sprintf("    %q: %s\n", p, inlineStringList(servers)))
	}
	if len(entries) == 0 {
		return text, false
	}

	keyIdx := -1
	for i := dStart + 1; i < dEnd; i++ {
		if strings.HasPrefix(strings.TrimLeft(lines[i], " "), "nameserver-policy:") {
			keyIdx = i
			break
		}
	}
	if keyIdx < 0 {
		return spliceLines(lines, dEnd, dEnd, append([]string{"  nameserver-policy:\n"}, entries...)), true
	}
	at := endOfNestedList(lines, keyIdx, dEnd)
	return spliceLines(lines, at, at, entries), true
}

// ensureBypassRules inserts the missing DIRECT rules at the top of the
// rules section. Rule-mode matching can be sidestepped by "global" style
// modes; the TUN route exclusion is the real guarantee, these are the
// safety net.
func ensureBypassRules(text string, cidrs, domains []string) (string, bool) {
	lines := splitKeepEnds(text)
	rulesIdx := -1
	for i, ln := range lines {
		if strings.TrimRight(ln, "\r\n") == rulesHeader {
			rulesIdx = i
			break
		}
	}
	if rulesIdx < 0 {
		return text, false
	}

	var wanted []string
	for _, c := range cidrs {
		wanted = append(wanted, fmt.Sprintf("- IP-CIDR,%s,DIRECT,no-resolve\n", c))
	}
	for _, d := range domains {
		wanted = append(wanted, fmt.Sprintf("- DOMAIN-SUFFIX,%s,DIRECT\n", d))
	}

	section := strings.Join(lines[rulesIdx:], "")
	var missing []string
	for _, w := range wanted {
		if !strings.Contains(section, strings.TrimRight(w, "\n")) {
			missing = append(missing, w)
		}
	}
	if len(missing) == 0 {
		return text, false
	}
	return spliceLines(lines, rulesIdx+1, rulesIdx+1, missing), true
}

// --- shared helpers ---

// missingItems returns the values not appearing as substrings of block.
// Substring containment is deliberate: it tolerates inline lists, block
// lists and quoting variations at the cost of rare false positives.
func missingItems(block string, values []string) []string {
	var out []string
	for _, v := range values {
		if !strings.Contains(block, v) {
			out = append(out, v)
		}
	}
	return out
}

// appendInlineListItems extends an inline `key: [a, b]` list with values,
// skipping ones already present. Returns ok=false when the line is not an
// inline list.
func appendInlineListItems(ln string, values []string) (string, bool) {
	open := strings.IndexByte(ln, '[')
	closing := strings.LastIndexByte(ln, ']')
	if open < 0 || closing < open {
		return ln, false
	}
	inner := ln[open+1 : closing]
	var add []string
	for _, v := range values {
		if !strings.Contains(inner, v) {
			add = append(add, v)
		}
	}
	if len(add) == 0 {
		return ln, true
	}
	joined := strings.TrimSpace(inner)
	if joined != "" && !strings.HasSuffix(joined, ",") {
		joined += ", "
	}
	joined += strings.Join(add, ", ")
	return ln[:open+1] + joined + ln[closing:], true
}

// endOfNestedList returns the insertion line index just past the items of
// the nested list/mapping introduced at keyIdx (indentation deeper than
// the tun/dns child level), bounded by blockEnd.
func endOfNestedList(lines []string, keyIdx, blockEnd int) int {
	j := keyIdx + 1
	for j < blockEnd {
		if strings.HasPrefix(lines[j], "  ") && !strings.HasPrefix(lines[j], "    ") {
			break
		}
		j++
	}
	return j
}

// inlineStringList renders values as a double-quoted inline YAML list.
func inlineStringList(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = fmt.Sprintf("%q", v)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

// spliceLines replaces lines[from:to] with ins and re-joins.
func spliceLines(lines []string, from, to int, ins []string) string {
	out := append([]string{}, lines[:from]...)
	out = append(out, ins...)
	out = append(out, lines[to:]...)
	return strings.Join(out, "")
}

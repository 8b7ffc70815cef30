package clashpatch

import (
	"fmt"
	"strings"
)

// Section header anchors. A section runs from its header line to the start
// of the next known header.
const (
	proxiesHeader = "proxies:"
	groupsHeader  = "proxy-groups:"
	rulesHeader   = "rules:"
)

// ensureListItem converges one named block inside a section: insert the
// canonical rendering right after the section header when the block is
// absent, replace the whole span when present but different, leave the
// bytes alone when identical. Blocks are never partially edited.
func ensureListItem(section, name, rendered, dashIndent string) (string, bool) {
	lines := splitKeepEnds(section)
	if len(lines) == 0 {
		return rendered, true
	}
	bs, be, ok := findListItem(lines, 1, dashIndent, name)
	if !ok {
		out := append([]string{}, lines[:1]...)
		out = append(out, splitKeepEnds(rendered)...)
		out = append(out, lines[1:]...)
		return strings.Join(out, ""), true
	}
	if strings.Join(lines[bs:be], "") == rendered {
		return section, false
	}
	out := append([]string{}, lines[:bs]...)
	out = append(out, splitKeepEnds(rendered)...)
	out = append(out, lines[be:]...)
	return strings.Join(out, ""), true
}

// removeListItem deletes the span of the named block; no-op when absent.
func removeListItem(section, name, dashIndent string) (string, bool) {
	lines := splitKeepEnds(section)
	bs, be, ok := findListItem(lines, 1, dashIndent, name)
	if !ok {
		return section, false
	}
	return strings.Join(append(append([]string{}, lines[:bs]...), lines[be:]...), ""), true
}

// groupMemberBlock locates a group's block and the index of its "proxies:"
// field line within that block.
func groupMemberBlock(lines []string, group string) (bs, be, proxiesIdx int, err error) {
	bs, be, ok := findListItem(lines, 1, sectionIndent, group)
	if !ok {
		return 0, 0, 0, fmt.Errorf("missing proxy group %q in %s section", group, groupsHeader)
	}
	for i := bs; i < be; i++ {
		if strings.HasPrefix(lines[i], fieldIndent+"proxies:") {
			return bs, be, i, nil
		}
	}
	return 0, 0, 0, fmt.Errorf("group %q has no proxies list", group)
}

// setGroupMembers rewrites a group's member list to exactly members
// (de-duplicated, order preserved), replacing the full sub-list between
// the proxies introducer and the next field at the parent indentation.
func setGroupMembers(section, group string, members []string) (string, bool, error) {
	lines := splitKeepEnds(section)
	_, be, pi, err := groupMemberBlock(lines, group)
	if err != nil {
		return section, false, err
	}
	end := pi + 1
	for end < be && strings.HasPrefix(lines[end], memberIndent+"-") {
		end++
	}
	seen := make(map[string]struct{}, len(members))
	var rendered []string
	for _, m := range members {
		if _, dup := seen[m]; dup {
			continue
		}
		seen[m] = struct{}{}
		rendered = append(rendered, renderMember(m))
	}
	if strings.Join(lines[pi+1:end], "") == strings.Join(rendered, "") {
		return section, false, nil
	}
	out := append([]string{}, lines[:pi+1]...)
	out = append(out, rendered...)
	out = append(out, lines[end:]...)
	return strings.Join(out, ""), true, nil
}

// appendGroupMember inserts one member right under the group's proxies
// introducer unless an exact entry already exists in the block. Everything
// else in the block, including entries this engine does not understand,
// stays untouched.
func appendGroupMember(section, group, entry string) (string, bool, error) {
	lines := splitKeepEnds(section)
	bs, be, pi, err := groupMemberBlock(lines, group)
	if err != nil {
		return section, false, err
	}
	block := strings.Join(lines[bs:be], "")
	for _, form := range memberLineForms(entry) {
		if strings.Contains(block, form) {
			return section, false, nil
		}
	}
	out := append([]string{}, lines[:pi+1]...)
	out = append(out, renderMember(entry))
	out = append(out, lines[pi+1:]...)
	return strings.Join(out, ""), true, nil
}

// removeGroupMember drops every exact-match entry line for entry from the
// group's block; no-op when the group or the entry is absent.
func removeGroupMember(section, group, entry string) (string, bool) {
	lines := splitKeepEnds(section)
	bs, be, ok := findListItem(lines, 1, sectionIndent, group)
	if !ok {
		return section, false
	}
	forms := memberLineForms(entry)
	var out []string
	changed := false
	for i, ln := range lines {
		if i >= bs && i < be && containsLine(forms, ln) {
			changed = true
			continue
		}
		out = append(out, ln)
	}
	if !changed {
		return section, false
	}
	return strings.Join(out, ""), true
}

// memberLineForms lists the serialized entry forms recognized as the same
// member: single-quoted, double-quoted and bare.
func memberLineForms(entry string) []string {
	return []string{
		memberIndent + "- " + quoteSingle(entry) + "\n",
		memberIndent + "- " + fmt.Sprintf("%q", entry) + "\n",
		memberIndent + "- " + entry + "\n",
	}
}

func containsLine(forms []string, ln string) bool {
	for _, f := range forms {
		if ln == f {
			return true
		}
	}
	return false
}

// ensureTopLevelPort converges the top-level "port:" scalar, looking only
// above the first dns:/proxies: header. Insert after mixed-port: when
// present, else right before that header.
func ensureTopLevelPort(text string, port int) (string, bool) {
	lines := splitKeepEnds(text)
	stop := len(lines)
	for i, ln := range lines {
		if strings.HasPrefix(ln, "dns:") || strings.HasPrefix(ln, proxiesHeader) {
			stop = i
			break
		}
	}
	desired := fmt.Sprintf("port: %d", port)
	for i := 0; i < stop; i++ {
		if strings.HasPrefix(lines[i], "port: ") {
			if strings.TrimRight(lines[i], "\r\n") == desired {
				return text, false
			}
			lines[i] = desired + "\n"
			return strings.Join(lines, ""), true
		}
	}
	insertAt := stop
	for i := 0; i < stop; i++ {
		if strings.HasPrefix(lines[i], "mixed-port: ") {
			insertAt = i + 1
			break
		}
	}
	out := append([]string{}, lines[:insertAt]...)
	out = append(out, desired+"\n")
	out = append(out, lines[insertAt:]...)
	return strings.Join(out, ""), true
}

// Reconcile computes the converged form of doc for the desired state and
// returns the new document plus a change report. When the document already
// matches, the returned bytes are identical to the input and Changed is
// false; the engine runs repeatedly against live, possibly hand-edited
// files, so that no-op guarantee is the property everything else hangs on.
func Reconcile(doc []byte, st *State) (*Result, error) {
	rep := &Report{}
	text := string(doc)
	changed := false

	// Dialect gating is checked before any mutation so a fatal mismatch
	// aborts with zero side effects.
	if st.Features.RelayChain {
		if err := checkRelayChainDialect(st.Dialect); err != nil {
			return nil, err
		}
	}

	if st.Features.Bypass {
		var err error
		text, err = applyBypass(text, st, rep, &changed)
		if err != nil {
			return nil, err
		}
	}

	if st.Features.RelayChain {
		var err error
		text, err = applyRelayChain(text, st, rep, &changed)
		if err != nil {
			return nil, err
		}
	}

	out := []byte(text)
	if changed {
		if err := validateDocument(out, st.Features); err != nil {
			return nil, err
		}
	} else {
		// Converged: hand back the caller's bytes untouched.
		out = doc
	}
	return &Result{Doc: out, Changed: changed, Report: rep}, nil
}

// applyRelayChain converges the relay proxy, its dialer group and the
// user-facing selection group.
func applyRelayChain(text string, st *State, rep *Report, changed *bool) (string, error) {
	text, ch := ensureTopLevelPort(text, st.Port)
	if ch {
		*changed = true
		rep.Notef("resi: ensured top-level port %d", st.Port)
	}

	pStart, pEnd, err := sectionBounds(text, proxiesHeader, groupsHeader)
	if err != nil {
		return text, err
	}
	gStart, gEnd, err := sectionBounds(text, groupsHeader, rulesHeader)
	if err != nil {
		return text, err
	}
	pre, proxiesSec := text[:pStart], text[pStart:pEnd]
	groupsSec, post := text[gStart:gEnd], text[gEnd:]

	proxiesSec, ch = ensureListItem(proxiesSec, st.Relay.Name, relayProxySpec(st).Render(), sectionIndent)
	if ch {
		*changed = true
		rep.Notef("resi: ensured residential relay in %s", proxiesHeader)
	}

	allNames := extractNames(proxiesSec)
	candidates := selectDialerCandidates(allNames, st, rep)

	groupsSec, ch = ensureListItem(groupsSec, st.DialerGroupName, dialerGroupSpec(st, candidates).Render(), sectionIndent)
	if ch {
		*changed = true
		rep.Notef("resi: ensured dialer group %q", st.DialerGroupName)
	}

	if st.SkipSelectGroup {
		rep.Warnf("resi: selection-group update disabled; skipping")
	} else {
		groupNames := extractNames(groupsSec)
		nsName, ok := resolveSelectGroup(groupNames, st.SelectGroupName)
		if !ok {
			rep.Warnf("resi: could not detect the selection group; skipping its update to avoid breaking the config")
		} else {
			var err error
			groupsSec, ch, err = appendGroupMember(groupsSec, nsName, st.Relay.Name)
			if err != nil {
				rep.Warnf("resi: failed to update selection group safely: %v", err)
			} else {
				if ch {
					*changed = true
					rep.Notef("resi: appended relay into %q", nsName)
				}
				groupsSec, ch = retireLegacyGroups(groupsSec, nsName, rep)
				*changed = *changed || ch
			}
		}
	}

	return pre + proxiesSec + groupsSec + post, nil
}

// retireLegacyGroups removes groups generated by earlier layouts of this
// tool and their references inside the selection group.
func retireLegacyGroups(groupsSec, selectGroup string, rep *Report) (string, bool) {
	changed := false
	for _, legacy := range []string{legacyDialerSelectorGroup, legacyOneClickGroup} {
		var ch bool
		groupsSec, ch = removeListItem(groupsSec, legacy, sectionIndent)
		if ch {
			changed = true
			rep.Notef("resi: removed legacy group %q", legacy)
		}
		groupsSec, ch = removeGroupMember(groupsSec, selectGroup, legacy)
		changed = changed || ch
	}
	return groupsSec, changed
}

package clashpatch

import (
	"fmt"
	"strings"
)

// Canonical rendering is what makes byte-equality a valid convergence
// test: field order, indentation and quoting are fixed, member lists keep
// their given order, and the same spec always yields the same bytes.

const (
	sectionIndent = "  "
	fieldIndent   = "    "
	memberIndent  = "      "
)

// quoteSingle renders s as a single-quoted YAML scalar.
func quoteSingle(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// renderMember renders one member reference of a group's proxies list.
// The built-in DIRECT policy stays bare, real names are quoted.
func renderMember(name string) string {
	if name == "DIRECT" || name == "REJECT" {
		return memberIndent + "- " + name + "\n"
	}
	return memberIndent + "- " + quoteSingle(name) + "\n"
}

// ProxySpec is the logical form of the relay proxy definition.
type ProxySpec struct {
	Name     string
	Type     string
	Server   string
	Port     int
	Username string
	Password string
	// DialerProxy names the group the relay's own outbound dial is routed
	// through (mihomo dialect only).
	DialerProxy string
}

// Render serializes the proxy definition to its canonical block text.
func (p ProxySpec) Render() string {
	var b strings.Builder
	b.WriteString(sectionIndent + "-\n")
	fmt.Fprintf(&b, "%sname: %s\n", fieldIndent, quoteSingle(p.Name))
	fmt.Fprintf(&b, "%stype: %s\n", fieldIndent, p.Type)
	fmt.Fprintf(&b, "%sserver: %s\n", fieldIndent, p.Server)
	fmt.Fprintf(&b, "%sport: %d\n", fieldIndent, p.Port)
	fmt.Fprintf(&b, "%susername: %s\n", fieldIndent, quoteSingle(p.Username))
	fmt.Fprintf(&b, "%spassword: %s\n", fieldIndent, quoteSingle(p.Password))
	if p.DialerProxy != "" {
		fmt.Fprintf(&b, "%sdialer-proxy: %s\n", fieldIndent, quoteSingle(p.DialerProxy))
	}
	return b.String()
}

// GroupSpec is the logical form of a routing group definition.
type GroupSpec struct {
	Name string
	// Type is "url-test" or "select".
	Type        string
	HealthCheck HealthCheck // url-test only
	Members     []string
}

// Render serializes the group definition to its canonical block text.
// Members are de-duplicated preserving first occurrence so rendering stays
// deterministic for any input.
func (g GroupSpec) Render() string {
	var b strings.Builder
	b.WriteString(sectionIndent + "-\n")
	fmt.Fprintf(&b, "%sname: %s\n", fieldIndent, quoteSingle(g.Name))
	fmt.Fprintf(&b, "%stype: %s\n", fieldIndent, g.Type)
	if g.Type == "url-test" {
		fmt.Fprintf(&b, "%surl: %s\n", fieldIndent, quoteSingle(g.HealthCheck.URL))
		fmt.Fprintf(&b, "%sinterval: %d\n", fieldIndent, g.HealthCheck.Interval)
		fmt.Fprintf(&b, "%stolerance: %d\n", fieldIndent, g.HealthCheck.Tolerance)
	}
	fmt.Fprintf(&b, "%sproxies:\n", fieldIndent)
	seen := make(map[string]struct{}, len(g.Members))
	for _, m := range g.Members {
		if _, dup := seen[m]; dup {
			continue
		}
		seen[m] = struct{}{}
		b.WriteString(renderMember(m))
	}
	return b.String()
}

// relayProxySpec builds the relay definition from the desired state.
func relayProxySpec(st *State) ProxySpec {
	return ProxySpec{
		Name:        st.Relay.Name,
		Type:        "socks5",
		Server:      st.Relay.Server,
		Port:        st.Relay.Port,
		Username:    st.Relay.Username,
		Password:    st.Relay.Password,
		DialerProxy: st.DialerGroupName,
	}
}

// dialerGroupSpec builds the best-of-all-candidates url-test group the
// relay dials through.
func dialerGroupSpec(st *State, members []string) GroupSpec {
	return GroupSpec{
		Name:        st.DialerGroupName,
		Type:        "url-test",
		HealthCheck: st.HealthCheck,
		Members:     members,
	}
}

package clashpatch

import (
	"fmt"
	"sort"
	"strings"
)

// Feature selects one of the independent patch features.
type Feature string

const (
	// FeatureRelayChain injects the residential SOCKS5 relay plus the
	// url-test dialer group it dials through.
	FeatureRelayChain Feature = "resi"
	// FeatureBypass injects TUN/DNS/rule entries that keep local and
	// allowlisted traffic out of the proxy chain.
	FeatureBypass Feature = "bypass"
)

// Features is the set of enabled patch features.
type Features struct {
	RelayChain bool
	Bypass     bool
}

// AllFeatures enables everything; it is the default when the caller passes
// no explicit feature list.
func AllFeatures() Features {
	return Features{RelayChain: true, Bypass: true}
}

// ParseFeatures parses a comma separated feature list ("resi,bypass").
// An empty string means all features.
func ParseFeatures(s string) (Features, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return AllFeatures(), nil
	}
	var f Features
	var unknown []string
	for _, part := range strings.Split(raw, ",") {
		switch Feature(strings.ToLower(strings.TrimSpace(part))) {
		case FeatureRelayChain:
			f.RelayChain = true
		case FeatureBypass:
			f.Bypass = true
		case "":
		default:
			unknown = append(unknown, strings.TrimSpace(part))
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return Features{}, fmt.Errorf("unknown feature(s): %s (valid: %s,%s)",
			strings.Join(unknown, ","), FeatureRelayChain, FeatureBypass)
	}
	return f, nil
}

// String renders the enabled set in a stable order.
func (f Features) String() string {
	var parts []string
	if f.RelayChain {
		parts = append(parts, string(FeatureRelayChain))
	}
	if f.Bypass {
		parts = append(parts, string(FeatureBypass))
	}
	if len(parts) == 0 {
		return "(none)"
	}
	return strings.Join(parts, ",")
}

// Relay describes the residential SOCKS5 endpoint injected into the
// proxies section.
type Relay struct {
	Name     string
	Server   string
	Port     int
	Username string
	Password string
}

// HealthCheck carries the url-test parameters rendered into generated
// groups.
type HealthCheck struct {
	URL       string
	Interval  int
	Tolerance int
}

// DialerMode selects which upstream nodes become dial candidates for the
// relay.
type DialerMode string

const (
	DialerAll   DialerMode = "all"
	DialerRegex DialerMode = "regex"
)

// State is the desired configuration the reconciler converges the document
// towards. It is assembled once by the caller (defaults, settings file,
// environment, flags) and never mutated by the engine.
type State struct {
	Features Features
	Dialect  Dialect

	Relay Relay
	// DialerGroupName is the url-test group the relay dials through.
	DialerGroupName string
	// SelectGroupName overrides the user-facing selection group to append
	// the relay into. Empty means: default name, then conventional
	// fallbacks, verified against the document.
	SelectGroupName string
	// SkipSelectGroup disables the selection-group mutation entirely.
	SkipSelectGroup bool

	DialerMode  DialerMode
	DialerRegex string

	// Port is ensured as the top-level "port:" scalar.
	Port        int
	HealthCheck HealthCheck

	// Bypass inputs.
	BypassCIDRs   []string
	BypassDomains []string
	// InternalDNS lists resolver addresses for dns.nameserver-policy
	// entries covering the bypass domains. Already resolved by the caller
	// (including the "system" mode).
	InternalDNS []string
}

// Names of groups generated by earlier layouts of this tool. They are
// retired on sight so repeated runs do not accumulate UI clutter.
const (
	legacyDialerSelectorGroup = "🛰️ 前置出口(住宅拨号)"
	legacyOneClickGroup       = "🏠 住宅出口"
)

// Default naming and tuning, overridable via State fields.
const (
	DefaultRelayName       = "🚀 前置-SOCKS5"
	DefaultDialerGroupName = "🧪 前置出口-择优"
	DefaultSelectGroupName = "🚀 节点选择"

	DefaultPort                 = 7891
	DefaultHealthCheckURL       = "http://www.gstatic.com/generate_204"
	DefaultHealthCheckInterval  = 300
	DefaultHealthCheckTolerance = 50
)

// selectGroupFallbacks are conventional selection-group names probed, in
// order, when neither the override nor the default exists in the document.
var selectGroupFallbacks = []string{
	"🚀 节点选择", "节点选择", "Proxy", "PROXY", "代理", "默认",
}

// DefaultBypassCIDRs covers the RFC1918 ranges.
var DefaultBypassCIDRs = []string{"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"}

// DefaultBypassDomains is a placeholder allowlist; real deployments
// override it.
var DefaultBypassDomains = []string{"baidu.com"}

// NewState returns a State populated with every default. Callers overlay
// their settings on top before handing it to Reconcile.
func NewState() *State {
	return &State{
		Features: AllFeatures(),
		Dialect:  DialectMihomo,
		Relay: Relay{
			Name: DefaultRelayName,
			Port: 443,
		},
		DialerGroupName: DefaultDialerGroupName,
		DialerMode:      DialerAll,
		Port:            DefaultPort,
		HealthCheck: HealthCheck{
			URL:       DefaultHealthCheckURL,
			Interval:  DefaultHealthCheckInterval,
			Tolerance: DefaultHealthCheckTolerance,
		},
		BypassCIDRs:   append([]string(nil), DefaultBypassCIDRs...),
		BypassDomains: append([]string(nil), DefaultBypassDomains...),
	}
}

// FakeIPFilters derives the dns.fake-ip-filter patterns ("+.domain") from
// the bypass domains.
func (s *State) FakeIPFilters() []string {
	out := make([]string, 0, len(s.BypassDomains))
	for _, d := range s.BypassDomains {
		out = append(out, "+."+strings.TrimPrefix(d, "."))
	}
	return out
}

package clashpatch

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bypassState() *State {
	st := NewState()
	st.Features = Features{Bypass: true}
	st.Dialect = DialectMihomo
	st.BypassCIDRs = []string{"10.0.0.0/8"}
	st.BypassDomains = []string{"example.com"}
	return st
}

func TestBypassFullPass(t *testing.T) {
	doc := `mixed-port: 7890
external-controller: 127.0.0.1:9090
tun:
  enable: true
  route-exclude-address:
    - 192.168.0.0/16
dns:
  enable: true
  enhanced-mode: fake-ip
  fake-ip-filter:
    - '*.lan'
proxies:
  -
    name: 'A-1'
    type: ss
    server: a.example.com
    port: 443
proxy-groups:
  -
    name: 'Select'
    type: select
    proxies:
      - 'A-1'
rules:
  - MATCH,DIRECT
`
	st := bypassState()
	st.InternalDNS = []string{"10.0.0.2", "10.0.0.3"}

	res, err := Reconcile([]byte(doc), st)
	require.NoError(t, err)
	require.True(t, res.Changed)
	out := string(res.Doc)

	assert.Contains(t, out, `  route-exclude-address:
    - 192.168.0.0/16
    - 10.0.0.0/8
`)
	assert.Contains(t, out, `  fake-ip-filter:
    - '*.lan'
    - +.example.com
`)
	assert.Contains(t, out, `  nameserver-policy:
    "+.example.com": ["10.0.0.2", "10.0.0.3"]
`)
	assert.Contains(t, out, `rules:
- IP-CIDR,10.0.0.0/8,DIRECT,no-resolve
- DOMAIN-SUFFIX,example.com,DIRECT
  - MATCH,DIRECT
`)

	second, err := Reconcile(res.Doc, st)
	require.NoError(t, err)
	assert.False(t, second.Changed)
	assert.Equal(t, out, string(second.Doc))
}

func TestEnsureTunRouteExclude(t *testing.T) {
	t.Run("creates tun block before proxies", func(t *testing.T) {
		out, changed := ensureTunRouteExclude("port: 7890\nproxies:\n", []string{"10.0.0.0/8"})
		assert.True(t, changed)
		assert.Equal(t, `port: 7890
tun:
  enable: true
  stack: system
  auto-route: true
  auto-detect-interface: true
  dns-hijack:
    - any:53
  route-exclude-address:
    - 10.0.0.0/8

proxies:
`, out)
	})

	t.Run("creates tun block at EOF without proxies header", func(t *testing.T) {
		out, changed := ensureTunRouteExclude("port: 7890", []string{"10.0.0.0/8"})
		assert.True(t, changed)
		assert.True(t, strings.HasPrefix(out, "port: 7890\ntun:\n"))
	})

	t.Run("adds missing key to existing block", func(t *testing.T) {
		out, changed := ensureTunRouteExclude("tun:\n  enable: true\nproxies:\n", []string{"10.0.0.0/8"})
		assert.True(t, changed)
		assert.Equal(t, "tun:\n  enable: true\n  route-exclude-address:\n    - 10.0.0.0/8\nproxies:\n", out)
	})

	t.Run("extends inline list", func(t *testing.T) {
		in := "tun:\n  route-exclude-address: [192.168.0.0/16]\n"
		out, changed := ensureTunRouteExclude(in, []string{"10.0.0.0/8"})
		assert.True(t, changed)
		assert.Equal(t, "tun:\n  route-exclude-address: [192.168.0.0/16, 10.0.0.0/8]\n", out)

		out2, changed := ensureTunRouteExclude(out, []string{"10.0.0.0/8"})
		assert.False(t, changed)
		assert.Equal(t, out, out2)
	})

	t.Run("extends empty inline list", func(t *testing.T) {
		out, changed := ensureTunRouteExclude("tun:\n  route-exclude-address: []\n", []string{"10.0.0.0/8"})
		assert.True(t, changed)
		assert.Equal(t, "tun:\n  route-exclude-address: [10.0.0.0/8]\n", out)
	})

	t.Run("no-op when all present", func(t *testing.T) {
		in := "tun:\n  route-exclude-address:\n    - 10.0.0.0/8\n"
		out, changed := ensureTunRouteExclude(in, []string{"10.0.0.0/8"})
		assert.False(t, changed)
		assert.Equal(t, in, out)
	})

	t.Run("no cidrs is a no-op", func(t *testing.T) {
		_, changed := ensureTunRouteExclude("port: 7890\n", nil)
		assert.False(t, changed)
	})
}

func TestEnsureFakeIPFilter(t *testing.T) {
	t.Run("no dns block is a no-op", func(t *testing.T) {
		in := "port: 7890\nproxies:\n"
		out, changed := ensureFakeIPFilter(in, []string{"+.example.com"})
		assert.False(t, changed)
		assert.Equal(t, in, out)
	})

	t.Run("adds missing key to existing dns block", func(t *testing.T) {
		out, changed := ensureFakeIPFilter("dns:\n  enable: true\nproxies:\n", []string{"+.example.com"})
		assert.True(t, changed)
		assert.Equal(t, "dns:\n  enable: true\n  fake-ip-filter:\n    - +.example.com\nproxies:\n", out)
	})

	t.Run("appends after existing block-list entries", func(t *testing.T) {
		in := "dns:\n  fake-ip-filter:\n    - '*.lan'\n  nameserver:\n    - 8.8.8.8\n"
		out, changed := ensureFakeIPFilter(in, []string{"+.example.com"})
		assert.True(t, changed)
		assert.Equal(t, "dns:\n  fake-ip-filter:\n    - '*.lan'\n    - +.example.com\n  nameserver:\n    - 8.8.8.8\n", out)
	})

	t.Run("extends inline list", func(t *testing.T) {
		out, changed := ensureFakeIPFilter("dns:\n  fake-ip-filter: ['*.lan']\n", []string{"+.example.com"})
		assert.True(t, changed)
		assert.Equal(t, "dns:\n  fake-ip-filter: ['*.lan', +.example.com]\n", out)
	})
}

func TestEnsureNameserverPolicy(t *testing.T) {
	servers := []string{"10.0.0.2"}

	t.Run("creates mapping at end of dns block", func(t *testing.T) {
		out, changed := ensureNameserverPolicy("dns:\n  enable: true\nproxies:\n", []string{"+.corp.lan"}, servers)
		assert.True(t, changed)
		assert.Equal(t, "dns:\n  enable: true\n  nameserver-policy:\n    \"+.corp.lan\": [\"10.0.0.2\"]\nproxies:\n", out)
	})

	t.Run("appends only missing entries", func(t *testing.T) {
		in := "dns:\n  nameserver-policy:\n    \"+.corp.lan\": [\"10.0.0.2\"]\n"
		out, changed := ensureNameserverPolicy(in, []string{"+.corp.lan", "+.other.lan"}, servers)
		assert.True(t, changed)
		assert.Equal(t, in+"    \"+.other.lan\": [\"10.0.0.2\"]\n", out)

		_, changed = ensureNameserverPolicy(out, []string{"+.corp.lan", "+.other.lan"}, servers)
		assert.False(t, changed)
	})

	t.Run("pattern under fake-ip-filter does not count as covered", func(t *testing.T) {
		in := "dns:\n  fake-ip-filter:\n    - +.corp.lan\n"
		out, changed := ensureNameserverPolicy(in, []string{"+.corp.lan"}, servers)
		assert.True(t, changed)
		assert.Contains(t, out, "  nameserver-policy:\n    \"+.corp.lan\": [\"10.0.0.2\"]\n")
	})

	t.Run("no dns block or no servers is a no-op", func(t *testing.T) {
		_, changed := ensureNameserverPolicy("port: 7890\n", []string{"+.x"}, servers)
		assert.False(t, changed)
		_, changed = ensureNameserverPolicy("dns:\n  enable: true\n", []string{"+.x"}, nil)
		assert.False(t, changed)
	})
}

func TestEnsureBypassRules(t *testing.T) {
	t.Run("inserts missing rules at top", func(t *testing.T) {
		in := "rules:\n  - MATCH,DIRECT\n"
		out, changed := ensureBypassRules(in, []string{"10.0.0.0/8"}, []string{"example.com"})
		assert.True(t, changed)
		assert.Equal(t, "rules:\n- IP-CIDR,10.0.0.0/8,DIRECT,no-resolve\n- DOMAIN-SUFFIX,example.com,DIRECT\n  - MATCH,DIRECT\n", out)
	})

	t.Run("present rules are not duplicated regardless of indent", func(t *testing.T) {
		in := "rules:\n  - IP-CIDR,10.0.0.0/8,DIRECT,no-resolve\n  - MATCH,DIRECT\n"
		out, changed := ensureBypassRules(in, []string{"10.0.0.0/8"}, []string{"example.com"})
		assert.True(t, changed)
		assert.Equal(t, "rules:\n- DOMAIN-SUFFIX,example.com,DIRECT\n  - IP-CIDR,10.0.0.0/8,DIRECT,no-resolve\n  - MATCH,DIRECT\n", out)
	})

	t.Run("no rules header is a no-op", func(t *testing.T) {
		in := "port: 7890\nproxies:\n"
		out, changed := ensureBypassRules(in, []string{"10.0.0.0/8"}, nil)
		assert.False(t, changed)
		assert.Equal(t, in, out)
	})
}

func TestBypassClassicSkipsMihomoOnlySteps(t *testing.T) {
	doc := "port: 7890\ndns:\n  enable: true\nrules:\n  - MATCH,DIRECT\n"
	st := bypassState()
	st.Dialect = DialectClassic
	st.InternalDNS = []string{"10.0.0.2"}

	res, err := Reconcile([]byte(doc), st)
	require.NoError(t, err)
	out := string(res.Doc)

	assert.NotContains(t, out, "tun:")
	assert.NotContains(t, out, "nameserver-policy:")
	assert.Contains(t, out, "  fake-ip-filter:\n    - +.example.com\n")
	assert.Contains(t, out, "- IP-CIDR,10.0.0.0/8,DIRECT,no-resolve\n")
	assert.Len(t, res.Report.Warnings, 2)
}

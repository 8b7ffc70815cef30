package clashpatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGlobRegexp(t *testing.T) {
	cases := []struct {
		pat   string
		name  string
		match bool
	}{
		{"🇺🇲 美国 *", "🇺🇲 美国 01", true},
		{"🇺🇲 美国 *", "🇺🇲 美国", false},
		{"US *", "US New York", true},
		{"US *", "AUS 01", false},
		{"?K *", "HK 01", true},
		{"node-[0-9]", "node-5", true},
		{"node-[0-9]", "node-x", false},
		{"node-[!0-9]", "node-x", true},
		{"node-[!0-9]", "node-5", false},
		{"a.b", "a.b", true},
		{"a.b", "axb", false},
		// Unterminated class is a literal bracket.
		{"x[y", "x[y", true},
		{"x[y", "xay", false},
	}
	for _, tc := range cases {
		rx, err := globRegexp(tc.pat)
		require.NoError(t, err, tc.pat)
		assert.Equal(t, tc.match, rx.MatchString(tc.name), "%s vs %s", tc.pat, tc.name)
	}
}

func TestMatchesAny(t *testing.T) {
	assert.True(t, MatchesAny("🇺🇸 洛杉矶", DefaultNodePatterns))
	assert.True(t, MatchesAny("US Seattle", DefaultNodePatterns))
	assert.False(t, MatchesAny("🇯🇵 东京", DefaultNodePatterns))

	assert.True(t, MatchesAny("node-US-3", []string{"re:US-\\d+"}))
	assert.False(t, MatchesAny("node-US-3", []string{"re:^US"}))
	// A broken regex matches nothing instead of failing the run.
	assert.False(t, MatchesAny("anything", []string{"re:["}))
}

func TestResolveNodes(t *testing.T) {
	all := []string{"🇺🇲 美国 02", "🇯🇵 东京 01", "🇺🇲 美国 01", "relay"}

	got := ResolveNodes(all, DefaultNodePatterns, []string{"relay"}, DefaultFallbackNodes)
	assert.Equal(t, []string{"🇺🇲 美国 02", "🇺🇲 美国 01"}, got)

	// Protected names never match even when the pattern covers them.
	got = ResolveNodes(all, []string{"*"}, []string{"relay"}, nil)
	assert.Equal(t, []string{"🇺🇲 美国 02", "🇯🇵 东京 01", "🇺🇲 美国 01"}, got)

	// Zero matches fall back to the fixed list.
	got = ResolveNodes(all, []string{"🇰🇷 *"}, nil, DefaultFallbackNodes)
	assert.Equal(t, DefaultFallbackNodes, got)
}

func TestSelectDialerCandidates(t *testing.T) {
	names := []string{"🚀 前置-SOCKS5", "US 01", "jp 01", "us 02"}

	st := NewState()
	rep := &Report{}
	got := selectDialerCandidates(names, st, rep)
	assert.Equal(t, []string{"US 01", "jp 01", "us 02"}, got)
	assert.Empty(t, rep.Warnings)

	t.Run("regex filters case-insensitively", func(t *testing.T) {
		st := NewState()
		st.DialerMode = DialerRegex
		st.DialerRegex = "^us"
		rep := &Report{}
		got := selectDialerCandidates(names, st, rep)
		assert.Equal(t, []string{"US 01", "us 02"}, got)
		assert.Empty(t, rep.Warnings)
	})

	t.Run("empty pattern falls back with warning", func(t *testing.T) {
		st := NewState()
		st.DialerMode = DialerRegex
		rep := &Report{}
		got := selectDialerCandidates(names, st, rep)
		assert.Equal(t, []string{"US 01", "jp 01", "us 02"}, got)
		assert.Len(t, rep.Warnings, 1)
	})

	t.Run("invalid regex falls back with warning", func(t *testing.T) {
		st := NewState()
		st.DialerMode = DialerRegex
		st.DialerRegex = "("
		rep := &Report{}
		got := selectDialerCandidates(names, st, rep)
		assert.Equal(t, []string{"US 01", "jp 01", "us 02"}, got)
		assert.Len(t, rep.Warnings, 1)
	})

	t.Run("zero matches fall back with warning", func(t *testing.T) {
		st := NewState()
		st.DialerMode = DialerRegex
		st.DialerRegex = "^kr"
		rep := &Report{}
		got := selectDialerCandidates(names, st, rep)
		assert.Equal(t, []string{"US 01", "jp 01", "us 02"}, got)
		assert.Len(t, rep.Warnings, 1)
	})

	t.Run("only the relay itself yields nil with warning", func(t *testing.T) {
		st := NewState()
		rep := &Report{}
		got := selectDialerCandidates([]string{st.Relay.Name}, st, rep)
		assert.Nil(t, got)
		assert.Len(t, rep.Warnings, 1)
	})
}

func TestResolveSelectGroup(t *testing.T) {
	groups := []string{"🧪 前置出口-择优", "Proxy", "节点选择"}

	name, ok := resolveSelectGroup(groups, "Proxy")
	require.True(t, ok)
	assert.Equal(t, "Proxy", name)

	// Absent override falls through to the conventional names, first
	// fallback in probe order wins.
	name, ok = resolveSelectGroup(groups, "Nope")
	require.True(t, ok)
	assert.Equal(t, "节点选择", name)

	name, ok = resolveSelectGroup([]string{"🚀 节点选择", "Proxy"}, "")
	require.True(t, ok)
	assert.Equal(t, "🚀 节点选择", name)

	_, ok = resolveSelectGroup([]string{"Weird"}, "")
	assert.False(t, ok)

	_, ok = resolveSelectGroup(nil, "Proxy")
	assert.False(t, ok)
}

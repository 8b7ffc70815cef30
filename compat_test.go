package clashpatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectDialect(t *testing.T) {
	cases := []struct {
		doc  string
		want Dialect
	}{
		{"proxies:\n  -\n    name: 'A'\n    dialer-proxy: 'G'\n", DialectMihomo},
		{"geodata-mode: true\n", DialectMihomo},
		{"sniffer:\n  enable: true\n", DialectMihomo},
		{"external-controller: 127.0.0.1:9090\n", DialectMihomo},
		{"port: 7890\nproxies:\nproxy-groups:\nrules:\n", DialectClassic},
		{"", DialectClassic},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, DetectDialect([]byte(tc.doc)), tc.doc)
	}
}

func TestResolveDialect(t *testing.T) {
	mihomoDoc := []byte("external-controller: 127.0.0.1:9090\n")

	d, err := ResolveDialect("auto", mihomoDoc)
	require.NoError(t, err)
	assert.Equal(t, DialectMihomo, d)

	d, err = ResolveDialect("", []byte("port: 7890\n"))
	require.NoError(t, err)
	assert.Equal(t, DialectClassic, d)

	// Explicit modes ignore the document contents.
	d, err = ResolveDialect("classic", mihomoDoc)
	require.NoError(t, err)
	assert.Equal(t, DialectClassic, d)

	d, err = ResolveDialect(" MIHOMO ", []byte("port: 7890\n"))
	require.NoError(t, err)
	assert.Equal(t, DialectMihomo, d)

	_, err = ResolveDialect("meta", mihomoDoc)
	require.Error(t, err)
}

func TestCheckRelayChainDialect(t *testing.T) {
	assert.NoError(t, checkRelayChainDialect(DialectMihomo))
	err := checkRelayChainDialect(DialectClassic)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDialect)
}

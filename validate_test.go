package clashpatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateDocument(t *testing.T) {
	full := []byte("port: 7891\nproxies:\n  - name: a\nproxy-groups:\n  - name: g\nrules:\n  - MATCH,DIRECT\n")
	require.NoError(t, validateDocument(full, AllFeatures()))

	t.Run("malformed yaml", func(t *testing.T) {
		err := validateDocument([]byte("a: [1,\n"), Features{Bypass: true})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidDocument)
	})

	t.Run("top level not a mapping", func(t *testing.T) {
		err := validateDocument([]byte("- a\n- b\n"), Features{Bypass: true})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidDocument)
	})

	t.Run("relay chain requires the managed sections", func(t *testing.T) {
		err := validateDocument([]byte("proxies: []\nproxy-groups: []\n"), Features{RelayChain: true})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidDocument)

		// Bypass alone does not.
		assert.NoError(t, validateDocument([]byte("proxies: []\n"), Features{Bypass: true}))
	})
}

package clashpatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReportSummary(t *testing.T) {
	features := AllFeatures()

	t.Run("unchanged", func(t *testing.T) {
		r := &Report{}
		assert.Equal(t, "No changes needed. (features=resi,bypass)", r.Summary(StatusUnchanged, features))
	})

	t.Run("planned", func(t *testing.T) {
		r := &Report{}
		r.Notef("resi: ensured top-level port %d", 7891)
		r.Notef("bypass: inserted DIRECT rules into rules:")
		assert.Equal(t, `Dry-run: changes would be applied. (features=resi,bypass)
Planned changes:
- resi: ensured top-level port 7891
- bypass: inserted DIRECT rules into rules:`, r.Summary(StatusPlanned, features))
	})

	t.Run("written with warnings", func(t *testing.T) {
		r := &Report{}
		r.Notef("resi: ensured residential relay in proxies:")
		r.Warnf("resi: dialer regex matched 0 nodes; falling back to all (pattern=%q)", "^kr")
		assert.Equal(t, `Patched successfully. (features=resi,bypass)
Applied changes:
- resi: ensured residential relay in proxies:
Warnings:
- resi: dialer regex matched 0 nodes; falling back to all (pattern="^kr")`, r.Summary(StatusWritten, features))
	})

	t.Run("unchanged still reports warnings", func(t *testing.T) {
		r := &Report{}
		r.Warnf("bypass: compat=classic -> skipping tun.route-exclude-address injection")
		assert.Equal(t, `No changes needed. (features=bypass)
Warnings:
- bypass: compat=classic -> skipping tun.route-exclude-address injection`, r.Summary(StatusUnchanged, Features{Bypass: true}))
	})
}

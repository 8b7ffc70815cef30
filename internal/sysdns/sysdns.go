// Package sysdns discovers the host's currently configured DNS resolvers.
// Discovery is best-effort: a host where it fails simply yields an empty
// list, which callers surface as a warning rather than an error.
package sysdns

import (
	"net/netip"
	"strings"
)

// Servers returns the system resolvers, de-duplicated in first-seen order
// with private (RFC1918/ULA) addresses sorted to the front: on a
// split-horizon network the internal resolver is the one that matters for
// allowlisted domains.
func Servers() []string {
	return order(platformServers())
}

func order(servers []string) []string {
	seen := make(map[string]struct{}, len(servers))
	var private, public []string
	for _, s := range servers {
		addr, err := netip.ParseAddr(strings.TrimSpace(s))
		if err != nil {
			continue
		}
		key := addr.String()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if addr.IsPrivate() || addr.IsLoopback() {
			private = append(private, key)
		} else {
			public = append(public, key)
		}
	}
	return append(private, public...)
}

package clashpatch

import (
	"fmt"
	"strings"
)

// Dialect identifies which variant of the Clash configuration format a
// document speaks. The richer mihomo (Clash.Meta) dialect supports
// dialer-proxy chaining, TUN routing, sniffing and remote control; the
// classic dialect does not.
type Dialect string

const (
	DialectMihomo  Dialect = "mihomo"
	DialectClassic Dialect = "classic"
)

// dialectMarkers are capability keys whose presence anywhere in the text
// implies the mihomo dialect. Detection is best-effort: the document is
// patched offline, so the running core cannot be asked.
var dialectMarkers = []string{
	"dialer-proxy:",
	"geodata-mode:",
	"sniffer:",
	"external-controller:",
}

// DetectDialect classifies a document by scanning for mihomo capability
// markers.
func DetectDialect(doc []byte) Dialect {
	text := string(doc)
	for _, m := range dialectMarkers {
		if strings.Contains(text, m) {
			return DialectMihomo
		}
	}
	return DialectClassic
}

// ResolveDialect turns a user-supplied mode (auto|mihomo|classic) into a
// concrete dialect for the given document.
func ResolveDialect(mode string, doc []byte) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", "auto":
		return DetectDialect(doc), nil
	case string(DialectMihomo):
		return DialectMihomo, nil
	case string(DialectClassic):
		return DialectClassic, nil
	default:
		return "", fmt.Errorf("invalid compat mode %q (use auto, mihomo or classic)", mode)
	}
}

// checkRelayChainDialect gates the relay-chain feature: dialer-proxy only
// exists in the mihomo dialect, so requesting it against classic is fatal.
func checkRelayChainDialect(d Dialect) error {
	if d != DialectMihomo {
		return fmt.Errorf("%w: relay-chain injection needs dialer-proxy support (mihomo/Clash.Meta); set compat to mihomo or disable the %s feature", ErrDialect, FeatureRelayChain)
	}
	return nil
}

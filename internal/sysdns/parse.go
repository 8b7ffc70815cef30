package sysdns

import (
	"bufio"
	"bytes"
	"strings"
)

// parseResolvConf extracts nameserver addresses from resolv.conf style
// content.
func parseResolvConf(data []byte) []string {
	var out []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) >= 2 && fields[0] == "nameserver" {
			out = append(out, fields[1])
		}
	}
	return out
}

// parseScutilDNS extracts nameserver addresses from `scutil --dns` output
// ("nameserver[0] : 10.0.0.2" lines).
func parseScutilDNS(data []byte) []string {
	var out []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !strings.HasPrefix(line, "nameserver[") {
			continue
		}
		_, addr, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		if addr = strings.TrimSpace(addr); addr != "" {
			out = append(out, addr)
		}
	}
	return out
}

//go:build darwin

package sysdns

import "os/exec"

func platformServers() []string {
	out, err := exec.Command("scutil", "--dns").CombinedOutput()
	if err != nil {
		return nil
	}
	return parseScutilDNS(out)
}

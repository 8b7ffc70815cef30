package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"

	clashpatch "github.com/eggyrooch-blip/patch-clash-subscription"
	"github.com/eggyrooch-blip/patch-clash-subscription/internal/sysdns"
)

// Desired-state inputs are layered, lowest to highest priority: built-in
// defaults, the optional settings file, then environment variables (which
// a loaded .env file may have populated). The result is one immutable
// State handed to the engine; nothing in the engine reads the environment.

// Environment variable names, kept compatible with earlier revisions of
// this tool.
const (
	envRelayServer   = "RESI_SERVER"
	envRelayPort     = "RESI_PORT"
	envRelayUsername = "RESI_USERNAME"
	envRelayPassword = "RESI_PASSWORD"
	envRelayName     = "RESI_PROXY_NAME"
	envDialerGroup   = "RESI_GROUP_DIALER_NAME"
	envSelectGroup   = "RESI_GROUP_NODE_SELECT_NAME"
	envSkipSelect    = "RESI_SKIP_NODE_SELECT_REWRITE"
	envDialerMode    = "RESI_DIALER_MODE"
	envDialerRegex   = "RESI_DIALER_REGEX"
	envBypassCIDRs   = "BYPASS_IP_CIDRS"
	envBypassDomains = "BYPASS_DOMAINS"
	envInternalDNS   = "BYPASS_INTERNAL_DNS"
)

// settingsFile is the optional YAML settings file. Decoded strictly so a
// misspelled key fails loudly instead of being ignored.
type settingsFile struct {
	Relay struct {
		Name     string `yaml:"name"`
		Server   string `yaml:"server"`
		Port     int    `yaml:"port"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
	} `yaml:"relay"`
	DialerGroup     string   `yaml:"dialer-group"`
	SelectGroup     string   `yaml:"select-group"`
	SkipSelectGroup *bool    `yaml:"skip-select-group"`
	DialerMode      string   `yaml:"dialer-mode"`
	DialerRegex     string   `yaml:"dialer-regex"`
	BypassCIDRs     []string `yaml:"bypass-cidrs"`
	BypassDomains   []string `yaml:"bypass-domains"`
	InternalDNS     []string `yaml:"internal-dns"`
}

// buildState assembles the desired state. The returned warnings are
// surfaced with the run report (they do not abort).
func buildState(settingsPath string) (*clashpatch.State, []string, error) {
	st := clashpatch.NewState()
	var warnings []string

	if settingsPath != "" {
		data, err := os.ReadFile(settingsPath)
		switch {
		case os.IsNotExist(err):
			// An explicitly named settings file must exist.
			return nil, nil, fmt.Errorf("settings file: %w", err)
		case err != nil:
			return nil, nil, fmt.Errorf("settings file: %w", err)
		default:
			var sf settingsFile
			if err := yaml.UnmarshalWithOptions(data, &sf, yaml.Strict()); err != nil {
				return nil, nil, fmt.Errorf("settings file %s: %w", settingsPath, err)
			}
			applySettings(st, &sf)
		}
	}

	if w := applyEnv(st); len(w) > 0 {
		warnings = append(warnings, w...)
	}
	return st, warnings, nil
}

func applySettings(st *clashpatch.State, sf *settingsFile) {
	if sf.Relay.Name != "" {
		st.Relay.Name = sf.Relay.Name
	}
	if sf.Relay.Server != "" {
		st.Relay.Server = sf.Relay.Server
	}
	if sf.Relay.Port != 0 {
		st.Relay.Port = sf.Relay.Port
	}
	if sf.Relay.Username != "" {
		st.Relay.Username = sf.Relay.Username
	}
	if sf.Relay.Password != "" {
		st.Relay.Password = sf.Relay.Password
	}
	if sf.DialerGroup != "" {
		st.DialerGroupName = sf.DialerGroup
	}
	if sf.SelectGroup != "" {
		st.SelectGroupName = sf.SelectGroup
	}
	if sf.SkipSelectGroup != nil {
		st.SkipSelectGroup = *sf.SkipSelectGroup
	}
	if sf.DialerMode != "" {
		st.DialerMode = clashpatch.DialerMode(sf.DialerMode)
	}
	if sf.DialerRegex != "" {
		st.DialerRegex = sf.DialerRegex
	}
	if len(sf.BypassCIDRs) > 0 {
		st.BypassCIDRs = append([]string(nil), sf.BypassCIDRs...)
	}
	if len(sf.BypassDomains) > 0 {
		st.BypassDomains = trimDomains(sf.BypassDomains)
	}
	if len(sf.InternalDNS) > 0 {
		st.InternalDNS = append([]string(nil), sf.InternalDNS...)
	}
}

func applyEnv(st *clashpatch.State) []string {
	var warnings []string

	if v := envStr(envRelayServer); v != "" {
		st.Relay.Server = v
	}
	if v := envStr(envRelayPort); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			st.Relay.Port = p
		} else {
			warnings = append(warnings, fmt.Sprintf("invalid %s=%q; keeping %d", envRelayPort, v, st.Relay.Port))
		}
	}
	if v := envStr(envRelayUsername); v != "" {
		st.Relay.Username = v
	}
	if v := envStr(envRelayPassword); v != "" {
		st.Relay.Password = v
	}
	if v := envStr(envRelayName); v != "" {
		st.Relay.Name = v
	}
	if v := envStr(envDialerGroup); v != "" {
		st.DialerGroupName = v
	}
	if v := envStr(envSelectGroup); v != "" {
		st.SelectGroupName = v
	}
	if truthyEnv(envSkipSelect) {
		st.SkipSelectGroup = true
	}
	if v := envStr(envDialerMode); v != "" {
		st.DialerMode = clashpatch.DialerMode(strings.ToLower(v))
	}
	if v := envStr(envDialerRegex); v != "" {
		st.DialerRegex = v
	}
	if list := splitCSV(os.Getenv(envBypassCIDRs)); len(list) > 0 {
		st.BypassCIDRs = list
	}
	if list := splitCSV(os.Getenv(envBypassDomains)); len(list) > 0 {
		st.BypassDomains = trimDomains(list)
	}
	if raw := envStr(envInternalDNS); raw != "" {
		servers, w := resolveInternalDNS(raw)
		st.InternalDNS = servers
		warnings = append(warnings, w...)
	}
	return warnings
}

// resolveInternalDNS handles the special "system"/"auto" value by asking
// the host for its current resolvers.
func resolveInternalDNS(raw string) ([]string, []string) {
	if v := strings.ToLower(strings.TrimSpace(raw)); v == "system" || v == "auto" {
		servers := sysdns.Servers()
		if len(servers) == 0 {
			return nil, []string{fmt.Sprintf("bypass: %s=%s but no system DNS detected", envInternalDNS, v)}
		}
		return servers, nil
	}
	return splitCSV(raw), nil
}

func envStr(name string) string {
	return strings.TrimSpace(os.Getenv(name))
}

func truthyEnv(name string) bool {
	switch strings.ToLower(envStr(name)) {
	case "1", "true", "yes", "y", "on":
		return true
	}
	return false
}

func splitCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func trimDomains(domains []string) []string {
	out := make([]string, 0, len(domains))
	for _, d := range domains {
		if d = strings.TrimPrefix(strings.TrimSpace(d), "."); d != "" {
			out = append(out, d)
		}
	}
	return out
}

package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	clashpatch "github.com/eggyrooch-blip/patch-clash-subscription"
	"github.com/eggyrooch-blip/patch-clash-subscription/internal/sysdns"
)

type options struct {
	features       string
	noRelayChain   bool
	noBypass       bool
	compat         string
	dryRun         bool
	diff           bool
	changes        bool
	explain        bool
	printSystemDNS bool
	noBackup       bool
	envFile        string
	noEnvFile      bool
	settings       string
	verbose        bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "clashpatch [flags] <subscription.yaml>",
		Short: "Idempotently patch a Clash/mihomo subscription with a residential egress chain",
		Long: "clashpatch rewrites a Clash or mihomo subscription file in place, injecting a\n" +
			"residential SOCKS5 relay that dials through the subscription's own nodes, plus\n" +
			"optional TUN/DNS/rule bypasses for local and allowlisted traffic. Re-running\n" +
			"against an already patched file changes nothing.",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.features, "features", "", "comma-separated feature list: resi,bypass (default: both)")
	f.BoolVar(&opts.noRelayChain, "no-resi-chain", false, "disable residential chain patching (resi)")
	f.BoolVar(&opts.noBypass, "no-bypass", false, "disable TUN/DNS bypass patching (bypass)")
	f.StringVar(&opts.compat, "compat", "auto", "compatibility mode: auto|mihomo|classic")
	f.BoolVar(&opts.dryRun, "dry-run", false, "do not write the file; only report")
	f.BoolVar(&opts.diff, "diff", false, "print a unified diff of intended changes (no write)")
	f.BoolVar(&opts.changes, "changes", false, "print intended changes as a JSON merge patch (no write)")
	f.BoolVar(&opts.explain, "explain", false, "explain what the selected features would do and exit")
	f.BoolVar(&opts.printSystemDNS, "print-system-dns", false, "print detected system DNS servers and exit")
	f.BoolVar(&opts.noBackup, "no-backup", false, "do not write a timestamped backup")
	f.StringVar(&opts.envFile, "env-file", ".env", "load environment variables from this file")
	f.BoolVar(&opts.noEnvFile, "no-env-file", false, "do not load a .env file")
	f.StringVar(&opts.settings, "settings", "", "optional YAML settings file")
	f.BoolVar(&opts.verbose, "verbose", false, "enable debug logging")
	return cmd
}

func run(cmd *cobra.Command, args []string, opts *options) error {
	setupLogging(opts.verbose)

	if !opts.noEnvFile && opts.envFile != "" {
		// The .env file wins over inherited environment: it is the
		// explicit local configuration source.
		if err := godotenv.Overload(opts.envFile); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("env file %s: %w", opts.envFile, err)
			}
			slog.Debug("no env file", "path", opts.envFile)
		} else {
			slog.Debug("loaded env file", "path", opts.envFile)
		}
	}

	if opts.printSystemDNS {
		for _, ns := range sysdns.Servers() {
			fmt.Fprintln(cmd.OutOrStdout(), ns)
		}
		return nil
	}

	if len(args) != 1 {
		return errors.New("exactly one subscription file argument is required")
	}
	path := args[0]

	doc, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	features, err := clashpatch.ParseFeatures(opts.features)
	if err != nil {
		return err
	}
	if opts.noRelayChain {
		features.RelayChain = false
	}
	if opts.noBypass {
		features.Bypass = false
	}

	dialect, err := clashpatch.ResolveDialect(opts.compat, doc)
	if err != nil {
		return err
	}

	st, warnings, err := buildState(opts.settings)
	if err != nil {
		return err
	}
	st.Features = features
	st.Dialect = dialect

	if opts.explain {
		fmt.Fprintln(cmd.OutOrStdout(), explain(st))
		fmt.Fprintf(cmd.OutOrStdout(), "\nCompatibility: %s\n", dialect)
		return nil
	}

	res, err := clashpatch.Reconcile(doc, st)
	if err != nil {
		return err
	}
	for _, w := range warnings {
		res.Report.Warnf("%s", w)
	}

	out := cmd.OutOrStdout()
	switch {
	case opts.diff:
		diff, err := clashpatch.UnifiedDiff(doc, res.Doc, path, path+" (patched)")
		if err != nil {
			return err
		}
		if strings.TrimSpace(diff) == "" {
			fmt.Fprintln(out, "No diff (already patched).")
		} else {
			fmt.Fprint(out, diff)
		}
		return nil

	case opts.changes:
		fmt.Fprintln(out, res.Report.Summary(previewStatus(res.Changed), features))
		if res.Changed {
			patch, err := clashpatch.MergePatch(doc, res.Doc)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(patch))
		}
		return nil

	case opts.dryRun || !res.Changed:
		fmt.Fprintln(out, res.Report.Summary(previewStatus(res.Changed), features))
		return nil
	}

	if !opts.noBackup {
		if err := writeBackup(path, doc); err != nil {
			return err
		}
	}
	if err := writeInPlace(path, res.Doc); err != nil {
		return err
	}
	fmt.Fprintln(out, res.Report.Summary(clashpatch.StatusWritten, features))
	return nil
}

func previewStatus(changed bool) clashpatch.Status {
	if changed {
		return clashpatch.StatusPlanned
	}
	return clashpatch.StatusUnchanged
}

func setupLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// writeBackup copies the original bytes to <path>.bak.<timestamp>. Backup
// then overwrite is not transactional; this tool targets local files, not
// shared state.
func writeBackup(path string, original []byte) error {
	name := fmt.Sprintf("%s.bak.%s", path, time.Now().Format("20060102-150405"))
	if err := os.WriteFile(name, original, fileMode(path)); err != nil {
		return fmt.Errorf("backup: %w", err)
	}
	slog.Debug("wrote backup", "path", name)
	return nil
}

func writeInPlace(path string, doc []byte) error {
	return os.WriteFile(path, doc, fileMode(path))
}

func fileMode(path string) os.FileMode {
	if info, err := os.Stat(path); err == nil {
		return info.Mode().Perm()
	}
	return 0o644
}

func explain(st *clashpatch.State) string {
	var b strings.Builder
	b.WriteString("clashpatch rewrites a Clash.Meta/mihomo-style subscription YAML in place (idempotent).\n\n")
	fmt.Fprintf(&b, "Enabled features: %s\n", st.Features)
	if st.Features.RelayChain {
		b.WriteString("\n- resi: inject/maintain the residential chain layout:\n")
		fmt.Fprintf(&b, "  - proxy: %s (dialer-proxy -> %s)\n", st.Relay.Name, st.DialerGroupName)
		fmt.Fprintf(&b, "  - group: %s (url-test over the subscription's nodes)\n", st.DialerGroupName)
		fmt.Fprintf(&b, "  - appends the relay into the user-facing selection group\n")
		fmt.Fprintf(&b, "  - ensures top-level port: %d\n", st.Port)
	}
	if st.Features.Bypass {
		b.WriteString("\n- bypass: keep RFC1918 + allowlisted domains always DIRECT (system proxy + TUN):\n")
		fmt.Fprintf(&b, "  - tun.route-exclude-address: %s\n", strings.Join(st.BypassCIDRs, ", "))
		fmt.Fprintf(&b, "  - bypass domains: %s\n", strings.Join(st.BypassDomains, ", "))
		fmt.Fprintf(&b, "  - dns.fake-ip-filter: %s\n", strings.Join(st.FakeIPFilters(), ", "))
		if len(st.InternalDNS) > 0 {
			fmt.Fprintf(&b, "  - dns.nameserver-policy via: %s\n", strings.Join(st.InternalDNS, ", "))
		}
		b.WriteString("  - rules: DIRECT entries inserted at the top as a safety net\n")
	}
	b.WriteString("\nRollback: restore from the generated .bak.* file (unless --no-backup was used).")
	return b.String()
}

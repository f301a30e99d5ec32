// Command netwhy runs one-shot network diagnostics.
//
// Pings a target (TCP connect to port 80, ICMP fallback on total loss),
// resolves a few hostnames, optionally checks an HTTP URL and explains
// the results in plain language.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/dmitriimaksimovdevelop/netwhy/internal/config"
	diffpkg "github.com/dmitriimaksimovdevelop/netwhy/internal/diff"
	"github.com/dmitriimaksimovdevelop/netwhy/internal/model"
	"github.com/dmitriimaksimovdevelop/netwhy/internal/orchestrator"
	"github.com/dmitriimaksimovdevelop/netwhy/internal/output"
)

var (
	version = "0.1.0"
)

// Exit statuses besides the report's own 0/1.
const (
	exitError       = 1
	exitUsage       = 2
	exitInterrupted = 130
)

// diagnose runs the probes for cfg. Tests replace it.
var diagnose = func(ctx context.Context, cfg config.ProbeConfig, progress *output.Progress) (*model.Report, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	probes := orchestrator.DefaultProbes(cfg, progress)
	return orchestrator.New(probes, cfg, progress).HandleSignals().Run(ctx)
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// rootFlags holds the values of the root command's flags.
type rootFlags struct {
	target     string
	count      int
	timeout    float64
	dns        []string
	noDNS      bool
	noPing     bool
	http       string
	summary    bool
	json       bool
	profile    string
	parallel   bool
	icmp       string
	interval   float64
	query      string
	configPath string
	output     string
	quiet      bool
	verbose    bool
}

// run executes the CLI and returns the process exit status.
func run(args []string, stdout, stderr io.Writer) int {
	exitCode := 0
	rootCmd := newRootCmd(&exitCode)
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	err := rootCmd.Execute()
	switch {
	case err == nil:
		return exitCode
	case errors.Is(err, orchestrator.ErrInterrupted):
		fmt.Fprintln(stderr, "\nInterrupted by user")
		return exitInterrupted
	case errors.Is(err, config.ErrInvalidConfig):
		fmt.Fprintf(stderr, "Error: %v\nRun 'netwhy --help' for usage.\n", err)
		return exitUsage
	default:
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}
}

func newRootCmd(exitCode *int) *cobra.Command {
	var f rootFlags

	rootCmd := &cobra.Command{
		Use:   "netwhy",
		Short: "One-shot network diagnostics with plain-language answers",
		Long: `netwhy answers "why is my network broken?" in one command.

Pings a target (TCP connect to port 80, falling back to ICMP only when
every TCP attempt fails), resolves a list of hostnames, optionally checks
an HTTP URL, and explains the combined results.

Exit status: 0 when nothing is wrong, 1 when the ping was fully lossy,
every DNS lookup failed or the HTTP check failed, 2 on invalid options,
130 when interrupted.`,
		Example: `  netwhy                              # Standard diagnosis
  netwhy --target example.com --count 10
  netwhy --dns example.com --http https://example.com --summary
  netwhy --json --query '.ping.packet_loss'`,
		Version:       version,
		Args:          usageArgs(cobra.NoArgs),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := buildConfig(cmd.Flags(), f)
			if err != nil {
				return err
			}

			enabled := output.StderrIsTerminal() && !f.quiet
			progress := output.NewVerboseProgress(enabled, f.verbose)
			progress.SetOutput(cmd.ErrOrStderr())

			var query *output.Query
			if f.query != "" {
				if query, err = output.ParseQuery(f.query); err != nil {
					return fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
				}
			}

			ctx := cmd.Context()
			report, err := diagnose(ctx, cfg, progress)
			if err != nil {
				return err
			}

			if err := writeReport(ctx, cmd.OutOrStdout(), f, query, report); err != nil {
				return err
			}
			*exitCode = report.ExitCode()
			return nil
		},
	}

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
	})

	def := config.DefaultConfig()
	flags := rootCmd.Flags()
	flags.StringVar(&f.target, "target", def.Target, "Target hostname or IP address for ping checks")
	flags.IntVarP(&f.count, "count", "c", def.Count, "Number of ping attempts")
	flags.Float64VarP(&f.timeout, "timeout", "t", def.Timeout.Seconds(), "Timeout for individual checks in seconds")
	flags.StringArrayVar(&f.dns, "dns", nil, "DNS check for hostname (repeatable or comma-separated, default: google.com, cloudflare.com)")
	flags.BoolVar(&f.noDNS, "no-dns", false, "Disable DNS checks")
	flags.BoolVar(&f.noPing, "no-ping", false, "Disable the ping probe")
	flags.StringVar(&f.http, "http", "", "HTTP reachability check for URL")
	flags.BoolVarP(&f.summary, "summary", "s", false, "Only show summary, no detailed output")
	flags.BoolVarP(&f.json, "json", "j", false, "Output results as JSON")
	flags.StringVarP(&f.profile, "profile", "p", def.Profile, "Probe profile: "+strings.Join(config.ProfileNames(), ", "))
	flags.BoolVar(&f.parallel, "parallel", false, "Run ping, DNS and HTTP probes concurrently")
	flags.StringVar(&f.icmp, "icmp", string(def.ICMP), "ICMP fallback backend: exec, native, auto, off")
	flags.Float64Var(&f.interval, "interval", 0, "Pause between TCP ping attempts in seconds")
	flags.StringVarP(&f.query, "query", "q", "", "jq expression applied to the JSON report (implies --json)")
	flags.StringVar(&f.configPath, "config", "", "YAML config file")
	flags.StringVarP(&f.output, "output", "o", "-", "Output file path (- for stdout)")
	flags.BoolVar(&f.quiet, "quiet", false, "Suppress progress output")
	flags.BoolVarP(&f.verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(newDiffCmd(), newRulesCmd(), newMCPCmd())
	return rootCmd
}

// usageArgs reports positional argument errors as invalid usage.
func usageArgs(validate cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := validate(cmd, args); err != nil {
			return fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
		}
		return nil
	}
}

// buildConfig layers defaults, the .env file, the YAML file, NETWHY_*
// variables and finally the flags the user actually set.
func buildConfig(fs *pflag.FlagSet, f rootFlags) (config.ProbeConfig, error) {
	if err := config.LoadDotEnv(); err != nil {
		return config.ProbeConfig{}, err
	}

	cfg := config.DefaultConfig()
	if f.configPath != "" {
		if err := cfg.LoadFile(f.configPath); err != nil {
			return cfg, err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return cfg, err
	}

	// An explicit profile resets the budget; explicit count/timeout/interval
	// flags below still win over it.
	if fs.Changed("profile") {
		cfg.ApplyProfile(f.profile)
	}
	if fs.Changed("target") {
		cfg.Target = f.target
	}
	if fs.Changed("count") {
		cfg.Count = f.count
	}
	if fs.Changed("timeout") {
		cfg.Timeout = config.Seconds(f.timeout)
	}
	if fs.Changed("interval") {
		cfg.Interval = config.Seconds(f.interval)
	}
	if fs.Changed("dns") {
		var hosts []string
		for _, v := range f.dns {
			hosts = append(hosts, config.SplitList(v)...)
		}
		cfg.DNSHosts = hosts
	}
	if fs.Changed("no-dns") {
		cfg.NoDNS = f.noDNS
	}
	if fs.Changed("no-ping") {
		cfg.NoPing = f.noPing
	}
	if fs.Changed("http") {
		cfg.HTTPURL = f.http
	}
	if fs.Changed("parallel") {
		cfg.Parallel = f.parallel
	}
	if fs.Changed("icmp") {
		cfg.ICMP = config.ICMPMode(f.icmp)
	}
	return cfg, nil
}

// writeReport renders the report to --output. A query implies JSON, and
// JSON wins over --summary.
func writeReport(ctx context.Context, stdout io.Writer, f rootFlags, query *output.Query, report *model.Report) error {
	w := stdout
	closeFn := func() error { return nil }
	if f.output != "" && f.output != "-" {
		var err error
		if w, closeFn, err = output.Open(f.output); err != nil {
			return err
		}
	}

	var err error
	switch {
	case query != nil:
		err = output.WriteQuery(ctx, w, query, report)
	case f.json:
		err = output.WriteText(w, report, output.FormatJSON)
	case f.summary:
		err = output.WriteText(w, report, output.FormatSummary)
	default:
		err = output.WriteText(w, report, output.FormatDetailed)
	}
	if err != nil {
		closeFn()
		return err
	}
	return closeFn()
}

func newDiffCmd() *cobra.Command {
	var diffOutput string

	diffCmd := &cobra.Command{
		Use:   "diff <baseline.json> <current.json>",
		Short: "Compare two netwhy JSON reports",
		Long:  "Show packet loss, latency, DNS and HTTP changes between two reports written with --json.",
		Args:  usageArgs(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiff(cmd.OutOrStdout(), args[0], args[1], diffOutput)
		},
	}
	diffCmd.Flags().StringVarP(&diffOutput, "output", "o", "-", "Output diff file path (JSON); - prints text")
	return diffCmd
}

// runDiff handles the `diff` command.
func runDiff(stdout io.Writer, baselinePath, currentPath, outputPath string) error {
	baseline, err := output.LoadReport(baselinePath)
	if err != nil {
		return fmt.Errorf("load baseline: %w", err)
	}
	current, err := output.LoadReport(currentPath)
	if err != nil {
		return fmt.Errorf("load current: %w", err)
	}

	result := diffpkg.Compare(baseline, current)
	result.Baseline, result.Current = baselinePath, currentPath

	if outputPath == "-" {
		_, err := io.WriteString(stdout, diffpkg.FormatDiff(result))
		return err
	}

	return output.WriteJSON(result, outputPath)
}

func newRulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "List the interpretation rules behind the summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRules(cmd.OutOrStdout())
		},
	}
}

// runRules prints every rule in evaluation order.
func runRules(w io.Writer) error {
	for _, g := range model.DefaultRules() {
		mode := "all matching"
		if g.Mode == model.FirstMatch {
			mode = "first match"
		}
		if _, err := fmt.Fprintf(w, "[%s] (%s)\n", g.Category, mode); err != nil {
			return err
		}
		for _, r := range g.Rules {
			if _, err := fmt.Fprintf(w, "  %-24s %s\n", r.ID, r.Description); err != nil {
				return err
			}
		}
	}
	return nil
}

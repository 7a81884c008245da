package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"blockagg/pkg/config"
	"blockagg/pkg/fetch"
	"blockagg/pkg/filtering"
	"blockagg/pkg/logger"
	"blockagg/pkg/pipeline"
	"blockagg/pkg/resolve"
	"blockagg/pkg/version"
)

const resolvConfPath = "/etc/resolv.conf"

var errPreflightFailed = errors.New("one or more sources failed the preflight")

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "blockagg",
		Short:         "Aggregate block and allow lists into Adblock, DNS and hosts rule files",
		Version:       version.BlockaggVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default $BLOCKAGG_CONFIG or ./blockagg.toml)")
	root.PersistentFlags().String("log-level", "info", "log level: debug, info, warn or error")

	generate := &cobra.Command{
		Use:   "generate",
		Short: "Fetch all sources and write the rule files",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGenerate(cmd, configPath)
		},
	}
	generate.Flags().String("output-dir", "", "output directory (overrides output.dir)")
	generate.Flags().Int("workers", 0, "concurrent downloads (overrides fetch.workers)")

	root.RunE = generate.RunE
	root.Flags().AddFlagSet(generate.Flags())

	root.AddCommand(
		generate,
		&cobra.Command{
			Use:   "check",
			Short: "Resolve the host of every source without downloading it",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runCheck(cmd, configPath)
			},
		},
		&cobra.Command{
			Use:   "config",
			Short: "Print the effective configuration as TOML",
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := config.Load(config.LoadOptions{Path: configPath, Flags: cmd.Flags()})
				if err != nil {
					return err
				}
				data, err := cfg.TOML()
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			},
		},
		&cobra.Command{
			Use:   "lists",
			Short: "Show the built-in list catalog",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return printCatalog(cmd.OutOrStdout())
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "blockagg %s\n", version.BlockaggVersion)
			},
		},
	)

	return root
}

// setup loads the configuration and installs the process logger.
func setup(cmd *cobra.Command, configPath string) (*config.Config, *slog.Logger, io.Closer, error) {
	cfg, err := config.Load(config.LoadOptions{Path: configPath, Flags: cmd.Flags()})
	if err != nil {
		return nil, nil, nil, err
	}
	log, closer, err := logger.Setup(cfg.Logging.Level, cfg.Logging.File)
	if err != nil {
		return nil, nil, nil, err
	}
	if cfg.Path != "" {
		log.Debug("loaded configuration", "file", cfg.Path)
	} else {
		log.Debug("no configuration file found, using defaults")
	}
	return cfg, log, closer, nil
}

func newPipeline(cfg *config.Config, log *slog.Logger, checker pipeline.Checker) *pipeline.Pipeline {
	fetcher := fetch.NewHTTPFetcher(fetch.Options{
		Timeout:    cfg.Fetch.Timeout,
		Retries:    cfg.Fetch.Retries,
		RetryDelay: cfg.Fetch.RetryDelay,
		UserAgent:  cfg.Fetch.UserAgent,
		CacheDir:   cfg.Fetch.CacheDir,
		Log:        log,
	})
	return pipeline.New(pipeline.Options{
		BlackFile:       cfg.Sources.BlackFile,
		WhiteFile:       cfg.Sources.WhiteFile,
		Allowlist:       cfg.Sources.Allowlist,
		CatalogIDs:      cfg.Sources.Catalog,
		Lists:           cfg.Sources.Lists,
		Fetcher:         fetcher,
		Workers:         cfg.Fetch.Workers,
		Checker:         checker,
		Fs:              afero.NewOsFs(),
		OutputDir:       cfg.Output.Dir,
		MetricsTextfile: cfg.Metrics.Textfile,
		ParseErrorLimit: cfg.Logging.ParseErrorLimit,
		Generator:       "blockagg " + version.BlockaggVersion,
		Log:             log,
	})
}

func runGenerate(cmd *cobra.Command, configPath string) error {
	cfg, log, closer, err := setup(cmd, configPath)
	if err != nil {
		return err
	}
	defer func() { _ = closer.Close() }()

	var checker pipeline.Checker
	if cfg.Fetch.Resolver != "" {
		checker = resolve.NewWithServers([]string{cfg.Fetch.Resolver}, cfg.Fetch.Timeout, log)
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	log.Info("starting generation", "version", version.BlockaggVersion, "output", cfg.Output.Dir)
	report, err := newPipeline(cfg, log, checker).Run(ctx)
	if err != nil {
		log.Error("generation failed", "error", err, "hint", diagnose(err))
		return err
	}

	for _, src := range report.Sources {
		if src.Err != nil {
			continue
		}
		log.Info("source summary",
			"list", src.Source.ID,
			"role", src.Source.Role,
			"lines", src.Stats.TotalLines,
			"black", src.Stats.BlackDomains,
			"white", src.Stats.WhiteDomains,
			"invalid", src.Stats.Invalid,
			"duration", src.Duration,
		)
	}
	return nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

// diagnose returns a short hint for a fatal pipeline error.
func diagnose(err error) string {
	switch {
	case errors.Is(err, pipeline.ErrNoSources):
		return "add URLs to the source files or enable lists in the config"
	case errors.Is(err, pipeline.ErrAllSourcesFailed):
		return "check network connectivity, proxy settings and the source URLs"
	case errors.Is(err, pipeline.ErrNoBlackSource):
		return "at least one black list must be reachable"
	case errors.Is(err, context.Canceled):
		return "interrupted"
	default:
		return "see the error for details"
	}
}

func runCheck(cmd *cobra.Command, configPath string) error {
	cfg, log, closer, err := setup(cmd, configPath)
	if err != nil {
		return err
	}
	defer func() { _ = closer.Close() }()

	var resolver *resolve.Resolver
	if cfg.Fetch.Resolver != "" {
		resolver = resolve.NewWithServers([]string{cfg.Fetch.Resolver}, cfg.Fetch.Timeout, log)
	} else {
		resolver, err = resolve.FromResolvConf(resolvConfPath, cfg.Fetch.Timeout)
		if err != nil {
			return fmt.Errorf("no fetch.resolver configured: %w", err)
		}
	}
	log.Debug("running preflight", "resolver", resolver.Server())

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	results, err := newPipeline(cfg, log, resolver).Check(ctx)
	if err != nil {
		return err
	}
	log.Debug("preflight finished", "sources", len(results), "cached_replies", resolver.CacheLen())

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "LIST\tROLE\tSTATUS\tLOCATION")
	failed := 0
	for _, res := range results {
		status := "ok"
		if res.Err != nil {
			status = "FAIL: " + res.Err.Error()
			failed++
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", res.Source.ID, res.Source.Role, status, res.Source.Location)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%w (%d of %d)", errPreflightFailed, failed, len(results))
	}
	return nil
}

func printCatalog(out io.Writer) error {
	ids := make([]string, 0, len(filtering.Catalog))
	for id := range filtering.Catalog {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tROLE\tNAME\tURL")
	for _, id := range ids {
		def := filtering.Catalog[id]
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", id, def.Role, def.Name, def.URL)
	}
	return w.Flush()
}

// Package pipeline runs one aggregation cycle: declare sources, fetch them,
// parse, aggregate, filter and write the rule files.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/afero"
	"go.uber.org/multierr"

	"blockagg/pkg/fetch"
	"blockagg/pkg/filtering"
	"blockagg/pkg/metrics"
	"blockagg/pkg/output"
)

var (
	// ErrNoSources is returned when no source is declared anywhere.
	ErrNoSources = errors.New("no sources declared")
	// ErrAllSourcesFailed is returned when not a single source could be fetched.
	ErrAllSourcesFailed = errors.New("all sources failed, check network connectivity and source URLs")
	// ErrNoBlackSource is returned when no black-role source was fetched.
	ErrNoBlackSource = errors.New("no black source could be fetched")
)

// Checker verifies a source location before it is fetched.
type Checker interface {
	CheckLocation(ctx context.Context, location string) error
}

// Options configures a Pipeline.
type Options struct {
	BlackFile  string
	WhiteFile  string
	Allowlist  string
	CatalogIDs []string
	Lists      map[string]filtering.ListConfig

	Fetcher fetch.Fetcher
	Workers int
	// Checker, when set, is consulted for every source before fetching.
	Checker Checker

	Fs              afero.Fs
	OutputDir       string
	MetricsTextfile string
	Metrics         *metrics.Recorder

	ParseErrorLimit int
	Generator       string
	Now             func() time.Time
	Log             *slog.Logger
}

// Pipeline aggregates the configured sources into rule files.
type Pipeline struct {
	opts    Options
	log     *slog.Logger
	writer  *output.Writer
	metrics *metrics.Recorder
}

// SourceReport is the outcome of one source.
type SourceReport struct {
	Source   filtering.Source
	Err      error
	Stats    filtering.ParseStats
	Duration time.Duration
}

// Report summarises a finished run.
type Report struct {
	Sources  []SourceReport
	Failed   int
	Black    int
	White    int
	Removed  filtering.FilterStats
	Files    []string
	Duration time.Duration
}

// CheckResult is the preflight outcome of one source.
type CheckResult struct {
	Source filtering.Source
	Err    error
}

// New constructs a Pipeline.
func New(opts Options) *Pipeline {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Fetcher == nil {
		opts.Fetcher = fetch.NewHTTPFetcher(fetch.Options{Log: log})
	}
	recorder := opts.Metrics
	if recorder == nil {
		recorder = metrics.New()
	}
	return &Pipeline{
		opts:    opts,
		log:     log,
		writer:  output.NewWriter(opts.Fs, opts.OutputDir, log),
		metrics: recorder,
	}
}

// Sources returns every declared source, deduplicated by role and location.
func (p *Pipeline) Sources() ([]filtering.Source, error) {
	blackURLs := p.readSourceFile(p.opts.BlackFile, filtering.RoleBlack)
	whiteURLs := p.readSourceFile(p.opts.WhiteFile, filtering.RoleWhite)

	sources, err := filtering.BuildSources(filtering.SourceSpec{
		Catalog:    filtering.Catalog,
		CatalogIDs: p.opts.CatalogIDs,
		Lists:      p.opts.Lists,
		BlackURLs:  blackURLs,
		WhiteURLs:  whiteURLs,
	})
	if err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		return nil, ErrNoSources
	}
	return sources, nil
}

func (p *Pipeline) readSourceFile(path string, role filtering.Role) []string {
	urls, err := filtering.ReadSourceFile(path)
	if err != nil {
		p.log.Warn("source file not readable, skipping", "role", role, "file", path, "error", err)
		return nil
	}
	return urls
}

// Check runs only the reachability preflight for every source.
func (p *Pipeline) Check(ctx context.Context) ([]CheckResult, error) {
	sources, err := p.Sources()
	if err != nil {
		return nil, err
	}
	if p.opts.Checker == nil {
		return nil, errors.New("no resolver configured for the preflight")
	}

	workers := p.opts.Workers
	if workers <= 0 {
		workers = 5
	}
	cp := pool.NewWithResults[CheckResult]().WithMaxGoroutines(workers)
	for _, source := range sources {
		cp.Go(func() CheckResult {
			err := p.opts.Checker.CheckLocation(ctx, source.Location)
			if err != nil {
				p.log.Warn("source failed preflight", "list", source.ID, "location", source.Location, "error", err)
			} else {
				p.log.Debug("source passed preflight", "list", source.ID, "location", source.Location)
			}
			return CheckResult{Source: source, Err: err}
		})
	}
	results := cp.Wait()
	slices.SortFunc(results, func(a, b CheckResult) int {
		return compareSources(a.Source, b.Source)
	})
	return results, nil
}

// Run executes one full cycle. On error nothing in the output directory is
// modified.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	started := p.opts.Now()

	sources, err := p.Sources()
	if err != nil {
		return nil, err
	}
	p.log.Info("fetching sources", "count", len(sources), "workers", p.opts.Workers)

	var fetcher fetch.Fetcher = p.opts.Fetcher
	if p.opts.Checker != nil {
		fetcher = &checkedFetcher{checker: p.opts.Checker, next: fetcher}
	}
	fetched := fetch.FetchAll(ctx, fetcher, sources, p.opts.Workers)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report := &Report{}
	var (
		parsed   []filtering.SourceResult
		fetchErr error
	)
	for _, res := range fetched {
		entry := SourceReport{Source: res.Source, Duration: res.Duration}
		if res.Err != nil {
			entry.Err = res.Err
			report.Failed++
			fetchErr = multierr.Append(fetchErr, fmt.Errorf("%s (%s): %w", res.Source.ID, res.Source.Location, res.Err))
			p.metrics.SourceFailed(string(res.Source.Role))
			p.log.Warn("source unreachable, skipping", "list", res.Source.ID, "location", res.Source.Location, "error", res.Err)
			report.Sources = append(report.Sources, entry)
			continue
		}

		result, err := filtering.ParseList(bytes.NewReader(res.Data), filtering.ParseOptions{
			ListID:     res.Source.ID,
			Logger:     p.log,
			ErrorLimit: p.opts.ParseErrorLimit,
		})
		if err != nil {
			// Only a read failure ends up here; treat it like a failed fetch.
			entry.Err = err
			report.Failed++
			fetchErr = multierr.Append(fetchErr, fmt.Errorf("%s: %w", res.Source.ID, err))
			p.metrics.SourceFailed(string(res.Source.Role))
			report.Sources = append(report.Sources, entry)
			continue
		}
		entry.Stats = result.Stats
		report.Sources = append(report.Sources, entry)
		parsed = append(parsed, filtering.SourceResult{
			Source: res.Source,
			Black:  result.Black,
			White:  result.White,
			Stats:  result.Stats,
		})
		p.metrics.SourceParsed(res.Source.ID, string(res.Source.Role), result.Black.Len(), result.White.Len())
	}
	slices.SortFunc(report.Sources, func(a, b SourceReport) int {
		return compareSources(a.Source, b.Source)
	})

	if len(parsed) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrAllSourcesFailed, fetchErr)
	}

	blackResults, whiteResults := filtering.SplitByRole(parsed)
	if len(blackResults) == 0 {
		return nil, ErrNoBlackSource
	}

	blackSet, whiteSet := filtering.Aggregate(blackResults, whiteResults)
	if p.opts.Allowlist != "" {
		allowed, err := filtering.LoadAllowlist(p.opts.Allowlist, p.log, p.opts.ParseErrorLimit)
		if err != nil {
			return nil, err
		}
		whiteSet.Merge(allowed)
		p.log.Info("merged allowlist", "file", p.opts.Allowlist, "domains", allowed.Len())
	}

	filtered, filterStats := filtering.ApplyWhitelist(blackSet, whiteSet)
	p.log.Info("applied whitelist",
		"black_before", blackSet.Len(),
		"black_after", filtered.Len(),
		"white", whiteSet.Len(),
		"removed_exact", filterStats.Exact,
		"removed_subdomain", filterStats.Subdomain,
	)
	if filtered.Len() == 0 {
		p.log.Warn("no blacklist data after filtering, outputs will be empty")
	}

	generatedAt := p.opts.Now()
	files, err := output.Render(output.Input{
		Black:       filtered.Sorted(),
		White:       whiteSet.Sorted(),
		GeneratedAt: generatedAt,
		Generator:   p.opts.Generator,
		Sources: output.SourceSummary{
			Black:  len(blackResults),
			White:  len(whiteResults),
			Failed: report.Failed,
		},
		Removed: output.RemovedSummary{
			Exact:     filterStats.Exact,
			Subdomain: filterStats.Subdomain,
		},
	})
	if err != nil {
		return nil, err
	}
	if err := p.writer.WriteAll(files); err != nil {
		return nil, err
	}

	finished := p.opts.Now()
	report.Black = filtered.Len()
	report.White = whiteSet.Len()
	report.Removed = filterStats
	report.Duration = finished.Sub(started)
	for _, f := range files {
		report.Files = append(report.Files, f.Name)
	}

	p.metrics.Finished(report.Black, report.White, filterStats.Exact, filterStats.Subdomain, started, finished)
	if err := p.metrics.WriteTextfile(p.opts.MetricsTextfile); err != nil {
		p.log.Warn("failed to export metrics", "file", p.opts.MetricsTextfile, "error", err)
	}

	p.log.Info("run finished",
		"black", report.Black,
		"white", report.White,
		"failed_sources", report.Failed,
		"duration", report.Duration,
	)
	return report, nil
}

func compareSources(a, b filtering.Source) int {
	if a.Role != b.Role {
		if a.Role == filtering.RoleBlack {
			return -1
		}
		return 1
	}
	if a.ID < b.ID {
		return -1
	}
	if a.ID > b.ID {
		return 1
	}
	return 0
}

type checkedFetcher struct {
	checker Checker
	next    fetch.Fetcher
}

func (f *checkedFetcher) Fetch(ctx context.Context, source filtering.Source) ([]byte, error) {
	if err := f.checker.CheckLocation(ctx, source.Location); err != nil {
		return nil, fmt.Errorf("%w: preflight: %w", fetch.ErrSourceUnreachable, err)
	}
	return f.next.Fetch(ctx, source)
}

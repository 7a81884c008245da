package fetch

import (
	"context"
	"time"

	"github.com/sourcegraph/conc/pool"

	"blockagg/pkg/filtering"
)

const defaultWorkers = 5

// Result is the outcome of fetching one source.
type Result struct {
	Source   filtering.Source
	Data     []byte
	Err      error
	Duration time.Duration
}

// FetchAll fetches every enabled source on a bounded worker pool. Results are
// collected in completion order; each source yields exactly one Result.
func FetchAll(ctx context.Context, fetcher Fetcher, sources []filtering.Source, workers int) []Result {
	if workers <= 0 {
		workers = defaultWorkers
	}

	p := pool.NewWithResults[Result]().WithMaxGoroutines(workers)
	for _, source := range sources {
		if !source.Enabled {
			continue
		}
		p.Go(func() Result {
			start := time.Now()
			data, err := fetcher.Fetch(ctx, source)
			return Result{
				Source:   source,
				Data:     data,
				Err:      err,
				Duration: time.Since(start),
			}
		})
	}
	return p.Wait()
}

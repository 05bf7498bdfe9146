// Package acquire fans out search queries and page crawls in parallel and
// folds the results back into a deduplicated evidence set. Individual
// failures degrade the batch; only a fully failed batch is an error for
// the caller to interpret.
package acquire

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/jiho-dev/askweb/internal/config"
	"github.com/jiho-dev/askweb/internal/crawl"
	"github.com/jiho-dev/askweb/internal/log"
	"github.com/jiho-dev/askweb/internal/query"
	"github.com/jiho-dev/askweb/internal/websearch"
)

// QueryOutcome records how one expanded query fared against the provider.
type QueryOutcome struct {
	Query   string
	Results int
	Err     error
}

// URLOutcome records how one page crawl fared.
type URLOutcome struct {
	URL string
	Err error
}

// Acquirer runs the search and crawl stages.
type Acquirer struct {
	provider     websearch.Provider
	crawler      *crawl.Crawler
	maxResults   int
	maxConcUnits int64
	maxCrawls    int
	logger       log.Logger
}

// New creates an Acquirer from the configured provider and crawler.
func New(provider websearch.Provider, crawler *crawl.Crawler, cfg *config.Config, logger log.Logger) *Acquirer {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Acquirer{
		provider:     provider,
		crawler:      crawler,
		maxResults:   cfg.MaxResultsPerQuery,
		maxConcUnits: int64(cfg.MaxCrawlConcurrency),
		maxCrawls:    cfg.MaxCrawlConcurrency,
		logger:       logger,
	}
}

// Search runs all expanded queries in parallel and merges their hits,
// deduplicated by URL. The first query to surface a URL keeps it; result
// order is the provider rank of that first appearance, queries in input
// order. Per-query failures are reported in the outcomes, never as an
// error.
func (a *Acquirer) Search(ctx context.Context, queries []query.SearchQuery) ([]websearch.Result, []QueryOutcome) {
	type searchSlot struct {
		results []websearch.Result
		err     error
	}
	slots := make([]searchSlot, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	for i, q := range queries {
		g.Go(func() error {
			results, err := a.provider.Search(gctx, q.Text, q.Language, a.maxResults)
			slots[i] = searchSlot{results: results, err: err}
			return nil
		})
	}
	g.Wait() // workers never return errors

	outcomes := make([]QueryOutcome, len(queries))
	seen := make(map[string]struct{})
	var merged []websearch.Result
	for i, q := range queries {
		outcomes[i] = QueryOutcome{Query: q.Text, Results: len(slots[i].results), Err: slots[i].err}
		if slots[i].err != nil {
			a.logger.Warn("search query failed", "provider", a.provider.Name(), "query", q.Text, "error", slots[i].err)
			continue
		}
		for _, r := range slots[i].results {
			if _, dup := seen[r.URL]; dup {
				continue
			}
			seen[r.URL] = struct{}{}
			merged = append(merged, r)
		}
	}
	return merged, outcomes
}

// Crawl fetches up to the configured cap of URLs concurrently, bounded by
// a weighted semaphore. Output order follows input order of the URLs that
// succeeded; failures appear only in the outcomes.
func (a *Acquirer) Crawl(ctx context.Context, urls []string) ([]crawl.Content, []URLOutcome) {
	if len(urls) > a.maxCrawls {
		urls = urls[:a.maxCrawls]
	}

	sem := semaphore.NewWeighted(a.maxConcUnits)
	contents := make([]*crawl.Content, len(urls))
	outcomes := make([]URLOutcome, len(urls))

	var wg sync.WaitGroup
	for i, u := range urls {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				outcomes[i] = URLOutcome{URL: u, Err: err}
				return
			}
			defer sem.Release(1)

			content, err := a.crawler.Crawl(ctx, u)
			if err != nil {
				outcomes[i] = URLOutcome{URL: u, Err: err}
				return
			}
			contents[i] = &content
			outcomes[i] = URLOutcome{URL: u}
		}()
	}
	wg.Wait()

	ordered := make([]crawl.Content, 0, len(urls))
	for _, c := range contents {
		if c != nil {
			ordered = append(ordered, *c)
		}
	}
	return ordered, outcomes
}

// FailedQueries extracts the failed query texts from outcomes, sorted for
// stable diagnostics.
func FailedQueries(outcomes []QueryOutcome) []string {
	var failed []string
	for _, o := range outcomes {
		if o.Err != nil {
			failed = append(failed, o.Query)
		}
	}
	sort.Strings(failed)
	return failed
}

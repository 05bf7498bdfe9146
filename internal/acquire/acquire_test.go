package acquire

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/jiho-dev/askweb/internal/config"
	"github.com/jiho-dev/askweb/internal/crawl"
	"github.com/jiho-dev/askweb/internal/query"
	"github.com/jiho-dev/askweb/internal/websearch"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type stubProvider struct {
	mu      sync.Mutex
	results map[string][]websearch.Result
	errs    map[string]error
	calls   []string
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) Search(ctx context.Context, queryText, language string, maxResults int) ([]websearch.Result, error) {
	p.mu.Lock()
	p.calls = append(p.calls, queryText)
	p.mu.Unlock()
	if err := p.errs[queryText]; err != nil {
		return nil, err
	}
	return p.results[queryText], nil
}

type stubFetcher struct {
	pages map[string][]byte
}

func (f *stubFetcher) Fetch(ctx context.Context, pageURL string) ([]byte, error) {
	body, ok := f.pages[pageURL]
	if !ok {
		return nil, crawl.ErrFetchFailed
	}
	return body, nil
}

func testConfig() *config.Config {
	return &config.Config{
		MaxResultsPerQuery:  7,
		MaxCrawlConcurrency: 3,
		MaxContentBytes:     50_000,
	}
}

func page(body string) []byte {
	return []byte("<html><body><p>" + body + "</p></body></html>")
}

func TestAcquirerSearch(t *testing.T) {
	queries := []query.SearchQuery{
		{Text: "go generics", Language: "en"},
		{Text: "go 제네릭", Language: "ko"},
		{Text: "broken", Language: "en"},
	}
	provider := &stubProvider{
		results: map[string][]websearch.Result{
			"go generics": {
				{URL: "https://a.example", Title: "A"},
				{URL: "https://b.example", Title: "B"},
			},
			"go 제네릭": {
				{URL: "https://b.example", Title: "B dup"},
				{URL: "https://c.example", Title: "C"},
			},
		},
		errs: map[string]error{"broken": websearch.ErrProviderUnavailable},
	}
	a := New(provider, nil, testConfig(), nil)

	merged, outcomes := a.Search(context.Background(), queries)

	t.Run("dedupes by url keeping first appearance", func(t *testing.T) {
		urls := make([]string, len(merged))
		for i, r := range merged {
			urls[i] = r.URL
		}
		assert.Equal(t, []string{"https://a.example", "https://b.example", "https://c.example"}, urls)
		assert.Equal(t, "B", merged[1].Title)
	})

	t.Run("failures degrade not abort", func(t *testing.T) {
		require.Len(t, outcomes, 3)
		assert.NoError(t, outcomes[0].Err)
		assert.ErrorIs(t, outcomes[2].Err, websearch.ErrProviderUnavailable)
		assert.Equal(t, []string{"broken"}, FailedQueries(outcomes))
	})

	t.Run("all queries dispatched", func(t *testing.T) {
		assert.Len(t, provider.calls, 3)
	})
}

func TestAcquirerCrawl(t *testing.T) {
	fetcher := &stubFetcher{pages: map[string][]byte{}}
	var urls []string
	for i := 0; i < 5; i++ {
		u := fmt.Sprintf("https://site%d.example", i)
		urls = append(urls, u)
		if i != 2 {
			fetcher.pages[u] = page(fmt.Sprintf("Article body number %d with plenty of words to keep extraction happy for this page.", i))
		}
	}

	cfg := testConfig()
	crawler := crawl.NewCrawler(fetcher, cfg, nil)
	a := New(nil, crawler, cfg, nil)

	contents, outcomes := a.Crawl(context.Background(), urls)

	t.Run("caps at configured maximum", func(t *testing.T) {
		assert.Len(t, outcomes, cfg.MaxCrawlConcurrency)
	})

	t.Run("keeps input order of successes", func(t *testing.T) {
		require.Len(t, contents, 2) // url 2 fails, urls 3-4 cut by cap
		assert.Equal(t, "https://site0.example", contents[0].URL)
		assert.Equal(t, "https://site1.example", contents[1].URL)
	})

	t.Run("failure recorded per url", func(t *testing.T) {
		assert.ErrorIs(t, outcomes[2].Err, crawl.ErrFetchFailed)
	})
}

func TestAcquirerCrawlCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := testConfig()
	crawler := crawl.NewCrawler(&stubFetcher{}, cfg, nil)
	a := New(nil, crawler, cfg, nil)

	contents, outcomes := a.Crawl(ctx, []string{"https://a.example"})
	assert.Empty(t, contents)
	require.Len(t, outcomes, 1)
	assert.True(t, errors.Is(outcomes[0].Err, context.Canceled))
}

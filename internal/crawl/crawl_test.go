package crawl

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jiho-dev/askweb/internal/config"
)

const samplePage = `<!DOCTYPE html>
<html><head><title>Release Notes</title>
<script>trackVisit()</script>
<style>body { margin: 0 }</style>
</head><body>
<nav><a href="/">Home</a><a href="/docs">Docs</a></nav>
<article>
<h1>Go 1.24 Release Notes</h1>
<p>The latest Go release improves map performance and adds generic type aliases.
This page covers the most significant changes since Go 1.23 and explains how
existing programs are affected by each of them in enough detail to upgrade.</p>
<ul><li>Faster maps</li><li>Generic aliases</li></ul>
<p>Tool directives in go.mod now track executable dependencies so that build
tooling no longer needs a separate tools.go file in the repository root.</p>
</article>
<footer>Copyright</footer>
</body></html>`

func TestExtract(t *testing.T) {
	t.Run("strips boilerplate and keeps article", func(t *testing.T) {
		title, text, err := Extract([]byte(samplePage), "https://go.dev/doc/go1.24", 50_000)
		require.NoError(t, err)

		assert.Contains(t, title, "Release Notes")
		assert.Contains(t, text, "generic type aliases")
		assert.Contains(t, text, "- Faster maps")
		assert.NotContains(t, text, "trackVisit")
		assert.NotContains(t, text, "margin: 0")
		assert.NotContains(t, text, "Copyright")
	})

	t.Run("caps output without splitting runes", func(t *testing.T) {
		long := "<html><body><p>" + strings.Repeat("한글 텍스트 ", 5000) + "</p></body></html>"
		_, text, err := Extract([]byte(long), "https://example.com", 1000)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(text), 1000)
		assert.True(t, strings.HasPrefix(text, "한글"))
		for _, r := range text {
			assert.NotEqual(t, '�', r)
		}
	})

	t.Run("empty page yields ErrEmptyContent", func(t *testing.T) {
		_, _, err := Extract([]byte("<html><body><script>x</script></body></html>"), "https://example.com", 50_000)
		assert.ErrorIs(t, err, ErrEmptyContent)
	})
}

type fakeFetcher struct {
	body []byte
	err  error
}

func (f *fakeFetcher) Fetch(ctx context.Context, pageURL string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.body, f.err
}

func crawlerConfig() *config.Config {
	return &config.Config{
		MaxCrawlConcurrency: 10,
		CrawlJitterMinMS:    0,
		CrawlJitterMaxMS:    0,
		MaxContentBytes:     50_000,
	}
}

func TestCrawler(t *testing.T) {
	t.Run("extracts fetched page", func(t *testing.T) {
		fixed := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
		c := NewCrawler(&fakeFetcher{body: []byte(samplePage)}, crawlerConfig(), nil,
			WithClock(func() time.Time { return fixed }))

		content, err := c.Crawl(context.Background(), "https://go.dev/doc/go1.24")
		require.NoError(t, err)
		assert.Equal(t, "https://go.dev/doc/go1.24", content.URL)
		assert.Equal(t, fixed, content.FetchedAt)
		assert.Contains(t, content.Text, "generic type aliases")
	})

	t.Run("fetch error propagates", func(t *testing.T) {
		c := NewCrawler(&fakeFetcher{err: ErrFetchFailed}, crawlerConfig(), nil)
		_, err := c.Crawl(context.Background(), "https://down.example")
		assert.ErrorIs(t, err, ErrFetchFailed)
	})

	t.Run("jitter delay honors cancellation", func(t *testing.T) {
		c := NewCrawler(&fakeFetcher{body: []byte(samplePage)}, crawlerConfig(), nil,
			WithJitter(time.Minute, time.Minute))

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		start := time.Now()
		_, err := c.Crawl(ctx, "https://slow.example")
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Less(t, time.Since(start), 5*time.Second)
	})
}

package crawl

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/jiho-dev/askweb/internal/log"
)

// userAgents is the pool rotated across fetches. Current desktop browser
// strings; bot filters that key on the default Go client UA pass these.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:127.0) Gecko/20100101 Firefox/127.0",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
}

// maxFetchBytes caps the raw HTML body; extraction trims much further.
const maxFetchBytes = 4 << 20 // 4MB

// CollyFetcher fetches pages through a colly collector with browser-like
// request headers.
type CollyFetcher struct {
	timeout time.Duration
	logger  log.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewCollyFetcher creates a fetcher whose individual requests are bounded
// by timeout.
func NewCollyFetcher(timeout time.Duration, logger log.Logger) *CollyFetcher {
	if logger == nil {
		logger = log.NewNop()
	}
	return &CollyFetcher{
		timeout: timeout,
		logger:  logger,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (f *CollyFetcher) userAgent() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return userAgents[f.rng.Intn(len(userAgents))]
}

// Fetch retrieves one page. The request runs under the shorter of the
// fetcher timeout and the remaining context deadline; cancellation before
// dispatch is honored, an in-flight request runs to its timeout.
func (f *CollyFetcher) Fetch(ctx context.Context, pageURL string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	timeout := f.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("%w: deadline exhausted", ErrFetchFailed)
	}

	c := colly.NewCollector(colly.MaxBodySize(maxFetchBytes))
	c.SetRequestTimeout(timeout)

	ua := f.userAgent()
	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("User-Agent", ua)
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "ko-KR,ko;q=0.9,en-US;q=0.8,en;q=0.7")
		r.Headers.Set("Referer", "https://www.google.com/")
	})

	var (
		body     []byte
		fetchErr error
	)
	c.OnResponse(func(r *colly.Response) {
		body = r.Body
	})
	c.OnError(func(r *colly.Response, err error) {
		fetchErr = err
	})

	if err := c.Visit(pageURL); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	if fetchErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, fetchErr)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrFetchFailed)
	}
	return body, nil
}

package crawl

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/jiho-dev/askweb/internal/config"
	"github.com/jiho-dev/askweb/internal/log"
)

// Crawler fetches one URL at a time with polite pacing: a random delay
// before each fetch plus a global rate limit, so bursts against a host
// stay below bot-detection thresholds.
type Crawler struct {
	fetcher   Fetcher
	limiter   *rate.Limiter
	jitterMin time.Duration
	jitterMax time.Duration
	maxBytes  int
	logger    log.Logger
	now       func() time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

// Option configures a Crawler.
type Option func(*Crawler)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(c *Crawler) { c.now = now }
}

// WithJitter overrides the pre-fetch delay window. A zero window disables
// the delay.
func WithJitter(min, max time.Duration) Option {
	return func(c *Crawler) { c.jitterMin, c.jitterMax = min, max }
}

// NewCrawler creates a Crawler over fetcher, paced per cfg.
func NewCrawler(fetcher Fetcher, cfg *config.Config, logger log.Logger, opts ...Option) *Crawler {
	if logger == nil {
		logger = log.NewNop()
	}
	c := &Crawler{
		fetcher:   fetcher,
		limiter:   rate.NewLimiter(rate.Limit(cfg.MaxCrawlConcurrency), cfg.MaxCrawlConcurrency),
		jitterMin: time.Duration(cfg.CrawlJitterMinMS) * time.Millisecond,
		jitterMax: time.Duration(cfg.CrawlJitterMaxMS) * time.Millisecond,
		maxBytes:  cfg.MaxContentBytes,
		logger:    logger,
		now:       time.Now,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Crawler) jitter() time.Duration {
	if c.jitterMax <= c.jitterMin {
		return c.jitterMin
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.jitterMin + time.Duration(c.rng.Int63n(int64(c.jitterMax-c.jitterMin)))
}

// Crawl fetches and extracts one page. The delay and the fetch both
// respect ctx; a page whose extraction yields nothing returns
// ErrEmptyContent.
func (c *Crawler) Crawl(ctx context.Context, pageURL string) (Content, error) {
	if d := c.jitter(); d > 0 {
		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Content{}, ctx.Err()
		case <-timer.C:
		}
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return Content{}, err
	}

	raw, err := c.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		c.logger.Debug("crawl fetch failed", "url", pageURL, "error", err)
		return Content{}, err
	}

	title, text, err := Extract(raw, pageURL, c.maxBytes)
	if err != nil {
		c.logger.Debug("crawl extraction failed", "url", pageURL, "error", err)
		return Content{}, err
	}

	return Content{
		URL:       pageURL,
		Title:     title,
		Text:      text,
		FetchedAt: c.now().UTC(),
	}, nil
}

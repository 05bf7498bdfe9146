// Package websearch defines the search provider port and its HTTP adapters.
//
// Providers are selected by configuration key at construction time
// (tavily | google). A provider failure surfaces as a typed
// ErrProviderUnavailable value so callers can degrade the batch instead of
// aborting the request.
package websearch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jiho-dev/askweb/internal/config"
	"github.com/jiho-dev/askweb/internal/log"
)

// Sentinel errors. Check with errors.Is().
var (
	// ErrProviderUnavailable indicates the search endpoint was unreachable
	// or returned a non-success status.
	ErrProviderUnavailable = errors.New("search provider unavailable")

	// ErrUnknownProvider indicates an unrecognized provider key.
	ErrUnknownProvider = errors.New("unknown search provider")
)

// Result is one search hit returned by a provider.
type Result struct {
	URL     string
	Title   string
	Snippet string
}

// Provider is the search provider port.
type Provider interface {
	// Search runs one query and returns at most maxResults hits.
	// The language hint is advisory; providers that cannot scope by
	// language ignore it.
	Search(ctx context.Context, queryText, language string, maxResults int) ([]Result, error)

	// Name identifies the provider in diagnostics.
	Name() string
}

// maxResponseBytes caps provider response bodies to bound memory use.
const maxResponseBytes = 2 << 20 // 2MB

// defaultRequestTimeout bounds one provider call independent of the
// pipeline budget; the per-request context may cut it shorter.
const defaultRequestTimeout = 4 * time.Second

// newHTTPClient returns the pooled client shared by one provider instance.
func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout: defaultRequestTimeout,
		Transport: &http.Transport{
			MaxIdleConns:        20,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     30 * time.Second,
		},
	}
}

// New selects a provider implementation from configuration.
func New(cfg *config.Config, logger log.Logger) (Provider, error) {
	if logger == nil {
		logger = log.NewNop()
	}
	switch cfg.SearchProvider {
	case config.SearchProviderTavily:
		return NewTavily(cfg.TavilyAPIKey, logger), nil
	case config.SearchProviderGoogle:
		return NewGoogle(cfg.GoogleAPIKey, cfg.GoogleCSEID, logger), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.SearchProvider)
	}
}

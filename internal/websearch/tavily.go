package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/cenkalti/backoff/v4"

	"github.com/jiho-dev/askweb/internal/log"
)

const tavilyEndpoint = "https://api.tavily.com/search"

// Tavily calls the Tavily search API.
type Tavily struct {
	apiKey   string
	endpoint string
	client   *http.Client
	logger   log.Logger
}

// NewTavily creates a Tavily provider.
func NewTavily(apiKey string, logger log.Logger) *Tavily {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Tavily{
		apiKey:   apiKey,
		endpoint: tavilyEndpoint,
		client:   newHTTPClient(),
		logger:   logger,
	}
}

func (t *Tavily) Name() string { return "tavily" }

type tavilyRequest struct {
	Query       string `json:"query"`
	SearchDepth string `json:"search_depth"`
	MaxResults  int    `json:"max_results"`
}

type tavilyResponse struct {
	Results []struct {
		URL     string `json:"url"`
		Title   string `json:"title"`
		Content string `json:"content"`
	} `json:"results"`
}

// Search runs one Tavily query. Transient failures (5xx, network) are
// retried with exponential backoff within the context deadline.
func (t *Tavily) Search(ctx context.Context, queryText, language string, maxResults int) ([]Result, error) {
	payload, err := json.Marshal(tavilyRequest{
		Query:       queryText,
		SearchDepth: "basic",
		MaxResults:  maxResults,
	})
	if err != nil {
		return nil, fmt.Errorf("encode tavily request: %w", err)
	}

	var results []Result
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("api-key", t.apiKey)

		resp, err := t.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
		case resp.StatusCode >= 500:
			return fmt.Errorf("tavily status %d", resp.StatusCode)
		default:
			return backoff.Permanent(fmt.Errorf("tavily status %d", resp.StatusCode))
		}

		var body tavilyResponse
		if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&body); err != nil {
			return backoff.Permanent(fmt.Errorf("decode tavily response: %w", err))
		}

		results = results[:0]
		for _, r := range body.Results {
			if r.URL == "" {
				continue
			}
			results = append(results, Result{URL: r.URL, Title: r.Title, Snippet: r.Content})
		}
		return nil
	}

	bo := backoff.WithContext(backoff.NewExponentialBackOff(
		backoff.WithMaxElapsedTime(defaultRequestTimeout),
	), ctx)
	if err := backoff.Retry(operation, bo); err != nil {
		t.logger.Warn("tavily search failed", "query", queryText, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	return results, nil
}

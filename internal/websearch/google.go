package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/jiho-dev/askweb/internal/log"
)

const googleEndpoint = "https://www.googleapis.com/customsearch/v1"

// Google calls the Google Custom Search JSON API.
type Google struct {
	apiKey   string
	cseID    string
	endpoint string
	client   *http.Client
	logger   log.Logger
}

// NewGoogle creates a Google CSE provider.
func NewGoogle(apiKey, cseID string, logger log.Logger) *Google {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Google{
		apiKey:   apiKey,
		cseID:    cseID,
		endpoint: googleEndpoint,
		client:   newHTTPClient(),
		logger:   logger,
	}
}

func (g *Google) Name() string { return "google" }

type googleResponse struct {
	Items []struct {
		Link    string `json:"link"`
		Title   string `json:"title"`
		Snippet string `json:"snippet"`
	} `json:"items"`
}

// Search runs one CSE query. The language hint maps to the lr parameter.
// The API caps num at 10.
func (g *Google) Search(ctx context.Context, queryText, language string, maxResults int) ([]Result, error) {
	if maxResults > 10 {
		maxResults = 10
	}
	params := url.Values{}
	params.Set("key", g.apiKey)
	params.Set("cx", g.cseID)
	params.Set("q", queryText)
	params.Set("num", strconv.Itoa(maxResults))
	if language != "" {
		params.Set("lr", "lang_"+language)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build google request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.Warn("google search failed", "query", queryText, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		g.logger.Warn("google search rejected", "query", queryText, "status", resp.StatusCode)
		return nil, fmt.Errorf("%w: google status %d", ErrProviderUnavailable, resp.StatusCode)
	}

	var body googleResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode google response: %w", err)
	}

	results := make([]Result, 0, len(body.Items))
	for _, item := range body.Items {
		if item.Link == "" {
			continue
		}
		results = append(results, Result{URL: item.Link, Title: item.Title, Snippet: item.Snippet})
	}
	return results, nil
}

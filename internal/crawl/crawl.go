// Package crawl fetches web pages and reduces them to article text.
//
// The Fetcher port retrieves raw HTML; the default implementation rides on
// colly with rotating browser headers so ordinary bot filters let the
// request through. Extraction strips boilerplate with goquery, recovers the
// main article with readability, and renders plain text in markdown shape.
package crawl

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors. Check with errors.Is().
var (
	// ErrFetchFailed indicates the page could not be retrieved.
	ErrFetchFailed = errors.New("page fetch failed")

	// ErrEmptyContent indicates extraction produced no usable text.
	ErrEmptyContent = errors.New("no extractable content")
)

// Content is the extracted text of one crawled page.
type Content struct {
	URL       string
	Title     string
	Text      string
	FetchedAt time.Time
}

// Fetcher retrieves the raw HTML of one URL.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string) ([]byte, error)
}

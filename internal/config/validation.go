package config

import (
	"errors"
	"fmt"
	"os"
)

// Sentinel errors for configuration validation.
// Check with errors.Is().
var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates a required API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidSearchProvider indicates the search provider is not supported.
	ErrInvalidSearchProvider = errors.New("invalid search provider")

	// ErrInvalidChunking indicates the chunking strategy is not supported.
	ErrInvalidChunking = errors.New("invalid chunking strategy")

	// ErrInvalidDeadline indicates max_processing_time is out of range.
	ErrInvalidDeadline = errors.New("invalid max processing time")

	// ErrInvalidConcurrency indicates a concurrency cap is out of range.
	ErrInvalidConcurrency = errors.New("invalid concurrency")

	// ErrInvalidChunkWindow indicates chunk size/overlap are inconsistent.
	ErrInvalidChunkWindow = errors.New("invalid chunk window")

	// ErrInvalidRetrievalK indicates a retrieval depth is out of range.
	ErrInvalidRetrievalK = errors.New("invalid retrieval k")

	// ErrInvalidDurableStore indicates the durable store backend is not supported.
	ErrInvalidDurableStore = errors.New("invalid durable store")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidJitter indicates the crawl jitter window is inconsistent.
	ErrInvalidJitter = errors.New("invalid crawl jitter window")
)

// Validate checks the configuration for consistency and required credentials.
// Required security-relevant values are never silently defaulted: a selected
// provider without its credential fails here.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	switch c.SearchProvider {
	case SearchProviderTavily:
		if c.TavilyAPIKey == "" {
			return fmt.Errorf("%w: TAVILY_API_KEY is required for the tavily provider", ErrMissingAPIKey)
		}
	case SearchProviderGoogle:
		if c.GoogleAPIKey == "" || c.GoogleCSEID == "" {
			return fmt.Errorf("%w: GOOGLE_API_KEY and GOOGLE_CSE_ID are required for the google provider", ErrMissingAPIKey)
		}
	default:
		return fmt.Errorf("%w: %q (must be %q or %q)",
			ErrInvalidSearchProvider, c.SearchProvider, SearchProviderTavily, SearchProviderGoogle)
	}

	switch c.ChunkingStrategy {
	case ChunkingSimple, ChunkingContextual:
	default:
		return fmt.Errorf("%w: %q (must be %q or %q)",
			ErrInvalidChunking, c.ChunkingStrategy, ChunkingSimple, ChunkingContextual)
	}

	if c.MaxProcessingTime <= 0 || c.MaxProcessingTime > 300 {
		return fmt.Errorf("%w: %.3fs (must be in (0, 300])", ErrInvalidDeadline, c.MaxProcessingTime)
	}

	if c.MaxCrawlConcurrency < 1 || c.MaxCrawlConcurrency > 64 {
		return fmt.Errorf("%w: max_crawl_concurrency %d (must be 1-64)", ErrInvalidConcurrency, c.MaxCrawlConcurrency)
	}
	if c.MaxResultsPerQuery < 1 || c.MaxResultsPerQuery > 50 {
		return fmt.Errorf("%w: max_results_per_query %d (must be 1-50)", ErrInvalidConcurrency, c.MaxResultsPerQuery)
	}

	if c.ChunkSize < 100 {
		return fmt.Errorf("%w: chunk_size %d (must be >= 100)", ErrInvalidChunkWindow, c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap %d (must be in [0, chunk_size))", ErrInvalidChunkWindow, c.ChunkOverlap)
	}

	if c.FinalK < 1 || c.FinalK > c.FusionTopN {
		return fmt.Errorf("%w: final_k %d (must be in [1, fusion_top_n])", ErrInvalidRetrievalK, c.FinalK)
	}
	if c.KLexical < 1 || c.KVector < 1 || c.FusionTopN < 1 {
		return fmt.Errorf("%w: k_lexical/k_vector/fusion_top_n must be >= 1", ErrInvalidRetrievalK)
	}
	if c.RRFConstant < 1 {
		return fmt.Errorf("%w: rrf_c %d (must be >= 1)", ErrInvalidRetrievalK, c.RRFConstant)
	}

	if c.CrawlJitterMinMS < 0 || c.CrawlJitterMaxMS < c.CrawlJitterMinMS {
		return fmt.Errorf("%w: [%d, %d]ms", ErrInvalidJitter, c.CrawlJitterMinMS, c.CrawlJitterMaxMS)
	}

	switch c.DurableStore {
	case StoreNone, StoreQdrant:
	case StorePostgres:
		if c.PostgresPort < 1 || c.PostgresPort > 65535 {
			return fmt.Errorf("%w: %d", ErrInvalidPostgresPort, c.PostgresPort)
		}
	default:
		return fmt.Errorf("%w: %q (must be %q, %q or %q)",
			ErrInvalidDurableStore, c.DurableStore, StorePostgres, StoreQdrant, StoreNone)
	}

	return nil
}

// ValidateLLM checks that the live LLM backend can be used. Split from
// Validate so stub-backed runs (tests, offline development) do not require
// a Gemini credential.
func (c *Config) ValidateLLM() error {
	if os.Getenv("GEMINI_API_KEY") == "" {
		return fmt.Errorf("%w: GEMINI_API_KEY is required for generation and embeddings", ErrMissingAPIKey)
	}
	return nil
}

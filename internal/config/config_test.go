package config

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validConfig returns a configuration that passes Validate.
func validConfig() *Config {
	return &Config{
		SearchProvider:      SearchProviderTavily,
		TavilyAPIKey:        "tvly-test",
		MaxResultsPerQuery:  7,
		MaxCrawlConcurrency: 10,
		CrawlTimeoutMS:      5000,
		CrawlJitterMinMS:    500,
		CrawlJitterMaxMS:    2000,
		MaxContentBytes:     50_000,
		ChunkingStrategy:    ChunkingSimple,
		ChunkSize:           1000,
		ChunkOverlap:        200,
		KLexical:            20,
		KVector:             20,
		FusionTopN:          20,
		RRFConstant:         60,
		FinalK:              5,
		Languages:           []string{"ko", "en"},
		MaxProcessingTime:   10,
		ModelName:           "gemini-2.5-flash",
		EmbedderModel:       "gemini-embedding-001",
		DurableStore:        StoreNone,
		SessionIdleTimeout:  10 * time.Minute,
	}
}

func TestValidate(t *testing.T) {
	t.Run("valid config passes", func(t *testing.T) {
		require.NoError(t, validConfig().Validate())
	})

	t.Run("nil config", func(t *testing.T) {
		var c *Config
		assert.ErrorIs(t, c.Validate(), ErrConfigNil)
	})

	t.Run("tavily without key", func(t *testing.T) {
		c := validConfig()
		c.TavilyAPIKey = ""
		assert.ErrorIs(t, c.Validate(), ErrMissingAPIKey)
	})

	t.Run("google needs key and cse id", func(t *testing.T) {
		c := validConfig()
		c.SearchProvider = SearchProviderGoogle
		c.GoogleAPIKey = "k"
		assert.ErrorIs(t, c.Validate(), ErrMissingAPIKey)

		c.GoogleCSEID = "cx"
		assert.NoError(t, c.Validate())
	})

	t.Run("unknown provider", func(t *testing.T) {
		c := validConfig()
		c.SearchProvider = "bing"
		assert.ErrorIs(t, c.Validate(), ErrInvalidSearchProvider)
	})

	t.Run("unknown chunking strategy", func(t *testing.T) {
		c := validConfig()
		c.ChunkingStrategy = "semantic"
		assert.ErrorIs(t, c.Validate(), ErrInvalidChunking)
	})

	t.Run("deadline bounds", func(t *testing.T) {
		c := validConfig()
		c.MaxProcessingTime = 0
		assert.ErrorIs(t, c.Validate(), ErrInvalidDeadline)
		c.MaxProcessingTime = 301
		assert.ErrorIs(t, c.Validate(), ErrInvalidDeadline)
	})

	t.Run("overlap must stay under size", func(t *testing.T) {
		c := validConfig()
		c.ChunkOverlap = c.ChunkSize
		assert.ErrorIs(t, c.Validate(), ErrInvalidChunkWindow)
	})

	t.Run("final k bounded by fusion top n", func(t *testing.T) {
		c := validConfig()
		c.FinalK = c.FusionTopN + 1
		assert.ErrorIs(t, c.Validate(), ErrInvalidRetrievalK)
	})

	t.Run("jitter window ordered", func(t *testing.T) {
		c := validConfig()
		c.CrawlJitterMaxMS = c.CrawlJitterMinMS - 1
		assert.ErrorIs(t, c.Validate(), ErrInvalidJitter)
	})

	t.Run("postgres store checks port", func(t *testing.T) {
		c := validConfig()
		c.DurableStore = StorePostgres
		c.PostgresPort = 0
		assert.ErrorIs(t, c.Validate(), ErrInvalidPostgresPort)
	})
}

func TestDerivedValues(t *testing.T) {
	c := validConfig()
	assert.Equal(t, 10*time.Second, c.Deadline())
	assert.Equal(t, 5*time.Second, c.CrawlTimeout())

	c.PostgresHost = "db.internal"
	c.PostgresPort = 5432
	c.PostgresUser = "askweb"
	c.PostgresPassword = "s3cret"
	c.PostgresDBName = "askweb"
	c.PostgresSSLMode = "disable"
	url := c.PostgresURL()
	assert.Contains(t, url, "db.internal:5432")
	assert.True(t, strings.HasPrefix(url, "postgres://"))
}

func TestSecretMasking(t *testing.T) {
	c := validConfig()
	c.TavilyAPIKey = "tvly-supersecret"
	c.PostgresPassword = "hunter2"

	out, err := json.Marshal(c)
	require.NoError(t, err)
	s := string(out)
	assert.NotContains(t, s, "tvly-supersecret")
	assert.NotContains(t, s, "hunter2")

	assert.NotContains(t, c.String(), "hunter2")
}

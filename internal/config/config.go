// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.askweb/config.yaml, or ./config.yaml)
//  3. Default values
//
// Security: sensitive values (API keys) are never logged; MarshalJSON masks
// them. Required credentials are validated at load time and never silently
// defaulted.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Search provider identifiers used in Config.SearchProvider.
const (
	SearchProviderTavily = "tavily"
	SearchProviderGoogle = "google"
)

// Chunking strategy identifiers used in Config.ChunkingStrategy.
const (
	ChunkingSimple     = "simple"
	ChunkingContextual = "contextual"
)

// Durable store identifiers used in Config.DurableStore.
const (
	StorePostgres = "postgres"
	StoreQdrant   = "qdrant"
	StoreNone     = "none"
)

// Config stores application configuration.
// SECURITY: sensitive fields are explicitly masked in MarshalJSON().
// When adding new sensitive fields, update MarshalJSON.
type Config struct {
	// Web search configuration
	SearchProvider     string `mapstructure:"search_provider" json:"search_provider"`
	TavilyAPIKey       string `mapstructure:"tavily_api_key" json:"tavily_api_key"` // SENSITIVE: masked in MarshalJSON
	GoogleAPIKey       string `mapstructure:"google_api_key" json:"google_api_key"` // SENSITIVE: masked in MarshalJSON
	GoogleCSEID        string `mapstructure:"google_cse_id" json:"google_cse_id"`
	MaxResultsPerQuery int    `mapstructure:"max_results_per_query" json:"max_results_per_query"`

	// Crawler configuration
	MaxCrawlConcurrency int `mapstructure:"max_crawl_concurrency" json:"max_crawl_concurrency"`
	CrawlTimeoutMS      int `mapstructure:"crawl_timeout_ms" json:"crawl_timeout_ms"`
	CrawlJitterMinMS    int `mapstructure:"crawl_jitter_min_ms" json:"crawl_jitter_min_ms"`
	CrawlJitterMaxMS    int `mapstructure:"crawl_jitter_max_ms" json:"crawl_jitter_max_ms"`
	MaxContentBytes     int `mapstructure:"max_content_bytes" json:"max_content_bytes"`

	// Chunking configuration
	ChunkingStrategy string `mapstructure:"chunking_strategy" json:"chunking_strategy"`
	ChunkSize        int    `mapstructure:"chunk_size" json:"chunk_size"`
	ChunkOverlap     int    `mapstructure:"chunk_overlap" json:"chunk_overlap"`

	// Retrieval configuration
	KLexical    int `mapstructure:"k_lexical" json:"k_lexical"`
	KVector     int `mapstructure:"k_vector" json:"k_vector"`
	FusionTopN  int `mapstructure:"fusion_top_n" json:"fusion_top_n"`
	RRFConstant int `mapstructure:"rrf_c" json:"rrf_c"`
	FinalK      int `mapstructure:"final_k" json:"final_k"`

	// Query expansion configuration
	Languages []string `mapstructure:"languages" json:"languages"`

	// Pipeline configuration
	MaxProcessingTime float64 `mapstructure:"max_processing_time" json:"max_processing_time"` // seconds

	// LLM configuration
	ModelName     string `mapstructure:"model_name" json:"model_name"`
	EmbedderModel string `mapstructure:"embedder_model" json:"embedder_model"`

	// Durable store configuration
	DurableStore       string        `mapstructure:"durable_store" json:"durable_store"`
	SessionIdleTimeout time.Duration `mapstructure:"session_idle_timeout" json:"session_idle_timeout"`

	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	QdrantHost       string `mapstructure:"qdrant_host" json:"qdrant_host"`
	QdrantPort       int    `mapstructure:"qdrant_port" json:"qdrant_port"`
	QdrantCollection string `mapstructure:"qdrant_collection" json:"qdrant_collection"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".askweb")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		// Configuration file not found is not an error, use defaults
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// Fail fast on bad configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults(v *viper.Viper) {
	// Search defaults
	v.SetDefault("search_provider", SearchProviderTavily)
	v.SetDefault("max_results_per_query", 7)

	// Crawler defaults
	v.SetDefault("max_crawl_concurrency", 10)
	v.SetDefault("crawl_timeout_ms", 5000)
	v.SetDefault("crawl_jitter_min_ms", 500)
	v.SetDefault("crawl_jitter_max_ms", 2000)
	v.SetDefault("max_content_bytes", 50*1024)

	// Chunking defaults
	v.SetDefault("chunking_strategy", ChunkingSimple)
	v.SetDefault("chunk_size", 1000)
	v.SetDefault("chunk_overlap", 200)

	// Retrieval defaults
	v.SetDefault("k_lexical", 20)
	v.SetDefault("k_vector", 20)
	v.SetDefault("fusion_top_n", 20)
	v.SetDefault("rrf_c", 60)
	v.SetDefault("final_k", 5)

	// Query expansion defaults
	v.SetDefault("languages", []string{"ko", "en"})

	// Pipeline defaults
	v.SetDefault("max_processing_time", 10.0)

	// LLM defaults
	v.SetDefault("model_name", "gemini-2.5-flash")
	v.SetDefault("embedder_model", "gemini-embedding-001")

	// Durable store defaults
	v.SetDefault("durable_store", StoreNone)
	v.SetDefault("session_idle_timeout", 10*time.Minute)

	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "askweb")
	v.SetDefault("postgres_db_name", "askweb")
	v.SetDefault("postgres_ssl_mode", "disable")

	v.SetDefault("qdrant_host", "localhost")
	v.SetDefault("qdrant_port", 6334)
	v.SetDefault("qdrant_collection", "askweb_chunks")
}

// bindEnvVariables binds sensitive environment variables explicitly.
//
// Secrets come from the environment, never from the config file:
//  1. TAVILY_API_KEY - required when search_provider is "tavily"
//  2. GOOGLE_API_KEY / GOOGLE_CSE_ID - required when search_provider is "google"
//  3. GEMINI_API_KEY - read directly by Genkit (not via viper), checked in Validate
//  4. ASKWEB_POSTGRES_PASSWORD - postgres durable store credential
func bindEnvVariables(v *viper.Viper) {
	// Hardcoded keys cannot fail to bind; a panic here is a bug, not a runtime error
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("tavily_api_key", "TAVILY_API_KEY")
	mustBind("google_api_key", "GOOGLE_API_KEY")
	mustBind("google_cse_id", "GOOGLE_CSE_ID")
	mustBind("postgres_password", "ASKWEB_POSTGRES_PASSWORD")

	mustBind("search_provider", "ASKWEB_SEARCH_PROVIDER")
	mustBind("chunking_strategy", "ASKWEB_CHUNKING_STRATEGY")
	mustBind("durable_store", "ASKWEB_DURABLE_STORE")
	mustBind("model_name", "ASKWEB_MODEL_NAME")
}

// Deadline returns the pipeline wall-clock budget as a duration.
func (c *Config) Deadline() time.Duration {
	return time.Duration(c.MaxProcessingTime * float64(time.Second))
}

// CrawlTimeout returns the per-URL crawl timebox.
func (c *Config) CrawlTimeout() time.Duration {
	return time.Duration(c.CrawlTimeoutMS) * time.Millisecond
}

// PostgresURL returns the connection URL for the postgres durable store.
func (c *Config) PostgresURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.PostgresUser, c.PostgresPassword, c.PostgresHost, c.PostgresPort,
		c.PostgresDBName, c.PostgresSSLMode)
}

// maskedValue is the placeholder for masked sensitive data.
// Full-width blocks avoid accidental substring matches against real secrets.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging. Secrets of 8 chars or
// fewer are fully masked; longer secrets keep the first and last 2 chars for
// debug utility.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with explicit sensitive field masking.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.TavilyAPIKey = maskSecret(a.TavilyAPIKey)
	a.GoogleAPIKey = maskSecret(a.GoogleAPIKey)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}

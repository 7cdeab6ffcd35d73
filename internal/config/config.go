package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

type ServerConfig struct {
	Port      string  `toml:"port"`
	RateLimit float64 `toml:"rate_limit"` // requests per second, 0 disables
	Burst     int     `toml:"burst"`
}

type StoreConfig struct {
	S3Bucket  string `toml:"s3_bucket"`
	S3Key     string `toml:"s3_key"`
	Region    string `toml:"region"`
	LocalPath string `toml:"local_path"`
}

type SearchConfig struct {
	Backend     string `toml:"backend"` // "opensearch" or "memory"
	Host        string `toml:"host"`
	Port        int    `toml:"port"`
	Index       string `toml:"index"`
	Service     string `toml:"service"`
	Serverless  string `toml:"serverless"`
	UseVector   string `toml:"use_vector"`
	VectorField string `toml:"vector_field"`
}

type EmbeddingConfig struct {
	Provider      string   `toml:"provider"`
	Model         string   `toml:"model"`
	MaxChars      int      `toml:"max_chars"`
	RetryAttempts int      `toml:"retry_attempts"`
	RetryBackoff  Duration `toml:"retry_backoff"`
	CacheSize     int      `toml:"cache_size"`
	BreakerTrips  uint32   `toml:"breaker_trips"`
	BreakerReset  Duration `toml:"breaker_reset"`
}

type LLMConfig struct {
	Provider       string `toml:"provider"`
	Model          string `toml:"model"`
	EmbeddingModel string `toml:"embedding_model"`
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Region         string `toml:"region"`
}

type MemgraphConfig struct {
	URI      string `toml:"uri"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Export   bool   `toml:"export"`
}

type CacheConfig struct {
	RedisURL string   `toml:"redis_url"`
	Size     int      `toml:"size"`
	TTL      Duration `toml:"ttl"`
}

type GraphConfig struct {
	ClusterMethod string `toml:"cluster_method"` // "lpa" or "components"
}

type TracingConfig struct {
	Enabled     bool    `toml:"enabled"`
	ServiceName string  `toml:"service_name"`
	SampleRatio float64 `toml:"sample_ratio"`
}

type ConcurrencyConfig struct {
	BulkIngest int `toml:"bulk_ingest"`
	BulkChunk  int `toml:"bulk_chunk"`
}

type SummaryPrompts struct {
	Resolution      string `toml:"resolution"`
	StepsPerHit     int    `toml:"steps_per_hit"`
	MaxContextChars int    `toml:"max_context_chars"`
	MaxSteps        int    `toml:"max_steps"`
	Rerank          bool   `toml:"rerank"`
}

type Config struct {
	Server      ServerConfig      `toml:"server"`
	Store       StoreConfig       `toml:"store"`
	Search      SearchConfig      `toml:"search"`
	Embedding   EmbeddingConfig   `toml:"embedding"`
	LLM         LLMConfig         `toml:"llm"`
	Memgraph    MemgraphConfig    `toml:"memgraph"`
	Cache       CacheConfig       `toml:"cache"`
	Graph       GraphConfig       `toml:"graph"`
	Concurrency ConcurrencyConfig `toml:"concurrency"`
	Summary     SummaryPrompts    `toml:"summary"`
	Tracing     TracingConfig     `toml:"tracing"`
}

// Duration decodes TOML strings such as "1s" or "500ms".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(b), err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

const defaultResolutionPrompt = `New ticket:
%s

Context - similar past tickets (top %d):
%s

Using the context and your IT knowledge, provide a concise ordered list of recommended resolution steps.
For each step include: "step" (short text), "supportingDisplayIds" (list of displayId strings from the context that support the step), and "notes" (any prerequisites or checks).
Return only valid JSON with keys "recommendedSteps" and "sources".`

func Defaults() *Config {
	return &Config{
		Server: ServerConfig{Port: "8080", RateLimit: 20, Burst: 40},
		Store: StoreConfig{
			S3Key:     "it_tickets_kb.json",
			Region:    "us-east-1",
			LocalPath: "it_tickets_kb.json",
		},
		Search: SearchConfig{
			Backend:     "memory",
			Port:        443,
			Index:       "bedrock-knowledge-base-default-index",
			VectorField: "embedding",
		},
		Embedding: EmbeddingConfig{
			Provider:      "bedrock",
			MaxChars:      2000,
			RetryAttempts: 3,
			RetryBackoff:  Duration{time.Second},
			CacheSize:     4096,
			BreakerTrips:  5,
			BreakerReset:  Duration{30 * time.Second},
		},
		Cache:       CacheConfig{Size: 1024},
		Graph:       GraphConfig{ClusterMethod: "lpa"},
		Concurrency: ConcurrencyConfig{BulkIngest: 4, BulkChunk: 200},
		Summary: SummaryPrompts{
			Resolution:      defaultResolutionPrompt,
			StepsPerHit:     3,
			MaxContextChars: 1500,
			MaxSteps:        8,
		},
		Tracing: TracingConfig{ServiceName: "ticketkg", SampleRatio: 1},
	}
}

// Load reads a TOML file on top of Defaults.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}

	return cfg, nil
}

// ApplyEnv overrides file values with environment variables.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok {
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				*dst = n
			}
		}
	}

	str("PORT", &c.Server.Port)

	str("S3_BUCKET", &c.Store.S3Bucket)
	str("S3_KEY", &c.Store.S3Key)
	str("AWS_REGION", &c.Store.Region)
	str("LOCAL_KB_PATH", &c.Store.LocalPath)

	str("OPENSEARCH_HOST", &c.Search.Host)
	num("OPENSEARCH_PORT", &c.Search.Port)
	str("OPENSEARCH_INDEX", &c.Search.Index)
	str("OPENSEARCH_SERVICE", &c.Search.Service)
	str("OPENSEARCH_SERVERLESS", &c.Search.Serverless)
	str("USE_VECTOR_SEARCH", &c.Search.UseVector)
	if _, ok := lookup("OPENSEARCH_HOST"); ok && c.Search.Host != "" {
		c.Search.Backend = "opensearch"
	}

	str("BEDROCK_EMBEDDING_MODEL", &c.Embedding.Model)
	num("EMBEDDING_MAX_CHARS", &c.Embedding.MaxChars)

	str("LLM_PROVIDER", &c.LLM.Provider)
	str("LLM_MODEL", &c.LLM.Model)
	str("LLM_EMBEDDING_MODEL", &c.LLM.EmbeddingModel)
	str("LLM_API_KEY", &c.LLM.APIKey)
	str("LLM_BASE_URL", &c.LLM.BaseURL)

	str("MEMGRAPH_URI", &c.Memgraph.URI)
	str("MEMGRAPH_USER", &c.Memgraph.User)
	str("MEMGRAPH_PASSWORD", &c.Memgraph.Password)

	str("REDIS_URL", &c.Cache.RedisURL)

	if v, ok := lookup("TRACING_ENABLED"); ok {
		if on, ok := parseFlag(v); ok {
			c.Tracing.Enabled = on
		}
	}
	str("OTEL_SERVICE_NAME", &c.Tracing.ServiceName)
}

// Region returns the AWS region shared by the S3, Bedrock and OpenSearch clients.
func (c *Config) Region() string {
	if c.LLM.Region != "" {
		return c.LLM.Region
	}
	return c.Store.Region
}

// VectorEnabled resolves the tri-state use_vector switch. When unset, vector
// search is on only if an embedding model is configured.
func (c *Config) VectorEnabled() bool {
	if v, ok := parseFlag(c.Search.UseVector); ok {
		return v
	}
	return c.Embedding.Model != ""
}

// ServerlessMode resolves the tri-state serverless switch; ok is false when unset.
func (c *Config) ServerlessMode() (bool, bool) {
	return parseFlag(c.Search.Serverless)
}

func parseFlag(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes":
		return true, true
	case "0", "false", "no":
		return false, true
	}
	return false, false
}

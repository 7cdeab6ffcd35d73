package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func env(vars map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	}
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
[server]
port = "9090"

[search]
backend = "opensearch"
host = "search.example.com"

[embedding]
retry_backoff = "250ms"

[summary]
max_steps = 5
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "opensearch", cfg.Search.Backend)
	assert.Equal(t, "search.example.com", cfg.Search.Host)
	assert.Equal(t, 250*time.Millisecond, cfg.Embedding.RetryBackoff.Duration)
	assert.Equal(t, 5, cfg.Summary.MaxSteps)

	// untouched sections keep their defaults
	assert.Equal(t, "embedding", cfg.Search.VectorField)
	assert.Equal(t, 3, cfg.Summary.StepsPerHit)
	assert.Contains(t, cfg.Summary.Resolution, "recommendedSteps")
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "[server\nport ="))
	assert.ErrorContains(t, err, "failed to parse TOML")

	_, err = Load(writeConfig(t, "[embedding]\nretry_backoff = \"soon\""))
	assert.ErrorContains(t, err, "invalid duration")
}

func TestApplyEnv(t *testing.T) {
	cfg := Defaults()
	cfg.ApplyEnv(env(map[string]string{
		"PORT":                    " 7070 ",
		"S3_BUCKET":               "tickets",
		"OPENSEARCH_HOST":         "abc.aoss.amazonaws.com",
		"OPENSEARCH_PORT":         "9200",
		"BEDROCK_EMBEDDING_MODEL": "amazon.titan-embed-text-v2:0",
		"EMBEDDING_MAX_CHARS":     "not-a-number",
		"REDIS_URL":               "redis://localhost:6379/0",
		"LLM_PROVIDER":            "",
	}))

	assert.Equal(t, "7070", cfg.Server.Port)
	assert.Equal(t, "tickets", cfg.Store.S3Bucket)
	assert.Equal(t, "opensearch", cfg.Search.Backend)
	assert.Equal(t, 9200, cfg.Search.Port)
	assert.Equal(t, "amazon.titan-embed-text-v2:0", cfg.Embedding.Model)
	assert.Equal(t, 2000, cfg.Embedding.MaxChars)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Cache.RedisURL)
	assert.Equal(t, "", cfg.LLM.Provider)
}

func TestApplyEnv_Tracing(t *testing.T) {
	cfg := Defaults()
	assert.False(t, cfg.Tracing.Enabled)
	assert.Equal(t, "ticketkg", cfg.Tracing.ServiceName)

	cfg.ApplyEnv(env(map[string]string{"TRACING_ENABLED": "yes", "OTEL_SERVICE_NAME": "kg-api"}))
	assert.True(t, cfg.Tracing.Enabled)
	assert.Equal(t, "kg-api", cfg.Tracing.ServiceName)

	cfg.ApplyEnv(env(map[string]string{"TRACING_ENABLED": "sometimes"}))
	assert.True(t, cfg.Tracing.Enabled)
}

func TestApplyEnv_EmptyHostKeepsMemoryBackend(t *testing.T) {
	cfg := Defaults()
	cfg.ApplyEnv(env(map[string]string{"OPENSEARCH_HOST": "  "}))
	assert.Equal(t, "memory", cfg.Search.Backend)
}

func TestVectorEnabled(t *testing.T) {
	cases := []struct {
		useVector string
		model     string
		want      bool
	}{
		{"", "", false},
		{"", "amazon.titan-embed-text-v2:0", true},
		{"false", "amazon.titan-embed-text-v2:0", false},
		{"YES", "", true},
		{"1", "m", true},
		{"maybe", "", false},
	}
	for _, tc := range cases {
		cfg := Defaults()
		cfg.Search.UseVector = tc.useVector
		cfg.Embedding.Model = tc.model
		assert.Equal(t, tc.want, cfg.VectorEnabled(), "use_vector=%q model=%q", tc.useVector, tc.model)
	}
}

func TestServerlessMode(t *testing.T) {
	cfg := Defaults()
	_, ok := cfg.ServerlessMode()
	assert.False(t, ok)

	cfg.Search.Serverless = "true"
	v, ok := cfg.ServerlessMode()
	assert.True(t, ok)
	assert.True(t, v)

	cfg.Search.Serverless = "no"
	v, ok = cfg.ServerlessMode()
	assert.True(t, ok)
	assert.False(t, v)
}

func TestRegion(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, "us-east-1", cfg.Region())

	cfg.LLM.Region = "eu-west-1"
	assert.Equal(t, "eu-west-1", cfg.Region())
}

func TestDuration_MarshalText(t *testing.T) {
	b, err := Duration{1500 * time.Millisecond}.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1.5s", string(b))
}

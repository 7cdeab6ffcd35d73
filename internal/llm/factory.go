package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	"github.com/agenthands/ticketkg/internal/config"
)

// NewClient builds the text generation client (and, where the provider has
// one, an embedder) for cfg. An empty provider disables generation.
func NewClient(ctx context.Context, cfg config.LLMConfig, logger *slog.Logger) (LLMClient, EmbedderClient, error) {
	provider := strings.ToLower(cfg.Provider)

	switch provider {
	case "":
		return nil, nil, nil

	case "openai":
		c := NewOpenAIClient(cfg.APIKey, cfg.Model, cfg.EmbeddingModel, cfg.BaseURL)
		return c, c, nil

	case "gemini":
		c, err := NewGeminiClient(ctx, cfg.APIKey, cfg.Model, cfg.EmbeddingModel)
		if err != nil {
			return nil, nil, err
		}
		return c, c, nil

	case "claude":
		c := NewClaudeClient(cfg.APIKey, cfg.Model, cfg.BaseURL)
		return c, nil, nil // Claude has no embedding endpoint

	case "bedrock":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		c := NewBedrockClient(awsCfg, cfg.Model, cfg.EmbeddingModel)
		return c, c, nil

	case "ollama":
		// Ollama speaks the OpenAI API under /v1
		baseURL := cfg.BaseURL
		if !strings.HasSuffix(baseURL, "/v1") {
			baseURL = fmt.Sprintf("%s/v1", strings.TrimRight(baseURL, "/"))
		}
		logger.Info("initializing ollama via OpenAI-compatible API", "base_url", baseURL)

		// API key is ignored by Ollama but required by the client config
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = "ollama"
		}

		c := NewOpenAIClient(apiKey, cfg.Model, cfg.EmbeddingModel, baseURL)
		return c, c, nil

	default:
		return nil, nil, fmt.Errorf("unsupported llm provider: %s", provider)
	}
}

// NewEmbedder builds the embedding collaborator used for vector retrieval
// and reindexing, wrapped in the cache, retry and breaker layers. It returns
// nil when no embedding model is configured.
func NewEmbedder(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*CachingEmbedder, error) {
	ec := cfg.Embedding
	if ec.Model == "" {
		return nil, nil
	}

	var inner EmbedderClient
	switch strings.ToLower(ec.Provider) {
	case "", "bedrock":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region()))
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		inner = NewBedrockClient(awsCfg, cfg.LLM.Model, ec.Model)
	default:
		llmCfg := cfg.LLM
		llmCfg.Provider = ec.Provider
		llmCfg.EmbeddingModel = ec.Model
		_, emb, err := NewClient(ctx, llmCfg, logger)
		if err != nil {
			return nil, err
		}
		if emb == nil {
			return nil, fmt.Errorf("provider %s has no embedding support", ec.Provider)
		}
		inner = emb
	}

	breaker := NewCircuitBreaker("embeddings", CircuitBreakerConfig{
		MaxFailures: ec.BreakerTrips,
		Timeout:     ec.BreakerReset.Duration,
	}, logger)

	return NewCachingEmbedder(inner, EmbeddingOptions{
		Model:         ec.Model,
		MaxChars:      ec.MaxChars,
		RetryAttempts: ec.RetryAttempts,
		RetryBackoff:  ec.RetryBackoff.Duration,
		CacheSize:     ec.CacheSize,
		Breaker:       breaker,
		Logger:        logger,
	})
}

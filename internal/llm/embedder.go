package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type EmbeddingOptions struct {
	Model         string
	MaxChars      int
	RetryAttempts int
	RetryBackoff  time.Duration
	CacheSize     int
	Breaker       *CircuitBreaker
	Logger        *slog.Logger
}

type cachedVector struct {
	vec      []float32
	rejected bool
}

// CachingEmbedder wraps an embedder with a bounded (model, text prefix)
// cache, a hard input cap and retries with exponential backoff. Rejected
// inputs are remembered; transient failures are not.
type CachingEmbedder struct {
	inner  EmbedderClient
	opts   EmbeddingOptions
	cache  *lru.Cache[string, cachedVector]
	logger *slog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

func NewCachingEmbedder(inner EmbedderClient, opts EmbeddingOptions) (*CachingEmbedder, error) {
	if opts.MaxChars <= 0 {
		opts.MaxChars = 2000
	}
	if opts.RetryAttempts <= 0 {
		opts.RetryAttempts = 3
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 4096
	}
	cache, err := lru.New[string, cachedVector](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding cache: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &CachingEmbedder{inner: inner, opts: opts, cache: cache, logger: logger, sleep: sleepCtx}, nil
}

func (e *CachingEmbedder) Model() string { return e.opts.Model }

func (e *CachingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: empty text", ErrValidation)
	}
	if r := []rune(text); len(r) > e.opts.MaxChars {
		text = string(r[:e.opts.MaxChars])
	}
	key := e.opts.Model + "::" + text

	if c, ok := e.cache.Get(key); ok {
		if c.rejected {
			return nil, fmt.Errorf("%w: cached rejection", ErrValidation)
		}
		return append([]float32(nil), c.vec...), nil
	}

	var lastErr error
	for attempt := 1; attempt <= e.opts.RetryAttempts; attempt++ {
		vec, err := e.call(ctx, text)
		if err == nil {
			if len(vec) == 0 {
				err = errors.New("empty embedding")
			} else {
				e.cache.Add(key, cachedVector{vec: vec})
				return append([]float32(nil), vec...), nil
			}
		}
		lastErr = err

		if errors.Is(err, ErrValidation) {
			e.logger.Warn("embedding input rejected", "model", e.opts.Model, "chars", len(text), "error", err)
			e.cache.Add(key, cachedVector{rejected: true})
			return nil, err
		}
		if errors.Is(err, ErrCircuitOpen) || ctx.Err() != nil {
			break
		}
		if attempt < e.opts.RetryAttempts {
			backoff := e.opts.RetryBackoff * time.Duration(1<<(attempt-1))
			if err := e.sleep(ctx, backoff); err != nil {
				lastErr = err
				break
			}
		}
	}

	e.logger.Warn("embedding failed", "model", e.opts.Model, "attempts", e.opts.RetryAttempts, "error", lastErr)
	return nil, fmt.Errorf("embedding failed: %w", lastErr)
}

func (e *CachingEmbedder) call(ctx context.Context, text string) ([]float32, error) {
	if e.opts.Breaker == nil {
		return e.inner.Embed(ctx, text)
	}
	return e.opts.Breaker.Execute(ctx, func() ([]float32, error) {
		return e.inner.Embed(ctx, text)
	})
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

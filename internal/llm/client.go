// Package llm holds the text-generation, embedding and reranking clients
// used by retrieval, indexing and resolution suggestions.
package llm

import (
	"context"
	"errors"
)

// ErrValidation marks a request the provider rejected as invalid. Such
// requests are never retried.
var ErrValidation = errors.New("request rejected by provider")

// SystemPrompt frames every generation request. Callers put the ticket and
// the retrieved context in the user prompt.
const SystemPrompt = "You are an expert IT support assistant. Answer with concise, ordered, actionable steps " +
	"grounded in the past tickets you are given. When asked for JSON, return JSON only."

// maxOutputTokens bounds generated answers; resolution plans are short.
const maxOutputTokens = 1000

type LLMClient interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type EmbedderClient interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type RerankerClient interface {
	Rank(ctx context.Context, query string, documents []string) ([]int, error)
}

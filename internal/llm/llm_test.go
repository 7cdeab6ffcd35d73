package llm

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockEmbedder struct {
	Results []error
	Vector  []float32
	Calls   int
	Texts   []string
}

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.Calls++
	m.Texts = append(m.Texts, text)
	if len(m.Results) > 0 {
		err := m.Results[0]
		m.Results = m.Results[1:]
		if err != nil {
			return nil, err
		}
	}
	return m.Vector, nil
}

type MockLLM struct {
	Response string
	Err      error
	Prompts  []string
}

func (m *MockLLM) Generate(ctx context.Context, prompt string) (string, error) {
	m.Prompts = append(m.Prompts, prompt)
	return m.Response, m.Err
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newTestEmbedder(t *testing.T, inner EmbedderClient, opts EmbeddingOptions) (*CachingEmbedder, *[]time.Duration) {
	t.Helper()
	opts.Logger = quiet()
	e, err := NewCachingEmbedder(inner, opts)
	require.NoError(t, err)
	var sleeps []time.Duration
	e.sleep = func(_ context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}
	return e, &sleeps
}

func TestCachingEmbedder_CachesByModelAndPrefix(t *testing.T) {
	inner := &MockEmbedder{Vector: []float32{1, 2}}
	e, _ := newTestEmbedder(t, inner, EmbeddingOptions{Model: "titan", MaxChars: 5})

	v, err := e.Embed(context.Background(), "abcdefgh")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, v)
	assert.Equal(t, []string{"abcde"}, inner.Texts)

	// same prefix hits the cache
	v[0] = 99
	v, err = e.Embed(context.Background(), "abcdeXYZ")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, v)
	assert.Equal(t, 1, inner.Calls)
}

func TestCachingEmbedder_RetriesWithBackoff(t *testing.T) {
	boom := errors.New("throttled")
	inner := &MockEmbedder{Results: []error{boom, boom, nil}, Vector: []float32{3}}
	e, sleeps := newTestEmbedder(t, inner, EmbeddingOptions{Model: "m", RetryAttempts: 3, RetryBackoff: time.Second})

	v, err := e.Embed(context.Background(), "vpn")
	require.NoError(t, err)
	assert.Equal(t, []float32{3}, v)
	assert.Equal(t, 3, inner.Calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *sleeps)
}

func TestCachingEmbedder_TransientFailureNotCached(t *testing.T) {
	boom := errors.New("timeout")
	inner := &MockEmbedder{Results: []error{boom, boom}, Vector: []float32{1}}
	e, _ := newTestEmbedder(t, inner, EmbeddingOptions{Model: "m", RetryAttempts: 2})

	_, err := e.Embed(context.Background(), "vpn")
	assert.ErrorIs(t, err, boom)

	v, err := e.Embed(context.Background(), "vpn")
	require.NoError(t, err)
	assert.Equal(t, []float32{1}, v)
	assert.Equal(t, 3, inner.Calls)
}

func TestCachingEmbedder_ValidationShortCircuits(t *testing.T) {
	inner := &MockEmbedder{Results: []error{ErrValidation}}
	e, sleeps := newTestEmbedder(t, inner, EmbeddingOptions{Model: "m", RetryAttempts: 3})

	_, err := e.Embed(context.Background(), "bad")
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, 1, inner.Calls)
	assert.Empty(t, *sleeps)

	_, err = e.Embed(context.Background(), "bad")
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, 1, inner.Calls, "rejection is cached")

	_, err = e.Embed(context.Background(), "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCachingEmbedder_BreakerOpens(t *testing.T) {
	boom := errors.New("down")
	inner := &MockEmbedder{Results: []error{boom, boom, boom, boom}}
	cb := NewCircuitBreaker("test", CircuitBreakerConfig{MaxFailures: 2, Timeout: time.Hour}, quiet())
	e, _ := newTestEmbedder(t, inner, EmbeddingOptions{Model: "m", RetryAttempts: 3, Breaker: cb})

	_, err := e.Embed(context.Background(), "a")
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 2, inner.Calls)
	assert.Equal(t, "open", cb.State())
}

func TestCircuitBreaker_ValidationDoesNotTrip(t *testing.T) {
	cb := NewCircuitBreaker("test", CircuitBreakerConfig{MaxFailures: 1, Timeout: time.Hour}, quiet())
	for i := 0; i < 3; i++ {
		_, err := cb.Execute(context.Background(), func() ([]float32, error) { return nil, ErrValidation })
		assert.ErrorIs(t, err, ErrValidation)
	}
	assert.Equal(t, "closed", cb.State())
}

func TestSleepCtx(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepCtx(ctx, time.Hour), context.Canceled)
	assert.NoError(t, sleepCtx(context.Background(), 0))
}

type mockBedrock struct {
	invokeBody []byte
	invokeErr  error
	invokeIn   *bedrockruntime.InvokeModelInput
	converse   *bedrockruntime.ConverseOutput
	converseIn *bedrockruntime.ConverseInput
}

func (m *mockBedrock) InvokeModel(_ context.Context, in *bedrockruntime.InvokeModelInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	m.invokeIn = in
	if m.invokeErr != nil {
		return nil, m.invokeErr
	}
	return &bedrockruntime.InvokeModelOutput{Body: m.invokeBody}, nil
}

func (m *mockBedrock) Converse(_ context.Context, in *bedrockruntime.ConverseInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	m.converseIn = in
	return m.converse, nil
}

func TestBedrock_Embed(t *testing.T) {
	m := &mockBedrock{invokeBody: []byte(`{"embedding":[0.1,0.2],"inputTextTokenCount":3}`)}
	c := &BedrockClient{api: m, embedModel: "amazon.titan-embed-text-v2:0"}

	v, err := c.Embed(context.Background(), "vpn")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2}, v)
	assert.JSONEq(t, `{"inputText":"vpn"}`, string(m.invokeIn.Body))

	m.invokeErr = &types.ValidationException{Message: new(string)}
	_, err = c.Embed(context.Background(), "vpn")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestBedrock_Generate(t *testing.T) {
	m := &mockBedrock{converse: &bedrockruntime.ConverseOutput{
		Output: &types.ConverseOutputMemberMessage{Value: types.Message{
			Role:    types.ConversationRoleAssistant,
			Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: `{"recommendedSteps":[]}`}},
		}},
	}}
	c := &BedrockClient{api: m, model: "amazon.nova-lite-v1:0", maxTokens: 512}

	out, err := c.Generate(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, `{"recommendedSteps":[]}`, out)
	assert.Equal(t, "amazon.nova-lite-v1:0", *m.converseIn.ModelId)
}

func TestEmbeddingPayload(t *testing.T) {
	assert.Equal(t, map[string]any{"inputText": "x"}, EmbeddingPayload("amazon.titan-embed-text-v2:0", "x"))
	assert.Equal(t, map[string]any{"input": "x"}, EmbeddingPayload("other", "x"))
	assert.Contains(t, EmbeddingPayload("cohere.embed-english-v3", "x"), "texts")
}

func TestParseEmbeddingResponse(t *testing.T) {
	cases := map[string]string{
		"titan":      `{"embedding":[1,2]}`,
		"embeddings": `{"embeddings":[[1,2]]}`,
		"typed":      `{"embeddings":{"float":[[1,2]]}}`,
		"results":    `{"results":[{"embedding":[1,2]}]}`,
		"bare":       `[[1,2]]`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			v, err := ParseEmbeddingResponse([]byte(body))
			require.NoError(t, err)
			assert.Equal(t, []float32{1, 2}, v)
		})
	}

	for _, body := range []string{`{}`, `[]`, `"x"`, `{"embeddings":[]}`} {
		_, err := ParseEmbeddingResponse([]byte(body))
		assert.Error(t, err, body)
	}
}

func TestReranker(t *testing.T) {
	r := NewSimpleLLMReranker(&MockLLM{Response: "2, 0, 7, 2"})
	got, err := r.Rank(context.Background(), "vpn", []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 0, 1}, got)

	r = NewSimpleLLMReranker(&MockLLM{Err: errors.New("down")})
	got, err = r.Rank(context.Background(), "vpn", []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, got)
}

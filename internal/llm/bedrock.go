package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

// BedrockAPI is the subset of the Bedrock runtime client used here.
type BedrockAPI interface {
	InvokeModel(ctx context.Context, in *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
	Converse(ctx context.Context, in *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockClient generates text through the Converse API and embeddings
// through InvokeModel.
type BedrockClient struct {
	api        BedrockAPI
	model      string
	embedModel string
	maxTokens  int32
}

func NewBedrockClient(cfg aws.Config, model, embedModel string) *BedrockClient {
	return &BedrockClient{
		api:        bedrockruntime.NewFromConfig(cfg),
		model:      model,
		embedModel: embedModel,
		maxTokens:  512,
	}
}

func (c *BedrockClient) Generate(ctx context.Context, prompt string) (string, error) {
	out, err := c.api.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId: aws.String(c.model),
		System:  []types.SystemContentBlock{&types.SystemContentBlockMemberText{Value: SystemPrompt}},
		Messages: []types.Message{{
			Role:    types.ConversationRoleUser,
			Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: prompt}},
		}},
		InferenceConfig: &types.InferenceConfiguration{
			MaxTokens:   aws.Int32(c.maxTokens),
			Temperature: aws.Float32(0),
		},
	})
	if err != nil {
		return "", bedrockError(err)
	}
	msg, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return "", fmt.Errorf("unexpected converse output %T", out.Output)
	}
	var sb strings.Builder
	for _, block := range msg.Value.Content {
		if text, ok := block.(*types.ContentBlockMemberText); ok {
			sb.WriteString(text.Value)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("no response content")
	}
	return sb.String(), nil
}

func (c *BedrockClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if c.embedModel == "" {
		return nil, fmt.Errorf("no embedding model configured")
	}
	body, err := json.Marshal(EmbeddingPayload(c.embedModel, text))
	if err != nil {
		return nil, err
	}
	out, err := c.api.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(c.embedModel),
		Body:        body,
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
	})
	if err != nil {
		return nil, bedrockError(err)
	}
	return ParseEmbeddingResponse(out.Body)
}

// EmbeddingPayload builds the model-specific request body.
func EmbeddingPayload(model, text string) map[string]any {
	m := strings.ToLower(model)
	switch {
	case strings.Contains(m, "titan-embed") || strings.Contains(m, "titan_embed"):
		return map[string]any{"inputText": text}
	case strings.Contains(m, "cohere.embed"):
		return map[string]any{"texts": []string{text}, "input_type": "search_query"}
	default:
		return map[string]any{"input": text}
	}
}

// ParseEmbeddingResponse accepts the response shapes of the Bedrock embedding
// models: {"embedding": [...]}, {"embeddings": [[...]]},
// {"embeddings": {"float": [[...]]}}, {"results": [{"embedding": [...]}]}
// and a bare [[...]].
func ParseEmbeddingResponse(body []byte) ([]float32, error) {
	var list [][]float32
	if err := json.Unmarshal(body, &list); err == nil {
		if len(list) > 0 && len(list[0]) > 0 {
			return list[0], nil
		}
		return nil, fmt.Errorf("no embedding in response")
	}

	var obj struct {
		Embedding  []float32       `json:"embedding"`
		Embeddings json.RawMessage `json:"embeddings"`
		Results    []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, fmt.Errorf("failed to decode embedding response: %w", err)
	}
	if len(obj.Embedding) > 0 {
		return obj.Embedding, nil
	}
	if len(obj.Embeddings) > 0 {
		var nested [][]float32
		if err := json.Unmarshal(obj.Embeddings, &nested); err == nil && len(nested) > 0 && len(nested[0]) > 0 {
			return nested[0], nil
		}
		var typed map[string][][]float32
		if err := json.Unmarshal(obj.Embeddings, &typed); err == nil {
			if f := typed["float"]; len(f) > 0 && len(f[0]) > 0 {
				return f[0], nil
			}
		}
	}
	if len(obj.Results) > 0 && len(obj.Results[0].Embedding) > 0 {
		return obj.Results[0].Embedding, nil
	}
	return nil, fmt.Errorf("no embedding in response")
}

func bedrockError(err error) error {
	var ve *types.ValidationException
	if errors.As(err, &ve) {
		return fmt.Errorf("%w: %s", ErrValidation, ve.ErrorMessage())
	}
	return err
}

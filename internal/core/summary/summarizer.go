// Package summary proposes resolution steps for a new ticket from the
// resolutions of similar past tickets.
package summary

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/agenthands/ticketkg/internal/config"
	"github.com/agenthands/ticketkg/internal/core/common"
	"github.com/agenthands/ticketkg/internal/core/model"
	"github.com/agenthands/ticketkg/internal/llm"
	"github.com/agenthands/ticketkg/internal/retrieval"
	"github.com/agenthands/ticketkg/internal/ticket"
)

// Retriever finds past tickets similar to a query.
type Retriever interface {
	Search(ctx context.Context, query string, topK int) ([]model.Hit, error)
}

const defaultMaxSteps = 8

var promptTicketKeys = []string{"displayId", "subject", "requester", "subcategory", "priority", "description"}

type Suggester struct {
	Retriever Retriever
	LLM       llm.LLMClient      // nil always synthesizes
	Reranker  llm.RerankerClient // optional
	Prompts   config.SummaryPrompts
	Logger    *slog.Logger
}

func NewSuggester(r Retriever, llmClient llm.LLMClient, prompts config.SummaryPrompts, logger *slog.Logger) *Suggester {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Suggester{Retriever: r, LLM: llmClient, Prompts: prompts, Logger: logger}
	if llmClient != nil && prompts.Rerank {
		s.Reranker = llm.NewSimpleLLMReranker(llmClient)
	}
	return s
}

// SummarizeForPrompt renders a hit as "subject -> step | step" using at most
// maxSteps steps, or just the subject when it has none.
func SummarizeForPrompt(hit model.Hit, maxSteps int) string {
	steps := hit.ResolutionSteps
	if maxSteps >= 0 && len(steps) > maxSteps {
		steps = steps[:maxSteps]
	}
	trimmed := make([]string, 0, len(steps))
	for _, s := range steps {
		trimmed = append(trimmed, strings.TrimSpace(s))
	}
	text := strings.Join(trimmed, " | ")
	if text == "" {
		return hit.Subject
	}
	return hit.Subject + " -> " + text
}

// BuildRetrievalContext lists hits as "- [displayId] summary" lines. Output
// longer than maxChars is cut back to the last whole line that fits.
func BuildRetrievalContext(hits []model.Hit, maxSteps, maxChars int) string {
	var parts []string
	for _, h := range hits {
		if summary := SummarizeForPrompt(h, maxSteps); summary != "" {
			parts = append(parts, fmt.Sprintf("- [%s] %s", h.DisplayID, summary))
		}
	}
	combined := strings.Join(parts, "\n")
	if maxChars > 0 && len(combined) > maxChars {
		combined = combined[:maxChars]
		if i := strings.LastIndex(combined, "\n"); i >= 0 {
			combined = combined[:i]
		}
	}
	return combined
}

// QueryText is the retrieval query built from a new ticket.
func QueryText(t ticket.Ticket) string {
	return fmt.Sprintf("%s. Requester: %s. Subcategory: %s. Priority: %s.",
		t.String("subject"), t.Name("requester"), t.String("subcategory"), t.String("priority"))
}

// Suggest retrieves topK similar tickets and asks the LLM for ordered
// resolution steps. When no LLM is configured or its answer is unusable the
// steps are synthesized from the retrieved resolutions instead.
func (s *Suggester) Suggest(ctx context.Context, t ticket.Ticket, topK int) (model.Suggestion, error) {
	query := QueryText(t)
	hits, err := s.Retriever.Search(ctx, query, topK)
	if err != nil {
		return model.Suggestion{}, fmt.Errorf("retrieve similar tickets: %w", err)
	}
	hits = s.rerank(ctx, query, hits)

	if s.LLM != nil {
		out, err := s.generate(ctx, t, hits)
		if err == nil {
			return out, nil
		}
		s.Logger.Warn("llm suggestion unusable, synthesizing from retrievals", "error", err)
	}
	return s.synthesize(hits), nil
}

func (s *Suggester) rerank(ctx context.Context, query string, hits []model.Hit) []model.Hit {
	if s.Reranker == nil || len(hits) < 2 {
		return hits
	}
	docs := make([]string, len(hits))
	for i, h := range hits {
		docs[i] = SummarizeForPrompt(h, s.Prompts.StepsPerHit)
	}
	order, err := s.Reranker.Rank(ctx, query, docs)
	if err != nil || len(order) != len(hits) {
		return hits
	}
	out := make([]model.Hit, 0, len(hits))
	for _, i := range order {
		out = append(out, hits[i])
	}
	return out
}

func (s *Suggester) generate(ctx context.Context, t ticket.Ticket, hits []model.Hit) (model.Suggestion, error) {
	fields := make(map[string]any, len(promptTicketKeys))
	for _, k := range promptTicketKeys {
		fields[k] = t.Get(k)
	}
	ticketJSON, err := json.MarshalIndent(fields, "", "")
	if err != nil {
		return model.Suggestion{}, err
	}

	retrieved := BuildRetrievalContext(hits, s.Prompts.StepsPerHit, s.Prompts.MaxContextChars)
	if retrieved == "" {
		retrieved = "(no similar tickets found)"
	}
	prompt := fmt.Sprintf(s.Prompts.Resolution, ticketJSON, len(hits), retrieved)

	response, err := s.LLM.Generate(ctx, prompt)
	if err != nil {
		return model.Suggestion{}, fmt.Errorf("failed to generate suggestion: %w", err)
	}
	result, err := common.ParseJSON[model.Suggestion](response)
	if err != nil {
		return model.Suggestion{}, fmt.Errorf("failed to parse suggestion: %w", err)
	}
	if len(result.RecommendedSteps) == 0 {
		return model.Suggestion{}, fmt.Errorf("suggestion has no steps")
	}
	for i := range result.RecommendedSteps {
		if result.RecommendedSteps[i].SupportingDisplayIDs == nil {
			result.RecommendedSteps[i].SupportingDisplayIDs = []string{}
		}
	}
	result.Sources = hits
	return result, nil
}

func (s *Suggester) synthesize(hits []model.Hit) model.Suggestion {
	limit := s.Prompts.MaxSteps
	if limit <= 0 {
		limit = defaultMaxSteps
	}
	steps := retrieval.SynthesizeSteps(hits, limit)
	recommended := make([]model.RecommendedStep, 0, len(steps))
	for _, step := range steps {
		supporting := []string{}
		for _, h := range hits {
			if slices.ContainsFunc(h.ResolutionSteps, func(s string) bool { return strings.TrimSpace(s) == step }) {
				supporting = append(supporting, h.DisplayID)
			}
		}
		recommended = append(recommended, model.RecommendedStep{Step: step, SupportingDisplayIDs: supporting})
	}
	if hits == nil {
		hits = []model.Hit{}
	}
	return model.Suggestion{RecommendedSteps: recommended, Sources: hits, Synthesized: true}
}

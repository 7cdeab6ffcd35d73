package llm

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

type SimpleLLMReranker struct {
	LLM LLMClient
}

func NewSimpleLLMReranker(client LLMClient) *SimpleLLMReranker {
	return &SimpleLLMReranker{LLM: client}
}

// Rank orders docs by relevance to query. Indices the model omits are
// appended in their original order; on error the original order is kept.
func (r *SimpleLLMReranker) Rank(ctx context.Context, query string, docs []string) ([]int, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	if len(docs) == 1 {
		return []int{0}, nil
	}

	var docList strings.Builder
	for i, d := range docs {
		// Truncate very long docs
		content := d
		if len(content) > 200 {
			content = content[:200] + "..."
		}
		fmt.Fprintf(&docList, "[%d] %s\n", i, content)
	}

	prompt := fmt.Sprintf(`You are a search relevance optimization system for IT support tickets.
New ticket: %s

Past tickets:
%s

Rank the past tickets above based on how useful their resolution is for the new ticket.
Output ONLY the indices of the tickets in order of relevance, separated by commas.
Example: 0, 2, 1
Do not output any other text.`, query, docList.String())

	resp, err := r.LLM.Generate(ctx, prompt)
	if err != nil {
		return identity(len(docs)), nil
	}

	return completeRanking(parseIndices(resp), len(docs)), nil
}

var indexPattern = regexp.MustCompile(`\d+`)

func parseIndices(s string) []int {
	matches := indexPattern.FindAllString(s, -1)
	var indices []int
	for _, m := range matches {
		if i, err := strconv.Atoi(m); err == nil {
			indices = append(indices, i)
		}
	}
	return indices
}

// completeRanking drops out-of-range and repeated indices and appends any
// index the model left out.
func completeRanking(ranked []int, n int) []int {
	seen := make([]bool, n)
	out := make([]int, 0, n)
	for _, i := range ranked {
		if i < 0 || i >= n || seen[i] {
			continue
		}
		seen[i] = true
		out = append(out, i)
	}
	for i := 0; i < n; i++ {
		if !seen[i] {
			out = append(out, i)
		}
	}
	return out
}

func identity(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

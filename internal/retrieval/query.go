package retrieval

import (
	"strings"
	"time"

	"github.com/agenthands/ticketkg/internal/search"
)

var (
	sourceFields = []string{
		"ticketId", "displayId", "subject", "requester_name", "technician_name",
		"requester", "technician", "resolutionSteps", "status", "priority",
	}
	highlightFields = []string{"subject", "resolutionSteps", "subcategory"}

	// Statuses of tickets that were successfully worked.
	closedStatuses = []any{"Closed", "Resolved"}
)

const (
	recencyWindow  = 30 * 24 * time.Hour
	closedWeight   = 1.5
	recentWeight   = 1.2
	stepTermBoost  = 1.2
	stepTermLimit  = 4
	rangeTimestamp = "2006-01-02T15:04:05"
)

func knnRequest(field string, vec []float32, topK int) search.Request {
	return search.Request{
		Size:   topK,
		Query:  search.KNNQuery{Field: field, Vector: vec, K: topK},
		Source: sourceFields,
	}
}

// hybridRequest combines subject phrase and fuzzy matches, the expanded
// multi-field match and per-term step matches under a function score that
// adds weight for closed and recently updated tickets.
func hybridRequest(query string, terms []string, topK int, now time.Time) search.Request {
	var should []search.Query
	if query != "" {
		should = append(should,
			search.MatchPhraseQuery{Field: "subject", Text: query, Boost: 6.0},
			search.MatchQuery{Field: "subject", Text: query, Fuzziness: "AUTO", Boost: 2.5},
		)
	}
	expanded := strings.Join(terms, " ")
	if len(terms) > 0 {
		should = append(should, search.MultiMatchQuery{
			Text:      expanded,
			Fields:    []string{"subject^3", "subcategory^2", "requester_name^1", "technician_name^1", "resolutionSteps^1.25"},
			Type:      "best_fields",
			Fuzziness: "AUTO",
			Operator:  "or",
			Boost:     1.5,
		})
	}
	for i, term := range terms {
		if i >= stepTermLimit {
			break
		}
		should = append(should, search.MatchQuery{Field: "resolutionSteps", Text: term, Boost: stepTermBoost})
	}

	scored := search.FunctionScoreQuery{
		Query: search.BoolQuery{Should: should, MinimumShouldMatch: search.MinShould(1)},
		Functions: []search.ScoreFunction{
			{Filter: search.TermsQuery{Field: "status.keyword", Values: closedStatuses}, Weight: closedWeight},
			{Filter: search.RangeQuery{Field: "updatedTime", GTE: now.Add(-recencyWindow).UTC().Format(rangeTimestamp)}, Weight: recentWeight},
		},
		BoostMode: "sum",
		ScoreMode: "sum",
	}

	coverage := expanded
	if coverage == "" {
		coverage = query
	}
	return search.Request{
		Size: topK,
		Query: search.BoolQuery{Should: []search.Query{
			scored,
			search.MultiMatchQuery{
				Text:      coverage,
				Fields:    []string{"subject^3", "resolutionSteps^1.5", "subcategory^2", "requester_name", "technician_name"},
				Type:      "best_fields",
				Fuzziness: "AUTO",
				Operator:  "or",
			},
		}},
		Source:    sourceFields,
		Highlight: highlightFields,
	}
}

// lexicalRequest is the text-only fallback. With no usable clauses it
// matches everything rather than failing.
func lexicalRequest(query string, terms []string, topK int) search.Request {
	var should []search.Query
	if query != "" {
		should = append(should,
			search.MatchPhraseQuery{Field: "subject", Text: query, Boost: 5.0},
			search.MatchQuery{Field: "subject", Text: query, Fuzziness: "AUTO", Boost: 2.0},
		)
	}
	if len(terms) > 0 {
		should = append(should, search.MultiMatchQuery{
			Text:      strings.Join(terms, " "),
			Fields:    []string{"subject^3", "subcategory^2", "resolutionSteps^1.5"},
			Type:      "best_fields",
			Fuzziness: "AUTO",
			Operator:  "or",
			Boost:     1.5,
		})
	}

	q := search.BoolQuery{Should: should, MinimumShouldMatch: search.MinShould(1)}
	if len(should) == 0 {
		q = search.BoolQuery{Should: []search.Query{search.MatchAllQuery{}}, MinimumShouldMatch: search.MinShould(0)}
	}
	return search.Request{
		Size:      topK,
		Query:     q,
		Source:    sourceFields,
		Highlight: highlightFields,
	}
}

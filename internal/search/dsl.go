// Package search holds the query model shared by the retrieval engine and
// the index backends, the OpenSearch backend, and an in-process backend used
// when no cluster is configured.
package search

import (
	"strconv"
	"strings"
)

// Query is one node of a search query tree. Source renders the OpenSearch
// JSON form of the node.
type Query interface {
	Source() map[string]any
}

type MatchAllQuery struct{}

func (MatchAllQuery) Source() map[string]any {
	return map[string]any{"match_all": map[string]any{}}
}

// MatchPhraseQuery matches Text as consecutive terms of Field.
type MatchPhraseQuery struct {
	Field string
	Text  string
	Boost float64
}

func (q MatchPhraseQuery) Source() map[string]any {
	body := map[string]any{"query": q.Text}
	if q.Boost != 0 {
		body["boost"] = q.Boost
	}
	return map[string]any{"match_phrase": map[string]any{q.Field: body}}
}

// MatchQuery is a full-text match on one field. Fuzziness "AUTO" allows edit
// distance scaled by term length.
type MatchQuery struct {
	Field     string
	Text      string
	Fuzziness string
	Boost     float64
}

func (q MatchQuery) Source() map[string]any {
	body := map[string]any{"query": q.Text}
	if q.Fuzziness != "" {
		body["fuzziness"] = q.Fuzziness
	}
	if q.Boost != 0 {
		body["boost"] = q.Boost
	}
	return map[string]any{"match": map[string]any{q.Field: body}}
}

// MultiMatchQuery matches Text against several fields. Fields may carry a
// per-field boost as "name^boost".
type MultiMatchQuery struct {
	Text      string
	Fields    []string
	Type      string
	Fuzziness string
	Operator  string
	Boost     float64
}

func (q MultiMatchQuery) Source() map[string]any {
	body := map[string]any{
		"query":  q.Text,
		"fields": q.Fields,
	}
	if q.Type != "" {
		body["type"] = q.Type
	}
	if q.Fuzziness != "" {
		body["fuzziness"] = q.Fuzziness
	}
	if q.Operator != "" {
		body["operator"] = q.Operator
	}
	if q.Boost != 0 {
		body["boost"] = q.Boost
	}
	return map[string]any{"multi_match": body}
}

type TermQuery struct {
	Field string
	Value any
}

func (q TermQuery) Source() map[string]any {
	return map[string]any{"term": map[string]any{q.Field: q.Value}}
}

type TermsQuery struct {
	Field  string
	Values []any
}

func (q TermsQuery) Source() map[string]any {
	return map[string]any{"terms": map[string]any{q.Field: q.Values}}
}

// RangeQuery bounds Field from below by GTE (inclusive).
type RangeQuery struct {
	Field string
	GTE   string
}

func (q RangeQuery) Source() map[string]any {
	return map[string]any{"range": map[string]any{q.Field: map[string]any{"gte": q.GTE}}}
}

// BoolQuery combines clauses. A nil MinimumShouldMatch leaves the server
// default in place.
type BoolQuery struct {
	Must               []Query
	Should             []Query
	Filter             []Query
	MinimumShouldMatch *int
}

func (q BoolQuery) Source() map[string]any {
	body := map[string]any{}
	if len(q.Must) > 0 {
		body["must"] = sources(q.Must)
	}
	if len(q.Should) > 0 {
		body["should"] = sources(q.Should)
	}
	if len(q.Filter) > 0 {
		body["filter"] = sources(q.Filter)
	}
	if q.MinimumShouldMatch != nil {
		body["minimum_should_match"] = *q.MinimumShouldMatch
	}
	return map[string]any{"bool": body}
}

// ScoreFunction adds Weight to documents matching Filter.
type ScoreFunction struct {
	Filter Query
	Weight float64
}

type FunctionScoreQuery struct {
	Query     Query
	Functions []ScoreFunction
	BoostMode string
	ScoreMode string
}

func (q FunctionScoreQuery) Source() map[string]any {
	fns := make([]any, 0, len(q.Functions))
	for _, f := range q.Functions {
		fn := map[string]any{"weight": f.Weight}
		if f.Filter != nil {
			fn["filter"] = f.Filter.Source()
		}
		fns = append(fns, fn)
	}
	body := map[string]any{"functions": fns}
	if q.Query != nil {
		body["query"] = q.Query.Source()
	}
	if q.BoostMode != "" {
		body["boost_mode"] = q.BoostMode
	}
	if q.ScoreMode != "" {
		body["score_mode"] = q.ScoreMode
	}
	return map[string]any{"function_score": body}
}

// KNNQuery asks for the K nearest neighbours of Vector in Field.
type KNNQuery struct {
	Field  string
	Vector []float32
	K      int
}

func (q KNNQuery) Source() map[string]any {
	return map[string]any{"knn": map[string]any{q.Field: map[string]any{"vector": q.Vector, "k": q.K}}}
}

// MinShould is a helper for BoolQuery.MinimumShouldMatch.
func MinShould(n int) *int { return &n }

func sources(qs []Query) []any {
	out := make([]any, 0, len(qs))
	for _, q := range qs {
		out = append(out, q.Source())
	}
	return out
}

// FieldBoost splits "subject^3" into its name and boost (1 when absent).
func FieldBoost(spec string) (string, float64) {
	name, boost, ok := strings.Cut(spec, "^")
	if !ok {
		return spec, 1
	}
	b, err := strconv.ParseFloat(boost, 64)
	if err != nil {
		return name, 1
	}
	return name, b
}

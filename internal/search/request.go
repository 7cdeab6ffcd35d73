package search

import (
	"context"
	"encoding/json"
)

// Request is a search request against one index.
type Request struct {
	Size      int
	Query     Query
	Source    []string
	Highlight []string
}

// Body renders the request as an OpenSearch search body.
func (r Request) Body() ([]byte, error) {
	body := map[string]any{"size": r.Size}
	if r.Query != nil {
		body["query"] = r.Query.Source()
	}
	if len(r.Source) > 0 {
		body["_source"] = r.Source
	}
	if len(r.Highlight) > 0 {
		fields := make(map[string]any, len(r.Highlight))
		for _, f := range r.Highlight {
			fields[f] = map[string]any{}
		}
		body["highlight"] = map[string]any{"fields": fields}
	}
	return json.Marshal(body)
}

type Hit struct {
	ID        string              `json:"_id"`
	Score     float64             `json:"_score"`
	Source    json.RawMessage     `json:"_source"`
	Highlight map[string][]string `json:"highlight,omitempty"`
}

type Response struct {
	Hits []Hit
}

// Searcher runs queries against a ticket index.
type Searcher interface {
	Search(ctx context.Context, req Request) (*Response, error)
}

// BulkDoc is one document to index. An empty ID lets the backend assign one.
type BulkDoc struct {
	ID   string
	Body map[string]any
}

type BulkResult struct {
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Indexer creates the ticket index and loads documents into it.
type Indexer interface {
	EnsureIndex(ctx context.Context, dimension int) error
	Bulk(ctx context.Context, docs []BulkDoc) (BulkResult, error)
	Refresh(ctx context.Context) error
}

// Backend is a complete index: queryable and loadable.
type Backend interface {
	Searcher
	Indexer
}

package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/opensearch-project/opensearch-go/v4"
	"github.com/opensearch-project/opensearch-go/v4/opensearchapi"
	requestsigner "github.com/opensearch-project/opensearch-go/v4/signer/awsv2"
)

// OpenSearch is a Backend over an OpenSearch domain or serverless collection.
type OpenSearch struct {
	client      *opensearchapi.Client
	index       string
	vectorField string
	serverless  bool
}

type OpenSearchOptions struct {
	Endpoint    Endpoint
	Port        int
	Index       string
	VectorField string
	// AWS enables SigV4 signing; nil sends unsigned requests.
	AWS *aws.Config
	// Addresses overrides the URL derived from Endpoint and Port.
	Addresses []string
}

func NewOpenSearch(opts OpenSearchOptions) (*OpenSearch, error) {
	addrs := opts.Addresses
	if len(addrs) == 0 {
		port := opts.Port
		if port == 0 {
			port = 443
		}
		addrs = []string{fmt.Sprintf("https://%s:%d", opts.Endpoint.Host, port)}
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = 30 * time.Second
	cfg := opensearch.Config{Addresses: addrs, Transport: transport}
	if opts.AWS != nil {
		signer, err := requestsigner.NewSignerWithService(*opts.AWS, opts.Endpoint.Service)
		if err != nil {
			return nil, fmt.Errorf("failed to create request signer: %w", err)
		}
		cfg.Signer = signer
	}

	client, err := opensearchapi.NewClient(opensearchapi.Config{Client: cfg})
	if err != nil {
		return nil, fmt.Errorf("failed to create opensearch client: %w", err)
	}

	vf := opts.VectorField
	if vf == "" {
		vf = "embedding"
	}
	return &OpenSearch{client: client, index: opts.Index, vectorField: vf, serverless: opts.Endpoint.Serverless}, nil
}

func (o *OpenSearch) Search(ctx context.Context, req Request) (*Response, error) {
	body, err := req.Body()
	if err != nil {
		return nil, fmt.Errorf("failed to encode query: %w", err)
	}
	resp, err := o.client.Search(ctx, &opensearchapi.SearchReq{
		Indices: []string{o.index},
		Body:    bytes.NewReader(body),
	})
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", o.index, err)
	}

	out := &Response{Hits: make([]Hit, 0, len(resp.Hits.Hits))}
	for _, h := range resp.Hits.Hits {
		out.Hits = append(out.Hits, Hit{
			ID:        h.ID,
			Score:     float64(h.Score),
			Source:    h.Source,
			Highlight: h.Highlight,
		})
	}
	return out, nil
}

// EnsureIndex creates the index when it does not exist yet.
func (o *OpenSearch) EnsureIndex(ctx context.Context, dimension int) error {
	body, err := json.Marshal(IndexMapping(o.vectorField, dimension))
	if err != nil {
		return err
	}
	_, err = o.client.Indices.Create(ctx, opensearchapi.IndicesCreateReq{
		Index: o.index,
		Body:  bytes.NewReader(body),
	})
	if err != nil {
		var se *opensearch.StructError
		if errors.As(err, &se) && se.Err.Type == "resource_already_exists_exception" {
			return nil
		}
		return fmt.Errorf("failed to create index %s: %w", o.index, err)
	}
	return nil
}

// Bulk indexes docs. Serverless collections reject explicit ids, so ids are
// only sent to managed domains, which also wait for the refresh.
func (o *OpenSearch) Bulk(ctx context.Context, docs []BulkDoc) (BulkResult, error) {
	if len(docs) == 0 {
		return BulkResult{}, nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, d := range docs {
		meta := map[string]any{"_index": o.index}
		if !o.serverless && d.ID != "" {
			meta["_id"] = d.ID
		}
		if err := enc.Encode(map[string]any{"index": meta}); err != nil {
			return BulkResult{}, err
		}
		if err := enc.Encode(d.Body); err != nil {
			return BulkResult{}, err
		}
	}

	req := opensearchapi.BulkReq{Body: &buf}
	if !o.serverless {
		req.Params = opensearchapi.BulkParams{Refresh: "wait_for"}
	}
	resp, err := o.client.Bulk(ctx, req)
	if err != nil {
		return BulkResult{Failed: len(docs)}, fmt.Errorf("bulk request failed: %w", err)
	}

	var res BulkResult
	for _, item := range resp.Items {
		for _, r := range item {
			if r.Status >= 300 {
				res.Failed++
			} else {
				res.Succeeded++
			}
		}
	}
	return res, nil
}

// Refresh makes indexed documents searchable. Serverless collections refresh
// on their own and reject the call.
func (o *OpenSearch) Refresh(ctx context.Context) error {
	if o.serverless {
		return nil
	}
	if _, err := o.client.Indices.Refresh(ctx, &opensearchapi.IndicesRefreshReq{Indices: []string{o.index}}); err != nil {
		return fmt.Errorf("failed to refresh %s: %w", o.index, err)
	}
	return nil
}

package chroma

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"docqa/internal/domain"
	"docqa/internal/index"
)

// Client is a minimal REST client to a Chroma-style vector index.
// The collection is expected to be populated by the external ingestion
// pipeline; this client only queries it.
type Client struct {
	url        string
	collection string
	client     *http.Client
}

type Config struct {
	URL        string
	Collection string
	Timeout    time.Duration
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		url:        cfg.URL,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
	}
}

// Search queries the collection and converts distances to scores via
// 1/(1+distance). Returned excerpts have their newlines collapsed.
func (c *Client) Search(ctx context.Context, vector []float64, filter index.Filter, limit int) ([]domain.RetrievedCandidate, error) {
	if limit <= 0 {
		limit = 5
	}
	req := map[string]any{
		"query_embeddings": [][]float64{vector},
		"n_results":        limit,
		"include":          []string{"documents", "metadatas", "distances"},
	}
	if where := buildWhere(filter); where != nil {
		req["where"] = where
	}

	var resp struct {
		IDs       [][]string         `json:"ids"`
		Documents [][]string         `json:"documents"`
		Metadatas [][]map[string]any `json:"metadatas"`
		Distances [][]float64        `json:"distances"`
	}
	url := fmt.Sprintf("%s/api/v1/collections/%s/query", c.url, c.collection)
	if err := c.postJSON(ctx, url, req, &resp); err != nil {
		return nil, err
	}

	ids := first(resp.IDs)
	docs := first(resp.Documents)
	metas := first(resp.Metadatas)
	dists := first(resp.Distances)

	out := make([]domain.RetrievedCandidate, 0, len(ids))
	for i := range ids {
		cand := domain.RetrievedCandidate{ID: ids[i]}
		if i < len(docs) {
			cand.Text = domain.NormalizeSpace(docs[i])
		}
		if i < len(metas) {
			cand.Metadata = parseMetadata(metas[i])
		} else {
			cand.Metadata.Kind = domain.KindText
		}
		if i < len(dists) {
			cand.Score = 1.0 / (1.0 + dists[i])
		}
		out = append(out, cand)
	}
	return out, nil
}

func buildWhere(f index.Filter) map[string]any {
	var clauses []map[string]any
	if f.Page != nil {
		clauses = append(clauses, map[string]any{"page": *f.Page})
	}
	if f.Kind != "" {
		clauses = append(clauses, map[string]any{"kind": string(f.Kind)})
	}
	if f.Section != "" {
		clauses = append(clauses, map[string]any{"section": f.Section})
	}
	switch len(clauses) {
	case 0:
		return nil
	case 1:
		return clauses[0]
	default:
		return map[string]any{"$and": clauses}
	}
}

func parseMetadata(md map[string]any) domain.Metadata {
	out := domain.Metadata{Kind: domain.KindText}
	if v, ok := md["filename"].(string); ok {
		out.Filename = v
	}
	if v, ok := md["section"].(string); ok {
		out.Section = v
	}
	if v, ok := md["kind"].(string); ok && v != "" {
		out.Kind = domain.Kind(v)
	}
	if v, ok := md["page"].(float64); ok {
		p := int(v)
		out.Page = &p
	}
	return out
}

func first[T any](rows [][]T) []T {
	if len(rows) == 0 {
		return nil
	}
	return rows[0]
}

func (c *Client) postJSON(ctx context.Context, url string, body any, out any) error {
	data, _ := json.Marshal(body)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("chroma POST %s failed: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("chroma POST %s failed: %s", url, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

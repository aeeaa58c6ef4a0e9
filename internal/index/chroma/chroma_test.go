package chroma

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"docqa/internal/domain"
	"docqa/internal/index"
)

func intPtr(n int) *int { return &n }

func queryResponse() map[string]any {
	return map[string]any{
		"ids":       [][]string{{"c1", "c2"}},
		"documents": [][]string{{"First\nexcerpt text.", "Second excerpt."}},
		"metadatas": [][]map[string]any{{
			{"filename": "doc.pdf", "page": float64(5), "kind": "caption"},
			{"filename": "doc.pdf", "section": "Class A"},
		}},
		"distances": [][]float64{{0.0, 1.0}},
	}
}

func TestSearchParsesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/collections/docs/query" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		json.NewEncoder(w).Encode(queryResponse())
	}))
	defer srv.Close()

	c := NewClient(Config{URL: srv.URL, Collection: "docs"})
	hits, err := c.Search(context.Background(), []float64{0.1, 0.2}, index.Filter{}, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 2 {
		t.Fatalf("got %d hits", len(hits))
	}
	if hits[0].ID != "c1" || hits[0].Text != "First excerpt text." {
		t.Errorf("hit[0] = %+v, want normalized text", hits[0])
	}
	if hits[0].Metadata.Kind != domain.KindCaption || hits[0].Metadata.Page == nil || *hits[0].Metadata.Page != 5 {
		t.Errorf("hit[0] metadata = %+v", hits[0].Metadata)
	}
	if hits[0].Score != 1.0 {
		t.Errorf("score for distance 0 = %f, want 1", hits[0].Score)
	}
	if hits[1].Score != 0.5 {
		t.Errorf("score for distance 1 = %f, want 0.5", hits[1].Score)
	}
	if hits[1].Metadata.Kind != domain.KindText {
		t.Errorf("missing kind should default to text, got %s", hits[1].Metadata.Kind)
	}
	if hits[1].Metadata.Section != "Class A" {
		t.Errorf("section = %q", hits[1].Metadata.Section)
	}
}

func TestSearchSendsCombinedWhereClause(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&body)
		json.NewEncoder(w).Encode(map[string]any{"ids": [][]string{{}}})
	}))
	defer srv.Close()

	c := NewClient(Config{URL: srv.URL, Collection: "docs"})
	_, err := c.Search(context.Background(), []float64{0.1}, index.Filter{Page: intPtr(5), Kind: domain.KindCaption}, 3)
	if err != nil {
		t.Fatal(err)
	}
	where, ok := body["where"].(map[string]any)
	if !ok {
		t.Fatalf("where clause missing: %v", body)
	}
	and, ok := where["$and"].([]any)
	if !ok || len(and) != 2 {
		t.Fatalf("where = %v, want $and of two clauses", where)
	}
	if body["n_results"].(float64) != 3 {
		t.Errorf("n_results = %v", body["n_results"])
	}
}

func TestSearchSingleFilterSkipsAnd(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&body)
		json.NewEncoder(w).Encode(map[string]any{"ids": [][]string{{}}})
	}))
	defer srv.Close()

	c := NewClient(Config{URL: srv.URL, Collection: "docs"})
	if _, err := c.Search(context.Background(), []float64{0.1}, index.Filter{Kind: domain.KindText}, 3); err != nil {
		t.Fatal(err)
	}
	where := body["where"].(map[string]any)
	if _, hasAnd := where["$and"]; hasAnd {
		t.Errorf("single clause should not wrap in $and: %v", where)
	}
	if where["kind"] != "text" {
		t.Errorf("where = %v", where)
	}
}

func TestSearchEmptyFilterOmitsWhere(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&body)
		json.NewEncoder(w).Encode(map[string]any{"ids": [][]string{{}}})
	}))
	defer srv.Close()

	c := NewClient(Config{URL: srv.URL, Collection: "docs"})
	if _, err := c.Search(context.Background(), []float64{0.1}, index.Filter{}, 3); err != nil {
		t.Fatal(err)
	}
	if _, ok := body["where"]; ok {
		t.Errorf("empty filter should omit where: %v", body)
	}
}

func TestSearchServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(Config{URL: srv.URL, Collection: "docs"})
	if _, err := c.Search(context.Background(), []float64{0.1}, index.Filter{}, 3); err == nil {
		t.Fatal("expected error on 500 response")
	}
}

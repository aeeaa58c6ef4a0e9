package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"docqa/internal/domain"
	"docqa/internal/index"
)

// Index is an in-memory vector index using brute-force cosine similarity,
// used by the local corpus mode and by tests.
type Index struct {
	mu         sync.RWMutex
	dimension  int
	vectors    [][]float64
	candidates []domain.RetrievedCandidate
}

func New() *Index { return &Index{} }

// Init sets the vector dimension and clears any stored candidates.
func (s *Index) Init(dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dimension = dimension
	s.vectors = nil
	s.candidates = nil
	return nil
}

// Add stores candidates with their embedding vectors.
func (s *Index) Add(candidates []domain.RetrievedCandidate, vectors [][]float64) error {
	if len(candidates) != len(vectors) {
		return errors.New("candidates and vectors length mismatch")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range vectors {
		if len(v) != s.dimension {
			return errors.New("vector dimension mismatch")
		}
	}
	s.candidates = append(s.candidates, candidates...)
	s.vectors = append(s.vectors, vectors...)
	return nil
}

// Search returns the top candidates matching the filter, scored by cosine
// similarity (vectors are assumed L2-normalized).
func (s *Index) Search(_ context.Context, vector []float64, filter index.Filter, limit int) ([]domain.RetrievedCandidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 {
		limit = 5
	}
	type scored struct {
		idx   int
		score float64
	}
	matches := make([]scored, 0, len(s.candidates))
	for i, c := range s.candidates {
		if !matchesFilter(c.Metadata, filter) {
			continue
		}
		matches = append(matches, scored{i, dot(s.vectors[i], vector)})
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].score > matches[j].score })
	if limit > len(matches) {
		limit = len(matches)
	}
	out := make([]domain.RetrievedCandidate, 0, limit)
	for _, m := range matches[:limit] {
		cand := s.candidates[m.idx]
		cand.Score = m.score
		out = append(out, cand)
	}
	return out, nil
}

func matchesFilter(md domain.Metadata, f index.Filter) bool {
	if f.Page != nil && (md.Page == nil || *md.Page != *f.Page) {
		return false
	}
	if f.Kind != "" && md.Kind != f.Kind {
		return false
	}
	if f.Section != "" && md.Section != f.Section {
		return false
	}
	return true
}

func dot(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}

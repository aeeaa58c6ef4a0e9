package index

import (
	"context"

	"docqa/internal/domain"
)

// Filter narrows a similarity search by candidate metadata. The zero value
// means unfiltered.
type Filter struct {
	Page    *int
	Kind    domain.Kind
	Section string
}

// Empty reports whether the filter constrains nothing.
func (f Filter) Empty() bool {
	return f.Page == nil && f.Kind == "" && f.Section == ""
}

// Index is a vector index supporting filtered nearest-neighbor search.
// Implementations must be safe for concurrent use.
type Index interface {
	Search(ctx context.Context, vector []float64, filter Filter, limit int) ([]domain.RetrievedCandidate, error)
}

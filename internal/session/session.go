package session

import (
	"context"

	"docqa/internal/domain"
)

// DefaultID is used when the caller does not name a session.
const DefaultID = "default"

// Store keeps the per-session object list. Implementations must be safe for
// concurrent use.
type Store interface {
	// SetObjects replaces the object list for the session.
	SetObjects(ctx context.Context, id string, list []domain.Object) error
	// Objects returns the session's object list; ok is false when the
	// session has no objects set.
	Objects(ctx context.Context, id string) (list []domain.Object, ok bool, err error)
}

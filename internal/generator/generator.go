package generator

import (
	"context"
	"fmt"
)

// Generator is the opaque generative-text backend. The returned raw text is
// expected to contain a JSON object, possibly wrapped in extraneous text.
// Implementations must be safe for concurrent use.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Provider() string
	Model() string
}

// Error is a typed backend failure (unreachable, timeout, non-2xx). The
// pipeline catches it and degrades to the fallback payload.
type Error struct {
	Provider string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s generate failed: %v", e.Provider, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

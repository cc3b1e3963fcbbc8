package inventory

import (
	"context"
)

// Repository owns the persisted catalog. Update runs fn against a fresh read
// and persists the result atomically; no other writer interleaves.
type Repository interface {
	Read(ctx context.Context) (Catalog, error)
	Write(ctx context.Context, c Catalog) error
	Update(ctx context.Context, fn func(Catalog) error) error
}

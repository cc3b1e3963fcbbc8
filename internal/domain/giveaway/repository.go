package giveaway

import "context"

type Repository interface {
	Save(ctx context.Context, g *Giveaway) error
	UpdateEntrants(ctx context.Context, messageID string, entrants []string) error
	// Finalize marks the giveaway finalized and reports whether this call
	// made the change.
	Finalize(ctx context.Context, messageID string) (bool, error)
	Get(ctx context.Context, messageID string) (*Giveaway, error)
	ListActive(ctx context.Context) ([]*Giveaway, error)
}

package memory

import (
	"context"
	"sort"
	"sync"

	domain "github.com/Zhima-Mochi/storefront-bot/internal/domain/giveaway"
)

// GiveawayRepository is a process-local giveaway store for tests and dev runs.
type GiveawayRepository struct {
	mu        sync.RWMutex
	giveaways map[string]*domain.Giveaway
}

func NewGiveawayRepository() *GiveawayRepository {
	return &GiveawayRepository{giveaways: make(map[string]*domain.Giveaway)}
}

func (r *GiveawayRepository) Save(ctx context.Context, g *domain.Giveaway) error {
	_ = ctx
	if g == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.giveaways[g.MessageID] = cloneGiveaway(g)
	return nil
}

func (r *GiveawayRepository) UpdateEntrants(ctx context.Context, messageID string, entrants []string) error {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.giveaways[messageID]
	if !ok {
		return domain.ErrNotFound
	}
	g.Entrants = append([]string{}, entrants...)
	return nil
}

func (r *GiveawayRepository) Finalize(ctx context.Context, messageID string) (bool, error) {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.giveaways[messageID]
	if !ok {
		return false, domain.ErrNotFound
	}
	if g.Status != domain.StatusActive {
		return false, nil
	}
	g.Status = domain.StatusFinalized
	return true, nil
}

func (r *GiveawayRepository) Get(ctx context.Context, messageID string) (*domain.Giveaway, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	g, ok := r.giveaways[messageID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneGiveaway(g), nil
}

func (r *GiveawayRepository) ListActive(ctx context.Context) ([]*domain.Giveaway, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.Giveaway
	for _, g := range r.giveaways {
		if g.Status == domain.StatusActive {
			out = append(out, cloneGiveaway(g))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndsAt.Before(out[j].EndsAt) })
	return out, nil
}

func cloneGiveaway(g *domain.Giveaway) *domain.Giveaway {
	clone := *g
	clone.Entrants = append([]string{}, g.Entrants...)
	return &clone
}

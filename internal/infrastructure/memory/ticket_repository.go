package memory

import (
	"context"
	"fmt"
	"sync"

	domain "github.com/Zhima-Mochi/storefront-bot/internal/domain/trade"
)

// TicketRepository keeps trade tickets keyed by channel, with a buyer index
// that enforces one open ticket per buyer.
type TicketRepository struct {
	mu      sync.RWMutex
	tickets map[string]*domain.Ticket
	byBuyer map[string]string
}

func NewTicketRepository() *TicketRepository {
	return &TicketRepository{
		tickets: make(map[string]*domain.Ticket),
		byBuyer: make(map[string]string),
	}
}

func (r *TicketRepository) Insert(ctx context.Context, t *domain.Ticket) error {
	_ = ctx
	if t == nil || t.ChannelID == "" {
		return fmt.Errorf("ticket repository: channel id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if channel, ok := r.byBuyer[t.BuyerID]; ok {
		if existing, ok := r.tickets[channel]; ok && !existing.Status.Terminal() {
			return domain.ErrAlreadyOpen
		}
	}
	if _, exists := r.tickets[t.ChannelID]; exists {
		return domain.ErrAlreadyOpen
	}

	r.tickets[t.ChannelID] = cloneTicket(t)
	r.byBuyer[t.BuyerID] = t.ChannelID
	return nil
}

func (r *TicketRepository) FindByChannel(ctx context.Context, channelID string) (*domain.Ticket, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tickets[channelID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneTicket(t), nil
}

func (r *TicketRepository) FindOpenByBuyer(ctx context.Context, buyerID string) (*domain.Ticket, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	channel, ok := r.byBuyer[buyerID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	t, ok := r.tickets[channel]
	if !ok || t.Status.Terminal() {
		return nil, domain.ErrNotFound
	}
	return cloneTicket(t), nil
}

func (r *TicketRepository) Transition(ctx context.Context, t *domain.Ticket, from domain.Status) error {
	_ = ctx
	if t == nil {
		return fmt.Errorf("ticket repository: ticket is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored, exists := r.tickets[t.ChannelID]
	if !exists {
		return domain.ErrNotFound
	}
	if stored.Status != from {
		return fmt.Errorf("%w: %s", domain.ErrNotOpen, stored.Status)
	}
	r.tickets[t.ChannelID] = cloneTicket(t)
	return nil
}

func (r *TicketRepository) Delete(ctx context.Context, channelID string) error {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tickets[channelID]
	if !ok {
		return nil
	}
	delete(r.tickets, channelID)
	if r.byBuyer[t.BuyerID] == channelID {
		delete(r.byBuyer, t.BuyerID)
	}
	return nil
}

func cloneTicket(t *domain.Ticket) *domain.Ticket {
	if t == nil {
		return nil
	}
	clone := *t
	return &clone
}

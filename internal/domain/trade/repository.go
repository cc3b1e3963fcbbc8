package trade

import (
	"context"
	"time"
)

type Repository interface {
	// Insert fails with ErrAlreadyOpen when the buyer has an open ticket.
	Insert(ctx context.Context, t *Ticket) error
	FindByChannel(ctx context.Context, channelID string) (*Ticket, error)
	FindOpenByBuyer(ctx context.Context, buyerID string) (*Ticket, error)
	// Transition stores t only if the stored ticket is still in status from,
	// and fails with ErrNotOpen otherwise.
	Transition(ctx context.Context, t *Ticket, from Status) error
	Delete(ctx context.Context, channelID string) error
}

// RecentPurchases holds per-buyer trade eligibility. List never returns
// entries older than the window.
type RecentPurchases interface {
	Add(ctx context.Context, buyerID string, p RecentPurchase) error
	List(ctx context.Context, buyerID string, now time.Time) ([]RecentPurchase, error)
	// Replace swaps the entry for cardNumber with next. A missing entry only
	// adds next.
	Replace(ctx context.Context, buyerID, cardNumber string, next RecentPurchase) error
}

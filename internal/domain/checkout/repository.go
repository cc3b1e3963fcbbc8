package checkout

import (
	"context"
	"time"
)

// SessionStore keeps pending-payment contexts. Transition is the single
// exactly-once guard: it moves id from one status to another only when the
// stored status still equals from, as one indivisible step.
type SessionStore interface {
	// ClaimBuyer reserves the buyer's single unpaid slot. When the slot is
	// taken it returns false and the holder's value.
	ClaimBuyer(ctx context.Context, buyerID, holder string, ttl time.Duration) (bool, string, error)
	// BindBuyer points an already claimed slot at a payment id.
	BindBuyer(ctx context.Context, buyerID, paymentID string, ttl time.Duration) error
	ReleaseBuyer(ctx context.Context, buyerID string) error

	Save(ctx context.Context, p *Payment, ttl time.Duration) error
	Get(ctx context.Context, id string) (*Payment, error)
	Transition(ctx context.Context, id string, from, to Status) (bool, error)
	Delete(ctx context.Context, id string) error
}

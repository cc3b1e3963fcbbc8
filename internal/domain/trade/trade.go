package trade

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound           = errors.New("trade: ticket not found")
	ErrAlreadyOpen        = errors.New("trade: buyer already has an open ticket")
	ErrNotEligible        = errors.New("trade: no purchase inside the trade window")
	ErrNotOpen            = errors.New("trade: ticket is not open")
	ErrNoReplacementStock = errors.New("trade: no replacement unit in category")
	ErrForbidden          = errors.New("trade: actor is not allowed to do this")
	ErrInvalidTransition  = errors.New("trade: invalid state transition")
)

const (
	DefaultWindow        = 10 * time.Minute
	DefaultTeardownDelay = 20 * time.Second
)

type Status string

const (
	StatusOpen Status = "OPEN"
	// StatusApproving holds a ticket while a replacement is taken and sent.
	StatusApproving Status = "APPROVING"
	StatusApproved  Status = "APPROVED"
	StatusDenied    Status = "DENIED"
	StatusClosed    Status = "CLOSED"
)

func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusDenied || s == StatusClosed
}

// Ticket is a post-sale card replacement request. It is identified by the
// private surface created for it.
type Ticket struct {
	ChannelID    string    `json:"channel_id"`
	BuyerID      string    `json:"buyer_id"`
	BuyerTag     string    `json:"buyer_tag"`
	OriginalCard string    `json:"original_card"`
	Category     string    `json:"category"`
	Replacement  string    `json:"replacement,omitempty"`
	PurchasedAt  time.Time `json:"purchased_at"`
	Status       Status    `json:"status"`
	ResolvedBy   string    `json:"resolved_by,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func NewTicket(channelID, buyerID, buyerTag string, p RecentPurchase) *Ticket {
	now := time.Now().UTC()
	return &Ticket{
		ChannelID:    channelID,
		BuyerID:      buyerID,
		BuyerTag:     buyerTag,
		OriginalCard: p.CardNumber,
		Category:     p.Category,
		PurchasedAt:  p.Timestamp,
		Status:       StatusOpen,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Claim starts an approval on an open ticket.
func (t *Ticket) Claim() error {
	if t.Status != StatusOpen {
		return fmt.Errorf("%w: %s", ErrNotOpen, t.Status)
	}
	t.Status = StatusApproving
	t.UpdatedAt = time.Now().UTC()
	return nil
}

// Release hands a claimed ticket back to the open queue.
func (t *Ticket) Release() error {
	if t.Status != StatusApproving {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, StatusOpen)
	}
	t.Status = StatusOpen
	t.UpdatedAt = time.Now().UTC()
	return nil
}

// Resolve moves a ticket to a terminal status. Only a claimed ticket can be
// approved; deny and close act on open tickets.
func (t *Ticket) Resolve(to Status, adminID string) error {
	if t.Status.Terminal() {
		return fmt.Errorf("%w: %s", ErrNotOpen, t.Status)
	}
	if !to.Terminal() || (to == StatusApproved) != (t.Status == StatusApproving) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, to)
	}
	t.Status = to
	t.ResolvedBy = adminID
	t.UpdatedAt = time.Now().UTC()
	return nil
}

// RecentPurchase records a card sale that may still be traded.
type RecentPurchase struct {
	CardNumber string    `json:"card_number"`
	Category   string    `json:"category"`
	Timestamp  time.Time `json:"timestamp"`
}

// Prune drops entries older than window, keeping order.
func Prune(entries []RecentPurchase, now time.Time, window time.Duration) []RecentPurchase {
	out := entries[:0:0]
	for _, e := range entries {
		if now.Sub(e.Timestamp) <= window {
			out = append(out, e)
		}
	}
	return out
}

// Latest returns the most recent eligible entry.
func Latest(entries []RecentPurchase) (RecentPurchase, bool) {
	if len(entries) == 0 {
		return RecentPurchase{}, false
	}
	latest := entries[0]
	for _, e := range entries[1:] {
		if e.Timestamp.After(latest.Timestamp) {
			latest = e
		}
	}
	return latest, true
}

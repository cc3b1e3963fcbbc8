package checkout

import (
	"errors"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/storefront-bot/internal/domain/inventory"
	"github.com/Zhima-Mochi/storefront-bot/internal/domain/payment"
)

var (
	ErrNotFound          = errors.New("checkout: payment not found")
	ErrDuplicatePending  = errors.New("checkout: buyer already has an unpaid charge")
	ErrInvalidTransition = errors.New("checkout: invalid state transition")
	ErrNotPending        = errors.New("checkout: payment is no longer pending")
	ErrDelivery          = errors.New("checkout: delivery failed")
	ErrForbidden         = errors.New("checkout: actor is not allowed to do this")

	// ErrGateway wraps any charge creation failure.
	ErrGateway = payment.ErrGateway
)

// Status is the lifecycle state of one payment.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusPaid      Status = "PAID"
	StatusDelivered Status = "DELIVERED"
	StatusExpired   Status = "EXPIRED"
	StatusCancelled Status = "CANCELLED"
)

// Trigger is what moves a payment between states.
type Trigger string

const (
	TriggerApprove Trigger = "approve"
	TriggerExpire  Trigger = "expire"
	TriggerCancel  Trigger = "cancel"
	TriggerDeliver Trigger = "deliver"
)

var transitions = map[Status]map[Trigger]Status{
	StatusPending: {
		TriggerApprove: StatusPaid,
		TriggerExpire:  StatusExpired,
		TriggerCancel:  StatusCancelled,
	},
	StatusPaid: {
		TriggerDeliver: StatusDelivered,
	},
}

// Fire returns the state reached from s by t.
func (s Status) Fire(t Trigger) (Status, error) {
	if next, ok := transitions[s][t]; ok {
		return next, nil
	}
	return s, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, t, s)
}

// Terminal reports whether no trigger leaves s.
func (s Status) Terminal() bool { return len(transitions[s]) == 0 }

// Payment is the pending-payment context of one charge.
type Payment struct {
	ID         string          `json:"id"`
	BuyerID    string          `json:"buyer_id"`
	BuyerTag   string          `json:"buyer_tag"`
	ChannelID  string          `json:"channel_id"`
	Category   string          `json:"category"`
	Kind       inventory.Kind  `json:"kind"`
	ItemID     string          `json:"item_id,omitempty"`
	Price      inventory.Money `json:"price"`
	PixPayload string          `json:"pix_payload"`
	Status     Status          `json:"status"`
	CreatedAt  time.Time       `json:"created_at"`
	ExpiresAt  time.Time       `json:"expires_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

func New(id, buyerID, buyerTag, channelID, category string, kind inventory.Kind, price inventory.Money, pix string, ttl time.Duration) *Payment {
	now := time.Now().UTC()
	return &Payment{
		ID:         id,
		BuyerID:    buyerID,
		BuyerTag:   buyerTag,
		ChannelID:  channelID,
		Category:   category,
		Kind:       kind,
		Price:      price,
		PixPayload: pix,
		Status:     StatusPending,
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
		UpdatedAt:  now,
	}
}

// Actor is whoever drives an operation through a public control path.
type Actor struct {
	ID    string
	Tag   string
	Admin bool
}

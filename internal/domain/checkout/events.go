package checkout

import (
	"time"

	"github.com/Zhima-Mochi/storefront-bot/internal/domain/inventory"
)

// ChargeCreatedEvent is emitted once a charge is issued and tracked.
type ChargeCreatedEvent struct {
	PaymentID  string
	BuyerID    string
	BuyerTag   string
	Category   string
	Price      inventory.Money
	OccurredAt time.Time
}

func (ChargeCreatedEvent) EventName() string { return "checkout.charge_created" }

// PaymentApprovedEvent is emitted when the poll loop wins the PAID transition.
type PaymentApprovedEvent struct {
	PaymentID  string
	BuyerID    string
	BuyerTag   string
	Category   string
	Price      inventory.Money
	OccurredAt time.Time
}

func (PaymentApprovedEvent) EventName() string { return "checkout.payment_approved" }

// PaymentClosedEvent is emitted on expiry or cancellation.
type PaymentClosedEvent struct {
	PaymentID  string
	BuyerID    string
	BuyerTag   string
	Category   string
	Price      inventory.Money
	Status     Status
	ActorID    string
	OccurredAt time.Time
}

func (PaymentClosedEvent) EventName() string { return "checkout.payment_closed" }

// ItemDeliveredEvent is emitted after a unit has been handed over, by
// checkout or by an admin.
type ItemDeliveredEvent struct {
	PaymentID    string
	BuyerID      string
	BuyerTag     string
	Category     string
	Item         string
	Manual       bool
	AdminID      string
	FallbackUsed bool
	OccurredAt   time.Time
}

func (ItemDeliveredEvent) EventName() string { return "checkout.item_delivered" }

// DeliveryFallbackEvent is emitted when the direct message was rejected and
// the payload went to the fallback surfaces instead.
type DeliveryFallbackEvent struct {
	PaymentID       string
	BuyerID         string
	BuyerTag        string
	Category        string
	DeliveryMessage string
	Reason          string
	OccurredAt      time.Time
}

func (DeliveryFallbackEvent) EventName() string { return "checkout.delivery_fallback" }

// CheckoutFailedEvent is emitted for errors an admin must act on.
type CheckoutFailedEvent struct {
	PaymentID       string
	BuyerID         string
	BuyerTag        string
	Category        string
	Reason          string
	DeliveryMessage string
	OccurredAt      time.Time
}

func (CheckoutFailedEvent) EventName() string { return "checkout.failed" }

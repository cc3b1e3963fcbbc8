package payment

import (
	"context"
	"errors"
	"time"
)

var ErrGateway = errors.New("payment: gateway failure")

// Status is the provider-side state of a charge.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	// StatusUnknown stands in for any query that failed transiently. Callers
	// treat it exactly like PENDING.
	StatusUnknown Status = "UNKNOWN"
)

func (s Status) Approved() bool { return s == StatusApproved }

// Charge is a PIX charge as issued by the provider.
type Charge struct {
	ID         string    `json:"id"`
	PixPayload string    `json:"pix_payload"`
	QRImage    []byte    `json:"qr_image,omitempty"`
	QRImageURL string    `json:"qr_image_url,omitempty"`
	Status     Status    `json:"status"`
	ExpiresAt  time.Time `json:"expires_at,omitempty"`
}

// Sale is one approved transaction as reported by the provider.
type Sale struct {
	ID          string    `json:"id"`
	AmountCents int64     `json:"amount_cents"`
	Product     string    `json:"product"`
	Method      string    `json:"method"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// Gateway is the PIX provider contract. CreateCharge failures are returned
// wrapped in ErrGateway. Status never fails: transient trouble is reported
// as StatusUnknown.
type Gateway interface {
	CreateCharge(ctx context.Context, amountCents int64, description string) (Charge, error)
	Status(ctx context.Context, chargeID string) Status
	ListApproved(ctx context.Context) ([]Sale, error)
}

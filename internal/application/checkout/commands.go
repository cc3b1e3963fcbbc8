package checkout

import (
	"time"

	domcheckout "github.com/Zhima-Mochi/storefront-bot/internal/domain/checkout"
	dominv "github.com/Zhima-Mochi/storefront-bot/internal/domain/inventory"
)

// Action names carried by the storefront controls. Cancel and copy buttons
// append ":<payment id>".
const (
	ActionSelect  = "checkout.select"
	ActionCancel  = "checkout.cancel"
	ActionCopyPix = "checkout.copy_pix"
)

// StartCommand opens a charge for one unit of Category. A positive Price
// overrides the category price; a negative one is rejected.
type StartCommand struct {
	BuyerID   string `validate:"required"`
	BuyerTag  string
	ChannelID string
	Category  string `validate:"required"`
	Price     dominv.Money
}

// StartResult is what the buyer needs to pay.
type StartResult struct {
	PaymentID  string       `json:"payment_id"`
	PixPayload string       `json:"pix_payload"`
	QRImage    []byte       `json:"qr_image,omitempty"`
	QRImageURL string       `json:"qr_image_url,omitempty"`
	Price      dominv.Money `json:"price"`
	ExpiresAt  time.Time    `json:"expires_at"`
	TestMode   bool         `json:"test_mode"`
}

type CancelCommand struct {
	PaymentID string `validate:"required"`
	Actor     domcheckout.Actor
}

// ManualDeliveryCommand hands the next unit of Category to UserID without a
// payment.
type ManualDeliveryCommand struct {
	Admin     domcheckout.Actor
	UserID    string `validate:"required"`
	UserTag   string
	ChannelID string
	Category  string `validate:"required"`
}

type ManualDeliveryResult struct {
	Item         string `json:"item"`
	FallbackUsed bool   `json:"fallback_used"`
}

type ResendCommand struct {
	Admin   domcheckout.Actor
	Payload string `validate:"required"`
}

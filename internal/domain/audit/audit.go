package audit

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/storefront-bot/internal/domain/inventory"
)

var ErrEmptyResend = errors.New("audit: no delivery payload to resend")

// Kind classifies an admin log record.
type Kind string

const (
	KindPurchase         Kind = "compra"
	KindPaymentConfirmed Kind = "pagamento_confirmado"
	KindManualDelivery   Kind = "entrega_manual"
	KindCancellation     Kind = "cancelamento"
	KindSearch           Kind = "busca"
	KindError            Kind = "erro"
	KindDeliveryFailed   Kind = "entrega_falhou"
	KindInfo             Kind = "info"
	KindAdmin            Kind = "admin"
)

var titles = map[Kind]string{
	KindPurchase:         "Nova Compra Iniciada",
	KindPaymentConfirmed: "Pagamento Confirmado",
	KindManualDelivery:   "Entrega Manual Realizada",
	KindCancellation:     "Compra Cancelada",
	KindSearch:           "Busca Realizada",
	KindError:            "Erro Crítico no Checkout",
	KindDeliveryFailed:   "Falha na Entrega por DM",
	KindInfo:             "Log de Atividade",
	KindAdmin:            "Ação Administrativa",
}

func (k Kind) Title() string {
	if t, ok := titles[k]; ok {
		return t
	}
	return titles[KindInfo]
}

// Resendable reports whether records of this kind carry a resend payload.
func (k Kind) Resendable() bool { return k == KindDeliveryFailed || k == KindError }

// Record is one entry of the administrative log surface.
type Record struct {
	Kind            Kind             `json:"kind"`
	ActorID         string           `json:"actor_id"`
	ActorTag        string           `json:"actor_tag,omitempty"`
	PaymentID       string           `json:"payment_id,omitempty"`
	Amount          *inventory.Money `json:"amount,omitempty"`
	Category        string           `json:"category,omitempty"`
	Product         string           `json:"product,omitempty"`
	Item            string           `json:"item,omitempty"`
	Reason          string           `json:"reason,omitempty"`
	SearchType      string           `json:"search_type,omitempty"`
	SearchTerm      string           `json:"search_term,omitempty"`
	DeliveryMessage string           `json:"delivery_message,omitempty"`
	Command         string           `json:"command,omitempty"`
	Action          string           `json:"action,omitempty"`
	FallbackUsed    bool             `json:"fallback_used,omitempty"`
	Resend          string           `json:"resend,omitempty"`
	OccurredAt      time.Time        `json:"occurred_at"`
}

// Seal fills the resend payload for kinds that support it.
func (r Record) Seal() Record {
	if r.OccurredAt.IsZero() {
		r.OccurredAt = time.Now().UTC()
	}
	if r.Kind.Resendable() && r.Resend == "" {
		msg := r.DeliveryMessage
		if msg == "" {
			msg = "N/A"
		}
		r.Resend = EncodeResend(ResendPayload{UserID: r.ActorID, Message: msg})
	}
	return r
}

// ResendPayload is what an admin needs to retry a failed direct delivery.
type ResendPayload struct {
	UserID  string `json:"userId"`
	Message string `json:"message"`
}

func EncodeResend(p ResendPayload) string {
	b, _ := json.Marshal(p)
	return base64.StdEncoding.EncodeToString(b)
}

func DecodeResend(s string) (ResendPayload, error) {
	var p ResendPayload
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return p, fmt.Errorf("audit: decode resend payload: %w", err)
	}
	if err := json.Unmarshal(b, &p); err != nil {
		return p, fmt.Errorf("audit: decode resend payload: %w", err)
	}
	if p.Message == "" || p.Message == "N/A" {
		return p, ErrEmptyResend
	}
	return p, nil
}

// Sink writes records to the administrative log surface.
type Sink interface {
	Write(ctx context.Context, r Record) error
}

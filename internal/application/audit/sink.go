package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	domaudit "github.com/Zhima-Mochi/storefront-bot/internal/domain/audit"
	"github.com/Zhima-Mochi/storefront-bot/internal/domain/messaging"
)

// ActionResend prefixes the resend button action. The encoded payload
// follows after a colon.
const ActionResend = "log.resend"

// maxDeliveryField caps the delivery message shown in a log entry.
const maxDeliveryField = 1000

var colors = map[domaudit.Kind]string{
	domaudit.KindPurchase:         "#3498db",
	domaudit.KindPaymentConfirmed: "#2ecc71",
	domaudit.KindManualDelivery:   "#9b59b6",
	domaudit.KindCancellation:     "#e67e22",
	domaudit.KindSearch:           "#1abc9c",
	domaudit.KindError:            "#e74c3c",
	domaudit.KindDeliveryFailed:   "#f1c40f",
	domaudit.KindAdmin:            "#34495e",
}

// ChannelSink posts records to the admin log channel.
type ChannelSink struct {
	msg       messaging.Messenger
	channelID string
}

func NewChannelSink(msg messaging.Messenger, channelID string) *ChannelSink {
	return &ChannelSink{msg: msg, channelID: channelID}
}

func (s *ChannelSink) Write(ctx context.Context, r domaudit.Record) error {
	if s.channelID == "" {
		return errors.New("audit: log channel is not configured")
	}
	_, err := s.msg.Post(ctx, s.channelID, Render(r))
	return err
}

// ParseResendAction extracts the payload from a resend button action.
func ParseResendAction(action string) (string, bool) {
	prefix, payload, ok := strings.Cut(action, ":")
	if !ok || prefix != ActionResend || payload == "" {
		return "", false
	}
	return payload, true
}

// Render lays a record out as a log entry.
func Render(r domaudit.Record) messaging.Message {
	m := messaging.Message{
		Title:  r.Kind.Title(),
		Color:  colors[r.Kind],
		Footer: r.OccurredAt.Format("02/01/2006 15:04:05") + " UTC",
	}
	if m.Color == "" {
		m.Color = "#95a5a6"
	}
	add := func(name, value string, inline bool) {
		if value != "" {
			m.Fields = append(m.Fields, messaging.Field{Name: name, Value: value, Inline: inline})
		}
	}
	if r.ActorID != "" {
		user := fmt.Sprintf("<@%s>", r.ActorID)
		if r.ActorTag != "" {
			user += " (" + r.ActorTag + ")"
		}
		add("Usuário", user, true)
	}
	add("Pagamento", r.PaymentID, true)
	if r.Amount != nil {
		add("Valor", r.Amount.BRL(), true)
	}
	add("Categoria", r.Category, true)
	add("Produto", r.Product, true)
	add("Item", r.Item, true)
	add("Tipo de busca", r.SearchType, true)
	add("Termo", r.SearchTerm, true)
	add("Ação", r.Action, true)
	add("Comando", r.Command, false)
	add("Motivo", r.Reason, false)
	if r.FallbackUsed {
		add("Fallback", "Entrega feita fora da DM", true)
	}
	if r.DeliveryMessage != "" {
		add("Mensagem de entrega", truncate(r.DeliveryMessage, maxDeliveryField), false)
	}
	if r.Resend != "" && r.Kind.Resendable() {
		m.Buttons = []messaging.Button{{
			Label:  "📨 Reenviar",
			Action: ActionResend + ":" + r.Resend,
			Style:  messaging.StylePrimary,
		}}
	}
	return m
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

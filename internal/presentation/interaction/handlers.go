package interaction

import (
	"context"
	"errors"
	"fmt"

	appaudit "github.com/Zhima-Mochi/storefront-bot/internal/application/audit"
	appcheckout "github.com/Zhima-Mochi/storefront-bot/internal/application/checkout"
	appgiveaway "github.com/Zhima-Mochi/storefront-bot/internal/application/giveaway"
	apptrade "github.com/Zhima-Mochi/storefront-bot/internal/application/trade"
	domcheckout "github.com/Zhima-Mochi/storefront-bot/internal/domain/checkout"
	domgiveaway "github.com/Zhima-Mochi/storefront-bot/internal/domain/giveaway"
	dominv "github.com/Zhima-Mochi/storefront-bot/internal/domain/inventory"
	"github.com/Zhima-Mochi/storefront-bot/internal/domain/messaging"
	domtrade "github.com/Zhima-Mochi/storefront-bot/internal/domain/trade"
)

// selectProduct starts a checkout for the chosen category. The category is
// the action argument or the first selected value.
func (d *Dispatcher) selectProduct(ctx context.Context, in messaging.Interaction, category string) messaging.Message {
	if category == "" {
		category = in.Value()
	}
	res, err := d.Checkout.Start(ctx, appcheckout.StartCommand{
		BuyerID:   in.UserID,
		BuyerTag:  in.UserTag,
		ChannelID: in.ChannelID,
		Category:  category,
	})
	switch {
	case err == nil:
		return pixMessage(category, res, in.Admin)
	case errors.Is(err, dominv.ErrNoStock):
		return text("❌ Sem estoque em **%s** no momento.", category)
	case errors.Is(err, domcheckout.ErrDuplicatePending):
		return text("⚠️ Você já tem um pagamento pendente. Conclua ou aguarde ele expirar.")
	case errors.Is(err, dominv.ErrInvalidPrice):
		return text("❌ **%s** ainda não tem preço definido.", category)
	case errors.Is(err, domcheckout.ErrGateway):
		return text("❌ Não foi possível gerar o PIX agora. Tente novamente em instantes.")
	default:
		return d.failure(ctx, err)
	}
}

func pixMessage(category string, res appcheckout.StartResult, admin bool) messaging.Message {
	m := messaging.Message{
		Title: "💳 Pagamento PIX",
		Description: fmt.Sprintf("Produto: **%s**\nValor: **%s**\nExpira às %s UTC. A entrega é automática após a confirmação.",
			category, res.Price.BRL(), res.ExpiresAt.Format("15:04")),
		Color:  "#00bfff",
		Fields: []messaging.Field{{Name: "PIX copia e cola", Value: "```" + res.PixPayload + "```"}},
		Image:  res.QRImageURL,
		Footer: res.PaymentID,
		Buttons: []messaging.Button{
			{Label: "📋 Copiar PIX", Action: appcheckout.ActionCopyPix + ":" + res.PaymentID, Style: messaging.StylePrimary},
		},
	}
	if len(res.QRImage) > 0 {
		m.Files = []messaging.File{{Name: "qrcode.png", Data: res.QRImage}}
	}
	if res.TestMode {
		m.Footer += " • modo de teste"
	}
	if admin {
		m.Buttons = append(m.Buttons, messaging.Button{
			Label: "Cancelar", Action: appcheckout.ActionCancel + ":" + res.PaymentID, Style: messaging.StyleDanger,
		})
	}
	return m
}

func (d *Dispatcher) copyPix(ctx context.Context, in messaging.Interaction, paymentID string) messaging.Message {
	p, err := d.Checkout.Status(ctx, paymentID)
	if err != nil {
		return d.failure(ctx, err)
	}
	if p.BuyerID != in.UserID && !in.Admin {
		return d.failure(ctx, domcheckout.ErrForbidden)
	}
	if p.Status != domcheckout.StatusPending {
		return d.failure(ctx, domcheckout.ErrNotPending)
	}
	return messaging.Message{Content: p.PixPayload}
}

func (d *Dispatcher) cancel(ctx context.Context, in messaging.Interaction, paymentID string) messaging.Message {
	err := d.Checkout.Cancel(ctx, appcheckout.CancelCommand{
		PaymentID: paymentID,
		Actor:     domcheckout.Actor{ID: in.UserID, Tag: in.UserTag, Admin: in.Admin},
	})
	if err != nil {
		return d.failure(ctx, err)
	}
	return text("✅ Pagamento `%s` cancelado.", paymentID)
}

func (d *Dispatcher) resend(ctx context.Context, in messaging.Interaction) messaging.Message {
	payload, ok := appaudit.ParseResendAction(in.Action)
	if !ok {
		return text("❌ Este registro não tem mensagem para reenviar.")
	}
	userID, err := d.Checkout.Resend(ctx, appcheckout.ResendCommand{
		Admin:   domcheckout.Actor{ID: in.UserID, Tag: in.UserTag, Admin: in.Admin},
		Payload: payload,
	})
	if errors.Is(err, messaging.ErrDirectClosed) {
		return text("❌ <@%s> continua com a DM fechada.", userID)
	}
	if err != nil {
		return d.failure(ctx, err)
	}
	return text("📨 Mensagem reenviada para <@%s>.", userID)
}

func (d *Dispatcher) openTicket(ctx context.Context, in messaging.Interaction) messaging.Message {
	t, err := d.Trade.Request(ctx, apptrade.RequestCommand{BuyerID: in.UserID, BuyerTag: in.UserTag})
	switch {
	case err == nil:
		return text("✅ Ticket de troca aberto em <#%s>.", t.ChannelID)
	case errors.Is(err, domtrade.ErrNotEligible):
		return text("⏰ A troca só pode ser pedida até 10 minutos após a compra.")
	case errors.Is(err, domtrade.ErrAlreadyOpen):
		return text("⚠️ Você já tem um ticket de troca aberto.")
	default:
		return d.failure(ctx, err)
	}
}

func (d *Dispatcher) resolveTicket(ctx context.Context, in messaging.Interaction, action string) messaging.Message {
	cmd := apptrade.ResolveCommand{ChannelID: in.ChannelID, ActorID: in.UserID, Admin: in.Admin}
	var err error
	var done string
	switch action {
	case apptrade.ActionApprove:
		_, err = d.Trade.Approve(ctx, cmd)
		done = "✅ Troca aprovada. O novo cartão foi enviado."
	case apptrade.ActionDeny:
		_, err = d.Trade.Deny(ctx, cmd)
		done = "❌ Troca negada."
	default:
		_, err = d.Trade.Close(ctx, cmd)
		done = "🔒 Ticket fechado."
	}
	if errors.Is(err, domtrade.ErrNoReplacementStock) {
		return text("⚠️ Sem cartão disponível para a troca. O ticket continua aberto.")
	}
	if err != nil {
		return d.failure(ctx, err)
	}
	return text("%s", done)
}

func (d *Dispatcher) toggle(ctx context.Context, in messaging.Interaction) messaging.Message {
	res, err := d.Giveaways.Toggle(ctx, appgiveaway.ToggleCommand{
		MessageID: in.MessageID,
		UserID:    in.UserID,
		GuildID:   in.GuildID,
	})
	switch {
	case err == nil && res.Entered:
		return text("🎉 Você está participando! Total: %d.", res.Count)
	case err == nil:
		return text("Você saiu do sorteio. Total: %d.", res.Count)
	case errors.Is(err, domgiveaway.ErrRoleRequired):
		return text("🚫 Você não tem o cargo necessário para participar.")
	default:
		return d.failure(ctx, err)
	}
}

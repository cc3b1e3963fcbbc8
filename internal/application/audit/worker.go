package audit

import (
	"context"
	"fmt"

	domaudit "github.com/Zhima-Mochi/storefront-bot/internal/domain/audit"
	domcheckout "github.com/Zhima-Mochi/storefront-bot/internal/domain/checkout"
	domgiveaway "github.com/Zhima-Mochi/storefront-bot/internal/domain/giveaway"
	dominv "github.com/Zhima-Mochi/storefront-bot/internal/domain/inventory"
	domoutbox "github.com/Zhima-Mochi/storefront-bot/internal/domain/outbox"
	domtrade "github.com/Zhima-Mochi/storefront-bot/internal/domain/trade"
	"github.com/Zhima-Mochi/storefront-bot/internal/observability"
	"github.com/Zhima-Mochi/storefront-bot/internal/observability/logctx"
)

// Worker turns domain events into admin log records.
type Worker struct {
	sink       domaudit.Sink
	subscriber domoutbox.Subscriber
	log        observability.Logger
}

func NewWorker(sink domaudit.Sink, subscriber domoutbox.Subscriber, logger observability.Logger) *Worker {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Worker{sink: sink, subscriber: subscriber, log: logger.With(observability.F("component", "audit_worker"))}
}

func (w *Worker) Start() {
	if w.subscriber == nil || w.sink == nil {
		return
	}
	for _, name := range []string{
		domcheckout.ChargeCreatedEvent{}.EventName(),
		domcheckout.PaymentApprovedEvent{}.EventName(),
		domcheckout.PaymentClosedEvent{}.EventName(),
		domcheckout.ItemDeliveredEvent{}.EventName(),
		domcheckout.DeliveryFallbackEvent{}.EventName(),
		domcheckout.CheckoutFailedEvent{}.EventName(),
		dominv.CatalogChangedEvent{}.EventName(),
		dominv.SearchPerformedEvent{}.EventName(),
		dominv.RemovalMissedEvent{}.EventName(),
		domtrade.TicketOpenedEvent{}.EventName(),
		domtrade.TicketResolvedEvent{}.EventName(),
		domgiveaway.FinishedEvent{}.EventName(),
	} {
		w.subscriber.Subscribe(name, w.handle)
	}
}

func (w *Worker) handle(ctx context.Context, e domoutbox.Event) error {
	r, ok := Record(e)
	if !ok {
		return nil
	}
	if err := w.sink.Write(ctx, r.Seal()); err != nil {
		logctx.FromOr(ctx, w.log).Warn("audit_write_failed",
			observability.F("event", e.EventName()),
			observability.F("kind", string(r.Kind)),
			observability.Err(err),
		)
		return fmt.Errorf("audit worker: write %s: %w", r.Kind, err)
	}
	return nil
}

// Record maps an event to its admin log record.
func Record(e domoutbox.Event) (domaudit.Record, bool) {
	switch evt := e.(type) {
	case domcheckout.ChargeCreatedEvent:
		price := evt.Price
		return domaudit.Record{
			Kind: domaudit.KindPurchase, ActorID: evt.BuyerID, ActorTag: evt.BuyerTag,
			PaymentID: evt.PaymentID, Amount: &price, Category: evt.Category, Product: evt.Category,
			OccurredAt: evt.OccurredAt,
		}, true
	case domcheckout.PaymentApprovedEvent:
		price := evt.Price
		return domaudit.Record{
			Kind: domaudit.KindPaymentConfirmed, ActorID: evt.BuyerID, ActorTag: evt.BuyerTag,
			PaymentID: evt.PaymentID, Amount: &price, Category: evt.Category,
			OccurredAt: evt.OccurredAt,
		}, true
	case domcheckout.PaymentClosedEvent:
		r := domaudit.Record{
			Kind: domaudit.KindCancellation, ActorID: evt.BuyerID, ActorTag: evt.BuyerTag,
			PaymentID: evt.PaymentID, Category: evt.Category, OccurredAt: evt.OccurredAt,
		}
		if evt.Status == domcheckout.StatusExpired {
			r.Kind, r.Reason = domaudit.KindInfo, "Pagamento expirado sem confirmação"
		} else {
			r.Reason = fmt.Sprintf("Cancelado por <@%s>", evt.ActorID)
		}
		return r, true
	case domcheckout.ItemDeliveredEvent:
		r := domaudit.Record{
			Kind: domaudit.KindInfo, ActorID: evt.BuyerID, ActorTag: evt.BuyerTag,
			PaymentID: evt.PaymentID, Category: evt.Category, Item: evt.Item,
			FallbackUsed: evt.FallbackUsed, Reason: "Entrega concluída", OccurredAt: evt.OccurredAt,
		}
		if evt.Manual {
			r.Kind = domaudit.KindManualDelivery
			r.Reason = fmt.Sprintf("Entregue por <@%s>", evt.AdminID)
		}
		return r, true
	case domcheckout.DeliveryFallbackEvent:
		return domaudit.Record{
			Kind: domaudit.KindDeliveryFailed, ActorID: evt.BuyerID, ActorTag: evt.BuyerTag,
			PaymentID: evt.PaymentID, Category: evt.Category, Reason: evt.Reason,
			DeliveryMessage: evt.DeliveryMessage, FallbackUsed: true, OccurredAt: evt.OccurredAt,
		}, true
	case domcheckout.CheckoutFailedEvent:
		return domaudit.Record{
			Kind: domaudit.KindError, ActorID: evt.BuyerID, ActorTag: evt.BuyerTag,
			PaymentID: evt.PaymentID, Category: evt.Category, Reason: evt.Reason,
			DeliveryMessage: evt.DeliveryMessage, OccurredAt: evt.OccurredAt,
		}, true
	case dominv.CatalogChangedEvent:
		return domaudit.Record{
			Kind: domaudit.KindAdmin, ActorID: evt.ActorID, Action: evt.Action,
			Command: evt.Command, OccurredAt: evt.OccurredAt,
		}, true
	case dominv.SearchPerformedEvent:
		return domaudit.Record{
			Kind: domaudit.KindSearch, ActorID: evt.ActorID, ActorTag: evt.ActorTag,
			SearchType: string(evt.Field), SearchTerm: evt.Term,
			Reason: fmt.Sprintf("%d resultado(s)", evt.Results), OccurredAt: evt.OccurredAt,
		}, true
	case dominv.RemovalMissedEvent:
		return domaudit.Record{
			Kind: domaudit.KindError, Category: evt.Category, Item: evt.ItemID,
			Reason: "Item não encontrado para remoção: " + evt.Reason, OccurredAt: evt.OccurredAt,
		}, true
	case domtrade.TicketOpenedEvent:
		return domaudit.Record{
			Kind: domaudit.KindInfo, ActorID: evt.BuyerID, ActorTag: evt.BuyerTag, Category: evt.Category,
			Reason: fmt.Sprintf("Troca solicitada em <#%s>", evt.ChannelID), OccurredAt: evt.OccurredAt,
		}, true
	case domtrade.TicketResolvedEvent:
		r := domaudit.Record{
			Kind: domaudit.KindAdmin, ActorID: evt.AdminID, Category: evt.Category,
			Action: "troca_" + string(evt.Status), Command: fmt.Sprintf("<@%s>", evt.BuyerID),
			OccurredAt: evt.OccurredAt,
		}
		if evt.Replacement != "" {
			r.Item = evt.Replacement
			r.Reason = fmt.Sprintf("%s → %s",
				dominv.Card{Number: evt.OriginalCard}.Masked(), dominv.Card{Number: evt.Replacement}.Masked())
		}
		return r, true
	case domgiveaway.FinishedEvent:
		reason := "Sorteio encerrado"
		if evt.Reroll {
			reason = "Sorteio refeito"
		}
		return domaudit.Record{
			Kind: domaudit.KindInfo, Product: evt.Prize,
			Reason: reason + ": " + domgiveaway.FormatWinners(evt.Winners), OccurredAt: evt.OccurredAt,
		}, true
	default:
		return domaudit.Record{}, false
	}
}

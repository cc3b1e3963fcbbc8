package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Zhima-Mochi/storefront-bot/internal/application"
	"github.com/Zhima-Mochi/storefront-bot/internal/application/delivery"
	domcheckout "github.com/Zhima-Mochi/storefront-bot/internal/domain/checkout"
	dominv "github.com/Zhima-Mochi/storefront-bot/internal/domain/inventory"
	"github.com/Zhima-Mochi/storefront-bot/internal/domain/messaging"
	domoutbox "github.com/Zhima-Mochi/storefront-bot/internal/domain/outbox"
	"github.com/Zhima-Mochi/storefront-bot/internal/domain/payment"
	"github.com/Zhima-Mochi/storefront-bot/internal/domain/trade"
	"github.com/Zhima-Mochi/storefront-bot/internal/infrastructure/scheduler"
	"github.com/Zhima-Mochi/storefront-bot/internal/observability"
	"github.com/Zhima-Mochi/storefront-bot/internal/observability/logctx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

const (
	checkoutService = "checkout-service"

	DefaultPollInterval = 4 * time.Second
	DefaultPollAttempts = 45
	DefaultExpiry       = 15 * time.Minute
)

type Config struct {
	PollInterval time.Duration
	PollAttempts int
	Expiry       time.Duration
	TestMode     bool
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.PollAttempts <= 0 {
		c.PollAttempts = DefaultPollAttempts
	}
	if c.Expiry <= 0 {
		c.Expiry = DefaultExpiry
	}
	return c
}

// Inventory is the part of the catalog the orchestrator needs.
type Inventory interface {
	Category(ctx context.Context, name string) (*dominv.Category, error)
	Take(ctx context.Context, category, exclude string) (dominv.Item, error)
}

type Deliverer interface {
	Deliver(ctx context.Context, p delivery.Parcel) (delivery.Receipt, error)
	Resend(ctx context.Context, encoded string) (string, error)
}

type Deps struct {
	Inventory Inventory
	Gateway   payment.Gateway
	Sessions  domcheckout.SessionStore
	Scheduler *scheduler.Scheduler
	Deliverer Deliverer
	Recent    trade.RecentPurchases
	Messenger messaging.Messenger
	Publisher domoutbox.Publisher
}

// Orchestrator drives every payment from charge creation to delivery. The
// session store's status transition is the only guard between the poll
// loop, the expiry timer and admin cancellation.
type Orchestrator struct {
	cfg Config
	Deps

	in          application.Instruments
	transitions observability.Counter
	anomalies   observability.Counter

	mu     sync.Mutex
	timers map[string]*scheduler.Group
}

func New(cfg Config, deps Deps, tel observability.Observability) *Orchestrator {
	if deps.Publisher == nil {
		deps.Publisher = domoutbox.NopPublisher{}
	}
	in := application.NewInstruments(tel, checkoutService)
	return &Orchestrator{
		cfg:         cfg.withDefaults(),
		Deps:        deps,
		in:          in,
		transitions: in.Metrics.Counter(observability.MCheckoutTransitions),
		anomalies:   in.Metrics.Counter(observability.MRemovalAnomalies),
		timers:      make(map[string]*scheduler.Group),
	}
}

// sessionTTL keeps finished contexts around long enough to answer status
// queries after the charge window closes.
func (o *Orchestrator) sessionTTL() time.Duration { return 2 * o.cfg.Expiry }

func (o *Orchestrator) Start(ctx context.Context, cmd StartCommand) (res StartResult, err error) {
	ctx, run := o.in.Begin(ctx, "checkout.start", "StartCheckout", []observability.Field{
		observability.F("buyer_id", cmd.BuyerID),
		observability.F("category", cmd.Category),
	}, attribute.String("checkout.category", cmd.Category))
	defer run.End(&err)

	if err = application.Validate(cmd); err != nil {
		run.Fail("VALIDATION")
		return res, err
	}
	if cmd.Price < 0 {
		run.Fail("INVALID_PRICE")
		return res, fmt.Errorf("%w: %s", dominv.ErrInvalidPrice, cmd.Price)
	}

	cat, err := o.Inventory.Category(ctx, cmd.Category)
	if errors.Is(err, dominv.ErrCategoryNotFound) {
		run.Fail("NO_STOCK")
		return res, fmt.Errorf("%w: %w", dominv.ErrNoStock, err)
	}
	if err != nil {
		run.Fail("REPOSITORY")
		return res, err
	}
	if cat.Count() == 0 {
		run.Fail("NO_STOCK")
		return res, fmt.Errorf("%w: %s", dominv.ErrNoStock, cmd.Category)
	}
	price := cmd.Price
	if price <= 0 && cat.Price != nil {
		price = *cat.Price
	}
	if price <= 0 {
		run.Fail("INVALID_PRICE")
		return res, fmt.Errorf("%w: %s", dominv.ErrInvalidPrice, cmd.Category)
	}

	ok, holder, err := o.Sessions.ClaimBuyer(ctx, cmd.BuyerID, "claim:"+uuid.NewString(), o.cfg.Expiry)
	if err != nil {
		run.Fail("REPOSITORY")
		return res, application.WrapRepository(err)
	}
	if !ok {
		run.Fail("DUPLICATE_PENDING")
		run.Note(observability.F("pending_payment_id", holder))
		return res, domcheckout.ErrDuplicatePending
	}

	charge, err := o.Gateway.CreateCharge(ctx, price.Cents(), cmd.Category)
	if err != nil {
		o.release(ctx, cmd.BuyerID)
		run.Fail("GATEWAY")
		if !errors.Is(err, domcheckout.ErrGateway) {
			err = fmt.Errorf("%w: %w", domcheckout.ErrGateway, err)
		}
		return res, err
	}

	p := domcheckout.New(charge.ID, cmd.BuyerID, cmd.BuyerTag, cmd.ChannelID, cmd.Category, cat.Kind, price, charge.PixPayload, o.cfg.Expiry)
	if err = o.Sessions.Save(ctx, p, o.sessionTTL()); err != nil {
		o.release(ctx, cmd.BuyerID)
		run.Fail("REPOSITORY")
		return res, application.WrapRepository(err)
	}
	if berr := o.Sessions.BindBuyer(ctx, cmd.BuyerID, p.ID, o.cfg.Expiry); berr != nil {
		run.Logger().Warn("buyer_bind_failed", observability.Err(berr))
	}
	o.count("NONE", domcheckout.StatusPending)
	o.schedule(ctx, p.ID)
	run.Note(observability.F("payment_id", p.ID), observability.F("price", price.String()))

	o.in.Publish(ctx, o.Publisher, domcheckout.ChargeCreatedEvent{
		PaymentID:  p.ID,
		BuyerID:    p.BuyerID,
		BuyerTag:   p.BuyerTag,
		Category:   p.Category,
		Price:      price,
		OccurredAt: p.CreatedAt,
	})

	return StartResult{
		PaymentID:  p.ID,
		PixPayload: charge.PixPayload,
		QRImage:    charge.QRImage,
		QRImageURL: charge.QRImageURL,
		Price:      price,
		ExpiresAt:  p.ExpiresAt,
		TestMode:   o.cfg.TestMode,
	}, nil
}

func (o *Orchestrator) schedule(ctx context.Context, id string) {
	g := &scheduler.Group{}
	o.mu.Lock()
	o.timers[id] = g
	o.mu.Unlock()

	g.Add(o.Scheduler.After(ctx, "checkout.expire", o.cfg.Expiry, func(ctx context.Context) {
		_ = o.Expire(ctx, id)
	}))
	g.Add(o.Scheduler.Every(ctx, "checkout.poll", o.cfg.PollInterval, o.cfg.PollAttempts, func(ctx context.Context) bool {
		return o.Tick(ctx, id)
	}))
}

// cancelTimers stops the poll loop and expiry of id. A cancelled loop never
// runs again.
func (o *Orchestrator) cancelTimers(id string) {
	o.mu.Lock()
	g := o.timers[id]
	delete(o.timers, id)
	o.mu.Unlock()
	if g != nil {
		g.Cancel()
	}
}

// Tick is one poll of the gateway. It reports whether polling should go on.
// Gateway trouble is indistinguishable from "still pending".
func (o *Orchestrator) Tick(ctx context.Context, id string) bool {
	logger := logctx.FromOr(ctx, o.in.Log).With(observability.F("payment_id", id))
	p, err := o.Sessions.Get(ctx, id)
	if errors.Is(err, domcheckout.ErrNotFound) {
		return false
	}
	if err != nil {
		logger.Warn("poll_tick_failed", observability.Err(err))
		return true
	}
	if p.Status != domcheckout.StatusPending {
		return false
	}
	status := o.Gateway.Status(ctx, id)
	if !status.Approved() {
		logger.Debug("poll_tick", observability.F("gateway_status", string(status)))
		return true
	}

	won, err := o.transition(ctx, id, domcheckout.StatusPending, domcheckout.TriggerApprove)
	if err != nil {
		logger.Warn("poll_tick_failed", observability.Err(err))
		return true
	}
	if !won {
		return false
	}
	// Our own handle is in the group, so keep going on a detached context.
	ctx = context.WithoutCancel(ctx)
	o.cancelTimers(id)
	p.Status = domcheckout.StatusPaid
	_ = o.confirm(ctx, p)
	return false
}

func (o *Orchestrator) confirm(ctx context.Context, p *domcheckout.Payment) (err error) {
	ctx, run := o.in.Begin(ctx, "checkout.confirm", "ConfirmPayment", []observability.Field{
		observability.F("payment_id", p.ID),
		observability.F("buyer_id", p.BuyerID),
		observability.F("category", p.Category),
	})
	defer run.End(&err)
	defer o.release(ctx, p.BuyerID)

	o.in.Publish(ctx, o.Publisher, domcheckout.PaymentApprovedEvent{
		PaymentID:  p.ID,
		BuyerID:    p.BuyerID,
		BuyerTag:   p.BuyerTag,
		Category:   p.Category,
		Price:      p.Price,
		OccurredAt: time.Now().UTC(),
	})

	item, err := o.Inventory.Take(ctx, p.Category, "")
	if err != nil {
		// Paid but nothing left to hand over. The payment stays PAID for an
		// admin to settle by manual delivery.
		run.Fail("REMOVAL_MISSED")
		o.anomalies.Add(1, observability.L("category", p.Category))
		run.Logger().Error("inventory_removal_anomaly", observability.Err(err))
		o.in.Publish(ctx, o.Publisher, domcheckout.CheckoutFailedEvent{
			PaymentID:  p.ID,
			BuyerID:    p.BuyerID,
			BuyerTag:   p.BuyerTag,
			Category:   p.Category,
			Reason:     "Pagamento confirmado mas o item não está mais em estoque: " + err.Error(),
			OccurredAt: time.Now().UTC(),
		})
		o.notify(ctx, p.ChannelID, messaging.Message{
			Content: fmt.Sprintf("<@%s> seu pagamento foi confirmado, mas o estoque acabou. Um administrador vai finalizar sua entrega.", p.BuyerID),
		})
		return fmt.Errorf("%w: %w", domcheckout.ErrDelivery, err)
	}

	p.ItemID = item.ID()
	p.UpdatedAt = time.Now().UTC()
	if serr := o.Sessions.Save(ctx, p, o.sessionTTL()); serr != nil {
		run.Logger().Warn("payment_save_failed", observability.Err(serr))
	}

	rc, derr := o.Deliverer.Deliver(ctx, delivery.Parcel{
		PaymentID: p.ID,
		BuyerID:   p.BuyerID,
		BuyerTag:  p.BuyerTag,
		ChannelID: p.ChannelID,
		Category:  p.Category,
		Item:      item,
	})
	o.recordForTrade(ctx, p.BuyerID, item)

	if _, terr := o.transition(ctx, p.ID, domcheckout.StatusPaid, domcheckout.TriggerDeliver); terr != nil {
		run.Logger().Warn("delivered_transition_failed", observability.Err(terr))
	}
	o.publishDelivered(ctx, p.ID, p.BuyerID, p.BuyerTag, p.Category, item, rc, "")
	run.Note(observability.F("fallback_used", rc.FallbackUsed))

	if derr != nil {
		run.Fail("DELIVERY_FAILED")
		o.in.Publish(ctx, o.Publisher, domcheckout.CheckoutFailedEvent{
			PaymentID:       p.ID,
			BuyerID:         p.BuyerID,
			BuyerTag:        p.BuyerTag,
			Category:        p.Category,
			Reason:          derr.Error(),
			DeliveryMessage: rc.Message,
			OccurredAt:      time.Now().UTC(),
		})
		return derr
	}
	return nil
}

// Expire closes a payment that was never approved. It is a no-op once any
// other transition has won.
func (o *Orchestrator) Expire(ctx context.Context, id string) (err error) {
	ctx, run := o.in.Begin(context.WithoutCancel(ctx), "checkout.expire", "ExpirePayment",
		[]observability.Field{observability.F("payment_id", id)})
	defer run.End(&err)

	p, err := o.Sessions.Get(ctx, id)
	if errors.Is(err, domcheckout.ErrNotFound) {
		run.Note(observability.F("noop", true))
		return nil
	}
	if err != nil {
		run.Fail("REPOSITORY")
		return application.WrapRepository(err)
	}
	won, err := o.transition(ctx, id, domcheckout.StatusPending, domcheckout.TriggerExpire)
	if err != nil {
		run.Fail("REPOSITORY")
		return application.WrapRepository(err)
	}
	if !won {
		run.Note(observability.F("noop", true))
		return nil
	}
	o.close(ctx, p, domcheckout.StatusExpired, "")
	o.notify(ctx, p.ChannelID, messaging.Message{
		Title:       "⏰ Pagamento expirado",
		Description: "O tempo para pagamento acabou. Inicie uma nova compra se ainda quiser o produto.",
		Color:       "#ff5555",
	})
	return nil
}

// Cancel aborts a pending payment. Only admins may cancel.
func (o *Orchestrator) Cancel(ctx context.Context, cmd CancelCommand) (err error) {
	ctx, run := o.in.Begin(ctx, "checkout.cancel", "CancelPayment", []observability.Field{
		observability.F("payment_id", cmd.PaymentID),
		observability.F("actor_id", cmd.Actor.ID),
	})
	defer run.End(&err)

	if err = application.Validate(cmd); err != nil {
		run.Fail("VALIDATION")
		return err
	}
	if !cmd.Actor.Admin {
		run.Fail("FORBIDDEN")
		return domcheckout.ErrForbidden
	}
	p, err := o.Sessions.Get(ctx, cmd.PaymentID)
	if errors.Is(err, domcheckout.ErrNotFound) {
		run.Fail("NOT_FOUND")
		return err
	}
	if err != nil {
		run.Fail("REPOSITORY")
		return application.WrapRepository(err)
	}
	won, err := o.transition(ctx, p.ID, domcheckout.StatusPending, domcheckout.TriggerCancel)
	if err != nil {
		run.Fail("REPOSITORY")
		return application.WrapRepository(err)
	}
	if !won {
		run.Fail("NOT_PENDING")
		return domcheckout.ErrNotPending
	}
	o.close(ctx, p, domcheckout.StatusCancelled, cmd.Actor.ID)
	return nil
}

func (o *Orchestrator) close(ctx context.Context, p *domcheckout.Payment, to domcheckout.Status, actorID string) {
	o.cancelTimers(p.ID)
	o.release(ctx, p.BuyerID)
	if err := o.Sessions.Delete(ctx, p.ID); err != nil {
		logctx.FromOr(ctx, o.in.Log).Warn("payment_delete_failed", observability.Err(err))
	}
	o.in.Publish(ctx, o.Publisher, domcheckout.PaymentClosedEvent{
		PaymentID:  p.ID,
		BuyerID:    p.BuyerID,
		BuyerTag:   p.BuyerTag,
		Category:   p.Category,
		Price:      p.Price,
		Status:     to,
		ActorID:    actorID,
		OccurredAt: time.Now().UTC(),
	})
}

// Status returns the current context of a payment.
func (o *Orchestrator) Status(ctx context.Context, id string) (*domcheckout.Payment, error) {
	return o.Sessions.Get(ctx, id)
}

// ManualDelivery hands the next unit of a category to a user through the
// same removal and delivery path a paid checkout takes.
func (o *Orchestrator) ManualDelivery(ctx context.Context, cmd ManualDeliveryCommand) (res ManualDeliveryResult, err error) {
	ctx, run := o.in.Begin(ctx, "checkout.manual_delivery", "ManualDelivery", []observability.Field{
		observability.F("admin_id", cmd.Admin.ID),
		observability.F("user_id", cmd.UserID),
		observability.F("category", cmd.Category),
	})
	defer run.End(&err)

	if err = application.Validate(cmd); err != nil {
		run.Fail("VALIDATION")
		return res, err
	}
	if !cmd.Admin.Admin {
		run.Fail("FORBIDDEN")
		return res, domcheckout.ErrForbidden
	}
	item, err := o.Inventory.Take(ctx, cmd.Category, "")
	if err != nil {
		run.Fail("NO_STOCK")
		return res, err
	}
	rc, derr := o.Deliverer.Deliver(ctx, delivery.Parcel{
		BuyerID:   cmd.UserID,
		BuyerTag:  cmd.UserTag,
		ChannelID: cmd.ChannelID,
		Category:  cmd.Category,
		Item:      item,
	})
	o.recordForTrade(ctx, cmd.UserID, item)
	o.publishDelivered(ctx, "", cmd.UserID, cmd.UserTag, cmd.Category, item, rc, cmd.Admin.ID)
	res = ManualDeliveryResult{Item: item.ID(), FallbackUsed: rc.FallbackUsed}
	if derr != nil {
		run.Fail("DELIVERY_FAILED")
		return res, derr
	}
	return res, nil
}

// Resend retries a failed direct delivery from an admin log payload.
func (o *Orchestrator) Resend(ctx context.Context, cmd ResendCommand) (string, error) {
	if err := application.Validate(cmd); err != nil {
		return "", err
	}
	if !cmd.Admin.Admin {
		return "", domcheckout.ErrForbidden
	}
	return o.Deliverer.Resend(ctx, cmd.Payload)
}

func (o *Orchestrator) publishDelivered(ctx context.Context, paymentID, buyerID, buyerTag, category string, item dominv.Item, rc delivery.Receipt, adminID string) {
	now := time.Now().UTC()
	o.in.Publish(ctx, o.Publisher, domcheckout.ItemDeliveredEvent{
		PaymentID:    paymentID,
		BuyerID:      buyerID,
		BuyerTag:     buyerTag,
		Category:     category,
		Item:         item.ID(),
		Manual:       adminID != "",
		AdminID:      adminID,
		FallbackUsed: rc.FallbackUsed,
		OccurredAt:   now,
	})
	if rc.FallbackUsed {
		o.in.Publish(ctx, o.Publisher, domcheckout.DeliveryFallbackEvent{
			PaymentID:       paymentID,
			BuyerID:         buyerID,
			BuyerTag:        buyerTag,
			Category:        category,
			DeliveryMessage: rc.Message,
			Reason:          rc.Reason,
			OccurredAt:      now,
		})
	}
}

func (o *Orchestrator) recordForTrade(ctx context.Context, buyerID string, item dominv.Item) {
	if item.Card == nil || o.Recent == nil {
		return
	}
	err := o.Recent.Add(ctx, buyerID, trade.RecentPurchase{
		CardNumber: item.Card.Number,
		Category:   item.Category,
		Timestamp:  time.Now().UTC(),
	})
	if err != nil {
		logctx.FromOr(ctx, o.in.Log).Warn("recent_purchase_save_failed", observability.Err(err))
	}
}

func (o *Orchestrator) transition(ctx context.Context, id string, from domcheckout.Status, t domcheckout.Trigger) (bool, error) {
	to, err := from.Fire(t)
	if err != nil {
		return false, err
	}
	won, err := o.Sessions.Transition(ctx, id, from, to)
	if err != nil || !won {
		return false, err
	}
	o.count(string(from), to)
	return true, nil
}

func (o *Orchestrator) count(from string, to domcheckout.Status) {
	o.transitions.Add(1, observability.L("from", from), observability.L("to", string(to)))
}

func (o *Orchestrator) release(ctx context.Context, buyerID string) {
	if err := o.Sessions.ReleaseBuyer(ctx, buyerID); err != nil {
		logctx.FromOr(ctx, o.in.Log).Warn("buyer_release_failed", observability.Err(err))
	}
}

func (o *Orchestrator) notify(ctx context.Context, channelID string, m messaging.Message) {
	if o.Messenger == nil || channelID == "" {
		return
	}
	if _, err := o.Messenger.Post(ctx, channelID, m); err != nil {
		logctx.FromOr(ctx, o.in.Log).Warn("checkout_notice_failed", observability.Err(err))
	}
}

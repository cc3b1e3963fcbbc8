package delivery

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/Zhima-Mochi/storefront-bot/internal/application"
	"github.com/Zhima-Mochi/storefront-bot/internal/domain/audit"
	"github.com/Zhima-Mochi/storefront-bot/internal/domain/checkout"
	"github.com/Zhima-Mochi/storefront-bot/internal/domain/identity"
	dominv "github.com/Zhima-Mochi/storefront-bot/internal/domain/inventory"
	"github.com/Zhima-Mochi/storefront-bot/internal/domain/messaging"
	"github.com/Zhima-Mochi/storefront-bot/internal/observability"
)

const (
	deliveryService = "delivery-service"

	DefaultLookupAttempts = 15
	DefaultLookupDelay    = 300 * time.Millisecond

	ReasonDirectClosed = "dm_closed"
	ReasonDirectFailed = "dm_failed"

	// ActionRequestTrade is the button a card buyer presses to open a
	// trade ticket.
	ActionRequestTrade = "trade.open"
)

// ErrDelivery means the payload reached neither the buyer nor a fallback
// surface.
var ErrDelivery = checkout.ErrDelivery

// Enricher attaches a synthetic identity profile to delivered cards.
type Enricher struct {
	lookup   identity.Lookup
	attempts int
	delay    time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

func NewEnricher(lookup identity.Lookup, attempts int, delay time.Duration) *Enricher {
	if attempts <= 0 {
		attempts = DefaultLookupAttempts
	}
	if delay < 0 {
		delay = DefaultLookupDelay
	}
	return &Enricher{
		lookup:   lookup,
		attempts: attempts,
		delay:    delay,
		rng:      rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), rand.Uint64())),
	}
}

func (e *Enricher) cpf() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return identity.GenerateCPF(e.rng)
}

// Enrich tries fresh CPFs until one resolves. It stops early when the lookup
// token is rejected and reports identity.ErrExhausted when the budget runs
// out. Callers deliver with whatever they got either way.
func (e *Enricher) Enrich(ctx context.Context) (identity.Profile, int, error) {
	if e == nil || e.lookup == nil {
		return identity.Profile{}, 0, identity.ErrExhausted
	}
	for attempt := 1; attempt <= e.attempts; attempt++ {
		p, err := e.lookup.Lookup(ctx, e.cpf())
		if err == nil {
			return p, attempt, nil
		}
		if errors.Is(err, identity.ErrInvalidToken) {
			return identity.Profile{}, attempt, err
		}
		if attempt == e.attempts {
			break
		}
		t := time.NewTimer(e.delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return identity.Profile{}, attempt, ctx.Err()
		case <-t.C:
		}
	}
	return identity.Profile{}, e.attempts, identity.ErrExhausted
}

// Parcel is one unit on its way to a buyer.
type Parcel struct {
	PaymentID string
	BuyerID   string
	BuyerTag  string
	// ChannelID is the surface the purchase started in, used as fallback.
	ChannelID string
	Category  string
	Item      dominv.Item
}

// Receipt describes how a parcel was handed over.
type Receipt struct {
	Message      string
	FallbackUsed bool
	Reason       string
	Enriched     bool
}

// Deliverer renders a unit and sends it to the buyer, falling back to the
// purchase surface when direct messages are refused.
type Deliverer struct {
	msg      messaging.Messenger
	enricher *Enricher
	in       application.Instruments
	fallback observability.Counter
}

func NewDeliverer(msg messaging.Messenger, enricher *Enricher, tel observability.Observability) *Deliverer {
	in := application.NewInstruments(tel, deliveryService)
	return &Deliverer{
		msg:      msg,
		enricher: enricher,
		in:       in,
		fallback: in.Metrics.Counter(observability.MDeliveryFallbacks),
	}
}

// Deliver never loses the payload: when both the direct message and the
// fallback post fail, the rendered message is still returned in the
// receipt, together with ErrDelivery, so it can be logged for a resend.
func (d *Deliverer) Deliver(ctx context.Context, p Parcel) (rc Receipt, err error) {
	ctx, run := d.in.Begin(ctx, "delivery.deliver", "Deliver", []observability.Field{
		observability.F("payment_id", p.PaymentID),
		observability.F("buyer_id", p.BuyerID),
		observability.F("category", p.Category),
		observability.F("kind", string(p.Item.Kind)),
	})
	defer run.End(&err)

	var profile identity.Profile
	if p.Item.Card != nil {
		var attempts int
		var lerr error
		profile, attempts, lerr = d.enricher.Enrich(ctx)
		rc.Enriched = lerr == nil
		run.Note(observability.F("lookup_attempts", attempts), observability.F("enriched", rc.Enriched))
		if lerr != nil {
			run.Logger().Info("identity_lookup_unavailable", observability.Err(lerr))
		}
	}
	rc.Message = Render(p.Item, profile)

	dm := messaging.Message{
		Title:       "✅ Compra entregue",
		Description: rc.Message,
		Color:       "#00ff88",
		Footer:      footer(p),
	}
	if p.Item.Card != nil {
		dm.Buttons = []messaging.Button{{Label: "🔄 Solicitar troca", Action: ActionRequestTrade, Style: messaging.StyleSecondary}}
	}
	derr := d.msg.SendDirect(ctx, p.BuyerID, dm)
	if derr == nil {
		return rc, nil
	}

	rc.FallbackUsed = true
	rc.Reason = ReasonDirectFailed
	if errors.Is(derr, messaging.ErrDirectClosed) {
		rc.Reason = ReasonDirectClosed
	}
	d.fallback.Add(1, observability.L("reason", rc.Reason))
	run.Logger().Warn("delivery_fallback_used", observability.F("reason", rc.Reason), observability.Err(derr))

	if p.ChannelID == "" {
		run.Fail("NO_SURFACE")
		return rc, fmt.Errorf("%w: %w", ErrDelivery, derr)
	}
	fb := dm
	fb.Content = fmt.Sprintf("<@%s> não consegui te enviar por DM, aqui está sua compra:", p.BuyerID)
	if _, perr := d.msg.Post(ctx, p.ChannelID, fb); perr != nil {
		run.Fail("NO_SURFACE")
		return rc, fmt.Errorf("%w: %w", ErrDelivery, errors.Join(derr, perr))
	}
	return rc, nil
}

// Resend decodes an admin log resend payload and retries the direct message.
func (d *Deliverer) Resend(ctx context.Context, encoded string) (userID string, err error) {
	ctx, run := d.in.Begin(ctx, "delivery.resend", "Resend", nil)
	defer run.End(&err)

	payload, err := audit.DecodeResend(encoded)
	if err != nil {
		run.Fail("VALIDATION")
		return "", application.NewValidation(err.Error())
	}
	run.Note(observability.F("user_id", payload.UserID))
	if err = d.msg.SendDirect(ctx, payload.UserID, messaging.Message{
		Title:       "📦 Reenvio da sua compra",
		Description: payload.Message,
		Color:       "#00ff88",
	}); err != nil {
		run.Fail("SEND_FAILED")
		return payload.UserID, err
	}
	return payload.UserID, nil
}

func footer(p Parcel) string {
	if p.PaymentID == "" {
		return p.Category
	}
	return p.Category + " • " + p.PaymentID
}

// Render produces the text a buyer receives for item. Missing identity data
// is shown as "N/D".
func Render(item dominv.Item, profile identity.Profile) string {
	var sb strings.Builder
	switch {
	case item.Account != nil:
		fmt.Fprintf(&sb, "**Login:** `%s`\n", item.Account.Login)
		if item.Account.Secret != "" {
			fmt.Fprintf(&sb, "**Senha:** `%s`\n", item.Account.Secret)
		}
		if item.Kind == dominv.KindSteam && item.Account.Link != "" {
			fmt.Fprintf(&sb, "**Link do email:** %s\n", item.Account.Link)
		}
	case item.Card != nil:
		c := item.Card
		fmt.Fprintf(&sb, "**Número:** `%s`\n", c.Number)
		fmt.Fprintf(&sb, "**Validade:** `%s/%s`\n", c.Month, c.Year)
		fmt.Fprintf(&sb, "**CVV:** `%s`\n", c.CVV)
		fmt.Fprintf(&sb, "**Bandeira:** %s\n", c.Brand)
		fmt.Fprintf(&sb, "**Banco:** %s\n", c.Bank)
		fmt.Fprintf(&sb, "**Nível:** %s\n", c.Level)
		fmt.Fprintf(&sb, "**Nome:** %s\n", identity.OrNA(profile.Name))
		fmt.Fprintf(&sb, "**CPF:** %s\n", identity.OrNA(profile.CPF))
		fmt.Fprintf(&sb, "**Nascimento:** %s\n", identity.OrNA(profile.BirthDate))
		fmt.Fprintf(&sb, "**Mãe:** %s\n", identity.OrNA(profile.MotherName))
		fmt.Fprintf(&sb, "**Sexo:** %s\n", identity.OrNA(profile.Sex))
	default:
		fmt.Fprintf(&sb, "**Código:** `%s`\n", item.Code)
	}
	return strings.TrimRight(sb.String(), "\n")
}

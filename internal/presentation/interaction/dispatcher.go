// Package interaction routes chat interaction events to the use cases and
// answers the user who triggered them.
package interaction

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	appaudit "github.com/Zhima-Mochi/storefront-bot/internal/application/audit"
	appcheckout "github.com/Zhima-Mochi/storefront-bot/internal/application/checkout"
	appgiveaway "github.com/Zhima-Mochi/storefront-bot/internal/application/giveaway"
	apptrade "github.com/Zhima-Mochi/storefront-bot/internal/application/trade"
	domcheckout "github.com/Zhima-Mochi/storefront-bot/internal/domain/checkout"
	domgiveaway "github.com/Zhima-Mochi/storefront-bot/internal/domain/giveaway"
	"github.com/Zhima-Mochi/storefront-bot/internal/domain/messaging"
	domtrade "github.com/Zhima-Mochi/storefront-bot/internal/domain/trade"
	"github.com/Zhima-Mochi/storefront-bot/internal/observability"
	"github.com/Zhima-Mochi/storefront-bot/internal/observability/logctx"
	workerpresentation "github.com/Zhima-Mochi/storefront-bot/internal/presentation/worker"
	"go.opentelemetry.io/otel/trace"
)

const handlerTimeout = 30 * time.Second

type Checkout interface {
	Start(ctx context.Context, cmd appcheckout.StartCommand) (appcheckout.StartResult, error)
	Status(ctx context.Context, id string) (*domcheckout.Payment, error)
	Cancel(ctx context.Context, cmd appcheckout.CancelCommand) error
	Resend(ctx context.Context, cmd appcheckout.ResendCommand) (string, error)
}

type Trade interface {
	Request(ctx context.Context, cmd apptrade.RequestCommand) (*domtrade.Ticket, error)
	Approve(ctx context.Context, cmd apptrade.ResolveCommand) (*domtrade.Ticket, error)
	Deny(ctx context.Context, cmd apptrade.ResolveCommand) (*domtrade.Ticket, error)
	Close(ctx context.Context, cmd apptrade.ResolveCommand) (*domtrade.Ticket, error)
}

type Giveaways interface {
	Toggle(ctx context.Context, cmd appgiveaway.ToggleCommand) (appgiveaway.ToggleResult, error)
}

type Deps struct {
	Checkout  Checkout
	Trade     Trade
	Giveaways Giveaways
	Messenger messaging.Messenger
}

// Dispatcher runs every interaction in its own goroutine. A panic in one
// handler is logged and never reaches the listener.
type Dispatcher struct {
	Deps
	log observability.Logger
	tel observability.Observability
	wg  sync.WaitGroup
}

func NewDispatcher(deps Deps, tel observability.Observability) *Dispatcher {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Dispatcher{
		Deps: deps,
		log:  tel.Logger().With(observability.F("component", "interaction_dispatcher")),
		tel:  tel,
	}
}

// Handle matches the listener callback. It returns immediately.
func (d *Dispatcher) Handle(ctx context.Context, in messaging.Interaction) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		name, _, _ := strings.Cut(in.Action, ":")
		sc := trace.SpanContextFromContext(ctx)
		hctx := workerpresentation.WithEventContext(context.WithoutCancel(ctx), d.log, d.tel, sc.TraceID(), sc.SpanID(),
			map[string]string{"event_id": in.ID, "action": name})
		hctx, cancel := context.WithTimeout(hctx, handlerTimeout)
		defer cancel()

		defer func() {
			if r := recover(); r != nil {
				logctx.FromOr(hctx, d.log).Error("interaction_panic",
					observability.F("panic", r),
					observability.F("stack", string(debug.Stack())),
				)
				d.reply(hctx, in, genericFailure())
			}
		}()
		d.dispatch(hctx, in)
	}()
}

// Wait blocks until every in-flight interaction finished.
func (d *Dispatcher) Wait() { d.wg.Wait() }

func (d *Dispatcher) dispatch(ctx context.Context, in messaging.Interaction) {
	name, arg, _ := strings.Cut(in.Action, ":")
	var reply messaging.Message
	switch {
	case name == appcheckout.ActionSelect && d.Checkout != nil:
		reply = d.selectProduct(ctx, in, arg)
	case name == appcheckout.ActionCopyPix && d.Checkout != nil:
		reply = d.copyPix(ctx, in, arg)
	case name == appcheckout.ActionCancel && d.Checkout != nil:
		reply = d.cancel(ctx, in, arg)
	case name == appaudit.ActionResend && d.Checkout != nil:
		reply = d.resend(ctx, in)
	case name == apptrade.ActionOpen && d.Trade != nil:
		reply = d.openTicket(ctx, in)
	case (name == apptrade.ActionApprove || name == apptrade.ActionDeny || name == apptrade.ActionClose) && d.Trade != nil:
		reply = d.resolveTicket(ctx, in, name)
	case name == appgiveaway.ActionToggle && d.Giveaways != nil:
		reply = d.toggle(ctx, in)
	default:
		logctx.FromOr(ctx, d.log).Warn("interaction_unhandled", observability.F("action", name))
		return
	}
	d.reply(ctx, in, reply)
}

func (d *Dispatcher) reply(ctx context.Context, in messaging.Interaction, m messaging.Message) {
	if d.Messenger == nil || in.ID == "" {
		return
	}
	m.Ephemeral = true
	if err := d.Messenger.Reply(ctx, in.ID, m); err != nil {
		logctx.FromOr(ctx, d.log).Warn("interaction_reply_failed", observability.Err(err))
	}
}

func text(format string, args ...any) messaging.Message {
	return messaging.Message{Content: fmt.Sprintf(format, args...)}
}

// failure picks the user-facing text for err and logs anything unexpected.
func (d *Dispatcher) failure(ctx context.Context, err error) messaging.Message {
	switch {
	case errors.Is(err, domcheckout.ErrForbidden), errors.Is(err, domtrade.ErrForbidden):
		return text("🚫 Apenas administradores podem fazer isso.")
	case errors.Is(err, domcheckout.ErrNotFound):
		return text("❌ Pagamento não encontrado ou já encerrado.")
	case errors.Is(err, domcheckout.ErrNotPending):
		return text("⚠️ Este pagamento não está mais pendente.")
	case errors.Is(err, domtrade.ErrNotFound), errors.Is(err, domtrade.ErrNotOpen):
		return text("⚠️ Este ticket não está mais aberto.")
	case errors.Is(err, domgiveaway.ErrNotFound), errors.Is(err, domgiveaway.ErrNotActive):
		return text("⏰ Este sorteio já foi encerrado.")
	}
	logctx.FromOr(ctx, d.log).Error("interaction_failed", observability.Err(err))
	return genericFailure()
}

func genericFailure() messaging.Message {
	return text("❌ Ocorreu um erro. Tente novamente ou chame um administrador.")
}

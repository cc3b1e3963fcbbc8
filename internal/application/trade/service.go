package trade

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/Zhima-Mochi/storefront-bot/internal/application"
	"github.com/Zhima-Mochi/storefront-bot/internal/application/delivery"
	dominv "github.com/Zhima-Mochi/storefront-bot/internal/domain/inventory"
	"github.com/Zhima-Mochi/storefront-bot/internal/domain/messaging"
	domoutbox "github.com/Zhima-Mochi/storefront-bot/internal/domain/outbox"
	domain "github.com/Zhima-Mochi/storefront-bot/internal/domain/trade"
	"github.com/Zhima-Mochi/storefront-bot/internal/infrastructure/scheduler"
	"github.com/Zhima-Mochi/storefront-bot/internal/observability"
	"github.com/Zhima-Mochi/storefront-bot/internal/observability/logctx"
)

const tradeService = "trade-service"

// Action names carried by the ticket buttons.
const (
	ActionOpen    = delivery.ActionRequestTrade
	ActionApprove = "trade.approve"
	ActionDeny    = "trade.deny"
	ActionClose   = "trade.close"
)

type Config struct {
	TeardownDelay time.Duration
	// AdminIDs join every ticket surface.
	AdminIDs []string
}

type Inventory interface {
	Take(ctx context.Context, category, exclude string) (dominv.Item, error)
}

type Deliverer interface {
	Deliver(ctx context.Context, p delivery.Parcel) (delivery.Receipt, error)
}

type Deps struct {
	Tickets   domain.Repository
	Recent    domain.RecentPurchases
	Inventory Inventory
	Deliverer Deliverer
	Messenger messaging.Messenger
	Scheduler *scheduler.Scheduler
	Publisher domoutbox.Publisher
}

// Service runs card replacement tickets from request to teardown.
type Service struct {
	cfg Config
	Deps
	in application.Instruments
}

func NewService(cfg Config, deps Deps, tel observability.Observability) *Service {
	if cfg.TeardownDelay <= 0 {
		cfg.TeardownDelay = domain.DefaultTeardownDelay
	}
	if deps.Publisher == nil {
		deps.Publisher = domoutbox.NopPublisher{}
	}
	return &Service{cfg: cfg, Deps: deps, in: application.NewInstruments(tel, tradeService)}
}

type RequestCommand struct {
	BuyerID  string `validate:"required"`
	BuyerTag string
}

// ResolveCommand acts on the ticket bound to ChannelID.
type ResolveCommand struct {
	ChannelID string `validate:"required"`
	ActorID   string `validate:"required"`
	Admin     bool
}

// Request opens a ticket for the buyer's latest card purchase inside the
// trade window.
func (s *Service) Request(ctx context.Context, cmd RequestCommand) (t *domain.Ticket, err error) {
	ctx, run := s.in.Begin(ctx, "trade.request", "RequestTrade",
		[]observability.Field{observability.F("buyer_id", cmd.BuyerID)})
	defer run.End(&err)

	if err = application.Validate(cmd); err != nil {
		run.Fail("VALIDATION")
		return nil, err
	}
	entries, err := s.Recent.List(ctx, cmd.BuyerID, time.Now().UTC())
	if err != nil {
		run.Fail("REPOSITORY")
		return nil, application.WrapRepository(err)
	}
	latest, ok := domain.Latest(entries)
	if !ok {
		run.Fail("NOT_ELIGIBLE")
		return nil, domain.ErrNotEligible
	}
	if _, err = s.Tickets.FindOpenByBuyer(ctx, cmd.BuyerID); err == nil {
		run.Fail("ALREADY_OPEN")
		return nil, domain.ErrAlreadyOpen
	} else if !errors.Is(err, domain.ErrNotFound) {
		run.Fail("REPOSITORY")
		return nil, application.WrapRepository(err)
	}

	members := append([]string{cmd.BuyerID}, s.cfg.AdminIDs...)
	channelID, err := s.Messenger.OpenPrivateSurface(ctx, surfaceName(cmd.BuyerTag, cmd.BuyerID), members)
	if err != nil {
		run.Fail("SURFACE")
		return nil, err
	}

	t = domain.NewTicket(channelID, cmd.BuyerID, cmd.BuyerTag, latest)
	if err = s.Tickets.Insert(ctx, t); err != nil {
		_ = s.Messenger.CloseSurface(ctx, channelID)
		if errors.Is(err, domain.ErrAlreadyOpen) {
			run.Fail("ALREADY_OPEN")
			return nil, err
		}
		run.Fail("REPOSITORY")
		return nil, application.WrapRepository(err)
	}
	run.Note(observability.F("channel_id", channelID), observability.F("category", t.Category))

	if _, perr := s.Messenger.Post(ctx, channelID, messaging.Message{
		Content: fmt.Sprintf("<@%s>", cmd.BuyerID),
		Title:   "🔄 Solicitação de troca",
		Description: fmt.Sprintf("Cartão: `%s`\nCategoria: **%s**\nDescreva o problema. Um administrador vai analisar.",
			dominv.Card{Number: t.OriginalCard}.Masked(), t.Category),
		Color: "#ffaa00",
		Buttons: []messaging.Button{
			{Label: "Aprovar", Action: ActionApprove, Style: messaging.StyleSuccess},
			{Label: "Negar", Action: ActionDeny, Style: messaging.StyleDanger},
			{Label: "Fechar", Action: ActionClose, Style: messaging.StyleSecondary},
		},
	}); perr != nil {
		run.Logger().Warn("trade_welcome_failed", observability.Err(perr))
	}

	s.in.Publish(ctx, s.Publisher, domain.TicketOpenedEvent{
		ChannelID:  channelID,
		BuyerID:    t.BuyerID,
		BuyerTag:   t.BuyerTag,
		Category:   t.Category,
		OccurredAt: t.CreatedAt,
	})
	return t, nil
}

// Approve hands the buyer a different unit of the same category. The ticket
// is claimed before any stock moves, so concurrent approvals take one unit.
// Without an alternate unit the ticket returns to open.
func (s *Service) Approve(ctx context.Context, cmd ResolveCommand) (t *domain.Ticket, err error) {
	ctx, run := s.in.Begin(ctx, "trade.approve", "ApproveTrade", resolveFields(cmd))
	defer run.End(&err)

	t, err = s.load(ctx, run, cmd)
	if err != nil {
		return nil, err
	}
	if err = t.Claim(); err != nil {
		run.Fail("NOT_OPEN")
		return nil, err
	}
	if err = s.Tickets.Transition(ctx, t, domain.StatusOpen); err != nil {
		return nil, s.transitionFailed(run, err)
	}

	item, err := s.Inventory.Take(ctx, t.Category, t.OriginalCard)
	if err != nil {
		s.release(ctx, t)
		if errors.Is(err, dominv.ErrNoStock) || errors.Is(err, dominv.ErrCategoryNotFound) {
			run.Fail("NO_REPLACEMENT")
			s.post(ctx, t.ChannelID, messaging.Message{
				Content: fmt.Sprintf("⚠️ Sem estoque em **%s** para a troca. O ticket continua aberto.", t.Category),
			})
			return t, fmt.Errorf("%w: %w", domain.ErrNoReplacementStock, err)
		}
		run.Fail("REPOSITORY")
		return t, err
	}

	_, derr := s.Deliverer.Deliver(ctx, delivery.Parcel{
		BuyerID:   t.BuyerID,
		BuyerTag:  t.BuyerTag,
		ChannelID: t.ChannelID,
		Category:  t.Category,
		Item:      item,
	})
	if derr != nil {
		run.Logger().Warn("trade_delivery_failed", observability.Err(derr))
	}

	t.Replacement = item.ID()
	if rerr := s.Recent.Replace(ctx, t.BuyerID, t.OriginalCard, domain.RecentPurchase{
		CardNumber: t.Replacement,
		Category:   t.Category,
		Timestamp:  t.PurchasedAt,
	}); rerr != nil {
		run.Logger().Warn("trade_recent_replace_failed", observability.Err(rerr))
	}
	if err = s.finish(ctx, run, t, domain.StatusApproving, domain.StatusApproved, cmd.ActorID); err != nil {
		return t, err
	}
	run.Note(observability.F("replacement", dominv.Card{Number: t.Replacement}.Masked()))
	s.post(ctx, t.ChannelID, messaging.Message{
		Content: fmt.Sprintf("✅ Troca aprovada. `%s` → `%s`. Este canal será fechado em instantes.",
			dominv.Card{Number: t.OriginalCard}.Masked(), dominv.Card{Number: t.Replacement}.Masked()),
	})
	return t, nil
}

// release reopens a claimed ticket after a failed approval.
func (s *Service) release(ctx context.Context, t *domain.Ticket) {
	if err := t.Release(); err != nil {
		return
	}
	if err := s.Tickets.Transition(ctx, t, domain.StatusApproving); err != nil {
		logctx.FromOr(ctx, s.in.Log).Warn("trade_release_failed",
			observability.F("channel_id", t.ChannelID), observability.Err(err))
	}
}

func (s *Service) transitionFailed(run *application.Run, err error) error {
	if errors.Is(err, domain.ErrNotOpen) || errors.Is(err, domain.ErrNotFound) {
		run.Fail("NOT_OPEN")
		return err
	}
	run.Fail("REPOSITORY")
	return application.WrapRepository(err)
}

func (s *Service) Deny(ctx context.Context, cmd ResolveCommand) (t *domain.Ticket, err error) {
	ctx, run := s.in.Begin(ctx, "trade.deny", "DenyTrade", resolveFields(cmd))
	defer run.End(&err)

	if t, err = s.load(ctx, run, cmd); err != nil {
		return nil, err
	}
	if err = s.finish(ctx, run, t, domain.StatusOpen, domain.StatusDenied, cmd.ActorID); err != nil {
		return t, err
	}
	s.post(ctx, t.ChannelID, messaging.Message{Content: "❌ Troca negada. Este canal será fechado em instantes."})
	return t, nil
}

func (s *Service) Close(ctx context.Context, cmd ResolveCommand) (t *domain.Ticket, err error) {
	ctx, run := s.in.Begin(ctx, "trade.close", "CloseTrade", resolveFields(cmd))
	defer run.End(&err)

	if t, err = s.load(ctx, run, cmd); err != nil {
		return nil, err
	}
	if err = s.finish(ctx, run, t, domain.StatusOpen, domain.StatusClosed, cmd.ActorID); err != nil {
		return t, err
	}
	s.post(ctx, t.ChannelID, messaging.Message{Content: "🔒 Ticket fechado. Este canal será removido em instantes."})
	return t, nil
}

func (s *Service) load(ctx context.Context, run *application.Run, cmd ResolveCommand) (*domain.Ticket, error) {
	if err := application.Validate(cmd); err != nil {
		run.Fail("VALIDATION")
		return nil, err
	}
	if !cmd.Admin {
		run.Fail("FORBIDDEN")
		return nil, domain.ErrForbidden
	}
	t, err := s.Tickets.FindByChannel(ctx, cmd.ChannelID)
	if errors.Is(err, domain.ErrNotFound) {
		run.Fail("NOT_FOUND")
		return nil, err
	}
	if err != nil {
		run.Fail("REPOSITORY")
		return nil, application.WrapRepository(err)
	}
	if t.Status != domain.StatusOpen {
		run.Fail("NOT_OPEN")
		return nil, fmt.Errorf("%w: %s", domain.ErrNotOpen, t.Status)
	}
	return t, nil
}

// finish stores the terminal status if the ticket is still in from.
func (s *Service) finish(ctx context.Context, run *application.Run, t *domain.Ticket, from, to domain.Status, adminID string) error {
	if err := t.Resolve(to, adminID); err != nil {
		run.Fail("NOT_OPEN")
		return err
	}
	if err := s.Tickets.Transition(ctx, t, from); err != nil {
		return s.transitionFailed(run, err)
	}
	s.in.Publish(ctx, s.Publisher, domain.TicketResolvedEvent{
		ChannelID:    t.ChannelID,
		BuyerID:      t.BuyerID,
		BuyerTag:     t.BuyerTag,
		AdminID:      adminID,
		Category:     t.Category,
		Status:       to,
		OriginalCard: t.OriginalCard,
		Replacement:  t.Replacement,
		OccurredAt:   t.UpdatedAt,
	})
	s.teardown(ctx, t.ChannelID)
	return nil
}

// teardown removes the surface and the ticket after the configured delay.
func (s *Service) teardown(ctx context.Context, channelID string) {
	s.Scheduler.After(ctx, "trade.teardown", s.cfg.TeardownDelay, func(ctx context.Context) {
		logger := logctx.FromOr(ctx, s.in.Log).With(observability.F("channel_id", channelID))
		if err := s.Messenger.CloseSurface(ctx, channelID); err != nil {
			logger.Warn("trade_surface_close_failed", observability.Err(err))
		}
		if err := s.Tickets.Delete(ctx, channelID); err != nil {
			logger.Warn("trade_ticket_delete_failed", observability.Err(err))
		}
	})
}

func (s *Service) post(ctx context.Context, channelID string, m messaging.Message) {
	if _, err := s.Messenger.Post(ctx, channelID, m); err != nil {
		logctx.FromOr(ctx, s.in.Log).Warn("trade_notice_failed", observability.Err(err))
	}
}

func resolveFields(cmd ResolveCommand) []observability.Field {
	return []observability.Field{
		observability.F("channel_id", cmd.ChannelID),
		observability.F("actor_id", cmd.ActorID),
	}
}

var unsafeName = regexp.MustCompile(`[^a-z0-9-]+`)

func surfaceName(tag, id string) string {
	base := strings.ToLower(tag)
	if base == "" {
		base = id
	}
	base = strings.Trim(unsafeName.ReplaceAllString(base, "-"), "-")
	if len(base) > 80 {
		base = base[:80]
	}
	return "troca-" + base
}

package giveaway

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/Zhima-Mochi/storefront-bot/internal/application"
	domain "github.com/Zhima-Mochi/storefront-bot/internal/domain/giveaway"
	"github.com/Zhima-Mochi/storefront-bot/internal/domain/messaging"
	domoutbox "github.com/Zhima-Mochi/storefront-bot/internal/domain/outbox"
	"github.com/Zhima-Mochi/storefront-bot/internal/infrastructure/scheduler"
	"github.com/Zhima-Mochi/storefront-bot/internal/observability"
	"github.com/Zhima-Mochi/storefront-bot/internal/observability/logctx"
	"go.uber.org/multierr"
)

const (
	giveawayService = "giveaway-service"

	ActionToggle = "giveaway.toggle"
)

type Deps struct {
	Repo      domain.Repository
	Messenger messaging.Messenger
	Scheduler *scheduler.Scheduler
	Publisher domoutbox.Publisher
}

// Service runs giveaways: one finalize timer per active giveaway, rebuilt
// from storage on start.
type Service struct {
	Deps
	in  application.Instruments
	now func() time.Time

	// after arms a one-shot task; it defaults to the scheduler.
	after func(ctx context.Context, name string, d time.Duration, task func(ctx context.Context)) *scheduler.Handle

	rngMu sync.Mutex
	rng   *rand.Rand

	// entryMu serializes entrant read-modify-write cycles.
	entryMu sync.Mutex

	mu     sync.Mutex
	timers map[string]*scheduler.Handle
}

func NewService(deps Deps, tel observability.Observability) *Service {
	if deps.Publisher == nil {
		deps.Publisher = domoutbox.NopPublisher{}
	}
	return &Service{
		Deps:   deps,
		in:     application.NewInstruments(tel, giveawayService),
		now:    time.Now,
		after:  deps.Scheduler.After,
		rng:    rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), rand.Uint64())),
		timers: make(map[string]*scheduler.Handle),
	}
}

// Start posts the announcement, persists the giveaway and arms its timer.
func (s *Service) Start(ctx context.Context, d domain.Draft) (g *domain.Giveaway, err error) {
	ctx, run := s.in.Begin(ctx, "giveaway.start", "StartGiveaway", []observability.Field{
		observability.F("channel_id", d.ChannelID),
		observability.F("author_id", d.AuthorID),
	})
	defer run.End(&err)

	dur := domain.ParseDuration(d.Duration)
	if dur <= 0 {
		run.Fail("VALIDATION")
		return nil, fmt.Errorf("%w: %w", application.ErrValidation, domain.ErrInvalidDuration)
	}
	if d.ChannelID == "" {
		run.Fail("VALIDATION")
		return nil, fmt.Errorf("%w: %w", application.ErrValidation, domain.ErrMissingChannel)
	}

	d = d.WithDefaults()

	now := s.now()
	draft, _ := domain.Activate("pending", d, now, dur)
	messageID, err := s.Messenger.Post(ctx, d.ChannelID, announcement(draft))
	if err != nil {
		run.Fail("SURFACE")
		return nil, err
	}
	g, err = domain.Activate(messageID, d, now, dur)
	if err != nil {
		run.Fail("VALIDATION")
		return nil, err
	}
	if err = s.Repo.Save(ctx, g); err != nil {
		run.Fail("REPOSITORY")
		return nil, application.WrapRepository(err)
	}
	s.arm(ctx, g.MessageID, dur)
	run.Note(observability.F("message_id", g.MessageID), observability.F("duration", dur.String()))
	return g, nil
}

type ToggleCommand struct {
	MessageID string `validate:"required"`
	UserID    string `validate:"required"`
	GuildID   string
}

type ToggleResult struct {
	Entered bool `json:"entered"`
	Count   int  `json:"count"`
}

// Toggle flips the user's entry and refreshes the displayed count.
func (s *Service) Toggle(ctx context.Context, cmd ToggleCommand) (res ToggleResult, err error) {
	ctx, run := s.in.Begin(ctx, "giveaway.toggle", "ToggleEntry", []observability.Field{
		observability.F("message_id", cmd.MessageID),
		observability.F("user_id", cmd.UserID),
	})
	defer run.End(&err)

	if err = application.Validate(cmd); err != nil {
		run.Fail("VALIDATION")
		return res, err
	}

	s.entryMu.Lock()
	defer s.entryMu.Unlock()

	g, err := s.Repo.Get(ctx, cmd.MessageID)
	if err != nil {
		run.Fail("NOT_FOUND")
		return res, err
	}
	if g.Status != domain.StatusActive {
		run.Fail("NOT_ACTIVE")
		return res, domain.ErrNotActive
	}
	if g.RequiredRoleID != "" {
		guild := cmd.GuildID
		if guild == "" {
			guild = g.GuildID
		}
		ok, rerr := s.Messenger.HasRole(ctx, guild, cmd.UserID, g.RequiredRoleID)
		if rerr != nil {
			run.Fail("ROLE_CHECK")
			return res, rerr
		}
		if !ok {
			run.Fail("ROLE_REQUIRED")
			return res, domain.ErrRoleRequired
		}
	}
	if res.Entered, err = g.Toggle(cmd.UserID); err != nil {
		run.Fail("NOT_ACTIVE")
		return res, err
	}
	if err = s.Repo.UpdateEntrants(ctx, g.MessageID, g.Entrants); err != nil {
		run.Fail("REPOSITORY")
		return res, application.WrapRepository(err)
	}
	res.Count = len(g.Entrants)
	run.Note(observability.F("entered", res.Entered), observability.F("count", res.Count))

	if eerr := s.Messenger.Edit(ctx, g.ChannelID, g.MessageID, announcement(g)); eerr != nil {
		run.Logger().Warn("giveaway_announcement_edit_failed", observability.Err(eerr))
	}
	return res, nil
}

// Finalize draws the winners once. Calls after the first are no-ops that
// return nil winners.
func (s *Service) Finalize(ctx context.Context, messageID string) (winners []string, err error) {
	ctx, run := s.in.Begin(ctx, "giveaway.finalize", "FinalizeGiveaway",
		[]observability.Field{observability.F("message_id", messageID)})
	defer run.End(&err)

	s.disarm(messageID)

	s.entryMu.Lock()
	won, err := s.Repo.Finalize(ctx, messageID)
	s.entryMu.Unlock()
	if errors.Is(err, domain.ErrNotFound) {
		run.Fail("NOT_FOUND")
		return nil, err
	}
	if err != nil {
		run.Fail("REPOSITORY")
		return nil, application.WrapRepository(err)
	}
	if !won {
		run.Note(observability.F("noop", true))
		return nil, nil
	}
	g, err := s.Repo.Get(ctx, messageID)
	if err != nil {
		run.Fail("REPOSITORY")
		return nil, application.WrapRepository(err)
	}
	winners = s.draw(g, false)
	run.Note(observability.F("entrants", len(g.Entrants)), observability.F("winners", len(winners)))
	s.announce(ctx, g, winners, false)
	return winners, nil
}

// Reroll draws again for a giveaway in any state, ignoring a forced winner.
// Stored state is left as it is.
func (s *Service) Reroll(ctx context.Context, messageID string) (winners []string, err error) {
	ctx, run := s.in.Begin(ctx, "giveaway.reroll", "RerollGiveaway",
		[]observability.Field{observability.F("message_id", messageID)})
	defer run.End(&err)

	g, err := s.Repo.Get(ctx, messageID)
	if err != nil {
		run.Fail("NOT_FOUND")
		return nil, err
	}
	winners = s.draw(g, true)
	s.announce(ctx, g, winners, true)
	return winners, nil
}

// Recover re-arms every active giveaway after a restart. Overdue ones are
// finalized on the spot.
func (s *Service) Recover(ctx context.Context) (err error) {
	ctx, run := s.in.Begin(ctx, "giveaway.recover", "RecoverGiveaways", nil)
	defer run.End(&err)

	active, err := s.Repo.ListActive(ctx)
	if err != nil {
		run.Fail("REPOSITORY")
		return application.WrapRepository(err)
	}
	var overdue, rearmed int
	for _, g := range active {
		left := g.Remaining(s.now())
		if left > 0 {
			s.arm(ctx, g.MessageID, left)
			rearmed++
			continue
		}
		overdue++
		if _, ferr := s.Finalize(ctx, g.MessageID); ferr != nil {
			err = multierr.Append(err, fmt.Errorf("finalize %s: %w", g.MessageID, ferr))
		}
	}
	run.Note(observability.F("rearmed", rearmed), observability.F("overdue", overdue))
	if err != nil {
		run.Fail("PARTIAL")
	}
	return err
}

func (s *Service) arm(ctx context.Context, messageID string, d time.Duration) {
	h := s.after(ctx, "giveaway.finalize", d, func(ctx context.Context) {
		_, _ = s.Finalize(ctx, messageID)
	})
	s.mu.Lock()
	old := s.timers[messageID]
	s.timers[messageID] = h
	s.mu.Unlock()
	if old != nil {
		old.Cancel()
	}
}

// disarm forgets the timer without cancelling it, since Finalize may be
// running inside it.
func (s *Service) disarm(messageID string) {
	s.mu.Lock()
	delete(s.timers, messageID)
	s.mu.Unlock()
}

func (s *Service) draw(g *domain.Giveaway, reroll bool) []string {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return g.Draw(s.rng, reroll)
}

// announce updates the announcement and posts the winners. A vanished
// surface is logged and otherwise ignored.
func (s *Service) announce(ctx context.Context, g *domain.Giveaway, winners []string, reroll bool) {
	logger := logctx.FromOr(ctx, s.in.Log)
	final := *g
	final.Status = domain.StatusFinalized
	if err := s.Messenger.Edit(ctx, g.ChannelID, g.MessageID, result(&final, winners)); err != nil {
		logger.Warn("giveaway_announcement_edit_failed", observability.Err(err))
	}
	title := "🎉 Sorteio encerrado"
	if reroll {
		title = "🔁 Novo sorteio"
	}
	if _, err := s.Messenger.Post(ctx, g.ChannelID, messaging.Message{
		Title:       title,
		Description: fmt.Sprintf("**Prêmio:** %s\n**Ganhador(es):** %s", g.Prize, domain.FormatWinners(winners)),
		Color:       g.Color,
	}); err != nil && !errors.Is(err, messaging.ErrSurfaceGone) {
		logger.Warn("giveaway_result_post_failed", observability.Err(err))
	}
	s.in.Publish(ctx, s.Publisher, domain.FinishedEvent{
		MessageID:  g.MessageID,
		ChannelID:  g.ChannelID,
		Prize:      g.Prize,
		Winners:    winners,
		Reroll:     reroll,
		OccurredAt: s.now().UTC(),
	})
}

func announcement(g *domain.Giveaway) messaging.Message {
	return messaging.Message{
		Title:       "🎉 " + g.Prize,
		Description: g.Description,
		Color:       g.Color,
		Thumbnail:   g.Thumbnail,
		Footer:      g.Footer,
		Fields: []messaging.Field{
			{Name: "Termina", Value: fmt.Sprintf("<t:%d:R>", g.EndsAt.Unix()), Inline: true},
			{Name: "Ganhadores", Value: fmt.Sprint(g.WinnerCount), Inline: true},
			{Name: "Participantes", Value: fmt.Sprint(len(g.Entrants)), Inline: true},
		},
		Buttons: []messaging.Button{{Label: "🎉 Participar", Action: ActionToggle, Style: messaging.StylePrimary}},
	}
}

func result(g *domain.Giveaway, winners []string) messaging.Message {
	m := announcement(g)
	m.Buttons = nil
	m.Fields = append(m.Fields, messaging.Field{Name: "Resultado", Value: domain.FormatWinners(winners)})
	return m
}

package trade

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Zhima-Mochi/storefront-bot/internal/application/apptest"
	"github.com/Zhima-Mochi/storefront-bot/internal/application/delivery"
	dominv "github.com/Zhima-Mochi/storefront-bot/internal/domain/inventory"
	domain "github.com/Zhima-Mochi/storefront-bot/internal/domain/trade"
	"github.com/Zhima-Mochi/storefront-bot/internal/infrastructure/memory"
	"github.com/Zhima-Mochi/storefront-bot/internal/infrastructure/scheduler"
	"github.com/Zhima-Mochi/storefront-bot/internal/infrastructure/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stock struct {
	mu    sync.Mutex
	cards map[string][]string
	delay time.Duration
	takes int
}

func (s *stock) Take(_ context.Context, category, exclude string) (dominv.Item, error) {
	time.Sleep(s.delay)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.takes++
	numbers, ok := s.cards[category]
	if !ok {
		return dominv.Item{}, fmt.Errorf("%w: %s", dominv.ErrCategoryNotFound, category)
	}
	for i, n := range numbers {
		if n == exclude {
			continue
		}
		s.cards[category] = append(numbers[:i:i], numbers[i+1:]...)
		c := dominv.ParseCard(n + "|12|2030|123|VISA|NUBANK|BLACK")
		return dominv.Item{Category: category, Kind: dominv.KindCard, Card: &c}, nil
	}
	return dominv.Item{}, fmt.Errorf("%w: %s", dominv.ErrNoStock, category)
}

type fixture struct {
	svc     *Service
	msg     *apptest.Messenger
	pub     *apptest.Publisher
	tickets *memory.TicketRepository
	recent  *session.RecentPurchases
	stock   *stock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	kv := session.NewMemoryKV(time.Minute)
	t.Cleanup(func() { _ = kv.Close() })
	sched := scheduler.New(nil)
	t.Cleanup(func() { _ = sched.Shutdown(context.Background()) })

	f := &fixture{
		msg:     apptest.NewMessenger(),
		pub:     &apptest.Publisher{},
		tickets: memory.NewTicketRepository(),
		recent:  session.NewRecentPurchases(kv, domain.DefaultWindow),
		stock:   &stock{cards: map[string][]string{"black": {"4111000000000001", "4111000000000002"}}},
	}
	f.svc = NewService(Config{TeardownDelay: 20 * time.Millisecond, AdminIDs: []string{"admin"}}, Deps{
		Tickets:   f.tickets,
		Recent:    f.recent,
		Inventory: f.stock,
		Deliverer: delivery.NewDeliverer(f.msg, nil, nil),
		Messenger: f.msg,
		Scheduler: sched,
		Publisher: f.pub,
	}, nil)
	return f
}

func (f *fixture) bought(t *testing.T, buyer, card string, at time.Time) {
	t.Helper()
	require.NoError(t, f.recent.Add(context.Background(), buyer, domain.RecentPurchase{CardNumber: card, Category: "black", Timestamp: at}))
}

func TestRequest(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(t *testing.T, f *fixture)
		wantErr error
	}{
		{name: "no purchase", wantErr: domain.ErrNotEligible},
		{
			name:    "purchase outside window",
			setup:   func(t *testing.T, f *fixture) { f.bought(t, "u1", "4111000000000001", time.Now().Add(-11*time.Minute)) },
			wantErr: domain.ErrNotEligible,
		},
		{
			name:  "recent purchase",
			setup: func(t *testing.T, f *fixture) { f.bought(t, "u1", "4111000000000001", time.Now()) },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.setup != nil {
				tt.setup(t, f)
			}
			ticket, err := f.svc.Request(context.Background(), RequestCommand{BuyerID: "u1", BuyerTag: "Ana#1"})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, f.msg.Sent("open"))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, domain.StatusOpen, ticket.Status)
			assert.Equal(t, "4111000000000001", ticket.OriginalCard)
			open := f.msg.Sent("open")
			require.Len(t, open, 1)
			assert.Equal(t, "troca-ana-1", open[0].Target)
			assert.Equal(t, 1, f.pub.Count(domain.TicketOpenedEvent{}.EventName()))
		})
	}
}

func TestRequestRejectsSecondOpenTicket(t *testing.T) {
	f := newFixture(t)
	f.bought(t, "u1", "4111000000000001", time.Now())
	ctx := context.Background()

	_, err := f.svc.Request(ctx, RequestCommand{BuyerID: "u1"})
	require.NoError(t, err)
	_, err = f.svc.Request(ctx, RequestCommand{BuyerID: "u1"})
	assert.ErrorIs(t, err, domain.ErrAlreadyOpen)
}

func TestApproveDeliversDifferentUnit(t *testing.T) {
	f := newFixture(t)
	f.bought(t, "u1", "4111000000000001", time.Now())
	ctx := context.Background()
	ticket, err := f.svc.Request(ctx, RequestCommand{BuyerID: "u1"})
	require.NoError(t, err)

	_, err = f.svc.Approve(ctx, ResolveCommand{ChannelID: ticket.ChannelID, ActorID: "u1"})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	got, err := f.svc.Approve(ctx, ResolveCommand{ChannelID: ticket.ChannelID, ActorID: "admin", Admin: true})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, got.Status)
	assert.Equal(t, "4111000000000002", got.Replacement)
	assert.Equal(t, []string{"4111000000000001"}, f.stock.cards["black"])

	dms := f.msg.Sent("dm")
	require.Len(t, dms, 1)
	assert.Contains(t, dms[0].Message.Description, "4111000000000002")

	_, err = f.svc.Deny(ctx, ResolveCommand{ChannelID: ticket.ChannelID, ActorID: "admin", Admin: true})
	assert.ErrorIs(t, err, domain.ErrNotOpen)

	recent, err := f.recent.List(ctx, "u1", time.Now())
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "4111000000000002", recent[0].CardNumber, "the traded card is no longer eligible")

	require.True(t, apptest.Eventually(time.Second, func() bool { return len(f.msg.Closed()) == 1 }))
	_, err = f.tickets.FindByChannel(ctx, ticket.ChannelID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestConcurrentApproveTakesOneUnit(t *testing.T) {
	f := newFixture(t)
	f.stock.cards["black"] = []string{"4111000000000001", "4111000000000002", "4111000000000003"}
	f.stock.delay = 50 * time.Millisecond
	f.bought(t, "u1", "4111000000000001", time.Now())
	ctx := context.Background()
	ticket, err := f.svc.Request(ctx, RequestCommand{BuyerID: "u1"})
	require.NoError(t, err)

	const clicks = 4
	errs := make(chan error, clicks)
	var wg sync.WaitGroup
	for range clicks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Approve(ctx, ResolveCommand{ChannelID: ticket.ChannelID, ActorID: "admin", Admin: true})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	approved := 0
	for err := range errs {
		if err == nil {
			approved++
			continue
		}
		assert.True(t, errors.Is(err, domain.ErrNotOpen) || errors.Is(err, domain.ErrNotFound), err)
	}
	assert.Equal(t, 1, approved)
	assert.Equal(t, 1, f.stock.takes)
	assert.Len(t, f.stock.cards["black"], 2)
	assert.Len(t, f.msg.Sent("dm"), 1)
}

func TestApproveWithoutReplacementKeepsTicketOpen(t *testing.T) {
	f := newFixture(t)
	f.stock.cards["black"] = []string{"4111000000000001"}
	f.bought(t, "u1", "4111000000000001", time.Now())
	ctx := context.Background()
	ticket, err := f.svc.Request(ctx, RequestCommand{BuyerID: "u1"})
	require.NoError(t, err)

	_, err = f.svc.Approve(ctx, ResolveCommand{ChannelID: ticket.ChannelID, ActorID: "admin", Admin: true})
	assert.ErrorIs(t, err, domain.ErrNoReplacementStock)

	stored, err := f.tickets.FindByChannel(ctx, ticket.ChannelID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOpen, stored.Status)
	assert.Empty(t, f.msg.Sent("dm"))
	assert.Empty(t, f.msg.Closed())

	f.stock.cards["black"] = append(f.stock.cards["black"], "4111000000000009")
	got, err := f.svc.Approve(ctx, ResolveCommand{ChannelID: ticket.ChannelID, ActorID: "admin", Admin: true})
	require.NoError(t, err, "a released ticket can be approved once stock arrives")
	assert.Equal(t, "4111000000000009", got.Replacement)
}

func TestDenyAndClose(t *testing.T) {
	tests := []struct {
		name string
		act  func(s *Service, ctx context.Context, cmd ResolveCommand) (*domain.Ticket, error)
		want domain.Status
	}{
		{name: "deny", act: (*Service).Deny, want: domain.StatusDenied},
		{name: "close", act: (*Service).Close, want: domain.StatusClosed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.bought(t, "u1", "4111000000000001", time.Now())
			ctx := context.Background()
			ticket, err := f.svc.Request(ctx, RequestCommand{BuyerID: "u1"})
			require.NoError(t, err)

			got, err := tt.act(f.svc, ctx, ResolveCommand{ChannelID: ticket.ChannelID, ActorID: "admin", Admin: true})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Status)
			assert.Len(t, f.stock.cards["black"], 2)
			assert.Equal(t, 1, f.pub.Count(domain.TicketResolvedEvent{}.EventName()))
			assert.True(t, apptest.Eventually(time.Second, func() bool { return len(f.msg.Closed()) == 1 }))
		})
	}
}

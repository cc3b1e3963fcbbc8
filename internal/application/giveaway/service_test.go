package giveaway

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Zhima-Mochi/storefront-bot/internal/application"
	"github.com/Zhima-Mochi/storefront-bot/internal/application/apptest"
	domain "github.com/Zhima-Mochi/storefront-bot/internal/domain/giveaway"
	"github.com/Zhima-Mochi/storefront-bot/internal/domain/messaging"
	"github.com/Zhima-Mochi/storefront-bot/internal/infrastructure/memory"
	"github.com/Zhima-Mochi/storefront-bot/internal/infrastructure/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T) (*Service, *memory.GiveawayRepository, *apptest.Messenger, *apptest.Publisher) {
	t.Helper()
	repo := memory.NewGiveawayRepository()
	msg := apptest.NewMessenger()
	pub := &apptest.Publisher{}
	sched := scheduler.New(nil)
	t.Cleanup(func() { _ = sched.Shutdown(context.Background()) })
	return NewService(Deps{Repo: repo, Messenger: msg, Scheduler: sched, Publisher: pub}, nil), repo, msg, pub
}

func seed(t *testing.T, repo *memory.GiveawayRepository, id string, ends time.Time, entrants ...string) *domain.Giveaway {
	t.Helper()
	g := &domain.Giveaway{
		MessageID:   id,
		ChannelID:   "ch",
		Prize:       "Nitro",
		EndsAt:      ends,
		WinnerCount: 2,
		Entrants:    entrants,
		Status:      domain.StatusActive,
	}
	require.NoError(t, repo.Save(context.Background(), g))
	return g
}

func TestStartRejects(t *testing.T) {
	tests := []struct {
		name  string
		draft domain.Draft
	}{
		{name: "garbage duration", draft: domain.Draft{ChannelID: "ch", Duration: "soon"}},
		{name: "zero duration", draft: domain.Draft{ChannelID: "ch", Duration: "0m"}},
		{name: "empty duration", draft: domain.Draft{ChannelID: "ch", Duration: ""}},
		{name: "blank duration", draft: domain.Draft{ChannelID: "ch", Duration: "   "}},
		{name: "missing channel", draft: domain.Draft{Duration: "1h"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, msg, _ := newService(t)
			_, err := svc.Start(context.Background(), tt.draft)
			assert.ErrorIs(t, err, application.ErrValidation)
			assert.Empty(t, msg.Sent("post"))
		})
	}
}

func TestStartPersistsActive(t *testing.T) {
	svc, repo, msg, _ := newService(t)
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return start }

	g, err := svc.Start(context.Background(), domain.Draft{ChannelID: "ch", Duration: "1d 2h 30m"})
	require.NoError(t, err)
	assert.Equal(t, start.Add(26*time.Hour+30*time.Minute), g.EndsAt)
	assert.Equal(t, domain.DefaultPrize, g.Prize)

	stored, err := repo.Get(context.Background(), g.MessageID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, stored.Status)
	assert.Empty(t, stored.Entrants)
	require.Len(t, msg.Sent("post"), 1)
	svc.mu.Lock()
	assert.Contains(t, svc.timers, g.MessageID)
	svc.mu.Unlock()
}

func TestToggle(t *testing.T) {
	svc, repo, msg, _ := newService(t)
	seed(t, repo, "g1", time.Now().Add(time.Hour))
	ctx := context.Background()

	res, err := svc.Toggle(ctx, ToggleCommand{MessageID: "g1", UserID: "a"})
	require.NoError(t, err)
	assert.Equal(t, ToggleResult{Entered: true, Count: 1}, res)

	res, err = svc.Toggle(ctx, ToggleCommand{MessageID: "g1", UserID: "a"})
	require.NoError(t, err)
	assert.Equal(t, ToggleResult{Entered: false, Count: 0}, res)

	res, err = svc.Toggle(ctx, ToggleCommand{MessageID: "g1", UserID: "a"})
	require.NoError(t, err)
	assert.True(t, res.Entered)
	assert.Len(t, msg.Sent("edit"), 3)

	msg.EditErr = messaging.ErrSurfaceGone
	_, err = svc.Toggle(ctx, ToggleCommand{MessageID: "g1", UserID: "b"})
	require.NoError(t, err)
}

func TestToggleRequiredRole(t *testing.T) {
	svc, repo, msg, _ := newService(t)
	g := seed(t, repo, "g1", time.Now().Add(time.Hour))
	g.RequiredRoleID = "vip"
	require.NoError(t, repo.Save(context.Background(), g))
	msg.Roles["member"] = []string{"vip"}

	_, err := svc.Toggle(context.Background(), ToggleCommand{MessageID: "g1", UserID: "guest"})
	assert.ErrorIs(t, err, domain.ErrRoleRequired)

	res, err := svc.Toggle(context.Background(), ToggleCommand{MessageID: "g1", UserID: "member"})
	require.NoError(t, err)
	assert.True(t, res.Entered)
}

func TestFinalize(t *testing.T) {
	tests := []struct {
		name     string
		entrants []string
		forced   string
		check    func(t *testing.T, winners []string)
	}{
		{
			name:     "two distinct winners",
			entrants: []string{"A", "B", "C"},
			check: func(t *testing.T, winners []string) {
				require.Len(t, winners, 2)
				assert.NotEqual(t, winners[0], winners[1])
				assert.Subset(t, []string{"A", "B", "C"}, winners)
			},
		},
		{
			name:  "nobody entered",
			check: func(t *testing.T, winners []string) { assert.Empty(t, winners) },
		},
		{
			name:     "fewer entrants than winners",
			entrants: []string{"A"},
			check:    func(t *testing.T, winners []string) { assert.Equal(t, []string{"A"}, winners) },
		},
		{
			name:     "forced winner",
			entrants: []string{"A", "B"},
			forced:   "Z",
			check:    func(t *testing.T, winners []string) { assert.Equal(t, []string{"Z"}, winners) },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo, _, pub := newService(t)
			g := seed(t, repo, "g1", time.Now(), tt.entrants...)
			g.ForcedWinnerID = tt.forced
			require.NoError(t, repo.Save(context.Background(), g))

			winners, err := svc.Finalize(context.Background(), "g1")
			require.NoError(t, err)
			tt.check(t, winners)

			again, err := svc.Finalize(context.Background(), "g1")
			require.NoError(t, err)
			assert.Nil(t, again)
			assert.Equal(t, 1, pub.Count(domain.FinishedEvent{}.EventName()))
		})
	}
}

func TestFinalizeToleratesMissingSurface(t *testing.T) {
	svc, repo, msg, _ := newService(t)
	seed(t, repo, "g1", time.Now(), "A")
	msg.EditErr = messaging.ErrSurfaceGone
	msg.PostErr["ch"] = messaging.ErrSurfaceGone

	winners, err := svc.Finalize(context.Background(), "g1")
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, winners)

	stored, err := repo.Get(context.Background(), "g1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFinalized, stored.Status)
}

func TestRerollIgnoresForcedWinner(t *testing.T) {
	svc, repo, _, pub := newService(t)
	g := seed(t, repo, "g1", time.Now(), "A", "B")
	g.ForcedWinnerID = "Z"
	g.WinnerCount = 1
	require.NoError(t, repo.Save(context.Background(), g))
	ctx := context.Background()

	_, err := svc.Finalize(ctx, "g1")
	require.NoError(t, err)

	winners, err := svc.Reroll(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, winners, 1)
	assert.Contains(t, []string{"A", "B"}, winners[0])
	assert.Equal(t, 2, pub.Count(domain.FinishedEvent{}.EventName()))

	stored, err := repo.Get(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFinalized, stored.Status)
}

func TestRecover(t *testing.T) {
	svc, repo, _, _ := newService(t)
	now := time.Now()
	seed(t, repo, "past", now.Add(-time.Minute), "A")
	seed(t, repo, "soon", now.Add(80*time.Millisecond), "B")
	seed(t, repo, "later", now.Add(time.Hour))

	require.NoError(t, svc.Recover(context.Background()))

	past, err := repo.Get(context.Background(), "past")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFinalized, past.Status)

	later, err := repo.Get(context.Background(), "later")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, later.Status)
	svc.mu.Lock()
	assert.Contains(t, svc.timers, "later")
	svc.mu.Unlock()

	assert.True(t, apptest.Eventually(2*time.Second, func() bool {
		g, err := repo.Get(context.Background(), "soon")
		return err == nil && g.Status == domain.StatusFinalized
	}))
}

func TestRecoverArmsRemainingTime(t *testing.T) {
	svc, repo, _, _ := newService(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	var mu sync.Mutex
	var delays []time.Duration
	arm := svc.after
	svc.after = func(ctx context.Context, name string, d time.Duration, task func(ctx context.Context)) *scheduler.Handle {
		mu.Lock()
		delays = append(delays, d)
		mu.Unlock()
		return arm(ctx, name, d, task)
	}

	seed(t, repo, "a", now.Add(45*time.Minute))
	seed(t, repo, "b", now.Add(90*time.Second))

	require.NoError(t, svc.Recover(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []time.Duration{45 * time.Minute, 90 * time.Second}, delays)
}

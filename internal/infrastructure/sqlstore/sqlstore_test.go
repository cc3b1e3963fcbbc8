package sqlstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/Zhima-Mochi/storefront-bot/internal/domain/giveaway"
	"github.com/Zhima-Mochi/storefront-bot/internal/domain/payment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTest(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), "sqlite", filepath.Join(t.TempDir(), "bot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func sampleGiveaway(id string, ends time.Time) *giveaway.Giveaway {
	g, _ := giveaway.Activate(id, giveaway.Draft{ChannelID: "chan", Prize: "Nitro", WinnerCount: 2}.WithDefaults(), ends.Add(-time.Hour), time.Hour)
	return g
}

func TestGiveawayLifecycle(t *testing.T) {
	repo := NewGiveawayRepository(openTest(t))
	ctx := context.Background()
	ends := time.Now().Add(time.Hour).Truncate(time.Millisecond).UTC()

	g := sampleGiveaway("msg-1", ends)
	require.NoError(t, repo.Save(ctx, g))
	require.NoError(t, repo.UpdateEntrants(ctx, "msg-1", []string{"a", "b"}))

	got, err := repo.Get(ctx, "msg-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got.Entrants)
	assert.True(t, ends.Equal(got.EndsAt))
	assert.Equal(t, giveaway.StatusActive, got.Status)
	assert.Equal(t, giveaway.DefaultColor, got.Color)

	active, err := repo.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)

	changed, err := repo.Finalize(ctx, "msg-1")
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = repo.Finalize(ctx, "msg-1")
	require.NoError(t, err)
	assert.False(t, changed, "second finalize is a no-op")

	active, err = repo.ListActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestGiveawayNotFound(t *testing.T) {
	repo := NewGiveawayRepository(openTest(t))
	ctx := context.Background()

	_, err := repo.Get(ctx, "nope")
	assert.ErrorIs(t, err, giveaway.ErrNotFound)
	_, err = repo.Finalize(ctx, "nope")
	assert.ErrorIs(t, err, giveaway.ErrNotFound)
	assert.ErrorIs(t, repo.UpdateEntrants(ctx, "nope", nil), giveaway.ErrNotFound)
}

func TestSalesLedger(t *testing.T) {
	ledger := NewSalesLedger(openTest(t))
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	sales := []payment.Sale{
		{ID: "s1", AmountCents: 1000, Product: "black", Method: "PIX", Status: payment.StatusApproved, CreatedAt: now.Add(-48 * time.Hour)},
		{ID: "s2", AmountCents: 2500, Product: "gold", Method: "PIX", Status: payment.StatusApproved, CreatedAt: now},
	}
	require.NoError(t, ledger.Upsert(ctx, sales))
	sales[1].AmountCents = 3000
	require.NoError(t, ledger.Upsert(ctx, sales[1:]))

	all, err := ledger.Since(ctx, time.Time{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "s2", all[0].ID)
	assert.Equal(t, int64(3000), all[0].AmountCents)

	recent, err := ledger.Since(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.True(t, now.Equal(recent[0].CreatedAt))
}

func TestUpsertDialects(t *testing.T) {
	tests := []struct {
		dialect Dialect
		want    string
	}{
		{SQLite, "INSERT INTO t (id, v) VALUES (?, ?) ON CONFLICT(id) DO UPDATE SET v = excluded.v"},
		{MySQL, "INSERT INTO t (id, v) VALUES (?, ?) ON DUPLICATE KEY UPDATE v = VALUES(v)"},
	}
	for _, tt := range tests {
		t.Run(string(tt.dialect), func(t *testing.T) {
			db := &DB{dialect: tt.dialect}
			assert.Equal(t, tt.want, db.upsert("t", "id", []string{"id", "v"}, []string{"v"}))
		})
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "oracle", "x")
	assert.Error(t, err)
}

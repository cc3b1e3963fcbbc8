package session

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Zhima-Mochi/storefront-bot/internal/domain/checkout"
	"github.com/Zhima-Mochi/storefront-bot/internal/domain/inventory"
	"github.com/Zhima-Mochi/storefront-bot/internal/domain/trade"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newMemory(t *testing.T) (*MemoryKV, *clock) {
	t.Helper()
	kv := NewMemoryKV(time.Hour)
	t.Cleanup(func() { _ = kv.Close() })
	c := &clock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	kv.now = c.now
	return kv, c
}

// backends returns the memory KV and, when REDIS_TEST_ADDR is set, a Redis KV.
func backends(t *testing.T) map[string]KV {
	t.Helper()
	kv, _ := newMemory(t)
	out := map[string]KV{"memory": kv}
	if addr := os.Getenv("REDIS_TEST_ADDR"); addr != "" {
		r, err := NewRedisKV(context.Background(), RedisConfig{Addr: addr, KeyPrefix: "storefront-test-" + time.Now().Format("150405.000000")})
		require.NoError(t, err)
		t.Cleanup(func() { _ = r.Close() })
		out["redis"] = r
	}
	return out
}

func TestMemoryTTL(t *testing.T) {
	kv, c := newMemory(t)
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "a", "1", time.Minute))
	v, err := kv.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "1", v)

	c.advance(2 * time.Minute)
	_, err = kv.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrMiss)

	ok, err := kv.SetNX(ctx, "a", "2", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "expired key must not block SetNX")
}

func TestCompareAndSet(t *testing.T) {
	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, kv.Set(ctx, "s", "PENDING", time.Minute))

			ok, err := kv.CompareAndSet(ctx, "s", "PENDING", "PAID")
			require.NoError(t, err)
			assert.True(t, ok)

			ok, err = kv.CompareAndSet(ctx, "s", "PENDING", "EXPIRED")
			require.NoError(t, err)
			assert.False(t, ok)

			v, _ := kv.Get(ctx, "s")
			assert.Equal(t, "PAID", v)

			ok, err = kv.CompareAndSet(ctx, "missing", "", "x")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestTransitionSingleWinner(t *testing.T) {
	kv, _ := newMemory(t)
	s := NewCheckoutSessions(kv)
	ctx := context.Background()
	p := checkout.New("pay-1", "u1", "buyer#1", "c1", "black", inventory.KindCard, 1000, "pix", 15*time.Minute)
	require.NoError(t, s.Save(ctx, p, time.Hour))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for _, to := range []checkout.Status{checkout.StatusPaid, checkout.StatusExpired, checkout.StatusPaid, checkout.StatusCancelled} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.Transition(ctx, p.ID, checkout.StatusPending, to)
			assert.NoError(t, err)
			if ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())

	got, err := s.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.NotEqual(t, checkout.StatusPending, got.Status)
	assert.Equal(t, "black", got.Category)
}

func TestClaimBuyer(t *testing.T) {
	kv, _ := newMemory(t)
	s := NewCheckoutSessions(kv)
	ctx := context.Background()

	ok, _, err := s.ClaimBuyer(ctx, "u1", "claim-a", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, s.BindBuyer(ctx, "u1", "pay-1", time.Minute))

	ok, holder, err := s.ClaimBuyer(ctx, "u1", "claim-b", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "pay-1", holder)

	require.NoError(t, s.ReleaseBuyer(ctx, "u1"))
	ok, _, err = s.ClaimBuyer(ctx, "u1", "claim-c", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGetMissing(t *testing.T) {
	kv, _ := newMemory(t)
	_, err := NewCheckoutSessions(kv).Get(context.Background(), "nope")
	assert.ErrorIs(t, err, checkout.ErrNotFound)
}

func TestRecentPurchasesWindow(t *testing.T) {
	kv, c := newMemory(t)
	r := NewRecentPurchases(kv, 10*time.Minute)
	ctx := context.Background()
	start := c.now()

	require.NoError(t, r.Add(ctx, "u1", trade.RecentPurchase{CardNumber: "4111", Category: "black", Timestamp: start}))
	c.advance(6 * time.Minute)
	require.NoError(t, r.Add(ctx, "u1", trade.RecentPurchase{CardNumber: "5222", Category: "gold", Timestamp: c.now()}))

	list, err := r.List(ctx, "u1", c.now())
	require.NoError(t, err)
	assert.Len(t, list, 2)

	c.advance(5 * time.Minute)
	list, err = r.List(ctx, "u1", c.now())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "5222", list[0].CardNumber)

	list, err = r.List(ctx, "other", c.now())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestRecentPurchasesReplace(t *testing.T) {
	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			r := NewRecentPurchases(kv, 10*time.Minute)
			ctx := context.Background()
			at := time.Now().Add(-time.Minute).UTC()

			require.NoError(t, r.Add(ctx, "u1", trade.RecentPurchase{CardNumber: "4111", Category: "black", Timestamp: at}))
			require.NoError(t, r.Replace(ctx, "u1", "4111", trade.RecentPurchase{CardNumber: "4222", Category: "black", Timestamp: at}))

			list, err := r.List(ctx, "u1", time.Now())
			require.NoError(t, err)
			require.Len(t, list, 1)
			assert.Equal(t, "4222", list[0].CardNumber)
			assert.True(t, at.Equal(list[0].Timestamp), "the purchase time is kept")

			require.NoError(t, r.Replace(ctx, "u2", "none", trade.RecentPurchase{CardNumber: "4333", Timestamp: at}))
			list, err = r.List(ctx, "u2", time.Now())
			require.NoError(t, err)
			assert.Len(t, list, 1)
		})
	}
}

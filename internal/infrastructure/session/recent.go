package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/storefront-bot/internal/domain/trade"
)

// RecentPurchases keeps per-buyer trade eligibility as a time-scored set.
type RecentPurchases struct {
	kv     KV
	window time.Duration
}

func NewRecentPurchases(kv KV, window time.Duration) *RecentPurchases {
	if window <= 0 {
		window = trade.DefaultWindow
	}
	return &RecentPurchases{kv: kv, window: window}
}

func recentKey(buyerID string) string { return "trade:recent:" + buyerID }

func (r *RecentPurchases) Add(ctx context.Context, buyerID string, p trade.RecentPurchase) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("session: encode purchase: %w", err)
	}
	return r.kv.ZAdd(ctx, recentKey(buyerID), string(data), p.Timestamp, r.window)
}

func (r *RecentPurchases) Replace(ctx context.Context, buyerID, cardNumber string, next trade.RecentPurchase) error {
	key := recentKey(buyerID)
	raw, err := r.kv.ZSince(ctx, key, next.Timestamp.Add(-r.window))
	if err != nil {
		return err
	}
	var stale []string
	for _, m := range raw {
		var p trade.RecentPurchase
		if err := json.Unmarshal([]byte(m), &p); err == nil && p.CardNumber == cardNumber {
			stale = append(stale, m)
		}
	}
	if err := r.kv.ZRem(ctx, key, stale...); err != nil {
		return err
	}
	return r.Add(ctx, buyerID, next)
}

func (r *RecentPurchases) List(ctx context.Context, buyerID string, now time.Time) ([]trade.RecentPurchase, error) {
	raw, err := r.kv.ZSince(ctx, recentKey(buyerID), now.Add(-r.window))
	if err != nil {
		return nil, err
	}
	out := make([]trade.RecentPurchase, 0, len(raw))
	for _, m := range raw {
		var p trade.RecentPurchase
		if err := json.Unmarshal([]byte(m), &p); err != nil {
			continue
		}
		out = append(out, p)
	}
	return trade.Prune(out, now, r.window), nil
}

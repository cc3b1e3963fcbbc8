package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/storefront-bot/internal/domain/checkout"
)

// CheckoutSessions implements checkout.SessionStore on a KV. The status lives
// under its own key so transitions are a single compare-and-set.
type CheckoutSessions struct {
	kv KV
}

func NewCheckoutSessions(kv KV) *CheckoutSessions {
	return &CheckoutSessions{kv: kv}
}

func paymentKey(id string) string { return "checkout:payment:" + id }
func statusKey(id string) string  { return "checkout:status:" + id }
func buyerKey(id string) string   { return "checkout:buyer:" + id }

func (s *CheckoutSessions) ClaimBuyer(ctx context.Context, buyerID, holder string, ttl time.Duration) (bool, string, error) {
	ok, err := s.kv.SetNX(ctx, buyerKey(buyerID), holder, ttl)
	if err != nil || ok {
		return ok, "", err
	}
	current, err := s.kv.Get(ctx, buyerKey(buyerID))
	if errors.Is(err, ErrMiss) {
		// Released between the two calls; try once more.
		ok, err = s.kv.SetNX(ctx, buyerKey(buyerID), holder, ttl)
		return ok, "", err
	}
	return false, current, err
}

func (s *CheckoutSessions) BindBuyer(ctx context.Context, buyerID, paymentID string, ttl time.Duration) error {
	return s.kv.Set(ctx, buyerKey(buyerID), paymentID, ttl)
}

func (s *CheckoutSessions) ReleaseBuyer(ctx context.Context, buyerID string) error {
	return s.kv.Delete(ctx, buyerKey(buyerID))
}

func (s *CheckoutSessions) Save(ctx context.Context, p *checkout.Payment, ttl time.Duration) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("session: encode payment: %w", err)
	}
	if err := s.kv.Set(ctx, paymentKey(p.ID), string(data), ttl); err != nil {
		return err
	}
	return s.kv.Set(ctx, statusKey(p.ID), string(p.Status), ttl)
}

func (s *CheckoutSessions) Get(ctx context.Context, id string) (*checkout.Payment, error) {
	raw, err := s.kv.Get(ctx, paymentKey(id))
	if errors.Is(err, ErrMiss) {
		return nil, checkout.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var p checkout.Payment
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("session: decode payment %s: %w", id, err)
	}
	if status, err := s.kv.Get(ctx, statusKey(id)); err == nil {
		p.Status = checkout.Status(status)
	}
	return &p, nil
}

func (s *CheckoutSessions) Transition(ctx context.Context, id string, from, to checkout.Status) (bool, error) {
	return s.kv.CompareAndSet(ctx, statusKey(id), string(from), string(to))
}

func (s *CheckoutSessions) Delete(ctx context.Context, id string) error {
	return s.kv.Delete(ctx, paymentKey(id), statusKey(id))
}

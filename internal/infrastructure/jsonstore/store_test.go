package jsonstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/Zhima-Mochi/storefront-bot/internal/domain/inventory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *InventoryStore {
	t.Helper()
	s, err := NewInventoryStore(filepath.Join(t.TempDir(), "data", "estoque.json"))
	require.NoError(t, err)
	return s
}

func TestReadMissingFileIsEmpty(t *testing.T) {
	s := newStore(t)
	c, err := s.Read(context.Background())
	require.NoError(t, err)
	assert.Empty(t, c)
}

func TestRoundTripKeepsCardLines(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	price := inventory.Money(2550)

	c := inventory.Catalog{}
	cat := c.Ensure("black", inventory.KindCard)
	cat.Price = &price
	cat.Cards = append(cat.Cards, inventory.ParseCard("4111111111111111|12|2030|123|visa|nubank|black"))
	require.NoError(t, s.Write(ctx, c))

	got, err := s.Read(ctx)
	require.NoError(t, err)
	require.Contains(t, got, "black")
	assert.Equal(t, "4111111111111111|12|2030|123|visa|nubank|black", got["black"].Cards[0].Line())
	assert.Equal(t, price, *got["black"].Price)
}

func TestCorruptFile(t *testing.T) {
	s := newStore(t)
	require.NoError(t, os.WriteFile(s.Path(), []byte("{not json"), 0o644))

	_, err := s.Read(context.Background())
	assert.ErrorIs(t, err, inventory.ErrCorruptStore)

	err = s.Update(context.Background(), func(inventory.Catalog) error { return nil })
	assert.ErrorIs(t, err, inventory.ErrCorruptStore)

	data, _ := os.ReadFile(s.Path())
	assert.Equal(t, "{not json", string(data))
}

func TestUpdateAbortsOnError(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.Update(ctx, func(c inventory.Catalog) error {
		c.Ensure("GIFTCARD-XBOX", inventory.KindGiftcard).Codes = []string{"AAA-111"}
		return nil
	}))

	boom := errors.New("boom")
	err := s.Update(ctx, func(c inventory.Catalog) error {
		c["GIFTCARD-XBOX"].Codes = nil
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAA-111"}, got["GIFTCARD-XBOX"].Codes)
}

func TestConcurrentRemovalsDoNotLoseUpdates(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	codes := []string{"C1", "C2", "C3", "C4", "C5", "C6", "C7", "C8"}
	require.NoError(t, s.Update(ctx, func(c inventory.Catalog) error {
		c.Ensure("GIFTCARD-PSN", inventory.KindGiftcard).Codes = append([]string{}, codes...)
		return nil
	}))

	var wg sync.WaitGroup
	for _, code := range codes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Update(ctx, func(c inventory.Catalog) error {
				c["GIFTCARD-PSN"].Remove(code)
				return nil
			})
		}()
	}
	wg.Wait()

	got, err := s.Read(ctx)
	require.NoError(t, err)
	assert.Zero(t, got["GIFTCARD-PSN"].Count())
}

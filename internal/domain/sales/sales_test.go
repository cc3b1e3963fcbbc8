package sales

import (
	"testing"
	"time"

	"github.com/Zhima-Mochi/storefront-bot/internal/domain/payment"
	"github.com/stretchr/testify/assert"
)

func TestSummarize(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	sales := []payment.Sale{
		{ID: "1", AmountCents: 2590, CreatedAt: now.Add(-2 * time.Hour)},
		{ID: "2", AmountCents: 5000, CreatedAt: now.Add(-3 * 24 * time.Hour)},
		{ID: "3", AmountCents: 1000, CreatedAt: now.Add(-40 * 24 * time.Hour)},
	}

	tests := []struct {
		name string
		days int
		want Stats
	}{
		{
			name: "last day",
			days: 1,
			want: Stats{PeriodDays: 1, Count: 1, RevenueCents: 2590, AverageCents: 2590, DailyCents: 2590, TopSaleCents: 2590},
		},
		{
			name: "last week",
			days: 7,
			want: Stats{PeriodDays: 7, Count: 2, RevenueCents: 7590, AverageCents: 3795, DailyCents: 1084, TopSaleCents: 5000},
		},
		{
			name: "all time",
			days: 0,
			want: Stats{PeriodDays: 0, Count: 3, RevenueCents: 8590, AverageCents: 2863, TopSaleCents: 5000},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Summarize(sales, tt.days, now))
		})
	}

	assert.Equal(t, Stats{PeriodDays: 30}, Summarize(nil, 30, now))
}

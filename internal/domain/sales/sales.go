package sales

import (
	"context"
	"time"

	"github.com/Zhima-Mochi/storefront-bot/internal/domain/payment"
)

// Stats summarizes approved sales over a period.
type Stats struct {
	PeriodDays   int   `json:"period_days"`
	Count        int   `json:"count"`
	RevenueCents int64 `json:"revenue_cents"`
	AverageCents int64 `json:"average_cents"`
	DailyCents   int64 `json:"daily_average_cents"`
	TopSaleCents int64 `json:"top_sale_cents"`
}

// Summarize computes stats for sales in the last periodDays days. Zero
// means all time, and then the daily average is not defined and left at zero.
func Summarize(sales []payment.Sale, periodDays int, now time.Time) Stats {
	st := Stats{PeriodDays: periodDays}
	var cutoff time.Time
	if periodDays > 0 {
		cutoff = now.Add(-time.Duration(periodDays) * 24 * time.Hour)
	}
	for _, s := range sales {
		if periodDays > 0 && s.CreatedAt.Before(cutoff) {
			continue
		}
		st.Count++
		st.RevenueCents += s.AmountCents
		if s.AmountCents > st.TopSaleCents {
			st.TopSaleCents = s.AmountCents
		}
	}
	if st.Count > 0 {
		st.AverageCents = st.RevenueCents / int64(st.Count)
	}
	if periodDays > 0 {
		st.DailyCents = st.RevenueCents / int64(periodDays)
	}
	return st
}

// Ledger mirrors approved sales locally.
type Ledger interface {
	Upsert(ctx context.Context, sales []payment.Sale) error
	Since(ctx context.Context, since time.Time) ([]payment.Sale, error)
}

package sales

import (
	"context"
	"sync"
	"time"

	"github.com/Zhima-Mochi/storefront-bot/internal/application"
	"github.com/Zhima-Mochi/storefront-bot/internal/domain/payment"
	domain "github.com/Zhima-Mochi/storefront-bot/internal/domain/sales"
	"github.com/Zhima-Mochi/storefront-bot/internal/observability"
	"golang.org/x/sync/singleflight"
)

const (
	salesService = "sales-service"

	DefaultCacheTTL = 5 * time.Minute
)

type StatsQuery struct {
	PeriodDays int `validate:"gte=0,lte=3650"`
}

// Service computes sales statistics from the provider's approved list. The
// list is cached and every fresh copy is mirrored to the ledger, which also
// answers when the provider cannot.
type Service struct {
	gateway payment.Gateway
	ledger  domain.Ledger
	ttl     time.Duration
	now     func() time.Time
	in      application.Instruments

	group singleflight.Group

	mu        sync.RWMutex
	cached    []payment.Sale
	fetchedAt time.Time
}

func NewService(gateway payment.Gateway, ledger domain.Ledger, ttl time.Duration, tel observability.Observability) *Service {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Service{
		gateway: gateway,
		ledger:  ledger,
		ttl:     ttl,
		now:     time.Now,
		in:      application.NewInstruments(tel, salesService),
	}
}

func (s *Service) Stats(ctx context.Context, q StatsQuery) (st domain.Stats, err error) {
	ctx, run := s.in.Begin(ctx, "sales.stats", "SalesStats",
		[]observability.Field{observability.F("period_days", q.PeriodDays)})
	defer run.End(&err)

	if err = application.Validate(q); err != nil {
		run.Fail("VALIDATION")
		return st, err
	}
	list, err := s.sales(ctx, run)
	if err != nil {
		return st, err
	}
	st = domain.Summarize(list, q.PeriodDays, s.now())
	run.Note(observability.F("count", st.Count))
	return st, nil
}

// Invalidate drops the cached list.
func (s *Service) Invalidate() {
	s.mu.Lock()
	s.cached, s.fetchedAt = nil, time.Time{}
	s.mu.Unlock()
}

func (s *Service) sales(ctx context.Context, run *application.Run) ([]payment.Sale, error) {
	s.mu.RLock()
	if s.cached != nil && s.now().Sub(s.fetchedAt) < s.ttl {
		list := s.cached
		s.mu.RUnlock()
		run.Note(observability.F("cache", "hit"))
		return list, nil
	}
	s.mu.RUnlock()

	v, err, shared := s.group.Do("approved", func() (any, error) {
		list, err := s.gateway.ListApproved(ctx)
		if err != nil {
			return nil, err
		}
		if list == nil {
			list = []payment.Sale{}
		}
		s.mu.Lock()
		s.cached, s.fetchedAt = list, s.now()
		s.mu.Unlock()
		if s.ledger != nil {
			if lerr := s.ledger.Upsert(ctx, list); lerr != nil {
				run.Logger().Warn("sales_ledger_mirror_failed", observability.Err(lerr))
			}
		}
		return list, nil
	})
	run.Note(observability.F("cache", "miss"), observability.F("shared", shared))
	if err == nil {
		return v.([]payment.Sale), nil
	}

	if s.ledger == nil {
		run.Fail("GATEWAY")
		return nil, err
	}
	run.Logger().Warn("sales_gateway_unavailable", observability.Err(err))
	list, lerr := s.ledger.Since(ctx, time.Time{})
	if lerr != nil {
		run.Fail("REPOSITORY")
		return nil, application.WrapRepository(lerr)
	}
	run.Note(observability.F("source", "ledger"))
	return list, nil
}

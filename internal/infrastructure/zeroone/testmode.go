package zeroone

import (
	"context"
	"sync"
	"time"

	"github.com/Zhima-Mochi/storefront-bot/internal/domain/payment"
	"github.com/google/uuid"
)

const testPixPayload = "PIX_COPIA_E_COLA_EM_MODO_TESTE"

// TestGateway fakes the provider. A charge reports PENDING on its first
// status query and APPROVED on every query after that.
type TestGateway struct {
	mu      sync.Mutex
	charges map[string]*testCharge
	now     func() time.Time
}

type testCharge struct {
	amount  int64
	product string
	polled  bool
	created time.Time
}

func NewTestGateway() *TestGateway {
	return &TestGateway{charges: make(map[string]*testCharge), now: time.Now}
}

func (g *TestGateway) CreateCharge(_ context.Context, amountCents int64, description string) (payment.Charge, error) {
	id := "TESTE_" + uuid.NewString()
	now := g.now()
	g.mu.Lock()
	g.charges[id] = &testCharge{amount: amountCents, product: description, created: now}
	g.mu.Unlock()
	return payment.Charge{
		ID:         id,
		PixPayload: testPixPayload,
		Status:     payment.StatusPending,
		ExpiresAt:  now.Add(5 * time.Minute),
	}, nil
}

func (g *TestGateway) Status(_ context.Context, id string) payment.Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	c, ok := g.charges[id]
	if !ok {
		return payment.StatusUnknown
	}
	if !c.polled {
		c.polled = true
		return payment.StatusPending
	}
	return payment.StatusApproved
}

// ListApproved returns fixed sample sales so stats screens have data.
func (g *TestGateway) ListApproved(context.Context) ([]payment.Sale, error) {
	now := g.now().UTC()
	day := 24 * time.Hour
	return []payment.Sale{
		{ID: "TESTE_A", AmountCents: 7550, Product: "Produto Teste A", Method: "PIX", Status: payment.StatusApproved, CreatedAt: now.Add(-1 * day)},
		{ID: "TESTE_B", AmountCents: 3000, Product: "Produto Teste B", Method: "PIX", Status: payment.StatusApproved, CreatedAt: now.Add(-2 * day)},
		{ID: "TESTE_C", AmountCents: 12000, Product: "Produto Teste C", Method: "PIX", Status: payment.StatusApproved, CreatedAt: now.Add(-5 * day)},
	}, nil
}

package zeroone

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Zhima-Mochi/storefront-bot/internal/domain/payment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(Config{BaseURL: srv.URL, SecretKey: "sk"}, nil)
	require.NoError(t, err)
	return c
}

func TestCreateCharge(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transaction.purchase", r.URL.Path)
		assert.Equal(t, "sk", r.Header.Get("Authorization"))
		var req purchaseRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, int64(2550), req.Amount)
		assert.Equal(t, "PIX", req.PaymentMethod)
		require.Len(t, req.Items, 1)
		assert.Equal(t, "black", req.Items[0].Title)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"id": "tx1", "pixCode": "000201...", "pixQrCode": "data:image/png;base64,aGVsbG8=", "status": "pending",
			"expiresAt": "2025-01-01T12:00:00Z",
		})
	})

	ch, err := c.CreateCharge(context.Background(), 2550, "black")
	require.NoError(t, err)
	assert.Equal(t, "tx1", ch.ID)
	assert.Equal(t, payment.StatusPending, ch.Status)
	assert.Equal(t, []byte("hello"), ch.QRImage)
	assert.False(t, ch.ExpiresAt.IsZero())
}

func TestCreateChargeRejected(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"amount too low"}`))
	})
	_, err := c.CreateCharge(context.Background(), 1, "x")
	require.Error(t, err)
	assert.ErrorIs(t, err, payment.ErrGateway)
	assert.Contains(t, err.Error(), "amount too low")
}

func TestStatusTransientFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    payment.Status
	}{
		{
			name: "approved",
			handler: func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "tx1", r.URL.Query().Get("id"))
				_, _ = w.Write([]byte(`{"id":"tx1","status":"APPROVED"}`))
			},
			want: payment.StatusApproved,
		},
		{
			name:    "server error",
			handler: func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusBadGateway) },
			want:    payment.StatusUnknown,
		},
		{
			name:    "garbage body",
			handler: func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("<html>")) },
			want:    payment.StatusUnknown,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newClient(t, tt.handler)
			assert.Equal(t, tt.want, c.Status(context.Background(), "tx1"))
		})
	}
}

func TestListApproved(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "APPROVED", r.URL.Query().Get("status"))
		_, _ = w.Write([]byte(`[{"id":"a","amount":1500,"status":"APPROVED","method":"PIX","createdAt":"2025-01-02T10:00:00Z","items":[{"title":"gold"}]},{"id":"b","amount":900,"status":"APPROVED","createdAt":"bad"}]`))
	})
	sales, err := c.ListApproved(context.Background())
	require.NoError(t, err)
	require.Len(t, sales, 2)
	assert.Equal(t, "gold", sales[0].Product)
	assert.Equal(t, "API", sales[1].Product)
	assert.Equal(t, int64(1500), sales[0].AmountCents)
}

func TestTestGateway(t *testing.T) {
	g := NewTestGateway()
	ctx := context.Background()
	ch, err := g.CreateCharge(ctx, 1000, "x")
	require.NoError(t, err)
	assert.Contains(t, ch.ID, "TESTE_")
	assert.Equal(t, payment.StatusPending, g.Status(ctx, ch.ID))
	assert.Equal(t, payment.StatusApproved, g.Status(ctx, ch.ID))
	assert.Equal(t, payment.StatusUnknown, g.Status(ctx, "other"))
}

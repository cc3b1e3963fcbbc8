package checkout

import (
	"testing"
	"time"

	"github.com/Zhima-Mochi/storefront-bot/internal/domain/inventory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFire(t *testing.T) {
	tests := []struct {
		from    Status
		trigger Trigger
		want    Status
		wantErr bool
	}{
		{from: StatusPending, trigger: TriggerApprove, want: StatusPaid},
		{from: StatusPending, trigger: TriggerExpire, want: StatusExpired},
		{from: StatusPending, trigger: TriggerCancel, want: StatusCancelled},
		{from: StatusPaid, trigger: TriggerDeliver, want: StatusDelivered},
		{from: StatusPending, trigger: TriggerDeliver, wantErr: true},
		{from: StatusPaid, trigger: TriggerCancel, wantErr: true},
		{from: StatusExpired, trigger: TriggerApprove, wantErr: true},
		{from: StatusCancelled, trigger: TriggerApprove, wantErr: true},
		{from: StatusDelivered, trigger: TriggerDeliver, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"/"+string(tt.trigger), func(t *testing.T) {
			got, err := tt.from.Fire(tt.trigger)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTransition)
				assert.Equal(t, tt.from, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTerminal(t *testing.T) {
	for _, s := range []Status{StatusDelivered, StatusExpired, StatusCancelled} {
		assert.True(t, s.Terminal(), s)
	}
	for _, s := range []Status{StatusPending, StatusPaid} {
		assert.False(t, s.Terminal(), s)
	}
}

func TestNewPayment(t *testing.T) {
	p := New("p1", "u1", "buyer#1", "c1", "black", inventory.KindCard, 2590, "PIX", 15*time.Minute)

	assert.Equal(t, StatusPending, p.Status)
	assert.Equal(t, 15*time.Minute, p.ExpiresAt.Sub(p.CreatedAt))
	assert.Equal(t, inventory.Money(2590), p.Price)
	assert.Equal(t, time.UTC, p.CreatedAt.Location())
}

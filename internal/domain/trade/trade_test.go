package trade

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTicketResolve(t *testing.T) {
	tests := []struct {
		name    string
		claim   bool
		to      Status
		wantErr error
	}{
		{name: "approve claimed", claim: true, to: StatusApproved},
		{name: "approve unclaimed", to: StatusApproved, wantErr: ErrInvalidTransition},
		{name: "deny", to: StatusDenied},
		{name: "close", to: StatusClosed},
		{name: "deny claimed", claim: true, to: StatusDenied, wantErr: ErrInvalidTransition},
		{name: "reopen", to: StatusOpen, wantErr: ErrInvalidTransition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tk := NewTicket("c1", "u1", "buyer", RecentPurchase{CardNumber: "4111", Category: "black"})
			if tt.claim {
				require.NoError(t, tk.Claim())
			}
			before := tk.Status
			err := tk.Resolve(tt.to, "a1")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, before, tk.Status)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.to, tk.Status)
			assert.Equal(t, "a1", tk.ResolvedBy)

			assert.ErrorIs(t, tk.Resolve(StatusClosed, "a2"), ErrNotOpen, "a ticket resolves once")
		})
	}
}

func TestTicketClaimRelease(t *testing.T) {
	at := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tk := NewTicket("c1", "u1", "buyer", RecentPurchase{CardNumber: "4111", Category: "black", Timestamp: at})
	assert.Equal(t, at, tk.PurchasedAt)

	assert.ErrorIs(t, tk.Release(), ErrInvalidTransition)
	require.NoError(t, tk.Claim())
	assert.Equal(t, StatusApproving, tk.Status)
	assert.False(t, tk.Status.Terminal())
	assert.ErrorIs(t, tk.Claim(), ErrNotOpen, "one approval at a time")

	require.NoError(t, tk.Release())
	assert.Equal(t, StatusOpen, tk.Status)
}

func TestPruneAndLatest(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	entries := []RecentPurchase{
		{CardNumber: "old", Timestamp: now.Add(-11 * time.Minute)},
		{CardNumber: "edge", Timestamp: now.Add(-DefaultWindow)},
		{CardNumber: "new", Timestamp: now.Add(-time.Minute)},
		{CardNumber: "mid", Timestamp: now.Add(-5 * time.Minute)},
	}

	kept := Prune(entries, now, DefaultWindow)
	require.Len(t, kept, 3)
	assert.Equal(t, "edge", kept[0].CardNumber)
	assert.Equal(t, "old", entries[0].CardNumber, "input is not modified")

	latest, ok := Latest(kept)
	require.True(t, ok)
	assert.Equal(t, "new", latest.CardNumber)

	_, ok = Latest(nil)
	assert.False(t, ok)
}

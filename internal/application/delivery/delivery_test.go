package delivery

import (
	"context"
	"errors"
	"testing"

	"github.com/Zhima-Mochi/storefront-bot/internal/application"
	"github.com/Zhima-Mochi/storefront-bot/internal/application/apptest"
	"github.com/Zhima-Mochi/storefront-bot/internal/domain/audit"
	"github.com/Zhima-Mochi/storefront-bot/internal/domain/identity"
	dominv "github.com/Zhima-Mochi/storefront-bot/internal/domain/inventory"
	"github.com/Zhima-Mochi/storefront-bot/internal/domain/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cardItem() dominv.Item {
	c := dominv.ParseCard("4111222233334444|12|2030|123|VISA|NUBANK|BLACK")
	return dominv.Item{Category: "black", Kind: dominv.KindCard, Card: &c}
}

func TestEnrich(t *testing.T) {
	tests := []struct {
		name      string
		lookup    *apptest.Lookup
		attempts  int
		wantErr   error
		wantCalls int
	}{
		{
			name:      "second attempt hits",
			lookup:    &apptest.Lookup{Errs: []error{identity.ErrNotFound}, Profile: identity.Profile{Name: "Maria Silva"}},
			attempts:  15,
			wantCalls: 2,
		},
		{
			name:      "budget exhausted",
			lookup:    &apptest.Lookup{Errs: []error{identity.ErrNotFound, identity.ErrAPI, identity.ErrConnection}},
			attempts:  3,
			wantErr:   identity.ErrExhausted,
			wantCalls: 3,
		},
		{
			name:      "invalid token stops early",
			lookup:    &apptest.Lookup{Errs: []error{identity.ErrNotFound, identity.ErrInvalidToken, identity.ErrNotFound}},
			attempts:  15,
			wantErr:   identity.ErrInvalidToken,
			wantCalls: 2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEnricher(tt.lookup, tt.attempts, 0)
			p, _, err := e.Enrich(context.Background())
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.True(t, identity.ValidCPF(p.CPF))
			}
			assert.Equal(t, tt.wantCalls, tt.lookup.Calls)
		})
	}
}

func TestRender(t *testing.T) {
	tests := []struct {
		name    string
		item    dominv.Item
		profile identity.Profile
		want    []string
		absent  []string
	}{
		{
			name: "steam account with link",
			item: dominv.Item{Kind: dominv.KindSteam, Account: &dominv.Account{Login: "l", Secret: "s", Link: "https://mail"}},
			want: []string{"**Login:** `l`", "**Senha:** `s`", "https://mail"},
		},
		{
			name:   "roblox account hides link",
			item:   dominv.Item{Kind: dominv.KindRoblox, Account: &dominv.Account{Login: "l", Secret: "s", Link: "https://mail"}},
			absent: []string{"https://mail"},
		},
		{
			name: "gift code",
			item: dominv.Item{Kind: dominv.KindGiftcard, Code: "AAAA-BBBB"},
			want: []string{"**Código:** `AAAA-BBBB`"},
		},
		{
			name:    "card without profile",
			item:    cardItem(),
			want:    []string{"4111222233334444", "12/2030", "**Nome:** N/D", "**Mãe:** N/D"},
			profile: identity.Profile{},
		},
		{
			name:    "card with profile",
			item:    cardItem(),
			profile: identity.Profile{Name: "Ana", CPF: "12345678909"},
			want:    []string{"**Nome:** Ana", "**CPF:** 12345678909"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Render(tt.item, tt.profile)
			for _, w := range tt.want {
				assert.Contains(t, got, w)
			}
			for _, a := range tt.absent {
				assert.NotContains(t, got, a)
			}
		})
	}
}

func TestDeliverDirect(t *testing.T) {
	msg := apptest.NewMessenger()
	d := NewDeliverer(msg, NewEnricher(&apptest.Lookup{Profile: identity.Profile{Name: "Ana"}}, 1, 0), nil)

	rc, err := d.Deliver(context.Background(), Parcel{PaymentID: "p1", BuyerID: "u1", ChannelID: "c1", Category: "black", Item: cardItem()})
	require.NoError(t, err)
	assert.False(t, rc.FallbackUsed)
	assert.True(t, rc.Enriched)
	require.Len(t, msg.Sent("dm"), 1)
	assert.Contains(t, msg.Sent("dm")[0].Message.Description, "Ana")
	require.Len(t, msg.Sent("dm")[0].Message.Buttons, 1)
	assert.Equal(t, ActionRequestTrade, msg.Sent("dm")[0].Message.Buttons[0].Action)
	assert.Empty(t, msg.Sent("post"))
}

func TestDeliverFallback(t *testing.T) {
	tests := []struct {
		name       string
		dmErr      error
		postErr    error
		channel    string
		wantReason string
		wantErr    bool
	}{
		{name: "inbox closed", dmErr: messaging.ErrDirectClosed, channel: "c1", wantReason: ReasonDirectClosed},
		{name: "transport", dmErr: messaging.ErrTransport, channel: "c1", wantReason: ReasonDirectFailed},
		{name: "no channel", dmErr: messaging.ErrDirectClosed, wantReason: ReasonDirectClosed, wantErr: true},
		{name: "channel gone", dmErr: messaging.ErrDirectClosed, postErr: messaging.ErrSurfaceGone, channel: "c1", wantReason: ReasonDirectClosed, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := apptest.NewMessenger()
			msg.DirectErr["u1"] = tt.dmErr
			if tt.postErr != nil {
				msg.PostErr["c1"] = tt.postErr
			}
			d := NewDeliverer(msg, nil, nil)
			item := dominv.Item{Kind: dominv.KindGiftcard, Code: "CODE-1"}

			rc, err := d.Deliver(context.Background(), Parcel{BuyerID: "u1", ChannelID: tt.channel, Category: "GIFTCARD-X", Item: item})
			assert.True(t, rc.FallbackUsed)
			assert.Equal(t, tt.wantReason, rc.Reason)
			assert.Contains(t, rc.Message, "CODE-1")
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrDelivery)
				return
			}
			require.NoError(t, err)
			posts := msg.Sent("post")
			require.Len(t, posts, 1)
			assert.Equal(t, "c1", posts[0].Target)
			assert.Contains(t, posts[0].Message.Content, "<@u1>")
		})
	}
}

func TestResend(t *testing.T) {
	msg := apptest.NewMessenger()
	d := NewDeliverer(msg, nil, nil)
	ctx := context.Background()

	user, err := d.Resend(ctx, audit.EncodeResend(audit.ResendPayload{UserID: "u9", Message: "**Código:** X"}))
	require.NoError(t, err)
	assert.Equal(t, "u9", user)
	require.Len(t, msg.Sent("dm"), 1)

	_, err = d.Resend(ctx, audit.EncodeResend(audit.ResendPayload{UserID: "u9", Message: "N/A"}))
	assert.ErrorIs(t, err, application.ErrValidation)

	_, err = d.Resend(ctx, "%%%")
	assert.ErrorIs(t, err, application.ErrValidation)

	msg.DirectErr["u9"] = errors.New("still closed")
	_, err = d.Resend(ctx, audit.EncodeResend(audit.ResendPayload{UserID: "u9", Message: "x"}))
	assert.Error(t, err)
}

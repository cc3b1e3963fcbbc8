package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeal(t *testing.T) {
	tests := []struct {
		name       string
		rec        Record
		wantResend bool
	}{
		{name: "purchase", rec: Record{Kind: KindPurchase, ActorID: "u1"}},
		{name: "failed delivery", rec: Record{Kind: KindDeliveryFailed, ActorID: "u1", DeliveryMessage: "card"}, wantResend: true},
		{name: "error without message", rec: Record{Kind: KindError, ActorID: "u1"}, wantResend: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := tt.rec.Seal()
			assert.False(t, r.OccurredAt.IsZero())
			assert.Equal(t, tt.wantResend, r.Resend != "")
		})
	}
}

func TestResendPayload(t *testing.T) {
	r := Record{Kind: KindDeliveryFailed, ActorID: "u1", DeliveryMessage: "4111|12|30|123"}.Seal()

	p, err := DecodeResend(r.Resend)
	require.NoError(t, err)
	assert.Equal(t, ResendPayload{UserID: "u1", Message: "4111|12|30|123"}, p)

	empty := Record{Kind: KindError, ActorID: "u1"}.Seal()
	_, err = DecodeResend(empty.Resend)
	assert.ErrorIs(t, err, ErrEmptyResend)

	_, err = DecodeResend("%%%")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrEmptyResend)
}

func TestKindTitle(t *testing.T) {
	assert.Equal(t, "Pagamento Confirmado", KindPaymentConfirmed.Title())
	assert.Equal(t, "Log de Atividade", Kind("unknown").Title())
	assert.True(t, KindError.Resendable())
	assert.False(t, KindSearch.Resendable())
}

package magma

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Zhima-Mochi/storefront-bot/internal/domain/identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		cpf     string
		wantErr error
		want    identity.Profile
	}{
		{
			name:   "found",
			status: http.StatusOK,
			body:   `{"cpf":"52998224725","nome":"MARIA DA SILVA","nascimento":"01/02/1990","nome_mae":"ana souza"}`,
			cpf:    "529.982.247-25",
			want:   identity.Profile{CPF: "52998224725", Name: "Maria Da Silva", BirthDate: "01/02/1990", MotherName: "Ana Souza", Sex: "Não informado"},
		},
		{name: "not found", status: http.StatusOK, body: `{}`, cpf: "52998224725", wantErr: identity.ErrNotFound},
		{name: "bad token", status: http.StatusForbidden, cpf: "52998224725", wantErr: identity.ErrInvalidToken},
		{name: "server error", status: http.StatusInternalServerError, cpf: "52998224725", wantErr: identity.ErrAPI},
		{name: "bad format", cpf: "123", wantErr: identity.ErrInvalidFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "tok", r.URL.Query().Get("token"))
				assert.Len(t, r.URL.Query().Get("cpf"), 11)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c, err := New(Config{BaseURL: srv.URL, Token: "tok"}, nil)
			require.NoError(t, err)
			got, err := c.Lookup(context.Background(), tt.cpf)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLookupConnectionError(t *testing.T) {
	c, err := New(Config{BaseURL: "http://127.0.0.1:1", Token: "tok"}, nil)
	require.NoError(t, err)
	_, err = c.Lookup(context.Background(), "52998224725")
	assert.ErrorIs(t, err, identity.ErrConnection)
}

package magma

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/Zhima-Mochi/storefront-bot/internal/domain/identity"
	"github.com/Zhima-Mochi/storefront-bot/internal/observability"
)

const (
	DefaultBaseURL = "https://magmadatahub.com/api.php"
	peer           = "magma"
)

type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Client queries the Magma data hub for CPF profiles.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	tel     observability.Observability
}

func New(cfg Config, tel observability.Observability) (*Client, error) {
	if cfg.Token == "" {
		return nil, errors.New("magma: token is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
		http:    &http.Client{Timeout: cfg.Timeout},
		tel:     tel,
	}, nil
}

type profileResponse struct {
	CPF        string `json:"cpf"`
	Name       string `json:"nome"`
	BirthDate  string `json:"nascimento"`
	MotherName string `json:"nome_mae"`
	Sex        string `json:"sexo"`
}

// Lookup maps provider replies onto the identity error kinds: 401/403 is
// ErrInvalidToken, other non-2xx is ErrAPI, transport failure is
// ErrConnection and a body without a cpf is ErrNotFound.
func (c *Client) Lookup(ctx context.Context, cpf string) (identity.Profile, error) {
	clean, err := identity.NormalizeCPF(cpf)
	if err != nil {
		return identity.Profile{}, err
	}

	var out identity.Profile
	err = observability.External(ctx, c.tel, peer, "cpf", func(ctx context.Context) error {
		q := url.Values{"token": {c.token}, "cpf": {clean}}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
		if err != nil {
			return fmt.Errorf("%w: %w", identity.ErrConnection, err)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %w", identity.ErrConnection, err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
			return fmt.Errorf("%w: status %d", identity.ErrInvalidToken, resp.StatusCode)
		case resp.StatusCode >= 300:
			return fmt.Errorf("%w: status %d", identity.ErrAPI, resp.StatusCode)
		}

		raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return fmt.Errorf("%w: %w", identity.ErrConnection, err)
		}
		var body profileResponse
		if err := json.Unmarshal(raw, &body); err != nil || body.CPF == "" {
			return identity.ErrNotFound
		}
		sex := body.Sex
		if sex == "" {
			sex = "Não informado"
		}
		out = identity.Profile{
			CPF:        body.CPF,
			Name:       identity.TitleCase(body.Name),
			BirthDate:  body.BirthDate,
			MotherName: identity.TitleCase(body.MotherName),
			Sex:        sex,
		}
		return nil
	})
	return out, err
}

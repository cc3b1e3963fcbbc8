package zeroone

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Zhima-Mochi/storefront-bot/internal/domain/payment"
	"github.com/Zhima-Mochi/storefront-bot/internal/observability"
	"github.com/Zhima-Mochi/storefront-bot/internal/observability/logctx"
)

const (
	DefaultBaseURL = "https://pay.zeroonepay.com.br/api/v1"
	peer           = "zeroone"
)

// Customer fields the provider requires on every purchase. The bot sells to
// anonymous chat users, so fixed placeholder values are sent.
type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	CPF   string `json:"cpf"`
	Phone string `json:"phone"`
}

var defaultCustomer = Customer{
	Name:  "Usuário Discord",
	Email: "discorduser@legacy.bot",
	CPF:   "12345678909",
	Phone: "16999999999",
}

type Config struct {
	BaseURL   string
	SecretKey string
	Timeout   time.Duration
}

// Client talks to the ZeroOne PIX API.
type Client struct {
	baseURL string
	secret  string
	http    *http.Client
	log     observability.Logger
	tel     observability.Observability
}

func New(cfg Config, tel observability.Observability) (*Client, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("zeroone: secret key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if tel == nil {
		tel = observability.Nop()
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		secret:  cfg.SecretKey,
		http:    &http.Client{Timeout: cfg.Timeout},
		log:     tel.Logger().With(observability.F("component", "zeroone")),
		tel:     tel,
	}, nil
}

type purchaseItem struct {
	UnitPrice int64  `json:"unitPrice"`
	Title     string `json:"title"`
	Quantity  int    `json:"quantity"`
	Tangible  bool   `json:"tangible"`
}

type purchaseRequest struct {
	Customer
	PaymentMethod string         `json:"paymentMethod"`
	Amount        int64          `json:"amount"`
	Traceable     bool           `json:"traceable"`
	Items         []purchaseItem `json:"items"`
}

type purchaseResponse struct {
	ID        string `json:"id"`
	PixCode   string `json:"pixCode"`
	PixQrCode string `json:"pixQrCode"`
	Status    string `json:"status"`
	ExpiresAt string `json:"expiresAt"`
	Message   string `json:"message"`
}

type transaction struct {
	ID        string `json:"id"`
	Amount    int64  `json:"amount"`
	Status    string `json:"status"`
	Method    string `json:"method"`
	CreatedAt string `json:"createdAt"`
	Items     []struct {
		Title string `json:"title"`
	} `json:"items"`
}

func (c *Client) CreateCharge(ctx context.Context, amountCents int64, description string) (payment.Charge, error) {
	if amountCents <= 0 {
		return payment.Charge{}, fmt.Errorf("%w: amount must be positive", payment.ErrGateway)
	}
	if description == "" {
		description = "Produto via Discord"
	}
	body, err := json.Marshal(purchaseRequest{
		Customer:      defaultCustomer,
		PaymentMethod: "PIX",
		Amount:        amountCents,
		Traceable:     true,
		Items:         []purchaseItem{{UnitPrice: amountCents, Title: description, Quantity: 1}},
	})
	if err != nil {
		return payment.Charge{}, fmt.Errorf("%w: encode: %w", payment.ErrGateway, err)
	}

	var out purchaseResponse
	status, err := c.do(ctx, http.MethodPost, "/transaction.purchase", nil, body, &out)
	if err != nil {
		return payment.Charge{}, fmt.Errorf("%w: %w", payment.ErrGateway, err)
	}
	if status >= 300 {
		msg := out.Message
		if msg == "" {
			msg = "Input validation failed"
		}
		return payment.Charge{}, fmt.Errorf("%w: status %d: %s", payment.ErrGateway, status, msg)
	}
	if out.ID == "" || out.PixCode == "" {
		return payment.Charge{}, fmt.Errorf("%w: response without id or pix code", payment.ErrGateway)
	}

	ch := payment.Charge{
		ID:         out.ID,
		PixPayload: out.PixCode,
		Status:     payment.Status(strings.ToUpper(out.Status)),
	}
	if ch.Status == "" {
		ch.Status = payment.StatusPending
	}
	if t, err := time.Parse(time.RFC3339, out.ExpiresAt); err == nil {
		ch.ExpiresAt = t
	}
	if img, ok := decodeDataURI(out.PixQrCode); ok {
		ch.QRImage = img
	} else {
		ch.QRImageURL = out.PixQrCode
	}
	return ch, nil
}

// Status never fails: transport errors, non-2xx replies and undecodable
// bodies all come back as StatusUnknown.
func (c *Client) Status(ctx context.Context, id string) payment.Status {
	var out transaction
	status, err := c.do(ctx, http.MethodGet, "/transaction.getPayment", url.Values{"id": {id}}, nil, &out)
	if err != nil || status >= 300 {
		logctx.FromOr(ctx, c.log).Debug("payment_status_unavailable",
			observability.F("payment_id", id),
			observability.F("http_status", status),
			observability.Err(err),
		)
		return payment.StatusUnknown
	}
	if out.Status == "" {
		return payment.StatusUnknown
	}
	return payment.Status(strings.ToUpper(out.Status))
}

func (c *Client) ListApproved(ctx context.Context) ([]payment.Sale, error) {
	var list []transaction
	status, err := c.do(ctx, http.MethodGet, "/transaction.getPayment", url.Values{"status": {string(payment.StatusApproved)}}, nil, &list)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", payment.ErrGateway, err)
	}
	if status >= 300 {
		return nil, fmt.Errorf("%w: list status %d", payment.ErrGateway, status)
	}
	out := make([]payment.Sale, 0, len(list))
	for _, t := range list {
		s := payment.Sale{
			ID:          t.ID,
			AmountCents: t.Amount,
			Product:     "API",
			Method:      t.Method,
			Status:      payment.Status(strings.ToUpper(t.Status)),
		}
		if len(t.Items) > 0 && t.Items[0].Title != "" {
			s.Product = t.Items[0].Title
		}
		if ts, err := time.Parse(time.RFC3339, t.CreatedAt); err == nil {
			s.CreatedAt = ts.UTC()
		}
		out = append(out, s)
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body []byte, dst any) (int, error) {
	endpoint := strings.TrimPrefix(path, "/")
	var status int
	err := observability.External(ctx, c.tel, peer, endpoint, func(ctx context.Context) error {
		u := c.baseURL + path
		if len(query) > 0 {
			u += "?" + query.Encode()
		}
		var rd io.Reader
		if body != nil {
			rd = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, u, rd)
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", c.secret)

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		status = resp.StatusCode

		raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return err
		}
		if len(bytes.TrimSpace(raw)) == 0 {
			return nil
		}
		if err := json.Unmarshal(raw, dst); err != nil && status < 300 {
			return fmt.Errorf("decode %s: %w", endpoint, err)
		}
		return nil
	})
	return status, err
}

func decodeDataURI(s string) ([]byte, bool) {
	const marker = ";base64,"
	if !strings.HasPrefix(s, "data:") {
		return nil, false
	}
	i := strings.Index(s, marker)
	if i < 0 {
		return nil, false
	}
	b, err := base64.StdEncoding.DecodeString(s[i+len(marker):])
	if err != nil {
		return nil, false
	}
	return b, true
}

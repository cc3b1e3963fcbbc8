package chatbridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Zhima-Mochi/storefront-bot/internal/domain/messaging"
	"github.com/Zhima-Mochi/storefront-bot/internal/observability"
)

const peer = "chatbridge"

type Config struct {
	BaseURL string
	Token   string
	GuildID string
	// SurfaceParent is the category new private surfaces are created under.
	SurfaceParent string
	Timeout       time.Duration
}

// Client is the REST side of the chat bridge sidecar, which owns the actual
// platform session.
type Client struct {
	cfg  Config
	http *http.Client
	tel  observability.Observability
}

func New(cfg Config, tel observability.Observability) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("chatbridge: base url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}, tel: tel}, nil
}

func (c *Client) SendDirect(ctx context.Context, userID string, m messaging.Message) error {
	return c.call(ctx, "dm", http.MethodPost, "/users/"+url.PathEscape(userID)+"/messages", m, nil)
}

func (c *Client) Post(ctx context.Context, channelID string, m messaging.Message) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	err := c.call(ctx, "post", http.MethodPost, "/channels/"+url.PathEscape(channelID)+"/messages", m, &out)
	return out.ID, err
}

func (c *Client) Edit(ctx context.Context, channelID, messageID string, m messaging.Message) error {
	return c.call(ctx, "edit", http.MethodPatch,
		"/channels/"+url.PathEscape(channelID)+"/messages/"+url.PathEscape(messageID), m, nil)
}

func (c *Client) OpenPrivateSurface(ctx context.Context, name string, memberIDs []string) (string, error) {
	req := struct {
		GuildID string   `json:"guild_id"`
		Name    string   `json:"name"`
		Parent  string   `json:"parent_id,omitempty"`
		Members []string `json:"member_ids"`
	}{GuildID: c.cfg.GuildID, Name: name, Parent: c.cfg.SurfaceParent, Members: memberIDs}
	var out struct {
		ID string `json:"id"`
	}
	err := c.call(ctx, "open_surface", http.MethodPost, "/surfaces", req, &out)
	return out.ID, err
}

func (c *Client) CloseSurface(ctx context.Context, channelID string) error {
	err := c.call(ctx, "close_surface", http.MethodDelete, "/surfaces/"+url.PathEscape(channelID), nil, nil)
	if errors.Is(err, messaging.ErrSurfaceGone) {
		return nil
	}
	return err
}

func (c *Client) HasRole(ctx context.Context, guildID, userID, roleID string) (bool, error) {
	if guildID == "" {
		guildID = c.cfg.GuildID
	}
	var out struct {
		Roles []string `json:"roles"`
	}
	if err := c.call(ctx, "member_roles", http.MethodGet,
		"/guilds/"+url.PathEscape(guildID)+"/members/"+url.PathEscape(userID), nil, &out); err != nil {
		return false, err
	}
	for _, r := range out.Roles {
		if r == roleID {
			return true, nil
		}
	}
	return false, nil
}

func (c *Client) Reply(ctx context.Context, interactionID string, m messaging.Message) error {
	return c.call(ctx, "reply", http.MethodPost, "/interactions/"+url.PathEscape(interactionID)+"/reply", m, nil)
}

func (c *Client) call(ctx context.Context, endpoint, method, path string, body, dst any) error {
	return observability.External(ctx, c.tel, peer, endpoint, func(ctx context.Context) error {
		var rd io.Reader
		if body != nil {
			raw, err := json.Marshal(body)
			if err != nil {
				return fmt.Errorf("chatbridge: encode: %w", err)
			}
			rd = bytes.NewReader(raw)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, rd)
		if err != nil {
			return fmt.Errorf("%w: %w", messaging.ErrTransport, err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.cfg.Token != "" {
			req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %w", messaging.ErrTransport, err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusForbidden && endpoint == "dm":
			return messaging.ErrDirectClosed
		case resp.StatusCode == http.StatusNotFound:
			return messaging.ErrSurfaceGone
		case resp.StatusCode >= 300:
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return fmt.Errorf("%w: %s %s: status %d: %s", messaging.ErrTransport, method, path, resp.StatusCode, bytes.TrimSpace(msg))
		}
		if dst == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
			return fmt.Errorf("%w: decode: %w", messaging.ErrTransport, err)
		}
		return nil
	})
}

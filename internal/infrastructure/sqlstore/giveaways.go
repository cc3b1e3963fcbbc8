package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Zhima-Mochi/storefront-bot/internal/domain/giveaway"
)

var giveawayColumns = []string{
	"message_id", "channel_id", "guild_id", "prize", "description", "ends_at_ms", "winner_count",
	"color", "thumbnail", "footer", "required_role_id", "author_id", "forced_winner_id", "entrants", "status",
}

// GiveawayRepository persists giveaways, one row per announcement message.
type GiveawayRepository struct {
	db *DB
}

func NewGiveawayRepository(db *DB) *GiveawayRepository {
	return &GiveawayRepository{db: db}
}

func (r *GiveawayRepository) Save(ctx context.Context, g *giveaway.Giveaway) error {
	entrants, err := encodeEntrants(g.Entrants)
	if err != nil {
		return err
	}
	q := r.db.upsert("giveaways", "message_id", giveawayColumns, giveawayColumns[1:])
	_, err = r.db.ExecContext(ctx, q,
		g.MessageID, g.ChannelID, g.GuildID, g.Prize, g.Description, g.EndsAt.UnixMilli(), g.WinnerCount,
		g.Color, g.Thumbnail, g.Footer, g.RequiredRoleID, g.AuthorID, g.ForcedWinnerID, entrants, string(g.Status),
	)
	if err != nil {
		return fmt.Errorf("sqlstore: save giveaway %s: %w", g.MessageID, err)
	}
	return nil
}

func (r *GiveawayRepository) UpdateEntrants(ctx context.Context, messageID string, entrants []string) error {
	raw, err := encodeEntrants(entrants)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `UPDATE giveaways SET entrants = ? WHERE message_id = ?`, raw, messageID)
	if err != nil {
		return fmt.Errorf("sqlstore: update entrants %s: %w", messageID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		if _, err := r.Get(ctx, messageID); err != nil {
			return err
		}
	}
	return nil
}

func (r *GiveawayRepository) Finalize(ctx context.Context, messageID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE giveaways SET status = ? WHERE message_id = ? AND status = ?`,
		string(giveaway.StatusFinalized), messageID, string(giveaway.StatusActive))
	if err != nil {
		return false, fmt.Errorf("sqlstore: finalize giveaway %s: %w", messageID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		if _, err := r.Get(ctx, messageID); err != nil {
			return false, err
		}
	}
	return n == 1, nil
}

func (r *GiveawayRepository) Get(ctx context.Context, messageID string) (*giveaway.Giveaway, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+columnList(giveawayColumns)+` FROM giveaways WHERE message_id = ?`, messageID)
	g, err := scanGiveaway(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, giveaway.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlstore: get giveaway %s: %w", messageID, err)
	}
	return g, nil
}

func (r *GiveawayRepository) ListActive(ctx context.Context) ([]*giveaway.Giveaway, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+columnList(giveawayColumns)+` FROM giveaways WHERE status = ? ORDER BY ends_at_ms`,
		string(giveaway.StatusActive))
	if err != nil {
		return nil, fmt.Errorf("sqlstore: list giveaways: %w", err)
	}
	defer rows.Close()

	var out []*giveaway.Giveaway
	for rows.Next() {
		g, err := scanGiveaway(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlstore: scan giveaway: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanGiveaway(s scanner) (*giveaway.Giveaway, error) {
	var (
		g        giveaway.Giveaway
		endsAt   int64
		entrants string
		status   string
	)
	err := s.Scan(&g.MessageID, &g.ChannelID, &g.GuildID, &g.Prize, &g.Description, &endsAt, &g.WinnerCount,
		&g.Color, &g.Thumbnail, &g.Footer, &g.RequiredRoleID, &g.AuthorID, &g.ForcedWinnerID, &entrants, &status)
	if err != nil {
		return nil, err
	}
	g.EndsAt = time.UnixMilli(endsAt).UTC()
	g.Status = giveaway.Status(status)
	if err := json.Unmarshal([]byte(entrants), &g.Entrants); err != nil {
		return nil, fmt.Errorf("entrants: %w", err)
	}
	if g.Entrants == nil {
		g.Entrants = []string{}
	}
	return &g, nil
}

func encodeEntrants(ids []string) (string, error) {
	if ids == nil {
		ids = []string{}
	}
	b, err := json.Marshal(ids)
	if err != nil {
		return "", fmt.Errorf("sqlstore: encode entrants: %w", err)
	}
	return string(b), nil
}

func columnList(cols []string) string { return strings.Join(cols, ", ") }

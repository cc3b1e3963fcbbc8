package giveaway

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"
)

var (
	ErrNotFound        = errors.New("giveaway: not found")
	ErrNotActive       = errors.New("giveaway: not active")
	ErrInvalidDuration = errors.New("giveaway: duration must be greater than zero")
	ErrMissingChannel  = errors.New("giveaway: target channel is required")
	ErrRoleRequired    = errors.New("giveaway: entrant lacks the required role")
)

type Status string

const (
	StatusActive    Status = "ativo"
	StatusFinalized Status = "finalizado"
)

const (
	DefaultDescription = "Clique no botão 🎉 para participar!"
	DefaultDuration    = "10m"
	DefaultWinners     = 1
	DefaultColor       = "#8a00ff"
	DefaultPrize       = "Prêmio não definido"
)

// Draft is a giveaway being configured. It is never persisted.
type Draft struct {
	ChannelID      string
	GuildID        string
	Prize          string
	Description    string
	Duration       string
	WinnerCount    int
	Color          string
	Thumbnail      string
	Footer         string
	RequiredRoleID string
	AuthorID       string
	ForcedWinnerID string
}

// NewDraft seeds a draft for a channel with the default countdown.
func NewDraft(channelID, authorID string) Draft {
	return Draft{ChannelID: channelID, AuthorID: authorID, Duration: DefaultDuration}.WithDefaults()
}

// WithDefaults fills unset presentation fields. Duration is left as given:
// an empty countdown is a configuration error, not a request for the default.
func (d Draft) WithDefaults() Draft {
	if strings.TrimSpace(d.Prize) == "" {
		d.Prize = DefaultPrize
	}
	if strings.TrimSpace(d.Description) == "" {
		d.Description = DefaultDescription
	}
	if d.WinnerCount <= 0 {
		d.WinnerCount = DefaultWinners
	}
	if d.Color == "" {
		d.Color = DefaultColor
	}
	return d
}

// Giveaway is identified by its announcement message.
type Giveaway struct {
	MessageID      string    `json:"message_id"`
	ChannelID      string    `json:"channel_id"`
	GuildID        string    `json:"guild_id"`
	Prize          string    `json:"prize"`
	Description    string    `json:"description"`
	EndsAt         time.Time `json:"ends_at"`
	WinnerCount    int       `json:"winner_count"`
	Color          string    `json:"color"`
	Thumbnail      string    `json:"thumbnail,omitempty"`
	Footer         string    `json:"footer,omitempty"`
	RequiredRoleID string    `json:"required_role_id,omitempty"`
	AuthorID       string    `json:"author_id"`
	ForcedWinnerID string    `json:"forced_winner_id,omitempty"`
	Entrants       []string  `json:"entrants"`
	Status         Status    `json:"status"`
}

// Activate turns a draft into an active giveaway ending at now+d.
func Activate(messageID string, d Draft, now time.Time, dur time.Duration) (*Giveaway, error) {
	if dur <= 0 {
		return nil, ErrInvalidDuration
	}
	if d.ChannelID == "" {
		return nil, ErrMissingChannel
	}
	return &Giveaway{
		MessageID:      messageID,
		ChannelID:      d.ChannelID,
		GuildID:        d.GuildID,
		Prize:          d.Prize,
		Description:    d.Description,
		EndsAt:         now.Add(dur).UTC(),
		WinnerCount:    d.WinnerCount,
		Color:          d.Color,
		Thumbnail:      d.Thumbnail,
		Footer:         d.Footer,
		RequiredRoleID: d.RequiredRoleID,
		AuthorID:       d.AuthorID,
		ForcedWinnerID: d.ForcedWinnerID,
		Entrants:       []string{},
		Status:         StatusActive,
	}, nil
}

// Toggle flips membership of userID and reports whether it is now entered.
func (g *Giveaway) Toggle(userID string) (bool, error) {
	if g.Status != StatusActive {
		return false, ErrNotActive
	}
	if i := slices.Index(g.Entrants, userID); i >= 0 {
		g.Entrants = slices.Delete(g.Entrants, i, i+1)
		return false, nil
	}
	g.Entrants = append(g.Entrants, userID)
	return true, nil
}

// Remaining is the time left before the finalize timer should fire.
func (g *Giveaway) Remaining(now time.Time) time.Duration {
	return g.EndsAt.Sub(now)
}

// Draw picks the winners. A forced winner wins outright unless this is a
// reroll. Otherwise up to WinnerCount entrants are drawn without
// replacement.
func (g *Giveaway) Draw(r *rand.Rand, reroll bool) []string {
	if g.ForcedWinnerID != "" && !reroll {
		return []string{g.ForcedWinnerID}
	}
	return DrawWinners(r, g.Entrants, g.WinnerCount)
}

// DrawWinners draws n distinct entrants uniformly at random.
func DrawWinners(r *rand.Rand, entrants []string, n int) []string {
	pool := slices.Compact(slices.Sorted(slices.Values(entrants)))
	r.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	if n > len(pool) {
		n = len(pool)
	}
	if n < 0 {
		n = 0
	}
	return pool[:n]
}

var durationToken = regexp.MustCompile(`(?i)(\d+)\s*(d|h|m|s)`)

// ParseDuration sums "<int><unit>" tokens (d, h, m, s). Anything that does
// not match contributes nothing, so garbage yields zero. A total that does
// not fit in a time.Duration also yields zero.
func ParseDuration(s string) time.Duration {
	var total time.Duration
	for _, m := range durationToken.FindAllStringSubmatch(s, -1) {
		n, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			continue
		}
		var unit time.Duration
		switch strings.ToLower(m[2]) {
		case "d":
			unit = 24 * time.Hour
		case "h":
			unit = time.Hour
		case "m":
			unit = time.Minute
		case "s":
			unit = time.Second
		}
		if n > int64(math.MaxInt64/unit) {
			return 0
		}
		add := time.Duration(n) * unit
		if total > math.MaxInt64-add {
			return 0
		}
		total += add
	}
	return total
}

// FormatWinners renders mentions for the announcement.
func FormatWinners(ids []string) string {
	if len(ids) == 0 {
		return "Ninguém participou do sorteio."
	}
	mentions := make([]string, len(ids))
	for i, id := range ids {
		mentions[i] = fmt.Sprintf("<@%s>", id)
	}
	return strings.Join(mentions, ", ")
}

package giveaway

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{in: "10m", want: 10 * time.Minute},
		{in: "1h30m", want: 90 * time.Minute},
		{in: "2d", want: 48 * time.Hour},
		{in: "1H 5s", want: time.Hour + 5*time.Second},
		{in: "abc", want: 0},
		{in: "", want: 0},
		{in: "15", want: 0},
		{in: "999999999999d", want: 0},
		{in: "9223372036854775807s", want: 0},
		{in: "106751d 106751d", want: 0},
		{in: "99999999999999999999d", want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseDuration(tt.in))
		})
	}
}

func TestDraftDefaults(t *testing.T) {
	d := NewDraft("c1", "u1")

	assert.Equal(t, DefaultDescription, d.Description)
	assert.Equal(t, "10m", d.Duration)
	assert.Equal(t, "u1", d.AuthorID)
	assert.Equal(t, 1, d.WinnerCount)
	assert.Equal(t, "#8a00ff", d.Color)
	assert.Equal(t, DefaultPrize, d.Prize)

	assert.Empty(t, Draft{ChannelID: "c1"}.WithDefaults().Duration, "an unset countdown stays unset")

	kept := Draft{Prize: "Nitro", WinnerCount: 3, Color: "#fff"}.WithDefaults()
	assert.Equal(t, "Nitro", kept.Prize)
	assert.Equal(t, 3, kept.WinnerCount)
	assert.Equal(t, "#fff", kept.Color)
}

func TestActivate(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	_, err := Activate("m1", Draft{ChannelID: "c1"}, now, 0)
	assert.ErrorIs(t, err, ErrInvalidDuration)
	_, err = Activate("m1", Draft{}, now, time.Minute)
	assert.ErrorIs(t, err, ErrMissingChannel)

	g, err := Activate("m1", Draft{ChannelID: "c1", WinnerCount: 2}, now, 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, g.Status)
	assert.Equal(t, now.Add(10*time.Minute), g.EndsAt)
	assert.Equal(t, 4*time.Minute, g.Remaining(now.Add(6*time.Minute)))
	assert.NotNil(t, g.Entrants)
}

func TestToggle(t *testing.T) {
	g := &Giveaway{Status: StatusActive}

	in, err := g.Toggle("u1")
	require.NoError(t, err)
	assert.True(t, in)
	in, _ = g.Toggle("u2")
	assert.True(t, in)
	in, _ = g.Toggle("u1")
	assert.False(t, in)
	assert.Equal(t, []string{"u2"}, g.Entrants)
	in, _ = g.Toggle("u1")
	assert.True(t, in, "re-entering is allowed")

	g.Status = StatusFinalized
	_, err = g.Toggle("u3")
	assert.ErrorIs(t, err, ErrNotActive)
}

func TestDraw(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	entrants := []string{"a", "b", "c", "d", "b"}

	tests := []struct {
		name string
		n    int
		want int
	}{
		{name: "fewer than entrants", n: 2, want: 2},
		{name: "more than entrants", n: 10, want: 4},
		{name: "zero", n: 0, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DrawWinners(r, entrants, tt.n)
			assert.Len(t, got, tt.want)
			seen := map[string]bool{}
			for _, w := range got {
				assert.False(t, seen[w], "winner %s drawn twice", w)
				seen[w] = true
				assert.Contains(t, entrants, w)
			}
		})
	}

	g := &Giveaway{Entrants: []string{"a", "b"}, WinnerCount: 1, ForcedWinnerID: "vip"}
	assert.Equal(t, []string{"vip"}, g.Draw(r, false))
	rerolled := g.Draw(r, true)
	require.Len(t, rerolled, 1)
	assert.NotEqual(t, "vip", rerolled[0])

	assert.Empty(t, (&Giveaway{WinnerCount: 1}).Draw(r, false))
}

func TestFormatWinners(t *testing.T) {
	assert.Equal(t, "Ninguém participou do sorteio.", FormatWinners(nil))
	assert.Equal(t, "<@a>, <@b>", FormatWinners([]string{"a", "b"}))
}

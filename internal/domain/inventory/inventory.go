package inventory

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	ErrCategoryNotFound = errors.New("inventory: category not found")
	ErrItemNotFound     = errors.New("inventory: item not found")
	ErrNoStock          = errors.New("inventory: no stock")
	ErrInvalidPrice     = errors.New("inventory: price must be a positive decimal")
	ErrCorruptStore     = errors.New("inventory: store is corrupt")
	ErrKindMismatch     = errors.New("inventory: item kind does not match category")
	ErrUnknownKind      = errors.New("inventory: unknown category kind")
)

// Kind tags what a category sells. It is decided once, when the category is
// created, and persisted alongside the items.
type Kind string

const (
	KindSteam    Kind = "steam"
	KindRoblox   Kind = "roblox"
	KindGiftcard Kind = "giftcard"
	KindCard     Kind = "card"
)

func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindSteam, KindRoblox, KindGiftcard, KindCard:
		return k, nil
	case "cartao":
		return KindCard, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// IsAccount reports whether items of this kind are login credentials.
func (k Kind) IsAccount() bool { return k == KindSteam || k == KindRoblox }

// ClassifyCategory derives a kind from a category name. Matching is
// case-insensitive; anything that is not a known platform is a card category.
func ClassifyCategory(name string) Kind {
	upper := strings.ToUpper(name)
	switch {
	case strings.Contains(upper, "STEAM"):
		return KindSteam
	case strings.Contains(upper, "ROBLOX"):
		return KindRoblox
	case strings.Contains(upper, "GIFTCARD"), strings.Contains(upper, "GIFT"):
		return KindGiftcard
	default:
		return KindCard
	}
}

// Money is a currency amount in cents.
type Money int64

// ParseMoney accepts "25.50" and "25,50". Zero, negative and malformed values
// are rejected with ErrInvalidPrice.
func ParseMoney(s string) (Money, error) {
	s = strings.Replace(strings.TrimSpace(s), ",", ".", 1)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPrice, s)
	}
	m := MoneyFromFloat(f)
	if m <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPrice, s)
	}
	return m, nil
}

func MoneyFromFloat(f float64) Money { return Money(math.Round(f * 100)) }

// Cents returns the amount in the smallest currency unit.
func (m Money) Cents() int64 { return int64(m) }

func (m Money) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign, v = "-", -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// BRL renders the amount the way buyers see it, e.g. "R$ 25,50".
func (m Money) BRL() string {
	return "R$ " + strings.Replace(m.String(), ".", ",", 1)
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Money) UnmarshalJSON(b []byte) error {
	f, err := strconv.ParseFloat(strings.Trim(string(b), `"`), 64)
	if err != nil {
		return fmt.Errorf("inventory: price %s: %w", b, err)
	}
	*m = MoneyFromFloat(f)
	return nil
}

package inventory

import (
	"fmt"
	"strings"
)

// SearchField selects which card attribute a search filters on.
type SearchField string

const (
	FieldBIN      SearchField = "bin"
	FieldBrand    SearchField = "bandeira"
	FieldBank     SearchField = "banco"
	FieldLevel    SearchField = "level"
	FieldCategory SearchField = "categoria"
)

func ParseSearchField(s string) (SearchField, error) {
	switch f := SearchField(strings.ToLower(strings.TrimSpace(s))); f {
	case FieldBIN, FieldBrand, FieldBank, FieldLevel, FieldCategory:
		return f, nil
	case "numero":
		return FieldBIN, nil
	default:
		return "", fmt.Errorf("inventory: unknown search field %q", s)
	}
}

// CardListing is a card as shown in search results.
type CardListing struct {
	Category string `json:"category"`
	Price    *Money `json:"price"`
	Masked   string `json:"number"`
	BIN      string `json:"bin"`
	Brand    string `json:"brand"`
	Bank     string `json:"bank"`
	Level    string `json:"level"`

	card Card
}

// Card returns the underlying card. It is not serialized.
func (l CardListing) Card() Card { return l.card }

// Cards flattens every card category of the catalog.
func (c Catalog) Cards() []CardListing {
	var out []CardListing
	for _, name := range c.Names() {
		cat := c[name]
		if cat.Kind != KindCard {
			continue
		}
		for _, card := range cat.Cards {
			out = append(out, CardListing{
				Category: name,
				Price:    cat.Price,
				Masked:   card.Masked(),
				BIN:      card.BIN(),
				Brand:    card.Brand,
				Bank:     card.Bank,
				Level:    card.Level,
				card:     card,
			})
		}
	}
	return out
}

// FilterCards keeps listings whose field matches value, case-insensitively.
// BIN matches as a prefix of the card number; every other field as a
// substring.
func FilterCards(listings []CardListing, field SearchField, value string) []CardListing {
	value = strings.ToLower(strings.TrimSpace(value))
	var out []CardListing
	for _, l := range listings {
		var candidate string
		switch field {
		case FieldBIN:
			if strings.HasPrefix(strings.ToLower(l.card.Number), value) {
				out = append(out, l)
			}
			continue
		case FieldBrand:
			candidate = l.Brand
		case FieldBank:
			candidate = l.Bank
		case FieldLevel:
			candidate = l.Level
		case FieldCategory:
			candidate = l.Category
		}
		if strings.Contains(strings.ToLower(candidate), value) {
			out = append(out, l)
		}
	}
	return out
}

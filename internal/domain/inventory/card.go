package inventory

import (
	"strings"
)

const NotAvailable = "N/D"

// Longest first so "SIGNATURE" wins over shorter overlapping keywords.
var cardLevels = []string{
	"SIGNATURE", "CORPORATE", "PLATINUM", "INFINITE", "BUSINESS", "STANDARD", "CLASSIC", "BLACK", "GOLD",
}

var cardBrands = []string{"VISA", "MASTERCARD", "ELO", "AMEX", "AMERICAN EXPRESS", "DISCOVER", "HIPERCARD"}

var knownBanks = []string{"NUBANK", "ITAU", "BRADESCO", "SANTANDER", "CAIXA", "BB", "BANCO DO BRASIL", "INTER"}

// Card is the structured form of a stored card line. The original line is
// kept so that export and persistence reproduce it byte for byte.
type Card struct {
	Number string
	Month  string
	Year   string
	CVV    string
	Brand  string
	Bank   string
	Level  string

	line string
}

// ParseCard parses "number|month|year|cvv|brand|bank|level". Only the first
// four positions are fixed; brand, bank and level are recovered by keyword
// scan over whatever follows.
func ParseCard(line string) Card {
	line = strings.TrimSpace(line)
	parts := strings.Split(line, "|")
	for i := range parts {
		parts[i] = strings.ToUpper(strings.TrimSpace(parts[i]))
	}
	at := func(i int) string {
		if i < len(parts) && parts[i] != "" {
			return parts[i]
		}
		return NotAvailable
	}

	c := Card{
		Number: at(0),
		Month:  at(1),
		Year:   at(2),
		CVV:    at(3),
		Brand:  NotAvailable,
		Bank:   NotAvailable,
		Level:  NotAvailable,
		line:   line,
	}

	var rest string
	if len(parts) > 4 {
		rest = strings.Join(parts[4:], " ")
	}
	info := rest

	for _, level := range cardLevels {
		if strings.Contains(info, level) {
			c.Level = level
			info = strings.TrimSpace(strings.Replace(info, level, "", 1))
			break
		}
	}
	for _, brand := range cardBrands {
		if strings.Contains(info, brand) {
			c.Brand = brand
			info = strings.TrimSpace(strings.Replace(info, brand, "", 1))
			break
		}
	}
	if len(info) > 1 {
		c.Bank = info
	}
	if c.Bank == NotAvailable {
		for _, bank := range knownBanks {
			if strings.Contains(rest, bank) {
				c.Bank = bank
				break
			}
		}
	}
	return c
}

// Line returns the persisted representation.
func (c Card) Line() string {
	if c.line != "" {
		return c.line
	}
	return c.Format()
}

// Format renders the normalized seven-field line.
func (c Card) Format() string {
	return strings.Join([]string{c.Number, c.Month, c.Year, c.CVV, c.Brand, c.Bank, c.Level}, "|")
}

// Matches reports whether id identifies this card: an exact leading prefix of
// the stored line, which in practice is the card number.
func (c Card) Matches(id string) bool {
	if id == "" {
		return false
	}
	return strings.HasPrefix(c.Line(), id) || strings.HasPrefix(c.Number, strings.ToUpper(id))
}

// BIN is the issuer prefix shown to admins.
func (c Card) BIN() string {
	if len(c.Number) < 6 {
		return c.Number
	}
	return c.Number[:6]
}

// Masked hides the middle digits, e.g. "1234 **** **** 5678".
func (c Card) Masked() string {
	if c.Number == "" || c.Number == NotAvailable {
		return NotAvailable
	}
	if len(c.Number) < 8 {
		return c.Number
	}
	return c.Number[:4] + " **** **** " + c.Number[len(c.Number)-4:]
}

// CategoryFromLevel picks the import bucket for a raw card line: the last
// field naming a known level, or "outras".
func CategoryFromLevel(line string) string {
	levels := map[string]struct{}{
		"black": {}, "platinum": {}, "classic": {}, "gold": {}, "standard": {}, "infinite": {}, "business": {},
	}
	parts := strings.Split(line, "|")
	for i := len(parts) - 1; i >= 0; i-- {
		p := strings.ToLower(strings.TrimSpace(parts[i]))
		if _, ok := levels[p]; ok {
			return p
		}
	}
	return CategoryOthers
}

const CategoryOthers = "outras"

package identity

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"unicode"
)

var (
	ErrInvalidFormat = errors.New("identity: cpf must have 11 digits")
	ErrInvalidToken  = errors.New("identity: lookup token rejected")
	ErrAPI           = errors.New("identity: lookup api error")
	ErrConnection    = errors.New("identity: lookup connection error")
	ErrNotFound      = errors.New("identity: cpf not found")
	ErrExhausted     = errors.New("identity: no match within attempt budget")
)

// Profile is the identity data attached to a delivered card.
type Profile struct {
	CPF        string `json:"cpf"`
	Name       string `json:"nome"`
	BirthDate  string `json:"nascimento"`
	MotherName string `json:"mae"`
	Sex        string `json:"sexo"`
}

// Lookup resolves a synthetic id to a profile.
type Lookup interface {
	Lookup(ctx context.Context, cpf string) (Profile, error)
}

// GenerateCPF returns eleven digits with valid mod-11 check digits.
func GenerateCPF(r *rand.Rand) string {
	digits := make([]int, 9, 11)
	for i := range digits {
		digits[i] = r.IntN(9)
	}
	digits = append(digits, checkDigit(digits))
	digits = append(digits, checkDigit(digits))

	var sb strings.Builder
	for _, d := range digits {
		sb.WriteByte(byte('0' + d))
	}
	return sb.String()
}

func checkDigit(ds []int) int {
	sum := 0
	for i, d := range ds {
		sum += d * (len(ds) + 1 - i)
	}
	if rest := sum % 11; rest >= 2 {
		return 11 - rest
	}
	return 0
}

// NormalizeCPF strips punctuation and validates length.
func NormalizeCPF(cpf string) (string, error) {
	var sb strings.Builder
	for _, r := range cpf {
		if unicode.IsDigit(r) {
			sb.WriteRune(r)
		}
	}
	if sb.Len() != 11 {
		return "", ErrInvalidFormat
	}
	return sb.String(), nil
}

// ValidCPF checks both check digits.
func ValidCPF(cpf string) bool {
	n, err := NormalizeCPF(cpf)
	if err != nil {
		return false
	}
	ds := make([]int, 11)
	for i, r := range n {
		ds[i] = int(r - '0')
	}
	return checkDigit(ds[:9]) == ds[9] && checkDigit(ds[:10]) == ds[10]
}

// TitleCase capitalizes each space separated word, lowercasing the rest.
func TitleCase(s string) string {
	words := strings.Split(strings.TrimSpace(s), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		runes := []rune(strings.ToLower(w))
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

// OrNA renders an empty value as "N/D".
func OrNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/D"
	}
	return s
}

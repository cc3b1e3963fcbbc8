package inventory

import (
	"strings"
	"unicode/utf8"
)

const (
	CategoryImportedAccounts = "CONTA-IMPORTADA"
	CategoryImportedSteam    = "STEAM-IMPORTADA"
	CategoryImportedGifts    = "GIFTCARD-IMPORTADO"
)

// ImportStats counts what a line import produced.
type ImportStats struct {
	Cards    int `json:"cards"`
	Accounts int `json:"accounts"`
	Gifts    int `json:"gifts"`
	Skipped  int `json:"skipped"`
}

// ClassifyLines buckets raw pasted lines into a catalog that can be merged
// into the store. Rules, in order:
//
//	login:secret            -> CONTA-IMPORTADA account
//	login:secret|link       -> STEAM-IMPORTADA account with link
//	6..49 chars, no "|"     -> GIFTCARD-IMPORTADO code
//	anything with "|"       -> card, bucketed by its level keyword or "outras"
//
// Every category created here starts without a price.
func ClassifyLines(text string) (Catalog, ImportStats) {
	out := Catalog{}
	var stats ImportStats

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		hasColon := strings.Contains(line, ":")
		hasPipe := strings.Contains(line, "|")
		n := utf8.RuneCountInString(line)

		switch {
		case hasColon && !hasPipe:
			login, secret, _ := strings.Cut(line, ":")
			login, secret = strings.TrimSpace(login), strings.TrimSpace(secret)
			if login == "" || secret == "" {
				stats.Skipped++
				continue
			}
			cat := out.Ensure(CategoryImportedAccounts, KindRoblox)
			cat.Accounts = append(cat.Accounts, Account{Login: login, Secret: secret})
			stats.Accounts++

		case hasColon && hasPipe:
			creds, link, _ := strings.Cut(line, "|")
			login, secret, _ := strings.Cut(creds, ":")
			login, link = strings.TrimSpace(login), strings.TrimSpace(link)
			if login == "" || link == "" {
				stats.Skipped++
				continue
			}
			cat := out.Ensure(CategoryImportedSteam, KindSteam)
			cat.Accounts = append(cat.Accounts, Account{Login: login, Secret: strings.TrimSpace(secret), Link: link})
			stats.Accounts++

		case n > 5 && n < 50 && !hasPipe:
			cat := out.Ensure(CategoryImportedGifts, KindGiftcard)
			cat.Codes = append(cat.Codes, line)
			stats.Gifts++

		case hasPipe:
			cat := out.Ensure(CategoryFromLevel(line), KindCard)
			cat.Cards = append(cat.Cards, ParseCard(line))
			stats.Cards++

		default:
			stats.Skipped++
		}
	}
	return out, stats
}

// ParseItems turns the lines of an admin add form into units of kind.
// Accounts are "login:secret" with an optional "|link"; codes and cards are
// one per line. Blank and malformed account lines are skipped.
func ParseItems(category string, kind Kind, text string) []Item {
	var items []Item
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		it := Item{Category: category, Kind: kind}
		switch {
		case kind.IsAccount():
			creds, link, _ := strings.Cut(line, "|")
			login, secret, ok := strings.Cut(creds, ":")
			if !ok || strings.TrimSpace(login) == "" {
				continue
			}
			it.Account = &Account{
				Login:  strings.TrimSpace(login),
				Secret: strings.TrimSpace(secret),
				Link:   strings.TrimSpace(link),
			}
		case kind == KindGiftcard:
			it.Code = line
		default:
			card := ParseCard(line)
			it.Card = &card
		}
		items = append(items, it)
	}
	return items
}

// CategoryName builds the conventional category key for an admin add.
// Cards are keyed by their lowercased level label.
func CategoryName(kind Kind, label string) string {
	label = strings.TrimSpace(label)
	switch kind {
	case KindSteam:
		return "STEAM-" + label
	case KindRoblox:
		return "ROBLOX-" + label
	case KindGiftcard:
		return "GIFTCARD-" + label
	default:
		return strings.ToLower(label)
	}
}

package inventory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Catalog maps category name to its stock.
type Catalog map[string]*Category

func (c Catalog) Clone() Catalog {
	out := make(Catalog, len(c))
	for name, cat := range c {
		out[name] = cat.Clone()
	}
	return out
}

// Names returns category names in stable order.
func (c Catalog) Names() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Ensure returns the named category, creating it with kind when absent.
func (c Catalog) Ensure(name string, kind Kind) *Category {
	if cat, ok := c[name]; ok {
		return cat
	}
	cat := NewCategory(name, kind)
	c[name] = cat
	return cat
}

// MergeResult reports what a merge changed.
type MergeResult struct {
	Created   []string       `json:"created"`
	Added     map[string]int `json:"added"`
	Conflicts []string       `json:"conflicts,omitempty"`
}

// Merge folds incoming into c. New categories are adopted as they are;
// existing ones get the incoming units appended and keep their price.
// A category whose incoming kind cannot live in the existing bucket is left
// untouched and reported as a conflict.
func (c Catalog) Merge(incoming Catalog) MergeResult {
	res := MergeResult{Added: map[string]int{}}
	for _, name := range incoming.Names() {
		in := incoming[name]
		existing, ok := c[name]
		if !ok {
			c[name] = in.Clone()
			if c[name].Name == "" {
				c[name].Name = name
			}
			res.Created = append(res.Created, name)
			res.Added[name] = in.Count()
			continue
		}
		if err := existing.Add(in.Items()...); err != nil {
			res.Conflicts = append(res.Conflicts, name)
			continue
		}
		res.Added[name] = in.Count()
	}
	return res
}

// Summary is the admin stock overview of one category.
type Summary struct {
	Name  string `json:"name"`
	Kind  Kind   `json:"kind"`
	Price *Money `json:"price"`
	Stock int    `json:"stock"`
}

func (c Catalog) Summaries() []Summary {
	out := make([]Summary, 0, len(c))
	for _, name := range c.Names() {
		cat := c[name]
		out = append(out, Summary{Name: name, Kind: cat.Kind, Price: cat.Price, Stock: cat.Count()})
	}
	return out
}

type categoryJSON struct {
	Kind     Kind       `json:"tipo,omitempty"`
	Price    *Money     `json:"preco"`
	Accounts *[]Account `json:"contas,omitempty"`
	Codes    *[]string  `json:"codigos,omitempty"`
	Cards    *[]string  `json:"cartoes,omitempty"`
}

// Encode renders the on-disk representation, two-space indented.
func Encode(c Catalog) ([]byte, error) {
	raw := make(map[string]categoryJSON, len(c))
	for name, cat := range c {
		entry := categoryJSON{Kind: cat.Kind, Price: cat.Price}
		switch {
		case cat.Kind.IsAccount():
			accounts := append([]Account{}, cat.Accounts...)
			entry.Accounts = &accounts
		case cat.Kind == KindGiftcard:
			codes := append([]string{}, cat.Codes...)
			entry.Codes = &codes
		default:
			lines := make([]string, 0, len(cat.Cards))
			for _, card := range cat.Cards {
				lines = append(lines, card.Line())
			}
			entry.Cards = &lines
		}
		raw[name] = entry
	}
	return json.MarshalIndent(raw, "", "  ")
}

// Decode parses the on-disk representation. Any parse failure is reported as
// ErrCorruptStore. Two legacy shapes are accepted: a bare array of card lines
// and entries without the "tipo" tag.
func Decode(data []byte) (Catalog, error) {
	out := Catalog{}
	if len(bytes.TrimSpace(data)) == 0 {
		return out, nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptStore, err)
	}
	for name, msg := range raw {
		cat, err := decodeCategory(name, msg)
		if err != nil {
			return nil, fmt.Errorf("%w: category %q: %w", ErrCorruptStore, name, err)
		}
		out[name] = cat
	}
	return out, nil
}

func decodeCategory(name string, msg json.RawMessage) (*Category, error) {
	trimmed := bytes.TrimSpace(msg)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var lines []string
		if err := json.Unmarshal(trimmed, &lines); err != nil {
			return nil, err
		}
		cat := NewCategory(name, KindCard)
		for _, l := range lines {
			cat.Cards = append(cat.Cards, ParseCard(l))
		}
		return cat, nil
	}

	var entry categoryJSON
	if err := json.Unmarshal(trimmed, &entry); err != nil {
		return nil, err
	}
	cat := &Category{Name: name, Kind: entry.Kind, Price: entry.Price}
	if cat.Kind == "" {
		cat.Kind = inferKind(name, entry)
	}
	if entry.Accounts != nil {
		cat.Accounts = *entry.Accounts
	}
	if entry.Codes != nil {
		cat.Codes = *entry.Codes
	}
	if entry.Cards != nil {
		for _, l := range *entry.Cards {
			cat.Cards = append(cat.Cards, ParseCard(l))
		}
	}
	return cat, nil
}

func inferKind(name string, entry categoryJSON) Kind {
	byName := ClassifyCategory(name)
	switch {
	case entry.Accounts != nil:
		if byName.IsAccount() {
			return byName
		}
		for _, a := range *entry.Accounts {
			if a.Link != "" {
				return KindSteam
			}
		}
		return KindRoblox
	case entry.Codes != nil:
		return KindGiftcard
	case entry.Cards != nil:
		return KindCard
	default:
		return byName
	}
}

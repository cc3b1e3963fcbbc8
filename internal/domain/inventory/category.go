package inventory

import "fmt"

// Account is a stored login credential.
type Account struct {
	Login  string `json:"login"`
	Secret string `json:"senha,omitempty"`
	Link   string `json:"email_link,omitempty"`
}

// Item is one sellable unit. Exactly one of Account, Code or Card is set,
// according to Kind.
type Item struct {
	Category string
	Kind     Kind
	Account  *Account
	Code     string
	Card     *Card
}

// ID is the identifier removal matches on: login, code value or card number.
func (i Item) ID() string {
	switch {
	case i.Account != nil:
		return i.Account.Login
	case i.Card != nil:
		return i.Card.Number
	default:
		return i.Code
	}
}

// Category holds the stock of one catalog entry. Only the list matching Kind
// is populated.
type Category struct {
	Name     string
	Kind     Kind
	Price    *Money
	Accounts []Account
	Codes    []string
	Cards    []Card
}

func NewCategory(name string, kind Kind) *Category {
	return &Category{Name: name, Kind: kind}
}

func (c *Category) Count() int {
	switch {
	case c.Kind.IsAccount():
		return len(c.Accounts)
	case c.Kind == KindGiftcard:
		return len(c.Codes)
	default:
		return len(c.Cards)
	}
}

// Sellable reports whether the category can be checked out right now.
func (c *Category) Sellable() error {
	if c.Count() == 0 {
		return fmt.Errorf("%w: %s", ErrNoStock, c.Name)
	}
	if c.Price == nil || *c.Price <= 0 {
		return fmt.Errorf("%w: %s has no price", ErrInvalidPrice, c.Name)
	}
	return nil
}

func (c *Category) item(i int) Item {
	it := Item{Category: c.Name, Kind: c.Kind}
	switch {
	case c.Kind.IsAccount():
		acc := c.Accounts[i]
		it.Account = &acc
	case c.Kind == KindGiftcard:
		it.Code = c.Codes[i]
	default:
		card := c.Cards[i]
		it.Card = &card
	}
	return it
}

// Items returns a detached copy of the stock.
func (c *Category) Items() []Item {
	out := make([]Item, 0, c.Count())
	for i := 0; i < c.Count(); i++ {
		out = append(out, c.item(i))
	}
	return out
}

// First returns the next unit that would be sold.
func (c *Category) First() (Item, bool) {
	if c.Count() == 0 {
		return Item{}, false
	}
	return c.item(0), true
}

// Alternative returns the first unit whose identifier differs from exclude.
func (c *Category) Alternative(exclude string) (Item, bool) {
	for i := 0; i < c.Count(); i++ {
		it := c.item(i)
		if it.ID() != exclude {
			return it, true
		}
	}
	return Item{}, false
}

func (c *Category) index(id string) int {
	switch {
	case c.Kind.IsAccount():
		for i, a := range c.Accounts {
			if a.Login == id {
				return i
			}
		}
	case c.Kind == KindGiftcard:
		for i, code := range c.Codes {
			if code == id {
				return i
			}
		}
	default:
		for i, card := range c.Cards {
			if card.Matches(id) {
				return i
			}
		}
	}
	return -1
}

// Remove deletes the first unit matching id and returns it.
func (c *Category) Remove(id string) (Item, bool) {
	i := c.index(id)
	if i < 0 {
		return Item{}, false
	}
	it := c.item(i)
	switch {
	case c.Kind.IsAccount():
		c.Accounts = append(c.Accounts[:i], c.Accounts[i+1:]...)
	case c.Kind == KindGiftcard:
		c.Codes = append(c.Codes[:i], c.Codes[i+1:]...)
	default:
		c.Cards = append(c.Cards[:i], c.Cards[i+1:]...)
	}
	return it, true
}

// Add appends units of the category's kind. Units of another kind are
// rejected as a whole so a partial add never happens.
func (c *Category) Add(items ...Item) error {
	for _, it := range items {
		if !sameBucket(c.Kind, it.Kind) {
			return fmt.Errorf("%w: %s is %s, got %s", ErrKindMismatch, c.Name, c.Kind, it.Kind)
		}
	}
	for _, it := range items {
		switch {
		case it.Account != nil:
			c.Accounts = append(c.Accounts, *it.Account)
		case it.Card != nil:
			c.Cards = append(c.Cards, *it.Card)
		default:
			c.Codes = append(c.Codes, it.Code)
		}
	}
	return nil
}

func sameBucket(a, b Kind) bool {
	if a.IsAccount() && b.IsAccount() {
		return true
	}
	return a == b
}

func (c *Category) Clone() *Category {
	if c == nil {
		return nil
	}
	out := &Category{Name: c.Name, Kind: c.Kind}
	if c.Price != nil {
		p := *c.Price
		out.Price = &p
	}
	out.Accounts = append([]Account(nil), c.Accounts...)
	out.Codes = append([]string(nil), c.Codes...)
	out.Cards = append([]Card(nil), c.Cards...)
	return out
}

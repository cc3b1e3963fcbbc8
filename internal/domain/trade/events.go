package trade

import "time"

type TicketOpenedEvent struct {
	ChannelID  string
	BuyerID    string
	BuyerTag   string
	Category   string
	OccurredAt time.Time
}

func (TicketOpenedEvent) EventName() string { return "trade.ticket_opened" }

// TicketResolvedEvent carries the substitution for approved tickets.
type TicketResolvedEvent struct {
	ChannelID    string
	BuyerID      string
	BuyerTag     string
	AdminID      string
	Category     string
	Status       Status
	OriginalCard string
	Replacement  string
	OccurredAt   time.Time
}

func (TicketResolvedEvent) EventName() string { return "trade.ticket_resolved" }

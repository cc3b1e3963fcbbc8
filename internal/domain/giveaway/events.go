package giveaway

import "time"

type FinishedEvent struct {
	MessageID  string
	ChannelID  string
	Prize      string
	Winners    []string
	Reroll     bool
	OccurredAt time.Time
}

func (FinishedEvent) EventName() string { return "giveaway.finished" }

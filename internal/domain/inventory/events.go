package inventory

import "time"

// RemovalMissedEvent is emitted when a removal finds nothing to remove. On the
// sale path this means the unit was sold twice.
type RemovalMissedEvent struct {
	Category   string
	Kind       Kind
	ItemID     string
	Reason     string
	OccurredAt time.Time
}

func (RemovalMissedEvent) EventName() string { return "inventory.removal_missed" }

func NewRemovalMissedEvent(category string, kind Kind, itemID, reason string) RemovalMissedEvent {
	return RemovalMissedEvent{
		Category:   category,
		Kind:       kind,
		ItemID:     itemID,
		Reason:     reason,
		OccurredAt: time.Now().UTC(),
	}
}

// CatalogChangedEvent is emitted after an administrative mutation.
type CatalogChangedEvent struct {
	ActorID    string
	Action     string
	Command    string
	OccurredAt time.Time
}

func (CatalogChangedEvent) EventName() string { return "inventory.catalog_changed" }

func NewCatalogChangedEvent(actorID, action, command string) CatalogChangedEvent {
	return CatalogChangedEvent{
		ActorID:    actorID,
		Action:     action,
		Command:    command,
		OccurredAt: time.Now().UTC(),
	}
}

// SearchPerformedEvent is emitted for every card search.
type SearchPerformedEvent struct {
	ActorID    string
	ActorTag   string
	Field      SearchField
	Term       string
	Results    int
	OccurredAt time.Time
}

func (SearchPerformedEvent) EventName() string { return "inventory.search_performed" }

package inventory

import dominv "github.com/Zhima-Mochi/storefront-bot/internal/domain/inventory"

type ImportJSONCommand struct {
	ActorID string `validate:"required"`
	Data    []byte `validate:"required"`
}

type ImportLinesCommand struct {
	ActorID string `validate:"required"`
	Text    string `validate:"required"`
}

type ImportLinesResult struct {
	Stats dominv.ImportStats `json:"stats"`
	Merge dominv.MergeResult `json:"merge"`
}

// AddItemsCommand adds units to the conventional category for Kind and
// Label, setting its price.
type AddItemsCommand struct {
	ActorID string `validate:"required"`
	Kind    string `validate:"required"`
	Label   string `validate:"required"`
	Price   string `validate:"required"`
	Lines   string `validate:"required"`
}

type AddItemsResult struct {
	Category string       `json:"category"`
	Added    int          `json:"added"`
	Stock    int          `json:"stock"`
	Price    dominv.Money `json:"price"`
}

type SetPriceCommand struct {
	ActorID  string `validate:"required"`
	Category string `validate:"required"`
	Price    string `validate:"required"`
}

type DeleteCategoryCommand struct {
	ActorID  string `validate:"required"`
	Category string `validate:"required"`
}

type ClearCommand struct {
	ActorID string `validate:"required"`
}

type SearchCommand struct {
	ActorID  string `validate:"required"`
	ActorTag string
	Field    string `validate:"required"`
	Value    string `validate:"required"`
}

// RemoveItemCommand removes one unit by identifier.
type RemoveItemCommand struct {
	Kind     dominv.Kind
	Category string `validate:"required"`
	ItemID   string `validate:"required"`
	Reason   string
}

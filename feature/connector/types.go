package connector

import (
	"fmt"

	"stocklink/core/utils"

	"github.com/shopspring/decimal"
)

// Action is one kind of inventory change applied against a marketplace.
type Action string

const (
	ActionAdd    Action = "ADD"
	ActionUpdate Action = "UPDATE"
	ActionRemove Action = "REMOVE"
	ActionSkip   Action = "SKIP"
)

// Key is the composite business identity of an inventory line, independent of
// any marketplace-assigned identifier.
type Key struct {
	ItemType  string
	ItemNo    string
	ColorID   int
	Condition string
}

// String renders the key for logs and error messages.
func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%d/%s", k.ItemType, k.ItemNo, k.ColorID, k.Condition)
}

// Item represents one remote marketplace inventory record. It is ephemeral:
// it exists only for the duration of a sync run's fetch/compare/apply cycle.
type Item struct {
	ExternalID   string          `json:"external_id"`
	ItemType     string          `json:"item_type"`
	ItemNo       string          `json:"item_no"`
	ColorID      int             `json:"color_id"`
	Condition    string          `json:"condition"`
	QtyAvailable int             `json:"qty_available"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Remarks      string          `json:"remarks,omitempty"`
}

// Key returns the composite key used to join items across marketplaces.
func (i Item) Key() Key {
	return Key{
		ItemType:  i.ItemType,
		ItemNo:    i.ItemNo,
		ColorID:   i.ColorID,
		Condition: i.Condition,
	}
}

// State returns the point-in-time serialized form stored on plan items.
func (i Item) State() map[string]any {
	var state map[string]any
	// Item marshals cleanly; Remarshal cannot fail here.
	_ = utils.Remarshal(i, &state)
	return state
}

// ItemFromState rebuilds an item from a serialized plan item state.
func ItemFromState(state map[string]any) (Item, error) {
	var item Item
	if err := utils.Remarshal(state, &item); err != nil {
		return Item{}, fmt.Errorf("invalid item state: %w", err)
	}
	return item, nil
}

package inventory

import (
	"time"

	"stocklink/feature/connector"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Item is the tenant's authoritative inventory record. Sync never hard-deletes
// it; a remote removal zeroes qty_available so history is preserved.
type Item struct {
	ID       uuid.UUID `gorm:"type:char(36);primaryKey" json:"id"`
	TenantID uuid.UUID `gorm:"type:char(36);not null;index:idx_inventory_key,priority:1" json:"tenant_id"`

	ItemType  string `gorm:"size:20;not null;index:idx_inventory_key,priority:2" json:"item_type"`
	ItemNo    string `gorm:"size:64;not null;index:idx_inventory_key,priority:3" json:"item_no"`
	ColorID   int    `gorm:"index:idx_inventory_key,priority:4" json:"color_id"`
	Condition string `gorm:"size:10;not null;index:idx_inventory_key,priority:5" json:"condition"`

	QtyAvailable int             `gorm:"not null;default:0" json:"qty_available"`
	QtyReserved  int             `gorm:"not null;default:0" json:"qty_reserved"`
	UnitPrice    decimal.Decimal `gorm:"type:decimal(12,4)" json:"unit_price"`
	Currency     string          `gorm:"size:3;not null;default:EUR" json:"currency"`
	Remarks      string          `gorm:"type:text" json:"remarks,omitempty"`

	Version   int       `gorm:"not null;default:1" json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName overrides the table name.
func (Item) TableName() string {
	return "inventory_items"
}

// BeforeCreate assigns an id when none is set.
func (i *Item) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// Key returns the item's composite business key.
func (i *Item) Key() connector.Key {
	return connector.Key{
		ItemType:  i.ItemType,
		ItemNo:    i.ItemNo,
		ColorID:   i.ColorID,
		Condition: i.Condition,
	}
}

// ExternalID maps a local inventory item to its identifier on one store.
type ExternalID struct {
	ID                  uuid.UUID  `gorm:"type:char(36);primaryKey" json:"id"`
	TenantID            uuid.UUID  `gorm:"type:char(36);not null;index" json:"tenant_id"`
	InventoryItemID     uuid.UUID  `gorm:"type:char(36);not null;uniqueIndex:uq_inventory_ext,priority:1" json:"inventory_item_id"`
	StoreID             uuid.UUID  `gorm:"type:char(36);not null;uniqueIndex:uq_inventory_ext,priority:2" json:"store_id"`
	ExternalInventoryID string     `gorm:"size:64" json:"external_inventory_id"`
	LastSyncedAt        *time.Time `json:"last_synced_at"`
}

// TableName overrides the table name.
func (ExternalID) TableName() string {
	return "inventory_external_ids"
}

// BeforeCreate assigns an id when none is set.
func (e *ExternalID) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

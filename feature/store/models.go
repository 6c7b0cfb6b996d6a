package store

import (
	"time"

	"stocklink/core/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Marketplace channels a store can be connected to.
const (
	ChannelBrickLink = "bricklink"
	ChannelBrickOwl  = "brickowl"
	ChannelBrikick   = "brikick"
	ChannelShopify   = "shopify"
	ChannelEbay      = "ebay"
	ChannelEtsy      = "etsy"
	ChannelLocal     = "local"
)

// KnownChannels lists the channels a store may be created with.
var KnownChannels = []string{
	ChannelBrickLink,
	ChannelBrickOwl,
	ChannelBrikick,
	ChannelShopify,
	ChannelEbay,
	ChannelEtsy,
	ChannelLocal,
}

// Store is a configured connection to one external marketplace for a tenant.
type Store struct {
	ID        uuid.UUID     `gorm:"type:char(36);primaryKey" json:"id"`
	TenantID  uuid.UUID     `gorm:"type:char(36);not null;index" json:"tenant_id"`
	Channel   string        `gorm:"size:30;not null" json:"channel"`
	Name      string        `gorm:"size:100;not null" json:"name"`
	IsEnabled bool          `gorm:"not null;default:true" json:"is_enabled"`
	IsPrimary bool          `gorm:"not null;default:false" json:"is_primary"`
	Settings  utils.JSONMap `gorm:"type:json" json:"settings"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// TableName overrides the table name.
func (Store) TableName() string {
	return "stores"
}

// BeforeCreate assigns an id when none is set.
func (s *Store) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// SyncState tracks per-store synchronization bookkeeping: the last successful
// inventory sync and the persisted rate limit budget per channel.
type SyncState struct {
	StoreID           uuid.UUID     `gorm:"type:char(36);primaryKey" json:"store_id"`
	LastInventorySync *time.Time    `json:"last_inventory_sync"`
	LastError         string        `gorm:"type:text" json:"last_error,omitempty"`
	RateLimitState    utils.JSONMap `gorm:"type:json" json:"rate_limit_state"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// TableName overrides the table name.
func (SyncState) TableName() string {
	return "store_sync_state"
}

package connector

import (
	"stocklink/feature/store"

	"gorm.io/gorm"
)

// ForStore resolves the inventory adapter for a store's channel.
// Real marketplace integrations slot in here per channel as they are built;
// every channel currently resolves to the mock adapter.
func ForStore(db *gorm.DB, st *store.Store) Adapter {
	return NewMockAdapter(db, st)
}

package connector

import (
	"context"
	"fmt"

	"stocklink/core/utils"
	"stocklink/feature/store"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// settingsKey is where the mock adapter keeps its inventory inside the
// store's settings document.
const settingsKey = "mock_inventory"

// MockAdapter is an inventory adapter backed by the store's own settings
// document. It stands in for real marketplace integrations in development and
// tests while exercising the full sync path, external id assignment included.
type MockAdapter struct {
	db    *gorm.DB
	store *store.Store
}

// NewMockAdapter creates a mock adapter bound to one store.
func NewMockAdapter(db *gorm.DB, st *store.Store) *MockAdapter {
	return &MockAdapter{db: db, store: st}
}

// FetchInventory returns the mock inventory, assigning generated external ids
// to records that lack one.
func (m *MockAdapter) FetchInventory(ctx context.Context) ([]Item, error) {
	items, err := m.readItems()
	if err != nil {
		return nil, err
	}
	for i := range items {
		if items[i].ExternalID == "" {
			items[i].ExternalID = "mock-" + uuid.NewString()
		}
	}
	return items, nil
}

// ApplyChange mutates the mock inventory. Matching prefers the external id
// and falls back to the composite key, mirroring how marketplace APIs accept
// either a lot id or the item identity.
func (m *MockAdapter) ApplyChange(ctx context.Context, action Action, item Item) (Item, error) {
	items, err := m.readItems()
	if err != nil {
		return Item{}, err
	}

	matchIdx := -1
	for idx, existing := range items {
		if existing.ExternalID != "" && existing.ExternalID == item.ExternalID {
			matchIdx = idx
			break
		}
	}
	if matchIdx < 0 {
		for idx, existing := range items {
			if existing.Key() == item.Key() {
				matchIdx = idx
				break
			}
		}
	}

	switch action {
	case ActionAdd:
		if item.ExternalID == "" {
			item.ExternalID = "mock-" + uuid.NewString()
		}
		items = append(items, item)
	case ActionUpdate:
		if matchIdx < 0 {
			items = append(items, item)
		} else {
			items[matchIdx] = item
		}
	case ActionRemove:
		if matchIdx >= 0 {
			items = append(items[:matchIdx], items[matchIdx+1:]...)
		}
	default:
		return Item{}, fmt.Errorf("unsupported action %q", action)
	}

	if err := m.writeItems(ctx, items); err != nil {
		return Item{}, err
	}
	return item, nil
}

// TestConnection always succeeds for the mock adapter.
func (m *MockAdapter) TestConnection(ctx context.Context) (bool, error) {
	return true, nil
}

func (m *MockAdapter) readItems() ([]Item, error) {
	raw, ok := m.store.Settings[settingsKey]
	if !ok || raw == nil {
		return nil, nil
	}
	var items []Item
	if err := utils.Remarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("invalid mock inventory for store %s: %w", m.store.ID, err)
	}
	return items, nil
}

func (m *MockAdapter) writeItems(ctx context.Context, items []Item) error {
	var raw []any
	if err := utils.Remarshal(items, &raw); err != nil {
		return err
	}
	if m.store.Settings == nil {
		m.store.Settings = utils.JSONMap{}
	}
	m.store.Settings[settingsKey] = raw
	if m.db == nil {
		return nil
	}
	if err := m.db.WithContext(ctx).Save(m.store).Error; err != nil {
		return fmt.Errorf("failed to persist mock inventory: %w", err)
	}
	return nil
}

package connector_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"stocklink/core/database"
	"stocklink/core/utils"
	"stocklink/feature/connector"
	"stocklink/feature/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupStore(t *testing.T, items []connector.Item) (*gorm.DB, *store.Store) {
	t.Helper()

	name := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := database.Connect(database.Config{Driver: "sqlite", Name: name})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&store.Store{}))

	st := &store.Store{TenantID: uuid.New(), Channel: store.ChannelLocal, Name: "dev", IsEnabled: true}
	if items != nil {
		var raw []any
		require.NoError(t, utils.Remarshal(items, &raw))
		st.Settings = utils.JSONMap{"mock_inventory": raw}
	}
	require.NoError(t, db.Create(st).Error)
	return db, st
}

func brick(no string, qty int) connector.Item {
	return connector.Item{
		ItemType:     "PART",
		ItemNo:       no,
		Condition:    "N",
		QtyAvailable: qty,
		UnitPrice:    decimal.RequireFromString("0.05"),
	}
}

func TestMockAdapterFetch(t *testing.T) {
	_, st := setupStore(t, []connector.Item{brick("3001", 10)})
	adapter := connector.NewMockAdapter(nil, st)

	items, err := adapter.FetchInventory(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "3001", items[0].ItemNo)
	// Records without an external id get one assigned on fetch.
	assert.NotEmpty(t, items[0].ExternalID)
}

func TestMockAdapterApplyChange(t *testing.T) {
	ctx := context.Background()
	db, st := setupStore(t, []connector.Item{brick("3001", 10)})
	adapter := connector.NewMockAdapter(db, st)

	t.Run("Add", func(t *testing.T) {
		applied, err := adapter.ApplyChange(ctx, connector.ActionAdd, brick("3002", 5))
		require.NoError(t, err)
		assert.NotEmpty(t, applied.ExternalID)

		items, err := adapter.FetchInventory(ctx)
		require.NoError(t, err)
		assert.Len(t, items, 2)
	})

	t.Run("UpdateByKey", func(t *testing.T) {
		updated := brick("3001", 42)
		_, err := adapter.ApplyChange(ctx, connector.ActionUpdate, updated)
		require.NoError(t, err)

		items, err := adapter.FetchInventory(ctx)
		require.NoError(t, err)
		for _, item := range items {
			if item.ItemNo == "3001" {
				assert.Equal(t, 42, item.QtyAvailable)
			}
		}
	})

	t.Run("Remove", func(t *testing.T) {
		_, err := adapter.ApplyChange(ctx, connector.ActionRemove, brick("3002", 0))
		require.NoError(t, err)

		items, err := adapter.FetchInventory(ctx)
		require.NoError(t, err)
		assert.Len(t, items, 1)
		assert.Equal(t, "3001", items[0].ItemNo)
	})

	t.Run("UnsupportedAction", func(t *testing.T) {
		_, err := adapter.ApplyChange(ctx, connector.ActionSkip, brick("3001", 1))
		assert.Error(t, err)
	})

	t.Run("ChangesPersist", func(t *testing.T) {
		var fresh store.Store
		require.NoError(t, db.First(&fresh, "id = ?", st.ID).Error)

		items, err := connector.NewMockAdapter(db, &fresh).FetchInventory(ctx)
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, 42, items[0].QtyAvailable)
	})
}

func TestRegistryReturnsAdapterForEveryChannel(t *testing.T) {
	_, st := setupStore(t, nil)

	for _, channel := range store.KnownChannels {
		st.Channel = channel
		adapter := connector.ForStore(nil, st)
		require.NotNil(t, adapter, channel)

		ok, err := adapter.TestConnection(context.Background())
		require.NoError(t, err)
		assert.True(t, ok)
	}
}

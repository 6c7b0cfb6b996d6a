package store

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"stocklink/core/database"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func trackerDB(t *testing.T) (*gorm.DB, *Store) {
	t.Helper()

	name := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := database.Connect(database.Config{Driver: "sqlite", Name: name})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&Store{}, &SyncState{}))

	st := &Store{TenantID: uuid.New(), Channel: ChannelBrickLink, Name: "shop", IsEnabled: true}
	require.NoError(t, db.Create(st).Error)
	return db, st
}

func TestDailyLimit(t *testing.T) {
	assert.Equal(t, 5000, DailyLimit(ChannelBrickLink))
	assert.Equal(t, 10000, DailyLimit(ChannelBrikick))
	assert.Equal(t, 20000, DailyLimit(ChannelShopify))
	assert.Equal(t, 100000, DailyLimit(ChannelLocal))
	assert.Equal(t, fallbackDailyLimit, DailyLimit("someday-amazon"))
}

func TestRateLimitTracker(t *testing.T) {
	db, st := trackerDB(t)
	ctx := context.Background()

	current := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tracker := NewRateLimitTracker(db, st)
	tracker.now = func() time.Time { return current }

	t.Run("FreshEntryGetsFullBudget", func(t *testing.T) {
		remaining, err := tracker.Remaining(ctx, ChannelBrickLink)
		require.NoError(t, err)
		assert.Equal(t, 5000, remaining)

		ok, err := tracker.CanRequest(ctx, ChannelBrickLink)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("RecordRequestDecrements", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			require.NoError(t, tracker.RecordRequest(ctx, ChannelBrickLink))
		}
		remaining, err := tracker.Remaining(ctx, ChannelBrickLink)
		require.NoError(t, err)
		assert.Equal(t, 4997, remaining)
	})

	t.Run("ExhaustedBudgetBlocks", func(t *testing.T) {
		entry, state, err := tracker.getEntry(ctx, ChannelBrickLink)
		require.NoError(t, err)
		entry.Remaining = 0
		require.NoError(t, tracker.persistEntry(ctx, state, ChannelBrickLink, entry))

		ok, err := tracker.CanRequest(ctx, ChannelBrickLink)
		require.NoError(t, err)
		assert.False(t, ok)

		// Recording at zero stays at zero.
		require.NoError(t, tracker.RecordRequest(ctx, ChannelBrickLink))
		remaining, err := tracker.Remaining(ctx, ChannelBrickLink)
		require.NoError(t, err)
		assert.Equal(t, 0, remaining)
	})

	t.Run("WindowResetRestoresBudget", func(t *testing.T) {
		current = current.Add(25 * time.Hour)

		remaining, err := tracker.Remaining(ctx, ChannelBrickLink)
		require.NoError(t, err)
		assert.Equal(t, 5000, remaining)
	})

	t.Run("ChannelsTrackedIndependently", func(t *testing.T) {
		require.NoError(t, tracker.RecordRequest(ctx, ChannelShopify))

		shopify, err := tracker.Remaining(ctx, ChannelShopify)
		require.NoError(t, err)
		assert.Equal(t, 19999, shopify)

		bricklink, err := tracker.Remaining(ctx, ChannelBrickLink)
		require.NoError(t, err)
		assert.Equal(t, 5000, bricklink)
	})

	t.Run("StatePersistsAcrossTrackers", func(t *testing.T) {
		fresh := NewRateLimitTracker(db, st)
		fresh.now = func() time.Time { return current }

		shopify, err := fresh.Remaining(ctx, ChannelShopify)
		require.NoError(t, err)
		assert.Equal(t, 19999, shopify)
	})
}

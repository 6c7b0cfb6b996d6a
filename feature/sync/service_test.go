package sync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"stocklink/core/database"
	"stocklink/core/utils"
	"stocklink/feature/audit"
	"stocklink/feature/connector"
	"stocklink/feature/inventory"
	"stocklink/feature/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()

	// A named shared-cache database keeps the schema visible across pooled
	// connections, unlike a plain :memory: DSN.
	name := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := database.Connect(database.Config{Driver: "sqlite", Name: name})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&store.Store{},
		&store.SyncState{},
		&inventory.Item{},
		&inventory.ExternalID{},
		&audit.Log{},
		&Run{},
		&PlanItem{},
	))
	return db
}

func seedStore(t *testing.T, db *gorm.DB, tenantID uuid.UUID, name string, items []connector.Item) *store.Store {
	t.Helper()

	var raw []any
	require.NoError(t, utils.Remarshal(items, &raw))

	st := &store.Store{
		TenantID:  tenantID,
		Channel:   store.ChannelBrickLink,
		Name:      name,
		IsEnabled: true,
		Settings:  utils.JSONMap{"mock_inventory": raw},
	}
	require.NoError(t, db.Create(st).Error)
	return st
}

func mockItem(no string, qty int, price string) connector.Item {
	return connector.Item{
		ItemType:     "PART",
		ItemNo:       no,
		Condition:    "N",
		QtyAvailable: qty,
		UnitPrice:    decimal.RequireFromString(price),
	}
}

func TestCreatePreviewValidation(t *testing.T) {
	db := testDB(t)
	svc := NewService(db, zap.NewNop(), audit.NewRecorder(db), nil)
	tenantID := uuid.New()
	actx := audit.SystemContext(tenantID)

	src := seedStore(t, db, tenantID, "source", nil)
	dst := seedStore(t, db, tenantID, "target", nil)

	t.Run("SameStore", func(t *testing.T) {
		_, err := svc.CreatePreview(context.Background(), actx, CreatePreviewRequest{
			SourceStoreID: src.ID,
			TargetStoreID: src.ID,
		})
		assert.ErrorIs(t, err, ErrSameStore)
	})

	t.Run("UnsupportedDirection", func(t *testing.T) {
		_, err := svc.CreatePreview(context.Background(), actx, CreatePreviewRequest{
			SourceStoreID: src.ID,
			TargetStoreID: dst.ID,
			Direction:     "TARGET_TO_SOURCE",
		})
		assert.ErrorIs(t, err, ErrUnsupportedDirection)
	})

	t.Run("UnknownStore", func(t *testing.T) {
		_, err := svc.CreatePreview(context.Background(), actx, CreatePreviewRequest{
			SourceStoreID: uuid.New(),
			TargetStoreID: dst.ID,
		})
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("OtherTenantStore", func(t *testing.T) {
		other := seedStore(t, db, uuid.New(), "foreign", nil)
		_, err := svc.CreatePreview(context.Background(), actx, CreatePreviewRequest{
			SourceStoreID: other.ID,
			TargetStoreID: dst.ID,
		})
		assert.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestSyncLifecycle(t *testing.T) {
	db := testDB(t)
	svc := NewService(db, zap.NewNop(), audit.NewRecorder(db), nil)
	tenantID := uuid.New()
	actx := audit.SystemContext(tenantID)
	ctx := context.Background()

	src := seedStore(t, db, tenantID, "source", []connector.Item{
		mockItem("3001", 10, "0.05"),
		mockItem("3002", 5, "0.10"),
	})
	dst := seedStore(t, db, tenantID, "target", []connector.Item{
		mockItem("3001", 5, "0.05"),
		mockItem("9999", 1, "1.00"),
	})

	// Local rows for the items already known to the tenant.
	invSvc := inventory.NewService(db, zap.NewNop())
	_, err := invSvc.Create(ctx, tenantID, inventory.CreateItemRequest{
		ItemType: "PART", ItemNo: "3001", Condition: "N",
		QtyAvailable: 5, UnitPrice: decimal.RequireFromString("0.05"),
	})
	require.NoError(t, err)
	_, err = invSvc.Create(ctx, tenantID, inventory.CreateItemRequest{
		ItemType: "PART", ItemNo: "9999", Condition: "N",
		QtyAvailable: 1, UnitPrice: decimal.RequireFromString("1.00"),
	})
	require.NoError(t, err)

	run, err := svc.CreatePreview(ctx, actx, CreatePreviewRequest{
		SourceStoreID:      src.ID,
		TargetStoreID:      dst.ID,
		AllowLargeRemovals: true,
	})
	require.NoError(t, err)
	assert.Equal(t, RunStatusPreviewReady, run.Status)

	summary := SummaryFromMap(run.PlanSummary)
	assert.Equal(t, 1, summary.Add)
	assert.Equal(t, 1, summary.Update)
	assert.Equal(t, 1, summary.Remove)

	items, err := svc.ListPlanItems(ctx, tenantID, run.ID)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, connector.ActionUpdate, items[0].Action)
	assert.Equal(t, connector.ActionAdd, items[1].Action)
	assert.Equal(t, connector.ActionRemove, items[2].Action)
	for i, item := range items {
		assert.Equal(t, i, item.Position)
	}

	run, err = svc.ApproveRun(ctx, actx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusCompleted, run.Status)
	assert.NotNil(t, run.StartedAt)
	assert.NotNil(t, run.CompletedAt)
	assert.NotNil(t, run.ApprovedAt)

	t.Run("LocalInventoryMirrored", func(t *testing.T) {
		updated, err := inventory.FindByKey(ctx, db, tenantID, connector.Key{ItemType: "PART", ItemNo: "3001", Condition: "N"})
		require.NoError(t, err)
		require.NotNil(t, updated)
		assert.Equal(t, 10, updated.QtyAvailable)

		added, err := inventory.FindByKey(ctx, db, tenantID, connector.Key{ItemType: "PART", ItemNo: "3002", Condition: "N"})
		require.NoError(t, err)
		require.NotNil(t, added)
		assert.Equal(t, 5, added.QtyAvailable)

		// Removal zeroes the quantity, the row survives.
		removed, err := inventory.FindByKey(ctx, db, tenantID, connector.Key{ItemType: "PART", ItemNo: "9999", Condition: "N"})
		require.NoError(t, err)
		require.NotNil(t, removed)
		assert.Equal(t, 0, removed.QtyAvailable)
	})

	t.Run("TargetStoreMirrored", func(t *testing.T) {
		var fresh store.Store
		require.NoError(t, db.First(&fresh, "id = ?", dst.ID).Error)

		remote, err := connector.NewMockAdapter(db, &fresh).FetchInventory(ctx)
		require.NoError(t, err)

		byNo := map[string]connector.Item{}
		for _, item := range remote {
			byNo[item.ItemNo] = item
		}
		assert.Len(t, byNo, 2)
		assert.Equal(t, 10, byNo["3001"].QtyAvailable)
		assert.Equal(t, 5, byNo["3002"].QtyAvailable)
		assert.NotContains(t, byNo, "9999")
	})

	t.Run("ExternalIDsRecorded", func(t *testing.T) {
		var count int64
		require.NoError(t, db.Model(&inventory.ExternalID{}).
			Where("store_id = ?", dst.ID).Count(&count).Error)
		assert.GreaterOrEqual(t, count, int64(2))
	})

	t.Run("SyncStateTouched", func(t *testing.T) {
		var state store.SyncState
		require.NoError(t, db.First(&state, "store_id = ?", dst.ID).Error)
		assert.NotNil(t, state.LastInventorySync)
	})

	t.Run("AuditTrailWritten", func(t *testing.T) {
		logs, err := audit.NewRecorder(db).List(ctx, tenantID, "inventory_item", nil)
		require.NoError(t, err)
		assert.Len(t, logs, 3)
	})

	t.Run("CompletedRunNotApprovable", func(t *testing.T) {
		_, err := svc.ApproveRun(ctx, actx, run.ID)
		assert.ErrorIs(t, err, ErrInvalidRunState)
	})

	t.Run("ReRunIsIdempotent", func(t *testing.T) {
		again, err := svc.CreatePreview(ctx, actx, CreatePreviewRequest{
			SourceStoreID: src.ID,
			TargetStoreID: dst.ID,
		})
		require.NoError(t, err)

		s := SummaryFromMap(again.PlanSummary)
		assert.Equal(t, 0, s.Add)
		assert.Equal(t, 0, s.Update)
		assert.Equal(t, 0, s.Remove)
		assert.Equal(t, 2, s.Skip)
	})
}

// flakyAdapter fails ApplyChange once a shared budget of successful writes is
// spent.
type flakyAdapter struct {
	inner     connector.Adapter
	successes *int
	budget    int
}

func (f *flakyAdapter) FetchInventory(ctx context.Context) ([]connector.Item, error) {
	return f.inner.FetchInventory(ctx)
}

func (f *flakyAdapter) ApplyChange(ctx context.Context, action connector.Action, item connector.Item) (connector.Item, error) {
	if *f.successes >= f.budget {
		return connector.Item{}, errors.New("marketplace unavailable")
	}
	applied, err := f.inner.ApplyChange(ctx, action, item)
	if err == nil {
		*f.successes++
	}
	return applied, err
}

func (f *flakyAdapter) TestConnection(ctx context.Context) (bool, error) {
	return f.inner.TestConnection(ctx)
}

func TestApproveResumesAfterFailure(t *testing.T) {
	db := testDB(t)
	svc := NewService(db, zap.NewNop(), audit.NewRecorder(db), nil)
	tenantID := uuid.New()
	actx := audit.SystemContext(tenantID)
	ctx := context.Background()

	src := seedStore(t, db, tenantID, "source", []connector.Item{
		mockItem("3001", 1, "0.05"),
		mockItem("3002", 1, "0.05"),
		mockItem("3003", 1, "0.05"),
	})
	dst := seedStore(t, db, tenantID, "target", nil)

	successes := 0
	svc.adapterFor = func(db *gorm.DB, st *store.Store) connector.Adapter {
		return &flakyAdapter{inner: connector.NewMockAdapter(db, st), successes: &successes, budget: 1}
	}

	run, err := svc.CreatePreview(ctx, actx, CreatePreviewRequest{
		SourceStoreID: src.ID,
		TargetStoreID: dst.ID,
	})
	require.NoError(t, err)

	_, err = svc.ApproveRun(ctx, actx, run.ID)
	require.Error(t, err)

	run, err = svc.GetRun(ctx, tenantID, run.ID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusFailed, run.Status)
	assert.NotEmpty(t, run.ErrorMessage)

	items, err := svc.ListPlanItems(ctx, tenantID, run.ID)
	require.NoError(t, err)
	counts := map[ItemStatus]int{}
	for _, item := range items {
		counts[item.Status]++
	}
	assert.Equal(t, 1, counts[ItemStatusApplied])
	assert.Equal(t, 1, counts[ItemStatusFailed])
	assert.Equal(t, 1, counts[ItemStatusPending])

	// Second approval with a healthy adapter finishes the remainder without
	// re-applying what already landed.
	svc.adapterFor = connector.ForStore

	run, err = svc.ApproveRun(ctx, actx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusCompleted, run.Status)
	assert.Empty(t, run.ErrorMessage)

	var fresh store.Store
	require.NoError(t, db.First(&fresh, "id = ?", dst.ID).Error)
	remote, err := connector.NewMockAdapter(db, &fresh).FetchInventory(ctx)
	require.NoError(t, err)
	assert.Len(t, remote, 3)
}

func TestApplyStopsWhenRateLimited(t *testing.T) {
	db := testDB(t)
	svc := NewService(db, zap.NewNop(), audit.NewRecorder(db), nil)
	tenantID := uuid.New()
	actx := audit.SystemContext(tenantID)
	ctx := context.Background()

	src := seedStore(t, db, tenantID, "source", []connector.Item{mockItem("3001", 1, "0.05")})
	dst := seedStore(t, db, tenantID, "target", nil)

	// Exhausted budget with an unexpired window.
	var raw map[string]any
	require.NoError(t, utils.Remarshal(store.RateLimitEntry{
		Limit:     store.DailyLimit(dst.Channel),
		Remaining: 0,
		ResetAt:   time.Now().Add(time.Hour),
	}, &raw))
	require.NoError(t, db.Create(&store.SyncState{
		StoreID:        dst.ID,
		RateLimitState: utils.JSONMap{dst.Channel: raw},
	}).Error)

	run, err := svc.CreatePreview(ctx, actx, CreatePreviewRequest{
		SourceStoreID: src.ID,
		TargetStoreID: dst.ID,
	})
	require.NoError(t, err)

	_, err = svc.ApproveRun(ctx, actx, run.ID)
	assert.ErrorIs(t, err, ErrRateLimited)

	run, err = svc.GetRun(ctx, tenantID, run.ID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusFailed, run.Status)
	assert.Equal(t, "Rate limit exceeded", run.ErrorMessage)

	items, err := svc.ListPlanItems(ctx, tenantID, run.ID)
	require.NoError(t, err)
	for _, item := range items {
		assert.Equal(t, ItemStatusPending, item.Status)
	}
}

func TestCancelRun(t *testing.T) {
	db := testDB(t)
	svc := NewService(db, zap.NewNop(), audit.NewRecorder(db), nil)
	tenantID := uuid.New()
	actx := audit.SystemContext(tenantID)
	ctx := context.Background()

	src := seedStore(t, db, tenantID, "source", []connector.Item{mockItem("3001", 1, "0.05")})
	dst := seedStore(t, db, tenantID, "target", nil)

	run, err := svc.CreatePreview(ctx, actx, CreatePreviewRequest{
		SourceStoreID: src.ID,
		TargetStoreID: dst.ID,
	})
	require.NoError(t, err)

	run, err = svc.CancelRun(ctx, actx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusCancelled, run.Status)
	assert.NotNil(t, run.CompletedAt)

	t.Run("CancelIsIdempotent", func(t *testing.T) {
		again, err := svc.CancelRun(ctx, actx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, RunStatusCancelled, again.Status)
	})

	t.Run("CancelledRunNotApprovable", func(t *testing.T) {
		_, err := svc.ApproveRun(ctx, actx, run.ID)
		assert.ErrorIs(t, err, ErrInvalidRunState)
	})

	t.Run("UnknownRun", func(t *testing.T) {
		_, err := svc.CancelRun(ctx, actx, uuid.New())
		assert.ErrorIs(t, err, ErrRunNotFound)
	})
}

func TestApproveRejectsConcurrentApply(t *testing.T) {
	db := testDB(t)
	svc := NewService(db, zap.NewNop(), audit.NewRecorder(db), nil)
	tenantID := uuid.New()
	actx := audit.SystemContext(tenantID)
	ctx := context.Background()

	src := seedStore(t, db, tenantID, "source", []connector.Item{mockItem("3001", 1, "0.05")})
	dst := seedStore(t, db, tenantID, "target", nil)

	run, err := svc.CreatePreview(ctx, actx, CreatePreviewRequest{
		SourceStoreID: src.ID,
		TargetStoreID: dst.ID,
	})
	require.NoError(t, err)

	require.True(t, svc.acquireLock(lockKey{tenantID: tenantID, storeID: dst.ID}))
	_, err = svc.ApproveRun(ctx, actx, run.ID)
	assert.ErrorIs(t, err, ErrRunInProgress)

	svc.releaseLock(lockKey{tenantID: tenantID, storeID: dst.ID})
	run, err = svc.ApproveRun(ctx, actx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusCompleted, run.Status)
}

func TestTestConnection(t *testing.T) {
	db := testDB(t)
	svc := NewService(db, zap.NewNop(), audit.NewRecorder(db), nil)
	tenantID := uuid.New()

	st := seedStore(t, db, tenantID, "store", nil)

	ok, err := svc.TestConnection(context.Background(), tenantID, st.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = svc.TestConnection(context.Background(), tenantID, uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

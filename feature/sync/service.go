package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"stocklink/feature/audit"
	"stocklink/feature/connector"
	"stocklink/feature/inventory"
	"stocklink/feature/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

var (
	ErrRunNotFound          = errors.New("sync run not found")
	ErrInvalidRunState      = errors.New("run is not in an approvable state")
	ErrSameStore            = errors.New("source and target store must differ")
	ErrUnsupportedDirection = errors.New("unsupported sync direction")
	ErrRunInProgress        = errors.New("another run is applying against this store")
)

// lockKey scopes the apply advisory lock to one tenant's target store.
type lockKey struct {
	tenantID uuid.UUID
	storeID  uuid.UUID
}

// Service owns the sync run lifecycle: preview creation, approval, apply and
// cancellation. One service instance is shared by the HTTP handlers and the
// CLI.
type Service struct {
	db       *gorm.DB
	logger   *zap.Logger
	recorder *audit.Recorder
	archiver *Archiver

	// adapterFor is a seam for tests; production wiring uses the registry.
	adapterFor func(db *gorm.DB, st *store.Store) connector.Adapter

	mu    sync.Mutex
	locks map[lockKey]struct{}
}

// NewService builds the sync service. archiver may be nil when report
// archiving is disabled.
func NewService(db *gorm.DB, logger *zap.Logger, recorder *audit.Recorder, archiver *Archiver) *Service {
	return &Service{
		db:         db,
		logger:     logger,
		recorder:   recorder,
		archiver:   archiver,
		adapterFor: connector.ForStore,
		locks:      make(map[lockKey]struct{}),
	}
}

func (s *Service) acquireLock(key lockKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, held := s.locks[key]; held {
		return false
	}
	s.locks[key] = struct{}{}
	return true
}

func (s *Service) releaseLock(key lockKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locks, key)
}

// CreatePreviewRequest carries the parameters of a new sync run.
type CreatePreviewRequest struct {
	SourceStoreID      uuid.UUID `json:"source_store_id" validate:"required"`
	TargetStoreID      uuid.UUID `json:"target_store_id" validate:"required"`
	Direction          string    `json:"direction"`
	AllowLargeRemovals bool      `json:"allow_large_removals"`
}

// CreatePreview fetches both stores' inventories, diffs them and persists the
// resulting plan. The returned run is PREVIEW_READY on success and FAILED with
// an error message when any stage broke; in the failure case the run is still
// returned alongside the error so callers can inspect it.
func (s *Service) CreatePreview(ctx context.Context, actx audit.Context, req CreatePreviewRequest) (*Run, error) {
	if req.SourceStoreID == req.TargetStoreID {
		return nil, ErrSameStore
	}
	direction := req.Direction
	if direction == "" {
		direction = DirectionSourceToTarget
	}
	if direction != DirectionSourceToTarget {
		return nil, ErrUnsupportedDirection
	}

	source, err := store.Get(ctx, s.db, actx.TenantID, req.SourceStoreID)
	if err != nil {
		return nil, fmt.Errorf("source store: %w", err)
	}
	target, err := store.Get(ctx, s.db, actx.TenantID, req.TargetStoreID)
	if err != nil {
		return nil, fmt.Errorf("target store: %w", err)
	}

	run := &Run{
		TenantID:      actx.TenantID,
		SourceStoreID: source.ID,
		TargetStoreID: target.ID,
		Mode:          RunModePreview,
		Direction:     direction,
		Status:        RunStatusPending,
		CreatedBy:     actorID(actx),
	}
	if err := s.db.WithContext(ctx).Create(run).Error; err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}

	if err := s.buildPreview(ctx, run, source, target, req.AllowLargeRemovals); err != nil {
		s.failRun(ctx, run, err)
		return run, err
	}

	if err := s.recorder.Record(ctx, actx, "sync.preview", "sync_run", &run.ID, nil, run); err != nil {
		s.logger.Warn("audit record failed", zap.String("run_id", run.ID.String()), zap.Error(err))
	}
	return run, nil
}

// buildPreview runs the FETCHING and COMPARING stages, ending in
// PREVIEW_READY with the plan persisted.
func (s *Service) buildPreview(ctx context.Context, run *Run, source, target *store.Store, allowLargeRemovals bool) error {
	if err := s.setStatus(ctx, run, RunStatusFetching); err != nil {
		return err
	}

	var sourceItems, targetItems []connector.Item
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		items, err := s.adapterFor(s.db, source).FetchInventory(gctx)
		if err != nil {
			return fmt.Errorf("fetch source inventory: %w", err)
		}
		sourceItems = items
		return nil
	})
	g.Go(func() error {
		items, err := s.adapterFor(s.db, target).FetchInventory(gctx)
		if err != nil {
			return fmt.Errorf("fetch target inventory: %w", err)
		}
		targetItems = items
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	if err := s.setStatus(ctx, run, RunStatusComparing); err != nil {
		return err
	}

	existing, err := s.existingItemIndex(ctx, run.TenantID)
	if err != nil {
		return fmt.Errorf("index local inventory: %w", err)
	}

	items, summary := BuildPlan(sourceItems, targetItems, existing, allowLargeRemovals)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, item := range items {
			item.SyncRunID = run.ID
			item.Position = i
			if err := tx.Create(item).Error; err != nil {
				return err
			}
		}
		run.Status = RunStatusPreviewReady
		run.PlanSummary = summary.Map()
		return tx.Save(run).Error
	})
	if err != nil {
		return fmt.Errorf("persist plan: %w", err)
	}

	s.logger.Info("sync preview ready",
		zap.String("run_id", run.ID.String()),
		zap.Int("add", summary.Add),
		zap.Int("update", summary.Update),
		zap.Int("remove", summary.Remove),
		zap.Int("skip", summary.Skip))
	return nil
}

// ApproveRun moves a PREVIEW_READY (or FAILED, for resume) run through the
// APPLYING stage. At most one run applies against a given target store at a
// time.
func (s *Service) ApproveRun(ctx context.Context, actx audit.Context, runID uuid.UUID) (*Run, error) {
	run, err := s.GetRun(ctx, actx.TenantID, runID)
	if err != nil {
		return nil, err
	}
	if run.Status != RunStatusPreviewReady && run.Status != RunStatusFailed {
		return run, fmt.Errorf("%w: status %s", ErrInvalidRunState, run.Status)
	}

	key := lockKey{tenantID: run.TenantID, storeID: run.TargetStoreID}
	if !s.acquireLock(key) {
		return run, ErrRunInProgress
	}
	defer s.releaseLock(key)

	target, err := store.Get(ctx, s.db, run.TenantID, run.TargetStoreID)
	if err != nil {
		return run, fmt.Errorf("target store: %w", err)
	}

	now := time.Now().UTC()
	approver := actorID(actx)
	run.Status = RunStatusApplying
	run.Mode = RunModeApply
	run.StartedAt = &now
	run.ApprovedBy = &approver
	run.ApprovedAt = &now
	run.ErrorMessage = ""
	if err := s.db.WithContext(ctx).Save(run).Error; err != nil {
		return run, fmt.Errorf("mark run applying: %w", err)
	}

	items, err := s.ListPlanItems(ctx, run.TenantID, run.ID)
	if err != nil {
		s.failRun(ctx, run, err)
		return run, err
	}
	// A resumed run retries the item that failed last time.
	for _, item := range items {
		if item.Status == ItemStatusFailed {
			item.Status = ItemStatusPending
			item.ErrorMessage = ""
		}
	}

	applier := NewApplier(s.db, s.logger, s.adapterFor(s.db, target), store.NewRateLimitTracker(s.db, target), s.recorder, target)
	result, applyErr := applier.Apply(ctx, run, items)
	if applyErr != nil {
		s.failRun(ctx, run, applyErr)
		return run, applyErr
	}

	done := time.Now().UTC()
	run.Status = RunStatusCompleted
	run.CompletedAt = &done
	if err := s.db.WithContext(ctx).Save(run).Error; err != nil {
		return run, fmt.Errorf("mark run completed: %w", err)
	}
	if err := store.TouchLastInventorySync(ctx, s.db, target.ID); err != nil {
		s.logger.Warn("touch sync state failed", zap.String("store_id", target.ID.String()), zap.Error(err))
	}

	if s.archiver != nil {
		if err := s.archiver.ArchiveRun(ctx, run, items); err != nil {
			s.logger.Warn("run archive failed", zap.String("run_id", run.ID.String()), zap.Error(err))
		}
	}

	if err := s.recorder.Record(ctx, actx, "sync.approve", "sync_run", &run.ID, nil, run); err != nil {
		s.logger.Warn("audit record failed", zap.String("run_id", run.ID.String()), zap.Error(err))
	}

	s.logger.Info("sync run completed",
		zap.String("run_id", run.ID.String()),
		zap.Int("applied", result.Applied),
		zap.Int("skipped", result.Skipped))
	return run, nil
}

// CancelRun cancels a run that has not finished. Cancelling a terminal run is
// a no-op and returns the run unchanged.
func (s *Service) CancelRun(ctx context.Context, actx audit.Context, runID uuid.UUID) (*Run, error) {
	run, err := s.GetRun(ctx, actx.TenantID, runID)
	if err != nil {
		return nil, err
	}
	if run.IsTerminal() {
		return run, nil
	}

	now := time.Now().UTC()
	run.Status = RunStatusCancelled
	run.CompletedAt = &now
	if err := s.db.WithContext(ctx).Save(run).Error; err != nil {
		return run, fmt.Errorf("mark run cancelled: %w", err)
	}
	if err := s.recorder.Record(ctx, actx, "sync.cancel", "sync_run", &run.ID, nil, run); err != nil {
		s.logger.Warn("audit record failed", zap.String("run_id", run.ID.String()), zap.Error(err))
	}
	return run, nil
}

// GetRun loads one run scoped to the tenant.
func (s *Service) GetRun(ctx context.Context, tenantID, runID uuid.UUID) (*Run, error) {
	var run Run
	err := s.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", runID, tenantID).
		First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRuns returns the tenant's runs, newest first.
func (s *Service) ListRuns(ctx context.Context, tenantID uuid.UUID) ([]Run, error) {
	var runs []Run
	err := s.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at DESC").
		Find(&runs).Error
	return runs, err
}

// ListPlanItems returns a run's plan in stored order.
func (s *Service) ListPlanItems(ctx context.Context, tenantID, runID uuid.UUID) ([]*PlanItem, error) {
	if _, err := s.GetRun(ctx, tenantID, runID); err != nil {
		return nil, err
	}
	var items []*PlanItem
	err := s.db.WithContext(ctx).
		Where("sync_run_id = ?", runID).
		Order("position ASC").
		Find(&items).Error
	return items, err
}

// TestConnection probes a store's marketplace credentials via its adapter.
func (s *Service) TestConnection(ctx context.Context, tenantID, storeID uuid.UUID) (bool, error) {
	st, err := store.Get(ctx, s.db, tenantID, storeID)
	if err != nil {
		return false, err
	}
	return s.adapterFor(s.db, st).TestConnection(ctx)
}

// failRun stamps the run FAILED with the cause. Persistence errors here are
// logged only, the original error matters more to the caller.
func (s *Service) failRun(ctx context.Context, run *Run, cause error) {
	now := time.Now().UTC()
	run.Status = RunStatusFailed
	run.CompletedAt = &now
	run.ErrorMessage = cause.Error()
	if errors.Is(cause, ErrRateLimited) {
		run.ErrorMessage = "Rate limit exceeded"
	}
	if err := s.db.WithContext(ctx).Save(run).Error; err != nil {
		s.logger.Error("mark run failed", zap.String("run_id", run.ID.String()), zap.Error(err))
	}
	if err := store.SetLastSyncError(ctx, s.db, run.TargetStoreID, run.ErrorMessage); err != nil {
		s.logger.Warn("record sync error on store failed", zap.String("store_id", run.TargetStoreID.String()), zap.Error(err))
	}
}

// existingItemIndex maps composite keys of the tenant's local inventory to
// item ids so plan items can pin the rows they will touch.
func (s *Service) existingItemIndex(ctx context.Context, tenantID uuid.UUID) (map[connector.Key]uuid.UUID, error) {
	localItems, err := inventory.ListByTenant(ctx, s.db, tenantID)
	if err != nil {
		return nil, err
	}
	index := make(map[connector.Key]uuid.UUID, len(localItems))
	for i := range localItems {
		index[localItems[i].Key()] = localItems[i].ID
	}
	return index, nil
}

func (s *Service) setStatus(ctx context.Context, run *Run, status RunStatus) error {
	run.Status = status
	if err := s.db.WithContext(ctx).Save(run).Error; err != nil {
		return fmt.Errorf("set run status %s: %w", status, err)
	}
	return nil
}

func actorID(actx audit.Context) uuid.UUID {
	if actx.ActorID != nil {
		return *actx.ActorID
	}
	return uuid.Nil
}

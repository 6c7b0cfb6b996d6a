package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stocklink/feature/audit"
	"stocklink/feature/connector"
	"stocklink/feature/inventory"
	"stocklink/feature/store"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DefaultCheckpointEvery is the number of processed items between plan item
// flushes. A crash mid-apply loses at most one checkpoint window of progress
// markers; re-approval resumes from the first PENDING item.
const DefaultCheckpointEvery = 25

// ErrRateLimited aborts an apply loop when the target channel's daily request
// budget is exhausted. The run fails and keeps its remaining PENDING items.
var ErrRateLimited = errors.New("rate limit exceeded")

// Applier executes an approved plan against the target store, item by item,
// keeping local inventory and external id mappings in step with each remote
// write.
type Applier struct {
	db       *gorm.DB
	logger   *zap.Logger
	adapter  connector.Adapter
	tracker  *store.RateLimitTracker
	recorder *audit.Recorder
	target   *store.Store

	checkpointEvery int
}

// NewApplier wires an applier for one run against one target store.
func NewApplier(db *gorm.DB, logger *zap.Logger, adapter connector.Adapter, tracker *store.RateLimitTracker, recorder *audit.Recorder, target *store.Store) *Applier {
	return &Applier{
		db:              db,
		logger:          logger,
		adapter:         adapter,
		tracker:         tracker,
		recorder:        recorder,
		target:          target,
		checkpointEvery: DefaultCheckpointEvery,
	}
}

// Result summarizes one apply pass over a plan.
type Result struct {
	Applied int
	Skipped int
	Failed  int
}

// Apply processes the run's plan items in stored order. Items already
// APPLIED or SKIPPED pass through untouched, so a re-approved run resumes
// where the previous attempt stopped.
//
// The loop is fail-fast: the first adapter or persistence error marks the
// current item FAILED, flushes progress, and returns.
func (a *Applier) Apply(ctx context.Context, run *Run, items []*PlanItem) (Result, error) {
	var (
		result Result
		dirty  []*PlanItem
	)

	flush := func() error {
		if len(dirty) == 0 {
			return nil
		}
		err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			for _, item := range dirty {
				if err := tx.Save(item).Error; err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("flush plan progress: %w", err)
		}
		dirty = dirty[:0]
		return nil
	}

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			flushErr := flush()
			if flushErr != nil {
				a.logger.Error("checkpoint flush after cancellation failed", zap.Error(flushErr))
			}
			return result, err
		}

		if item.Status != ItemStatusPending {
			if item.Status == ItemStatusSkipped {
				result.Skipped++
			}
			continue
		}
		if item.Action == connector.ActionSkip {
			item.Status = ItemStatusSkipped
			dirty = append(dirty, item)
			result.Skipped++
			continue
		}

		ok, err := a.tracker.CanRequest(ctx, a.target.Channel)
		if err != nil {
			return result, fmt.Errorf("rate limit check: %w", err)
		}
		if !ok {
			if flushErr := flush(); flushErr != nil {
				return result, flushErr
			}
			return result, ErrRateLimited
		}
		if err := a.tracker.RecordRequest(ctx, a.target.Channel); err != nil {
			return result, fmt.Errorf("record request: %w", err)
		}

		if err := a.applyItem(ctx, run, item); err != nil {
			item.Status = ItemStatusFailed
			item.ErrorMessage = err.Error()
			dirty = append(dirty, item)
			result.Failed++
			if flushErr := flush(); flushErr != nil {
				a.logger.Error("checkpoint flush after item failure failed", zap.Error(flushErr))
			}
			return result, fmt.Errorf("apply item %s: %w", item.ID, err)
		}

		now := time.Now().UTC()
		item.Status = ItemStatusApplied
		item.AppliedAt = &now
		dirty = append(dirty, item)
		result.Applied++

		if len(dirty) >= a.checkpointEvery {
			if err := flush(); err != nil {
				return result, err
			}
		}
	}

	return result, flush()
}

// applyItem pushes one change to the target store, then mirrors it into local
// inventory. Remote and local state both have to land before the item counts
// as applied.
func (a *Applier) applyItem(ctx context.Context, run *Run, item *PlanItem) error {
	payload, err := a.payloadFor(item)
	if err != nil {
		return err
	}

	applied, err := a.adapter.ApplyChange(ctx, item.Action, payload)
	if err != nil {
		return fmt.Errorf("adapter: %w", err)
	}
	if item.Action == connector.ActionAdd && applied.ExternalID != "" {
		item.TargetExternalID = applied.ExternalID
	}

	if err := a.applyLocal(ctx, run, item, applied); err != nil {
		return fmt.Errorf("local inventory: %w", err)
	}
	return nil
}

// payloadFor builds the connector item sent to the adapter. Updates and
// removals target the remote record by the target store's own external id,
// not the source's.
func (a *Applier) payloadFor(item *PlanItem) (connector.Item, error) {
	state := item.AfterState
	if item.Action == connector.ActionRemove {
		state = item.BeforeState
	}
	payload, err := connector.ItemFromState(state)
	if err != nil {
		return connector.Item{}, err
	}
	if item.Action != connector.ActionAdd {
		payload.ExternalID = item.TargetExternalID
	}
	return payload, nil
}

// applyLocal keeps the tenant's own inventory consistent with the remote
// write. Removals zero the quantity instead of deleting the row.
func (a *Applier) applyLocal(ctx context.Context, run *Run, item *PlanItem, applied connector.Item) error {
	local, err := a.localItem(ctx, run, item, applied)
	if err != nil {
		return err
	}

	before := map[string]any(nil)
	if local != nil {
		before = localState(local)
	}

	switch item.Action {
	case connector.ActionAdd, connector.ActionUpdate:
		if local == nil {
			local = &inventory.Item{
				TenantID:  run.TenantID,
				ItemType:  applied.ItemType,
				ItemNo:    applied.ItemNo,
				ColorID:   applied.ColorID,
				Condition: applied.Condition,
			}
		}
		local.QtyAvailable = applied.QtyAvailable
		local.UnitPrice = applied.UnitPrice
		local.Remarks = applied.Remarks
		local.Version++
	case connector.ActionRemove:
		if local == nil {
			return nil
		}
		local.QtyAvailable = 0
		local.Version++
	default:
		return fmt.Errorf("unexpected action %q", item.Action)
	}

	if err := a.db.WithContext(ctx).Save(local).Error; err != nil {
		return err
	}
	item.InventoryItemID = &local.ID

	if item.TargetExternalID != "" {
		if err := inventory.UpsertExternalID(ctx, a.db, run.TenantID, local.ID, a.target.ID, item.TargetExternalID); err != nil {
			return err
		}
	}

	itemID := local.ID
	if err := a.recorder.Record(ctx, audit.SystemContext(run.TenantID), "sync."+string(item.Action), "inventory_item", &itemID, before, localState(local)); err != nil {
		a.logger.Warn("audit record failed", zap.String("item_id", itemID.String()), zap.Error(err))
	}
	return nil
}

// localItem resolves the local inventory row a plan item refers to, first by
// the id pinned at plan time, then by composite key.
func (a *Applier) localItem(ctx context.Context, run *Run, item *PlanItem, applied connector.Item) (*inventory.Item, error) {
	if item.InventoryItemID != nil {
		var local inventory.Item
		err := a.db.WithContext(ctx).
			Where("id = ? AND tenant_id = ?", *item.InventoryItemID, run.TenantID).
			First(&local).Error
		if err == nil {
			return &local, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	return inventory.FindByKey(ctx, a.db, run.TenantID, applied.Key())
}

func localState(item *inventory.Item) map[string]any {
	return map[string]any{
		"id":            item.ID.String(),
		"item_type":     item.ItemType,
		"item_no":       item.ItemNo,
		"color_id":      item.ColorID,
		"condition":     item.Condition,
		"qty_available": item.QtyAvailable,
		"unit_price":    item.UnitPrice.String(),
		"remarks":       item.Remarks,
		"version":       item.Version,
	}
}

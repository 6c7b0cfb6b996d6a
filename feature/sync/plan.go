package sync

import (
	"sort"

	"stocklink/core/utils"
	"stocklink/feature/connector"

	"github.com/google/uuid"
)

// removeThresholdRatio is the circuit breaker against stale or partial source
// snapshots: when more than this share of the target would be removed, the
// removals are skipped unless the caller explicitly allows large removals.
const removeThresholdRatio = 0.10

// Summary tallies plan items per final action. Unmatched is defensive: it
// stays zero under a correct union iteration and is reserved for future
// multi-directional diffing.
type Summary struct {
	Add       int `json:"add"`
	Update    int `json:"update"`
	Remove    int `json:"remove"`
	Skip      int `json:"skip"`
	Unmatched int `json:"unmatched"`
}

// Map converts the summary for storage in the run's JSON column.
func (s Summary) Map() utils.JSONMap {
	var m utils.JSONMap
	_ = utils.Remarshal(s, &m)
	return m
}

// SummaryFromMap rebuilds a summary from a run's stored plan_summary.
func SummaryFromMap(m utils.JSONMap) Summary {
	var s Summary
	_ = utils.Remarshal(m, &s)
	return s
}

// BuildPlan diffs two inventory snapshots and produces the ordered change
// plan plus its summary. It is a pure function: no I/O, no persistence.
//
// existing maps composite keys to local inventory item ids so plan items can
// reference the record they will touch during apply.
//
// Duplicate composite keys within one snapshot collapse last-write-wins
// during index construction.
func BuildPlan(sourceItems, targetItems []connector.Item, existing map[connector.Key]uuid.UUID, allowLargeRemovals bool) ([]*PlanItem, Summary) {
	sourceMap := indexByKey(sourceItems)
	targetMap := indexByKey(targetItems)

	keys := unionKeys(sourceMap, targetMap)

	var (
		planItems        []*PlanItem
		removeCandidates []*PlanItem
		summary          Summary
	)

	for _, key := range keys {
		sourceItem, inSource := sourceMap[key]
		targetItem, inTarget := targetMap[key]
		itemID := existingItemID(existing, key)

		switch {
		case inSource && !inTarget:
			planItems = append(planItems, &PlanItem{
				Action:           connector.ActionAdd,
				InventoryItemID:  itemID,
				SourceExternalID: sourceItem.ExternalID,
				AfterState:       sourceItem.State(),
				Changes:          ChangeList{{Field: "full", Old: nil, New: sourceItem.State()}},
				Status:           ItemStatusPending,
			})
			summary.Add++

		case inTarget && !inSource:
			removeCandidates = append(removeCandidates, &PlanItem{
				Action:           connector.ActionRemove,
				InventoryItemID:  itemID,
				TargetExternalID: targetItem.ExternalID,
				BeforeState:      targetItem.State(),
				Changes:          ChangeList{{Field: "full", Old: targetItem.State(), New: nil}},
				Status:           ItemStatusPending,
			})
			summary.Remove++

		default:
			changes := diffItems(sourceItem, targetItem)
			if len(changes) > 0 {
				planItems = append(planItems, &PlanItem{
					Action:           connector.ActionUpdate,
					InventoryItemID:  itemID,
					SourceExternalID: sourceItem.ExternalID,
					TargetExternalID: targetItem.ExternalID,
					BeforeState:      targetItem.State(),
					AfterState:       sourceItem.State(),
					Changes:          changes,
					Status:           ItemStatusPending,
				})
				summary.Update++
			} else {
				planItems = append(planItems, &PlanItem{
					Action:           connector.ActionSkip,
					SkipReason:       SkipReasonNoChange,
					InventoryItemID:  itemID,
					SourceExternalID: sourceItem.ExternalID,
					TargetExternalID: targetItem.ExternalID,
					BeforeState:      targetItem.State(),
					AfterState:       sourceItem.State(),
					Changes:          ChangeList{},
					Status:           ItemStatusSkipped,
				})
				summary.Skip++
			}
		}
	}

	// Removal guardrail: converting candidates to skips protects the target
	// from an empty or partial source snapshot wiping its inventory.
	if len(removeCandidates) > 0 && !allowLargeRemovals {
		targetCount := len(targetMap)
		if targetCount < 1 {
			targetCount = 1
		}
		ratio := float64(len(removeCandidates)) / float64(targetCount)
		if ratio > removeThresholdRatio {
			for _, item := range removeCandidates {
				item.Action = connector.ActionSkip
				item.SkipReason = SkipReasonRemoveThreshold
				item.Status = ItemStatusSkipped
				summary.Remove--
				summary.Skip++
			}
		}
	}
	planItems = append(planItems, removeCandidates...)

	return planItems, summary
}

// diffItems compares the synchronized fields with exact equality.
func diffItems(source, target connector.Item) ChangeList {
	var changes ChangeList
	if source.QtyAvailable != target.QtyAvailable {
		changes = append(changes, Change{
			Field: "qty_available",
			Old:   target.QtyAvailable,
			New:   source.QtyAvailable,
		})
	}
	if !source.UnitPrice.Equal(target.UnitPrice) {
		changes = append(changes, Change{
			Field: "unit_price",
			Old:   target.UnitPrice.String(),
			New:   source.UnitPrice.String(),
		})
	}
	if source.Remarks != target.Remarks {
		changes = append(changes, Change{
			Field: "remarks",
			Old:   target.Remarks,
			New:   source.Remarks,
		})
	}
	return changes
}

func indexByKey(items []connector.Item) map[connector.Key]connector.Item {
	index := make(map[connector.Key]connector.Item, len(items))
	for _, item := range items {
		index[item.Key()] = item
	}
	return index
}

// unionKeys returns the union of both snapshots' keys in a deterministic
// order, so plans are stable across runs with identical inputs.
func unionKeys(sourceMap, targetMap map[connector.Key]connector.Item) []connector.Key {
	union := make(map[connector.Key]struct{}, len(sourceMap)+len(targetMap))
	for key := range sourceMap {
		union[key] = struct{}{}
	}
	for key := range targetMap {
		union[key] = struct{}{}
	}

	keys := make([]connector.Key, 0, len(union))
	for key := range union {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})
	return keys
}

func existingItemID(existing map[connector.Key]uuid.UUID, key connector.Key) *uuid.UUID {
	if existing == nil {
		return nil
	}
	if id, ok := existing[key]; ok {
		return &id
	}
	return nil
}

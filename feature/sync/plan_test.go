package sync_test

import (
	"fmt"
	"testing"

	"stocklink/feature/connector"
	syncfeature "stocklink/feature/sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func part(no string, qty int, price string) connector.Item {
	return connector.Item{
		ItemType:     "PART",
		ItemNo:       no,
		ColorID:      0,
		Condition:    "N",
		QtyAvailable: qty,
		UnitPrice:    decimal.RequireFromString(price),
	}
}

func TestBuildPlan(t *testing.T) {
	t.Run("AddUpdateRemove", func(t *testing.T) {
		source := []connector.Item{
			part("3001", 10, "0.05"),
			part("3002", 5, "0.10"),
		}
		target := []connector.Item{
			part("3001", 5, "0.05"),
			part("9999", 1, "1.00"),
		}

		items, summary := syncfeature.BuildPlan(source, target, nil, true)

		assert.Equal(t, 1, summary.Add)
		assert.Equal(t, 1, summary.Update)
		assert.Equal(t, 1, summary.Remove)
		assert.Equal(t, 0, summary.Skip)

		// Key order drives the plan, removals trail.
		assert.Len(t, items, 3)
		assert.Equal(t, connector.ActionUpdate, items[0].Action)
		assert.Equal(t, "3001", items[0].AfterState["item_no"])
		assert.Equal(t, connector.ActionAdd, items[1].Action)
		assert.Equal(t, "3002", items[1].AfterState["item_no"])
		assert.Equal(t, connector.ActionRemove, items[2].Action)
		assert.Equal(t, "9999", items[2].BeforeState["item_no"])

		update := items[0]
		assert.Len(t, update.Changes, 1)
		assert.Equal(t, "qty_available", update.Changes[0].Field)
		assert.Equal(t, 5, update.Changes[0].Old)
		assert.Equal(t, 10, update.Changes[0].New)
	})

	t.Run("NoChangeSkips", func(t *testing.T) {
		source := []connector.Item{part("3001", 10, "0.05")}
		target := []connector.Item{part("3001", 10, "0.05")}

		items, summary := syncfeature.BuildPlan(source, target, nil, false)

		assert.Len(t, items, 1)
		assert.Equal(t, connector.ActionSkip, items[0].Action)
		assert.Equal(t, syncfeature.SkipReasonNoChange, items[0].SkipReason)
		assert.Equal(t, syncfeature.ItemStatusSkipped, items[0].Status)
		assert.Equal(t, 1, summary.Skip)
	})

	t.Run("EqualPriceDifferentScale", func(t *testing.T) {
		source := []connector.Item{part("3001", 10, "0.0500")}
		target := []connector.Item{part("3001", 10, "0.05")}

		items, _ := syncfeature.BuildPlan(source, target, nil, false)

		assert.Equal(t, connector.ActionSkip, items[0].Action)
	})

	t.Run("PriceAndRemarksDiff", func(t *testing.T) {
		s := part("3001", 10, "0.05")
		s.Remarks = "bin 4"
		tg := part("3001", 10, "0.06")

		items, _ := syncfeature.BuildPlan([]connector.Item{s}, []connector.Item{tg}, nil, false)

		assert.Equal(t, connector.ActionUpdate, items[0].Action)
		fields := []string{items[0].Changes[0].Field, items[0].Changes[1].Field}
		assert.ElementsMatch(t, []string{"unit_price", "remarks"}, fields)
	})

	t.Run("RemovalGuardrail", func(t *testing.T) {
		var target []connector.Item
		for i := 0; i < 10; i++ {
			target = append(target, part(fmt.Sprintf("30%02d", i), 1, "0.05"))
		}

		// Empty source would remove everything; the guardrail converts all
		// removals to skips.
		items, summary := syncfeature.BuildPlan(nil, target, nil, false)

		assert.Equal(t, 0, summary.Remove)
		assert.Equal(t, 10, summary.Skip)
		for _, item := range items {
			assert.Equal(t, connector.ActionSkip, item.Action)
			assert.Equal(t, syncfeature.SkipReasonRemoveThreshold, item.SkipReason)
		}
	})

	t.Run("RemovalGuardrailOverride", func(t *testing.T) {
		var target []connector.Item
		for i := 0; i < 10; i++ {
			target = append(target, part(fmt.Sprintf("30%02d", i), 1, "0.05"))
		}

		_, summary := syncfeature.BuildPlan(nil, target, nil, true)

		assert.Equal(t, 10, summary.Remove)
		assert.Equal(t, 0, summary.Skip)
	})

	t.Run("RemovalAtThresholdAllowed", func(t *testing.T) {
		var source, target []connector.Item
		for i := 0; i < 10; i++ {
			item := part(fmt.Sprintf("30%02d", i), 1, "0.05")
			target = append(target, item)
			if i > 0 {
				source = append(source, item)
			}
		}

		// 1 of 10 is exactly 10%, not above it.
		_, summary := syncfeature.BuildPlan(source, target, nil, false)

		assert.Equal(t, 1, summary.Remove)
		assert.Equal(t, 9, summary.Skip)
	})

	t.Run("DuplicateKeysLastWriteWins", func(t *testing.T) {
		source := []connector.Item{
			part("3001", 3, "0.05"),
			part("3001", 7, "0.05"),
		}

		items, summary := syncfeature.BuildPlan(source, nil, nil, false)

		assert.Equal(t, 1, summary.Add)
		assert.Len(t, items, 1)
		assert.Equal(t, float64(7), items[0].AfterState["qty_available"])
	})

	t.Run("ExistingItemsPinned", func(t *testing.T) {
		itemID := uuid.New()
		existing := map[connector.Key]uuid.UUID{
			part("3001", 0, "0").Key(): itemID,
		}

		items, _ := syncfeature.BuildPlan([]connector.Item{part("3001", 10, "0.05")}, nil, existing, false)

		if assert.NotNil(t, items[0].InventoryItemID) {
			assert.Equal(t, itemID, *items[0].InventoryItemID)
		}
	})

	t.Run("DeterministicOrder", func(t *testing.T) {
		source := []connector.Item{
			part("3005", 1, "0.05"),
			part("3001", 1, "0.05"),
			part("3003", 1, "0.05"),
		}

		first, _ := syncfeature.BuildPlan(source, nil, nil, false)
		second, _ := syncfeature.BuildPlan(source, nil, nil, false)

		assert.Equal(t, len(first), len(second))
		for i := range first {
			assert.Equal(t, first[i].AfterState["item_no"], second[i].AfterState["item_no"])
		}
	})
}

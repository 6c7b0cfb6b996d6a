package sync

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"stocklink/core/utils"
	"stocklink/feature/connector"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RunStatus is the lifecycle state of a sync run.
type RunStatus string

const (
	RunStatusPending      RunStatus = "PENDING"
	RunStatusFetching     RunStatus = "FETCHING"
	RunStatusComparing    RunStatus = "COMPARING"
	RunStatusPreviewReady RunStatus = "PREVIEW_READY"
	RunStatusApplying     RunStatus = "APPLYING"
	RunStatusCompleted    RunStatus = "COMPLETED"
	RunStatusFailed       RunStatus = "FAILED"
	RunStatusCancelled    RunStatus = "CANCELLED"
)

// RunMode distinguishes previews from approved applies.
type RunMode string

const (
	RunModePreview RunMode = "PREVIEW"
	RunModeApply   RunMode = "APPLY"
)

// DirectionSourceToTarget is currently the only supported sync direction.
const DirectionSourceToTarget = "SOURCE_TO_TARGET"

// ItemStatus is the apply state of one plan item. It starts PENDING and
// transitions exactly once to a terminal value.
type ItemStatus string

const (
	ItemStatusPending ItemStatus = "PENDING"
	ItemStatusApplied ItemStatus = "APPLIED"
	ItemStatusSkipped ItemStatus = "SKIPPED"
	ItemStatusFailed  ItemStatus = "FAILED"
)

// Reasons a plan item is skipped instead of applied.
const (
	SkipReasonNoChange        = "NO_CHANGE"
	SkipReasonRemoveThreshold = "REMOVE_THRESHOLD"
)

// Run is one reconciliation attempt between an ordered store pair.
type Run struct {
	ID            uuid.UUID `gorm:"type:char(36);primaryKey" json:"id"`
	TenantID      uuid.UUID `gorm:"type:char(36);not null;index" json:"tenant_id"`
	SourceStoreID uuid.UUID `gorm:"type:char(36);not null" json:"source_store_id"`
	TargetStoreID uuid.UUID `gorm:"type:char(36);not null" json:"target_store_id"`

	Mode      RunMode   `gorm:"size:20;not null" json:"mode"`
	Direction string    `gorm:"size:20;not null" json:"direction"`
	Status    RunStatus `gorm:"size:20;not null;default:PENDING" json:"status"`

	PlanSummary utils.JSONMap `gorm:"type:json" json:"plan_summary"`

	StartedAt    *time.Time `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at"`
	ErrorMessage string     `gorm:"type:text" json:"error_message,omitempty"`

	ApprovedBy *uuid.UUID `gorm:"type:char(36)" json:"approved_by,omitempty"`
	ApprovedAt *time.Time `json:"approved_at,omitempty"`
	CreatedBy  uuid.UUID  `gorm:"type:char(36);not null" json:"created_by"`
	CreatedAt  time.Time  `json:"created_at"`

	PlanItems []PlanItem `gorm:"foreignKey:SyncRunID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName overrides the table name.
func (Run) TableName() string {
	return "sync_runs"
}

// BeforeCreate assigns an id when none is set.
func (r *Run) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// IsTerminal reports whether the run can no longer change.
func (r *Run) IsTerminal() bool {
	switch r.Status {
	case RunStatusCompleted, RunStatusFailed, RunStatusCancelled:
		return true
	default:
		return false
	}
}

// Change is one field-level delta between the target and source state of an
// item. Field is one of qty_available, unit_price, remarks, or full (for
// whole-record ADD/REMOVE deltas).
type Change struct {
	Field string `json:"field"`
	Old   any    `json:"old"`
	New   any    `json:"new"`
}

// ChangeList is a JSON column of field deltas.
type ChangeList []Change

// Value serializes the list for storage.
func (l ChangeList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan deserializes the list from storage.
func (l *ChangeList) Scan(value any) error {
	if value == nil {
		*l = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("unsupported changes column type %T", value)
	}
}

// PlanItem is one proposed or applied change belonging to exactly one run.
// before_state is null only for ADD; after_state is null only for REMOVE.
type PlanItem struct {
	ID        uuid.UUID `gorm:"type:char(36);primaryKey" json:"id"`
	SyncRunID uuid.UUID `gorm:"type:char(36);not null;index" json:"sync_run_id"`

	// Position preserves the plan builder's emission order for apply.
	Position int `gorm:"not null" json:"position"`

	Action     connector.Action `gorm:"size:20;not null" json:"action"`
	SkipReason string           `gorm:"size:50" json:"skip_reason,omitempty"`

	InventoryItemID  *uuid.UUID `gorm:"type:char(36)" json:"inventory_item_id,omitempty"`
	SourceExternalID string     `gorm:"size:64" json:"source_external_id,omitempty"`
	TargetExternalID string     `gorm:"size:64" json:"target_external_id,omitempty"`

	BeforeState utils.JSONMap `gorm:"type:json" json:"before_state,omitempty"`
	AfterState  utils.JSONMap `gorm:"type:json" json:"after_state,omitempty"`
	Changes     ChangeList    `gorm:"type:json" json:"changes"`

	Status       ItemStatus `gorm:"size:20;not null;default:PENDING" json:"status"`
	ErrorMessage string     `gorm:"type:text" json:"error_message,omitempty"`
	AppliedAt    *time.Time `json:"applied_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// TableName overrides the table name.
func (PlanItem) TableName() string {
	return "sync_plan_items"
}

// BeforeCreate assigns an id when none is set.
func (p *PlanItem) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

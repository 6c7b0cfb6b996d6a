package audit

import (
	"context"
	"fmt"

	"stocklink/core/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Context carries the actor identity attached to every entry a request writes.
type Context struct {
	TenantID  uuid.UUID
	ActorType string
	ActorID   *uuid.UUID
	ActorName string
	IPAddress string
	UserAgent string
}

// SystemContext returns an audit context for mutations performed by the
// service itself (CLI runs, scheduled syncs).
func SystemContext(tenantID uuid.UUID) Context {
	return Context{TenantID: tenantID, ActorType: "system"}
}

// Recorder writes audit entries.
type Recorder struct {
	db *gorm.DB
}

// NewRecorder creates a recorder bound to a database.
func NewRecorder(db *gorm.DB) *Recorder {
	return &Recorder{db: db}
}

// Record writes one audit entry. Before/after may be any JSON-serializable
// value; nil is kept as null for creations and deletions respectively.
func (r *Recorder) Record(ctx context.Context, actx Context, action, entityType string, entityID *uuid.UUID, before, after any) error {
	entry := &Log{
		TenantID:   actx.TenantID,
		ActorType:  actx.ActorType,
		ActorID:    actx.ActorID,
		ActorName:  actx.ActorName,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		IPAddress:  actx.IPAddress,
		UserAgent:  actx.UserAgent,
	}

	if before != nil {
		var state utils.JSONMap
		if err := utils.Remarshal(before, &state); err != nil {
			return fmt.Errorf("failed to serialize before state: %w", err)
		}
		entry.BeforeState = state
	}
	if after != nil {
		var state utils.JSONMap
		if err := utils.Remarshal(after, &state); err != nil {
			return fmt.Errorf("failed to serialize after state: %w", err)
		}
		entry.AfterState = state
	}

	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

// List returns the tenant's audit entries, newest first, optionally filtered
// by entity type and id.
func (r *Recorder) List(ctx context.Context, tenantID uuid.UUID, entityType string, entityID *uuid.UUID) ([]Log, error) {
	q := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at DESC")
	if entityType != "" {
		q = q.Where("entity_type = ?", entityType)
	}
	if entityID != nil {
		q = q.Where("entity_id = ?", *entityID)
	}

	var logs []Log
	if err := q.Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}
	return logs, nil
}

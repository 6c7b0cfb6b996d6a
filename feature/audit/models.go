package audit

import (
	"time"

	"stocklink/core/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Log is one audit entry recording the before/after state of a mutation.
type Log struct {
	ID       uuid.UUID `gorm:"type:char(36);primaryKey" json:"id"`
	TenantID uuid.UUID `gorm:"type:char(36);not null;index" json:"tenant_id"`

	ActorType string     `gorm:"size:20;not null" json:"actor_type"`
	ActorID   *uuid.UUID `gorm:"type:char(36)" json:"actor_id,omitempty"`
	ActorName string     `gorm:"size:100" json:"actor_name,omitempty"`

	Action     string     `gorm:"size:50;not null" json:"action"`
	EntityType string     `gorm:"size:50;not null;index:idx_audit_entity,priority:1" json:"entity_type"`
	EntityID   *uuid.UUID `gorm:"type:char(36);index:idx_audit_entity,priority:2" json:"entity_id,omitempty"`

	BeforeState utils.JSONMap `gorm:"type:json" json:"before_state,omitempty"`
	AfterState  utils.JSONMap `gorm:"type:json" json:"after_state,omitempty"`

	IPAddress string    `gorm:"size:45" json:"ip_address,omitempty"`
	UserAgent string    `gorm:"size:255" json:"user_agent,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName overrides the table name.
func (Log) TableName() string {
	return "audit_logs"
}

// BeforeCreate assigns an id when none is set.
func (l *Log) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

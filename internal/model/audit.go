package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ActionApproveRequest = "APPROVE_REQUEST"
	ActionRejectRequest  = "REJECT_REQUEST"
	ActionLogin          = "LOGIN"
)

// AuditLog tracks who decided what and when.
type AuditLog struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ActorID    string    `gorm:"type:varchar(64);index" json:"actor_id"`
	ActorName  string    `gorm:"type:varchar(255)" json:"actor_name"`
	Action     string    `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string    `gorm:"type:varchar(64);index" json:"entity_id"`
	EntityName string    `gorm:"type:varchar(255)" json:"entity_name,omitempty"`
	Details    string    `gorm:"type:text" json:"details"` // serialized JSON payload of the action
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
}

func (a *AuditLog) BeforeCreate(_ *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

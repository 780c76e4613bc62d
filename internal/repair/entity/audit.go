package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	AuditNotification = "notification"
	AuditComment      = "comment"
)

// AuditEntry 维修单日志（只追加）
type AuditEntry struct {
	ID         string         `json:"id" gorm:"primaryKey;type:uuid"`
	OrderID    string         `json:"order_id" gorm:"type:uuid;not null;index:idx_audit_order_time"`
	Kind       string         `json:"kind" gorm:"size:20;not null"`
	Body       string         `json:"body" gorm:"type:text;not null"`
	Metadata   datatypes.JSON `json:"metadata" gorm:"type:jsonb"`
	AuthorID   string         `json:"author_id" gorm:"size:64"`
	AuthorName string         `json:"author_name" gorm:"size:100"`
	CreatedAt  time.Time      `json:"created_at" gorm:"index:idx_audit_order_time"`
}

func (AuditEntry) TableName() string { return "repair_audit_entries" }

func (a *AuditEntry) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

package model

import (
	"time"

	"gorm.io/datatypes"
)

// AuditLog 操作审计日志，对应 audit_logs
type AuditLog struct {
	ID         uint           `gorm:"primaryKey"                         json:"id"`
	Actor      string         `gorm:"type:varchar(100)"                  json:"actor"`
	Role       string         `gorm:"type:varchar(50)"                   json:"role"`
	Action     string         `gorm:"type:varchar(100);not null"         json:"action"`
	Resource   string         `gorm:"type:varchar(50);not null"          json:"resource"`
	ResourceID *uint          `json:"resource_id,omitempty"`
	Detail     datatypes.JSON `gorm:"type:jsonb"                         json:"detail,omitempty"`
	CreatedAt  time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName 指定表名
func (AuditLog) TableName() string { return "audit_logs" }

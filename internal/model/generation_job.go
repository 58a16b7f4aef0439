package model

import (
	"time"

	"gorm.io/datatypes"
)

// JobStatus 生成任务状态
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// Finished 是否已进入终态
func (s JobStatus) Finished() bool {
	return s == JobSucceeded || s == JobFailed
}

// GenerationJob 课表生成任务，对应 generation_jobs
type GenerationJob struct {
	ID               uint           `gorm:"primaryKey"                          json:"id"`
	ClassID          uint           `gorm:"not null;index"                      json:"class_id"`
	Status           JobStatus      `gorm:"type:varchar(16);not null;default:'queued'" json:"status"`
	RequestedBy      string         `gorm:"type:varchar(100)"                   json:"requested_by,omitempty"`
	PlacedUnits      int            `gorm:"not null;default:0"                  json:"placed_units"`
	UnsatisfiedUnits int            `gorm:"not null;default:0"                  json:"unsatisfied_units"`
	ErrorMessage     *string        `gorm:"type:text"                           json:"error_message"`
	ConflictReport   datatypes.JSON `gorm:"type:jsonb"                          json:"-"`
	CreatedAt        time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"  json:"created_at"`
	StartedAt        *time.Time     `json:"started_at"`
	FinishedAt       *time.Time     `json:"finished_at"`
}

// TableName 指定表名
func (GenerationJob) TableName() string { return "generation_jobs" }

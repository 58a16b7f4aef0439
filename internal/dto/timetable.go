package dto

import (
	"bytes"
	"encoding/json"

	"github.com/RaduRoibu23/timetable-distributed-system/internal/constraint"
	"github.com/RaduRoibu23/timetable-distributed-system/internal/scheduler"
)

// ── 课表生成 DTO ──

// GenerateRequest 生成请求，class_id 与 class_ids 至少提供一个
type GenerateRequest struct {
	ClassID  *uint  `json:"class_id"`
	ClassIDs []uint `json:"class_ids" binding:"omitempty,max=100"`
}

// ClassList 合并 class_id 与 class_ids，去重保序
func (r *GenerateRequest) ClassList() []uint {
	seen := make(map[uint]bool)
	var out []uint
	add := func(id uint) {
		if id == 0 || seen[id] {
			return
		}
		seen[id] = true
		out = append(out, id)
	}
	if r.ClassID != nil {
		add(*r.ClassID)
	}
	for _, id := range r.ClassIDs {
		add(id)
	}
	return out
}

// GenerateResponse 生成请求受理响应
type GenerateResponse struct {
	JobIDs  []uint `json:"job_ids"`
	Message string `json:"message"`
}

// JobResponse 生成任务响应
type JobResponse struct {
	ID               uint    `json:"id"`
	ClassID          uint    `json:"class_id"`
	Status           string  `json:"status"`
	RequestedBy      string  `json:"requested_by,omitempty"`
	PlacedUnits      int     `json:"placed_units"`
	UnsatisfiedUnits int     `json:"unsatisfied_units"`
	ErrorMessage     *string `json:"error_message"`
	CreatedAt        string  `json:"created_at"`
	StartedAt        *string `json:"started_at"`
	FinishedAt       *string `json:"finished_at"`
}

// ConflictReportResponse 任务冲突报告，任务未结束时 finished=false 且列表为空
type ConflictReportResponse struct {
	JobID            uint                 `json:"job_id"`
	ClassID          uint                 `json:"class_id"`
	Status           string               `json:"status"`
	Finished         bool                 `json:"finished"`
	PlacedUnits      int                  `json:"placed_units"`
	UnsatisfiedUnits int                  `json:"unsatisfied_units"`
	Conflicts        []scheduler.Conflict `json:"conflicts"`
	Warnings         []scheduler.Warning  `json:"warnings"`
}

// ── 课表条目 DTO ──

// OptionalID 区分缺省、null 与具体值的 ID 字段
// 缺省: Set=false；null 或 0: Set=true, Value=nil
type OptionalID struct {
	Set   bool
	Value *uint
}

// UnmarshalJSON 仅在字段出现时被调用
func (o *OptionalID) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Value = nil
		return nil
	}
	var v uint
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if v == 0 {
		o.Value = nil
		return nil
	}
	o.Value = &v
	return nil
}

// UpdateEntryRequest 修改课表条目，version 为调用方读到的版本
type UpdateEntryRequest struct {
	Version   int        `json:"version"    binding:"required,min=1"`
	SubjectID *uint      `json:"subject_id" binding:"omitempty,min=1"`
	TeacherID *uint      `json:"teacher_id" binding:"omitempty,min=1"`
	RoomID    OptionalID `json:"room_id"`
}

// CreateEntryRequest 手动新增课表条目
type CreateEntryRequest struct {
	ClassID    uint  `json:"class_id"     binding:"required"`
	SubjectID  uint  `json:"subject_id"   binding:"required"`
	TeacherID  uint  `json:"teacher_id"   binding:"required"`
	RoomID     *uint `json:"room_id"`
	Weekday    int   `json:"weekday"      binding:"weekday"`
	IndexInDay int   `json:"index_in_day" binding:"required,min=1"`
}

// EntryResponse 课表条目响应
type EntryResponse struct {
	ID          uint   `json:"id"`
	ClassID     uint   `json:"class_id"`
	SubjectID   uint   `json:"subject_id"`
	TeacherID   uint   `json:"teacher_id"`
	RoomID      *uint  `json:"room_id"`
	Weekday     int    `json:"weekday"`
	IndexInDay  int    `json:"index_in_day"`
	Version     int    `json:"version"`
	SubjectName string `json:"subject_name,omitempty"`
	TeacherName string `json:"teacher_name,omitempty"`
	RoomName    string `json:"room_name,omitempty"`
}

// DeleteTimetableResponse 删除班级课表响应
type DeleteTimetableResponse struct {
	Deleted int64 `json:"deleted"`
}

// UpdateEntryResult 修改成功响应，附带软约束告警
type UpdateEntryResult struct {
	EntryResponse
	Warnings []constraint.Violation `json:"warnings,omitempty"`
}

// ExportRequest 导出参数
type ExportRequest struct {
	Format string `form:"format" binding:"omitempty,oneof=xlsx ics"`
	Weeks  int    `form:"weeks"  binding:"omitempty,min=1,max=60"`
}

// ── 统计 DTO ──

// StatsResponse 排课统计
type StatsResponse struct {
	Classes            int64            `json:"classes"`
	Entries            int64            `json:"entries"`
	EntriesWithoutRoom int64            `json:"entries_without_room"`
	RequiredHours      int64            `json:"required_hours"`
	ScheduledHours     int64            `json:"scheduled_hours"`
	Coverage           float64          `json:"coverage"`
	JobsByStatus       map[string]int64 `json:"jobs_by_status"`
	UnsatisfiedUnits   int64            `json:"unsatisfied_units"`
	RoomUtilization    float64          `json:"room_utilization"`
	TeacherUtilization float64          `json:"teacher_utilization"`
}

// ── 审计日志 DTO ──

// AuditLogListRequest 审计日志分页参数
type AuditLogListRequest struct {
	Page     int `form:"page"      binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=200"`
}

// AuditLogResponse 审计日志响应
type AuditLogResponse struct {
	ID         uint            `json:"id"`
	Actor      string          `json:"actor"`
	Role       string          `json:"role"`
	Action     string          `json:"action"`
	Resource   string          `json:"resource"`
	ResourceID *uint           `json:"resource_id,omitempty"`
	Detail     json.RawMessage `json:"detail,omitempty"`
	CreatedAt  string          `json:"created_at"`
}

// AuditLogListResponse 审计日志分页响应
type AuditLogListResponse struct {
	Items    []AuditLogResponse `json:"items"`
	Total    int64              `json:"total"`
	Page     int                `json:"page"`
	PageSize int                `json:"page_size"`
}

package service

import (
	"errors"
	"fmt"
)

// ── 通用业务错误 ──

var (
	ErrClassNotFound      = errors.New("班级不存在")
	ErrSubjectNotFound    = errors.New("科目不存在")
	ErrRoomNotFound       = errors.New("教室不存在")
	ErrTeacherNotFound    = errors.New("教师不存在")
	ErrCurriculumNotFound = errors.New("教学计划不存在")
	ErrEntryNotFound      = errors.New("课表条目不存在")
	ErrJobNotFound        = errors.New("生成任务不存在")

	ErrDuplicate        = errors.New("名称或代码已存在")
	ErrInvalidReference = errors.New("引用的班级、科目、教师或教室不存在")
	ErrInvalidSlot      = errors.New("节次超出排课网格")
	ErrForbidden        = errors.New("无权操作该资源")
	ErrInUse            = errors.New("资源仍被课表引用")
)

// InUseError 删除被课表引用的基础数据
type InUseError struct {
	Resource       string
	ID             uint
	References     int64
	CascadeAllowed bool
}

func (e *InUseError) Error() string {
	return fmt.Sprintf("%s %d 仍被 %d 条课表条目引用", e.Resource, e.ID, e.References)
}

// Unwrap 使 errors.Is(err, ErrInUse) 成立
func (e *InUseError) Unwrap() error { return ErrInUse }

package errors

import (
	"errors"
	"fmt"
)

// ErrOptimisticLock 乐观锁冲突：记录已被其他操作修改
var ErrOptimisticLock = errors.New("数据已被其他操作修改，请刷新后重试")

// ErrDuplicate 唯一约束冲突（重复占用同一时间段等）
var ErrDuplicate = errors.New("数据重复，违反唯一约束")

// ErrReferenceMissing 外键引用的记录不存在
var ErrReferenceMissing = errors.New("引用的记录不存在")

// Kind 对外暴露的错误类别
type Kind string

const (
	KindNotFound            Kind = "not_found"
	KindValidation          Kind = "validation_error"
	KindConstraintViolation Kind = "constraint_violation"
	KindVersionConflict     Kind = "version_conflict"
	KindUnsatisfiable       Kind = "unsatisfiable"
	KindConflict            Kind = "conflict"
	KindSystem              Kind = "system_error"
)

// VersionConflictError 携带当前版本号，调用方据此刷新后重试
type VersionConflictError struct {
	EntityID        uint
	ExpectedVersion int
	CurrentVersion  int
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("版本冲突: 期望版本 %d，当前版本 %d", e.ExpectedVersion, e.CurrentVersion)
}

// Unwrap 使 errors.Is(err, ErrOptimisticLock) 成立
func (e *VersionConflictError) Unwrap() error { return ErrOptimisticLock }

// ConstraintError 数据库约束错误，Constraint 为约束或索引名
type ConstraintError struct {
	Err        error
	Constraint string
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("%v: %s", e.Err, e.Constraint)
}

// Unwrap 返回 ErrDuplicate 或 ErrReferenceMissing
func (e *ConstraintError) Unwrap() error { return e.Err }

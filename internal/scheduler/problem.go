package scheduler

import (
	"github.com/RaduRoibu23/timetable-distributed-system/internal/constraint"
)

// Requirement 班级某科目的每周课时需求
type Requirement struct {
	CurriculumID uint
	SubjectID    uint
	SubjectName  string
	Hours        int
}

// ClassInput 待生成的班级
type ClassInput struct {
	ID           uint
	Name         string
	Size         int
	Requirements []Requirement
}

// TeacherInput 教师资质与不可用节次
type TeacherInput struct {
	ID          uint
	SubjectIDs  []uint
	Unavailable []constraint.Slot
}

// RoomInput 教室容量与不可用节次
type RoomInput struct {
	ID          uint
	Capacity    int
	Unavailable []constraint.Slot
}

// FixedEntry 不参与本次生成的已有条目（其他班级的课表）
type FixedEntry struct {
	EntryID   uint
	ClassID   uint
	SubjectID uint
	TeacherID uint
	RoomID    *uint
	Slot      constraint.Slot
}

// Problem 一次生成的完整输入快照
type Problem struct {
	Classes  []ClassInput
	Slots    []constraint.Slot
	Teachers []TeacherInput
	Rooms    []RoomInput
	Fixed    []FixedEntry
}

// Options 搜索参数
type Options struct {
	MaxBacktracks        int  // 每个班级允许的回溯次数上限
	CapacityTracking     bool // 教室容量校验
	CapacityBlocking     bool // 容量不足视为硬约束
	MaxSameSubjectPerDay int  // 同一科目每天最多节数，0 表示不限
	PreferredMaxIndex    int  // 节次 ≤ 该值的时段优先尝试，0 表示严格按规范顺序
}

// DefaultMaxBacktracks 未配置时的回溯上限
const DefaultMaxBacktracks = 20000

// Reason 未满足需求的原因
type Reason string

const (
	ReasonNoRoom        Reason = "no_available_room"
	ReasonNoTeacher     Reason = "no_available_teacher"
	ReasonNoTimeslot    Reason = "no_free_timeslot"
	ReasonSearchLimit   Reason = "search_limit_exceeded"
	ReasonCancelled     Reason = "cancelled"
	ReasonSystemFailure Reason = "system_error"
)

// Assignment 一次放置结果
type Assignment struct {
	ClassID      uint
	CurriculumID uint
	SubjectID    uint
	TeacherID    uint
	RoomID       *uint
	Slot         constraint.Slot
}

// Conflict 一个未能排入的课时单元
type Conflict struct {
	ClassID      uint   `json:"class_id"`
	CurriculumID uint   `json:"curriculum_id"`
	SubjectID    uint   `json:"subject_id"`
	SubjectName  string `json:"subject_name,omitempty"`
	Unit         int    `json:"unit"`
	Reason       Reason `json:"reason"`
	Detail       string `json:"detail"`
}

// Warning 已排入但违反软约束的放置
type Warning struct {
	ClassID   uint            `json:"class_id"`
	SubjectID uint            `json:"subject_id"`
	RoomID    uint            `json:"room_id"`
	Slot      constraint.Slot `json:"slot"`
	Rule      constraint.Rule `json:"rule"`
	Message   string          `json:"message"`
}

// ClassResult 单个班级的生成结果
type ClassResult struct {
	ClassID     uint
	Assignments []Assignment
	Conflicts   []Conflict
	Warnings    []Warning
	Backtracks  int
	LimitHit    bool
}

// Complete 是否覆盖了全部课时
func (r *ClassResult) Complete() bool { return len(r.Conflicts) == 0 }

// Result 一次生成的全部班级结果，按班级 ID 升序
type Result struct {
	Classes []ClassResult
}

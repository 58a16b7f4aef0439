package constraint

import (
	"fmt"
	"strings"
)

// Rule 约束规则标识，对外以 JSON 返回
type Rule string

const (
	RuleTeacherQualified Rule = "teacher_not_qualified"
	RuleTeacherAvailable Rule = "teacher_unavailable"
	RuleRoomAvailable    Rule = "room_unavailable"
	RuleClassFree        Rule = "class_double_booked"
	RuleTeacherFree      Rule = "teacher_double_booked"
	RuleRoomFree         Rule = "room_double_booked"
	RuleRoomCapacity     Rule = "room_capacity"
)

// Violation 一条约束违规
type Violation struct {
	Rule    Rule   `json:"rule"`
	Message string `json:"message"`
	Soft    bool   `json:"soft"`
	EntryID uint   `json:"conflicting_entry_id,omitempty"`
}

// Placement 待校验的放置
// RoomID 为 nil 表示不需要教室；ExcludeEntryID 在冲突检查中被忽略（直接编辑时为条目自身）
type Placement struct {
	ClassID        uint
	SubjectID      uint
	TeacherID      uint
	RoomID         *uint
	Slot           Slot
	ExcludeEntryID uint
}

// Mode 校验模式
type Mode int

const (
	// StopAtFirst 遇到第一条硬约束违规即返回
	StopAtFirst Mode = iota
	// CollectAll 返回全部违规
	CollectAll
)

// Options 可选约束开关
type Options struct {
	CapacityTracking bool // 校验教室容量 ≥ 班级人数
	CapacityBlocking bool // 容量不足是否视为硬约束
}

// Checker 放置合法性校验器
type Checker struct {
	state *State
	opts  Options
}

// NewChecker 基于给定状态创建校验器
func NewChecker(state *State, opts Options) *Checker {
	return &Checker{state: state, opts: opts}
}

// State 返回底层状态，供搜索增量放置/撤销
func (c *Checker) State() *State { return c.state }

// Check 按固定顺序校验全部规则
// 1 教师资质 2 教师可用 3 教室可用 4 班级空闲 5 教师空闲 6 教室空闲 7 教室容量（软约束）
func (c *Checker) Check(p Placement, mode Mode) []Violation {
	var out []Violation
	// 返回 true 表示应立即结束
	add := func(v Violation) bool {
		out = append(out, v)
		return mode == StopAtFirst && !v.Soft
	}

	st := c.state
	if !st.Qualified(p.TeacherID, p.SubjectID) {
		if add(Violation{Rule: RuleTeacherQualified, Message: fmt.Sprintf("教师 %d 不能教授科目 %d", p.TeacherID, p.SubjectID)}) {
			return out
		}
	}
	if !st.TeacherAvailable(p.TeacherID, p.Slot) {
		if add(Violation{Rule: RuleTeacherAvailable, Message: fmt.Sprintf("教师 %d 在 %s 不可用", p.TeacherID, slotLabel(p.Slot))}) {
			return out
		}
	}
	if p.RoomID != nil && !st.RoomAvailable(*p.RoomID, p.Slot) {
		if add(Violation{Rule: RuleRoomAvailable, Message: fmt.Sprintf("教室 %d 在 %s 不可用", *p.RoomID, slotLabel(p.Slot))}) {
			return out
		}
	}
	if id, busy := st.ClassOccupant(p.ClassID, p.Slot, p.ExcludeEntryID); busy {
		if add(Violation{Rule: RuleClassFree, Message: fmt.Sprintf("班级 %d 在 %s 已有课程", p.ClassID, slotLabel(p.Slot)), EntryID: id}) {
			return out
		}
	}
	if id, busy := st.TeacherOccupant(p.TeacherID, p.Slot, p.ExcludeEntryID); busy {
		if add(Violation{Rule: RuleTeacherFree, Message: fmt.Sprintf("教师 %d 在 %s 已有课程", p.TeacherID, slotLabel(p.Slot)), EntryID: id}) {
			return out
		}
	}
	if p.RoomID != nil {
		if id, busy := st.RoomOccupant(*p.RoomID, p.Slot, p.ExcludeEntryID); busy {
			if add(Violation{Rule: RuleRoomFree, Message: fmt.Sprintf("教室 %d 在 %s 已被占用", *p.RoomID, slotLabel(p.Slot)), EntryID: id}) {
				return out
			}
		}
	}
	if v, ok := c.capacityViolation(p); ok {
		add(v)
	}
	return out
}

// CanPlace 是否不存在硬约束违规
func (c *Checker) CanPlace(p Placement) bool {
	return len(Hard(c.Check(p, StopAtFirst))) == 0
}

func (c *Checker) capacityViolation(p Placement) (Violation, bool) {
	if !c.opts.CapacityTracking || p.RoomID == nil {
		return Violation{}, false
	}
	capacity, ok := c.state.RoomCapacity(*p.RoomID)
	if !ok {
		return Violation{}, false
	}
	size, ok := c.state.ClassSize(p.ClassID)
	if !ok || capacity >= size {
		return Violation{}, false
	}
	return Violation{
		Rule:    RuleRoomCapacity,
		Message: fmt.Sprintf("教室 %d 容量 %d 小于班级 %d 人数 %d", *p.RoomID, capacity, p.ClassID, size),
		Soft:    !c.opts.CapacityBlocking,
	}, true
}

// Hard 过滤出硬约束违规
func Hard(vs []Violation) []Violation {
	var out []Violation
	for _, v := range vs {
		if !v.Soft {
			out = append(out, v)
		}
	}
	return out
}

// Soft 过滤出软约束违规
func Soft(vs []Violation) []Violation {
	var out []Violation
	for _, v := range vs {
		if v.Soft {
			out = append(out, v)
		}
	}
	return out
}

var weekdayNames = []string{"周一", "周二", "周三", "周四", "周五", "周六", "周日"}

func slotLabel(s Slot) string {
	day := fmt.Sprintf("星期%d", s.Weekday)
	if s.Weekday >= 0 && s.Weekday < len(weekdayNames) {
		day = weekdayNames[s.Weekday]
	}
	return fmt.Sprintf("%s第%d节", day, s.Index)
}

// ViolationError 放置违反硬约束
type ViolationError struct {
	Violations []Violation
}

func (e *ViolationError) Error() string {
	msgs := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		msgs = append(msgs, v.Message)
	}
	return "违反排课约束: " + strings.Join(msgs, "; ")
}

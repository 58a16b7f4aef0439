package constraint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uptr(v uint) *uint { return &v }

var mon1 = Slot{Weekday: 0, Index: 1}

// newFixture 班级 1（30 人），教师 10 教科目 100，教室 20（容量 25）、21（容量 40）
func newFixture() *State {
	st := NewState()
	st.SetClassSize(1, 30)
	st.SetClassSize(2, 20)
	st.SetTeacherSubjects(10, []uint{100})
	st.SetTeacherSubjects(11, []uint{100, 101})
	st.SetRoomCapacity(20, 25)
	st.SetRoomCapacity(21, 40)
	return st
}

func TestCheck_ValidPlacement(t *testing.T) {
	c := NewChecker(newFixture(), Options{})
	p := Placement{ClassID: 1, SubjectID: 100, TeacherID: 10, RoomID: uptr(21), Slot: mon1}

	assert.Empty(t, c.Check(p, CollectAll))
	assert.True(t, c.CanPlace(p))
}

func TestCheck_TeacherNotQualified(t *testing.T) {
	c := NewChecker(newFixture(), Options{})
	vs := c.Check(Placement{ClassID: 1, SubjectID: 101, TeacherID: 10, Slot: mon1}, StopAtFirst)

	require.Len(t, vs, 1)
	assert.Equal(t, RuleTeacherQualified, vs[0].Rule)
}

func TestCheck_AvailabilityDefaultsToAvailable(t *testing.T) {
	st := newFixture()
	st.SetTeacherAvailability(10, Slot{Weekday: 1, Index: 1}, false)
	c := NewChecker(st, Options{})

	assert.True(t, c.CanPlace(Placement{ClassID: 1, SubjectID: 100, TeacherID: 10, Slot: mon1}))
	assert.False(t, c.CanPlace(Placement{ClassID: 1, SubjectID: 100, TeacherID: 10, Slot: Slot{Weekday: 1, Index: 1}}))

	st.SetTeacherAvailability(10, Slot{Weekday: 1, Index: 1}, true)
	assert.True(t, c.CanPlace(Placement{ClassID: 1, SubjectID: 100, TeacherID: 10, Slot: Slot{Weekday: 1, Index: 1}}))
}

func TestCheck_RoomUnavailableOnlyWhenRoomGiven(t *testing.T) {
	st := newFixture()
	st.SetRoomAvailability(21, mon1, false)
	c := NewChecker(st, Options{})

	vs := c.Check(Placement{ClassID: 1, SubjectID: 100, TeacherID: 10, RoomID: uptr(21), Slot: mon1}, StopAtFirst)
	require.Len(t, vs, 1)
	assert.Equal(t, RuleRoomAvailable, vs[0].Rule)

	assert.True(t, c.CanPlace(Placement{ClassID: 1, SubjectID: 100, TeacherID: 10, Slot: mon1}))
}

func TestCheck_DoubleBookingAndExclusion(t *testing.T) {
	st := newFixture()
	st.Place(Occupant{EntryID: 5, ClassID: 1, SubjectID: 100, TeacherID: 10, RoomID: uptr(21), Slot: mon1})
	c := NewChecker(st, Options{})

	// 另一个班级使用同一教师和教室
	vs := c.Check(Placement{ClassID: 2, SubjectID: 100, TeacherID: 10, RoomID: uptr(21), Slot: mon1}, CollectAll)
	rules := make([]Rule, 0, len(vs))
	for _, v := range vs {
		rules = append(rules, v.Rule)
	}
	assert.Equal(t, []Rule{RuleTeacherFree, RuleRoomFree}, rules)
	assert.Equal(t, uint(5), vs[0].EntryID)

	// 同一班级换科目：班级冲突
	vs = c.Check(Placement{ClassID: 1, SubjectID: 101, TeacherID: 11, Slot: mon1}, StopAtFirst)
	require.Len(t, vs, 1)
	assert.Equal(t, RuleClassFree, vs[0].Rule)

	// 编辑条目自身时排除
	assert.True(t, c.CanPlace(Placement{ClassID: 1, SubjectID: 100, TeacherID: 10, RoomID: uptr(21), Slot: mon1, ExcludeEntryID: 5}))
}

func TestCheck_StopAtFirstRespectsOrder(t *testing.T) {
	st := newFixture()
	st.SetTeacherAvailability(10, mon1, false)
	st.Place(Occupant{EntryID: 7, ClassID: 1, SubjectID: 100, TeacherID: 11, Slot: mon1})
	c := NewChecker(st, Options{})

	p := Placement{ClassID: 1, SubjectID: 101, TeacherID: 10, Slot: mon1}
	first := c.Check(p, StopAtFirst)
	require.Len(t, first, 1)
	assert.Equal(t, RuleTeacherQualified, first[0].Rule)

	all := c.Check(p, CollectAll)
	require.Len(t, all, 3)
	assert.Equal(t, RuleTeacherAvailable, all[1].Rule)
	assert.Equal(t, RuleClassFree, all[2].Rule)
}

func TestCheck_CapacitySoftByDefault(t *testing.T) {
	st := newFixture()
	p := Placement{ClassID: 1, SubjectID: 100, TeacherID: 10, RoomID: uptr(20), Slot: mon1}

	off := NewChecker(st, Options{})
	assert.Empty(t, off.Check(p, CollectAll))

	soft := NewChecker(st, Options{CapacityTracking: true})
	vs := soft.Check(p, CollectAll)
	require.Len(t, vs, 1)
	assert.Equal(t, RuleRoomCapacity, vs[0].Rule)
	assert.True(t, vs[0].Soft)
	assert.True(t, soft.CanPlace(p))

	blocking := NewChecker(st, Options{CapacityTracking: true, CapacityBlocking: true})
	assert.False(t, blocking.CanPlace(p))
}

func TestRemove_OnlyOwnOccupancy(t *testing.T) {
	st := newFixture()
	st.Place(Occupant{EntryID: 5, ClassID: 1, TeacherID: 10, Slot: mon1})
	st.Remove(Occupant{EntryID: 6, ClassID: 1, TeacherID: 10, Slot: mon1})

	_, busy := st.ClassOccupant(1, mon1, 0)
	assert.True(t, busy)

	st.Remove(Occupant{EntryID: 5, ClassID: 1, TeacherID: 10, Slot: mon1})
	_, busy = st.ClassOccupant(1, mon1, 0)
	assert.False(t, busy)
}

func TestViolationError_Message(t *testing.T) {
	err := &ViolationError{Violations: []Violation{{Rule: RuleRoomFree, Message: "a"}, {Rule: RuleClassFree, Message: "b"}}}
	assert.Equal(t, "违反排课约束: a; b", err.Error())
}

func TestSlotBefore(t *testing.T) {
	assert.True(t, Slot{0, 7}.Before(Slot{1, 1}))
	assert.True(t, Slot{1, 1}.Before(Slot{1, 2}))
	assert.False(t, Slot{1, 2}.Before(Slot{1, 2}))
}

package scheduler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RaduRoibu23/timetable-distributed-system/internal/constraint"
)

func grid(days, perDay int) []constraint.Slot {
	var out []constraint.Slot
	for d := 0; d < days; d++ {
		for i := 1; i <= perDay; i++ {
			out = append(out, constraint.Slot{Weekday: d, Index: i})
		}
	}
	return out
}

// allExcept 返回 grid 中除 keep 以外的所有时段，用作不可用列表
func allExcept(all []constraint.Slot, keep ...constraint.Slot) []constraint.Slot {
	k := make(map[constraint.Slot]bool, len(keep))
	for _, s := range keep {
		k[s] = true
	}
	var out []constraint.Slot
	for _, s := range all {
		if !k[s] {
			out = append(out, s)
		}
	}
	return out
}

var (
	mon1 = constraint.Slot{Weekday: 0, Index: 1}
	mon2 = constraint.Slot{Weekday: 0, Index: 2}
	tue1 = constraint.Slot{Weekday: 1, Index: 1}
)

const (
	classC1 uint = 1
	math    uint = 100
	teachT1 uint = 10
	roomR1  uint = 20
)

func defaultOpts() Options {
	return Options{
		MaxBacktracks:        1000,
		CapacityTracking:     true,
		MaxSameSubjectPerDay: 2,
		PreferredMaxIndex:    5,
	}
}

func mathProblem(t1Available ...constraint.Slot) Problem {
	slots := grid(5, 7)
	return Problem{
		Classes: []ClassInput{{
			ID:   classC1,
			Name: "C1",
			Size: 25,
			Requirements: []Requirement{
				{CurriculumID: 1, SubjectID: math, SubjectName: "Math", Hours: 2},
			},
		}},
		Slots:    slots,
		Teachers: []TeacherInput{{ID: teachT1, SubjectIDs: []uint{math}, Unavailable: allExcept(slots, t1Available...)}},
		Rooms:    []RoomInput{{ID: roomR1, Capacity: 30}},
	}
}

func TestGenerate_TwoAvailableSlots(t *testing.T) {
	res, err := Generate(context.Background(), mathProblem(mon1, tue1), defaultOpts())
	require.NoError(t, err)
	require.Len(t, res.Classes, 1)

	cr := res.Classes[0]
	assert.True(t, cr.Complete())
	require.Len(t, cr.Assignments, 2)
	assert.Equal(t, mon1, cr.Assignments[0].Slot)
	assert.Equal(t, tue1, cr.Assignments[1].Slot)
	for _, a := range cr.Assignments {
		assert.Equal(t, teachT1, a.TeacherID)
		require.NotNil(t, a.RoomID)
		assert.Equal(t, roomR1, *a.RoomID)
		assert.Equal(t, math, a.SubjectID)
	}
}

func TestGenerate_OneAvailableSlotReportsUnit(t *testing.T) {
	res, err := Generate(context.Background(), mathProblem(mon1), defaultOpts())
	require.NoError(t, err)

	cr := res.Classes[0]
	require.Len(t, cr.Assignments, 1)
	assert.Equal(t, mon1, cr.Assignments[0].Slot)

	require.Len(t, cr.Conflicts, 1)
	c := cr.Conflicts[0]
	assert.Equal(t, classC1, c.ClassID)
	assert.Equal(t, math, c.SubjectID)
	assert.Equal(t, uint(1), c.CurriculumID)
	assert.Equal(t, 2, c.Unit)
	assert.Equal(t, ReasonNoTeacher, c.Reason)
	assert.False(t, cr.Complete())
}

func TestGenerate_NoQualifiedTeacher(t *testing.T) {
	p := mathProblem(mon1, tue1)
	p.Teachers[0].SubjectIDs = []uint{999}

	res, err := Generate(context.Background(), p, defaultOpts())
	require.NoError(t, err)

	cr := res.Classes[0]
	assert.Empty(t, cr.Assignments)
	require.Len(t, cr.Conflicts, 2)
	assert.Equal(t, ReasonNoTeacher, cr.Conflicts[0].Reason)
	assert.Equal(t, 1, cr.Conflicts[0].Unit)
	assert.Equal(t, 2, cr.Conflicts[1].Unit)
}

func TestGenerate_NoAvailableRoom(t *testing.T) {
	p := mathProblem(mon1, tue1)
	p.Rooms[0].Unavailable = p.Slots

	res, err := Generate(context.Background(), p, defaultOpts())
	require.NoError(t, err)

	cr := res.Classes[0]
	assert.Empty(t, cr.Assignments)
	require.Len(t, cr.Conflicts, 2)
	assert.Equal(t, ReasonNoRoom, cr.Conflicts[0].Reason)
}

func TestGenerate_NoRoomsMeansNoRoomRequired(t *testing.T) {
	p := mathProblem(mon1, tue1)
	p.Rooms = nil

	res, err := Generate(context.Background(), p, defaultOpts())
	require.NoError(t, err)

	cr := res.Classes[0]
	require.Len(t, cr.Assignments, 2)
	assert.Nil(t, cr.Assignments[0].RoomID)
}

func TestGenerate_RespectsOtherClassesEntries(t *testing.T) {
	p := mathProblem(mon1, tue1)
	p.Classes[0].Requirements[0].Hours = 1
	room := roomR1
	p.Fixed = []FixedEntry{{EntryID: 9, ClassID: 2, SubjectID: math, TeacherID: teachT1, RoomID: &room, Slot: mon1}}

	res, err := Generate(context.Background(), p, defaultOpts())
	require.NoError(t, err)

	cr := res.Classes[0]
	require.Len(t, cr.Assignments, 1)
	assert.Equal(t, tue1, cr.Assignments[0].Slot)
}

func TestGenerate_IgnoresOwnExistingEntries(t *testing.T) {
	p := mathProblem(mon1, tue1)
	room := roomR1
	p.Fixed = []FixedEntry{
		{EntryID: 1, ClassID: classC1, SubjectID: math, TeacherID: teachT1, RoomID: &room, Slot: mon1},
		{EntryID: 2, ClassID: classC1, SubjectID: math, TeacherID: teachT1, RoomID: &room, Slot: tue1},
	}

	res, err := Generate(context.Background(), p, defaultOpts())
	require.NoError(t, err)
	assert.True(t, res.Classes[0].Complete())
	assert.Len(t, res.Classes[0].Assignments, 2)
}

func TestGenerate_PrefersEarlySlots(t *testing.T) {
	mon6 := constraint.Slot{Weekday: 0, Index: 6}
	p := mathProblem(mon6, tue1)
	p.Classes[0].Requirements[0].Hours = 1

	res, err := Generate(context.Background(), p, defaultOpts())
	require.NoError(t, err)
	require.Len(t, res.Classes[0].Assignments, 1)
	assert.Equal(t, tue1, res.Classes[0].Assignments[0].Slot)

	strict := defaultOpts()
	strict.PreferredMaxIndex = 0
	res, err = Generate(context.Background(), p, strict)
	require.NoError(t, err)
	assert.Equal(t, mon6, res.Classes[0].Assignments[0].Slot)
}

func TestGenerate_MaxSameSubjectPerDay(t *testing.T) {
	slots := grid(2, 7)
	p := Problem{
		Classes:  []ClassInput{{ID: classC1, Requirements: []Requirement{{CurriculumID: 1, SubjectID: math, Hours: 3}}}},
		Slots:    slots,
		Teachers: []TeacherInput{{ID: teachT1, SubjectIDs: []uint{math}}},
	}

	res, err := Generate(context.Background(), p, defaultOpts())
	require.NoError(t, err)

	got := make([]constraint.Slot, 0, 3)
	for _, a := range res.Classes[0].Assignments {
		got = append(got, a.Slot)
	}
	assert.Equal(t, []constraint.Slot{mon1, mon2, tue1}, got)
}

func TestGenerate_CapacityWarningAndBlocking(t *testing.T) {
	p := mathProblem(mon1, tue1)
	p.Classes[0].Size = 40

	res, err := Generate(context.Background(), p, defaultOpts())
	require.NoError(t, err)
	cr := res.Classes[0]
	assert.Len(t, cr.Assignments, 2)
	require.Len(t, cr.Warnings, 2)
	assert.Equal(t, constraint.RuleRoomCapacity, cr.Warnings[0].Rule)
	assert.Equal(t, roomR1, cr.Warnings[0].RoomID)

	blocking := defaultOpts()
	blocking.CapacityBlocking = true
	res, err = Generate(context.Background(), p, blocking)
	require.NoError(t, err)
	cr = res.Classes[0]
	assert.Empty(t, cr.Assignments)
	require.Len(t, cr.Conflicts, 2)
	assert.Equal(t, ReasonNoRoom, cr.Conflicts[0].Reason)
}

func TestGenerate_CoverageAndNoDoubleBooking(t *testing.T) {
	slots := grid(5, 6)
	subjects := []uint{100, 101, 102, 103, 104}
	var reqs1, reqs2 []Requirement
	for i, s := range subjects {
		reqs1 = append(reqs1, Requirement{CurriculumID: uint(10 + i), SubjectID: s, Hours: 2 + i%3})
		reqs2 = append(reqs2, Requirement{CurriculumID: uint(20 + i), SubjectID: s, Hours: 3 - i%2})
	}
	p := Problem{
		Classes: []ClassInput{
			{ID: 1, Size: 20, Requirements: reqs1},
			{ID: 2, Size: 28, Requirements: reqs2},
		},
		Slots: slots,
		Teachers: []TeacherInput{
			{ID: 10, SubjectIDs: []uint{100, 101}},
			{ID: 11, SubjectIDs: []uint{101, 102}, Unavailable: []constraint.Slot{mon1, mon2}},
			{ID: 12, SubjectIDs: []uint{103}},
			{ID: 13, SubjectIDs: []uint{104, 100}},
		},
		Rooms: []RoomInput{
			{ID: 20, Capacity: 30},
			{ID: 21, Capacity: 25, Unavailable: []constraint.Slot{tue1}},
		},
	}

	res, err := Generate(context.Background(), p, defaultOpts())
	require.NoError(t, err)
	require.Len(t, res.Classes, 2)

	type key struct {
		id   uint
		slot constraint.Slot
	}
	classOcc := map[key]bool{}
	teacherOcc := map[key]bool{}
	roomOcc := map[key]bool{}
	for ci, cr := range res.Classes {
		assert.True(t, cr.Complete(), "class %d conflicts: %v", cr.ClassID, cr.Conflicts)

		perSubject := map[uint]map[constraint.Slot]bool{}
		for _, a := range cr.Assignments {
			k := key{a.ClassID, a.Slot}
			assert.False(t, classOcc[k], "班级重复占用 %v", k)
			classOcc[k] = true
			k = key{a.TeacherID, a.Slot}
			assert.False(t, teacherOcc[k], "教师重复占用 %v", k)
			teacherOcc[k] = true
			if a.RoomID != nil {
				k = key{*a.RoomID, a.Slot}
				assert.False(t, roomOcc[k], "教室重复占用 %v", k)
				roomOcc[k] = true
			}
			if perSubject[a.SubjectID] == nil {
				perSubject[a.SubjectID] = map[constraint.Slot]bool{}
			}
			perSubject[a.SubjectID][a.Slot] = true
		}
		for _, r := range p.Classes[ci].Requirements {
			assert.Len(t, perSubject[r.SubjectID], r.Hours, "class %d subject %d", cr.ClassID, r.SubjectID)
		}
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	p := mathProblem(mon1, tue1, mon2)
	p.Classes[0].Requirements = append(p.Classes[0].Requirements, Requirement{CurriculumID: 2, SubjectID: 101, Hours: 3})
	p.Teachers = append(p.Teachers, TeacherInput{ID: 11, SubjectIDs: []uint{101}})

	first, err := Generate(context.Background(), p, defaultOpts())
	require.NoError(t, err)
	second, err := Generate(context.Background(), p, defaultOpts())
	require.NoError(t, err)

	assert.Equal(t, first.Classes[0].Assignments, second.Classes[0].Assignments)
	assert.Equal(t, first.Classes[0].Conflicts, second.Classes[0].Conflicts)
}

func TestGenerate_OverConstrainedTerminates(t *testing.T) {
	slots := grid(5, 2)
	var reqs []Requirement
	var subjects []uint
	for i := 0; i < 10; i++ {
		s := uint(200 + i)
		subjects = append(subjects, s)
		reqs = append(reqs, Requirement{CurriculumID: uint(i + 1), SubjectID: s, Hours: 3})
	}
	p := Problem{
		Classes:  []ClassInput{{ID: classC1, Requirements: reqs}},
		Slots:    slots,
		Teachers: []TeacherInput{{ID: teachT1, SubjectIDs: subjects}},
	}
	opts := defaultOpts()
	opts.MaxBacktracks = 500
	opts.MaxSameSubjectPerDay = 0

	res, err := Generate(context.Background(), p, opts)
	require.NoError(t, err)

	cr := res.Classes[0]
	assert.True(t, cr.LimitHit)
	assert.LessOrEqual(t, cr.Backtracks, 500)
	assert.Len(t, cr.Assignments, 10)
	require.Len(t, cr.Conflicts, 20)
	assert.Equal(t, ReasonNoTimeslot, cr.Conflicts[0].Reason)
}

func TestGenerate_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Generate(ctx, mathProblem(mon1, tue1), defaultOpts())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOrderSlots(t *testing.T) {
	in := []constraint.Slot{{Weekday: 1, Index: 6}, {Weekday: 0, Index: 7}, {Weekday: 1, Index: 1}, {Weekday: 0, Index: 1}, {Weekday: 0, Index: 1}}

	assert.Equal(t, []constraint.Slot{{Weekday: 0, Index: 1}, {Weekday: 1, Index: 1}, {Weekday: 0, Index: 7}, {Weekday: 1, Index: 6}}, orderSlots(in, 5))
	assert.Equal(t, []constraint.Slot{{Weekday: 0, Index: 1}, {Weekday: 0, Index: 7}, {Weekday: 1, Index: 1}, {Weekday: 1, Index: 6}}, orderSlots(in, 0))
}

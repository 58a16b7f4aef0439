package snapshot

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"gorm.io/gorm"

	"github.com/RaduRoibu23/timetable-distributed-system/internal/constraint"
	"github.com/RaduRoibu23/timetable-distributed-system/internal/model"
	"github.com/RaduRoibu23/timetable-distributed-system/internal/repository"
	"github.com/RaduRoibu23/timetable-distributed-system/internal/scheduler"
)

// ErrClassMissing 快照中请求的班级不存在
var ErrClassMissing = errors.New("班级不存在")

// Loader 从数据库读取一次排课所需的完整状态
type Loader struct {
	repo *repository.Repository
	grid Grid
}

// NewLoader 创建 Loader
func NewLoader(repo *repository.Repository, grid Grid) *Loader {
	return &Loader{repo: repo, grid: grid}
}

// Grid 返回排课网格
func (l *Loader) Grid() Grid { return l.grid }

// Load 读取 classIDs 的教学计划以及全部教师、教室、可用性和已有条目
// classIDs 中任一班级不存在时返回 ErrClassMissing
func (l *Loader) Load(ctx context.Context, classIDs []uint) (*scheduler.Problem, error) {
	p := &scheduler.Problem{Slots: l.grid.Slots()}

	for _, id := range classIDs {
		class, err := l.repo.Class.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("%w: %d", ErrClassMissing, id)
			}
			return nil, err
		}
		curricula, err := l.repo.Curriculum.List(ctx, &id)
		if err != nil {
			return nil, err
		}
		p.Classes = append(p.Classes, classInput(class, curricula))
	}

	teachers, err := l.repo.Teacher.List(ctx)
	if err != nil {
		return nil, err
	}
	rooms, err := l.repo.Room.List(ctx)
	if err != nil {
		return nil, err
	}
	teacherOff, err := l.repo.Availability.ListTeacherUnavailable(ctx)
	if err != nil {
		return nil, err
	}
	roomOff, err := l.repo.Availability.ListRoomUnavailable(ctx)
	if err != nil {
		return nil, err
	}

	offByTeacher := make(map[uint][]constraint.Slot)
	for _, a := range teacherOff {
		offByTeacher[a.TeacherID] = append(offByTeacher[a.TeacherID], constraint.Slot{Weekday: a.Weekday, Index: a.IndexInDay})
	}
	for i := range teachers {
		t := &teachers[i]
		p.Teachers = append(p.Teachers, scheduler.TeacherInput{
			ID:          t.ID,
			SubjectIDs:  t.SubjectIDs(),
			Unavailable: offByTeacher[t.ID],
		})
	}

	offByRoom := make(map[uint][]constraint.Slot)
	for _, a := range roomOff {
		offByRoom[a.RoomID] = append(offByRoom[a.RoomID], constraint.Slot{Weekday: a.Weekday, Index: a.IndexInDay})
	}
	for _, r := range rooms {
		p.Rooms = append(p.Rooms, scheduler.RoomInput{
			ID:          r.ID,
			Capacity:    r.Capacity,
			Unavailable: offByRoom[r.ID],
		})
	}

	entries, err := l.repo.TimetableEntry.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		p.Fixed = append(p.Fixed, FixedFromEntry(&e))
	}

	return p, nil
}

// State 构建包含全部已有条目的占用状态，用于单条目编辑的约束校验
func (l *Loader) State(ctx context.Context, classID uint) (*constraint.State, error) {
	p, err := l.Load(ctx, []uint{classID})
	if err != nil {
		return nil, err
	}
	return scheduler.NewState(*p, nil), nil
}

// FixedFromEntry 将已存储条目转换为快照中的固定占用
func FixedFromEntry(e *model.TimetableEntry) scheduler.FixedEntry {
	return scheduler.FixedEntry{
		EntryID:   e.ID,
		ClassID:   e.ClassID,
		SubjectID: e.SubjectID,
		TeacherID: e.TeacherID,
		RoomID:    e.RoomID,
		Slot:      constraint.Slot{Weekday: e.Weekday, Index: e.IndexInDay},
	}
}

func classInput(class *model.SchoolClass, curricula []model.Curriculum) scheduler.ClassInput {
	in := scheduler.ClassInput{ID: class.ID, Name: class.Name, Size: class.Size}
	for _, c := range curricula {
		req := scheduler.Requirement{
			CurriculumID: c.ID,
			SubjectID:    c.SubjectID,
			Hours:        c.HoursPerWeek,
		}
		if c.Subject != nil {
			req.SubjectName = c.Subject.Name
		}
		in.Requirements = append(in.Requirements, req)
	}
	sort.Slice(in.Requirements, func(i, j int) bool {
		return in.Requirements[i].SubjectID < in.Requirements[j].SubjectID
	})
	return in
}

// Package memrepo 提供 repository 接口的内存实现，供单元测试使用
// 行为与 PostgreSQL 实现保持一致：未找到返回 gorm.ErrRecordNotFound，
// 唯一约束冲突返回 *pkgerrors.ConstraintError
package memrepo

import (
	"context"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/RaduRoibu23/timetable-distributed-system/internal/model"
	"github.com/RaduRoibu23/timetable-distributed-system/internal/repository"
	pkgerrors "github.com/RaduRoibu23/timetable-distributed-system/pkg/errors"
)

// Store 所有内存表，所有访问经由同一把锁
type Store struct {
	mu sync.Mutex

	nextID uint

	Classes       map[uint]*model.SchoolClass
	Subjects      map[uint]*model.Subject
	Teachers      map[uint]*model.Teacher
	Rooms         map[uint]*model.Room
	Curricula     map[uint]*model.Curriculum
	TimeSlots     []model.TimeSlot
	TeacherAvail  map[uint]*model.TeacherAvailability
	RoomAvail     map[uint]*model.RoomAvailability
	Entries       map[uint]*model.TimetableEntry
	Jobs          map[uint]*model.GenerationJob
	AuditLogs     []model.AuditLog
	teacherSubjID map[uint][]uint

	// ReplaceHook 在 ReplaceForClass 写入前调用，返回非 nil 时中止写入
	ReplaceHook func(classID uint, attempt int) error
	replaceN    map[uint]int
}

// New 创建空的 Store 与绑定它的 Repository 聚合
func New() (*Store, *repository.Repository) {
	s := &Store{
		Classes:       make(map[uint]*model.SchoolClass),
		Subjects:      make(map[uint]*model.Subject),
		Teachers:      make(map[uint]*model.Teacher),
		Rooms:         make(map[uint]*model.Room),
		Curricula:     make(map[uint]*model.Curriculum),
		TeacherAvail:  make(map[uint]*model.TeacherAvailability),
		RoomAvail:     make(map[uint]*model.RoomAvailability),
		Entries:       make(map[uint]*model.TimetableEntry),
		Jobs:          make(map[uint]*model.GenerationJob),
		teacherSubjID: make(map[uint][]uint),
		replaceN:      make(map[uint]int),
	}
	repo := &repository.Repository{
		Class:          &classRepo{s},
		Subject:        &subjectRepo{s},
		Teacher:        &teacherRepo{s},
		Room:           &roomRepo{s},
		Curriculum:     &curriculumRepo{s},
		TimeSlot:       &timeSlotRepo{s},
		Availability:   &availabilityRepo{s},
		TimetableEntry: &entryRepo{s},
		Job:            &jobRepo{s},
		AuditLog:       &auditRepo{s},
	}
	return s, repo
}

func (s *Store) id() uint {
	s.nextID++
	return s.nextID
}

// ── 测试数据构造 ──

// AddClass 添加班级
func (s *Store) AddClass(name string, size int) uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.id()
	s.Classes[id] = &model.SchoolClass{ID: id, Name: name, Size: size}
	return id
}

// AddSubject 添加科目
func (s *Store) AddSubject(name, code string) uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.id()
	s.Subjects[id] = &model.Subject{ID: id, Name: name, ShortCode: code}
	return id
}

// AddTeacher 添加教师及可授科目
func (s *Store) AddTeacher(name string, externalID *string, subjectIDs ...uint) uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.id()
	s.Teachers[id] = &model.Teacher{ID: id, Name: name, ExternalID: externalID}
	s.teacherSubjID[id] = append([]uint(nil), subjectIDs...)
	return id
}

// AddRoom 添加教室
func (s *Store) AddRoom(name string, capacity int) uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.id()
	s.Rooms[id] = &model.Room{ID: id, Name: name, Capacity: capacity}
	return id
}

// AddCurriculum 添加教学计划
func (s *Store) AddCurriculum(classID, subjectID uint, hours int) uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.id()
	s.Curricula[id] = &model.Curriculum{ID: id, ClassID: classID, SubjectID: subjectID, HoursPerWeek: hours}
	return id
}

// AddEntry 直接写入课表条目（不做约束校验），版本缺省为 1
func (s *Store) AddEntry(e model.TimetableEntry) uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = s.id()
	if e.Version == 0 {
		e.Version = 1
	}
	s.Entries[e.ID] = &e
	return e.ID
}

// BumpVersion 模拟并发写入，条目版本加一
func (s *Store) BumpVersion(entryID uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.Entries[entryID]; ok {
		e.Version++
	}
}

// SetTeacherUnavailable 标记教师某节次不可用
func (s *Store) SetTeacherUnavailable(teacherID uint, weekday, index int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.id()
	s.TeacherAvail[id] = &model.TeacherAvailability{ID: id, TeacherID: teacherID, Weekday: weekday, IndexInDay: index}
}

// AddJob 直接写入任务记录
func (s *Store) AddJob(j model.GenerationJob) uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	j.ID = s.id()
	if j.CreatedAt.IsZero() {
		j.CreatedAt = time.Now()
	}
	s.Jobs[j.ID] = &j
	return j.ID
}

// ReplaceCalls 返回班级整体替换被调用的次数
func (s *Store) ReplaceCalls(classID uint) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replaceN[classID]
}

// EntriesOf 返回班级条目快照，按节次排序
func (s *Store) EntriesOf(classID uint) []model.TimetableEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entriesOf(classID)
}

// JobSnapshot 返回任务副本
func (s *Store) JobSnapshot(id uint) (model.GenerationJob, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.Jobs[id]
	if !ok {
		return model.GenerationJob{}, false
	}
	return *j, true
}

// Audit 返回审计日志副本
func (s *Store) Audit() []model.AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.AuditLog(nil), s.AuditLogs...)
}

func (s *Store) entriesOf(classID uint) []model.TimetableEntry {
	var out []model.TimetableEntry
	for _, e := range s.Entries {
		if e.ClassID == classID {
			out = append(out, s.withRelations(*e))
		}
	}
	sortEntries(out)
	return out
}

func (s *Store) withRelations(e model.TimetableEntry) model.TimetableEntry {
	if sub, ok := s.Subjects[e.SubjectID]; ok {
		c := *sub
		e.Subject = &c
	}
	if t, ok := s.Teachers[e.TeacherID]; ok {
		c := *t
		e.Teacher = &c
	}
	e.Room = nil
	if e.RoomID != nil {
		if r, ok := s.Rooms[*e.RoomID]; ok {
			c := *r
			e.Room = &c
		}
	}
	return e
}

func sortEntries(list []model.TimetableEntry) {
	sort.Slice(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.ClassID != b.ClassID {
			return a.ClassID < b.ClassID
		}
		if a.Weekday != b.Weekday {
			return a.Weekday < b.Weekday
		}
		return a.IndexInDay < b.IndexInDay
	})
}

// conflictFor 检查条目是否与已有条目占用同一班级、教师或教室节次
func (s *Store) conflictFor(e *model.TimetableEntry, ignore map[uint]bool) error {
	for _, o := range s.Entries {
		if o.ID == e.ID || ignore[o.ID] || o.Weekday != e.Weekday || o.IndexInDay != e.IndexInDay {
			continue
		}
		switch {
		case o.ClassID == e.ClassID:
			return &pkgerrors.ConstraintError{Err: pkgerrors.ErrDuplicate, Constraint: "uq_entries_class_slot"}
		case o.TeacherID == e.TeacherID:
			return &pkgerrors.ConstraintError{Err: pkgerrors.ErrDuplicate, Constraint: "uq_entries_teacher_slot"}
		case o.RoomID != nil && e.RoomID != nil && *o.RoomID == *e.RoomID:
			return &pkgerrors.ConstraintError{Err: pkgerrors.ErrDuplicate, Constraint: "uq_entries_room_slot"}
		}
	}
	return nil
}

// ── Class ──

type classRepo struct{ s *Store }

func (r *classRepo) Create(_ context.Context, c *model.SchoolClass) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, o := range r.s.Classes {
		if o.Name == c.Name {
			return &pkgerrors.ConstraintError{Err: pkgerrors.ErrDuplicate, Constraint: "classes_name_key"}
		}
	}
	c.ID = r.s.id()
	cp := *c
	r.s.Classes[c.ID] = &cp
	return nil
}

func (r *classRepo) GetByID(_ context.Context, id uint) (*model.SchoolClass, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if c, ok := r.s.Classes[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *classRepo) List(_ context.Context) ([]model.SchoolClass, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]model.SchoolClass, 0, len(r.s.Classes))
	for _, c := range r.s.Classes {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *classRepo) Update(_ context.Context, c *model.SchoolClass) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.Classes[c.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	cp := *c
	r.s.Classes[c.ID] = &cp
	return nil
}

func (r *classRepo) Delete(_ context.Context, id uint) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.Classes[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(r.s.Classes, id)
	for cid, c := range r.s.Curricula {
		if c.ClassID == id {
			delete(r.s.Curricula, cid)
		}
	}
	for eid, e := range r.s.Entries {
		if e.ClassID == id {
			delete(r.s.Entries, eid)
		}
	}
	return nil
}

// ── Subject ──

type subjectRepo struct{ s *Store }

func (r *subjectRepo) Create(_ context.Context, sub *model.Subject) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, o := range r.s.Subjects {
		if o.ShortCode == sub.ShortCode {
			return &pkgerrors.ConstraintError{Err: pkgerrors.ErrDuplicate, Constraint: "subjects_short_code_key"}
		}
	}
	sub.ID = r.s.id()
	cp := *sub
	r.s.Subjects[sub.ID] = &cp
	return nil
}

func (r *subjectRepo) GetByID(_ context.Context, id uint) (*model.Subject, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if sub, ok := r.s.Subjects[id]; ok {
		cp := *sub
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *subjectRepo) List(_ context.Context) ([]model.Subject, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]model.Subject, 0, len(r.s.Subjects))
	for _, sub := range r.s.Subjects {
		out = append(out, *sub)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *subjectRepo) Update(_ context.Context, sub *model.Subject) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.Subjects[sub.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	cp := *sub
	r.s.Subjects[sub.ID] = &cp
	return nil
}

func (r *subjectRepo) Delete(_ context.Context, id uint) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.Subjects[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(r.s.Subjects, id)
	for cid, c := range r.s.Curricula {
		if c.SubjectID == id {
			delete(r.s.Curricula, cid)
		}
	}
	return nil
}

// ── Teacher ──

type teacherRepo struct{ s *Store }

func (r *teacherRepo) load(t *model.Teacher) model.Teacher {
	cp := *t
	cp.Subjects = nil
	ids := append([]uint(nil), r.s.teacherSubjID[t.ID]...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		if sub, ok := r.s.Subjects[id]; ok {
			cp.Subjects = append(cp.Subjects, *sub)
		}
	}
	return cp
}

func (r *teacherRepo) Create(_ context.Context, t *model.Teacher, subjectIDs []uint) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t.ID = r.s.id()
	cp := *t
	r.s.Teachers[t.ID] = &cp
	r.s.teacherSubjID[t.ID] = append([]uint(nil), subjectIDs...)
	return nil
}

func (r *teacherRepo) GetByID(_ context.Context, id uint) (*model.Teacher, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if t, ok := r.s.Teachers[id]; ok {
		cp := r.load(t)
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *teacherRepo) GetByExternalID(_ context.Context, externalID string) (*model.Teacher, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.Teachers {
		if t.ExternalID != nil && *t.ExternalID == externalID {
			cp := r.load(t)
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *teacherRepo) List(_ context.Context) ([]model.Teacher, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]model.Teacher, 0, len(r.s.Teachers))
	for _, t := range r.s.Teachers {
		out = append(out, r.load(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *teacherRepo) Update(_ context.Context, t *model.Teacher, subjectIDs []uint) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.Teachers[t.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	cp := *t
	cp.Subjects = nil
	r.s.Teachers[t.ID] = &cp
	if subjectIDs != nil {
		r.s.teacherSubjID[t.ID] = append([]uint(nil), subjectIDs...)
	}
	return nil
}

func (r *teacherRepo) Delete(_ context.Context, id uint) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.Teachers[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(r.s.Teachers, id)
	delete(r.s.teacherSubjID, id)
	return nil
}

// ── Room ──

type roomRepo struct{ s *Store }

func (r *roomRepo) Create(_ context.Context, room *model.Room) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	room.ID = r.s.id()
	cp := *room
	r.s.Rooms[room.ID] = &cp
	return nil
}

func (r *roomRepo) GetByID(_ context.Context, id uint) (*model.Room, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if room, ok := r.s.Rooms[id]; ok {
		cp := *room
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *roomRepo) List(_ context.Context) ([]model.Room, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]model.Room, 0, len(r.s.Rooms))
	for _, room := range r.s.Rooms {
		out = append(out, *room)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *roomRepo) Update(_ context.Context, room *model.Room) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.Rooms[room.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	cp := *room
	r.s.Rooms[room.ID] = &cp
	return nil
}

func (r *roomRepo) Delete(_ context.Context, id uint) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.Rooms[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(r.s.Rooms, id)
	return nil
}

// ── Curriculum ──

type curriculumRepo struct{ s *Store }

func (r *curriculumRepo) withSubject(c *model.Curriculum) model.Curriculum {
	cp := *c
	if sub, ok := r.s.Subjects[c.SubjectID]; ok {
		sc := *sub
		cp.Subject = &sc
	}
	return cp
}

func (r *curriculumRepo) Create(_ context.Context, c *model.Curriculum) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, o := range r.s.Curricula {
		if o.ClassID == c.ClassID && o.SubjectID == c.SubjectID {
			return &pkgerrors.ConstraintError{Err: pkgerrors.ErrDuplicate, Constraint: "uq_curricula_class_subject"}
		}
	}
	c.ID = r.s.id()
	cp := *c
	r.s.Curricula[c.ID] = &cp
	return nil
}

func (r *curriculumRepo) GetByID(_ context.Context, id uint) (*model.Curriculum, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if c, ok := r.s.Curricula[id]; ok {
		cp := r.withSubject(c)
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *curriculumRepo) List(_ context.Context, classID *uint) ([]model.Curriculum, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.Curriculum
	for _, c := range r.s.Curricula {
		if classID != nil && c.ClassID != *classID {
			continue
		}
		out = append(out, r.withSubject(c))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ClassID != out[j].ClassID {
			return out[i].ClassID < out[j].ClassID
		}
		return out[i].SubjectID < out[j].SubjectID
	})
	return out, nil
}

func (r *curriculumRepo) Update(_ context.Context, c *model.Curriculum) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.Curricula[c.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	stored.HoursPerWeek = c.HoursPerWeek
	return nil
}

func (r *curriculumRepo) Delete(_ context.Context, id uint) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.Curricula[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(r.s.Curricula, id)
	return nil
}

// ── TimeSlot ──

type timeSlotRepo struct{ s *Store }

func (r *timeSlotRepo) List(_ context.Context, days, perDay int) ([]model.TimeSlot, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.TimeSlot
	for _, ts := range r.s.TimeSlots {
		if ts.Weekday < days && ts.IndexInDay <= perDay {
			out = append(out, ts)
		}
	}
	return out, nil
}

// ── Availability ──

type availabilityRepo struct{ s *Store }

func (r *availabilityRepo) UpsertTeacher(_ context.Context, a *model.TeacherAvailability) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, o := range r.s.TeacherAvail {
		if o.TeacherID == a.TeacherID && o.Weekday == a.Weekday && o.IndexInDay == a.IndexInDay {
			o.Available = a.Available
			o.UpdatedAt = time.Now()
			a.ID = o.ID
			return nil
		}
	}
	a.ID = r.s.id()
	cp := *a
	r.s.TeacherAvail[a.ID] = &cp
	return nil
}

func (r *availabilityRepo) UpsertRoom(_ context.Context, a *model.RoomAvailability) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, o := range r.s.RoomAvail {
		if o.RoomID == a.RoomID && o.Weekday == a.Weekday && o.IndexInDay == a.IndexInDay {
			o.Available = a.Available
			o.UpdatedAt = time.Now()
			a.ID = o.ID
			return nil
		}
	}
	a.ID = r.s.id()
	cp := *a
	r.s.RoomAvail[a.ID] = &cp
	return nil
}

func (r *availabilityRepo) ListTeacher(_ context.Context, teacherID uint) ([]model.TeacherAvailability, error) {
	return r.teacher(func(a *model.TeacherAvailability) bool { return a.TeacherID == teacherID }), nil
}

func (r *availabilityRepo) ListRoom(_ context.Context, roomID uint) ([]model.RoomAvailability, error) {
	return r.room(func(a *model.RoomAvailability) bool { return a.RoomID == roomID }), nil
}

func (r *availabilityRepo) ListTeacherUnavailable(_ context.Context) ([]model.TeacherAvailability, error) {
	return r.teacher(func(a *model.TeacherAvailability) bool { return !a.Available }), nil
}

func (r *availabilityRepo) ListRoomUnavailable(_ context.Context) ([]model.RoomAvailability, error) {
	return r.room(func(a *model.RoomAvailability) bool { return !a.Available }), nil
}

func (r *availabilityRepo) teacher(keep func(*model.TeacherAvailability) bool) []model.TeacherAvailability {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.TeacherAvailability
	for _, a := range r.s.TeacherAvail {
		if keep(a) {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TeacherID != out[j].TeacherID {
			return out[i].TeacherID < out[j].TeacherID
		}
		if out[i].Weekday != out[j].Weekday {
			return out[i].Weekday < out[j].Weekday
		}
		return out[i].IndexInDay < out[j].IndexInDay
	})
	return out
}

func (r *availabilityRepo) room(keep func(*model.RoomAvailability) bool) []model.RoomAvailability {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.RoomAvailability
	for _, a := range r.s.RoomAvail {
		if keep(a) {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RoomID != out[j].RoomID {
			return out[i].RoomID < out[j].RoomID
		}
		if out[i].Weekday != out[j].Weekday {
			return out[i].Weekday < out[j].Weekday
		}
		return out[i].IndexInDay < out[j].IndexInDay
	})
	return out
}

// ── TimetableEntry ──

type entryRepo struct{ s *Store }

func (r *entryRepo) Create(_ context.Context, e *model.TimetableEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.conflictFor(e, nil); err != nil {
		return err
	}
	e.ID = r.s.id()
	e.Version = 1
	cp := *e
	cp.Subject, cp.Teacher, cp.Room = nil, nil, nil
	r.s.Entries[e.ID] = &cp
	return nil
}

func (r *entryRepo) GetByID(_ context.Context, id uint) (*model.TimetableEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if e, ok := r.s.Entries[id]; ok {
		cp := r.s.withRelations(*e)
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *entryRepo) ListByClass(_ context.Context, classID uint) ([]model.TimetableEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.entriesOf(classID), nil
}

func (r *entryRepo) ListAll(_ context.Context) ([]model.TimetableEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]model.TimetableEntry, 0, len(r.s.Entries))
	for _, e := range r.s.Entries {
		out = append(out, *e)
	}
	sortEntries(out)
	return out, nil
}

func (r *entryRepo) UpdateWithVersion(_ context.Context, e *model.TimetableEntry, expectedVersion int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.Entries[e.ID]
	if !ok || stored.Version != expectedVersion {
		return pkgerrors.ErrOptimisticLock
	}
	next := *stored
	next.SubjectID = e.SubjectID
	next.TeacherID = e.TeacherID
	next.RoomID = e.RoomID
	if err := r.s.conflictFor(&next, nil); err != nil {
		return err
	}
	next.Version = expectedVersion + 1
	next.UpdatedAt = time.Now()
	*stored = next
	e.Version = next.Version
	return nil
}

func (r *entryRepo) ReplaceForClass(ctx context.Context, classID uint, entries []model.TimetableEntry) error {
	r.s.mu.Lock()
	r.s.replaceN[classID]++
	attempt, hook := r.s.replaceN[classID], r.s.ReplaceHook
	r.s.mu.Unlock()

	// 钩子在锁外执行，允许测试在提交前阻塞
	if hook != nil {
		if err := hook(classID, attempt); err != nil {
			return err
		}
	}
	// 与数据库事务一致：上下文已取消时不提交
	if err := ctx.Err(); err != nil {
		return err
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	ignore := make(map[uint]bool)
	for id, e := range r.s.Entries {
		if e.ClassID == classID {
			ignore[id] = true
		}
	}
	// 先整体校验，任一冲突则不落库
	staged := make([]model.TimetableEntry, len(entries))
	for i := range entries {
		e := entries[i]
		e.ClassID = classID
		e.Version = 1
		e.Subject, e.Teacher, e.Room = nil, nil, nil
		if err := r.s.conflictFor(&e, ignore); err != nil {
			return err
		}
		for j := 0; j < i; j++ {
			if staged[j].Weekday == e.Weekday && staged[j].IndexInDay == e.IndexInDay {
				return &pkgerrors.ConstraintError{Err: pkgerrors.ErrDuplicate, Constraint: "uq_entries_class_slot"}
			}
		}
		staged[i] = e
	}
	for id := range ignore {
		delete(r.s.Entries, id)
	}
	for i := range staged {
		staged[i].ID = r.s.id()
		entries[i].ID = staged[i].ID
		entries[i].ClassID = classID
		entries[i].Version = 1
		e := staged[i]
		r.s.Entries[e.ID] = &e
	}
	return nil
}

func (r *entryRepo) DeleteByClass(_ context.Context, classID uint) (int64, error) {
	return r.deleteWhere(func(e *model.TimetableEntry) bool { return e.ClassID == classID }), nil
}

func (r *entryRepo) CountBySubject(_ context.Context, subjectID uint) (int64, error) {
	return r.count(func(e *model.TimetableEntry) bool { return e.SubjectID == subjectID }), nil
}

func (r *entryRepo) CountByTeacher(_ context.Context, teacherID uint) (int64, error) {
	return r.count(func(e *model.TimetableEntry) bool { return e.TeacherID == teacherID }), nil
}

func (r *entryRepo) CountByRoom(_ context.Context, roomID uint) (int64, error) {
	return r.count(func(e *model.TimetableEntry) bool { return e.RoomID != nil && *e.RoomID == roomID }), nil
}

func (r *entryRepo) DeleteBySubject(_ context.Context, subjectID uint) (int64, error) {
	return r.deleteWhere(func(e *model.TimetableEntry) bool { return e.SubjectID == subjectID }), nil
}

func (r *entryRepo) DeleteByTeacher(_ context.Context, teacherID uint) (int64, error) {
	return r.deleteWhere(func(e *model.TimetableEntry) bool { return e.TeacherID == teacherID }), nil
}

func (r *entryRepo) DetachRoom(_ context.Context, roomID uint) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, e := range r.s.Entries {
		if e.RoomID != nil && *e.RoomID == roomID {
			e.RoomID = nil
			e.Version++
			n++
		}
	}
	return n, nil
}

func (r *entryRepo) count(match func(*model.TimetableEntry) bool) int64 {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, e := range r.s.Entries {
		if match(e) {
			n++
		}
	}
	return n
}

func (r *entryRepo) deleteWhere(match func(*model.TimetableEntry) bool) int64 {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, e := range r.s.Entries {
		if match(e) {
			delete(r.s.Entries, id)
			n++
		}
	}
	return n
}

// ── GenerationJob ──

type jobRepo struct{ s *Store }

func (r *jobRepo) CreateIfIdle(_ context.Context, job *model.GenerationJob) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.Classes[job.ClassID]; !ok {
		return gorm.ErrRecordNotFound
	}
	for _, j := range r.s.Jobs {
		if j.ClassID == job.ClassID && !j.Status.Finished() {
			return repository.ErrJobActive
		}
	}
	job.ID = r.s.id()
	if job.Status == "" {
		job.Status = model.JobQueued
	}
	job.CreatedAt = time.Now()
	cp := *job
	r.s.Jobs[job.ID] = &cp
	return nil
}

func (r *jobRepo) GetByID(_ context.Context, id uint) (*model.GenerationJob, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if j, ok := r.s.Jobs[id]; ok {
		cp := *j
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *jobRepo) ListByStatus(_ context.Context, statuses ...model.JobStatus) ([]model.GenerationJob, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.GenerationJob
	for _, j := range r.s.Jobs {
		for _, st := range statuses {
			if j.Status == st {
				out = append(out, *j)
				break
			}
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	return out, nil
}

func (r *jobRepo) Transition(_ context.Context, job *model.GenerationJob, from ...model.JobStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.Jobs[job.ID]
	if !ok {
		return repository.ErrJobStateChanged
	}
	allowed := false
	for _, st := range from {
		if stored.Status == st {
			allowed = true
			break
		}
	}
	if !allowed {
		return repository.ErrJobStateChanged
	}
	cp := *job
	cp.ClassID = stored.ClassID
	cp.RequestedBy = stored.RequestedBy
	cp.CreatedAt = stored.CreatedAt
	r.s.Jobs[job.ID] = &cp
	return nil
}

func (r *jobRepo) CountByStatus(_ context.Context) (map[model.JobStatus]int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make(map[model.JobStatus]int64)
	for _, j := range r.s.Jobs {
		out[j.Status]++
	}
	return out, nil
}

func (r *jobRepo) LatestFinishedPerClass(_ context.Context) ([]model.GenerationJob, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	latest := make(map[uint]*model.GenerationJob)
	for _, j := range r.s.Jobs {
		if !j.Status.Finished() {
			continue
		}
		if cur, ok := latest[j.ClassID]; !ok || j.ID > cur.ID {
			latest[j.ClassID] = j
		}
	}
	out := make([]model.GenerationJob, 0, len(latest))
	for _, j := range latest {
		out = append(out, *j)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ClassID < out[k].ClassID })
	return out, nil
}

// ── AuditLog ──

type auditRepo struct{ s *Store }

func (r *auditRepo) Create(_ context.Context, l *model.AuditLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l.ID = r.s.id()
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now()
	}
	r.s.AuditLogs = append(r.s.AuditLogs, *l)
	return nil
}

func (r *auditRepo) List(_ context.Context, offset, limit int) ([]model.AuditLog, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	total := int64(len(r.s.AuditLogs))
	var out []model.AuditLog
	for i := len(r.s.AuditLogs) - 1 - offset; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.s.AuditLogs[i])
	}
	return out, total, nil
}

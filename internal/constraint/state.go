package constraint

// Slot 每周固定节次，Weekday 0=周一，Index 从 1 开始
type Slot struct {
	Weekday int `json:"weekday"`
	Index   int `json:"index_in_day"`
}

// Before 规范顺序：先按星期，再按节次
func (s Slot) Before(o Slot) bool {
	if s.Weekday != o.Weekday {
		return s.Weekday < o.Weekday
	}
	return s.Index < o.Index
}

type slotKey struct {
	id   uint
	slot Slot
}

// Occupant 占用某节次的课表条目
// 搜索中的临时放置 EntryID 为 0
type Occupant struct {
	EntryID   uint
	ClassID   uint
	SubjectID uint
	TeacherID uint
	RoomID    *uint
	Slot      Slot
}

// State 约束检查所需的全部状态：资质、可用性、容量与三类占用索引
// 非并发安全，每次搜索或校验各自构建
type State struct {
	teacherSubjects map[uint]map[uint]struct{}
	teacherOff      map[slotKey]struct{}
	roomOff         map[slotKey]struct{}
	roomCapacity    map[uint]int
	classSize       map[uint]int

	classOcc   map[slotKey]uint
	teacherOcc map[slotKey]uint
	roomOcc    map[slotKey]uint
}

// NewState 创建空状态
func NewState() *State {
	return &State{
		teacherSubjects: make(map[uint]map[uint]struct{}),
		teacherOff:      make(map[slotKey]struct{}),
		roomOff:         make(map[slotKey]struct{}),
		roomCapacity:    make(map[uint]int),
		classSize:       make(map[uint]int),
		classOcc:        make(map[slotKey]uint),
		teacherOcc:      make(map[slotKey]uint),
		roomOcc:         make(map[slotKey]uint),
	}
}

// ── 静态数据 ──

// SetTeacherSubjects 设置教师可授科目（覆盖）
func (s *State) SetTeacherSubjects(teacherID uint, subjectIDs []uint) {
	set := make(map[uint]struct{}, len(subjectIDs))
	for _, id := range subjectIDs {
		set[id] = struct{}{}
	}
	s.teacherSubjects[teacherID] = set
}

// SetTeacherAvailability 记录教师在某节次的可用性，未记录视为可用
func (s *State) SetTeacherAvailability(teacherID uint, slot Slot, available bool) {
	k := slotKey{teacherID, slot}
	if available {
		delete(s.teacherOff, k)
		return
	}
	s.teacherOff[k] = struct{}{}
}

// SetRoomAvailability 记录教室在某节次的可用性，未记录视为可用
func (s *State) SetRoomAvailability(roomID uint, slot Slot, available bool) {
	k := slotKey{roomID, slot}
	if available {
		delete(s.roomOff, k)
		return
	}
	s.roomOff[k] = struct{}{}
}

// SetRoomCapacity 设置教室容量
func (s *State) SetRoomCapacity(roomID uint, capacity int) {
	s.roomCapacity[roomID] = capacity
}

// SetClassSize 设置班级人数
func (s *State) SetClassSize(classID uint, size int) {
	s.classSize[classID] = size
}

// ── 占用 ──

// Place 登记一次占用
func (s *State) Place(o Occupant) {
	s.classOcc[slotKey{o.ClassID, o.Slot}] = o.EntryID
	s.teacherOcc[slotKey{o.TeacherID, o.Slot}] = o.EntryID
	if o.RoomID != nil {
		s.roomOcc[slotKey{*o.RoomID, o.Slot}] = o.EntryID
	}
}

// Remove 撤销一次占用，仅当索引中仍是同一条目时删除
func (s *State) Remove(o Occupant) {
	removeIf(s.classOcc, slotKey{o.ClassID, o.Slot}, o.EntryID)
	removeIf(s.teacherOcc, slotKey{o.TeacherID, o.Slot}, o.EntryID)
	if o.RoomID != nil {
		removeIf(s.roomOcc, slotKey{*o.RoomID, o.Slot}, o.EntryID)
	}
}

func removeIf(m map[slotKey]uint, k slotKey, entryID uint) {
	if cur, ok := m[k]; ok && cur == entryID {
		delete(m, k)
	}
}

// ── 查询 ──

// Qualified 教师是否可授该科目
func (s *State) Qualified(teacherID, subjectID uint) bool {
	_, ok := s.teacherSubjects[teacherID][subjectID]
	return ok
}

// TeacherAvailable 教师在该节次是否可用
func (s *State) TeacherAvailable(teacherID uint, slot Slot) bool {
	_, off := s.teacherOff[slotKey{teacherID, slot}]
	return !off
}

// RoomAvailable 教室在该节次是否可用
func (s *State) RoomAvailable(roomID uint, slot Slot) bool {
	_, off := s.roomOff[slotKey{roomID, slot}]
	return !off
}

// ClassOccupant 返回占用该班级节次的条目；exclude 非 0 时忽略该条目
func (s *State) ClassOccupant(classID uint, slot Slot, exclude uint) (uint, bool) {
	return lookup(s.classOcc, slotKey{classID, slot}, exclude)
}

// TeacherOccupant 返回占用该教师节次的条目
func (s *State) TeacherOccupant(teacherID uint, slot Slot, exclude uint) (uint, bool) {
	return lookup(s.teacherOcc, slotKey{teacherID, slot}, exclude)
}

// RoomOccupant 返回占用该教室节次的条目
func (s *State) RoomOccupant(roomID uint, slot Slot, exclude uint) (uint, bool) {
	return lookup(s.roomOcc, slotKey{roomID, slot}, exclude)
}

func lookup(m map[slotKey]uint, k slotKey, exclude uint) (uint, bool) {
	id, ok := m[k]
	if !ok {
		return 0, false
	}
	if exclude != 0 && id == exclude {
		return 0, false
	}
	return id, true
}

// RoomCapacity 返回教室容量；未知教室返回 false
func (s *State) RoomCapacity(roomID uint) (int, bool) {
	c, ok := s.roomCapacity[roomID]
	return c, ok
}

// ClassSize 返回班级人数；未知班级返回 false
func (s *State) ClassSize(classID uint) (int, bool) {
	n, ok := s.classSize[classID]
	return n, ok
}

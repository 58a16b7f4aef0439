package scheduler

import (
	"context"
	"fmt"
	"sort"

	"github.com/RaduRoibu23/timetable-distributed-system/internal/constraint"
)

// ctxCheckInterval 每展开多少个搜索节点检查一次取消
const ctxCheckInterval = 256

// Generate 为 p.Classes 中的班级生成课表
//
// 班级按 ID 升序依次处理，后处理的班级能看到先处理班级的放置结果。
// 待生成班级已有的条目在内存中视为已清除，不会阻塞新的搜索。
// 相同输入总是得到相同输出。ctx 取消时返回 ctx.Err()。
func Generate(ctx context.Context, p Problem, opts Options) (*Result, error) {
	if opts.MaxBacktracks <= 0 {
		opts.MaxBacktracks = DefaultMaxBacktracks
	}

	slots := orderSlots(p.Slots, opts.PreferredMaxIndex)

	teachers := append([]TeacherInput(nil), p.Teachers...)
	sort.Slice(teachers, func(i, j int) bool { return teachers[i].ID < teachers[j].ID })
	rooms := append([]RoomInput(nil), p.Rooms...)
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].ID < rooms[j].ID })
	classes := append([]ClassInput(nil), p.Classes...)
	sort.Slice(classes, func(i, j int) bool { return classes[i].ID < classes[j].ID })

	generating := make(map[uint]bool, len(classes))
	for _, c := range classes {
		generating[c.ID] = true
	}
	st := NewState(Problem{Classes: classes, Teachers: teachers, Rooms: rooms, Fixed: p.Fixed}, generating)

	qualified := make(map[uint][]uint)
	for _, t := range teachers {
		for _, subj := range uniqueSorted(t.SubjectIDs) {
			qualified[subj] = append(qualified[subj], t.ID)
		}
	}

	checker := constraint.NewChecker(st, constraint.Options{
		CapacityTracking: opts.CapacityTracking,
		CapacityBlocking: opts.CapacityBlocking,
	})

	res := &Result{Classes: make([]ClassResult, 0, len(classes))}
	for _, c := range classes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s := newClassSearch(ctx, checker, c, slots, qualified, rooms, opts)
		cr, err := s.run()
		if err != nil {
			return nil, err
		}
		res.Classes = append(res.Classes, *cr)
	}
	return res, nil
}

// NewState 由问题快照构建占用状态，skip 中班级的已有条目不计入
func NewState(p Problem, skip map[uint]bool) *constraint.State {
	st := constraint.NewState()
	for _, t := range p.Teachers {
		st.SetTeacherSubjects(t.ID, t.SubjectIDs)
		for _, s := range t.Unavailable {
			st.SetTeacherAvailability(t.ID, s, false)
		}
	}
	for _, r := range p.Rooms {
		st.SetRoomCapacity(r.ID, r.Capacity)
		for _, s := range r.Unavailable {
			st.SetRoomAvailability(r.ID, s, false)
		}
	}
	for _, c := range p.Classes {
		st.SetClassSize(c.ID, c.Size)
	}
	for _, e := range p.Fixed {
		if skip[e.ClassID] {
			continue
		}
		st.Place(constraint.Occupant{
			EntryID:   e.EntryID,
			ClassID:   e.ClassID,
			SubjectID: e.SubjectID,
			TeacherID: e.TeacherID,
			RoomID:    e.RoomID,
			Slot:      e.Slot,
		})
	}
	return st
}

// orderSlots 去重并按规范顺序排序；preferredMax > 0 时节次 ≤ preferredMax 的时段排在前面
func orderSlots(in []constraint.Slot, preferredMax int) []constraint.Slot {
	seen := make(map[constraint.Slot]struct{}, len(in))
	out := make([]constraint.Slot, 0, len(in))
	for _, s := range in {
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if preferredMax > 0 {
			pi, pj := out[i].Index <= preferredMax, out[j].Index <= preferredMax
			if pi != pj {
				return pi
			}
		}
		return out[i].Before(out[j])
	})
	return out
}

func uniqueSorted(ids []uint) []uint {
	out := append([]uint(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	n := 0
	for i, id := range out {
		if i > 0 && id == out[n-1] {
			continue
		}
		out[n] = id
		n++
	}
	return out[:n]
}

// ── 单班级搜索 ──

type candidate struct {
	pos       int // slots 下标
	teacherID uint
	roomID    *uint
}

type reqState struct {
	req       Requirement
	placed    []candidate
	remaining int
}

type placedUnit struct {
	r *reqState
	c candidate
}

type dayKey struct {
	subjectID uint
	weekday   int
}

type classSearch struct {
	ctx       context.Context
	checker   *constraint.Checker
	st        *constraint.State
	class     ClassInput
	slots     []constraint.Slot
	qualified map[uint][]uint
	rooms     []RoomInput
	opts      Options

	reqs   []*reqState
	perDay map[dayKey]int
	stack  []placedUnit
	total  int

	best       []placedUnit
	backtracks int
	limitHit   bool
	nodes      int
	err        error
}

func newClassSearch(ctx context.Context, checker *constraint.Checker, class ClassInput, slots []constraint.Slot,
	qualified map[uint][]uint, rooms []RoomInput, opts Options) *classSearch {
	s := &classSearch{
		ctx:       ctx,
		checker:   checker,
		st:        checker.State(),
		class:     class,
		slots:     slots,
		qualified: qualified,
		rooms:     roomsForClass(rooms, class.Size, opts.CapacityTracking),
		opts:      opts,
		perDay:    make(map[dayKey]int),
	}
	for _, r := range class.Requirements {
		if r.Hours <= 0 {
			continue
		}
		s.reqs = append(s.reqs, &reqState{req: r, remaining: r.Hours})
	}
	return s
}

// roomsForClass 容量足够的教室优先，各组内按 ID 升序
func roomsForClass(rooms []RoomInput, size int, tracking bool) []RoomInput {
	out := append([]RoomInput(nil), rooms...)
	if !tracking {
		return out
	}
	sort.SliceStable(out, func(i, j int) bool {
		fi, fj := out[i].Capacity >= size, out[j].Capacity >= size
		return fi && !fj
	})
	return out
}

func (s *classSearch) requireRoom() bool { return len(s.rooms) > 0 }

func (s *classSearch) run() (*ClassResult, error) {
	res := &ClassResult{ClassID: s.class.ID}

	// 静态顺序：初始候选最少的需求优先，同数按科目 ID
	counts := make(map[*reqState]int, len(s.reqs))
	for _, r := range s.reqs {
		counts[r] = s.count(r, false, 0)
	}
	sort.SliceStable(s.reqs, func(i, j int) bool {
		ci, cj := counts[s.reqs[i]], counts[s.reqs[j]]
		if ci != cj {
			return ci < cj
		}
		return s.reqs[i].req.SubjectID < s.reqs[j].req.SubjectID
	})
	// 初始状态下无任何候选的需求直接记入冲突
	for _, r := range s.reqs {
		if counts[r] == 0 {
			res.Conflicts = append(res.Conflicts, s.unitConflicts(r)...)
			r.remaining = 0
		}
		s.total += r.remaining
	}

	if !s.solve() {
		if s.err != nil {
			return nil, s.err
		}
		// 搜索失败时状态已完全回退：恢复最深的部分解，再贪心补排
		for _, pu := range s.best {
			s.place(pu.r, pu.c)
		}
		for _, r := range s.reqs {
			for r.remaining > 0 {
				cs := s.candidates(r, false, 1)
				if len(cs) == 0 {
					break
				}
				s.place(r, cs[0])
			}
		}
		for _, r := range s.reqs {
			if r.remaining > 0 {
				res.Conflicts = append(res.Conflicts, s.unitConflicts(r)...)
			}
		}
	}

	res.Backtracks = s.backtracks
	res.LimitHit = s.limitHit
	res.Assignments, res.Warnings = s.collect()
	sort.SliceStable(res.Conflicts, func(i, j int) bool {
		a, b := res.Conflicts[i], res.Conflicts[j]
		if a.SubjectID != b.SubjectID {
			return a.SubjectID < b.SubjectID
		}
		return a.Unit < b.Unit
	})
	return res, nil
}

// solve 回溯搜索；成功时放置保留在状态中，失败时全部撤销
func (s *classSearch) solve() bool {
	if len(s.stack) == s.total {
		return true
	}
	s.nodes++
	if s.nodes%ctxCheckInterval == 0 {
		if err := s.ctx.Err(); err != nil {
			s.err = err
			return false
		}
	}

	r := s.pick()
	if r == nil {
		return false
	}
	for _, c := range s.candidates(r, true, 0) {
		s.place(r, c)
		if len(s.stack) > len(s.best) {
			s.best = append(s.best[:0], s.stack...)
		}
		if s.solve() {
			return true
		}
		s.unplace(r, c)
		if s.err != nil || s.limitHit {
			return false
		}
		s.backtracks++
		if s.backtracks >= s.opts.MaxBacktracks {
			s.limitHit = true
			return false
		}
	}
	return false
}

// pick 动态最受限优先：剩余候选最少的需求；存在零候选的需求时返回 nil
func (s *classSearch) pick() *reqState {
	var chosen *reqState
	best := 0
	for _, r := range s.reqs {
		if r.remaining == 0 {
			continue
		}
		n := s.count(r, true, best)
		if n == 0 {
			return nil
		}
		if chosen == nil || n < best {
			chosen, best = r, n
		}
	}
	return chosen
}

func (s *classSearch) count(r *reqState, symmetric bool, limit int) int {
	return len(s.candidates(r, symmetric, limit))
}

// candidates 按 时段 → 教师 → 教室 的规范顺序枚举合法放置
// symmetric 为 true 时同一需求的课时按时段递增放置，消除等价排列
// limit > 0 时最多返回 limit 个
func (s *classSearch) candidates(r *reqState, symmetric bool, limit int) []candidate {
	var out []candidate
	minPos := -1
	if symmetric && len(r.placed) > 0 {
		minPos = r.placed[len(r.placed)-1].pos
	}
	subj := r.req.SubjectID

	for pos, slot := range s.slots {
		if pos <= minPos {
			continue
		}
		if !s.slotOpen(subj, slot) {
			continue
		}
		for _, tid := range s.qualified[subj] {
			if !s.st.TeacherAvailable(tid, slot) {
				continue
			}
			if _, busy := s.st.TeacherOccupant(tid, slot, 0); busy {
				continue
			}
			if !s.requireRoom() {
				if s.checker.CanPlace(s.placement(subj, tid, nil, slot)) {
					out = append(out, candidate{pos: pos, teacherID: tid})
					if limit > 0 && len(out) >= limit {
						return out
					}
				}
				continue
			}
			for _, room := range s.rooms {
				rid := room.ID
				if s.checker.CanPlace(s.placement(subj, tid, &rid, slot)) {
					out = append(out, candidate{pos: pos, teacherID: tid, roomID: &rid})
					if limit > 0 && len(out) >= limit {
						return out
					}
				}
			}
		}
	}
	return out
}

// slotOpen 班级在该节次空闲且未超过同科目每日上限
func (s *classSearch) slotOpen(subjectID uint, slot constraint.Slot) bool {
	if _, busy := s.st.ClassOccupant(s.class.ID, slot, 0); busy {
		return false
	}
	if limit := s.opts.MaxSameSubjectPerDay; limit > 0 && s.perDay[dayKey{subjectID, slot.Weekday}] >= limit {
		return false
	}
	return true
}

func (s *classSearch) placement(subjectID, teacherID uint, roomID *uint, slot constraint.Slot) constraint.Placement {
	return constraint.Placement{
		ClassID:   s.class.ID,
		SubjectID: subjectID,
		TeacherID: teacherID,
		RoomID:    roomID,
		Slot:      slot,
	}
}

func (s *classSearch) occupant(r *reqState, c candidate) constraint.Occupant {
	return constraint.Occupant{
		ClassID:   s.class.ID,
		SubjectID: r.req.SubjectID,
		TeacherID: c.teacherID,
		RoomID:    c.roomID,
		Slot:      s.slots[c.pos],
	}
}

func (s *classSearch) place(r *reqState, c candidate) {
	s.st.Place(s.occupant(r, c))
	s.perDay[dayKey{r.req.SubjectID, s.slots[c.pos].Weekday}]++
	r.placed = append(r.placed, c)
	r.remaining--
	s.stack = append(s.stack, placedUnit{r: r, c: c})
}

// unplace 只能撤销最近一次放置
func (s *classSearch) unplace(r *reqState, c candidate) {
	s.st.Remove(s.occupant(r, c))
	s.perDay[dayKey{r.req.SubjectID, s.slots[c.pos].Weekday}]--
	r.placed = r.placed[:len(r.placed)-1]
	r.remaining++
	s.stack = s.stack[:len(s.stack)-1]
}

// unitConflicts 为需求剩余的每个课时生成冲突记录
func (s *classSearch) unitConflicts(r *reqState) []Conflict {
	reason, detail := s.reason(r)
	done := r.req.Hours - r.remaining
	out := make([]Conflict, 0, r.remaining)
	for u := done + 1; u <= r.req.Hours; u++ {
		out = append(out, Conflict{
			ClassID:      s.class.ID,
			CurriculumID: r.req.CurriculumID,
			SubjectID:    r.req.SubjectID,
			SubjectName:  r.req.SubjectName,
			Unit:         u,
			Reason:       reason,
			Detail:       detail,
		})
	}
	return out
}

// reason 依据当前状态判断需求无法排入的主要原因
func (s *classSearch) reason(r *reqState) (Reason, string) {
	subj := r.req.SubjectID
	teachers := s.qualified[subj]
	if len(teachers) == 0 {
		return ReasonNoTeacher, fmt.Sprintf("没有教师可教授科目 %d", subj)
	}

	var open []constraint.Slot
	for _, slot := range s.slots {
		if s.slotOpen(subj, slot) {
			open = append(open, slot)
		}
	}
	if len(open) == 0 {
		return ReasonNoTimeslot, fmt.Sprintf("班级 %d 没有可用于科目 %d 的空闲节次", s.class.ID, subj)
	}

	teacherOK := false
	roomOK := false
	for _, slot := range open {
		for _, tid := range teachers {
			if !s.st.TeacherAvailable(tid, slot) {
				continue
			}
			if _, busy := s.st.TeacherOccupant(tid, slot, 0); busy {
				continue
			}
			teacherOK = true
			if !s.requireRoom() {
				roomOK = true
				continue
			}
			for _, room := range s.rooms {
				rid := room.ID
				if s.checker.CanPlace(s.placement(subj, tid, &rid, slot)) {
					roomOK = true
					break
				}
			}
		}
	}
	switch {
	case !teacherOK:
		return ReasonNoTeacher, fmt.Sprintf("科目 %d 的教师在班级空闲节次均不可用或已有课程", subj)
	case !roomOK:
		return ReasonNoRoom, fmt.Sprintf("科目 %d 在可排节次没有可用教室", subj)
	default:
		return ReasonSearchLimit, fmt.Sprintf("达到回溯上限 %d 仍未找到完整方案", s.opts.MaxBacktracks)
	}
}

// collect 导出当前班级的放置与软约束警告，按时段排序
func (s *classSearch) collect() ([]Assignment, []Warning) {
	assignments := make([]Assignment, 0, len(s.stack))
	var warnings []Warning
	for _, pu := range s.stack {
		slot := s.slots[pu.c.pos]
		a := Assignment{
			ClassID:      s.class.ID,
			CurriculumID: pu.r.req.CurriculumID,
			SubjectID:    pu.r.req.SubjectID,
			TeacherID:    pu.c.teacherID,
			RoomID:       pu.c.roomID,
			Slot:         slot,
		}
		assignments = append(assignments, a)

		for _, v := range constraint.Soft(s.checker.Check(s.placement(a.SubjectID, a.TeacherID, a.RoomID, slot), constraint.CollectAll)) {
			w := Warning{ClassID: s.class.ID, SubjectID: a.SubjectID, Slot: slot, Rule: v.Rule, Message: v.Message}
			if a.RoomID != nil {
				w.RoomID = *a.RoomID
			}
			warnings = append(warnings, w)
		}
	}
	sort.Slice(assignments, func(i, j int) bool { return assignments[i].Slot.Before(assignments[j].Slot) })
	sort.SliceStable(warnings, func(i, j int) bool { return warnings[i].Slot.Before(warnings[j].Slot) })
	return assignments, warnings
}

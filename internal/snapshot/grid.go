package snapshot

import (
	"github.com/RaduRoibu23/timetable-distributed-system/config"
	"github.com/RaduRoibu23/timetable-distributed-system/internal/constraint"
	"github.com/RaduRoibu23/timetable-distributed-system/internal/model"
)

// Grid 每周排课网格，由配置的天数与每天节数决定
type Grid struct {
	Days   int
	PerDay int
}

// NewGrid 从排课配置创建网格
func NewGrid(cfg *config.SchedulerConfig) Grid {
	return Grid{Days: cfg.DaysPerWeek, PerDay: cfg.SlotsPerDay}
}

// Contains 节次是否在网格内
func (g Grid) Contains(weekday, index int) bool {
	return weekday >= 0 && weekday < g.Days && index >= 1 && index <= g.PerDay
}

// Size 网格总节数
func (g Grid) Size() int { return g.Days * g.PerDay }

// Slots 按 (weekday, index) 升序列出全部节次
func (g Grid) Slots() []constraint.Slot {
	out := make([]constraint.Slot, 0, g.Size())
	for d := 0; d < g.Days; d++ {
		for i := 1; i <= g.PerDay; i++ {
			out = append(out, constraint.Slot{Weekday: d, Index: i})
		}
	}
	return out
}

// TimeSlots 网格节次附带数据库中的起止时间；未配置时间的节次 ID 为 0
func (g Grid) TimeSlots(stored []model.TimeSlot) []model.TimeSlot {
	byKey := make(map[constraint.Slot]model.TimeSlot, len(stored))
	for _, ts := range stored {
		byKey[constraint.Slot{Weekday: ts.Weekday, Index: ts.IndexInDay}] = ts
	}
	out := make([]model.TimeSlot, 0, g.Size())
	for _, s := range g.Slots() {
		if ts, ok := byKey[s]; ok {
			out = append(out, ts)
			continue
		}
		out = append(out, model.TimeSlot{Weekday: s.Weekday, IndexInDay: s.Index})
	}
	return out
}

package export

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/xuri/excelize/v2"
)

// SlotTime 网格中一个节次的时间
type SlotTime struct {
	Weekday int // 0 = 周一
	Index   int // 从 1 开始
	Start   string
	End     string
}

// Lesson 一节已排的课
type Lesson struct {
	EntryID uint
	Weekday int
	Index   int
	Subject string
	Teacher string
	Room    string
}

// Timetable 导出所需的班级课表视图
type Timetable struct {
	ClassID   uint
	ClassName string
	Slots     []SlotTime
	Lessons   []Lesson
}

var dayNames = []string{"周一", "周二", "周三", "周四", "周五", "周六", "周日"}

// DayName 星期名称，越界时返回序号
func DayName(weekday int) string {
	if weekday >= 0 && weekday < len(dayNames) {
		return dayNames[weekday]
	}
	return fmt.Sprintf("第%d天", weekday+1)
}

// ═══════════════════════════════════════════════════════════
// XLSX，节次为行、星期为列的课表网格
// ═══════════════════════════════════════════════════════════

// XLSX 生成 Excel 课表，返回文件内容与建议文件名
func XLSX(t Timetable) (*bytes.Buffer, string, error) {
	days, indexes := gridAxes(t.Slots)

	f := excelize.NewFile()
	defer f.Close()

	sheet := "课表"
	idx, err := f.NewSheet(sheet)
	if err != nil {
		return nil, "", err
	}
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	f.SetColWidth(sheet, "A", "A", 8)
	f.SetColWidth(sheet, "B", "B", 14)
	for i := range days {
		col := colName(2 + i)
		f.SetColWidth(sheet, col, col, 24)
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	cellStyle, _ := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
	})

	// 标题行
	lastCol := colName(1 + len(days))
	f.SetCellValue(sheet, "A1", fmt.Sprintf("%s 课表", t.ClassName))
	f.MergeCell(sheet, "A1", lastCol+"1")
	f.SetCellStyle(sheet, "A1", lastCol+"1", headerStyle)

	// 表头
	f.SetCellValue(sheet, "A2", "节次")
	f.SetCellValue(sheet, "B2", "时间")
	for i, d := range days {
		f.SetCellValue(sheet, cell(colName(2+i), 2), DayName(d))
	}
	f.SetCellStyle(sheet, "A2", lastCol+"2", headerStyle)

	times := slotTimes(t.Slots)
	lessons := make(map[[2]int]Lesson, len(t.Lessons))
	for _, l := range t.Lessons {
		lessons[[2]int{l.Weekday, l.Index}] = l
	}

	row := 3
	for _, index := range indexes {
		f.SetCellValue(sheet, cell("A", row), index)
		if st, ok := times[index]; ok {
			f.SetCellValue(sheet, cell("B", row), fmt.Sprintf("%s-%s", st.Start, st.End))
		}
		for i, d := range days {
			text := "-"
			if l, ok := lessons[[2]int{d, index}]; ok {
				text = lessonText(l)
			}
			f.SetCellValue(sheet, cell(colName(2+i), row), text)
		}
		row++
	}
	if row > 3 {
		f.SetCellStyle(sheet, "A3", cell(lastCol, row-1), cellStyle)
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		return nil, "", fmt.Errorf("写入 Excel 失败: %w", err)
	}
	return buf, fileName(t, "xlsx"), nil
}

// ═══════════════════════════════════════════════════════════
// ICS，每节课一个按周重复的事件
// ═══════════════════════════════════════════════════════════

// ICSOptions 日历导出参数
type ICSOptions struct {
	WeekStart time.Time // 第一周的周一，零值时取当前周
	Weeks     int       // 重复周数，0 表示不限
	Location  *time.Location
	Now       time.Time
}

// ICS 生成 iCalendar 课表
func ICS(t Timetable, opts ICSOptions) ([]byte, string, error) {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	monday := opts.WeekStart
	if monday.IsZero() {
		monday = mondayOf(now.In(loc))
	}
	monday = time.Date(monday.Year(), monday.Month(), monday.Day(), 0, 0, 0, 0, loc)

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//timetable-engine//class timetable//ZH")
	cal.SetXWRCalName(fmt.Sprintf("%s 课表", t.ClassName))

	times := slotTimes(t.Slots)
	lessons := append([]Lesson(nil), t.Lessons...)
	sort.Slice(lessons, func(i, j int) bool {
		if lessons[i].Weekday != lessons[j].Weekday {
			return lessons[i].Weekday < lessons[j].Weekday
		}
		return lessons[i].Index < lessons[j].Index
	})

	for _, l := range lessons {
		start, end, err := lessonWindow(monday, l, times, loc)
		if err != nil {
			return nil, "", err
		}

		evt := cal.AddEvent(fmt.Sprintf("class-%d-entry-%d@timetable-engine", t.ClassID, l.EntryID))
		evt.SetDtStampTime(now)
		evt.SetStartAt(start)
		evt.SetEndAt(end)
		evt.SetSummary(l.Subject)
		if l.Room != "" {
			evt.SetLocation(l.Room)
		}
		if l.Teacher != "" {
			evt.SetDescription("教师: " + l.Teacher)
		}
		rule := "FREQ=WEEKLY"
		if opts.Weeks > 0 {
			rule += fmt.Sprintf(";COUNT=%d", opts.Weeks)
		}
		evt.AddRrule(rule)
	}

	return []byte(cal.Serialize()), fileName(t, "ics"), nil
}

// ── 辅助函数 ──

func gridAxes(slots []SlotTime) (days []int, indexes []int) {
	seenDay := map[int]bool{}
	seenIndex := map[int]bool{}
	for _, s := range slots {
		if !seenDay[s.Weekday] {
			seenDay[s.Weekday] = true
			days = append(days, s.Weekday)
		}
		if !seenIndex[s.Index] {
			seenIndex[s.Index] = true
			indexes = append(indexes, s.Index)
		}
	}
	sort.Ints(days)
	sort.Ints(indexes)
	return days, indexes
}

// slotTimes 每个节次序号取第一个有时间的定义
func slotTimes(slots []SlotTime) map[int]SlotTime {
	out := make(map[int]SlotTime)
	for _, s := range slots {
		if _, ok := out[s.Index]; ok || s.Start == "" {
			continue
		}
		out[s.Index] = s
	}
	return out
}

func lessonWindow(monday time.Time, l Lesson, times map[int]SlotTime, loc *time.Location) (time.Time, time.Time, error) {
	day := monday.AddDate(0, 0, l.Weekday)
	st, ok := times[l.Index]
	if !ok {
		// 无时间定义时第 n 节从 (7+n) 点开始，每节 50 分钟
		start := day.Add(time.Duration(7+l.Index) * time.Hour)
		return start, start.Add(50 * time.Minute), nil
	}
	start, err := clock(day, st.Start, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := clock(day, st.End, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}

func clock(day time.Time, hhmm string, loc *time.Location) (time.Time, error) {
	hhmm = strings.TrimSpace(hhmm)
	if len(hhmm) > 5 {
		hhmm = hhmm[:5]
	}
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return time.Time{}, fmt.Errorf("节次时间格式错误 %q: %w", hhmm, err)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, loc), nil
}

func mondayOf(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	return t.AddDate(0, 0, -offset)
}

func lessonText(l Lesson) string {
	parts := []string{l.Subject}
	if l.Teacher != "" {
		parts = append(parts, l.Teacher)
	}
	if l.Room != "" {
		parts = append(parts, l.Room)
	}
	return strings.Join(parts, "\n")
}

func fileName(t Timetable, ext string) string {
	name := t.ClassName
	if name == "" {
		name = fmt.Sprintf("class-%d", t.ClassID)
	}
	return fmt.Sprintf("课表_%s.%s", name, ext)
}

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}

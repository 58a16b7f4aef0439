package service

import (
	"bytes"
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/RaduRoibu23/timetable-distributed-system/internal/dto"
	"github.com/RaduRoibu23/timetable-distributed-system/internal/repository"
	"github.com/RaduRoibu23/timetable-distributed-system/internal/snapshot"
	"github.com/RaduRoibu23/timetable-distributed-system/pkg/export"
)

// ── 导出模块业务错误 ──

var ErrExportGenerateFail = errors.New("生成导出文件失败")

// 导出格式
const (
	ExportXLSX = "xlsx"
	ExportICS  = "ics"
)

// ExportFile 导出结果，由 Handler 设置响应头后写出
type ExportFile struct {
	Content     *bytes.Buffer
	FileName    string
	ContentType string
}

// ExportService 班级课表导出接口
//
// XLSX：节次为行、星期为列的网格；ICS：每节课一个按周重复的事件。
type ExportService interface {
	ExportClass(ctx context.Context, classID uint, req *dto.ExportRequest) (*ExportFile, error)
}

type exportService struct {
	repo   *repository.Repository
	grid   snapshot.Grid
	logger *zap.Logger
}

// NewExportService 创建 ExportService 实例
func NewExportService(repo *repository.Repository, grid snapshot.Grid, logger *zap.Logger) ExportService {
	return &exportService{repo: repo, grid: grid, logger: logger}
}

func (s *exportService) ExportClass(ctx context.Context, classID uint, req *dto.ExportRequest) (*ExportFile, error) {
	// 1. 读取班级与课表
	class, err := s.repo.Class.GetByID(ctx, classID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClassNotFound
		}
		s.logger.Error("查询班级失败", zap.Uint("class_id", classID), zap.Error(err))
		return nil, err
	}
	entries, err := s.repo.TimetableEntry.ListByClass(ctx, classID)
	if err != nil {
		s.logger.Error("查询班级课表失败", zap.Uint("class_id", classID), zap.Error(err))
		return nil, err
	}
	stored, err := s.repo.TimeSlot.List(ctx, s.grid.Days, s.grid.PerDay)
	if err != nil {
		s.logger.Error("查询节次失败", zap.Error(err))
		return nil, err
	}

	// 2. 组装导出视图
	view := export.Timetable{ClassID: class.ID, ClassName: class.Name}
	for _, ts := range s.grid.TimeSlots(stored) {
		view.Slots = append(view.Slots, export.SlotTime{
			Weekday: ts.Weekday,
			Index:   ts.IndexInDay,
			Start:   ts.StartTime,
			End:     ts.EndTime,
		})
	}
	for i := range entries {
		e := &entries[i]
		lesson := export.Lesson{EntryID: e.ID, Weekday: e.Weekday, Index: e.IndexInDay}
		if e.Subject != nil {
			lesson.Subject = e.Subject.Name
		}
		if e.Teacher != nil {
			lesson.Teacher = e.Teacher.Name
		}
		if e.Room != nil {
			lesson.Room = e.Room.Name
		}
		view.Lessons = append(view.Lessons, lesson)
	}

	// 3. 按格式生成
	switch req.Format {
	case ExportICS:
		body, name, err := export.ICS(view, export.ICSOptions{Weeks: req.Weeks})
		if err != nil {
			s.logger.Error("生成 ICS 失败", zap.Uint("class_id", classID), zap.Error(err))
			return nil, ErrExportGenerateFail
		}
		return &ExportFile{Content: bytes.NewBuffer(body), FileName: name, ContentType: "text/calendar; charset=utf-8"}, nil
	default:
		buf, name, err := export.XLSX(view)
		if err != nil {
			s.logger.Error("生成 Excel 失败", zap.Uint("class_id", classID), zap.Error(err))
			return nil, ErrExportGenerateFail
		}
		return &ExportFile{
			Content:     buf,
			FileName:    name,
			ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		}, nil
	}
}

package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/RaduRoibu23/timetable-distributed-system/internal/api/middleware"
	"github.com/RaduRoibu23/timetable-distributed-system/internal/constraint"
	"github.com/RaduRoibu23/timetable-distributed-system/internal/dto"
	"github.com/RaduRoibu23/timetable-distributed-system/internal/jobs"
	"github.com/RaduRoibu23/timetable-distributed-system/internal/model"
	"github.com/RaduRoibu23/timetable-distributed-system/internal/service"
	pkgerrors "github.com/RaduRoibu23/timetable-distributed-system/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
	if err := RegisterValidators(); err != nil {
		panic(err)
	}
}

// ═══════════════════════════════════════════════════════════
// Mock Services
// ═══════════════════════════════════════════════════════════

// ── Mock TimetableService ──

type mockTimetableService struct {
	getResult    []dto.EntryResponse
	getErr       error
	updateResult *dto.UpdateEntryResult
	updateErr    error
	createResult *dto.UpdateEntryResult
	createErr    error
	deleteResult *dto.DeleteTimetableResponse
	deleteErr    error
	statsResult  *dto.StatsResponse
	statsErr     error

	lastUpdate *dto.UpdateEntryRequest
	lastCaller *dto.Caller
}

func (m *mockTimetableService) GetClassTimetable(_ context.Context, _ uint) ([]dto.EntryResponse, error) {
	return m.getResult, m.getErr
}
func (m *mockTimetableService) UpdateEntry(_ context.Context, _ uint, req *dto.UpdateEntryRequest, caller *dto.Caller) (*dto.UpdateEntryResult, error) {
	m.lastUpdate = req
	m.lastCaller = caller
	return m.updateResult, m.updateErr
}
func (m *mockTimetableService) CreateEntry(_ context.Context, _ *dto.CreateEntryRequest, caller *dto.Caller) (*dto.UpdateEntryResult, error) {
	m.lastCaller = caller
	return m.createResult, m.createErr
}
func (m *mockTimetableService) DeleteClassTimetable(_ context.Context, _ uint, _ *dto.Caller) (*dto.DeleteTimetableResponse, error) {
	return m.deleteResult, m.deleteErr
}
func (m *mockTimetableService) Stats(_ context.Context) (*dto.StatsResponse, error) {
	return m.statsResult, m.statsErr
}

// ── Mock GenerationService ──

type mockGenerationService struct {
	generateResult  *dto.GenerateResponse
	generateErr     error
	jobResult       *dto.JobResponse
	jobErr          error
	conflictsResult *dto.ConflictReportResponse
	conflictsErr    error
	cancelResult    *dto.JobResponse
	cancelErr       error
}

func (m *mockGenerationService) Generate(_ context.Context, _ *dto.GenerateRequest, _ *dto.Caller) (*dto.GenerateResponse, error) {
	return m.generateResult, m.generateErr
}
func (m *mockGenerationService) GetJob(_ context.Context, _ uint) (*dto.JobResponse, error) {
	return m.jobResult, m.jobErr
}
func (m *mockGenerationService) GetConflicts(_ context.Context, _ uint) (*dto.ConflictReportResponse, error) {
	return m.conflictsResult, m.conflictsErr
}
func (m *mockGenerationService) CancelJob(_ context.Context, _ uint, _ *dto.Caller) (*dto.JobResponse, error) {
	return m.cancelResult, m.cancelErr
}

// ── Mock CatalogService ──
// 只记录测试用到的结果，其余方法返回 err

type mockCatalogService struct {
	classResult   *dto.ClassResponse
	err           error
	deleteErr     error
	lastCascade   bool
	lastClassName string
}

func (m *mockCatalogService) ListClasses(_ context.Context) ([]dto.ClassResponse, error) {
	if m.classResult == nil {
		return []dto.ClassResponse{}, m.err
	}
	return []dto.ClassResponse{*m.classResult}, m.err
}
func (m *mockCatalogService) GetClass(_ context.Context, _ uint) (*dto.ClassResponse, error) {
	return m.classResult, m.err
}
func (m *mockCatalogService) CreateClass(_ context.Context, req *dto.CreateClassRequest) (*dto.ClassResponse, error) {
	m.lastClassName = req.Name
	return m.classResult, m.err
}
func (m *mockCatalogService) UpdateClass(_ context.Context, _ uint, _ *dto.UpdateClassRequest) (*dto.ClassResponse, error) {
	return m.classResult, m.err
}
func (m *mockCatalogService) DeleteClass(_ context.Context, _ uint) error {
	return m.deleteErr
}
func (m *mockCatalogService) ListSubjects(_ context.Context) ([]dto.SubjectResponse, error) {
	return nil, m.err
}
func (m *mockCatalogService) GetSubject(_ context.Context, _ uint) (*dto.SubjectResponse, error) {
	return nil, m.err
}
func (m *mockCatalogService) CreateSubject(_ context.Context, _ *dto.CreateSubjectRequest) (*dto.SubjectResponse, error) {
	return nil, m.err
}
func (m *mockCatalogService) UpdateSubject(_ context.Context, _ uint, _ *dto.UpdateSubjectRequest) (*dto.SubjectResponse, error) {
	return nil, m.err
}
func (m *mockCatalogService) DeleteSubject(_ context.Context, _ uint, cascade bool) error {
	m.lastCascade = cascade
	return m.deleteErr
}
func (m *mockCatalogService) ListRooms(_ context.Context) ([]dto.RoomResponse, error) {
	return nil, m.err
}
func (m *mockCatalogService) GetRoom(_ context.Context, _ uint) (*dto.RoomResponse, error) {
	return nil, m.err
}
func (m *mockCatalogService) CreateRoom(_ context.Context, _ *dto.CreateRoomRequest) (*dto.RoomResponse, error) {
	return nil, m.err
}
func (m *mockCatalogService) UpdateRoom(_ context.Context, _ uint, _ *dto.UpdateRoomRequest) (*dto.RoomResponse, error) {
	return nil, m.err
}
func (m *mockCatalogService) DeleteRoom(_ context.Context, _ uint, cascade bool) error {
	m.lastCascade = cascade
	return m.deleteErr
}
func (m *mockCatalogService) ListTeachers(_ context.Context) ([]dto.TeacherResponse, error) {
	return nil, m.err
}
func (m *mockCatalogService) GetTeacher(_ context.Context, _ uint) (*dto.TeacherResponse, error) {
	return nil, m.err
}
func (m *mockCatalogService) CreateTeacher(_ context.Context, _ *dto.CreateTeacherRequest) (*dto.TeacherResponse, error) {
	return nil, m.err
}
func (m *mockCatalogService) UpdateTeacher(_ context.Context, _ uint, _ *dto.UpdateTeacherRequest) (*dto.TeacherResponse, error) {
	return nil, m.err
}
func (m *mockCatalogService) DeleteTeacher(_ context.Context, _ uint, cascade bool) error {
	m.lastCascade = cascade
	return m.deleteErr
}
func (m *mockCatalogService) ListCurricula(_ context.Context, _ *dto.CurriculumListRequest) ([]dto.CurriculumResponse, error) {
	return nil, m.err
}
func (m *mockCatalogService) GetCurriculum(_ context.Context, _ uint) (*dto.CurriculumResponse, error) {
	return nil, m.err
}
func (m *mockCatalogService) CreateCurriculum(_ context.Context, _ *dto.CreateCurriculumRequest) (*dto.CurriculumResponse, error) {
	return nil, m.err
}
func (m *mockCatalogService) UpdateCurriculum(_ context.Context, _ uint, _ *dto.UpdateCurriculumRequest) (*dto.CurriculumResponse, error) {
	return nil, m.err
}
func (m *mockCatalogService) DeleteCurriculum(_ context.Context, _ uint) error {
	return m.deleteErr
}
func (m *mockCatalogService) ListTimeSlots(_ context.Context) ([]dto.TimeSlotResponse, error) {
	return nil, m.err
}

// ── Mock AvailabilityService ──

type mockAvailabilityService struct {
	result *dto.AvailabilityResponse
	err    error
}

func (m *mockAvailabilityService) ListTeacher(_ context.Context, _ uint) ([]dto.AvailabilityResponse, error) {
	return []dto.AvailabilityResponse{}, m.err
}
func (m *mockAvailabilityService) SetTeacher(_ context.Context, _ uint, _ *dto.SetAvailabilityRequest, _ *dto.Caller) (*dto.AvailabilityResponse, error) {
	return m.result, m.err
}
func (m *mockAvailabilityService) ListRoom(_ context.Context, _ uint) ([]dto.AvailabilityResponse, error) {
	return []dto.AvailabilityResponse{}, m.err
}
func (m *mockAvailabilityService) SetRoom(_ context.Context, _ uint, _ *dto.SetAvailabilityRequest) (*dto.AvailabilityResponse, error) {
	return m.result, m.err
}

// ── Mock ExportService ──

type mockExportService struct {
	file    *service.ExportFile
	err     error
	lastReq *dto.ExportRequest
}

func (m *mockExportService) ExportClass(_ context.Context, _ uint, req *dto.ExportRequest) (*service.ExportFile, error) {
	m.lastReq = req
	return m.file, m.err
}

// ── Mock AuditService ──

type mockAuditService struct {
	result  *dto.AuditLogListResponse
	err     error
	lastReq *dto.AuditLogListRequest
}

func (m *mockAuditService) List(_ context.Context, req *dto.AuditLogListRequest) (*dto.AuditLogListResponse, error) {
	m.lastReq = req
	return m.result, m.err
}

// ═══════════════════════════════════════════════════════════
// Helpers
// ═══════════════════════════════════════════════════════════

var testCaller = &dto.Caller{Subject: "kc-1", Username: "planner", Roles: []string{model.RoleScheduler}}

// withCaller 模拟认证中间件注入调用者
func withCaller(caller *dto.Caller, next gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if caller != nil {
			c.Set(middleware.CallerKey, caller)
		}
		next(c)
	}
}

func jsonBody(v interface{}) io.Reader {
	b, _ := json.Marshal(v)
	return bytes.NewReader(b)
}

func serve(r *gin.Engine, method, path string, body io.Reader) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	r.ServeHTTP(w, req)
	return w
}

func parseBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("响应不是 JSON: %s", w.Body.String())
	}
	return body
}

func assertError(t *testing.T, w *httptest.ResponseRecorder, status, code int, kind pkgerrors.Kind) map[string]interface{} {
	t.Helper()
	if w.Code != status {
		t.Fatalf("期望 %d，实际: %d (%s)", status, w.Code, w.Body.String())
	}
	body := parseBody(t, w)
	if int(body["code"].(float64)) != code {
		t.Errorf("期望错误码 %d，实际: %v", code, body["code"])
	}
	if body["kind"] != string(kind) {
		t.Errorf("期望 kind %s，实际: %v", kind, body["kind"])
	}
	if body["detail"] == "" {
		t.Error("期望 detail 非空")
	}
	return body
}

// ═══════════════════════════════════════════════════════════
// TimetableHandler Tests
// ═══════════════════════════════════════════════════════════

func timetableRouter(mock *mockTimetableService, caller *dto.Caller) *gin.Engine {
	h := NewTimetableHandler(mock)
	r := gin.New()
	r.GET("/timetables/classes/:id", h.GetClassTimetable)
	r.DELETE("/timetables/classes/:id", withCaller(caller, h.DeleteClassTimetable))
	r.POST("/timetables/entries", withCaller(caller, h.CreateEntry))
	r.PATCH("/timetables/entries/:id", withCaller(caller, h.UpdateEntry))
	r.GET("/timetables/stats", h.Stats)
	return r
}

func TestTimetableHandler_UpdateEntry_Success(t *testing.T) {
	mock := &mockTimetableService{updateResult: &dto.UpdateEntryResult{
		EntryResponse: dto.EntryResponse{ID: 9, Version: 4},
	}}
	r := timetableRouter(mock, testCaller)

	w := serve(r, http.MethodPatch, "/timetables/entries/9", strings.NewReader(`{"version":3,"room_id":null}`))
	if w.Code != http.StatusOK {
		t.Fatalf("期望 200，实际: %d (%s)", w.Code, w.Body.String())
	}
	body := parseBody(t, w)
	if body["version"].(float64) != 4 {
		t.Errorf("期望返回新版本 4，实际: %v", body["version"])
	}
	if mock.lastUpdate.Version != 3 || !mock.lastUpdate.RoomID.Set || mock.lastUpdate.RoomID.Value != nil {
		t.Errorf("room_id:null 应解析为显式清空，实际: %+v", mock.lastUpdate)
	}
	if mock.lastCaller != testCaller {
		t.Error("期望调用者透传给 Service")
	}
}

func TestTimetableHandler_UpdateEntry_VersionConflict(t *testing.T) {
	mock := &mockTimetableService{updateErr: &pkgerrors.VersionConflictError{EntityID: 9, ExpectedVersion: 3, CurrentVersion: 4}}
	r := timetableRouter(mock, testCaller)

	w := serve(r, http.MethodPatch, "/timetables/entries/9", jsonBody(map[string]int{"version": 3}))
	body := assertError(t, w, http.StatusConflict, 30003, pkgerrors.KindVersionConflict)
	if body["current_version"].(float64) != 4 {
		t.Errorf("期望 current_version=4，实际: %v", body["current_version"])
	}
}

func TestTimetableHandler_UpdateEntry_ConstraintViolation(t *testing.T) {
	mock := &mockTimetableService{updateErr: &constraint.ViolationError{Violations: []constraint.Violation{
		{Rule: constraint.RuleTeacherFree, Message: "教师 Ion 已在该节次上课", EntryID: 17},
	}}}
	r := timetableRouter(mock, testCaller)

	w := serve(r, http.MethodPatch, "/timetables/entries/9", jsonBody(map[string]int{"version": 1, "teacher_id": 2}))
	body := assertError(t, w, http.StatusConflict, 30004, pkgerrors.KindConstraintViolation)

	violations, ok := body["violations"].([]interface{})
	if !ok || len(violations) != 1 {
		t.Fatalf("期望一条违规，实际: %v", body["violations"])
	}
	v := violations[0].(map[string]interface{})
	if v["rule"] != "teacher_double_booked" || v["conflicting_entry_id"].(float64) != 17 {
		t.Errorf("违规内容不符，实际: %v", v)
	}
}

func TestTimetableHandler_UpdateEntry_BadInput(t *testing.T) {
	r := timetableRouter(&mockTimetableService{}, testCaller)

	cases := []struct {
		name string
		path string
		body string
	}{
		{"缺少 version", "/timetables/entries/9", `{"teacher_id":2}`},
		{"非法 JSON", "/timetables/entries/9", `{`},
		{"非法 ID", "/timetables/entries/abc", `{"version":1}`},
		{"ID 为 0", "/timetables/entries/0", `{"version":1}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := serve(r, http.MethodPatch, tc.path, strings.NewReader(tc.body))
			assertError(t, w, http.StatusBadRequest, 10001, pkgerrors.KindValidation)
		})
	}
}

func TestTimetableHandler_UpdateEntry_Unauthenticated(t *testing.T) {
	r := timetableRouter(&mockTimetableService{}, nil)
	w := serve(r, http.MethodPatch, "/timetables/entries/9", jsonBody(map[string]int{"version": 1}))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("期望 401，实际: %d", w.Code)
	}
}

func TestTimetableHandler_UpdateEntry_NotFound(t *testing.T) {
	r := timetableRouter(&mockTimetableService{updateErr: service.ErrEntryNotFound}, testCaller)
	w := serve(r, http.MethodPatch, "/timetables/entries/9", jsonBody(map[string]int{"version": 1}))
	assertError(t, w, http.StatusNotFound, 30002, pkgerrors.KindNotFound)
}

func TestTimetableHandler_CreateEntry(t *testing.T) {
	mock := &mockTimetableService{createResult: &dto.UpdateEntryResult{EntryResponse: dto.EntryResponse{ID: 1, Version: 1}}}
	r := timetableRouter(mock, testCaller)

	w := serve(r, http.MethodPost, "/timetables/entries", jsonBody(dto.CreateEntryRequest{
		ClassID: 1, SubjectID: 2, TeacherID: 3, Weekday: 4, IndexInDay: 7,
	}))
	if w.Code != http.StatusCreated {
		t.Errorf("期望 201，实际: %d (%s)", w.Code, w.Body.String())
	}

	// weekday 只允许 0..6
	w = serve(r, http.MethodPost, "/timetables/entries", jsonBody(dto.CreateEntryRequest{
		ClassID: 1, SubjectID: 2, TeacherID: 3, Weekday: 7, IndexInDay: 1,
	}))
	assertError(t, w, http.StatusBadRequest, 10001, pkgerrors.KindValidation)

	mock.createErr = service.ErrInvalidSlot
	w = serve(r, http.MethodPost, "/timetables/entries", jsonBody(dto.CreateEntryRequest{
		ClassID: 1, SubjectID: 2, TeacherID: 3, Weekday: 6, IndexInDay: 1,
	}))
	assertError(t, w, http.StatusBadRequest, 30006, pkgerrors.KindValidation)
}

func TestTimetableHandler_GetAndDelete(t *testing.T) {
	mock := &mockTimetableService{
		getResult: []dto.EntryResponse{
			{ID: 3, ClassID: 1, SubjectID: 2, TeacherID: 4, Weekday: 0, IndexInDay: 1, Version: 2},
		},
		deleteResult: &dto.DeleteTimetableResponse{Deleted: 12},
	}
	r := timetableRouter(mock, testCaller)

	w := serve(r, http.MethodGet, "/timetables/classes/1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("期望 200，实际: %d", w.Code)
	}
	var entries []map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &entries); err != nil {
		t.Fatalf("期望顶层为条目数组，实际: %s", w.Body.String())
	}
	if len(entries) != 1 || entries[0]["id"].(float64) != 3 || entries[0]["version"].(float64) != 2 {
		t.Errorf("条目内容不符，实际: %s", w.Body.String())
	}

	mock.getResult = []dto.EntryResponse{}
	w = serve(r, http.MethodGet, "/timetables/classes/1", nil)
	if strings.TrimSpace(w.Body.String()) != "[]" {
		t.Errorf("空课表应返回 []，实际: %s", w.Body.String())
	}

	w = serve(r, http.MethodDelete, "/timetables/classes/1", nil)
	if w.Code != http.StatusOK || parseBody(t, w)["deleted"].(float64) != 12 {
		t.Errorf("期望删除 12 条，实际: %d %s", w.Code, w.Body.String())
	}

	mock.getErr = service.ErrClassNotFound
	w = serve(r, http.MethodGet, "/timetables/classes/2", nil)
	assertError(t, w, http.StatusNotFound, 30001, pkgerrors.KindNotFound)
}

func TestTimetableHandler_Stats_InternalError(t *testing.T) {
	r := timetableRouter(&mockTimetableService{statsErr: fmt.Errorf("db down")}, testCaller)
	w := serve(r, http.MethodGet, "/timetables/stats", nil)
	body := assertError(t, w, http.StatusInternalServerError, 50000, pkgerrors.KindSystem)
	if strings.Contains(body["detail"].(string), "db down") {
		t.Error("内部错误不应暴露底层信息")
	}
}

// ═══════════════════════════════════════════════════════════
// GenerationHandler Tests
// ═══════════════════════════════════════════════════════════

func generationRouter(mock *mockGenerationService) *gin.Engine {
	h := NewGenerationHandler(mock)
	r := gin.New()
	r.POST("/timetables/generate", withCaller(testCaller, h.Generate))
	r.GET("/timetables/jobs/:id", h.GetJob)
	r.GET("/timetables/jobs/:id/conflicts", h.GetConflicts)
	r.POST("/timetables/jobs/:id/cancel", withCaller(testCaller, h.CancelJob))
	return r
}

func TestGenerationHandler_Generate(t *testing.T) {
	mock := &mockGenerationService{generateResult: &dto.GenerateResponse{JobIDs: []uint{5, 6}, Message: "已提交"}}
	r := generationRouter(mock)

	w := serve(r, http.MethodPost, "/timetables/generate", jsonBody(map[string]interface{}{"class_ids": []uint{1, 2}}))
	if w.Code != http.StatusAccepted {
		t.Fatalf("期望 202，实际: %d", w.Code)
	}
	if ids := parseBody(t, w)["job_ids"].([]interface{}); len(ids) != 2 {
		t.Errorf("期望两个任务 ID，实际: %v", ids)
	}
}

func TestGenerationHandler_Generate_Errors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   int
		kind   pkgerrors.Kind
	}{
		{"无班级", jobs.ErrNoClasses, http.StatusBadRequest, 31003, pkgerrors.KindValidation},
		{"班级不存在", fmt.Errorf("%w: %d", jobs.ErrClassNotFound, 9), http.StatusNotFound, 31002, pkgerrors.KindNotFound},
		{"任务进行中", fmt.Errorf("%w: 班级 1", jobs.ErrJobInProgress), http.StatusConflict, 31004, pkgerrors.KindConflict},
		{"队列已满", jobs.ErrQueueFull, http.StatusServiceUnavailable, 31005, pkgerrors.KindSystem},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := generationRouter(&mockGenerationService{generateErr: tc.err})
			w := serve(r, http.MethodPost, "/timetables/generate", jsonBody(map[string]uint{"class_id": 1}))
			assertError(t, w, tc.status, tc.code, tc.kind)
		})
	}
}

func TestGenerationHandler_Jobs(t *testing.T) {
	mock := &mockGenerationService{
		jobResult: &dto.JobResponse{ID: 3, Status: "running"},
		conflictsResult: &dto.ConflictReportResponse{
			JobID: 3, Status: "running", Finished: false,
		},
	}
	r := generationRouter(mock)

	w := serve(r, http.MethodGet, "/timetables/jobs/3", nil)
	if w.Code != http.StatusOK || parseBody(t, w)["status"] != "running" {
		t.Errorf("期望 running，实际: %d %s", w.Code, w.Body.String())
	}

	w = serve(r, http.MethodGet, "/timetables/jobs/3/conflicts", nil)
	if w.Code != http.StatusOK || parseBody(t, w)["finished"] != false {
		t.Errorf("未结束任务期望 finished=false，实际: %s", w.Body.String())
	}

	mock.jobErr = service.ErrJobNotFound
	w = serve(r, http.MethodGet, "/timetables/jobs/4", nil)
	assertError(t, w, http.StatusNotFound, 31001, pkgerrors.KindNotFound)
}

func TestGenerationHandler_CancelJob(t *testing.T) {
	mock := &mockGenerationService{cancelResult: &dto.JobResponse{ID: 3, Status: "failed"}}
	r := generationRouter(mock)

	w := serve(r, http.MethodPost, "/timetables/jobs/3/cancel", nil)
	if w.Code != http.StatusOK {
		t.Errorf("期望 200，实际: %d", w.Code)
	}

	mock.cancelErr = jobs.ErrJobFinished
	w = serve(r, http.MethodPost, "/timetables/jobs/3/cancel", nil)
	assertError(t, w, http.StatusConflict, 31006, pkgerrors.KindConflict)

	mock.cancelErr = jobs.ErrNotCancellable
	w = serve(r, http.MethodPost, "/timetables/jobs/3/cancel", nil)
	assertError(t, w, http.StatusConflict, 31007, pkgerrors.KindConflict)

	mock.cancelErr = jobs.ErrCommitting
	w = serve(r, http.MethodPost, "/timetables/jobs/3/cancel", nil)
	body := assertError(t, w, http.StatusConflict, 31007, pkgerrors.KindConflict)
	if !strings.Contains(body["detail"].(string), "提交") {
		t.Errorf("期望提示已开始提交，实际: %v", body["detail"])
	}
}

// ═══════════════════════════════════════════════════════════
// CatalogHandler Tests
// ═══════════════════════════════════════════════════════════

func TestCatalogHandler_CreateClass(t *testing.T) {
	mock := &mockCatalogService{classResult: &dto.ClassResponse{ID: 1, Name: "5A", Size: 28}}
	h := NewCatalogHandler(mock)
	r := gin.New()
	r.POST("/classes", h.CreateClass)

	w := serve(r, http.MethodPost, "/classes", jsonBody(dto.CreateClassRequest{Name: "5A", Size: 28}))
	if w.Code != http.StatusCreated || mock.lastClassName != "5A" {
		t.Errorf("期望 201，实际: %d %s", w.Code, w.Body.String())
	}

	w = serve(r, http.MethodPost, "/classes", jsonBody(map[string]int{"size": 10}))
	assertError(t, w, http.StatusBadRequest, 10001, pkgerrors.KindValidation)

	mock.err = service.ErrDuplicate
	w = serve(r, http.MethodPost, "/classes", jsonBody(dto.CreateClassRequest{Name: "5A"}))
	assertError(t, w, http.StatusConflict, 20006, pkgerrors.KindConflict)
}

func TestCatalogHandler_DeleteSubject_InUse(t *testing.T) {
	mock := &mockCatalogService{deleteErr: &service.InUseError{Resource: "科目", ID: 2, References: 5, CascadeAllowed: true}}
	h := NewCatalogHandler(mock)
	r := gin.New()
	r.DELETE("/subjects/:id", h.DeleteSubject)

	w := serve(r, http.MethodDelete, "/subjects/2", nil)
	body := assertError(t, w, http.StatusConflict, 20008, pkgerrors.KindConflict)
	if body["references"].(float64) != 5 || body["cascade_allowed"] != true {
		t.Errorf("期望附带引用数与级联提示，实际: %v", body)
	}
	if mock.lastCascade {
		t.Error("未传 cascade 时不应级联")
	}

	mock.deleteErr = nil
	w = serve(r, http.MethodDelete, "/subjects/2?cascade=true", nil)
	if w.Code != http.StatusNoContent || !mock.lastCascade {
		t.Errorf("期望级联删除返回 204，实际: %d cascade=%v", w.Code, mock.lastCascade)
	}
}

func TestCatalogHandler_GetClass_NotFound(t *testing.T) {
	h := NewCatalogHandler(&mockCatalogService{err: service.ErrClassNotFound})
	r := gin.New()
	r.GET("/classes/:id", h.GetClass)

	w := serve(r, http.MethodGet, "/classes/42", nil)
	assertError(t, w, http.StatusNotFound, 20001, pkgerrors.KindNotFound)
}

// ═══════════════════════════════════════════════════════════
// AvailabilityHandler Tests
// ═══════════════════════════════════════════════════════════

func TestAvailabilityHandler_SetTeacher(t *testing.T) {
	tid := uint(3)
	mock := &mockAvailabilityService{result: &dto.AvailabilityResponse{ID: 1, TeacherID: &tid, Weekday: 0, IndexInDay: 2}}
	h := NewAvailabilityHandler(mock)
	r := gin.New()
	r.POST("/teachers/:id/availability", withCaller(testCaller, h.SetTeacher))

	w := serve(r, http.MethodPost, "/teachers/3/availability", strings.NewReader(`{"weekday":0,"index_in_day":2,"available":false}`))
	if w.Code != http.StatusOK {
		t.Fatalf("期望 200，实际: %d (%s)", w.Code, w.Body.String())
	}
	if _, ok := parseBody(t, w)["room_id"]; ok {
		t.Error("教师记录不应包含 room_id")
	}

	mock.err = service.ErrForbidden
	w = serve(r, http.MethodPost, "/teachers/3/availability", strings.NewReader(`{"weekday":0,"index_in_day":2}`))
	assertError(t, w, http.StatusForbidden, 21003, "forbidden")

	w = serve(r, http.MethodPost, "/teachers/3/availability", strings.NewReader(`{"weekday":-1,"index_in_day":2}`))
	assertError(t, w, http.StatusBadRequest, 10001, pkgerrors.KindValidation)
}

// ═══════════════════════════════════════════════════════════
// ExportHandler / AuditHandler Tests
// ═══════════════════════════════════════════════════════════

func TestExportHandler_ExportClass(t *testing.T) {
	mock := &mockExportService{file: &service.ExportFile{
		Content:     bytes.NewBufferString("BEGIN:VCALENDAR"),
		FileName:    "课表_5A.ics",
		ContentType: "text/calendar; charset=utf-8",
	}}
	h := NewExportHandler(mock)
	r := gin.New()
	r.GET("/timetables/classes/:id/export", h.ExportClass)

	w := serve(r, http.MethodGet, "/timetables/classes/1/export?format=ics&weeks=12", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("期望 200，实际: %d", w.Code)
	}
	if mock.lastReq.Format != "ics" || mock.lastReq.Weeks != 12 {
		t.Errorf("查询参数未绑定，实际: %+v", mock.lastReq)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "filename*=UTF-8''%E8%AF%BE%E8%A1%A8_5A.ics") {
		t.Errorf("Content-Disposition 不符，实际: %s", cd)
	}
	if w.Body.String() != "BEGIN:VCALENDAR" {
		t.Errorf("响应体不符，实际: %s", w.Body.String())
	}

	w = serve(r, http.MethodGet, "/timetables/classes/1/export?format=pdf", nil)
	assertError(t, w, http.StatusBadRequest, 10001, pkgerrors.KindValidation)

	mock.err = service.ErrClassNotFound
	w = serve(r, http.MethodGet, "/timetables/classes/1/export", nil)
	assertError(t, w, http.StatusNotFound, 32001, pkgerrors.KindNotFound)
}

func TestAuditHandler_List(t *testing.T) {
	mock := &mockAuditService{result: &dto.AuditLogListResponse{Items: []dto.AuditLogResponse{}, Total: 0, Page: 2, PageSize: 10}}
	h := NewAuditHandler(mock)
	r := gin.New()
	r.GET("/audit-logs", h.List)

	w := serve(r, http.MethodGet, "/audit-logs?page=2&page_size=10", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("期望 200，实际: %d", w.Code)
	}
	if mock.lastReq.Page != 2 || mock.lastReq.PageSize != 10 {
		t.Errorf("分页参数未绑定，实际: %+v", mock.lastReq)
	}

	w = serve(r, http.MethodGet, "/audit-logs?page_size=1000", nil)
	assertError(t, w, http.StatusBadRequest, 10001, pkgerrors.KindValidation)
}

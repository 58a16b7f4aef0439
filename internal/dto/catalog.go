package dto

// ── 基础数据 DTO ──

// CreateClassRequest 创建班级请求
type CreateClassRequest struct {
	Name string `json:"name" binding:"required,min=1,max=100"`
	Size int    `json:"size" binding:"min=0"`
}

// UpdateClassRequest 更新班级请求
type UpdateClassRequest struct {
	Name *string `json:"name" binding:"omitempty,min=1,max=100"`
	Size *int    `json:"size" binding:"omitempty,min=0"`
}

// ClassResponse 班级信息响应
type ClassResponse struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
	Size int    `json:"size"`
}

// CreateSubjectRequest 创建科目请求
type CreateSubjectRequest struct {
	Name      string `json:"name"       binding:"required,min=1,max=100"`
	ShortCode string `json:"short_code" binding:"required,min=1,max=20"`
}

// UpdateSubjectRequest 更新科目请求
type UpdateSubjectRequest struct {
	Name      *string `json:"name"       binding:"omitempty,min=1,max=100"`
	ShortCode *string `json:"short_code" binding:"omitempty,min=1,max=20"`
}

// SubjectResponse 科目信息响应
type SubjectResponse struct {
	ID        uint   `json:"id"`
	Name      string `json:"name"`
	ShortCode string `json:"short_code"`
}

// CreateRoomRequest 创建教室请求
type CreateRoomRequest struct {
	Name     string `json:"name"     binding:"required,min=1,max=100"`
	Capacity int    `json:"capacity" binding:"min=0"`
}

// UpdateRoomRequest 更新教室请求
type UpdateRoomRequest struct {
	Name     *string `json:"name"     binding:"omitempty,min=1,max=100"`
	Capacity *int    `json:"capacity" binding:"omitempty,min=0"`
}

// RoomResponse 教室信息响应
type RoomResponse struct {
	ID       uint   `json:"id"`
	Name     string `json:"name"`
	Capacity int    `json:"capacity"`
}

// CreateTeacherRequest 创建教师请求
type CreateTeacherRequest struct {
	Name       string  `json:"name"        binding:"required,min=1,max=100"`
	ExternalID *string `json:"external_id" binding:"omitempty,max=100"`
	SubjectIDs []uint  `json:"subject_ids"`
}

// UpdateTeacherRequest 更新教师请求，subject_ids 缺省时保留原有科目
type UpdateTeacherRequest struct {
	Name       *string `json:"name"        binding:"omitempty,min=1,max=100"`
	ExternalID *string `json:"external_id" binding:"omitempty,max=100"`
	SubjectIDs *[]uint `json:"subject_ids"`
}

// TeacherResponse 教师信息响应
type TeacherResponse struct {
	ID         uint              `json:"id"`
	Name       string            `json:"name"`
	ExternalID *string           `json:"external_id,omitempty"`
	SubjectIDs []uint            `json:"subject_ids"`
	Subjects   []SubjectResponse `json:"subjects"`
}

// CreateCurriculumRequest 创建教学计划请求
type CreateCurriculumRequest struct {
	ClassID      uint `json:"class_id"       binding:"required"`
	SubjectID    uint `json:"subject_id"     binding:"required"`
	HoursPerWeek int  `json:"hours_per_week" binding:"required,min=1"`
}

// UpdateCurriculumRequest 更新教学计划请求
type UpdateCurriculumRequest struct {
	HoursPerWeek int `json:"hours_per_week" binding:"required,min=1"`
}

// CurriculumListRequest 教学计划列表查询参数
type CurriculumListRequest struct {
	ClassID *uint `form:"class_id"`
}

// CurriculumResponse 教学计划响应
type CurriculumResponse struct {
	ID           uint   `json:"id"`
	ClassID      uint   `json:"class_id"`
	SubjectID    uint   `json:"subject_id"`
	SubjectName  string `json:"subject_name,omitempty"`
	HoursPerWeek int    `json:"hours_per_week"`
}

// TimeSlotResponse 节次响应
type TimeSlotResponse struct {
	ID         uint   `json:"id"`
	Weekday    int    `json:"weekday"`
	IndexInDay int    `json:"index_in_day"`
	StartTime  string `json:"start_time,omitempty"`
	EndTime    string `json:"end_time,omitempty"`
}

// DeleteRequest 删除参数，cascade 仅在删除策略允许时生效
type DeleteRequest struct {
	Cascade bool `form:"cascade"`
}

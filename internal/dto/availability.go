package dto

// SetAvailabilityRequest 设置某节次可用性，缺省 available=true
type SetAvailabilityRequest struct {
	Weekday    int   `json:"weekday"      binding:"weekday"`
	IndexInDay int   `json:"index_in_day" binding:"required,min=1"`
	Available  *bool `json:"available"`
}

// AvailabilityResponse 可用性记录响应，owner 字段二选一
type AvailabilityResponse struct {
	ID         uint  `json:"id"`
	TeacherID  *uint `json:"teacher_id,omitempty"`
	RoomID     *uint `json:"room_id,omitempty"`
	Weekday    int   `json:"weekday"`
	IndexInDay int   `json:"index_in_day"`
	Available  bool  `json:"available"`
}

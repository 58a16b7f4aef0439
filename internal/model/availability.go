package model

import "time"

// TeacherAvailability 教师每周可用性，对应 teacher_availabilities
// 没有记录的节次视为可用
type TeacherAvailability struct {
	ID         uint      `gorm:"primaryKey"                                    json:"id"`
	TeacherID  uint      `gorm:"not null;uniqueIndex:uq_teacher_availability" json:"teacher_id"`
	Weekday    int       `gorm:"type:smallint;not null;uniqueIndex:uq_teacher_availability" json:"weekday"`
	IndexInDay int       `gorm:"type:smallint;not null;uniqueIndex:uq_teacher_availability" json:"index_in_day"`
	Available  bool      `gorm:"not null;default:true"                         json:"available"`
	UpdatedAt  time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"            json:"updated_at"`
}

// TableName 指定表名
func (TeacherAvailability) TableName() string { return "teacher_availabilities" }

// RoomAvailability 教室每周可用性，对应 room_availabilities
type RoomAvailability struct {
	ID         uint      `gorm:"primaryKey"                                 json:"id"`
	RoomID     uint      `gorm:"not null;uniqueIndex:uq_room_availability" json:"room_id"`
	Weekday    int       `gorm:"type:smallint;not null;uniqueIndex:uq_room_availability" json:"weekday"`
	IndexInDay int       `gorm:"type:smallint;not null;uniqueIndex:uq_room_availability" json:"index_in_day"`
	Available  bool      `gorm:"not null;default:true"                      json:"available"`
	UpdatedAt  time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"         json:"updated_at"`
}

// TableName 指定表名
func (RoomAvailability) TableName() string { return "room_availabilities" }

package model

// TimetableEntry 课表条目，对应 timetable_entries
// (class, weekday, index)、(teacher, weekday, index)、(room, weekday, index) 各自唯一
type TimetableEntry struct {
	ID         uint  `gorm:"primaryKey"            json:"id"`
	ClassID    uint  `gorm:"not null;index"        json:"class_id"`
	SubjectID  uint  `gorm:"not null;index"        json:"subject_id"`
	TeacherID  uint  `gorm:"not null"              json:"teacher_id"`
	RoomID     *uint `gorm:""                      json:"room_id"`
	Weekday    int   `gorm:"type:smallint;not null" json:"weekday"`
	IndexInDay int   `gorm:"type:smallint;not null" json:"index_in_day"`
	VersionedModel

	// 关联
	Subject *Subject `gorm:"foreignKey:SubjectID" json:"-"`
	Room    *Room    `gorm:"foreignKey:RoomID"    json:"-"`
	Teacher *Teacher `gorm:"foreignKey:TeacherID" json:"-"`
}

// TableName 指定表名
func (TimetableEntry) TableName() string { return "timetable_entries" }

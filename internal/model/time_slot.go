package model

// TimeSlot 每周固定节次，对应 time_slots
// Weekday 0=周一，IndexInDay 从 1 开始
type TimeSlot struct {
	ID         uint   `gorm:"primaryKey"                                           json:"id"`
	Weekday    int    `gorm:"type:smallint;not null;uniqueIndex:uq_time_slots_weekday_index" json:"weekday"`
	IndexInDay int    `gorm:"type:smallint;not null;uniqueIndex:uq_time_slots_weekday_index" json:"index_in_day"`
	StartTime  string `gorm:"type:varchar(5)"                                      json:"start_time,omitempty"`
	EndTime    string `gorm:"type:varchar(5)"                                      json:"end_time,omitempty"`
}

// TableName 指定表名
func (TimeSlot) TableName() string { return "time_slots" }

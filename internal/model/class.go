package model

// SchoolClass 班级表，对应 classes
type SchoolClass struct {
	ID   uint   `gorm:"primaryKey"                        json:"id"`
	Name string `gorm:"type:varchar(100);not null;unique" json:"name"`
	Size int    `gorm:"not null;default:0"                json:"size"` // 学生人数，用于教室容量校验
	BaseModel
}

// TableName 指定表名
func (SchoolClass) TableName() string { return "classes" }

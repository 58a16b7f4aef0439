package model

// Curriculum 教学计划，对应 curricula，(class_id, subject_id) 唯一
type Curriculum struct {
	ID           uint `gorm:"primaryKey"                                  json:"id"`
	ClassID      uint `gorm:"not null;uniqueIndex:uq_curricula_class_subject" json:"class_id"`
	SubjectID    uint `gorm:"not null;uniqueIndex:uq_curricula_class_subject" json:"subject_id"`
	HoursPerWeek int  `gorm:"not null"                                    json:"hours_per_week"`
	BaseModel

	// 关联
	Class   *SchoolClass `gorm:"foreignKey:ClassID"   json:"-"`
	Subject *Subject     `gorm:"foreignKey:SubjectID" json:"-"`
}

// TableName 指定表名
func (Curriculum) TableName() string { return "curricula" }

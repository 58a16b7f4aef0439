package model

// Teacher 教师表，对应 teachers
type Teacher struct {
	ID         uint    `gorm:"primaryKey"                json:"id"`
	Name       string  `gorm:"type:varchar(100);not null" json:"name"`
	ExternalID *string `gorm:"type:varchar(100);unique"  json:"external_id,omitempty"` // IdP 中的用户标识
	BaseModel

	// 关联：可授科目
	Subjects []Subject `gorm:"many2many:teacher_subjects" json:"subjects,omitempty"`
}

// TableName 指定表名
func (Teacher) TableName() string { return "teachers" }

// SubjectIDs 返回教师可授科目 ID 列表
func (t *Teacher) SubjectIDs() []uint {
	ids := make([]uint, 0, len(t.Subjects))
	for _, s := range t.Subjects {
		ids = append(ids, s.ID)
	}
	return ids
}

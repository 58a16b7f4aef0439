package model

// Subject 科目表，对应 subjects
type Subject struct {
	ID        uint   `gorm:"primaryKey"                       json:"id"`
	Name      string `gorm:"type:varchar(100);not null"       json:"name"`
	ShortCode string `gorm:"type:varchar(20);not null;unique" json:"short_code"`
	BaseModel
}

// TableName 指定表名
func (Subject) TableName() string { return "subjects" }

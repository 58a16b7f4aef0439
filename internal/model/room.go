package model

// Room 教室表，对应 rooms
type Room struct {
	ID       uint   `gorm:"primaryKey"                        json:"id"`
	Name     string `gorm:"type:varchar(100);not null;unique" json:"name"`
	Capacity int    `gorm:"not null;default:0"                json:"capacity"`
	BaseModel
}

// TableName 指定表名
func (Room) TableName() string { return "rooms" }

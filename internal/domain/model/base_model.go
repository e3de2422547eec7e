package model

import (
	"time"
)

// BaseModel 共用時間欄位
// CreatedAt 由 store 指派，呼叫端設定的值會被覆蓋
type BaseModel struct {
	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"null" json:"updated_at"`
}

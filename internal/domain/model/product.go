package model

import (
	"github.com/shopspring/decimal"
)

// Product 屬於單一 wholesaler
// 只有擁有者可以新增/修改/刪除
type Product struct {
	ID       string          `gorm:"primaryKey;type:varchar(64)" json:"id"`
	OwnerID  string          `gorm:"not null;index;type:varchar(128)" json:"owner_id"`
	Name     string          `gorm:"not null;type:varchar(200)" json:"name"`
	Price    decimal.Decimal `gorm:"not null;type:decimal(14,2)" json:"price"`
	Category string          `gorm:"not null;type:varchar(50)" json:"category"`
	ImageURL string          `gorm:"not null;type:text" json:"image_url"`
	BaseModel
}

// ProductWithVariants 瀏覽商品頁使用
type ProductWithVariants struct {
	Product
	Variants []Variant `json:"variants"`
}

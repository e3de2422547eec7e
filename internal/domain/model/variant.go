package model

import (
	"strings"
)

type VariantStatus string

const (
	VariantStatusAvailable VariantStatus = "available"
	VariantStatusOut       VariantStatus = "out"
)

// StatusOf status 是 stock 的投影，不是獨立欄位
func StatusOf(stock int) VariantStatus {
	if stock > 0 {
		return VariantStatusAvailable
	}
	return VariantStatusOut
}

// Variant 商品的 (color, size) 庫存單位
// Status 只能透過 SetStock 改變
type Variant struct {
	ID        string        `gorm:"primaryKey;type:varchar(64)" json:"id"`
	ProductID string        `gorm:"not null;index;type:varchar(64)" json:"product_id"`
	Color     string        `gorm:"not null;type:varchar(50)" json:"color"`
	Size      string        `gorm:"not null;type:varchar(50)" json:"size"`
	Stock     int           `gorm:"not null;type:int;check:stock >= 0" json:"stock"`
	Status    VariantStatus `gorm:"not null;type:varchar(16)" json:"status"`
	Version   int64         `gorm:"not null;default:0" json:"version"`
	BaseModel
}

// SetStock 寫入庫存並重新計算 status
func (v *Variant) SetStock(stock int) {
	v.Stock = stock
	v.Status = StatusOf(stock)
}

// Matches 比對 (color, size)，忽略前後空白
func (v *Variant) Matches(color, size string) bool {
	return strings.TrimSpace(v.Color) == strings.TrimSpace(color) &&
		strings.TrimSpace(v.Size) == strings.TrimSpace(size)
}

// FindVariant 依序比對，回傳第一個符合的 variant
// (color, size) 沒有唯一限制，重複時以第一筆為準
func FindVariant(variants []Variant, color, size string) (*Variant, bool) {
	for i := range variants {
		if variants[i].Matches(color, size) {
			return &variants[i], true
		}
	}
	return nil, false
}

// DuplicateVariants 回傳重複的 (color, size) 組合
func DuplicateVariants(variants []Variant) [][2]string {
	seen := make(map[[2]string]int, len(variants))
	var dups [][2]string
	for _, v := range variants {
		k := [2]string{strings.TrimSpace(v.Color), strings.TrimSpace(v.Size)}
		seen[k]++
		if seen[k] == 2 {
			dups = append(dups, k)
		}
	}
	return dups
}

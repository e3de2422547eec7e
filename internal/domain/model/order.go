package model

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Customer 結帳表單，所有欄位必填
type Customer struct {
	Name    string `gorm:"not null;type:varchar(200)" json:"name"`
	Email   string `gorm:"not null;type:varchar(200)" json:"email"`
	Phone   string `gorm:"not null;type:varchar(50)" json:"phone"`
	Address string `gorm:"not null;type:varchar(255)" json:"address"`
	City    string `gorm:"not null;type:varchar(100)" json:"city"`
}

// Normalize 去除前後空白
func (c Customer) Normalize() Customer {
	return Customer{
		Name:    strings.TrimSpace(c.Name),
		Email:   strings.TrimSpace(c.Email),
		Phone:   strings.TrimSpace(c.Phone),
		Address: strings.TrimSpace(c.Address),
		City:    strings.TrimSpace(c.City),
	}
}

// MissingFields 回傳空白的欄位名稱(json name)
func (c Customer) MissingFields() []string {
	n := c.Normalize()
	var missing []string
	for _, f := range []struct {
		name  string
		value string
	}{
		{"name", n.Name},
		{"email", n.Email},
		{"phone", n.Phone},
		{"address", n.Address},
		{"city", n.City},
	} {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

// Order 結帳成功後的收據，建立後不可修改
type Order struct {
	ID           string          `gorm:"primaryKey;type:varchar(64)" json:"id"`
	WholesalerID string          `gorm:"not null;index;type:varchar(128)" json:"wholesaler_id"`
	RetailerID   string          `gorm:"not null;type:varchar(128)" json:"retailer_id"`
	Customer     Customer        `gorm:"embedded;embeddedPrefix:customer_" json:"customer"`
	LineItems    []CartLineItem  `gorm:"serializer:json;type:jsonb;not null" json:"line_items"`
	Subtotal     decimal.Decimal `gorm:"not null;type:decimal(14,3)" json:"subtotal"`
	Tax          decimal.Decimal `gorm:"not null;type:decimal(14,3)" json:"tax"`
	Shipping     decimal.Decimal `gorm:"not null;type:decimal(14,3)" json:"shipping"`
	Total        decimal.Decimal `gorm:"not null;type:decimal(14,3)" json:"total"`
	TotalDisplay string          `gorm:"not null;type:varchar(64)" json:"total_display"`
	BaseModel
}

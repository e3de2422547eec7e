package model

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	lineKeySep    = '|'
	lineKeyEscape = '\\'
)

var lineKeyEscaper = strings.NewReplacer(`\`, `\\`, "|", `\|`)

// LineKey 購物車品項的組合鍵
// 用 productID 而不是商品名稱，避免不同商品同名時互相覆蓋
type LineKey struct {
	ProductID string `json:"product_id"`
	Color     string `json:"color"`
	Size      string `json:"size"`
}

func NewLineKey(productID, color, size string) LineKey {
	return LineKey{
		ProductID: strings.TrimSpace(productID),
		Color:     strings.TrimSpace(color),
		Size:      strings.TrimSpace(size),
	}
}

// String 各欄位中的 "|" 與 "\" 會被 escape，("a|b","c") 與 ("a","b|c") 不會得到同一個 key
func (k LineKey) String() string {
	sep := string(lineKeySep)
	return lineKeyEscaper.Replace(k.ProductID) + sep +
		lineKeyEscaper.Replace(k.Color) + sep +
		lineKeyEscaper.Replace(k.Size)
}

// ParseLineKey 解析 String() 的結果
func ParseLineKey(s string) (LineKey, error) {
	var (
		parts   []string
		current strings.Builder
		escaped bool
	)
	for _, r := range s {
		switch {
		case escaped:
			current.WriteRune(r)
			escaped = false
		case r == lineKeyEscape:
			escaped = true
		case r == lineKeySep:
			parts = append(parts, current.String())
			current.Reset()
		default:
			current.WriteRune(r)
		}
	}
	parts = append(parts, current.String())

	if escaped || len(parts) != 3 || parts[0] == "" {
		return LineKey{}, fmt.Errorf("invalid line key %q", s)
	}
	return NewLineKey(parts[0], parts[1], parts[2]), nil
}

// CartLineItem 購物車品項
// 價格與圖片在加入時複製，不會跟著商品更新
type CartLineItem struct {
	Key          string          `json:"key"`
	ProductID    string          `json:"product_id"`
	ProductName  string          `json:"product_name"`
	WholesalerID string          `json:"wholesaler_id"`
	VariantID    string          `json:"variant_id"`
	Color        string          `json:"color"`
	Size         string          `json:"size"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	ImageURL     string          `json:"image_url"`
}

func (i CartLineItem) LineKey() LineKey {
	return NewLineKey(i.ProductID, i.Color, i.Size)
}

// DisplayName 例: Shirt (red, M)
func (i CartLineItem) DisplayName() string {
	name := i.ProductName
	if name == "" {
		name = i.ProductID
	}
	return fmt.Sprintf("%s (%s, %s)", name, i.Color, i.Size)
}

// Amount 單價 * 數量
func (i CartLineItem) Amount() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

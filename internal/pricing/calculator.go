package pricing

import (
	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
	"github.com/shopspring/decimal"
)

var (
	DefaultTaxRate        = decimal.RequireFromString("0.085")
	DefaultShippingFee    = decimal.NewFromInt(2000)
	DefaultCurrencySymbol = "₦"
)

// Calculator 純函數，不做任何 I/O
type Calculator struct {
	TaxRate        decimal.Decimal
	ShippingFee    decimal.Decimal
	CurrencySymbol string
}

func NewCalculator(taxRate, shippingFee decimal.Decimal, currencySymbol string) Calculator {
	return Calculator{
		TaxRate:        taxRate,
		ShippingFee:    shippingFee,
		CurrencySymbol: currencySymbol,
	}
}

func DefaultCalculator() Calculator {
	return NewCalculator(DefaultTaxRate, DefaultShippingFee, DefaultCurrencySymbol)
}

type Summary struct {
	Subtotal       decimal.Decimal `json:"subtotal"`
	Tax            decimal.Decimal `json:"tax"`
	Shipping       decimal.Decimal `json:"shipping"`
	Total          decimal.Decimal `json:"total"`
	CurrencySymbol string          `json:"currency_symbol"`
}

/*
計算購物車金額

	subtotal = Σ unitPrice × quantity
	tax      = subtotal × TaxRate
	shipping = ShippingFee (subtotal > 0), 否則 0
	total    = subtotal + tax + shipping
*/
func (c Calculator) Summarize(items []model.CartLineItem) Summary {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.Amount())
	}

	tax := subtotal.Mul(c.TaxRate)
	shipping := decimal.Zero
	if subtotal.IsPositive() {
		shipping = c.ShippingFee
	}

	return Summary{
		Subtotal:       subtotal,
		Tax:            tax,
		Shipping:       shipping,
		Total:          subtotal.Add(tax).Add(shipping),
		CurrencySymbol: c.CurrencySymbol,
	}
}

// Display 訂單上顯示的總金額字串
func (s Summary) Display() string {
	return s.CurrencySymbol + s.Total.StringFixed(2)
}

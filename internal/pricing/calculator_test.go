package pricing

import (
	"testing"

	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func item(price string, qty int) model.CartLineItem {
	return model.CartLineItem{UnitPrice: decimal.RequireFromString(price), Quantity: qty}
}

func TestSummarize(t *testing.T) {
	calc := DefaultCalculator()

	testCases := []struct {
		name     string
		items    []model.CartLineItem
		subtotal string
		tax      string
		shipping string
		total    string
	}{
		{
			name:     "two lines",
			items:    []model.CartLineItem{item("10.00", 2), item("5.00", 1)},
			subtotal: "25",
			tax:      "2.125",
			shipping: "2000",
			total:    "2027.125",
		},
		{
			name:     "empty cart has no shipping",
			items:    nil,
			subtotal: "0",
			tax:      "0",
			shipping: "0",
			total:    "0",
		},
		{
			name:     "fractional prices",
			items:    []model.CartLineItem{item("0.10", 3)},
			subtotal: "0.3",
			tax:      "0.0255",
			shipping: "2000",
			total:    "2000.3255",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s := calc.Summarize(tc.items)
			require.True(t, decimal.RequireFromString(tc.subtotal).Equal(s.Subtotal), "subtotal %s", s.Subtotal)
			require.True(t, decimal.RequireFromString(tc.tax).Equal(s.Tax), "tax %s", s.Tax)
			require.True(t, decimal.RequireFromString(tc.shipping).Equal(s.Shipping), "shipping %s", s.Shipping)
			require.True(t, decimal.RequireFromString(tc.total).Equal(s.Total), "total %s", s.Total)
		})
	}
}

func TestSummarizeIsDeterministic(t *testing.T) {
	calc := NewCalculator(decimal.RequireFromString("0.1"), decimal.NewFromInt(5), "$")
	items := []model.CartLineItem{item("3.33", 3), item("1.01", 7)}

	first := calc.Summarize(items)
	second := calc.Summarize(items)
	require.True(t, first.Total.Equal(second.Total))
	require.Equal(t, "$23.77", first.Display())
}

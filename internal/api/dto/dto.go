package dto

import (
	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
	"github.com/RoyceAzure/lab/storefront/internal/ledger"
	"github.com/RoyceAzure/lab/storefront/internal/pricing"
	"github.com/RoyceAzure/lab/storefront/internal/service"
	"github.com/shopspring/decimal"
)

type AddCartItemDTO struct {
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id"`
	Quantity  int    `json:"quantity"`
}

type UpdateCartItemDTO struct {
	Delta int `json:"delta"`
}

// CartDTO 購物車與即時計算的金額
type CartDTO struct {
	SessionID    string               `json:"session_id"`
	Items        []model.CartLineItem `json:"items"`
	Count        int                  `json:"count"`
	Summary      pricing.Summary      `json:"summary"`
	TotalDisplay string               `json:"total_display"`
}

type CheckoutDTO struct {
	Customer model.Customer `json:"customer"`
}

// ValidationErrorData 400 回應的 data
type ValidationErrorData struct {
	Fields []string `json:"fields"`
}

// StockErrorData 409 庫存不足回應的 data
type StockErrorData struct {
	Item      string `json:"item"`
	Requested int    `json:"requested,omitempty"`
	Available int    `json:"available"`
}

type UpdateProductDTO struct {
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Category string          `json:"category"`
}

func (d UpdateProductDTO) ToInput() service.ProductInput {
	return service.ProductInput{Name: d.Name, Price: d.Price, Category: d.Category}
}

type AddVariantDTO struct {
	Color string `json:"color"`
	Size  string `json:"size"`
	Stock int    `json:"stock"`
}

func (d AddVariantDTO) ToInput() service.VariantInput {
	return service.VariantInput{Color: d.Color, Size: d.Size, Stock: d.Stock}
}

type AddVariantResponse struct {
	Variant  *model.Variant    `json:"variant"`
	Warnings []service.Warning `json:"warnings"`
}

type UpdateStockDTO struct {
	Stock *int `json:"stock"`
}

type StockStatusDTO struct {
	VariantID string              `json:"variant_id"`
	Stock     int                 `json:"stock"`
	Status    model.VariantStatus `json:"status"`
}

func NewStockStatusDTO(variantID string, s ledger.StockStatus) StockStatusDTO {
	return StockStatusDTO{VariantID: variantID, Stock: s.Stock, Status: s.Status}
}

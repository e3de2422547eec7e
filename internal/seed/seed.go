package seed

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/RoyceAzure/lab/storefront/internal/constants"
	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
	"github.com/RoyceAzure/lab/storefront/internal/ledger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type Variant struct {
	ID    string `yaml:"id"`
	Color string `yaml:"color"`
	Size  string `yaml:"size"`
	Stock int    `yaml:"stock"`
}

type Product struct {
	ID       string    `yaml:"id"`
	OwnerID  string    `yaml:"owner_id"`
	Name     string    `yaml:"name"`
	Price    string    `yaml:"price"`
	Category string    `yaml:"category"`
	ImageURL string    `yaml:"image_url"`
	Variants []Variant `yaml:"variants"`
}

// Catalog 本機開發用的初始商品
type Catalog struct {
	Products []Product `yaml:"products"`
}

func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	c := &Catalog{}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Catalog) Validate() error {
	for i, p := range c.Products {
		if strings.TrimSpace(p.ID) == "" || strings.TrimSpace(p.OwnerID) == "" || strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf("seed product #%d: id, owner_id and name are required", i)
		}
		price, err := decimal.NewFromString(p.Price)
		if err != nil || !price.IsPositive() {
			return fmt.Errorf("seed product %s: invalid price %q", p.ID, p.Price)
		}
		for _, v := range p.Variants {
			if v.Stock < 0 {
				return fmt.Errorf("seed product %s: variant (%s, %s) has negative stock", p.ID, v.Color, v.Size)
			}
		}
	}
	return nil
}

// Apply 寫入不存在的商品，已存在的 id 直接略過
// 回傳新增的商品數
func Apply(ctx context.Context, repo ledger.CatalogRepository, c *Catalog) (int, error) {
	created := 0
	for _, p := range c.Products {
		_, err := repo.GetProduct(ctx, p.ID)
		if err == nil {
			continue
		}
		if !errors.Is(err, ledger.ErrProductNotFound) {
			return created, err
		}

		category := strings.TrimSpace(p.Category)
		if category == "" {
			category = constants.DefaultProductCategory
		}
		product := &model.Product{
			ID:       p.ID,
			OwnerID:  p.OwnerID,
			Name:     strings.TrimSpace(p.Name),
			Price:    decimal.RequireFromString(p.Price),
			Category: category,
			ImageURL: p.ImageURL,
		}
		if err := repo.CreateProduct(ctx, product); err != nil {
			return created, fmt.Errorf("seed product %s: %w", p.ID, err)
		}

		for _, v := range p.Variants {
			id := v.ID
			if id == "" {
				id = uuid.NewString()
			}
			variant := &model.Variant{
				ID:        id,
				ProductID: p.ID,
				Color:     strings.TrimSpace(v.Color),
				Size:      strings.TrimSpace(v.Size),
			}
			variant.SetStock(v.Stock)
			if err := repo.CreateVariant(ctx, variant); err != nil {
				return created, fmt.Errorf("seed variant of %s: %w", p.ID, err)
			}
		}
		created++
	}
	return created, nil
}

package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
	"github.com/RoyceAzure/lab/storefront/internal/pricing"
)

var (
	ErrLineNotFound    = errors.New("cart line not found")
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrVariantMismatch = errors.New("variant does not belong to product")
	ErrEmptySession    = errors.New("cart session id is required")
)

func generateCartKey(sessionID string) string {
	return fmt.Sprintf("cart:%s", sessionID)
}

// Cart 單一 session 擁有的購物車
// 每次異動都立即把整台購物車寫回 KV
type Cart struct {
	mu        sync.Mutex
	kv        KV
	sessionID string
	items     []model.CartLineItem
}

// Load 讀取 session 的購物車，不存在時回傳空購物車
func Load(ctx context.Context, kv KV, sessionID string) (*Cart, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, ErrEmptySession
	}

	c := &Cart{kv: kv, sessionID: sessionID}
	raw, ok, err := kv.Get(ctx, generateCartKey(sessionID))
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	if !ok || raw == "" {
		return c, nil
	}

	var items []model.CartLineItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("failed to decode cart %s: %w", sessionID, err)
	}
	for _, item := range items {
		if item.Quantity > 0 {
			c.items = append(c.items, item)
		}
	}
	return c, nil
}

func (c *Cart) SessionID() string {
	return c.sessionID
}

// Add 加入品項，相同 LineKey 合併數量
func (c *Cart) Add(ctx context.Context, product model.Product, variant model.Variant, quantity int) (model.CartLineItem, error) {
	if quantity < 1 {
		return model.CartLineItem{}, ErrInvalidQuantity
	}
	if variant.ProductID != product.ID {
		return model.CartLineItem{}, fmt.Errorf("%w: variant %s product %s", ErrVariantMismatch, variant.ID, product.ID)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key := model.NewLineKey(product.ID, variant.Color, variant.Size)
	next := c.cloneItems()
	idx := indexOfLineKey(next, key)
	if idx >= 0 {
		next[idx].Quantity += quantity
	} else {
		next = append(next, model.CartLineItem{
			Key:          key.String(),
			ProductID:    product.ID,
			ProductName:  product.Name,
			WholesalerID: product.OwnerID,
			VariantID:    variant.ID,
			Color:        key.Color,
			Size:         key.Size,
			Quantity:     quantity,
			UnitPrice:    product.Price,
			ImageURL:     product.ImageURL,
		})
		idx = len(next) - 1
	}

	if err := c.persist(ctx, next); err != nil {
		return model.CartLineItem{}, err
	}
	return next[idx], nil
}

// UpdateQuantity 以 delta 增減，結果 <= 0 時移除品項
func (c *Cart) UpdateQuantity(ctx context.Context, key string, delta int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := c.cloneItems()
	idx := indexOf(next, key)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrLineNotFound, key)
	}

	next[idx].Quantity += delta
	if next[idx].Quantity <= 0 {
		next = append(next[:idx], next[idx+1:]...)
	}
	return c.persist(ctx, next)
}

func (c *Cart) Remove(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := c.cloneItems()
	idx := indexOf(next, key)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrLineNotFound, key)
	}
	next = append(next[:idx], next[idx+1:]...)
	return c.persist(ctx, next)
}

// Clear 清空購物車並刪除 KV 紀錄
func (c *Cart) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.kv.Remove(ctx, generateCartKey(c.sessionID)); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	c.items = nil
	return nil
}

// Items 依加入順序回傳複本
func (c *Cart) Items() []model.CartLineItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cloneItems()
}

// Snapshot 結帳時寫入訂單的品項複本
func (c *Cart) Snapshot() []model.CartLineItem {
	return c.Items()
}

func (c *Cart) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Count 品項數量總和
func (c *Cart) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := 0
	for _, item := range c.items {
		total += item.Quantity
	}
	return total
}

func (c *Cart) IsEmpty() bool {
	return c.Len() == 0
}

// Summary 每次都重新計算，不快取
func (c *Cart) Summary(calc pricing.Calculator) pricing.Summary {
	return calc.Summarize(c.Items())
}

func (c *Cart) persist(ctx context.Context, next []model.CartLineItem) error {
	key := generateCartKey(c.sessionID)
	if len(next) == 0 {
		if err := c.kv.Remove(ctx, key); err != nil {
			return fmt.Errorf("failed to save cart: %w", err)
		}
		c.items = nil
		return nil
	}

	b, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("failed to encode cart: %w", err)
	}
	if err := c.kv.Set(ctx, key, string(b)); err != nil {
		return fmt.Errorf("failed to save cart: %w", err)
	}
	c.items = next
	return nil
}

func (c *Cart) cloneItems() []model.CartLineItem {
	out := make([]model.CartLineItem, len(c.items))
	copy(out, c.items)
	return out
}

func indexOfLineKey(items []model.CartLineItem, key model.LineKey) int {
	for i := range items {
		if items[i].LineKey() == key {
			return i
		}
	}
	return -1
}

func indexOf(items []model.CartLineItem, key string) int {
	for i := range items {
		if items[i].Key == key {
			return i
		}
	}
	return -1
}

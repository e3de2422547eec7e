package redis_repo

import (
	"fmt"
	"strconv"
	"time"

	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
)

func variantToHash(v *model.Variant) map[string]interface{} {
	return map[string]interface{}{
		"id":         v.ID,
		"product_id": v.ProductID,
		"color":      v.Color,
		"size":       v.Size,
		"stock":      v.Stock,
		"status":     string(v.Status),
		"version":    v.Version,
		"created_at": v.CreatedAt.Format(time.RFC3339Nano),
		"updated_at": v.UpdatedAt.Format(time.RFC3339Nano),
	}
}

// variantFromHash hash 為空代表不存在，回傳 false
func variantFromHash(h map[string]string) (model.Variant, bool, error) {
	if len(h) == 0 {
		return model.Variant{}, false, nil
	}

	stock, err := strconv.Atoi(h["stock"])
	if err != nil {
		return model.Variant{}, false, fmt.Errorf("decode variant %s stock: %w", h["id"], err)
	}
	version, err := strconv.ParseInt(h["version"], 10, 64)
	if err != nil {
		return model.Variant{}, false, fmt.Errorf("decode variant %s version: %w", h["id"], err)
	}

	v := model.Variant{
		ID:        h["id"],
		ProductID: h["product_id"],
		Color:     h["color"],
		Size:      h["size"],
		Version:   version,
	}
	v.SetStock(stock)
	v.CreatedAt, _ = time.Parse(time.RFC3339Nano, h["created_at"])
	v.UpdatedAt, _ = time.Parse(time.RFC3339Nano, h["updated_at"])
	return v, true, nil
}

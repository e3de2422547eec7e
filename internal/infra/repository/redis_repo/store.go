package redis_repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
	"github.com/RoyceAzure/lab/storefront/internal/ledger"
	"github.com/redis/go-redis/v9"
)

// Store 以 redis 作為 document store
// 交易使用 WATCH/MULTI/EXEC，EXEC 失敗視為衝突
type Store struct {
	client      *redis.Client
	maxAttempts int
	now         func() time.Time
}

func NewStore(client *redis.Client, maxAttempts int) *Store {
	if client == nil {
		panic("redis store client is nil")
	}
	return &Store{client: client, maxAttempts: maxAttempts, now: time.Now}
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) RunTransaction(ctx context.Context, fn ledger.TxFunc) error {
	return ledger.RunWithRetry(ctx, s.maxAttempts, func(ctx context.Context) error {
		return s.client.Watch(ctx, func(tx *redis.Tx) error {
			t := newTxn(s, tx)
			if err := fn(ctx, t); err != nil {
				return err
			}
			return t.commit(ctx)
		})
	})
}

func (s *Store) ReadVariant(ctx context.Context, productID, variantID string) (ledger.StockStatus, error) {
	h, err := s.client.HGetAll(ctx, generateVariantKey(productID, variantID)).Result()
	if err != nil {
		return ledger.StockStatus{}, ledger.Unavailable(err)
	}
	v, ok, err := variantFromHash(h)
	if err != nil {
		return ledger.StockStatus{}, err
	}
	if !ok {
		return ledger.StockStatus{}, ledger.ErrVariantNotFound
	}
	return ledger.StockStatus{Stock: v.Stock, Status: v.Status}, nil
}

// WriteVariant 單一 document 的樂觀鎖寫入
func (s *Store) WriteVariant(ctx context.Context, productID, variantID string, newStock int) (ledger.StockStatus, error) {
	if newStock < 0 {
		return ledger.StockStatus{}, ledger.ErrNegativeStock
	}

	key := generateVariantKey(productID, variantID)
	var res ledger.StockStatus
	err := ledger.RunWithRetry(ctx, s.maxAttempts, func(ctx context.Context) error {
		return s.client.Watch(ctx, func(tx *redis.Tx) error {
			exists, err := tx.Exists(ctx, key).Result()
			if err != nil {
				return ledger.Unavailable(err)
			}
			if exists == 0 {
				return ledger.ErrVariantNotFound
			}

			res = ledger.StockStatusOf(newStock)
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.HSet(ctx, key,
					"stock", res.Stock,
					"status", string(res.Status),
					"updated_at", s.now().UTC().Format(time.RFC3339Nano),
				)
				pipe.HIncrBy(ctx, key, "version", 1)
				return nil
			})
			return mapExecError(err)
		}, key)
	})
	if err != nil {
		return ledger.StockStatus{}, err
	}
	return res, nil
}

func mapExecError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, redis.TxFailedErr):
		return ledger.Conflict(err)
	default:
		return ledger.Unavailable(err)
	}
}

func (s *Store) CreateProduct(ctx context.Context, product *model.Product) error {
	now := s.now().UTC()
	product.CreatedAt = now
	product.UpdatedAt = now

	b, err := json.Marshal(product)
	if err != nil {
		return err
	}
	score := float64(now.UnixNano())
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, generateProductKey(product.ID), b, 0)
		pipe.ZAdd(ctx, generateOwnerProductsKey(product.OwnerID), redis.Z{Score: score, Member: product.ID})
		pipe.ZAdd(ctx, recentProductsKey, redis.Z{Score: score, Member: product.ID})
		return nil
	})
	if err != nil {
		return ledger.Unavailable(err)
	}
	return nil
}

func (s *Store) GetProduct(ctx context.Context, productID string) (*model.Product, error) {
	b, err := s.client.Get(ctx, generateProductKey(productID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ledger.ErrProductNotFound
		}
		return nil, ledger.Unavailable(err)
	}
	var p model.Product
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("decode product %s: %w", productID, err)
	}
	return &p, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product *model.Product) error {
	current, err := s.GetProduct(ctx, product.ID)
	if err != nil {
		return err
	}
	product.CreatedAt = current.CreatedAt
	product.UpdatedAt = s.now().UTC()

	b, err := json.Marshal(product)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, generateProductKey(product.ID), b, 0).Err(); err != nil {
		return ledger.Unavailable(err)
	}
	return nil
}

func (s *Store) DeleteProduct(ctx context.Context, productID string) error {
	p, err := s.GetProduct(ctx, productID)
	if err != nil {
		return err
	}
	listKey := generateVariantListKey(productID)
	ids, err := s.client.LRange(ctx, listKey, 0, -1).Result()
	if err != nil {
		return ledger.Unavailable(err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range ids {
			pipe.Del(ctx, generateVariantKey(productID, id))
		}
		pipe.Del(ctx, listKey, generateProductKey(productID))
		pipe.ZRem(ctx, generateOwnerProductsKey(p.OwnerID), productID)
		pipe.ZRem(ctx, recentProductsKey, productID)
		return nil
	})
	if err != nil {
		return ledger.Unavailable(err)
	}
	return nil
}

func (s *Store) ListProductsByOwner(ctx context.Context, ownerID string) ([]model.Product, error) {
	ids, err := s.client.ZRevRange(ctx, generateOwnerProductsKey(ownerID), 0, -1).Result()
	if err != nil {
		return nil, ledger.Unavailable(err)
	}
	return s.loadProducts(ctx, ids)
}

func (s *Store) ListRecentProducts(ctx context.Context, limit int) ([]model.Product, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	ids, err := s.client.ZRevRange(ctx, recentProductsKey, 0, stop).Result()
	if err != nil {
		return nil, ledger.Unavailable(err)
	}
	return s.loadProducts(ctx, ids)
}

func (s *Store) loadProducts(ctx context.Context, ids []string) ([]model.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = generateProductKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, ledger.Unavailable(err)
	}

	res := make([]model.Product, 0, len(values))
	for i, v := range values {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var p model.Product
		if err := json.Unmarshal([]byte(str), &p); err != nil {
			return nil, fmt.Errorf("decode product %s: %w", ids[i], err)
		}
		res = append(res, p)
	}
	return res, nil
}

func (s *Store) CreateVariant(ctx context.Context, variant *model.Variant) error {
	exists, err := s.client.Exists(ctx, generateProductKey(variant.ProductID)).Result()
	if err != nil {
		return ledger.Unavailable(err)
	}
	if exists == 0 {
		return ledger.ErrProductNotFound
	}

	now := s.now().UTC()
	variant.SetStock(variant.Stock)
	variant.Version = 0
	variant.CreatedAt = now
	variant.UpdatedAt = now

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, generateVariantKey(variant.ProductID, variant.ID), variantToHash(variant))
		pipe.RPush(ctx, generateVariantListKey(variant.ProductID), variant.ID)
		return nil
	})
	if err != nil {
		return ledger.Unavailable(err)
	}
	return nil
}

func (s *Store) ListVariants(ctx context.Context, productID string) ([]model.Variant, error) {
	return listVariants(ctx, s.client, productID)
}

// variantReader *redis.Client 與 *redis.Tx 共用
type variantReader interface {
	LRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
	Pipelined(ctx context.Context, fn func(redis.Pipeliner) error) ([]redis.Cmder, error)
}

// listVariants 依 list 順序讀取，已刪除的 hash 略過
func listVariants(ctx context.Context, c variantReader, productID string) ([]model.Variant, error) {
	ids, err := c.LRange(ctx, generateVariantListKey(productID), 0, -1).Result()
	if err != nil {
		return nil, ledger.Unavailable(err)
	}
	if len(ids) == 0 {
		return []model.Variant{}, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = c.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, generateVariantKey(productID, id))
		}
		return nil
	})
	if err != nil {
		return nil, ledger.Unavailable(err)
	}

	res := make([]model.Variant, 0, len(ids))
	for _, cmd := range cmds {
		v, ok, err := variantFromHash(cmd.Val())
		if err != nil {
			return nil, err
		}
		if ok {
			res = append(res, v)
		}
	}
	return res, nil
}

func (s *Store) DeleteVariant(ctx context.Context, productID, variantID string) error {
	var removed *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		removed = pipe.LRem(ctx, generateVariantListKey(productID), 1, variantID)
		pipe.Del(ctx, generateVariantKey(productID, variantID))
		return nil
	})
	if err != nil {
		return ledger.Unavailable(err)
	}
	if removed.Val() == 0 {
		return ledger.ErrVariantNotFound
	}
	return nil
}

func (s *Store) GetOrder(ctx context.Context, orderID string) (*model.Order, error) {
	b, err := s.client.Get(ctx, generateOrderKey(orderID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ledger.ErrOrderNotFound
		}
		return nil, ledger.Unavailable(err)
	}
	var o model.Order
	if err := json.Unmarshal(b, &o); err != nil {
		return nil, fmt.Errorf("decode order %s: %w", orderID, err)
	}
	return &o, nil
}

func (s *Store) ListOrdersByWholesaler(ctx context.Context, wholesalerID string) ([]model.Order, error) {
	ids, err := s.client.ZRevRange(ctx, generateWholesalerOrdersKey(wholesalerID), 0, -1).Result()
	if err != nil {
		return nil, ledger.Unavailable(err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = generateOrderKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, ledger.Unavailable(err)
	}

	res := make([]model.Order, 0, len(values))
	for i, v := range values {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var o model.Order
		if err := json.Unmarshal([]byte(str), &o); err != nil {
			return nil, fmt.Errorf("decode order %s: %w", ids[i], err)
		}
		res = append(res, o)
	}
	return res, nil
}

var _ ledger.Store = (*Store)(nil)

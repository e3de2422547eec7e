package redis_repo

import "fmt"

// redis document layout
//
//	product:<id>                    string(json)  商品
//	products:owner:<ownerID>        zset          score = createdAt
//	products:recent                 zset          score = createdAt
//	product:<id>:variants           list          variant id，依建立順序
//	variant:<productID>:<variantID> hash          id product_id color size stock status version created_at updated_at
//	order:<id>                      string(json)  訂單
//	orders:wholesaler:<id>          zset          score = createdAt
//	cart:<sessionID>                string(json)  購物車
//	session:<token>                 hash          uid role
func generateProductKey(productID string) string {
	return fmt.Sprintf("product:%s", productID)
}

func generateOwnerProductsKey(ownerID string) string {
	return fmt.Sprintf("products:owner:%s", ownerID)
}

const recentProductsKey = "products:recent"

func generateVariantListKey(productID string) string {
	return fmt.Sprintf("product:%s:variants", productID)
}

func generateVariantKey(productID, variantID string) string {
	return fmt.Sprintf("variant:%s:%s", productID, variantID)
}

func generateOrderKey(orderID string) string {
	return fmt.Sprintf("order:%s", orderID)
}

func generateWholesalerOrdersKey(wholesalerID string) string {
	return fmt.Sprintf("orders:wholesaler:%s", wholesalerID)
}

func generateSessionKey(token string) string {
	return fmt.Sprintf("session:%s", token)
}

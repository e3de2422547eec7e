package seed

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
	"github.com/RoyceAzure/lab/storefront/internal/infra/repository/memory"
	"github.com/stretchr/testify/require"
)

const catalogYAML = `
products:
  - id: p-shirt
    owner_id: w-1
    name: Shirt
    price: "10.00"
    category: shirts
    image_url: https://img.test/shirt.png
    variants:
      - id: v-red-m
        color: red
        size: M
        stock: 5
      - color: blue
        size: L
        stock: 0
  - id: p-cap
    owner_id: w-2
    name: Cap
    price: "4.50"
`

func writeFile(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadAndApply(t *testing.T) {
	c, err := Load(writeFile(t, catalogYAML))
	require.NoError(t, err)
	require.Len(t, c.Products, 2)

	ctx := context.Background()
	store := memory.NewStore()
	n, err := Apply(ctx, store, c)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	capProduct, err := store.GetProduct(ctx, "p-cap")
	require.NoError(t, err)
	require.Equal(t, "general", capProduct.Category)

	variants, err := store.ListVariants(ctx, "p-shirt")
	require.NoError(t, err)
	require.Len(t, variants, 2)
	v, ok := model.FindVariant(variants, "blue", "L")
	require.True(t, ok)
	require.Equal(t, model.VariantStatusOut, v.Status)
	require.NotEmpty(t, v.ID)

	// 重複套用不會新增
	n, err = Apply(ctx, store, c)
	require.NoError(t, err)
	require.Equal(t, 0, n)
	variants, err = store.ListVariants(ctx, "p-shirt")
	require.NoError(t, err)
	require.Len(t, variants, 2)
}

func TestLoadRejectsInvalidCatalog(t *testing.T) {
	_, err := Load(writeFile(t, "products:\n  - id: p1\n    owner_id: w-1\n    name: X\n    price: \"-1\"\n"))
	require.Error(t, err)

	_, err = Load(writeFile(t, "products:\n  - id: p1\n    owner_id: w-1\n    name: X\n    price: \"1\"\n    variants:\n      - {color: red, size: M, stock: -2}\n"))
	require.Error(t, err)

	_, err = Load(writeFile(t, "products: [\n"))
	require.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

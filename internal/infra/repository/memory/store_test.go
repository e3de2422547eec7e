package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
	"github.com/RoyceAzure/lab/storefront/internal/ledger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

var errShort = errors.New("short")

type MemoryStoreTestSuite struct {
	suite.Suite
	store *Store
	ctx   context.Context
}

func (s *MemoryStoreTestSuite) SetupTest() {
	s.store = NewStore()
	s.ctx = context.Background()
}

func TestMemoryStoreTestSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreTestSuite))
}

func (s *MemoryStoreTestSuite) seedVariant(productID, color, size string, stock int) model.Variant {
	if _, err := s.store.GetProduct(s.ctx, productID); err != nil {
		s.Require().NoError(s.store.CreateProduct(s.ctx, &model.Product{
			ID:      productID,
			OwnerID: "w-1",
			Name:    "product " + productID,
			Price:   decimal.NewFromInt(10),
		}))
	}
	v := model.Variant{ID: uuid.NewString(), ProductID: productID, Color: color, Size: size, Stock: stock}
	s.Require().NoError(s.store.CreateVariant(s.ctx, &v))
	return v
}

// reserve 讀取並扣除庫存，不足回傳 errShort
func reserve(productID, variantID string, qty int) ledger.TxFunc {
	return func(ctx context.Context, tx ledger.Txn) error {
		v, err := tx.GetVariant(ctx, productID, variantID)
		if err != nil {
			return err
		}
		if v.Stock < qty {
			return errShort
		}
		if err := tx.SetVariantStock(ctx, productID, variantID, v.Stock-qty); err != nil {
			return err
		}
		return tx.CreateOrder(ctx, &model.Order{ID: uuid.NewString(), WholesalerID: "w-1"})
	}
}

func (s *MemoryStoreTestSuite) TestCreateVariantDerivesStatus() {
	v := s.seedVariant("p-1", "red", "M", 0)
	st, err := s.store.ReadVariant(s.ctx, "p-1", v.ID)
	s.Require().NoError(err)
	s.Equal(model.VariantStatusOut, st.Status)

	st, err = s.store.WriteVariant(s.ctx, "p-1", v.ID, 4)
	s.Require().NoError(err)
	s.Equal(ledger.StockStatus{Stock: 4, Status: model.VariantStatusAvailable}, st)

	_, err = s.store.WriteVariant(s.ctx, "p-1", v.ID, -1)
	s.ErrorIs(err, ledger.ErrNegativeStock)

	_, err = s.store.ReadVariant(s.ctx, "p-1", "missing")
	s.ErrorIs(err, ledger.ErrVariantNotFound)
}

func (s *MemoryStoreTestSuite) TestTransactionCommits() {
	v := s.seedVariant("p-1", "red", "M", 3)

	err := s.store.RunTransaction(s.ctx, reserve("p-1", v.ID, 3))
	s.Require().NoError(err)

	st, err := s.store.ReadVariant(s.ctx, "p-1", v.ID)
	s.Require().NoError(err)
	s.Equal(0, st.Stock)
	s.Equal(model.VariantStatusOut, st.Status)

	orders, err := s.store.ListOrdersByWholesaler(s.ctx, "w-1")
	s.Require().NoError(err)
	s.Len(orders, 1)
	s.False(orders[0].CreatedAt.IsZero())
}

func (s *MemoryStoreTestSuite) TestTransactionAbortLeavesNothing() {
	a := s.seedVariant("p-1", "red", "M", 5)
	b := s.seedVariant("p-2", "blue", "L", 1)

	err := s.store.RunTransaction(s.ctx, func(ctx context.Context, tx ledger.Txn) error {
		if err := tx.SetVariantStock(ctx, "p-1", a.ID, 3); err != nil {
			return err
		}
		if err := tx.CreateOrder(ctx, &model.Order{ID: "o-1", WholesalerID: "w-1"}); err != nil {
			return err
		}
		vb, err := tx.GetVariant(ctx, "p-2", b.ID)
		if err != nil {
			return err
		}
		if vb.Stock < 2 {
			return errShort
		}
		return nil
	})
	s.ErrorIs(err, errShort)

	st, err := s.store.ReadVariant(s.ctx, "p-1", a.ID)
	s.Require().NoError(err)
	s.Equal(5, st.Stock)

	_, err = s.store.GetOrder(s.ctx, "o-1")
	s.ErrorIs(err, ledger.ErrOrderNotFound)
}

func (s *MemoryStoreTestSuite) TestTxnSeesOwnWrites() {
	v := s.seedVariant("p-1", "red", "M", 5)

	err := s.store.RunTransaction(s.ctx, func(ctx context.Context, tx ledger.Txn) error {
		s.Require().NoError(tx.SetVariantStock(ctx, "p-1", v.ID, 2))
		variants, err := tx.ListVariants(ctx, "p-1")
		s.Require().NoError(err)
		s.Equal(2, variants[0].Stock)
		return nil
	})
	s.Require().NoError(err)
}

func (s *MemoryStoreTestSuite) TestOversellRaceOneWinner() {
	v := s.seedVariant("p-1", "red", "M", 1)

	var arrived int32
	ready := make(chan struct{})
	s.store.beforeCommit = func() {
		if atomic.AddInt32(&arrived, 1) == 2 {
			close(ready)
		}
		<-ready
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.store.RunTransaction(s.ctx, reserve("p-1", v.ID, 1))
		}(i)
	}
	wg.Wait()

	var ok, short int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, errShort):
			short++
		default:
			s.Failf("unexpected error", "%v", err)
		}
	}
	s.Equal(1, ok)
	s.Equal(1, short)

	st, err := s.store.ReadVariant(s.ctx, "p-1", v.ID)
	s.Require().NoError(err)
	s.Equal(0, st.Stock)

	orders, err := s.store.ListOrdersByWholesaler(s.ctx, "w-1")
	s.Require().NoError(err)
	s.Len(orders, 1)
}

func (s *MemoryStoreTestSuite) TestConcurrentCheckoutsNeverOversell() {
	const stock = 10
	const buyers = 25
	v := s.seedVariant("p-1", "red", "M", stock)
	s.store.maxAttempts = 50

	var wg sync.WaitGroup
	var committed int32
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.store.RunTransaction(s.ctx, reserve("p-1", v.ID, 1)); err == nil {
				atomic.AddInt32(&committed, 1)
			}
		}()
	}
	wg.Wait()

	st, err := s.store.ReadVariant(s.ctx, "p-1", v.ID)
	s.Require().NoError(err)
	s.GreaterOrEqual(st.Stock, 0)
	s.Equal(stock-int(committed), st.Stock)

	orders, err := s.store.ListOrdersByWholesaler(s.ctx, "w-1")
	s.Require().NoError(err)
	s.Len(orders, int(committed))
}

// takeFromListing 模擬結帳: 用 ListVariants 找到 variant 後扣庫存
func takeFromListing(productID, variantID string, qty int, afterList func(attempt int)) (ledger.TxFunc, *int) {
	calls := 0
	return func(ctx context.Context, tx ledger.Txn) error {
		calls++
		variants, err := tx.ListVariants(ctx, productID)
		if err != nil {
			return err
		}
		if afterList != nil {
			afterList(calls)
		}
		for _, v := range variants {
			if v.ID == variantID {
				return tx.SetVariantStock(ctx, productID, variantID, v.Stock-qty)
			}
		}
		return ledger.ErrVariantNotFound
	}, &calls
}

func (s *MemoryStoreTestSuite) TestSiblingWriteDoesNotConflict() {
	red := s.seedVariant("p-1", "red", "M", 5)
	blue := s.seedVariant("p-1", "blue", "M", 5)

	fn, calls := takeFromListing("p-1", red.ID, 1, nil)
	s.store.beforeCommit = func() {
		_, err := s.store.WriteVariant(s.ctx, "p-1", blue.ID, 4)
		s.Require().NoError(err)
	}
	s.Require().NoError(s.store.RunTransaction(s.ctx, fn))
	s.Equal(1, *calls)

	st, err := s.store.ReadVariant(s.ctx, "p-1", red.ID)
	s.Require().NoError(err)
	s.Equal(4, st.Stock)
}

func (s *MemoryStoreTestSuite) TestListedVariantChangedBeforeWriteRetries() {
	red := s.seedVariant("p-1", "red", "M", 5)

	fn, calls := takeFromListing("p-1", red.ID, 1, func(attempt int) {
		if attempt == 1 {
			_, err := s.store.WriteVariant(s.ctx, "p-1", red.ID, 2)
			s.Require().NoError(err)
		}
	})
	s.Require().NoError(s.store.RunTransaction(s.ctx, fn))
	s.Equal(2, *calls)

	st, err := s.store.ReadVariant(s.ctx, "p-1", red.ID)
	s.Require().NoError(err)
	s.Equal(1, st.Stock)
}

func (s *MemoryStoreTestSuite) TestConflictExhaustsAttempts() {
	v := s.seedVariant("p-1", "red", "M", 5)
	s.store.maxAttempts = 3

	calls := 0
	s.store.beforeCommit = func() {
		// 每次 commit 前模擬其他寫入者
		_, err := s.store.WriteVariant(s.ctx, "p-1", v.ID, 5)
		s.Require().NoError(err)
	}

	err := s.store.RunTransaction(s.ctx, func(ctx context.Context, tx ledger.Txn) error {
		calls++
		return reserve("p-1", v.ID, 1)(ctx, tx)
	})
	s.ErrorIs(err, ledger.ErrTxnConflict)
	s.Equal(3, calls)

	orders, err := s.store.ListOrdersByWholesaler(s.ctx, "w-1")
	s.Require().NoError(err)
	s.Empty(orders)
}

func (s *MemoryStoreTestSuite) TestCatalogOrdering() {
	s.seedVariant("p-1", "red", "M", 1)
	s.seedVariant("p-1", "red", "M", 2)
	s.seedVariant("p-1", "blue", "S", 3)

	variants, err := s.store.ListVariants(s.ctx, "p-1")
	s.Require().NoError(err)
	s.Require().Len(variants, 3)
	s.Equal(1, variants[0].Stock)
	s.Equal(2, variants[1].Stock)

	s.Require().NoError(s.store.DeleteVariant(s.ctx, "p-1", variants[0].ID))
	variants, err = s.store.ListVariants(s.ctx, "p-1")
	s.Require().NoError(err)
	s.Len(variants, 2)

	s.Require().NoError(s.store.DeleteProduct(s.ctx, "p-1"))
	variants, err = s.store.ListVariants(s.ctx, "p-1")
	s.Require().NoError(err)
	s.Empty(variants)
	_, err = s.store.GetProduct(s.ctx, "p-1")
	s.ErrorIs(err, ledger.ErrProductNotFound)
}

func TestRecentProductsLimit(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, store.CreateProduct(ctx, &model.Product{ID: id, OwnerID: "w-1"}))
	}

	recent, err := store.ListRecentProducts(ctx, 4)
	require.NoError(t, err)
	require.Len(t, recent, 4)
}

package db

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
	"github.com/RoyceAzure/lab/storefront/internal/ledger"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

const testDSNEnv = "STOREFRONT_TEST_POSTGRES_DSN"

var errShort = errors.New("short")

type DBStoreTestSuite struct {
	suite.Suite
	dao   *DbDao
	store *Store
	ctx   context.Context
	owner string
}

func TestDBStoreTestSuite(t *testing.T) {
	dsn := os.Getenv(testDSNEnv)
	if dsn == "" {
		t.Skipf("%s not set", testDSNEnv)
	}
	suite.Run(t, &DBStoreTestSuite{})
}

func (s *DBStoreTestSuite) SetupSuite() {
	conn, err := GetDbConn(os.Getenv(testDSNEnv))
	s.Require().NoError(err)
	s.dao = NewDbDao(conn)
	s.Require().NoError(s.dao.InitMigrate())
	s.store = NewStore(s.dao, 10)
	s.ctx = context.Background()
}

func (s *DBStoreTestSuite) TearDownSuite() {
	s.dao.Close()
}

func (s *DBStoreTestSuite) SetupTest() {
	// 每個測試使用不同的 owner 避免互相影響
	s.owner = "w-" + uuid.NewString()
}

func (s *DBStoreTestSuite) seed(stock int) (model.Product, model.Variant) {
	p := model.Product{ID: uuid.NewString(), OwnerID: s.owner, Name: "Tote", Price: decimal.RequireFromString("3500"), Category: "bags", ImageURL: "https://img/tote.png"}
	s.Require().NoError(s.store.CreateProduct(s.ctx, &p))
	v := model.Variant{ID: uuid.NewString(), ProductID: p.ID, Color: "tan", Size: "L", Stock: stock}
	s.Require().NoError(s.store.CreateVariant(s.ctx, &v))
	return p, v
}

func (s *DBStoreTestSuite) reserve(p model.Product, v model.Variant, qty int) ledger.TxFunc {
	return func(ctx context.Context, tx ledger.Txn) error {
		variants, err := tx.ListVariants(ctx, p.ID)
		if err != nil {
			return err
		}
		cur, ok := model.FindVariant(variants, v.Color, v.Size)
		if !ok {
			return ledger.ErrVariantNotFound
		}
		if cur.Stock < qty {
			return errShort
		}
		if err := tx.SetVariantStock(ctx, p.ID, cur.ID, cur.Stock-qty); err != nil {
			return err
		}
		return tx.CreateOrder(ctx, &model.Order{
			ID:           uuid.NewString(),
			WholesalerID: s.owner,
			RetailerID:   "r-1",
			Customer:     model.Customer{Name: "Ada", Email: "a@b.c", Phone: "1", Address: "x", City: "Lagos"},
			LineItems:    []model.CartLineItem{{ProductID: p.ID, VariantID: cur.ID, Color: cur.Color, Size: cur.Size, Quantity: qty}},
			Subtotal:     decimal.Zero,
			Tax:          decimal.Zero,
			Shipping:     decimal.Zero,
			Total:        decimal.Zero,
			TotalDisplay: "₦0.00",
		})
	}
}

func (s *DBStoreTestSuite) TestCheckoutTransaction() {
	p, v := s.seed(2)

	s.Require().NoError(s.store.RunTransaction(s.ctx, s.reserve(p, v, 2)))
	st, err := s.store.ReadVariant(s.ctx, p.ID, v.ID)
	s.Require().NoError(err)
	s.Equal(ledger.StockStatus{Stock: 0, Status: model.VariantStatusOut}, st)

	err = s.store.RunTransaction(s.ctx, s.reserve(p, v, 1))
	s.ErrorIs(err, errShort)

	orders, err := s.store.ListOrdersByWholesaler(s.ctx, s.owner)
	s.Require().NoError(err)
	s.Require().Len(orders, 1)
	s.Len(orders[0].LineItems, 1)
	s.Equal("Lagos", orders[0].Customer.City)
}

func (s *DBStoreTestSuite) TestConcurrentCheckoutsNeverOversell() {
	p, v := s.seed(5)

	var wg sync.WaitGroup
	var mu sync.Mutex
	committed := 0
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.store.RunTransaction(s.ctx, s.reserve(p, v, 1)); err == nil {
				mu.Lock()
				committed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	st, err := s.store.ReadVariant(s.ctx, p.ID, v.ID)
	s.Require().NoError(err)
	s.Equal(5-committed, st.Stock)
	s.GreaterOrEqual(st.Stock, 0)
}

func (s *DBStoreTestSuite) TestCatalogAndAdminWrite() {
	p, v := s.seed(1)

	st, err := s.store.WriteVariant(s.ctx, p.ID, v.ID, 9)
	s.Require().NoError(err)
	s.Equal(model.VariantStatusAvailable, st.Status)

	_, err = s.store.WriteVariant(s.ctx, p.ID, "missing", 1)
	s.ErrorIs(err, ledger.ErrVariantNotFound)

	owned, err := s.store.ListProductsByOwner(s.ctx, s.owner)
	s.Require().NoError(err)
	s.Len(owned, 1)

	s.Require().NoError(s.store.DeleteProduct(s.ctx, p.ID))
	s.ErrorIs(s.store.DeleteProduct(s.ctx, p.ID), ledger.ErrProductNotFound)
	variants, err := s.store.ListVariants(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Empty(variants)
}

func TestMapDBError(t *testing.T) {
	require.NoError(t, mapDBError(nil))

	err := mapDBError(&pgconn.PgError{Code: sqlStateSerializationFailure})
	require.True(t, ledger.IsConflict(err))

	err = mapDBError(&pgconn.PgError{Code: sqlStateDeadlockDetected})
	require.True(t, ledger.IsConflict(err))

	err = mapDBError(&pgconn.PgError{Code: "23505"})
	require.ErrorIs(t, err, ledger.ErrStoreUnavailable)
	require.False(t, ledger.IsConflict(err))
}

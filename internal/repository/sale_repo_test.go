package repository

import (
	"fmt"
	"testing"
	"time"

	"go-pos-ledger/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.Product{}, &model.Category{},
		&model.Sale{}, &model.StockMovement{},
	))
	return db
}

func seedProduct(t *testing.T, db *gorm.DB, name string, price, unitCost string) *model.Product {
	t.Helper()
	p := &model.Product{
		Name:   name,
		Price:  decimal.RequireFromString(price),
		Stock:  100,
		Status: model.StatusAvailable,
	}
	if unitCost != "" {
		cost := decimal.RequireFromString(unitCost)
		p.UnitCost = &cost
	}
	require.NoError(t, db.Create(p).Error)
	return p
}

func seedSale(t *testing.T, db *gorm.DB, productID uuid.UUID, qty int, unitPrice, refID string, reverses *string) *model.Sale {
	t.Helper()
	price := decimal.RequireFromString(unitPrice)
	s := &model.Sale{
		ProductID:     productID,
		Quantity:      qty,
		UnitPrice:     price,
		TotalAmount:   price.Mul(decimal.NewFromInt(int64(qty))),
		RefID:         refID,
		ReversesRefID: reverses,
		UserID:        uuid.New(),
	}
	require.NoError(t, db.Create(s).Error)
	return s
}

func TestListSalesExcludesExactlyVoidedCheckouts(t *testing.T) {
	db := newTestDB(t)
	repo := NewSaleRepo(db)
	product := seedProduct(t, db, "Widget", "2.00", "")

	seedSale(t, db, product.ID, 2, "2.00", "checkout-100", nil)
	seedSale(t, db, product.ID, 3, "2.00", "checkout-200", nil)
	// checkout-100 is voided; checkout-200 is not.
	voided := "checkout-100"
	seedSale(t, db, product.ID, -2, "2.00", "void-100", &voided)

	sales, err := repo.ListSales(0)
	require.NoError(t, err)
	require.Len(t, sales, 1)
	assert.Equal(t, "checkout-200", sales[0].RefID)
}

func TestHasReversal(t *testing.T) {
	db := newTestDB(t)
	repo := NewSaleRepo(db)
	product := seedProduct(t, db, "Gadget", "4.00", "")

	seedSale(t, db, product.ID, 1, "4.00", "checkout-300", nil)
	ok, err := repo.HasReversalTx(nil, "checkout-300")
	require.NoError(t, err)
	assert.False(t, ok)

	voided := "checkout-300"
	seedSale(t, db, product.ID, -1, "4.00", "void-300", &voided)
	ok, err = repo.HasReversalTx(nil, "checkout-300")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestReturnedQuantitySumsMagnitudes(t *testing.T) {
	db := newTestDB(t)
	repo := NewSaleRepo(db)
	product := seedProduct(t, db, "Thing", "1.00", "")

	original := seedSale(t, db, product.ID, 5, "1.00", "checkout-400", nil)
	for i, qty := range []int{-2, -1} {
		ret := &model.Sale{
			ProductID:      product.ID,
			Quantity:       qty,
			UnitPrice:      original.UnitPrice,
			TotalAmount:    original.UnitPrice.Mul(decimal.NewFromInt(int64(qty))),
			RefID:          fmt.Sprintf("return-checkout-400-%d", i),
			OriginalSaleID: &original.ID,
			UserID:         uuid.New(),
		}
		require.NoError(t, db.Create(ret).Error)
	}

	returned, err := repo.ReturnedQuantityTx(db, original.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, returned)
}

func TestSalesByProductSkipsVoidedRevenue(t *testing.T) {
	db := newTestDB(t)
	repo := NewSaleRepo(db)
	kept := seedProduct(t, db, "Kept", "3.00", "")
	gone := seedProduct(t, db, "Gone", "9.00", "")

	seedSale(t, db, kept.ID, 4, "3.00", "checkout-500", nil)
	seedSale(t, db, gone.ID, 1, "9.00", "checkout-600", nil)
	voided := "checkout-600"
	seedSale(t, db, gone.ID, -1, "9.00", "void-600", &voided)

	start := time.Now().AddDate(0, 0, -1)
	end := time.Now().AddDate(0, 0, 1)
	rows, err := repo.SalesByProduct(start, end)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, kept.ID, rows[0].ProductID)
	assert.Equal(t, 4, rows[0].UnitsSold)
	assert.True(t, rows[0].Revenue.Equal(decimal.RequireFromString("12.00")))
}

func TestProfitMarginsUseUnitCost(t *testing.T) {
	db := newTestDB(t)
	repo := NewSaleRepo(db)
	priced := seedProduct(t, db, "Priced", "5.00", "2.00")
	seedProduct(t, db, "Uncosted", "5.00", "")

	seedSale(t, db, priced.ID, 3, "5.00", "checkout-700", nil)

	start := time.Now().AddDate(0, 0, -1)
	end := time.Now().AddDate(0, 0, 1)
	rows, err := repo.ProfitMargins(start, end)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, priced.ID, rows[0].ProductID)
	assert.True(t, rows[0].Revenue.Equal(decimal.RequireFromString("15.00")))
	assert.True(t, rows[0].Cost.Equal(decimal.RequireFromString("6.00")))
	assert.True(t, rows[0].Profit.Equal(decimal.RequireFromString("9.00")))
}

func TestStockUpdateConflictDetected(t *testing.T) {
	db := newTestDB(t)
	repo := NewProductRepo(db)
	product := seedProduct(t, db, "Contested", "1.00", "")

	// A stale beforeStock must not overwrite a newer value.
	err := repo.UpdateStockChecked(db, product.ID, 100, 90, model.StatusAvailable, "u1")
	require.NoError(t, err)

	err = repo.UpdateStockChecked(db, product.ID, 100, 95, model.StatusAvailable, "u2")
	assert.ErrorIs(t, err, ErrStockConflict)

	var reloaded model.Product
	require.NoError(t, db.First(&reloaded, "id = ?", product.ID).Error)
	assert.Equal(t, 90, reloaded.Stock)
}

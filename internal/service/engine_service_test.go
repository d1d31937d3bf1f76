package service

import (
	"fmt"
	"strings"
	"testing"

	"go-pos-ledger/internal/model"
	"go-pos-ledger/internal/repository"
	"go-pos-ledger/pkg/apperr"

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
	// A named shared-cache database keeps every pooled connection of this
	// test on the same in-memory store.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.Product{}, &model.Category{},
		&model.Sale{}, &model.StockMovement{},
		&model.VoidRequest{},
		&model.User{}, &model.Role{},
	))
	return db
}

func newTestEngine(t *testing.T, db *gorm.DB) TransactionEngine {
	t.Helper()
	return NewTransactionEngine(
		repository.NewProductRepo(db),
		repository.NewSaleRepo(db),
		repository.NewStockMovementRepo(db),
		db,
		nil,
	)
}

func createProduct(t *testing.T, db *gorm.DB, name string, stock int, price string, threshold *int) *model.Product {
	t.Helper()
	p := &model.Product{
		Name:              name,
		Price:             decimal.RequireFromString(price),
		Stock:             stock,
		Status:            ComputeStatus(stock, ResolveThreshold(&model.Product{LowStockThreshold: threshold}, nil)),
		LowStockThreshold: threshold,
	}
	require.NoError(t, db.Create(p).Error)
	return p
}

func reloadProduct(t *testing.T, db *gorm.DB, id uuid.UUID) *model.Product {
	t.Helper()
	var p model.Product
	require.NoError(t, db.First(&p, "id = ?", id).Error)
	return &p
}

func salesByRef(t *testing.T, db *gorm.DB, refID string) []model.Sale {
	t.Helper()
	var sales []model.Sale
	require.NoError(t, db.Where("ref_id = ?", refID).Find(&sales).Error)
	return sales
}

func TestCheckoutSaleWritesLedgerAndDecrementsStock(t *testing.T) {
	db := newTestDB(t)
	engine := newTestEngine(t, db)
	threshold := 5
	product := createProduct(t, db, "Americano", 20, "2.50", &threshold)
	userID := uuid.New()

	result, err := engine.Checkout(CheckoutInput{
		Items:        []CheckoutItem{{ProductID: product.ID, Quantity: 3}},
		Action:       ActionSale,
		ActingUserID: userID,
	})
	require.NoError(t, err)
	assert.Equal(t, ActionSale, result.Action)
	assert.True(t, strings.HasPrefix(result.TransactionNo, "checkout-"))
	assert.Empty(t, result.Summary.LowNow)
	assert.Empty(t, result.Summary.OutNow)

	reloaded := reloadProduct(t, db, product.ID)
	assert.Equal(t, 17, reloaded.Stock)
	assert.Equal(t, model.StatusAvailable, reloaded.Status)

	sales := salesByRef(t, db, result.TransactionNo)
	require.Len(t, sales, 1)
	assert.Equal(t, 3, sales[0].Quantity)
	assert.True(t, sales[0].TotalAmount.Equal(decimal.RequireFromString("7.50")))
	assert.Equal(t, userID, sales[0].UserID)
	assert.Nil(t, sales[0].ApprovedBy)

	var movements []model.StockMovement
	require.NoError(t, db.Where("ref_id = ?", result.TransactionNo).Find(&movements).Error)
	require.Len(t, movements, 1)
	assert.Equal(t, model.MovementSale, movements[0].Type)
	assert.Equal(t, -3, movements[0].Quantity)
	assert.Equal(t, 20, movements[0].BeforeStock)
	assert.Equal(t, 17, movements[0].AfterStock)
}

func TestCheckoutSaleToZeroReportsOutOfStock(t *testing.T) {
	db := newTestDB(t)
	engine := newTestEngine(t, db)
	product := createProduct(t, db, "Bagel", 10, "1.00", nil)

	result, err := engine.Checkout(CheckoutInput{
		Items:        []CheckoutItem{{ProductID: product.ID, Quantity: 10}},
		Action:       ActionSale,
		ActingUserID: uuid.New(),
	})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{product.ID}, result.Summary.OutNow)

	reloaded := reloadProduct(t, db, product.ID)
	assert.Equal(t, 0, reloaded.Stock)
	assert.Equal(t, model.StatusOutOfStock, reloaded.Status)
}

func TestCheckoutSaleBelowThresholdReportsLowStock(t *testing.T) {
	db := newTestDB(t)
	engine := newTestEngine(t, db)
	product := createProduct(t, db, "Croissant", 12, "1.80", nil)

	result, err := engine.Checkout(CheckoutInput{
		Items:        []CheckoutItem{{ProductID: product.ID, Quantity: 5}},
		Action:       ActionSale,
		ActingUserID: uuid.New(),
	})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{product.ID}, result.Summary.LowNow)
	assert.Equal(t, model.StatusLowStock, reloadProduct(t, db, product.ID).Status)
}

func TestCheckoutProductThresholdOverridesDefault(t *testing.T) {
	db := newTestDB(t)
	engine := newTestEngine(t, db)
	threshold := 2
	product := createProduct(t, db, "Salt", 12, "0.90", &threshold)

	// 12 -> 5 is below the default threshold of 10 but above the product's
	// own override of 2, so no alert fires.
	result, err := engine.Checkout(CheckoutInput{
		Items:        []CheckoutItem{{ProductID: product.ID, Quantity: 7}},
		Action:       ActionSale,
		ActingUserID: uuid.New(),
	})
	require.NoError(t, err)
	assert.Empty(t, result.Summary.LowNow)
	assert.Equal(t, model.StatusAvailable, reloadProduct(t, db, product.ID).Status)
}

func TestCheckoutInsufficientStockFailsWithoutWriting(t *testing.T) {
	db := newTestDB(t)
	engine := newTestEngine(t, db)
	product := createProduct(t, db, "Espresso", 0, "2.00", nil)

	_, err := engine.Checkout(CheckoutInput{
		Items:        []CheckoutItem{{ProductID: product.ID, Quantity: 1}},
		Action:       ActionSale,
		ActingUserID: uuid.New(),
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindInsufficientStock, apperr.KindOf(err))
	require.Len(t, apperr.DetailsOf(err), 1)
	assert.Contains(t, apperr.DetailsOf(err)[0], "Espresso")
	assert.Contains(t, apperr.DetailsOf(err)[0], "requested 1")
	assert.Contains(t, apperr.DetailsOf(err)[0], "available 0")

	assert.Equal(t, 0, reloadProduct(t, db, product.ID).Stock)
	var count int64
	db.Model(&model.Sale{}).Count(&count)
	assert.Zero(t, count)
}

func TestCheckoutEmptyItemsRejected(t *testing.T) {
	db := newTestDB(t)
	engine := newTestEngine(t, db)

	_, err := engine.Checkout(CheckoutInput{ActingUserID: uuid.New()})
	require.Error(t, err)
	assert.Equal(t, apperr.KindInvalidInput, apperr.KindOf(err))
}

func TestCheckoutEnumeratesInvalidQuantities(t *testing.T) {
	db := newTestDB(t)
	engine := newTestEngine(t, db)

	_, err := engine.Checkout(CheckoutInput{
		Items: []CheckoutItem{
			{ProductID: uuid.New(), Quantity: 0},
			{ProductID: uuid.New(), Quantity: -2},
		},
		ActingUserID: uuid.New(),
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindInvalidInput, apperr.KindOf(err))
	assert.Len(t, apperr.DetailsOf(err), 2)
}

func TestCheckoutUnknownProductsEnumerated(t *testing.T) {
	db := newTestDB(t)
	engine := newTestEngine(t, db)
	product := createProduct(t, db, "Tea", 5, "1.20", nil)
	ghost1, ghost2 := uuid.New(), uuid.New()

	_, err := engine.Checkout(CheckoutInput{
		Items: []CheckoutItem{
			{ProductID: product.ID, Quantity: 1},
			{ProductID: ghost1, Quantity: 1},
			{ProductID: ghost2, Quantity: 1},
		},
		ActingUserID: uuid.New(),
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.Len(t, apperr.DetailsOf(err), 2)

	// Nothing may be written for the valid line either.
	assert.Equal(t, 5, reloadProduct(t, db, product.ID).Stock)
	var count int64
	db.Model(&model.StockMovement{}).Count(&count)
	assert.Zero(t, count)
}

func TestCheckoutMultiItemAllOrNothing(t *testing.T) {
	db := newTestDB(t)
	engine := newTestEngine(t, db)
	plenty := createProduct(t, db, "Butter", 50, "3.00", nil)
	scarce := createProduct(t, db, "Truffle", 1, "30.00", nil)

	_, err := engine.Checkout(CheckoutInput{
		Items: []CheckoutItem{
			{ProductID: plenty.ID, Quantity: 2},
			{ProductID: scarce.ID, Quantity: 5},
		},
		Action:       ActionSale,
		ActingUserID: uuid.New(),
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindInsufficientStock, apperr.KindOf(err))

	assert.Equal(t, 50, reloadProduct(t, db, plenty.ID).Stock)
	assert.Equal(t, 1, reloadProduct(t, db, scarce.ID).Stock)
	var count int64
	db.Model(&model.Sale{}).Count(&count)
	assert.Zero(t, count)
}

func TestVoidRestoresStockAndNetsToZero(t *testing.T) {
	db := newTestDB(t)
	engine := newTestEngine(t, db)
	threshold := 5
	product := createProduct(t, db, "Latte", 20, "4.00", &threshold)
	cashier := uuid.New()
	admin := uuid.New()

	sale, err := engine.Checkout(CheckoutInput{
		Items:        []CheckoutItem{{ProductID: product.ID, Quantity: 3}},
		Action:       ActionSale,
		ActingUserID: cashier,
	})
	require.NoError(t, err)

	void, err := engine.Checkout(CheckoutInput{
		Items:                 []CheckoutItem{{ProductID: product.ID, Quantity: 3}},
		Action:                ActionVoid,
		ActingUserID:          admin,
		ApprovedBy:            &admin,
		OriginalTransactionNo: sale.TransactionNo,
	})
	require.NoError(t, err)

	// void-{T} pairs with checkout-{T}.
	ts := strings.TrimPrefix(sale.TransactionNo, "checkout-")
	assert.Equal(t, "void-"+ts, void.TransactionNo)

	assert.Equal(t, 20, reloadProduct(t, db, product.ID).Stock)

	voidRows := salesByRef(t, db, void.TransactionNo)
	require.Len(t, voidRows, 1)
	assert.Equal(t, -3, voidRows[0].Quantity)
	assert.True(t, voidRows[0].TotalAmount.Equal(decimal.RequireFromString("-12.00")))
	require.NotNil(t, voidRows[0].ApprovedBy)
	assert.Equal(t, admin, *voidRows[0].ApprovedBy)
	require.NotNil(t, voidRows[0].ReversesRefID)
	assert.Equal(t, sale.TransactionNo, *voidRows[0].ReversesRefID)

	// The sale and its void net to zero for the product.
	var net decimal.Decimal
	require.NoError(t, db.Model(&model.Sale{}).
		Where("product_id = ?", product.ID).
		Select("COALESCE(SUM(total_amount), 0)").
		Scan(&net).Error)
	assert.True(t, net.IsZero())
}

func TestVoidingTwiceRejected(t *testing.T) {
	db := newTestDB(t)
	engine := newTestEngine(t, db)
	product := createProduct(t, db, "Mocha", 20, "4.50", nil)
	user := uuid.New()

	sale, err := engine.Checkout(CheckoutInput{
		Items:        []CheckoutItem{{ProductID: product.ID, Quantity: 2}},
		Action:       ActionSale,
		ActingUserID: user,
	})
	require.NoError(t, err)

	void := CheckoutInput{
		Items:                 []CheckoutItem{{ProductID: product.ID, Quantity: 2}},
		Action:                ActionVoid,
		ActingUserID:          user,
		OriginalTransactionNo: sale.TransactionNo,
	}
	_, err = engine.Checkout(void)
	require.NoError(t, err)

	_, err = engine.Checkout(void)
	require.Error(t, err)
	assert.Equal(t, apperr.KindInvalidState, apperr.KindOf(err))
	assert.Equal(t, 20, reloadProduct(t, db, product.ID).Stock)
}

func TestVoidLedgerUserIsOriginalRequester(t *testing.T) {
	db := newTestDB(t)
	engine := newTestEngine(t, db)
	product := createProduct(t, db, "Scone", 15, "2.20", nil)
	requester := uuid.New()
	admin := uuid.New()

	sale, err := engine.Checkout(CheckoutInput{
		Items:        []CheckoutItem{{ProductID: product.ID, Quantity: 4}},
		Action:       ActionSale,
		ActingUserID: requester,
	})
	require.NoError(t, err)

	void, err := engine.Checkout(CheckoutInput{
		Items:                 []CheckoutItem{{ProductID: product.ID, Quantity: 4}},
		Action:                ActionVoid,
		ActingUserID:          admin,
		RequestedBy:           &requester,
		ApprovedBy:            &admin,
		OriginalTransactionNo: sale.TransactionNo,
	})
	require.NoError(t, err)

	rows := salesByRef(t, db, void.TransactionNo)
	require.Len(t, rows, 1)
	assert.Equal(t, requester, rows[0].UserID)
	require.NotNil(t, rows[0].ApprovedBy)
	assert.Equal(t, admin, *rows[0].ApprovedBy)
}

func TestVoidWithoutOriginalFallsBackToTimestamp(t *testing.T) {
	db := newTestDB(t)
	engine := newTestEngine(t, db)
	product := createProduct(t, db, "Juice", 8, "3.10", nil)

	void, err := engine.Checkout(CheckoutInput{
		Items:        []CheckoutItem{{ProductID: product.ID, Quantity: 1}},
		Action:       ActionVoid,
		ActingUserID: uuid.New(),
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(void.TransactionNo, "void-"))
	assert.Equal(t, 9, reloadProduct(t, db, product.ID).Stock)
}

func TestReturnPartialThenOverReturnRejected(t *testing.T) {
	db := newTestDB(t)
	engine := newTestEngine(t, db)
	threshold := 2
	product := createProduct(t, db, "Muffin", 20, "2.00", &threshold)
	user := uuid.New()

	sale, err := engine.Checkout(CheckoutInput{
		Items:        []CheckoutItem{{ProductID: product.ID, Quantity: 5}},
		Action:       ActionSale,
		ActingUserID: user,
	})
	require.NoError(t, err)
	saleRows := salesByRef(t, db, sale.TransactionNo)
	require.Len(t, saleRows, 1)
	saleID := saleRows[0].ID

	// First partial return restocks 3.
	result, err := engine.Return(ReturnInput{
		Items:        []ReturnItem{{SaleID: saleID, ProductID: product.ID, Quantity: 3, Reason: "damaged"}},
		ActingUserID: user,
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(result.TransactionNo, "return-"+sale.TransactionNo+"-"))
	assert.Equal(t, 18, reloadProduct(t, db, product.ID).Stock)

	// Another 3 exceeds the remaining 2.
	_, err = engine.Return(ReturnInput{
		Items:        []ReturnItem{{SaleID: saleID, ProductID: product.ID, Quantity: 3}},
		ActingUserID: user,
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindInvalidInput, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "exceeds available to return")
	assert.Equal(t, 18, reloadProduct(t, db, product.ID).Stock)

	// The remaining 2 go through, and then nothing is left.
	_, err = engine.Return(ReturnInput{
		Items:        []ReturnItem{{SaleID: saleID, ProductID: product.ID, Quantity: 2}},
		ActingUserID: user,
	})
	require.NoError(t, err)
	assert.Equal(t, 20, reloadProduct(t, db, product.ID).Stock)

	_, err = engine.Return(ReturnInput{
		Items:        []ReturnItem{{SaleID: saleID, ProductID: product.ID, Quantity: 1}},
		ActingUserID: user,
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindInvalidInput, apperr.KindOf(err))
}

func TestReturnUsesOriginalUnitPrice(t *testing.T) {
	db := newTestDB(t)
	engine := newTestEngine(t, db)
	product := createProduct(t, db, "Cake", 10, "5.00", nil)
	user := uuid.New()

	sale, err := engine.Checkout(CheckoutInput{
		Items:        []CheckoutItem{{ProductID: product.ID, Quantity: 2}},
		Action:       ActionSale,
		ActingUserID: user,
	})
	require.NoError(t, err)
	saleID := salesByRef(t, db, sale.TransactionNo)[0].ID

	// Price rises after the sale; the refund still uses the sale price.
	require.NoError(t, db.Model(&model.Product{}).
		Where("id = ?", product.ID).
		Update("price", decimal.RequireFromString("6.00")).Error)

	result, err := engine.Return(ReturnInput{
		Items:        []ReturnItem{{SaleID: saleID, Quantity: 2}},
		ActingUserID: user,
	})
	require.NoError(t, err)

	rows := salesByRef(t, db, result.TransactionNo)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].UnitPrice.Equal(decimal.RequireFromString("5.00")))
	assert.True(t, rows[0].TotalAmount.Equal(decimal.RequireFromString("-10.00")))
	require.NotNil(t, rows[0].OriginalSaleID)
	assert.Equal(t, saleID, *rows[0].OriginalSaleID)
}

func TestReturnOfNonSaleRowRejected(t *testing.T) {
	db := newTestDB(t)
	engine := newTestEngine(t, db)
	product := createProduct(t, db, "Pie", 10, "3.30", nil)
	user := uuid.New()

	sale, err := engine.Checkout(CheckoutInput{
		Items:        []CheckoutItem{{ProductID: product.ID, Quantity: 2}},
		Action:       ActionSale,
		ActingUserID: user,
	})
	require.NoError(t, err)

	void, err := engine.Checkout(CheckoutInput{
		Items:                 []CheckoutItem{{ProductID: product.ID, Quantity: 2}},
		Action:                ActionVoid,
		ActingUserID:          user,
		OriginalTransactionNo: sale.TransactionNo,
	})
	require.NoError(t, err)
	voidRowID := salesByRef(t, db, void.TransactionNo)[0].ID

	_, err = engine.Return(ReturnInput{
		Items:        []ReturnItem{{SaleID: voidRowID, Quantity: 1}},
		ActingUserID: user,
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindInvalidState, apperr.KindOf(err))
}

func TestReturnUnknownSaleRejected(t *testing.T) {
	db := newTestDB(t)
	engine := newTestEngine(t, db)

	_, err := engine.Return(ReturnInput{
		Items:        []ReturnItem{{SaleID: uuid.New(), Quantity: 1}},
		ActingUserID: uuid.New(),
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestReturnExceedingOriginalQuantityRejected(t *testing.T) {
	db := newTestDB(t)
	engine := newTestEngine(t, db)
	product := createProduct(t, db, "Donut", 30, "1.10", nil)
	user := uuid.New()

	sale, err := engine.Checkout(CheckoutInput{
		Items:        []CheckoutItem{{ProductID: product.ID, Quantity: 4}},
		Action:       ActionSale,
		ActingUserID: user,
	})
	require.NoError(t, err)
	saleID := salesByRef(t, db, sale.TransactionNo)[0].ID

	_, err = engine.Return(ReturnInput{
		Items:        []ReturnItem{{SaleID: saleID, Quantity: 5}},
		ActingUserID: user,
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindInvalidInput, apperr.KindOf(err))
	assert.Equal(t, 26, reloadProduct(t, db, product.ID).Stock)
}

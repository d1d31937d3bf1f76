package repository

import (
	"time"

	"go-pos-ledger/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ProductSalesRow aggregates sold units and revenue per product.
type ProductSalesRow struct {
	ProductID uuid.UUID       `json:"product_id"`
	Name      string          `json:"name"`
	UnitsSold int             `json:"units_sold"`
	Revenue   decimal.Decimal `json:"revenue"`
}

// RevenueTrendRow is one day of net revenue (returns included as negatives).
type RevenueTrendRow struct {
	Date    string          `json:"date"`
	Revenue decimal.Decimal `json:"revenue"`
}

// ProfitRow aggregates margin per product; products without a unit cost are
// left out because their margin is unknown.
type ProfitRow struct {
	ProductID uuid.UUID       `json:"product_id"`
	Name      string          `json:"name"`
	UnitsSold int             `json:"units_sold"`
	Revenue   decimal.Decimal `json:"revenue"`
	Cost      decimal.Decimal `json:"cost"`
	Profit    decimal.Decimal `json:"profit"`
}

// DashboardStats for the overview cards.
type DashboardStats struct {
	TotalProducts   int64           `json:"total_products"`
	LowStockCount   int64           `json:"low_stock_count"`
	OutOfStockCount int64           `json:"out_of_stock_count"`
	TotalValuation  decimal.Decimal `json:"total_valuation"`
}

type SaleRepository interface {
	Create(tx *gorm.DB, sale *model.Sale) error
	FindByID(id uuid.UUID) (*model.Sale, error)
	FindByIDTx(tx *gorm.DB, id uuid.UUID) (*model.Sale, error)
	ReturnedQuantityTx(tx *gorm.DB, originalSaleID uuid.UUID) (int, error)
	HasReversalTx(tx *gorm.DB, refID string) (bool, error)
	ListByRefID(refID string) ([]model.Sale, error)
	ListSales(limit int) ([]model.Sale, error)
	SalesByProduct(startDate, endDate time.Time) ([]ProductSalesRow, error)
	RevenueTrend(startDate, endDate time.Time) ([]RevenueTrendRow, error)
	ProfitMargins(startDate, endDate time.Time) ([]ProfitRow, error)
	GetDashboardStats() (*DashboardStats, error)
}

type saleRepo struct {
	db *gorm.DB
}

func NewSaleRepo(db *gorm.DB) SaleRepository {
	return &saleRepo{db}
}

func (r *saleRepo) Create(tx *gorm.DB, sale *model.Sale) error {
	return tx.Create(sale).Error
}

func (r *saleRepo) FindByID(id uuid.UUID) (*model.Sale, error) {
	var sale model.Sale
	err := r.db.Preload("Product").First(&sale, "id = ?", id).Error
	return &sale, err
}

func (r *saleRepo) FindByIDTx(tx *gorm.DB, id uuid.UUID) (*model.Sale, error) {
	var sale model.Sale
	err := tx.First(&sale, "id = ?", id).Error
	return &sale, err
}

// ReturnedQuantityTx sums the magnitudes of all returns already accepted
// against an original sale. It runs inside the caller's transaction so two
// concurrent partial returns cannot both pass the over-return guard.
func (r *saleRepo) ReturnedQuantityTx(tx *gorm.DB, originalSaleID uuid.UUID) (int, error) {
	var returned int
	err := tx.Model(&model.Sale{}).
		Where("original_sale_id = ?", originalSaleID).
		Select("COALESCE(SUM(-quantity), 0)").
		Scan(&returned).Error
	return returned, err
}

// HasReversalTx reports whether a void ledger entry already references refID.
// A nil tx runs the check outside any transaction.
func (r *saleRepo) HasReversalTx(tx *gorm.DB, refID string) (bool, error) {
	if tx == nil {
		tx = r.db
	}
	var count int64
	err := tx.Model(&model.Sale{}).
		Where("reverses_ref_id = ?", refID).
		Count(&count).Error
	return count > 0, err
}

func (r *saleRepo) ListByRefID(refID string) ([]model.Sale, error) {
	var sales []model.Sale
	err := r.db.Preload("Product").
		Where("ref_id = ?", refID).
		Order("created_at ASC").
		Find(&sales).Error
	return sales, err
}

// ListSales returns original sale rows, excluding any checkout that has a
// void entry referencing it.
func (r *saleRepo) ListSales(limit int) ([]model.Sale, error) {
	var sales []model.Sale
	q := r.db.Preload("Product").
		Where("quantity > 0").
		Where("NOT EXISTS (SELECT 1 FROM sales v WHERE v.reverses_ref_id = sales.ref_id)").
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&sales).Error
	return sales, err
}

// notVoided filters out void rows themselves and the checkouts they reverse.
func notVoided(q *gorm.DB) *gorm.DB {
	return q.Where("sales.reverses_ref_id IS NULL").
		Where("NOT EXISTS (SELECT 1 FROM sales v WHERE v.reverses_ref_id = sales.ref_id)")
}

func (r *saleRepo) SalesByProduct(startDate, endDate time.Time) ([]ProductSalesRow, error) {
	var results []ProductSalesRow

	rows, err := notVoided(r.db.Model(&model.Sale{})).
		Select(`sales.product_id, products.name,
			COALESCE(SUM(sales.quantity), 0) as units_sold,
			COALESCE(SUM(sales.total_amount), 0) as revenue`).
		Joins("JOIN products ON products.id = sales.product_id").
		Where("sales.quantity > 0").
		Where("sales.created_at BETWEEN ? AND ?", startDate, endDate).
		Group("sales.product_id, products.name").
		Order("revenue DESC").
		Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var row ProductSalesRow
		if err := rows.Scan(&row.ProductID, &row.Name, &row.UnitsSold, &row.Revenue); err != nil {
			return nil, err
		}
		results = append(results, row)
	}
	return results, rows.Err()
}

func (r *saleRepo) RevenueTrend(startDate, endDate time.Time) ([]RevenueTrendRow, error) {
	var results []RevenueTrendRow

	rows, err := notVoided(r.db.Model(&model.Sale{})).
		Select(`DATE(sales.created_at) as date,
			COALESCE(SUM(sales.total_amount), 0) as revenue`).
		Where("sales.created_at BETWEEN ? AND ?", startDate, endDate).
		Group("DATE(sales.created_at)").
		Order("date ASC").
		Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var row RevenueTrendRow
		if err := rows.Scan(&row.Date, &row.Revenue); err != nil {
			return nil, err
		}
		results = append(results, row)
	}
	return results, rows.Err()
}

func (r *saleRepo) ProfitMargins(startDate, endDate time.Time) ([]ProfitRow, error) {
	var results []ProfitRow

	rows, err := notVoided(r.db.Model(&model.Sale{})).
		Select(`sales.product_id, products.name,
			COALESCE(SUM(sales.quantity), 0) as units_sold,
			COALESCE(SUM(sales.total_amount), 0) as revenue,
			COALESCE(SUM(sales.quantity * products.unit_cost), 0) as cost`).
		Joins("JOIN products ON products.id = sales.product_id").
		Where("sales.quantity > 0").
		Where("products.unit_cost IS NOT NULL").
		Where("sales.created_at BETWEEN ? AND ?", startDate, endDate).
		Group("sales.product_id, products.name").
		Order("revenue DESC").
		Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var row ProfitRow
		if err := rows.Scan(&row.ProductID, &row.Name, &row.UnitsSold, &row.Revenue, &row.Cost); err != nil {
			return nil, err
		}
		row.Profit = row.Revenue.Sub(row.Cost)
		results = append(results, row)
	}
	return results, rows.Err()
}

func (r *saleRepo) GetDashboardStats() (*DashboardStats, error) {
	var stats DashboardStats

	if err := r.db.Model(&model.Product{}).
		Where("status <> ?", model.StatusDeleted).
		Count(&stats.TotalProducts).Error; err != nil {
		return nil, err
	}
	if err := r.db.Model(&model.Product{}).
		Where("status = ?", model.StatusLowStock).
		Count(&stats.LowStockCount).Error; err != nil {
		return nil, err
	}
	if err := r.db.Model(&model.Product{}).
		Where("status = ?", model.StatusOutOfStock).
		Count(&stats.OutOfStockCount).Error; err != nil {
		return nil, err
	}
	if err := r.db.Model(&model.Product{}).
		Where("status <> ?", model.StatusDeleted).
		Select("COALESCE(SUM(stock * price), 0)").
		Scan(&stats.TotalValuation).Error; err != nil {
		return nil, err
	}
	return &stats, nil
}

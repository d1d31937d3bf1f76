package repository

import (
	"time"

	"go-pos-ledger/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MovementSeriesRow for chart data
type MovementSeriesRow struct {
	Date     string `json:"date"`
	Inbound  int    `json:"inbound"`
	Outbound int    `json:"outbound"`
}

type StockMovementRepository interface {
	Create(tx *gorm.DB, movement *model.StockMovement) error
	ListByProduct(productID uuid.UUID, limit int) ([]model.StockMovement, error)
	ListByRefID(refID string) ([]model.StockMovement, error)
	GetSeries(startDate, endDate time.Time) ([]MovementSeriesRow, error)
}

type stockMovementRepo struct {
	db *gorm.DB
}

func NewStockMovementRepo(db *gorm.DB) StockMovementRepository {
	return &stockMovementRepo{db}
}

func (r *stockMovementRepo) Create(tx *gorm.DB, movement *model.StockMovement) error {
	return tx.Create(movement).Error
}

func (r *stockMovementRepo) ListByProduct(productID uuid.UUID, limit int) ([]model.StockMovement, error) {
	var movements []model.StockMovement
	q := r.db.Where("product_id = ?", productID).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&movements).Error
	return movements, err
}

func (r *stockMovementRepo) ListByRefID(refID string) ([]model.StockMovement, error) {
	var movements []model.StockMovement
	err := r.db.Where("ref_id = ?", refID).Order("created_at ASC").Find(&movements).Error
	return movements, err
}

// GetSeries aggregates movements per day for the dashboard chart. Inbound and
// outbound are split on the sign of the stored delta.
func (r *stockMovementRepo) GetSeries(startDate, endDate time.Time) ([]MovementSeriesRow, error) {
	var results []MovementSeriesRow

	rows, err := r.db.Model(&model.StockMovement{}).
		Select(`
			DATE(created_at) as date,
			COALESCE(SUM(CASE WHEN quantity > 0 THEN quantity ELSE 0 END), 0) as inbound,
			COALESCE(SUM(CASE WHEN quantity < 0 THEN -quantity ELSE 0 END), 0) as outbound
		`).
		Where("created_at BETWEEN ? AND ?", startDate, endDate).
		Group("DATE(created_at)").
		Order("date ASC").
		Rows()

	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var row MovementSeriesRow
		if err := rows.Scan(&row.Date, &row.Inbound, &row.Outbound); err != nil {
			return nil, err
		}
		results = append(results, row)
	}

	return results, rows.Err()
}

package repository

import (
	"errors"

	"go-pos-ledger/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrStockConflict is returned when the conditional stock update finds the row
// changed since it was read. The engine retries the whole unit of work.
var ErrStockConflict = errors.New("stock changed concurrently")

type ProductRepository interface {
	Create(product *model.Product) error
	FindAll() ([]model.Product, error)
	FindByID(id uuid.UUID) (*model.Product, error)
	FindByIDTx(tx *gorm.DB, id uuid.UUID) (*model.Product, error)
	FindByBarcode(barcode string) (*model.Product, error)
	Update(product *model.Product) error
	SoftDelete(id uuid.UUID, deletedBy string) error
	UpdateStockChecked(tx *gorm.DB, id uuid.UUID, fromStock, toStock int, status model.ProductStatus, updatedBy string) error
}

type productRepo struct {
	db *gorm.DB
}

func NewProductRepo(db *gorm.DB) ProductRepository {
	return &productRepo{db}
}

func (r *productRepo) Create(product *model.Product) error {
	return r.db.Create(product).Error
}

// FindAll lists active products; removed products stay out of the catalog.
func (r *productRepo) FindAll() ([]model.Product, error) {
	var products []model.Product
	err := r.db.Preload("Category").
		Where("status <> ?", model.StatusDeleted).
		Order("name ASC").
		Find(&products).Error
	return products, err
}

func (r *productRepo) FindByID(id uuid.UUID) (*model.Product, error) {
	var product model.Product
	err := r.db.Preload("Category").First(&product, "id = ?", id).Error
	return &product, err
}

// FindByIDTx reads a product inside an open transaction so the stock value it
// returns belongs to the same unit of work that will update it.
func (r *productRepo) FindByIDTx(tx *gorm.DB, id uuid.UUID) (*model.Product, error) {
	var product model.Product
	err := tx.First(&product, "id = ?", id).Error
	return &product, err
}

func (r *productRepo) FindByBarcode(barcode string) (*model.Product, error) {
	var product model.Product
	err := r.db.Preload("Category").
		Where("barcode = ? AND status <> ?", barcode, model.StatusDeleted).
		First(&product).Error
	return &product, err
}

func (r *productRepo) Update(product *model.Product) error {
	return r.db.Save(product).Error
}

// SoftDelete marks the product deleted and releases its barcode for reuse.
func (r *productRepo) SoftDelete(id uuid.UUID, deletedBy string) error {
	return r.db.Model(&model.Product{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     model.StatusDeleted,
			"barcode":    nil,
			"updated_by": deletedBy,
		}).Error
}

// UpdateStockChecked applies stock/status conditionally on the stock value the
// caller read (compare-and-swap). Zero rows affected means another transaction
// moved the stock first; ErrStockConflict tells the engine to retry.
func (r *productRepo) UpdateStockChecked(tx *gorm.DB, id uuid.UUID, fromStock, toStock int, status model.ProductStatus, updatedBy string) error {
	result := tx.Model(&model.Product{}).
		Where("id = ? AND stock = ?", id, fromStock).
		Updates(map[string]interface{}{
			"stock":      toStock,
			"status":     status,
			"updated_by": updatedBy,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStockConflict
	}
	return nil
}

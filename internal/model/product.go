package model

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ProductStatus string

const (
	StatusAvailable  ProductStatus = "available"
	StatusLowStock   ProductStatus = "low_stock"
	StatusOutOfStock ProductStatus = "out_of_stock"
	StatusDeleted    ProductStatus = "deleted"
)

type Product struct {
	BaseModel
	Name     string           `gorm:"type:varchar(255);not null" json:"name" validate:"required"`
	Price    decimal.Decimal  `gorm:"type:numeric(12,2);not null" json:"price"`
	UnitCost *decimal.Decimal `gorm:"type:numeric(12,2)" json:"unit_cost,omitempty"`

	// Stock is a native integer and is mutated only by the transaction engine.
	Stock  int           `gorm:"not null;default:0" json:"stock"`
	Status ProductStatus `gorm:"type:varchar(20);not null;default:'available'" json:"status"`

	// Barcode is unique among non-deleted products; cleared on removal so the
	// code can be reused by a replacement product.
	Barcode *string `gorm:"type:varchar(64);uniqueIndex" json:"barcode,omitempty"`

	// Per-product override for the low-stock threshold. Nil means the
	// caller-supplied or system default applies.
	LowStockThreshold *int `json:"low_stock_threshold,omitempty"`

	CategoryID *uuid.UUID `gorm:"type:uuid;index" json:"category_id,omitempty"`
	Category   *Category  `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
}

func (p *Product) Deleted() bool {
	return p.Status == StatusDeleted
}

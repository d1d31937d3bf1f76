package model

import "github.com/google/uuid"

type MovementType string

const (
	MovementSale   MovementType = "sale"
	MovementVoid   MovementType = "void"
	MovementRefund MovementType = "refund"
	MovementManual MovementType = "manual"
)

// StockMovement is the immutable audit ledger: one row per product per
// stock-affecting event. Quantity is the signed delta applied to stock
// (negative for a sale, positive for void/refund/manual restock), so
// AfterStock = BeforeStock + Quantity always holds.
type StockMovement struct {
	BaseModel
	ProductID uuid.UUID `gorm:"type:uuid;not null;index" json:"product_id"`
	Product   *Product  `gorm:"foreignKey:ProductID" json:"product,omitempty"`

	Type        MovementType `gorm:"type:varchar(10);not null" json:"type"`
	Quantity    int          `gorm:"not null" json:"quantity"`
	BeforeStock int          `gorm:"not null" json:"before_stock"`
	AfterStock  int          `gorm:"not null" json:"after_stock"`

	RefID  string    `gorm:"type:varchar(128);not null;index" json:"ref_id"`
	Reason string    `gorm:"type:text" json:"reason,omitempty"`
	UserID uuid.UUID `gorm:"type:uuid;not null" json:"user_id"`
}

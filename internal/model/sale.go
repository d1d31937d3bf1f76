package model

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Sale is an immutable ledger entry: one row per product line per transaction.
// Quantity and TotalAmount are signed — positive for a sale, negative for a
// void or return. Corrections are made by inserting offsetting rows, never by
// mutating or deleting existing ones.
type Sale struct {
	BaseModel
	ProductID uuid.UUID `gorm:"type:uuid;not null;index" json:"product_id"`
	Product   *Product  `gorm:"foreignKey:ProductID" json:"product,omitempty"`

	Quantity    int             `gorm:"not null" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"unit_price"`
	TotalAmount decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"total_amount"`

	// RefID groups the rows of one logical transaction:
	// checkout-{ms}, void-{ms}, return-{origRef}-{ms}.
	RefID string `gorm:"type:varchar(128);not null;index" json:"ref_id"`

	// ReversesRefID is set on void rows and names the checkout RefID being
	// reversed. Voided checkouts are found through this column, never by
	// parsing RefID prefixes or matching timestamps.
	ReversesRefID *string `gorm:"type:varchar(128);index" json:"reverses_ref_id,omitempty"`

	// OriginalSaleID is set on return rows and references the positive Sale
	// row being (partially) reversed.
	OriginalSaleID *uuid.UUID `gorm:"type:uuid;index" json:"original_sale_id,omitempty"`

	// UserID is who performed the transaction. For an approved void this is
	// the original requester; the approving admin goes in ApprovedBy.
	UserID     uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	ApprovedBy *uuid.UUID `gorm:"type:uuid" json:"approved_by,omitempty"`
}

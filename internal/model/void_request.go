package model

import (
	"time"

	"github.com/google/uuid"
)

type VoidRequestStatus string

const (
	VoidRequestPending  VoidRequestStatus = "pending"
	VoidRequestApproved VoidRequestStatus = "approved"
	VoidRequestRejected VoidRequestStatus = "rejected"
)

// VoidRequest is the staff-initiated workflow for reversing a completed sale:
// pending -> approved (drives a void through the transaction engine) or
// pending -> rejected. Both outcomes are terminal.
type VoidRequest struct {
	BaseModel
	TransactionNo string `gorm:"type:varchar(128);not null;index" json:"transaction_no" validate:"required"`

	RequestedBy      uuid.UUID `gorm:"type:uuid;not null" json:"requested_by"`
	RequestedByEmail string    `gorm:"type:varchar(255)" json:"requested_by_email"`
	Reason           string    `gorm:"type:text" json:"reason,omitempty"`

	// TransactionData is a JSON snapshot of the items to void, captured at
	// request time. The approval path replays this snapshot, not the live
	// ledger rows.
	TransactionData string `gorm:"type:text;not null" json:"transaction_data"`

	Status          VoidRequestStatus `gorm:"type:varchar(10);not null;default:'pending';index" json:"status"`
	ApprovedBy      *uuid.UUID        `gorm:"type:uuid" json:"approved_by,omitempty"`
	ApprovedByEmail string            `gorm:"type:varchar(255)" json:"approved_by_email,omitempty"`
	ApprovedAt      *time.Time        `json:"approved_at,omitempty"`
}

func (v *VoidRequest) Pending() bool {
	return v.Status == VoidRequestPending
}

// VoidRequestItem is one line of the TransactionData snapshot.
type VoidRequestItem struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}

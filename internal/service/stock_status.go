package service

import (
	"math"

	"go-pos-ledger/internal/model"
)

// DefaultLowStockThreshold applies when neither the product nor the request
// carries a threshold.
const DefaultLowStockThreshold = 10

// ComputeStatus derives a product's stock status from its stock level and the
// effective low-stock threshold.
func ComputeStatus(stock, threshold int) model.ProductStatus {
	switch {
	case stock <= 0:
		return model.StatusOutOfStock
	case stock < threshold:
		return model.StatusLowStock
	default:
		return model.StatusAvailable
	}
}

// ResolveThreshold picks the effective threshold for one product: the
// product's own override wins, then the caller-supplied general threshold,
// then the system default. Resolved once per product per operation so the
// stock write and the alert summary agree.
func ResolveThreshold(product *model.Product, general *int) int {
	if product != nil && product.LowStockThreshold != nil {
		return *product.LowStockThreshold
	}
	if general != nil {
		return *general
	}
	return DefaultLowStockThreshold
}

// NormalizeThreshold floors a request-supplied threshold. Nil means
// "use defaults"; negative values are rejected by the caller.
func NormalizeThreshold(raw *float64) *int {
	if raw == nil {
		return nil
	}
	floored := int(math.Floor(*raw))
	return &floored
}

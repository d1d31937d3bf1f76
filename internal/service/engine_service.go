package service

import (
	"errors"
	"fmt"
	"time"

	"go-pos-ledger/internal/model"
	"go-pos-ledger/internal/repository"
	"go-pos-ledger/pkg/apperr"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CheckoutAction string

const (
	ActionSale   CheckoutAction = "sale"
	ActionVoid   CheckoutAction = "void"
	ActionReturn CheckoutAction = "return"
)

// maxStockRetries bounds how often a unit of work is replayed after losing a
// conditional stock update to a concurrent transaction.
const maxStockRetries = 3

type CheckoutItem struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}

type CheckoutInput struct {
	Items     []CheckoutItem
	Action    CheckoutAction
	Threshold *int

	// ActingUserID performed the request. For a void resolved through the
	// approval workflow, RequestedBy (the original requester) becomes the
	// ledger userId and ApprovedBy is recorded for audit only.
	ActingUserID          uuid.UUID
	RequestedBy           *uuid.UUID
	ApprovedBy            *uuid.UUID
	OriginalTransactionNo string
}

type ReturnItem struct {
	SaleID    uuid.UUID `json:"sale_id"`
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
	Reason    string    `json:"reason,omitempty"`
}

type ReturnInput struct {
	Items        []ReturnItem
	Threshold    *int
	ActingUserID uuid.UUID
}

// StockSummary lists products a sale just pushed into low or out-of-stock,
// for downstream alerting.
type StockSummary struct {
	LowNow []uuid.UUID `json:"low_now"`
	OutNow []uuid.UUID `json:"out_now"`
}

func (s StockSummary) Empty() bool {
	return len(s.LowNow) == 0 && len(s.OutNow) == 0
}

type TransactionResult struct {
	Action        CheckoutAction `json:"action"`
	TransactionNo string         `json:"transaction_no"`
	Summary       StockSummary   `json:"summary"`
	ItemCount     int            `json:"item_count"`
}

// StockAlertNotifier receives fire-and-forget stock alerts after a commit.
type StockAlertNotifier interface {
	NotifyStockAlert(action CheckoutAction, summary StockSummary)
}

// TransactionEngine is the sole mutator of product stock/status and the sole
// creator of Sale and StockMovement ledger rows. All writes of one call commit
// as a single database transaction or not at all.
type TransactionEngine interface {
	Checkout(in CheckoutInput) (*TransactionResult, error)
	Return(in ReturnInput) (*TransactionResult, error)
	// CheckoutInTx runs a checkout inside an already-open transaction, so a
	// caller can make ledger writes atomic with its own state changes.
	CheckoutInTx(tx *gorm.DB, in CheckoutInput) (*TransactionResult, error)
}

type transactionEngine struct {
	productRepo  repository.ProductRepository
	saleRepo     repository.SaleRepository
	movementRepo repository.StockMovementRepository
	db           *gorm.DB
	notifier     StockAlertNotifier
	now          func() time.Time
}

func NewTransactionEngine(
	productRepo repository.ProductRepository,
	saleRepo repository.SaleRepository,
	movementRepo repository.StockMovementRepository,
	db *gorm.DB,
	notifier StockAlertNotifier,
) TransactionEngine {
	return &transactionEngine{
		productRepo:  productRepo,
		saleRepo:     saleRepo,
		movementRepo: movementRepo,
		db:           db,
		notifier:     notifier,
		now:          time.Now,
	}
}

func (e *transactionEngine) Checkout(in CheckoutInput) (*TransactionResult, error) {
	if err := validateCheckoutInput(&in); err != nil {
		return nil, err
	}

	var result *TransactionResult
	err := e.withStockRetry(func(tx *gorm.DB) error {
		r, err := e.checkoutInTx(tx, in)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.notify(result)
	return result, nil
}

func (e *transactionEngine) CheckoutInTx(tx *gorm.DB, in CheckoutInput) (*TransactionResult, error) {
	if err := validateCheckoutInput(&in); err != nil {
		return nil, err
	}
	return e.checkoutInTx(tx, in)
}

func (e *transactionEngine) Return(in ReturnInput) (*TransactionResult, error) {
	if err := validateReturnInput(&in); err != nil {
		return nil, err
	}

	var result *TransactionResult
	err := e.withStockRetry(func(tx *gorm.DB) error {
		r, err := e.returnInTx(tx, in)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.notify(result)
	return result, nil
}

// withStockRetry runs fn in a database transaction, replaying it when the
// conditional stock update reports a concurrent writer won the row.
func (e *transactionEngine) withStockRetry(fn func(tx *gorm.DB) error) error {
	var err error
	for attempt := 0; attempt < maxStockRetries; attempt++ {
		err = e.db.Transaction(fn)
		if !errors.Is(err, repository.ErrStockConflict) {
			break
		}
	}
	if errors.Is(err, repository.ErrStockConflict) {
		return apperr.Wrap(err, "could not apply stock update after concurrent retries")
	}
	return err
}

func (e *transactionEngine) notify(result *TransactionResult) {
	if e.notifier == nil || result == nil || result.Summary.Empty() {
		return
	}
	e.notifier.NotifyStockAlert(result.Action, result.Summary)
}

func validateCheckoutInput(in *CheckoutInput) error {
	if in.Action == "" {
		in.Action = ActionSale
	}
	if in.Action != ActionSale && in.Action != ActionVoid {
		return apperr.Newf(apperr.KindInvalidInput, "unknown action %q", in.Action)
	}
	if len(in.Items) == 0 {
		return apperr.New(apperr.KindInvalidInput, "at least one item is required")
	}
	if in.Threshold != nil && *in.Threshold < 0 {
		return apperr.New(apperr.KindInvalidInput, "threshold must not be negative")
	}

	var details []string
	for i, item := range in.Items {
		if item.ProductID == uuid.Nil {
			details = append(details, fmt.Sprintf("item %d: product id is required", i+1))
		}
		if item.Quantity <= 0 {
			details = append(details, fmt.Sprintf("item %d: quantity must be a positive integer", i+1))
		}
	}
	if len(details) > 0 {
		return apperr.New(apperr.KindInvalidInput, "invalid checkout items").WithDetails(details...)
	}
	return nil
}

func validateReturnInput(in *ReturnInput) error {
	if len(in.Items) == 0 {
		return apperr.New(apperr.KindInvalidInput, "at least one item is required")
	}
	if in.Threshold != nil && *in.Threshold < 0 {
		return apperr.New(apperr.KindInvalidInput, "threshold must not be negative")
	}

	var details []string
	for i, item := range in.Items {
		if item.SaleID == uuid.Nil {
			details = append(details, fmt.Sprintf("item %d: sale id is required", i+1))
		}
		if item.Quantity <= 0 {
			details = append(details, fmt.Sprintf("item %d: quantity must be a positive integer", i+1))
		}
	}
	if len(details) > 0 {
		return apperr.New(apperr.KindInvalidInput, "invalid return items").WithDetails(details...)
	}
	return nil
}

func (e *transactionEngine) checkoutInTx(tx *gorm.DB, in CheckoutInput) (*TransactionResult, error) {
	now := e.now()

	// Load every referenced product inside the transaction, enumerating all
	// missing ids before anything is written.
	products := make(map[uuid.UUID]*model.Product)
	var missing []string
	for _, item := range in.Items {
		if _, ok := products[item.ProductID]; ok {
			continue
		}
		product, err := e.productRepo.FindByIDTx(tx, item.ProductID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				missing = append(missing, fmt.Sprintf("product %s not found", item.ProductID))
				continue
			}
			return nil, apperr.Wrap(err, "failed to load product")
		}
		if in.Action == ActionSale && product.Deleted() {
			missing = append(missing, fmt.Sprintf("product %s not found", item.ProductID))
			continue
		}
		products[item.ProductID] = product
	}
	if len(missing) > 0 {
		return nil, apperr.New(apperr.KindNotFound, "unknown products").WithDetails(missing...)
	}

	// For a sale, every line must be coverable by current stock. All
	// offending products are reported together; nothing is partially applied.
	if in.Action == ActionSale {
		needed := make(map[uuid.UUID]int)
		for _, item := range in.Items {
			needed[item.ProductID] += item.Quantity
		}
		var short []string
		for _, item := range in.Items {
			product := products[item.ProductID]
			if total := needed[item.ProductID]; total > product.Stock {
				short = append(short, fmt.Sprintf("%s: requested %d, available %d", product.Name, total, product.Stock))
				delete(needed, item.ProductID)
			}
		}
		if len(short) > 0 {
			return nil, apperr.New(apperr.KindInsufficientStock, "insufficient stock").WithDetails(short...)
		}
	}

	transactionNo := deriveTransactionNo(in.Action, in.OriginalTransactionNo, now)

	var reversesRefID *string
	if in.Action == ActionVoid && in.OriginalTransactionNo != "" {
		voided, err := e.saleRepo.HasReversalTx(tx, in.OriginalTransactionNo)
		if err != nil {
			return nil, apperr.Wrap(err, "failed to check for an existing void")
		}
		if voided {
			return nil, apperr.Newf(apperr.KindInvalidState, "transaction %s is already voided", in.OriginalTransactionNo)
		}
		ref := in.OriginalTransactionNo
		reversesRefID = &ref
	}

	// For approved voids the ledger userId is the original requester, not the
	// approving admin.
	ledgerUserID := in.ActingUserID
	if in.Action == ActionVoid && in.RequestedBy != nil {
		ledgerUserID = *in.RequestedBy
	}

	result := &TransactionResult{
		Action:        in.Action,
		TransactionNo: transactionNo,
		ItemCount:     len(in.Items),
	}

	for _, item := range in.Items {
		product := products[item.ProductID]
		beforeStock := product.Stock

		var afterStock int
		if in.Action == ActionSale {
			afterStock = beforeStock - item.Quantity
			if afterStock < 0 {
				afterStock = 0
			}
		} else {
			afterStock = beforeStock + item.Quantity
		}

		threshold := ResolveThreshold(product, in.Threshold)
		status := ComputeStatus(afterStock, threshold)
		// Restocking a removed product must not resurrect it in the catalog.
		if product.Deleted() {
			status = model.StatusDeleted
		}

		if in.Action == ActionSale {
			switch status {
			case model.StatusOutOfStock:
				result.Summary.OutNow = appendUnique(result.Summary.OutNow, product.ID)
			case model.StatusLowStock:
				result.Summary.LowNow = appendUnique(result.Summary.LowNow, product.ID)
			}
		}

		quantity := item.Quantity
		totalAmount := product.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		movementQuantity := -item.Quantity
		movementType := model.MovementSale
		var approvedBy *uuid.UUID
		if in.Action == ActionVoid {
			quantity = -quantity
			totalAmount = totalAmount.Neg()
			movementQuantity = item.Quantity
			movementType = model.MovementVoid
			approvedBy = in.ApprovedBy
		}

		sale := &model.Sale{
			ProductID:     product.ID,
			Quantity:      quantity,
			UnitPrice:     product.Price,
			TotalAmount:   totalAmount,
			RefID:         transactionNo,
			ReversesRefID: reversesRefID,
			UserID:        ledgerUserID,
			ApprovedBy:    approvedBy,
		}
		sale.CreatedBy = in.ActingUserID.String()
		sale.UpdatedBy = in.ActingUserID.String()
		if err := e.saleRepo.Create(tx, sale); err != nil {
			return nil, apperr.Wrap(err, "failed to write sale ledger entry")
		}

		movement := &model.StockMovement{
			ProductID:   product.ID,
			Type:        movementType,
			Quantity:    movementQuantity,
			BeforeStock: beforeStock,
			AfterStock:  afterStock,
			RefID:       transactionNo,
			UserID:      ledgerUserID,
		}
		movement.CreatedBy = in.ActingUserID.String()
		movement.UpdatedBy = in.ActingUserID.String()
		if err := e.movementRepo.Create(tx, movement); err != nil {
			return nil, apperr.Wrap(err, "failed to write stock movement")
		}

		if err := e.productRepo.UpdateStockChecked(tx, product.ID, beforeStock, afterStock, status, ledgerUserID.String()); err != nil {
			if errors.Is(err, repository.ErrStockConflict) {
				return nil, err
			}
			return nil, apperr.Wrap(err, "failed to update product stock")
		}

		// Keep the in-memory stock current so repeated lines for the same
		// product chain their before/after values.
		product.Stock = afterStock
	}

	return result, nil
}

func (e *transactionEngine) returnInTx(tx *gorm.DB, in ReturnInput) (*TransactionResult, error) {
	now := e.now()

	result := &TransactionResult{
		Action:    ActionReturn,
		ItemCount: len(in.Items),
	}

	for _, item := range in.Items {
		original, err := e.saleRepo.FindByIDTx(tx, item.SaleID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperr.Newf(apperr.KindNotFound, "sale %s not found", item.SaleID)
			}
			return nil, apperr.Wrap(err, "failed to load original sale")
		}
		if original.Quantity <= 0 {
			return nil, apperr.Newf(apperr.KindInvalidState, "sale %s is not a returnable sale entry", item.SaleID)
		}
		if item.ProductID != uuid.Nil && item.ProductID != original.ProductID {
			return nil, apperr.Newf(apperr.KindInvalidInput, "product %s does not match sale %s", item.ProductID, item.SaleID)
		}
		if item.Quantity > original.Quantity {
			return nil, apperr.Newf(apperr.KindInvalidInput,
				"cannot return %d of sale %s: original quantity is %d", item.Quantity, item.SaleID, original.Quantity)
		}

		// Over-return guard: re-read accepted returns inside this transaction
		// so concurrent partial returns cannot jointly exceed the original.
		alreadyReturned, err := e.saleRepo.ReturnedQuantityTx(tx, original.ID)
		if err != nil {
			return nil, apperr.Wrap(err, "failed to sum prior returns")
		}
		if alreadyReturned+item.Quantity > original.Quantity {
			return nil, apperr.Newf(apperr.KindInvalidInput,
				"return of %d exceeds available to return for sale %s (%d of %d already returned)",
				item.Quantity, item.SaleID, alreadyReturned, original.Quantity)
		}

		product, err := e.productRepo.FindByIDTx(tx, original.ProductID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperr.Newf(apperr.KindNotFound, "product %s not found", original.ProductID)
			}
			return nil, apperr.Wrap(err, "failed to load product")
		}

		beforeStock := product.Stock
		afterStock := beforeStock + item.Quantity
		status := ComputeStatus(afterStock, ResolveThreshold(product, in.Threshold))
		if product.Deleted() {
			status = model.StatusDeleted
		}

		refBase := original.RefID
		if refBase == "" {
			refBase = original.ID.String()
		}
		refID := fmt.Sprintf("return-%s-%d", refBase, now.UnixMilli())
		if result.TransactionNo == "" {
			result.TransactionNo = refID
		}

		// The refund is priced at the original sale's unit price, not the
		// product's current price.
		totalAmount := original.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))).Neg()

		sale := &model.Sale{
			ProductID:      original.ProductID,
			Quantity:       -item.Quantity,
			UnitPrice:      original.UnitPrice,
			TotalAmount:    totalAmount,
			RefID:          refID,
			OriginalSaleID: &original.ID,
			UserID:         in.ActingUserID,
		}
		sale.CreatedBy = in.ActingUserID.String()
		sale.UpdatedBy = in.ActingUserID.String()
		if err := e.saleRepo.Create(tx, sale); err != nil {
			return nil, apperr.Wrap(err, "failed to write return ledger entry")
		}

		movement := &model.StockMovement{
			ProductID:   original.ProductID,
			Type:        model.MovementRefund,
			Quantity:    item.Quantity,
			BeforeStock: beforeStock,
			AfterStock:  afterStock,
			RefID:       refID,
			Reason:      item.Reason,
			UserID:      in.ActingUserID,
		}
		movement.CreatedBy = in.ActingUserID.String()
		movement.UpdatedBy = in.ActingUserID.String()
		if err := e.movementRepo.Create(tx, movement); err != nil {
			return nil, apperr.Wrap(err, "failed to write stock movement")
		}

		if err := e.productRepo.UpdateStockChecked(tx, product.ID, beforeStock, afterStock, status, in.ActingUserID.String()); err != nil {
			if errors.Is(err, repository.ErrStockConflict) {
				return nil, err
			}
			return nil, apperr.Wrap(err, "failed to update product stock")
		}
	}

	return result, nil
}

// deriveTransactionNo builds the grouping key for a transaction. Voiding a
// checkout reuses the checkout's timestamp, so checkout-{T} always pairs with
// void-{T} on receipts.
func deriveTransactionNo(action CheckoutAction, originalTransactionNo string, now time.Time) string {
	if action == ActionVoid {
		if ts, ok := checkoutTimestamp(originalTransactionNo); ok {
			return "void-" + ts
		}
		return fmt.Sprintf("void-%d", now.UnixMilli())
	}
	return fmt.Sprintf("checkout-%d", now.UnixMilli())
}

func appendUnique(ids []uuid.UUID, id uuid.UUID) []uuid.UUID {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}

func checkoutTimestamp(transactionNo string) (string, bool) {
	const prefix = "checkout-"
	if len(transactionNo) > len(prefix) && transactionNo[:len(prefix)] == prefix {
		return transactionNo[len(prefix):], true
	}
	return "", false
}

package service

import (
	"encoding/json"
	"errors"
	"time"

	"go-pos-ledger/internal/model"
	"go-pos-ledger/internal/repository"
	"go-pos-ledger/pkg/apperr"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ResolveAction string

const (
	ResolveApprove ResolveAction = "approve"
	ResolveReject  ResolveAction = "reject"
)

type CreateVoidRequestInput struct {
	TransactionNo string
	Reason        string
	Items         []model.VoidRequestItem
}

type ResolveVoidRequestInput struct {
	Action        ResolveAction
	AdminPassword string
}

type VoidRequestService interface {
	Create(in CreateVoidRequestInput, requester *model.User) (*model.VoidRequest, error)
	Resolve(id uuid.UUID, in ResolveVoidRequestInput, admin *model.User) (*model.VoidRequest, error)
	List(status model.VoidRequestStatus) ([]model.VoidRequest, error)
}

type voidRequestService struct {
	voidRepo repository.VoidRequestRepository
	engine   TransactionEngine
	db       *gorm.DB
	notifier StockAlertNotifier
	now      func() time.Time
}

func NewVoidRequestService(
	voidRepo repository.VoidRequestRepository,
	engine TransactionEngine,
	db *gorm.DB,
	notifier StockAlertNotifier,
) VoidRequestService {
	return &voidRequestService{
		voidRepo: voidRepo,
		engine:   engine,
		db:       db,
		notifier: notifier,
		now:      time.Now,
	}
}

// Create records a staff void request in pending state. The items are stored
// as a snapshot; the approval path replays the snapshot, not the live ledger.
func (s *voidRequestService) Create(in CreateVoidRequestInput, requester *model.User) (*model.VoidRequest, error) {
	if in.TransactionNo == "" {
		return nil, apperr.New(apperr.KindInvalidInput, "transaction number is required")
	}
	if len(in.Items) == 0 {
		return nil, apperr.New(apperr.KindInvalidInput, "transaction data with at least one item is required")
	}
	for _, item := range in.Items {
		if item.ProductID == uuid.Nil || item.Quantity <= 0 {
			return nil, apperr.New(apperr.KindInvalidInput, "every snapshot item needs a product id and a positive quantity")
		}
	}

	snapshot, err := json.Marshal(in.Items)
	if err != nil {
		return nil, apperr.Wrap(err, "failed to encode transaction snapshot")
	}

	request := &model.VoidRequest{
		TransactionNo:    in.TransactionNo,
		RequestedBy:      requester.ID,
		RequestedByEmail: requester.Email,
		Reason:           in.Reason,
		TransactionData:  string(snapshot),
		Status:           model.VoidRequestPending,
	}
	request.CreatedBy = requester.ID.String()
	request.UpdatedBy = requester.ID.String()

	if err := s.voidRepo.Create(request); err != nil {
		return nil, apperr.Wrap(err, "failed to create void request")
	}
	return request, nil
}

// Resolve moves a pending request to its terminal state. An approval drives a
// void through the transaction engine inside the same database transaction as
// the status write, so an engine failure leaves the request pending.
func (s *voidRequestService) Resolve(id uuid.UUID, in ResolveVoidRequestInput, admin *model.User) (*model.VoidRequest, error) {
	if !admin.IsAdmin() {
		return nil, apperr.New(apperr.KindForbidden, "admin role required to resolve void requests")
	}
	if in.Action != ResolveApprove && in.Action != ResolveReject {
		return nil, apperr.Newf(apperr.KindInvalidInput, "unknown action %q", in.Action)
	}
	if in.AdminPassword != "" && !admin.CheckPassword(in.AdminPassword) {
		return nil, apperr.New(apperr.KindUnauthorized, "admin password is incorrect")
	}

	resolvedAt := s.now()
	var resolved *model.VoidRequest
	var summary StockSummary

	err := s.db.Transaction(func(tx *gorm.DB) error {
		request, err := s.voidRepo.FindByIDTx(tx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.Newf(apperr.KindNotFound, "void request %s not found", id)
			}
			return apperr.Wrap(err, "failed to load void request")
		}

		status := model.VoidRequestRejected
		if in.Action == ResolveApprove {
			status = model.VoidRequestApproved
		}

		// Conditional update: only a pending request can be resolved, and
		// only once, even under concurrent admins.
		ok, err := s.voidRepo.ResolveIfPending(tx, id, status, admin, resolvedAt)
		if err != nil {
			return apperr.Wrap(err, "failed to update void request")
		}
		if !ok {
			return apperr.Newf(apperr.KindInvalidState, "void request %s is already processed", id)
		}

		if in.Action == ResolveApprove {
			var items []model.VoidRequestItem
			if err := json.Unmarshal([]byte(request.TransactionData), &items); err != nil {
				return apperr.Wrap(err, "transaction snapshot is unreadable")
			}

			checkoutItems := make([]CheckoutItem, len(items))
			for i, item := range items {
				checkoutItems[i] = CheckoutItem{ProductID: item.ProductID, Quantity: item.Quantity}
			}

			requestedBy := request.RequestedBy
			result, err := s.engine.CheckoutInTx(tx, CheckoutInput{
				Items:                 checkoutItems,
				Action:                ActionVoid,
				ActingUserID:          admin.ID,
				RequestedBy:           &requestedBy,
				ApprovedBy:            &admin.ID,
				OriginalTransactionNo: request.TransactionNo,
			})
			if err != nil {
				// The rollback leaves the request pending; the caller sees
				// the approval as failed overall.
				return apperr.Wrap(err, "void transaction failed, request left pending")
			}
			summary = result.Summary
		}

		request.Status = status
		request.ApprovedBy = &admin.ID
		request.ApprovedByEmail = admin.Email
		request.ApprovedAt = &resolvedAt
		resolved = request
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.notifier != nil && !summary.Empty() {
		s.notifier.NotifyStockAlert(ActionVoid, summary)
	}
	return resolved, nil
}

func (s *voidRequestService) List(status model.VoidRequestStatus) ([]model.VoidRequest, error) {
	requests, err := s.voidRepo.List(status)
	if err != nil {
		return nil, apperr.Wrap(err, "failed to list void requests")
	}
	return requests, nil
}

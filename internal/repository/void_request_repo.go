package repository

import (
	"time"

	"go-pos-ledger/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type VoidRequestRepository interface {
	Create(request *model.VoidRequest) error
	FindByID(id uuid.UUID) (*model.VoidRequest, error)
	FindByIDTx(tx *gorm.DB, id uuid.UUID) (*model.VoidRequest, error)
	List(status model.VoidRequestStatus) ([]model.VoidRequest, error)
	ResolveIfPending(tx *gorm.DB, id uuid.UUID, status model.VoidRequestStatus, approver *model.User, approvedAt time.Time) (bool, error)
}

type voidRequestRepo struct {
	db *gorm.DB
}

func NewVoidRequestRepo(db *gorm.DB) VoidRequestRepository {
	return &voidRequestRepo{db}
}

func (r *voidRequestRepo) Create(request *model.VoidRequest) error {
	return r.db.Create(request).Error
}

func (r *voidRequestRepo) FindByID(id uuid.UUID) (*model.VoidRequest, error) {
	var request model.VoidRequest
	err := r.db.First(&request, "id = ?", id).Error
	return &request, err
}

func (r *voidRequestRepo) FindByIDTx(tx *gorm.DB, id uuid.UUID) (*model.VoidRequest, error) {
	var request model.VoidRequest
	err := tx.First(&request, "id = ?", id).Error
	return &request, err
}

func (r *voidRequestRepo) List(status model.VoidRequestStatus) ([]model.VoidRequest, error) {
	var requests []model.VoidRequest
	q := r.db.Order("created_at DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	err := q.Find(&requests).Error
	return requests, err
}

// ResolveIfPending flips the request out of pending conditionally. Zero rows
// affected means another admin resolved it first; the state machine treats
// approved/rejected as terminal, so the caller must fail the second attempt.
func (r *voidRequestRepo) ResolveIfPending(tx *gorm.DB, id uuid.UUID, status model.VoidRequestStatus, approver *model.User, approvedAt time.Time) (bool, error) {
	result := tx.Model(&model.VoidRequest{}).
		Where("id = ? AND status = ?", id, model.VoidRequestPending).
		Updates(map[string]interface{}{
			"status":            status,
			"approved_by":       approver.ID,
			"approved_by_email": approver.Email,
			"approved_at":       approvedAt,
			"updated_by":        approver.ID.String(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

package service

import (
	"errors"

	"go-pos-ledger/internal/model"
	"go-pos-ledger/internal/repository"
	"go-pos-ledger/pkg/apperr"
	"go-pos-ledger/pkg/validator"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CatalogService owns product and category maintenance. Stock is deliberately
// absent from the update path: only the transaction engine mutates stock.
type CatalogService interface {
	CreateProduct(req *model.Product, userID string) error
	UpdateProduct(id uuid.UUID, req *model.Product, userID string) (*model.Product, error)
	DeleteProduct(id uuid.UUID, userID string) error
	GetProducts() ([]model.Product, error)
	GetProductByBarcode(barcode string) (*model.Product, error)
	CreateCategory(req *model.Category, userID string) error
	GetCategories() ([]model.Category, error)
}

type catalogService struct {
	productRepo  repository.ProductRepository
	categoryRepo repository.CategoryRepository
}

func NewCatalogService(productRepo repository.ProductRepository, categoryRepo repository.CategoryRepository) CatalogService {
	return &catalogService{
		productRepo:  productRepo,
		categoryRepo: categoryRepo,
	}
}

func (s *catalogService) CreateProduct(req *model.Product, userID string) error {
	if errs := validator.ValidateStruct(req); len(errs) > 0 {
		return apperr.Newf(apperr.KindInvalidInput,
			"validation failed: field '%s' failed on tag '%s'", errs[0].FailedField, errs[0].Tag)
	}
	if req.Stock < 0 {
		return apperr.New(apperr.KindInvalidInput, "stock must not be negative")
	}
	if req.Price.IsNegative() {
		return apperr.New(apperr.KindInvalidInput, "price must not be negative")
	}

	// Barcode must be unique among active products.
	if req.Barcode != nil && *req.Barcode != "" {
		existing, err := s.productRepo.FindByBarcode(*req.Barcode)
		if err == nil && existing.ID != uuid.Nil {
			return apperr.Newf(apperr.KindInvalidInput, "barcode %s is already in use", *req.Barcode)
		}
	}

	req.Status = ComputeStatus(req.Stock, ResolveThreshold(req, nil))
	req.CreatedBy = userID
	req.UpdatedBy = userID

	if err := s.productRepo.Create(req); err != nil {
		return apperr.Wrap(err, "failed to create product")
	}
	return nil
}

func (s *catalogService) UpdateProduct(id uuid.UUID, req *model.Product, userID string) (*model.Product, error) {
	existing, err := s.productRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Newf(apperr.KindNotFound, "product %s not found", id)
		}
		return nil, apperr.Wrap(err, "failed to load product")
	}
	if existing.Deleted() {
		return nil, apperr.Newf(apperr.KindInvalidState, "product %s is deleted", id)
	}

	existing.Name = req.Name
	existing.Price = req.Price
	existing.UnitCost = req.UnitCost
	existing.Barcode = req.Barcode
	existing.LowStockThreshold = req.LowStockThreshold
	existing.CategoryID = req.CategoryID
	existing.UpdatedBy = userID
	// Threshold changes can move the derived status even though stock did not.
	existing.Status = ComputeStatus(existing.Stock, ResolveThreshold(existing, nil))

	if err := s.productRepo.Update(existing); err != nil {
		return nil, apperr.Wrap(err, "failed to update product")
	}
	return existing, nil
}

func (s *catalogService) DeleteProduct(id uuid.UUID, userID string) error {
	existing, err := s.productRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.Newf(apperr.KindNotFound, "product %s not found", id)
		}
		return apperr.Wrap(err, "failed to load product")
	}
	if existing.Deleted() {
		return apperr.Newf(apperr.KindInvalidState, "product %s is already deleted", id)
	}
	if err := s.productRepo.SoftDelete(id, userID); err != nil {
		return apperr.Wrap(err, "failed to delete product")
	}
	return nil
}

func (s *catalogService) GetProducts() ([]model.Product, error) {
	return s.productRepo.FindAll()
}

func (s *catalogService) GetProductByBarcode(barcode string) (*model.Product, error) {
	product, err := s.productRepo.FindByBarcode(barcode)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Newf(apperr.KindNotFound, "no product with barcode %s", barcode)
		}
		return nil, apperr.Wrap(err, "failed to look up barcode")
	}
	return product, nil
}

func (s *catalogService) CreateCategory(req *model.Category, userID string) error {
	if errs := validator.ValidateStruct(req); len(errs) > 0 {
		return apperr.Newf(apperr.KindInvalidInput,
			"validation failed: field '%s' failed on tag '%s'", errs[0].FailedField, errs[0].Tag)
	}
	existing, err := s.categoryRepo.FindByName(req.Name)
	if err == nil && existing.ID != uuid.Nil {
		return apperr.Newf(apperr.KindInvalidInput, "category %q already exists", req.Name)
	}
	req.CreatedBy = userID
	req.UpdatedBy = userID
	if err := s.categoryRepo.Create(req); err != nil {
		return apperr.Wrap(err, "failed to create category")
	}
	return nil
}

func (s *catalogService) GetCategories() ([]model.Category, error) {
	return s.categoryRepo.FindAll()
}

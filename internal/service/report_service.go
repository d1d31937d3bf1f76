package service

import (
	"time"

	"go-pos-ledger/internal/model"
	"go-pos-ledger/internal/repository"
	"go-pos-ledger/pkg/apperr"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Receipt groups the ledger rows of one transaction for display, with an
// explicit voided flag instead of refId-prefix matching.
type Receipt struct {
	TransactionNo string          `json:"transaction_no"`
	Voided        bool            `json:"voided"`
	Lines         []model.Sale    `json:"lines"`
	Total         decimal.Decimal `json:"total"`
}

// ReportService exposes read-only projections over the ledger. It never
// mutates stock or creates ledger rows.
type ReportService interface {
	GetDashboardStats() (*repository.DashboardStats, error)
	GetStockMovement(days int) ([]repository.MovementSeriesRow, error)
	GetSalesByProduct(startDate, endDate time.Time) ([]repository.ProductSalesRow, error)
	GetRevenueTrend(startDate, endDate time.Time) ([]repository.RevenueTrendRow, error)
	GetProfitMargins(startDate, endDate time.Time) ([]repository.ProfitRow, error)
	GetSales(limit int) ([]model.Sale, error)
	GetReceipt(transactionNo string) (*Receipt, error)
	GetProductMovements(productID uuid.UUID, limit int) ([]model.StockMovement, error)
}

type reportService struct {
	saleRepo     repository.SaleRepository
	movementRepo repository.StockMovementRepository
}

func NewReportService(saleRepo repository.SaleRepository, movementRepo repository.StockMovementRepository) ReportService {
	return &reportService{
		saleRepo:     saleRepo,
		movementRepo: movementRepo,
	}
}

func (s *reportService) GetDashboardStats() (*repository.DashboardStats, error) {
	return s.saleRepo.GetDashboardStats()
}

func (s *reportService) GetStockMovement(days int) ([]repository.MovementSeriesRow, error) {
	endDate := time.Now()
	startDate := endDate.AddDate(0, 0, -days)
	return s.movementRepo.GetSeries(startDate, endDate)
}

func (s *reportService) GetSalesByProduct(startDate, endDate time.Time) ([]repository.ProductSalesRow, error) {
	return s.saleRepo.SalesByProduct(startDate, endDate)
}

func (s *reportService) GetRevenueTrend(startDate, endDate time.Time) ([]repository.RevenueTrendRow, error) {
	return s.saleRepo.RevenueTrend(startDate, endDate)
}

func (s *reportService) GetProfitMargins(startDate, endDate time.Time) ([]repository.ProfitRow, error) {
	return s.saleRepo.ProfitMargins(startDate, endDate)
}

func (s *reportService) GetSales(limit int) ([]model.Sale, error) {
	return s.saleRepo.ListSales(limit)
}

func (s *reportService) GetReceipt(transactionNo string) (*Receipt, error) {
	lines, err := s.saleRepo.ListByRefID(transactionNo)
	if err != nil {
		return nil, apperr.Wrap(err, "failed to load receipt lines")
	}
	if len(lines) == 0 {
		return nil, apperr.Newf(apperr.KindNotFound, "no transaction %s", transactionNo)
	}

	receipt := &Receipt{
		TransactionNo: transactionNo,
		Lines:         lines,
	}
	for _, line := range lines {
		receipt.Total = receipt.Total.Add(line.TotalAmount)
	}

	voided, err := s.saleRepo.HasReversalTx(nil, transactionNo)
	if err != nil {
		return nil, apperr.Wrap(err, "failed to check void status")
	}
	receipt.Voided = voided
	return receipt, nil
}

func (s *reportService) GetProductMovements(productID uuid.UUID, limit int) ([]model.StockMovement, error) {
	return s.movementRepo.ListByProduct(productID, limit)
}

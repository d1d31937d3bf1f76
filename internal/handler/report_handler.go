package handler

import (
	"strconv"
	"time"

	"go-pos-ledger/internal/service"

	"github.com/gofiber/fiber/v2"
)

type ReportHandler struct {
	service service.ReportService
}

func NewReportHandler(s service.ReportService) *ReportHandler {
	return &ReportHandler{service: s}
}

// parseRange maps a range query param to a start date.
func parseRange(c *fiber.Ctx) (time.Time, time.Time) {
	rangeParam := c.Query("range", "7d")
	now := time.Now()
	var startDate time.Time

	switch rangeParam {
	case "7d":
		startDate = now.AddDate(0, 0, -7)
	case "1m":
		startDate = now.AddDate(0, -1, 0)
	case "3m":
		startDate = now.AddDate(0, -3, 0)
	case "6m":
		startDate = now.AddDate(0, -6, 0)
	case "12m":
		startDate = now.AddDate(0, -12, 0)
	default:
		startDate = now.AddDate(0, 0, -7)
	}
	return startDate, now
}

func (h *ReportHandler) GetDashboardStats(c *fiber.Ctx) error {
	stats, err := h.service.GetDashboardStats()
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Failed to fetch dashboard stats"})
	}
	return c.JSON(stats)
}

// GetStockMovement returns stock movement data for charts
// Query params: days (default 7)
func (h *ReportHandler) GetStockMovement(c *fiber.Ctx) error {
	daysStr := c.Query("days", "7")
	days, err := strconv.Atoi(daysStr)
	if err != nil || days <= 0 {
		days = 7
	}

	data, err := h.service.GetStockMovement(days)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Failed to fetch stock movement"})
	}

	return c.JSON(fiber.Map{
		"period": days,
		"data":   data,
	})
}

func (h *ReportHandler) GetSalesByProduct(c *fiber.Ctx) error {
	startDate, endDate := parseRange(c)
	data, err := h.service.GetSalesByProduct(startDate, endDate)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Failed to fetch product sales"})
	}
	return c.JSON(fiber.Map{"data": data})
}

func (h *ReportHandler) GetRevenueTrend(c *fiber.Ctx) error {
	startDate, endDate := parseRange(c)
	data, err := h.service.GetRevenueTrend(startDate, endDate)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Failed to fetch revenue trend"})
	}
	return c.JSON(fiber.Map{"data": data})
}

func (h *ReportHandler) GetProfitMargins(c *fiber.Ctx) error {
	startDate, endDate := parseRange(c)
	data, err := h.service.GetProfitMargins(startDate, endDate)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Failed to fetch profit margins"})
	}
	return c.JSON(fiber.Map{"data": data})
}

func (h *ReportHandler) GetSales(c *fiber.Ctx) error {
	limit, err := strconv.Atoi(c.Query("limit", "100"))
	if err != nil || limit < 0 {
		limit = 100
	}
	sales, err := h.service.GetSales(limit)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Failed to fetch sales"})
	}
	return c.JSON(fiber.Map{"sales": sales})
}

func (h *ReportHandler) GetReceipt(c *fiber.Ctx) error {
	receipt, err := h.service.GetReceipt(c.Params("transactionNo"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(receipt)
}

func (h *ReportHandler) GetProductMovements(c *fiber.Ctx) error {
	productID, err := parseUUID(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid product ID"})
	}
	limit, err := strconv.Atoi(c.Query("limit", "50"))
	if err != nil || limit < 0 {
		limit = 50
	}
	movements, err := h.service.GetProductMovements(productID, limit)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Failed to fetch stock movements"})
	}
	return c.JSON(fiber.Map{"movements": movements})
}

package handler

import (
	"fmt"

	"go-pos-ledger/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type CheckoutHandler struct {
	engine service.TransactionEngine
}

func NewCheckoutHandler(engine service.TransactionEngine) *CheckoutHandler {
	return &CheckoutHandler{engine: engine}
}

type checkoutRequest struct {
	Items                 []service.CheckoutItem `json:"items"`
	Action                string                 `json:"action"`
	Threshold             *float64               `json:"threshold"`
	OriginalTransactionNo string                 `json:"original_transaction_no"`
	ApprovedBy            *uuid.UUID             `json:"approved_by"`
	RequestedByUserID     *uuid.UUID             `json:"requested_by_user_id"`
}

type returnRequest struct {
	Items     []service.ReturnItem `json:"items"`
	Threshold *float64             `json:"threshold"`
}

func (h *CheckoutHandler) Checkout(c *fiber.Ctx) error {
	var req checkoutRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}

	user := currentUser(c)

	result, err := h.engine.Checkout(service.CheckoutInput{
		Items:                 req.Items,
		Action:                service.CheckoutAction(req.Action),
		Threshold:             service.NormalizeThreshold(req.Threshold),
		ActingUserID:          user.ID,
		RequestedBy:           req.RequestedByUserID,
		ApprovedBy:            req.ApprovedBy,
		OriginalTransactionNo: req.OriginalTransactionNo,
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"success":        true,
		"action":         result.Action,
		"transaction_no": result.TransactionNo,
		"summary":        result.Summary,
	})
}

func (h *CheckoutHandler) Return(c *fiber.Ctx) error {
	var req returnRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}

	user := currentUser(c)

	result, err := h.engine.Return(service.ReturnInput{
		Items:        req.Items,
		Threshold:    service.NormalizeThreshold(req.Threshold),
		ActingUserID: user.ID,
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"success":        true,
		"action":         result.Action,
		"transaction_no": result.TransactionNo,
		"summary":        result.Summary,
		"message":        fmt.Sprintf("%d item(s) returned", result.ItemCount),
	})
}

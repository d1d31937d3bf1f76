package handler

import (
	"go-pos-ledger/internal/model"
	"go-pos-ledger/internal/service"

	"github.com/gofiber/fiber/v2"
)

type VoidRequestHandler struct {
	service service.VoidRequestService
}

func NewVoidRequestHandler(s service.VoidRequestService) *VoidRequestHandler {
	return &VoidRequestHandler{service: s}
}

type createVoidRequest struct {
	TransactionNo   string                  `json:"transaction_no"`
	Reason          string                  `json:"reason"`
	TransactionData []model.VoidRequestItem `json:"transaction_data"`
}

type resolveVoidRequest struct {
	Action        string `json:"action"`
	AdminPassword string `json:"admin_password"`
}

func (h *VoidRequestHandler) Create(c *fiber.Ctx) error {
	var req createVoidRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}

	request, err := h.service.Create(service.CreateVoidRequestInput{
		TransactionNo: req.TransactionNo,
		Reason:        req.Reason,
		Items:         req.TransactionData,
	}, currentUser(c))
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(201).JSON(fiber.Map{"success": true, "void_request": request})
}

func (h *VoidRequestHandler) List(c *fiber.Ctx) error {
	status := model.VoidRequestStatus(c.Query("status"))
	requests, err := h.service.List(status)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"void_requests": requests})
}

func (h *VoidRequestHandler) Resolve(c *fiber.Ctx) error {
	id, err := parseUUID(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid void request ID"})
	}

	var req resolveVoidRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}

	request, err := h.service.Resolve(id, service.ResolveVoidRequestInput{
		Action:        service.ResolveAction(req.Action),
		AdminPassword: req.AdminPassword,
	}, currentUser(c))
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"success": true, "void_request": request})
}

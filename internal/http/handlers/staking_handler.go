package handlers

import (
	"github.com/audt-staking/backend/internal/http/dto"
	"github.com/audt-staking/backend/internal/middleware"
	"github.com/audt-staking/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type StakingHandler struct {
	svc *services.StakingService
	log *zap.Logger
}

func NewStakingHandler(svc *services.StakingService, log *zap.Logger) *StakingHandler {
	return &StakingHandler{svc: svc, log: log}
}

func (h *StakingHandler) GetPool(c *fiber.Ctx) error {
	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.NewPoolResponse(h.svc.Pool(), h.svc.Addresses())})
}

func (h *StakingHandler) ListDeposits(c *fiber.Ctx) error {
	deposits := h.svc.ActiveDeposits()
	out := make([]dto.DepositResponse, 0, len(deposits))
	for _, d := range deposits {
		out = append(out, dto.NewDepositResponse(d))
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: out})
}

func (h *StakingHandler) GetDeposit(c *fiber.Ctx) error {
	address, ok := parseAddress(c.Params("address"))
	if !ok {
		return badRequest(c, "invalid address")
	}
	d, ok := h.svc.DepositOf(address)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "deposit not found"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.NewDepositResponse(d)})
}

func (h *StakingHandler) MyDeposit(c *fiber.Ctx) error {
	d, ok := h.svc.DepositOf(middleware.GetCaller(c))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "deposit not found"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.NewDepositResponse(d)})
}

func (h *StakingHandler) Stake(c *fiber.Ctx) error {
	var req dto.AmountRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	amount, ok := parseAmount(req.Amount)
	if !ok {
		return badRequest(c, "invalid amount")
	}

	r, err := h.svc.Stake(c.UserContext(), middleware.GetCaller(c), amount)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return receipt(c, r)
}

func (h *StakingHandler) Redeem(c *fiber.Ctx) error {
	r, err := h.svc.Redeem(c.UserContext(), middleware.GetCaller(c))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return receipt(c, r)
}

// Events lists the event history of an address, newest first.
func (h *StakingHandler) Events(c *fiber.Ctx) error {
	address, ok := parseAddress(c.Params("address"))
	if !ok {
		return badRequest(c, "invalid address")
	}
	limit, offset := pagination(c)
	recs, err := h.svc.Events(c.UserContext(), address, limit, offset)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.NewEventResponses(recs)})
}

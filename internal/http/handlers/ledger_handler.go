package handlers

import (
	"github.com/audt-staking/backend/internal/http/dto"
	"github.com/audt-staking/backend/internal/middleware"
	"github.com/audt-staking/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type LedgerHandler struct {
	svc *services.StakingService
	log *zap.Logger
}

func NewLedgerHandler(svc *services.StakingService, log *zap.Logger) *LedgerHandler {
	return &LedgerHandler{svc: svc, log: log}
}

func (h *LedgerHandler) ListEntries(c *fiber.Ctx) error {
	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.NewLedgerEntries(h.svc.LedgerEntries())})
}

func (h *LedgerHandler) GetClaimable(c *fiber.Ctx) error {
	address, ok := parseAddress(c.Params("address"))
	if !ok {
		return badRequest(c, "invalid address")
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.LedgerEntryResponse{
		Depositor: address.Hex(),
		Claimable: h.svc.Claimable(address).String(),
	}})
}

func (h *LedgerHandler) Claim(c *fiber.Ctx) error {
	r, err := h.svc.Claim(c.UserContext(), middleware.GetCaller(c))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return receipt(c, r)
}

// ReceiveTokens deposits the caller's own tokens into the ledger.
func (h *LedgerHandler) ReceiveTokens(c *fiber.Ctx) error {
	var req dto.AmountRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	amount, ok := parseAmount(req.Amount)
	if !ok {
		return badRequest(c, "invalid amount")
	}

	r, err := h.svc.ReceiveTokens(c.UserContext(), middleware.GetCaller(c), amount)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return receipt(c, r)
}

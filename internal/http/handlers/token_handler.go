package handlers

import (
	"strings"

	"github.com/audt-staking/backend/internal/engine"
	"github.com/audt-staking/backend/internal/http/dto"
	"github.com/audt-staking/backend/internal/middleware"
	"github.com/audt-staking/backend/internal/services"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type TokenHandler struct {
	svc *services.StakingService
	log *zap.Logger
}

func NewTokenHandler(svc *services.StakingService, log *zap.Logger) *TokenHandler {
	return &TokenHandler{svc: svc, log: log}
}

func (h *TokenHandler) GetAccount(c *fiber.Ctx) error {
	address, ok := parseAddress(c.Params("address"))
	if !ok {
		return badRequest(c, "invalid address")
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.NewTokenAccountResponse(h.svc.TokenAccount(address))})
}

func (h *TokenHandler) GetSupply(c *fiber.Ctx) error {
	return c.JSON(dto.SuccessResponse{OK: true, Data: fiber.Map{"total_supply": h.svc.TotalSupply().String()}})
}

// Me returns the caller's token account, deposit and claimable balance.
func (h *TokenHandler) Me(c *fiber.Ctx) error {
	caller := middleware.GetCaller(c)
	data := fiber.Map{
		"account":   dto.NewTokenAccountResponse(h.svc.TokenAccount(caller)),
		"claimable": h.svc.Claimable(caller).String(),
	}
	if d, ok := h.svc.DepositOf(caller); ok {
		data["deposit"] = dto.NewDepositResponse(d)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: data})
}

func (h *TokenHandler) Transfer(c *fiber.Ctx) error {
	var req dto.TransferRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	to, ok := parseAddress(req.To)
	if !ok {
		return badRequest(c, "invalid recipient")
	}
	amount, ok := parseAmount(req.Amount)
	if !ok {
		return badRequest(c, "invalid amount")
	}

	r, err := h.svc.Transfer(c.UserContext(), middleware.GetCaller(c), to, amount)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return receipt(c, r)
}

func (h *TokenHandler) Approve(c *fiber.Ctx) error {
	var req dto.ApproveRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	spender, ok := h.spender(req.Spender)
	if !ok {
		return badRequest(c, "invalid spender")
	}
	amount, ok := parseAmount(req.Amount)
	if !ok {
		return badRequest(c, "invalid amount")
	}

	r, err := h.svc.Approve(c.UserContext(), middleware.GetCaller(c), spender, amount, req.Increase)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return receipt(c, r)
}

// spender resolves the component aliases "pool" and "ledger".
func (h *TokenHandler) spender(s string) (common.Address, bool) {
	addrs := h.svc.Addresses()
	switch strings.ToLower(strings.TrimSpace(s)) {
	case engine.TargetPool:
		return addrs.Pool, true
	case engine.TargetLedger:
		return addrs.Ledger, true
	}
	return parseAddress(s)
}

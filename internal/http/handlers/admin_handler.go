package handlers

import (
	"math/big"

	"github.com/audt-staking/backend/internal/http/dto"
	"github.com/audt-staking/backend/internal/middleware"
	"github.com/audt-staking/backend/internal/rbac"
	"github.com/audt-staking/backend/internal/services"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// AdminHandler serves role-guarded configuration endpoints. Role checks are
// enforced by the state machine, so any authenticated caller may reach them.
type AdminHandler struct {
	svc *services.StakingService
	log *zap.Logger
}

func NewAdminHandler(svc *services.StakingService, log *zap.Logger) *AdminHandler {
	return &AdminHandler{svc: svc, log: log}
}

func (h *AdminHandler) UpdateEndDate(c *fiber.Ctx) error {
	var req dto.EndDateRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.StakingDateEnd < 0 {
		return badRequest(c, "invalid staking_date_end")
	}

	r, err := h.svc.UpdateEndDate(c.UserContext(), middleware.GetCaller(c), uint64(req.StakingDateEnd))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return receipt(c, r)
}

func (h *AdminHandler) UpdateMinStakeAmount(c *fiber.Ctx) error {
	var req dto.AmountRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	amount, ok := parseAmount(req.Amount)
	if !ok {
		return badRequest(c, "invalid amount")
	}

	r, err := h.svc.UpdateMinStakeAmount(c.UserContext(), middleware.GetCaller(c), amount)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return receipt(c, r)
}

func (h *AdminHandler) SetReward(c *fiber.Ctx) error {
	var req dto.RewardRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	amount, ok := parseAmount(req.Amount)
	if !ok {
		return badRequest(c, "invalid amount")
	}

	r, err := h.svc.SetReward(c.UserContext(), middleware.GetCaller(c), amount, req.Source)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return receipt(c, r)
}

func (h *AdminHandler) BlacklistAddress(c *fiber.Ctx) error {
	var req dto.AddressRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	account, ok := parseAddress(req.Address)
	if !ok {
		return badRequest(c, "invalid address")
	}

	r, err := h.svc.BlacklistAddress(c.UserContext(), middleware.GetCaller(c), account)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return receipt(c, r)
}

// SetDepositContract wires the pool to a deposit ledger. An empty address
// clears the association.
func (h *AdminHandler) SetDepositContract(c *fiber.Ctx) error {
	var req dto.AddressRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	var ledger common.Address
	if req.Address != "" {
		var ok bool
		if ledger, ok = parseAddress(req.Address); !ok {
			return badRequest(c, "invalid address")
		}
	}

	r, err := h.svc.SetDepositContract(c.UserContext(), middleware.GetCaller(c), ledger)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return receipt(c, r)
}

func (h *AdminHandler) ReturnUnauthorizedTokens(c *fiber.Ctx) error {
	recipient, amount, ok := h.recoverArgs(c)
	if !ok {
		return nil
	}
	r, err := h.svc.ReturnUnauthorizedTokens(c.UserContext(), middleware.GetCaller(c), recipient, amount)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return receipt(c, r)
}

func (h *AdminHandler) RecoverLedgerTokens(c *fiber.Ctx) error {
	recipient, amount, ok := h.recoverArgs(c)
	if !ok {
		return nil
	}
	r, err := h.svc.RecoverLedgerTokens(c.UserContext(), middleware.GetCaller(c), recipient, amount)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return receipt(c, r)
}

func (h *AdminHandler) Mint(c *fiber.Ctx) error {
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

	r, err := h.svc.Mint(c.UserContext(), middleware.GetCaller(c), to, amount)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return receipt(c, r)
}

func (h *AdminHandler) GrantRole(c *fiber.Ctx) error {
	req, role, account, ok := h.roleArgs(c)
	if !ok {
		return nil
	}
	r, err := h.svc.GrantRole(c.UserContext(), middleware.GetCaller(c), req.Target, role, account)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return receipt(c, r)
}

func (h *AdminHandler) RevokeRole(c *fiber.Ctx) error {
	req, role, account, ok := h.roleArgs(c)
	if !ok {
		return nil
	}
	r, err := h.svc.RevokeRole(c.UserContext(), middleware.GetCaller(c), req.Target, role, account)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return receipt(c, r)
}

// Members lists the holders of a role: /roles/:target/:role
func (h *AdminHandler) Members(c *fiber.Ctx) error {
	role, err := rbac.ParseRole(c.Params("role"))
	if err != nil {
		return badRequest(c, err.Error())
	}
	members, err := h.svc.Members(c.Params("target"), role)
	if err != nil {
		return writeError(c, h.log, err)
	}
	out := make([]string, 0, len(members))
	for _, m := range members {
		out = append(out, m.Hex())
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: fiber.Map{
		"target":  c.Params("target"),
		"role":    rbac.RoleName(role),
		"members": out,
	}})
}

// recoverArgs parses a RecoverRequest, writing the 400 response itself when
// it reports false.
func (h *AdminHandler) recoverArgs(c *fiber.Ctx) (common.Address, *big.Int, bool) {
	var req dto.RecoverRequest
	if err := c.BodyParser(&req); err != nil {
		_ = badRequest(c, "invalid request body")
		return common.Address{}, nil, false
	}
	recipient, ok := parseAddress(req.Recipient)
	if !ok {
		_ = badRequest(c, "invalid recipient")
		return common.Address{}, nil, false
	}
	amount, ok := parseAmount(req.Amount)
	if !ok {
		_ = badRequest(c, "invalid amount")
		return common.Address{}, nil, false
	}
	return recipient, amount, true
}

func (h *AdminHandler) roleArgs(c *fiber.Ctx) (dto.RoleRequest, common.Hash, common.Address, bool) {
	var req dto.RoleRequest
	if err := c.BodyParser(&req); err != nil {
		_ = badRequest(c, "invalid request body")
		return req, common.Hash{}, common.Address{}, false
	}
	role, err := rbac.ParseRole(req.Role)
	if err != nil {
		_ = badRequest(c, err.Error())
		return req, common.Hash{}, common.Address{}, false
	}
	account, ok := parseAddress(req.Account)
	if !ok {
		_ = badRequest(c, "invalid account")
		return req, common.Hash{}, common.Address{}, false
	}
	return req, role, account, true
}

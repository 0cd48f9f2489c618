package handlers

import (
	"github.com/audt-staking/backend/internal/engine"
	"github.com/audt-staking/backend/internal/http/dto"
	"github.com/audt-staking/backend/internal/rbac"
	"github.com/audt-staking/backend/internal/services"
	"github.com/gofiber/fiber/v2"
)

type MetaHandler struct {
	svc *services.StakingService
}

func NewMetaHandler(svc *services.StakingService) *MetaHandler {
	return &MetaHandler{svc: svc}
}

type MetaContract struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

type MetaRole struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

var predefinedRoles = []MetaRole{
	{Name: rbac.RoleDefaultAdmin, ID: rbac.DefaultAdminRole.Hex()},
	{Name: rbac.RoleMinter, ID: rbac.MinterRole.Hex()},
	{Name: rbac.RoleController, ID: rbac.ControllerRole.Hex()},
}

func (h *MetaHandler) GetContracts(c *fiber.Ctx) error {
	addrs := h.svc.Addresses()
	return c.JSON(dto.SuccessResponse{OK: true, Data: []MetaContract{
		{Name: engine.TargetToken, Address: addrs.Token.Hex()},
		{Name: engine.TargetPool, Address: addrs.Pool.Hex()},
		{Name: engine.TargetLedger, Address: addrs.Ledger.Hex()},
	}})
}

func (h *MetaHandler) GetRoles(c *fiber.Ctx) error {
	return c.JSON(dto.SuccessResponse{OK: true, Data: predefinedRoles})
}

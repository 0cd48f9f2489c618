package handlers

import (
	"errors"
	"math/big"
	"strconv"
	"strings"

	"github.com/audt-staking/backend/internal/engine"
	"github.com/audt-staking/backend/internal/http/dto"
	"github.com/audt-staking/backend/internal/middleware"
	"github.com/audt-staking/backend/internal/models"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func statusOf(err error) int {
	switch {
	case errors.Is(err, models.ErrUnauthorized), errors.Is(err, models.ErrBlacklisted):
		return fiber.StatusForbidden
	case errors.Is(err, models.ErrDeadlinePassed),
		errors.Is(err, models.ErrDuplicateDeposit),
		errors.Is(err, models.ErrNoActiveDeposit),
		errors.Is(err, models.ErrNothingToClaim),
		errors.Is(err, models.ErrInsufficientSpareBalance),
		errors.Is(err, models.ErrTransferFailed):
		return fiber.StatusConflict
	case errors.Is(err, models.ErrBelowMinimum),
		errors.Is(err, models.ErrInvalidConfiguration),
		errors.Is(err, models.ErrInvalidAmount):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, models.ErrUnknownOp):
		return fiber.StatusBadRequest
	case errors.Is(err, engine.ErrNotOpen):
		return fiber.StatusServiceUnavailable
	}
	return fiber.StatusInternalServerError
}

// writeError renders an operation error. Internal failures are logged and
// never leak their message.
func writeError(c *fiber.Ctx, log *zap.Logger, err error) error {
	status := statusOf(err)
	reqID, _ := c.Locals(middleware.CtxRequestID).(string)
	if status >= fiber.StatusInternalServerError {
		log.Error("request failed", zap.String("request_id", reqID), zap.Error(err))
		return c.Status(status).JSON(dto.ErrorResponse{Error: "internal server error", Kind: "internal", RequestID: reqID})
	}
	return c.Status(status).JSON(dto.ErrorResponse{Error: err.Error(), Kind: models.ErrorKind(err), RequestID: reqID})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: msg})
}

func parseAddress(s string) (common.Address, bool) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return common.Address{}, false
	}
	return common.HexToAddress(s), true
}

func parseAmount(s string) (*big.Int, bool) {
	v, err := models.ParseAmount(strings.TrimSpace(s))
	if err != nil {
		return nil, false
	}
	return v, true
}

func pagination(c *fiber.Ctx) (limit, offset int) {
	limit = 50
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			offset = n
		}
	}
	return limit, offset
}

func receipt(c *fiber.Ctx, r *engine.Receipt) error {
	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.NewReceiptResponse(r)})
}

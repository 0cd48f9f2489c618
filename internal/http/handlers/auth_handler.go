package handlers

import (
	"errors"
	"time"

	"github.com/audt-staking/backend/internal/auth"
	"github.com/audt-staking/backend/internal/config"
	"github.com/audt-staking/backend/internal/http/dto"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type AuthHandler struct {
	nonces auth.NonceStore
	cfg    *config.Config
	log    *zap.Logger
}

func NewAuthHandler(nonces auth.NonceStore, cfg *config.Config, log *zap.Logger) *AuthHandler {
	return &AuthHandler{nonces: nonces, cfg: cfg, log: log}
}

// Nonce issues a one-time login challenge for an address.
func (h *AuthHandler) Nonce(c *fiber.Ctx) error {
	var req dto.NonceRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	address, ok := parseAddress(req.Address)
	if !ok {
		return badRequest(c, "invalid address")
	}

	ch := auth.NewChallenge(h.cfg.LoginDomain, address, h.cfg.NonceTTL)
	if err := h.nonces.Put(c.UserContext(), address, ch, h.cfg.NonceTTL); err != nil {
		h.log.Error("failed to store nonce", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal server error"})
	}

	return c.JSON(dto.NonceResponse{Nonce: ch.Nonce, Message: ch.Message, ExpiresAt: ch.ExpiresAt})
}

// Login exchanges a signed challenge for a JWT.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	address, ok := parseAddress(req.Address)
	if !ok {
		return badRequest(c, "invalid address")
	}
	if req.Nonce == "" || req.Signature == "" {
		return badRequest(c, "nonce and signature are required")
	}

	ch, err := h.nonces.Take(c.UserContext(), address, req.Nonce)
	if err != nil {
		if errors.Is(err, auth.ErrNonceInvalid) {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Error: err.Error()})
		}
		h.log.Error("failed to load nonce", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal server error"})
	}

	if err := auth.VerifySignature(address, ch.Message, req.Signature); err != nil {
		h.log.Debug("signature verification failed", zap.String("address", address.Hex()), zap.Error(err))
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Error: "invalid signature"})
	}

	token, err := auth.GenerateJWT(h.cfg.JWTSecret, address, h.cfg.JWTExpiration)
	if err != nil {
		h.log.Error("failed to generate jwt", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal server error"})
	}

	return c.JSON(dto.AuthResponse{
		Token:     token,
		Address:   address.Hex(),
		ExpiresAt: time.Now().Add(h.cfg.JWTExpiration),
	})
}

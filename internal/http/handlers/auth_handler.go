package handlers

import (
	"crypto/subtle"

	"github.com/adtrust/escrow-bridge/internal/auth"
	"github.com/adtrust/escrow-bridge/internal/config"
	"github.com/adtrust/escrow-bridge/internal/http/dto"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type AuthHandler struct {
	cfg *config.Config
	log *zap.Logger
}

func NewAuthHandler(cfg *config.Config, log *zap.Logger) *AuthHandler {
	return &AuthHandler{cfg: cfg, log: log}
}

// IssueToken exchanges the static API key for a short-lived JWT.
func (h *AuthHandler) IssueToken(c *fiber.Ctx) error {
	var req dto.AuthTokenRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request body"})
	}

	if h.cfg.APIKey == "" {
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Error: "token issuance disabled"})
	}
	if subtle.ConstantTimeCompare([]byte(req.APIKey), []byte(h.cfg.APIKey)) != 1 {
		h.log.Debug("token request with bad api key")
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Error: "invalid api key"})
	}

	clientID := req.ClientID
	if clientID == "" {
		clientID = "default"
	}

	token, err := auth.GenerateJWT(h.cfg.JWTSecret, clientID, h.cfg.JWTExpiration)
	if err != nil {
		h.log.Error("failed to generate jwt", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal server error"})
	}

	return c.JSON(dto.AuthResponse{Token: token})
}

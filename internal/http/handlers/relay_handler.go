package handlers

import (
	"strconv"

	"github.com/adtrust/escrow-bridge/internal/http/dto"
	"github.com/adtrust/escrow-bridge/internal/relay"
	"github.com/adtrust/escrow-bridge/internal/repositories"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type RelayHandler struct {
	bridge *relay.Bridge
	repo   *repositories.RelayRepo // nil when postgres is not configured
	log    *zap.Logger
}

func NewRelayHandler(bridge *relay.Bridge, repo *repositories.RelayRepo, log *zap.Logger) *RelayHandler {
	return &RelayHandler{bridge: bridge, repo: repo, log: log}
}

// Relay triggers one synchronous end-to-end relay attempt.
func (h *RelayHandler) Relay(c *fiber.Ctx) error {
	var req dto.RelayRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request body"})
	}

	out, err := h.bridge.Relay(c.Context(), relay.Request{
		PostURL:       req.PostURL,
		Scenario:      req.Scenario,
		EscrowAddress: req.EscrowAddress,
	})
	if err != nil {
		kind := relay.KindOf(err)
		status := fiber.StatusBadGateway
		switch kind {
		case relay.KindValidation:
			status = fiber.StatusBadRequest
		case relay.KindRejected:
			status = fiber.StatusConflict
		case relay.KindConfirmTimeout:
			status = fiber.StatusGatewayTimeout
		}
		return c.Status(status).JSON(dto.ErrorResponse{Error: err.Error(), ErrorKind: string(kind)})
	}

	return c.JSON(out)
}

// Result returns the memoized outcome for a post URL, if any.
func (h *RelayHandler) Result(c *fiber.Ctx) error {
	postURL := c.Query("post_url")
	if postURL == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "post_url is required"})
	}

	out, ok := h.bridge.State().Lookup(postURL)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "no completed attempt for post_url"})
	}
	return c.JSON(out)
}

// State returns the bridge's monitoring snapshot.
func (h *RelayHandler) State(c *fiber.Ctx) error {
	return c.JSON(h.bridge.State().Snapshot())
}

// History lists persisted attempts, newest first.
func (h *RelayHandler) History(c *fiber.Ctx) error {
	if h.repo == nil {
		return c.Status(fiber.StatusNotImplemented).JSON(dto.ErrorResponse{Error: "history persistence is not configured"})
	}

	limit, _ := strconv.Atoi(c.Query("limit", "50"))

	if escrowAddr := c.Query("escrow"); escrowAddr != "" {
		attempts, err := h.repo.ListByEscrow(c.Context(), escrowAddr, limit)
		if err != nil {
			h.log.Error("failed to list relay history", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal server error"})
		}
		return c.JSON(fiber.Map{"attempts": attempts})
	}

	attempts, err := h.repo.ListRecent(c.Context(), limit)
	if err != nil {
		h.log.Error("failed to list relay history", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal server error"})
	}
	return c.JSON(fiber.Map{"attempts": attempts})
}

package handlers

import (
	"errors"

	"github.com/adtrust/escrow-bridge/internal/http/dto"
	"github.com/adtrust/escrow-bridge/internal/ledger"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type EscrowHandler struct {
	accessor ledger.Accessor
	log      *zap.Logger
}

func NewEscrowHandler(accessor ledger.Accessor, log *zap.Logger) *EscrowHandler {
	return &EscrowHandler{accessor: accessor, log: log}
}

// GetEscrow returns the ledger's current view of one escrow campaign.
func (h *EscrowHandler) GetEscrow(c *fiber.Ctx) error {
	address := c.Params("address")

	snap, err := h.accessor.EscrowSnapshot(c.Context(), address)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "escrow not found"})
		}
		if errors.Is(err, ledger.ErrUnavailable) {
			return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{Error: "ledger unavailable"})
		}
		h.log.Error("failed to fetch escrow snapshot", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal server error"})
	}

	return c.JSON(snap)
}

package http

import (
	"context"
	"time"

	"github.com/adtrust/escrow-bridge/internal/config"
	"github.com/adtrust/escrow-bridge/internal/http/dto"
	"github.com/adtrust/escrow-bridge/internal/http/handlers"
	"github.com/adtrust/escrow-bridge/internal/ledger"
	"github.com/adtrust/escrow-bridge/internal/middleware"
	"github.com/adtrust/escrow-bridge/internal/verifier"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func SetupRouter(
	app *fiber.App,
	cfg *config.Config,
	log *zap.Logger,
	rdb *redis.Client,
	accessor ledger.Accessor,
	vc verifier.Client,
	oracleID string,
	authHandler *handlers.AuthHandler,
	relayHandler *handlers.RelayHandler,
	escrowHandler *handlers.EscrowHandler,
	wsHub *handlers.WSHub,
) {
	// Global middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log))

	// Health: degraded when either upstream is unreachable.
	app.Get("/health", func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.Context(), 3*time.Second)
		defer cancel()

		resp := dto.HealthResponse{Status: "ok", Ledger: "ok", Verifier: "ok", Oracle: oracleID}
		if _, err := accessor.CurrentCheckpoint(ctx); err != nil {
			resp.Status = "degraded"
			resp.Ledger = "unreachable"
		}
		if err := vc.Healthy(ctx); err != nil {
			resp.Status = "degraded"
			resp.Verifier = "unreachable"
		}

		status := fiber.StatusOK
		if resp.Status != "ok" {
			status = fiber.StatusServiceUnavailable
		}
		return c.Status(status).JSON(resp)
	})

	api := app.Group("/api/v1")

	// Auth (public)
	api.Post("/auth/token", authHandler.IssueToken)

	// Protected endpoints; the limiter sits behind auth so it can key on the
	// authenticated client rather than the IP.
	protected := api.Group("", middleware.AuthMiddleware(cfg, log))
	if rdb != nil {
		protected.Use(middleware.RateLimitMiddleware(rdb, 100, time.Minute))
	}

	protected.Post("/relay", relayHandler.Relay)
	protected.Get("/relay/result", relayHandler.Result)
	protected.Get("/relay/state", relayHandler.State)
	protected.Get("/relay/history", relayHandler.History)

	protected.Get("/escrows/:address", escrowHandler.GetEscrow)

	// WebSocket
	app.Use("/ws", handlers.WSUpgradeMiddleware())
	app.Get("/ws", websocket.New(wsHub.HandleWS))
}

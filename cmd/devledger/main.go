// Command devledger serves the in-memory checkpoint ledger over the same
// JSON wire contract the bridge's HTTP accessor speaks. It is the local
// development stand-in for the real ledger: a faucet, manual and timed
// checkpoint advancement, and escrow registration.
package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/adtrust/escrow-bridge/internal/config"
	"github.com/adtrust/escrow-bridge/internal/escrow"
	"github.com/adtrust/escrow-bridge/internal/ledger"
	"github.com/adtrust/escrow-bridge/internal/txcodec"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mem := ledger.NewMemory(log)

	// Timed checkpoint production, like a devnet block producer.
	go func() {
		ticker := time.NewTicker(cfg.CheckpointInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				mem.AdvanceCheckpoint()
			}
		}
	}()

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})
	app.Use(recover.New())

	app.Get("/checkpoint", func(c *fiber.Ctx) error {
		info, err := mem.CurrentCheckpoint(c.Context())
		if err != nil {
			return err
		}
		return c.JSON(info)
	})

	// Manual advancement for deterministic test drivers.
	app.Post("/advance", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"checkpoint": mem.AdvanceCheckpoint()})
	})

	app.Get("/accounts/:id/balance", func(c *fiber.Ctx) error {
		bal, err := mem.Balance(c.Context(), c.Params("id"))
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"balance": bal})
	})

	// Faucet
	app.Post("/accounts/:id/fund", func(c *fiber.Ctx) error {
		var req struct {
			Amount int64 `json:"amount"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if req.Amount <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "amount must be positive")
		}
		mem.Fund(c.Params("id"), req.Amount)
		bal, _ := mem.Balance(c.Context(), c.Params("id"))
		return c.JSON(fiber.Map{"balance": bal})
	})

	app.Post("/escrows", func(c *fiber.Ctx) error {
		var req struct {
			Address    string `json:"address"`
			PlatformID string `json:"platform_id"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if err := mem.RegisterEscrow(req.Address, req.PlatformID); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		log.Info("escrow registered", zap.String("address", req.Address))
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"address": req.Address})
	})

	app.Get("/escrows/:id", func(c *fiber.Ctx) error {
		snap, err := mem.EscrowSnapshot(c.Context(), c.Params("id"))
		if err != nil {
			if errors.Is(err, ledger.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "escrow not found")
			}
			return err
		}
		wire, err := mem.EscrowWire(c.Params("id"))
		if err != nil {
			return err
		}
		return c.JSON(struct {
			escrow.Snapshot
			Wire string `json:"wire"`
		}{Snapshot: *snap, Wire: hex.EncodeToString(wire)})
	})

	app.Post("/transactions", func(c *fiber.Ctx) error {
		var env txcodec.SignedEnvelope
		if err := c.BodyParser(&env); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		txID, err := mem.Broadcast(c.Context(), env)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"tx_id": txID})
	})

	app.Get("/transactions/:id", func(c *fiber.Ctx) error {
		tx, err := mem.Transaction(c.Context(), c.Params("id"))
		if err != nil {
			if errors.Is(err, ledger.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "transaction not found")
			}
			return err
		}
		return c.JSON(tx)
	})

	app.Get("/checkpoints/:n/transactions", func(c *fiber.Ctx) error {
		n, err := strconv.ParseUint(c.Params("n"), 10, 64)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid checkpoint number")
		}
		txs, err := mem.TransactionsAt(c.Context(), n)
		if err != nil {
			return err
		}
		return c.JSON(txs)
	})

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")
		cancel()
		_ = app.Shutdown()
	}()

	addr := fmt.Sprintf(":%s", cfg.LedgerPort)
	log.Info("starting devledger", zap.String("addr", addr), zap.Duration("checkpoint_interval", cfg.CheckpointInterval))
	if err := app.Listen(addr); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/adtrust/escrow-bridge/internal/config"
	"github.com/adtrust/escrow-bridge/internal/db"
	"github.com/adtrust/escrow-bridge/internal/events"
	apphttp "github.com/adtrust/escrow-bridge/internal/http"
	"github.com/adtrust/escrow-bridge/internal/http/handlers"
	"github.com/adtrust/escrow-bridge/internal/ledger"
	"github.com/adtrust/escrow-bridge/internal/postcheck"
	"github.com/adtrust/escrow-bridge/internal/relay"
	"github.com/adtrust/escrow-bridge/internal/repositories"
	"github.com/adtrust/escrow-bridge/internal/txcodec"
	"github.com/adtrust/escrow-bridge/internal/verifier"
	"github.com/adtrust/escrow-bridge/migrations"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// devPlatformID collects fees when memory mode runs without a configured
// platform account.
const devPlatformID = "00000000000000000000000000000000000000000000000000000000000f"

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signer, err := txcodec.NewSigner(cfg.OraclePrivateKey)
	if err != nil {
		log.Fatal("invalid oracle private key", zap.Error(err))
	}
	log.Info("oracle identity derived", zap.String("oracle_id", signer.Identity()))

	builder, err := txcodec.NewBuilder(txcodec.PayloadFormat(cfg.PayloadFormat), cfg.CheckpointLookahead)
	if err != nil {
		log.Fatal("invalid transaction builder config", zap.Error(err))
	}

	// Ledger accessor
	var accessor ledger.Accessor
	switch cfg.LedgerMode {
	case "memory":
		mem := ledger.NewMemory(log)
		platformID := cfg.PlatformAddress
		if platformID == "" {
			platformID = devPlatformID
		}
		if cfg.EscrowAddress != "" {
			if err := mem.RegisterEscrow(cfg.EscrowAddress, platformID); err != nil {
				log.Fatal("failed to register escrow", zap.Error(err))
			}
		}
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
		accessor = mem
	case "http":
		accessor = ledger.NewHTTPClient(cfg.LedgerURL, cfg.LedgerTimeout, log)
	default:
		log.Fatal("unknown LEDGER_MODE", zap.String("mode", cfg.LedgerMode))
	}

	// Verifier
	var vc verifier.Client
	switch cfg.VerifierMode {
	case "fake":
		vc = verifier.NewFake()
	case "http":
		vc = verifier.NewHTTPClient(cfg.VerifierURL, cfg.VerifierTimeout, log)
	default:
		log.Fatal("unknown VERIFIER_MODE", zap.String("mode", cfg.VerifierMode))
	}

	// Optional postgres-backed attempt history
	var pool *pgxpool.Pool
	var relayRepo *repositories.RelayRepo
	var recorder relay.AttemptRecorder
	if cfg.PostgresDSN != "" {
		pool, err = db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
		if err != nil {
			log.Fatal("failed to connect to postgres", zap.Error(err))
		}
		defer pool.Close()

		if err := db.RunMigrations(ctx, pool, migrations.FS, log); err != nil {
			log.Fatal("failed to run migrations", zap.Error(err))
		}

		relayRepo = repositories.NewRelayRepo(pool)
		recorder = relayRepo
	}

	// Optional redis: rate limiting, pub/sub, monitor cursor
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb, err = db.NewRedisClient(ctx, cfg.RedisURL, log)
		if err != nil {
			log.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer rdb.Close()
	}

	state := relay.NewState()
	tracker := relay.NewTracker(accessor, cfg.ConfirmPollInterval, cfg.ConfirmSlackCheckpoints, log)

	var checker relay.PostChecker
	if cfg.PostcheckEnabled {
		checker = postcheck.NewChecker(cfg.PostcheckTimeout, cfg.PostcheckMaxRetries, log)
	}

	var sub events.Subscriber
	if rdb != nil {
		sub = events.NewRedisSubscriber(rdb, log)
	}
	wsHub := handlers.NewWSHub(cfg, sub, log)

	var pub events.Publisher
	if rdb != nil {
		pub = events.NewRedisPublisher(rdb, log)
	} else {
		// Without redis, feed connected websocket clients directly.
		pub = hubPublisher{hub: wsHub}
	}
	wsHub.Start(ctx)

	bridge := relay.NewBridge(
		relay.Options{
			EscrowAddress:       cfg.EscrowAddress,
			VerifierTimeout:     cfg.VerifierTimeout,
			LedgerTimeout:       cfg.LedgerTimeout,
			ConfirmTimeout:      cfg.ConfirmTimeout,
			BroadcastMaxRetries: cfg.BroadcastMaxRetries,
			RetryBaseDelay:      cfg.RetryBaseDelay,
		},
		accessor, vc, checker, signer, builder, tracker, state, pub, recorder, log,
	)

	monitor := relay.NewMonitor(accessor, state, cfg.MonitorPollInterval, rdb, log)
	go monitor.Run(ctx)

	// Handlers
	authHandler := handlers.NewAuthHandler(cfg, log)
	relayHandler := handlers.NewRelayHandler(bridge, relayRepo, log)
	escrowHandler := handlers.NewEscrowHandler(accessor, log)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	apphttp.SetupRouter(app, cfg, log, rdb, accessor, vc, signer.Identity(), authHandler, relayHandler, escrowHandler, wsHub)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")
		cancel()
		_ = app.Shutdown()
	}()

	addr := fmt.Sprintf(":%s", cfg.APIPort)
	log.Info("starting bridge server", zap.String("addr", addr), zap.String("ledger_mode", cfg.LedgerMode))
	if err := app.Listen(addr); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}

// hubPublisher short-circuits relay events into the websocket hub when no
// redis channel is configured.
type hubPublisher struct {
	hub *handlers.WSHub
}

func (p hubPublisher) Publish(_ context.Context, _ string, event events.Event) error {
	p.hub.Broadcast(event)
	return nil
}

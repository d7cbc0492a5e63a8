package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type Config struct {
	// Ledger
	LedgerMode    string // http / memory
	LedgerURL     string
	LedgerTimeout time.Duration

	// Verifier
	VerifierMode    string // http / fake
	VerifierURL     string
	VerifierTimeout time.Duration

	// Oracle identity and target contract
	OraclePrivateKey string
	EscrowAddress    string
	PlatformAddress  string

	// Transaction building
	CheckpointLookahead uint64
	PayloadFormat       string // score / attested

	// Confirmation
	ConfirmPollInterval     time.Duration
	ConfirmTimeout          time.Duration
	ConfirmSlackCheckpoints uint64

	// Retry
	BroadcastMaxRetries int
	RetryBaseDelay      time.Duration

	// Monitoring
	MonitorPollInterval time.Duration

	// Memory-mode checkpoint production
	CheckpointInterval time.Duration

	// Post pre-check
	PostcheckEnabled    bool
	PostcheckTimeout    time.Duration
	PostcheckMaxRetries int

	// Optional infrastructure
	RedisURL    string
	PostgresDSN string

	// API
	APIPort       string
	APIKey        string
	JWTSecret     string
	JWTExpiration time.Duration

	// Devledger
	LedgerPort string
}

func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		LedgerMode:    getEnv("LEDGER_MODE", "http"),
		LedgerURL:     getEnv("LEDGER_URL", "http://localhost:8545"),
		LedgerTimeout: time.Duration(getEnvInt("LEDGER_TIMEOUT_MS", 10000)) * time.Millisecond,

		VerifierMode:    getEnv("VERIFIER_MODE", "http"),
		VerifierURL:     getEnv("VERIFIER_URL", "http://localhost:8000"),
		VerifierTimeout: time.Duration(getEnvInt("VERIFIER_TIMEOUT_MS", 30000)) * time.Millisecond,

		OraclePrivateKey: getEnv("ORACLE_PRIVATE_KEY", ""),
		EscrowAddress:    getEnv("ESCROW_ADDRESS", ""),
		PlatformAddress:  getEnv("PLATFORM_ADDRESS", ""),

		CheckpointLookahead: uint64(getEnvInt("CHECKPOINT_LOOKAHEAD", 5)),
		PayloadFormat:       getEnv("TX_PAYLOAD_FORMAT", "score"),

		ConfirmPollInterval:     time.Duration(getEnvInt("CONFIRM_POLL_INTERVAL_MS", 2000)) * time.Millisecond,
		ConfirmTimeout:          time.Duration(getEnvInt("CONFIRM_TIMEOUT_SECONDS", 120)) * time.Second,
		ConfirmSlackCheckpoints: uint64(getEnvInt("CONFIRM_SLACK_CHECKPOINTS", 10)),

		BroadcastMaxRetries: getEnvInt("BROADCAST_MAX_RETRIES", 3),
		RetryBaseDelay:      time.Duration(getEnvInt("RETRY_BASE_DELAY_MS", 500)) * time.Millisecond,

		MonitorPollInterval: time.Duration(getEnvInt("MONITOR_POLL_INTERVAL_SECONDS", 5)) * time.Second,
		CheckpointInterval:  time.Duration(getEnvInt("CHECKPOINT_INTERVAL_SECONDS", 2)) * time.Second,

		PostcheckEnabled:    getEnvBool("POSTCHECK_ENABLED", false),
		PostcheckTimeout:    time.Duration(getEnvInt("POSTCHECK_TIMEOUT_MS", 10000)) * time.Millisecond,
		PostcheckMaxRetries: getEnvInt("POSTCHECK_MAX_RETRIES", 2),

		RedisURL:    getEnv("REDIS_URL", ""),
		PostgresDSN: getEnv("POSTGRES_DSN", ""),

		APIPort:       getEnv("API_PORT", "3000"),
		APIKey:        getEnv("API_KEY", ""),
		JWTSecret:     getEnv("JWT_SECRET", "change-me-in-production"),
		JWTExpiration: time.Duration(getEnvInt("JWT_EXPIRATION_HOURS", 24)) * time.Hour,

		LedgerPort: getEnv("LEDGER_PORT", "8545"),
	}
}

func (c *Config) Validate(log *zap.Logger) {
	if c.OraclePrivateKey == "" {
		log.Warn("ORACLE_PRIVATE_KEY is not set")
	}
	if c.EscrowAddress == "" {
		log.Warn("ESCROW_ADDRESS is not set; every relay request must carry its own escrow address")
	}
	if c.APIKey == "" {
		log.Warn("API_KEY is not set, token endpoint is disabled")
	}
	if c.JWTSecret == "change-me-in-production" {
		log.Warn("JWT_SECRET is default, change in production")
	}
	if c.RedisURL == "" {
		log.Info("REDIS_URL not set: rate limiting, event pub/sub, and cursor persistence disabled")
	}
	if c.PostgresDSN == "" {
		log.Info("POSTGRES_DSN not set: relay history persistence disabled")
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	s := os.Getenv(key)
	if s == "" {
		return fallback
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return v
}

func getEnvBool(key string, fallback bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return fallback
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return fallback
	}
	return v
}

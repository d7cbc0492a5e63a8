package relay

import (
	"context"
	"strconv"
	"time"

	"github.com/adtrust/escrow-bridge/internal/ledger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const redisCursorTick = "oracle-bridge:cursor:tick"

// Monitor is the continuous checkpoint-watching loop. It runs alongside
// in-flight relay attempts, shares only the owned State with them, and
// never mutates escrow state. A failed poll is counted and logged, never
// fatal. Scanning for new escrows that need verification would hang off
// this loop.
type Monitor struct {
	accessor ledger.Accessor
	state    *State
	interval time.Duration
	rdb      *redis.Client // optional cursor persistence
	log      *zap.Logger
}

func NewMonitor(accessor ledger.Accessor, state *State, interval time.Duration, rdb *redis.Client, log *zap.Logger) *Monitor {
	return &Monitor{
		accessor: accessor,
		state:    state,
		interval: interval,
		rdb:      rdb,
		log:      log,
	}
}

// Run blocks until ctx cancels.
func (m *Monitor) Run(ctx context.Context) {
	m.loadCursor(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.log.Info("checkpoint monitor started", zap.Duration("interval", m.interval))

	for {
		select {
		case <-ctx.Done():
			m.log.Info("checkpoint monitor stopped")
			return
		case <-ticker.C:
			m.poll(ctx)
		}
	}
}

func (m *Monitor) poll(ctx context.Context) {
	pollCtx, cancel := context.WithTimeout(ctx, m.interval)
	defer cancel()

	info, err := m.accessor.CurrentCheckpoint(pollCtx)
	if err != nil {
		m.state.IncFailedPolls()
		m.log.Warn("checkpoint poll failed", zap.Error(err))
		return
	}

	last := m.state.LastProcessedTick()
	if info.Checkpoint <= last {
		return
	}

	m.state.SetLastProcessedTick(info.Checkpoint)
	m.saveCursor(pollCtx, info.Checkpoint)
	m.log.Debug("checkpoint advanced",
		zap.Uint64("from", last),
		zap.Uint64("to", info.Checkpoint),
		zap.Uint64("epoch", info.Epoch),
	)
}

// loadCursor resumes from the persisted tick so a restart does not report a
// stale last_processed_tick of zero while the first poll is in flight.
func (m *Monitor) loadCursor(ctx context.Context) {
	if m.rdb == nil {
		return
	}
	val, err := m.rdb.Get(ctx, redisCursorTick).Result()
	if err != nil || val == "" {
		return
	}
	tick, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		return
	}
	m.state.SetLastProcessedTick(tick)
	m.log.Info("resuming from saved cursor", zap.Uint64("tick", tick))
}

func (m *Monitor) saveCursor(ctx context.Context, tick uint64) {
	if m.rdb == nil {
		return
	}
	if err := m.rdb.Set(ctx, redisCursorTick, strconv.FormatUint(tick, 10), 0).Err(); err != nil {
		m.log.Warn("failed to save cursor", zap.Error(err))
	}
}

// internal/sweep/monitor.go
package sweep

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/roninsweep/sweepbot/internal/chain"
	"github.com/roninsweep/sweepbot/internal/storage"
	"github.com/roninsweep/sweepbot/internal/storage/models"
)

// BatchOutcome is the terminal result of monitoring one submitted batch.
type BatchOutcome struct {
	Hash    common.Hash
	Status  string
	GasUsed uint64
	Err     error
}

// Monitor polls chain state for submitted batches until a terminal state.
// The worst case is deterministic: MaxPollAttempts * PollInterval. Transient
// RPC errors consume attempts but never fail a batch early.
type Monitor struct {
	chain  chain.Client
	store  storage.Storage
	guard  *Guard
	cfg    Config
	logger *zap.Logger
}

func NewMonitor(chainClient chain.Client, store storage.Storage, guard *Guard, cfg Config, logger *zap.Logger) *Monitor {
	return &Monitor{
		chain:  chainClient,
		store:  store,
		guard:  guard,
		cfg:    cfg.withDefaults(),
		logger: logger.Named("tx-monitor"),
	}
}

// Resolve drives one submission to its terminal state and performs the single
// terminal persistence write plus the matching ledger/reservation update.
func (m *Monitor) Resolve(ctx context.Context, userID string, sub Submission) BatchOutcome {
	logger := m.logger.With(zap.String("tx_hash", sub.Hash.Hex()))

	receipt, err := m.await(ctx, sub.Hash, logger)
	now := time.Now().UTC()

	switch {
	case err != nil:
		// Unknown outcome: no receipt within the polling budget. The
		// reservation is released; only confirmed spend enters the ledger.
		m.finalize(sub.Hash, models.StatusFailed, err.Error(), 0, now)
		m.guard.Release(userID, sub.Batch.Total)
		logger.Error("confirmation exhausted", zap.Error(err))
		return BatchOutcome{Hash: sub.Hash, Status: models.StatusFailed, Err: err}

	case receipt.Status == types.ReceiptStatusSuccessful:
		m.finalize(sub.Hash, models.StatusConfirmed, "", receipt.GasUsed, now)
		if cerr := m.guard.Commit(context.WithoutCancel(ctx), userID, sub.Batch.Total); cerr != nil {
			logger.Error("ledger commit failed", zap.Error(cerr))
		}
		logger.Info("batch confirmed",
			zap.Uint64("gas_used", receipt.GasUsed),
			zap.Uint64("block", receipt.BlockNumber.Uint64()))
		return BatchOutcome{Hash: sub.Hash, Status: models.StatusConfirmed, GasUsed: receipt.GasUsed}

	default:
		revertErr := fmt.Errorf("transaction reverted on-chain in block %d", receipt.BlockNumber.Uint64())
		m.finalize(sub.Hash, models.StatusFailed, revertErr.Error(), receipt.GasUsed, now)
		m.guard.Release(userID, sub.Batch.Total)
		logger.Error("batch reverted", zap.Uint64("block", receipt.BlockNumber.Uint64()))
		return BatchOutcome{Hash: sub.Hash, Status: models.StatusFailed, GasUsed: receipt.GasUsed, Err: revertErr}
	}
}

// await polls for a receipt at a fixed interval up to the attempt budget.
func (m *Monitor) await(ctx context.Context, hash common.Hash, logger *zap.Logger) (*types.Receipt, error) {
	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	for attempt := 1; ; attempt++ {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrConfirmationTimeout, ctx.Err())
		case <-ticker.C:
		}

		receipt, err := m.chain.Receipt(ctx, hash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			logger.Warn("receipt poll failed",
				zap.Int("attempt", attempt),
				zap.Error(err))
		}
		if attempt >= m.cfg.MaxPollAttempts {
			return nil, fmt.Errorf("%w: no receipt after %d attempts", ErrConfirmationTimeout, attempt)
		}
	}
}

// finalize performs the terminal write. The storage layer guarantees terminal
// records stay immutable, so a duplicate call is a no-op.
func (m *Monitor) finalize(hash common.Hash, status, errMsg string, gasUsed uint64, at time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := m.store.FinalizeTransaction(ctx, hash.Hex(), status, errMsg, gasUsed, at); err != nil {
		m.logger.Error("terminal status write failed",
			zap.String("tx_hash", hash.Hex()),
			zap.String("status", status),
			zap.Error(err))
	}
}

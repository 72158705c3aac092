// internal/sweep/guard.go
package sweep

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/roninsweep/sweepbot/internal/storage"
)

// Guard enforces the daily spending limit. The ledger read and the
// reservation are serialized per user, so two concurrent sweeps cannot both
// pass the check against a stale total. Pending (not yet confirmed) spend is
// held as in-memory reservations until the monitor reaches a terminal state.
type Guard struct {
	store        storage.Storage
	defaultLimit *big.Int
	logger       *zap.Logger

	mu    sync.Mutex
	users map[string]*userState
}

type userState struct {
	mu       sync.Mutex
	reserved *big.Int
}

func NewGuard(store storage.Storage, defaultLimit *big.Int, logger *zap.Logger) *Guard {
	return &Guard{
		store:        store,
		defaultLimit: defaultLimit,
		logger:       logger.Named("guard"),
		users:        make(map[string]*userState),
	}
}

func (g *Guard) user(userID string) *userState {
	g.mu.Lock()
	defer g.mu.Unlock()
	st, ok := g.users[userID]
	if !ok {
		st = &userState{reserved: new(big.Int)}
		g.users[userID] = st
	}
	return st
}

// Authorize is the advisory preview-time check. It takes no reservation; the
// authoritative check happens in Reserve immediately before submission.
func (g *Guard) Authorize(ctx context.Context, userID string, amount *big.Int) (*LimitDecline, error) {
	st := g.user(userID)
	st.mu.Lock()
	defer st.mu.Unlock()
	return g.check(ctx, userID, st, amount)
}

// Reserve is the authoritative pre-submission check. On success the amount is
// reserved against the user's window until Commit or Release.
func (g *Guard) Reserve(ctx context.Context, userID string, amount *big.Int) (*LimitDecline, error) {
	st := g.user(userID)
	st.mu.Lock()
	defer st.mu.Unlock()

	decline, err := g.check(ctx, userID, st, amount)
	if err != nil || decline != nil {
		return decline, err
	}
	st.reserved.Add(st.reserved, amount)
	return nil, nil
}

// Release drops a reservation without touching the ledger: submission never
// happened, the batch reverted, or its outcome is unknown.
func (g *Guard) Release(userID string, amount *big.Int) {
	if amount.Sign() == 0 {
		return
	}
	st := g.user(userID)
	st.mu.Lock()
	defer st.mu.Unlock()
	st.reserved.Sub(st.reserved, amount)
	if st.reserved.Sign() < 0 {
		// A release without a matching reservation is a programming error;
		// clamp so the guard never goes permissive beyond the ledger.
		g.logger.Warn("reservation underflow", zap.String("user_id", userID))
		st.reserved.SetInt64(0)
	}
}

// Commit converts a reservation into confirmed ledger spend. Called by the
// confirmation monitor exactly once per confirmed batch.
func (g *Guard) Commit(ctx context.Context, userID string, amount *big.Int) error {
	st := g.user(userID)
	st.mu.Lock()
	defer st.mu.Unlock()

	if err := g.store.AddDailySpend(ctx, userID, DayStart(time.Now()), amount); err != nil {
		return fmt.Errorf("ledger write: %w", err)
	}
	st.reserved.Sub(st.reserved, amount)
	if st.reserved.Sign() < 0 {
		st.reserved.SetInt64(0)
	}
	return nil
}

// check must run with the user's lock held. Succeeds iff
// confirmed + reserved + amount <= limit; the boundary case passes.
func (g *Guard) check(ctx context.Context, userID string, st *userState, amount *big.Int) (*LimitDecline, error) {
	limit, err := g.store.GetDailyLimit(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		limit = g.defaultLimit
	} else if err != nil {
		return nil, fmt.Errorf("read daily limit: %w", err)
	}

	spent, err := g.store.GetDailySpend(ctx, userID, DayStart(time.Now()))
	if err != nil {
		return nil, fmt.Errorf("read spending ledger: %w", err)
	}

	committed := new(big.Int).Add(spent, st.reserved)
	projected := new(big.Int).Add(committed, amount)
	if projected.Cmp(limit) > 0 {
		g.logger.Info("sweep declined by daily limit",
			zap.String("user_id", userID),
			zap.String("limit_wei", limit.String()),
			zap.String("committed_wei", committed.String()),
			zap.String("requested_wei", amount.String()))
		return &LimitDecline{
			Limit:     new(big.Int).Set(limit),
			Spent:     committed,
			Requested: new(big.Int).Set(amount),
		}, nil
	}
	return nil, nil
}

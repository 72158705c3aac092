// internal/storage/storage.go
package storage

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/roninsweep/sweepbot/internal/storage/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Storage is the persistence collaborator: the sweep transaction table and
// the daily spending ledger.
type Storage interface {
	// Transactions. SaveTransaction writes the Pending record at submission;
	// FinalizeTransaction performs the single terminal write and must be a
	// no-op for records already terminal.
	SaveTransaction(ctx context.Context, tx *models.SweepTransaction) error
	GetTransaction(ctx context.Context, hash string) (*models.SweepTransaction, error)
	ListTransactions(ctx context.Context, userID string, limit, offset int) ([]*models.SweepTransaction, error)
	FinalizeTransaction(ctx context.Context, hash, status, errorMsg string, gasUsed uint64, at time.Time) error

	// Spending ledger, keyed by user and midnight-aligned day.
	GetDailySpend(ctx context.Context, userID string, day time.Time) (*big.Int, error)
	AddDailySpend(ctx context.Context, userID string, day time.Time, amount *big.Int) error

	// Per-user limit override; GetDailyLimit returns ErrNotFound when unset.
	GetDailyLimit(ctx context.Context, userID string) (*big.Int, error)
	SetDailyLimit(ctx context.Context, userID string, limit *big.Int) error

	RunMigrations() error
}

// internal/storage/memory/memory.go
package memory

import (
	"context"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/roninsweep/sweepbot/internal/storage"
	"github.com/roninsweep/sweepbot/internal/storage/models"
)

// memoryStorage implements storage.Storage with plain maps. It backs tests
// and DB-less runs; nothing survives a restart.
type memoryStorage struct {
	mu     sync.RWMutex
	txs    map[string]*models.SweepTransaction
	spend  map[string]*big.Int // userID|day
	limits map[string]*big.Int
	nextID uint
}

func NewStorage() storage.Storage {
	return &memoryStorage{
		txs:    make(map[string]*models.SweepTransaction),
		spend:  make(map[string]*big.Int),
		limits: make(map[string]*big.Int),
	}
}

func (m *memoryStorage) RunMigrations() error {
	return nil
}

func (m *memoryStorage) SaveTransaction(_ context.Context, tx *models.SweepTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	cp := *tx
	cp.ID = m.nextID
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	cp.UpdatedAt = cp.CreatedAt
	m.txs[cp.Hash] = &cp
	tx.ID = cp.ID
	return nil
}

func (m *memoryStorage) GetTransaction(_ context.Context, hash string) (*models.SweepTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tx, ok := m.txs[hash]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *tx
	return &cp, nil
}

func (m *memoryStorage) ListTransactions(_ context.Context, userID string, limit, offset int) ([]*models.SweepTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var txs []*models.SweepTransaction
	for _, tx := range m.txs {
		if tx.UserID == userID {
			cp := *tx
			txs = append(txs, &cp)
		}
	}
	sort.Slice(txs, func(i, j int) bool {
		return txs[i].CreatedAt.After(txs[j].CreatedAt)
	})

	if offset >= len(txs) {
		return nil, nil
	}
	txs = txs[offset:]
	if limit > 0 && limit < len(txs) {
		txs = txs[:limit]
	}
	return txs, nil
}

func (m *memoryStorage) FinalizeTransaction(_ context.Context, hash, status, errorMsg string, gasUsed uint64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx, ok := m.txs[hash]
	if !ok {
		return storage.ErrNotFound
	}
	// Terminal records are immutable.
	if tx.Status != models.StatusPending {
		return nil
	}
	tx.Status = status
	tx.ErrorMessage = errorMsg
	tx.GasUsed = gasUsed
	tx.ConfirmedAt = &at
	tx.UpdatedAt = time.Now().UTC()
	return nil
}

func spendKey(userID string, day time.Time) string {
	return userID + "|" + day.UTC().Format("2006-01-02")
}

func (m *memoryStorage) GetDailySpend(_ context.Context, userID string, day time.Time) (*big.Int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	total, ok := m.spend[spendKey(userID, day)]
	if !ok {
		return new(big.Int), nil
	}
	return new(big.Int).Set(total), nil
}

func (m *memoryStorage) AddDailySpend(_ context.Context, userID string, day time.Time, amount *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := spendKey(userID, day)
	total, ok := m.spend[key]
	if !ok {
		total = new(big.Int)
		m.spend[key] = total
	}
	total.Add(total, amount)
	return nil
}

func (m *memoryStorage) GetDailyLimit(_ context.Context, userID string) (*big.Int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	limit, ok := m.limits[userID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return new(big.Int).Set(limit), nil
}

func (m *memoryStorage) SetDailyLimit(_ context.Context, userID string, limit *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.limits[userID] = new(big.Int).Set(limit)
	return nil
}

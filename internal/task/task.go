// internal/task/task.go
// Package task loads sweep tasks from CSV configuration.
package task

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/roninsweep/sweepbot/internal/marketplace"
	"github.com/roninsweep/sweepbot/internal/sweep"
)

// Task is one sweep run from the tasks CSV.
type Task struct {
	TaskName    string
	UserID      string
	Collection  string
	Quantity    int
	MaxPriceRON string // optional per-item ceiling, decimal RON
}

// ToRequest converts the task into a validated-shape sweep request for the
// given wallet address.
func (t *Task) ToRequest(wallet common.Address) (sweep.Request, error) {
	req := sweep.Request{
		UserID:     t.UserID,
		Wallet:     wallet,
		Collection: t.Collection,
		Quantity:   t.Quantity,
	}
	if t.MaxPriceRON != "" {
		maxPrice, err := marketplace.ParseRON(t.MaxPriceRON)
		if err != nil {
			return sweep.Request{}, fmt.Errorf("task %s: invalid max price: %w", t.TaskName, err)
		}
		req.MaxPricePerItem = maxPrice
	}
	return req, nil
}

// Manager handles task loading.
type Manager struct {
	logger *zap.Logger
}

func NewManager(logger *zap.Logger) *Manager {
	return &Manager{logger: logger}
}

// LoadTasks reads tasks from a CSV file.
// CSV format: task_name,user_id,collection,quantity,max_price_ron
// max_price_ron is optional; an empty value means no per-item ceiling.
// Invalid rows are skipped with a warning, not treated as fatal.
func (m *Manager) LoadTasks(path string) ([]Task, error) {
	m.logger.Debug("Loading tasks", zap.String("path", path))

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file error: %w", err)
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read CSV error: %w", err)
	}

	if len(records) < 2 {
		return nil, fmt.Errorf("no tasks found (need header + at least one task)")
	}

	tasks := make([]Task, 0, len(records)-1)
	for i, row := range records[1:] {
		if len(row) < 4 {
			m.logger.Warn("Skipping row with insufficient columns",
				zap.Int("row", i+2),
				zap.Int("columns", len(row)))
			continue
		}

		quantity, err := strconv.Atoi(row[3])
		if err != nil || quantity <= 0 {
			m.logger.Warn("Invalid quantity value", zap.String("value", row[3]))
			continue
		}

		maxPrice := ""
		if len(row) > 4 {
			maxPrice = row[4]
			if maxPrice != "" {
				if _, err := marketplace.ParseRON(maxPrice); err != nil {
					m.logger.Warn("Invalid max_price_ron value",
						zap.String("value", maxPrice),
						zap.Error(err))
					continue
				}
			}
		}

		tasks = append(tasks, Task{
			TaskName:    row[0],
			UserID:      row[1],
			Collection:  row[2],
			Quantity:    quantity,
			MaxPriceRON: maxPrice,
		})
	}

	m.logger.Info("Tasks loaded successfully", zap.Int("count", len(tasks)))
	return tasks, nil
}

// internal/task/task_test.go
package task

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tasks.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadTasks(t *testing.T) {
	path := writeCSV(t, `task_name,user_id,collection,quantity,max_price_ron
axie-sweep,u1,0x32950db2a7164ae833121501c797d79e7b79d74c,5,1.5
land-sweep,u2,0x5b2aabf6ce6b14cdc35bbd4199cc241d464f0288,2,
`)

	m := NewManager(zap.NewNop())
	tasks, err := m.LoadTasks(path)
	require.NoError(t, err)
	require.Len(t, tasks, 2)

	assert.Equal(t, "axie-sweep", tasks[0].TaskName)
	assert.Equal(t, "u1", tasks[0].UserID)
	assert.Equal(t, 5, tasks[0].Quantity)
	assert.Equal(t, "1.5", tasks[0].MaxPriceRON)

	// Empty max price means no per-item ceiling.
	assert.Empty(t, tasks[1].MaxPriceRON)
}

func TestLoadTasksSkipsInvalidRows(t *testing.T) {
	path := writeCSV(t, `task_name,user_id,collection,quantity,max_price_ron
good,u1,0x32950db2a7164ae833121501c797d79e7b79d74c,5,1.5
bad-quantity,u1,0x32950db2a7164ae833121501c797d79e7b79d74c,zero,1.5
bad-price,u1,0x32950db2a7164ae833121501c797d79e7b79d74c,5,cheap
negative,u1,0x32950db2a7164ae833121501c797d79e7b79d74c,-3,
`)

	m := NewManager(zap.NewNop())
	tasks, err := m.LoadTasks(path)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "good", tasks[0].TaskName)
}

func TestLoadTasksHeaderOnly(t *testing.T) {
	path := writeCSV(t, "task_name,user_id,collection,quantity,max_price_ron\n")
	m := NewManager(zap.NewNop())
	_, err := m.LoadTasks(path)
	assert.ErrorContains(t, err, "no tasks")
}

func TestLoadTasksMissingFile(t *testing.T) {
	m := NewManager(zap.NewNop())
	_, err := m.LoadTasks(filepath.Join(t.TempDir(), "absent.csv"))
	assert.Error(t, err)
}

func TestTaskToRequest(t *testing.T) {
	wallet := common.HexToAddress("0x3333333333333333333333333333333333333333")

	task := Task{TaskName: "s", UserID: "u1", Collection: "0xabc", Quantity: 4, MaxPriceRON: "1.25"}
	req, err := task.ToRequest(wallet)
	require.NoError(t, err)
	assert.Equal(t, "u1", req.UserID)
	assert.Equal(t, wallet, req.Wallet)
	assert.Equal(t, 4, req.Quantity)
	assert.Equal(t, "1250000000000000000", req.MaxPricePerItem.String())

	task.MaxPriceRON = ""
	req, err = task.ToRequest(wallet)
	require.NoError(t, err)
	assert.Nil(t, req.MaxPricePerItem)

	task.MaxPriceRON = "not-a-price"
	_, err = task.ToRequest(wallet)
	assert.ErrorContains(t, err, "invalid max price")
}

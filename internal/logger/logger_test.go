// internal/logger/logger_test.go
package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerWritesContextFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sweepbot.log")
	log, err := New(&Config{
		LogFile:    path,
		MaxSize:    1,
		MaxBackups: 1,
		MaxAge:     1,
	})
	require.NoError(t, err)

	log.WithOperation("sweep-run").Info("run started")
	log.WithUser("u1").Info("task dispatched")
	log.WithTransaction("0xabc").Info("batch confirmed")
	_ = log.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)

	assert.Contains(t, out, `"operation":"sweep-run"`)
	assert.Contains(t, out, "correlation_id")
	assert.Contains(t, out, `"user_id":"u1"`)
	assert.Contains(t, out, `"tx_hash":"0xabc"`)
}

func TestLoggerDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "sweepbot.log", cfg.LogFile)
	assert.False(t, cfg.Development)
}

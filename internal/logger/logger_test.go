package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fdg312/calorie-hub/internal/config"
)

func TestNewWritesToLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calories.log")

	l, err := New(&config.Config{Env: "local", LogLevel: "info", LogFile: path})
	require.NoError(t, err)

	l.Info("meal added")
	l.Debug("filtered out")
	_ = l.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "meal added")
	assert.NotContains(t, string(data), "filtered out")
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(&config.Config{LogLevel: "chatty"})
	assert.Error(t, err)
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))
}

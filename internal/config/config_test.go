package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("REMOTE_LOG_URL", "https://logs.example.com")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8090", cfg.ListenAddr)
	assert.Equal(t, "anonymous", cfg.SenderName)
	assert.Equal(t, 2500*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, 500*time.Millisecond, cfg.BackoffBase)
	assert.Equal(t, 40, cfg.InitialPageSize)
	assert.Equal(t, 8, cfg.BackoffCap)
	assert.Equal(t, "history.db", cfg.HistoryDBPath)
	assert.Equal(t, 500, cfg.HistoryKeep)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("REMOTE_LOG_URL", "https://logs.example.com")
	t.Setenv("POLL_INTERVAL_MS", "1000")
	t.Setenv("INITIAL_PAGE_SIZE", "25")
	t.Setenv("SENDER_NAME", "ana")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, time.Second, cfg.PollInterval)
	assert.Equal(t, 25, cfg.InitialPageSize)
	assert.Equal(t, "ana", cfg.SenderName)
}

func TestLoadRequiresRemoteURL(t *testing.T) {
	t.Setenv("REMOTE_LOG_URL", "")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsBadNumbers(t *testing.T) {
	t.Setenv("REMOTE_LOG_URL", "https://logs.example.com")
	t.Setenv("BACKOFF_CAP", "minus two")

	_, err := Load()
	require.Error(t, err)
}

// Package config loads the process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is everything main needs to wire the service together.
type Config struct {
	ListenAddr      string
	RemoteBaseURL   string
	RemoteAuthToken string
	APIToken        string

	SenderName   string
	SenderAvatar string

	PollInterval    time.Duration
	InitialPageSize int
	BackoffBase     time.Duration
	BackoffCap      int

	HistoryDBPath string
	HistoryKeep   int
}

// Load reads the configuration from the environment. REMOTE_LOG_URL is
// the only required variable.
func Load() (Config, error) {
	cfg := Config{
		ListenAddr:      getEnv("LISTEN_ADDR", ":8090"),
		RemoteBaseURL:   os.Getenv("REMOTE_LOG_URL"),
		RemoteAuthToken: os.Getenv("REMOTE_LOG_TOKEN"),
		APIToken:        os.Getenv("API_TOKEN"),
		SenderName:      getEnv("SENDER_NAME", "anonymous"),
		SenderAvatar:    os.Getenv("SENDER_AVATAR"),
		HistoryDBPath:   getEnv("HISTORY_DB", "history.db"),
	}
	if cfg.RemoteBaseURL == "" {
		return Config{}, errors.New("REMOTE_LOG_URL is required")
	}

	var err error
	if cfg.PollInterval, err = getEnvMillis("POLL_INTERVAL_MS", 2500); err != nil {
		return Config{}, err
	}
	if cfg.BackoffBase, err = getEnvMillis("BACKOFF_BASE_MS", 500); err != nil {
		return Config{}, err
	}
	if cfg.InitialPageSize, err = getEnvInt("INITIAL_PAGE_SIZE", 40); err != nil {
		return Config{}, err
	}
	if cfg.BackoffCap, err = getEnvInt("BACKOFF_CAP", 8); err != nil {
		return Config{}, err
	}
	if cfg.HistoryKeep, err = getEnvInt("HISTORY_KEEP", 500); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	val, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", key, val)
	}
	return parsed, nil
}

func getEnvMillis(key string, fallback int) (time.Duration, error) {
	ms, err := getEnvInt(key, fallback)
	if err != nil {
		return 0, err
	}
	return time.Duration(ms) * time.Millisecond, nil
}

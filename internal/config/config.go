package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config captures what evdq needs to reach the download server and keep
// its local state.
type Config struct {
	ServerPort   int
	HistoryDB    string
	PollInterval time.Duration
}

const (
	defaultConfigPath   = "~/.config/evdq/config.toml"
	defaultHistoryDB    = "~/.local/share/evdq/history.db"
	defaultServerPort   = 5013
	defaultPollInterval = 2 * time.Second
)

// Load locates and parses the evdq config, falling back to defaults when
// the file is missing. Zero or blank values in the file also take the
// defaults.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		ServerPort:   defaultServerPort,
		HistoryDB:    mustExpand(defaultHistoryDB),
		PollInterval: defaultPollInterval,
	}

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw struct {
		ServerPort   int    `toml:"server_port"`
		HistoryDB    string `toml:"history_db"`
		PollInterval int    `toml:"poll_interval"`
	}
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if raw.ServerPort > 0 {
		cfg.ServerPort = raw.ServerPort
	}
	if db := strings.TrimSpace(raw.HistoryDB); db != "" {
		cfg.HistoryDB = mustExpand(db)
	}
	if raw.PollInterval > 0 {
		cfg.PollInterval = time.Duration(raw.PollInterval) * time.Second
	}

	return cfg, nil
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}

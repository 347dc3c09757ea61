package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// EnvConfig defines the terminal client's environment variables. The
// persisted channel/token/nick snapshot lives in the config package; this
// only covers presentation and storage concerns.
type EnvConfig struct {
	LogLevel   string `env:"LOG_LEVEL,default=info"`
	HistoryDir string `env:"TTV_HISTORY_DIR"`
	Muted      string `env:"TTV_MUTED"`
}

// historyDir falls back to a per-user default when unset.
func (c EnvConfig) historyDir() (string, error) {
	if c.HistoryDir != "" {
		return c.HistoryDir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving history dir: %w", err)
	}
	return filepath.Join(home, ".ttvchat", "history"), nil
}

// mutedTerms splits the comma-separated mute list.
func (c EnvConfig) mutedTerms() []string {
	var terms []string
	for _, term := range strings.Split(c.Muted, ",") {
		if term = strings.TrimSpace(term); term != "" {
			terms = append(terms, term)
		}
	}
	return terms
}

func logLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
